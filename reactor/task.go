package reactor

import "sync/atomic"

var taskSeq uint64

// Task is an opaque handle to a suspended goroutine, modeled on vibe.d's
// coroutine handle (spec §3.2): the only legal operations are checking
// whether it is still waiting on a result, comparing identity, and resuming
// it with an optional error. A goroutine "is" a Task for as long as it is
// blocked inside yieldForEvent; outside of that it behaves like the null
// task described in the spec (Equal against nil is always false).
type Task struct {
	id       uint64
	resumeCh chan error
	resumed  uint32
}

// NewTask allocates a fresh, not-yet-suspended task handle.
func NewTask() *Task {
	return &Task{
		id:       atomic.AddUint64(&taskSeq, 1),
		resumeCh: make(chan error, 1),
	}
}

// Running reports whether the task has not yet been resumed. Once Resume is
// called the task is considered finished from the driver's point of view,
// mirroring the D runtime's `Task.running` becoming false after completion.
func (t *Task) Running() bool {
	return atomic.LoadUint32(&t.resumed) == 0
}

// Equal implements task identity comparison. Two Task handles are equal iff
// they are the same allocation.
func (t *Task) Equal(other *Task) bool {
	if t == nil || other == nil {
		return t == other
	}
	return t.id == other.id
}

// Resume schedules the task for resumption, optionally delivering err at its
// suspension point. Resume is idempotent: only the first call has effect,
// matching the spec's single-resumption-per-suspension discipline.
func (t *Task) Resume(err error) {
	if atomic.CompareAndSwapUint32(&t.resumed, 0, 1) {
		t.resumeCh <- err
	}
}

// Wait suspends the calling goroutine until Resume is invoked, returning
// whatever error Resume was given. This is the concrete form of the spec's
// `yieldForEvent`: there is no other suspension primitive in this runtime.
func (t *Task) Wait() error {
	return <-t.resumeCh
}
