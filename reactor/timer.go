package reactor

import (
	"container/heap"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// TimerID is a handle to a timer queue entry, assigned in increasing order
// by Create; ids are not reused. Zero is reserved and never returned by
// Create, matching spec §3.1.
type TimerID uint64

// ErrUnknownTimer is returned by Schedule, Unschedule and UserData when the
// id was never created or has since been destroyed. No TimerQueue method
// panics on an unknown id; Acquire, Release and Destroy ignore it.
var ErrUnknownTimer = errors.New("reactor: unknown timer id")

// tick is 100ns, the resolution spec §3.1 names. TimerQueue keeps deadlines
// as time.Time and does not round them to tick.
const tick = 100 * time.Nanosecond

// TimerCallback is invoked by ConsumeTimeouts for every non-stale timer
// whose deadline has passed.
type TimerCallback func(id TimerID, periodic bool, payload interface{})

type timerEntry struct {
	id       TimerID
	deadline time.Time
	period   time.Duration // 0 == one-shot
	pending  bool
	payload  interface{}
	refCount int
	// heapIndex points at this entry's current position in the heap slice,
	// or -1 if the entry has no live heap node (never scheduled, or fired).
	heapIndex int
}

// heapNode is a standalone value pushed onto the heap; it carries the
// deadline it was inserted with so that pops can detect staleness per the
// invariant in spec §3.1 ("heap entry's deadline matches current deadline").
type heapNode struct {
	id       TimerID
	deadline time.Time
	index    int
}

type minHeap []*heapNode

func (h minHeap) Len() int            { return len(h) }
func (h minHeap) Less(i, j int) bool  { return h[i].deadline.Before(h[j].deadline) }
func (h minHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *minHeap) Push(x interface{}) {
	n := x.(*heapNode)
	n.index = len(*h)
	*h = append(*h, n)
}
func (h *minHeap) Pop() interface{} {
	old := *h
	n := len(old)
	node := old[n-1]
	old[n-1] = nil
	node.index = -1
	*h = old[:n-1]
	return node
}

// TimerQueue is the min-heap of timeouts described in spec §4.1. Every
// exported method takes the queue's own mutex, so any goroutine may call it;
// ConsumeTimeouts releases the mutex before running its callbacks on the
// calling goroutine.
type TimerQueue struct {
	mu      sync.Mutex
	grain   time.Duration
	nextID  TimerID
	entries map[TimerID]*timerEntry
	heap    minHeap
}

// NewTimerQueue constructs an empty queue with the given comparison grain
// (spec §4.1; 0 selects the 1ms default).
func NewTimerQueue(grain time.Duration) *TimerQueue {
	if grain <= 0 {
		grain = time.Millisecond
	}
	q := &TimerQueue{
		grain:   grain,
		entries: make(map[TimerID]*timerEntry),
	}
	heap.Init(&q.heap)
	return q
}

// Create allocates a fresh timer id bound to payload, initially not pending.
func (q *TimerQueue) Create(payload interface{}) TimerID {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.nextID++
	id := q.nextID
	q.entries[id] = &timerEntry{id: id, payload: payload, heapIndex: -1, refCount: 1}
	return id
}

// Acquire increments the entry's reference count.
func (q *TimerQueue) Acquire(id TimerID) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if e, ok := q.entries[id]; ok {
		e.refCount++
	}
}

// Release decrements the entry's reference count, destroying it at zero.
func (q *TimerQueue) Release(id TimerID) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.entries[id]
	if !ok {
		return
	}
	e.refCount--
	if e.refCount <= 0 {
		delete(q.entries, id)
	}
}

// Destroy removes the entry unconditionally; any heap entry for it becomes
// stale and will be skipped when popped.
func (q *TimerQueue) Destroy(id TimerID) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.entries, id)
}

// Schedule arms id to fire after duration, optionally periodic. Rescheduling
// inserts a fresh heap node; any previously-inserted node for this id
// becomes stale because its captured deadline will no longer match.
func (q *TimerQueue) Schedule(id TimerID, now time.Time, duration time.Duration, periodic bool) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.entries[id]
	if !ok {
		return errors.Wrapf(ErrUnknownTimer, "schedule %d", id)
	}
	e.deadline = now.Add(duration)
	if periodic {
		e.period = duration
	} else {
		e.period = 0
	}
	e.pending = true
	heap.Push(&q.heap, &heapNode{id: id, deadline: e.deadline})
	return nil
}

// Unschedule clears the pending flag; the heap entry becomes stale.
func (q *TimerQueue) Unschedule(id TimerID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.entries[id]
	if !ok {
		return errors.Wrapf(ErrUnknownTimer, "unschedule %d", id)
	}
	e.pending = false
	return nil
}

// IsPending reports whether id is currently armed.
func (q *TimerQueue) IsPending(id TimerID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.entries[id]
	return ok && e.pending
}

// IsPeriodic reports whether id, if pending, repeats.
func (q *TimerQueue) IsPeriodic(id TimerID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.entries[id]
	return ok && e.period > 0
}

// UserData returns the payload registered with Create.
func (q *TimerQueue) UserData(id TimerID) (interface{}, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.entries[id]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownTimer, "getUserData %d", id)
	}
	return e.payload, nil
}

// FirstTimeout peeks the earliest pending deadline, or the zero Time's
// "infinite" sentinel (ok=false) if no timer is pending.
func (q *TimerQueue) FirstTimeout() (deadline time.Time, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.heap.Len() > 0 {
		node := q.heap[0]
		e, exists := q.entries[node.id]
		if !exists || !e.pending || !e.deadline.Equal(node.deadline) {
			heap.Pop(&q.heap)
			continue
		}
		return node.deadline, true
	}
	return time.Time{}, false
}

// ConsumeTimeouts pops and fires every non-stale entry whose deadline is at
// or before now (within the configured grain), advancing periodic timers by
// the catch-up rule in spec §3.1: deadline += (1+skipped)*period so that any
// cycles that fully elapsed while unprocessed collapse into a single fire.
func (q *TimerQueue) ConsumeTimeouts(now time.Time, fn TimerCallback) {
	var fired []*timerEntry
	q.mu.Lock()
	for q.heap.Len() > 0 {
		node := q.heap[0]
		e, exists := q.entries[node.id]
		stale := !exists || !e.pending || !e.deadline.Equal(node.deadline)
		if stale {
			heap.Pop(&q.heap)
			continue
		}
		if now.Sub(node.deadline) < -q.grain {
			break
		}
		heap.Pop(&q.heap)

		if e.period > 0 {
			elapsed := now.Sub(e.deadline)
			skipped := int64(elapsed / e.period)
			if skipped < 0 {
				skipped = 0
			}
			e.deadline = e.deadline.Add(time.Duration(1+skipped) * e.period)
			heap.Push(&q.heap, &heapNode{id: e.id, deadline: e.deadline})
		} else {
			e.pending = false
		}
		fired = append(fired, e)
	}
	q.mu.Unlock()

	for _, e := range fired {
		fn(e.id, e.period > 0, e.payload)
	}
}

// Len reports the number of entries currently tracked (pending or not);
// primarily for tests and Driver.Stats().
func (q *TimerQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
