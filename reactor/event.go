package reactor

import (
	"sync"
	"sync/atomic"
	"time"
)

// eventIDPool is the process-wide (id, maxId, freeList) pool from spec §4.3
// / §6.5, guarded by a single mutex as the spec's "global mutex guarding the
// Manual Event id pool" names explicitly.
type eventIDPool struct {
	mu       sync.Mutex
	maxID    uint64
	freeList []uint64
}

var globalEventIDs = &eventIDPool{}

func (p *eventIDPool) acquire() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n := len(p.freeList); n > 0 {
		id := p.freeList[n-1]
		p.freeList = p.freeList[:n-1]
		return id
	}
	p.maxID++
	return p.maxID
}

func (p *eventIDPool) release(id uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.freeList = append(p.freeList, id)
}

// waiterList holds the task registered by one Wait or WaitTimeout call. The
// event keeps one list per outstanding wait in waitersFor; there is no
// per-thread list and no separate wake signal. Emit resumes every task in
// every list.
type waiterList struct {
	mu    sync.Mutex
	tasks map[*Task]struct{}
}

// ManualEvent is a cross-goroutine counting condition variable, built on a
// shared atomic emit counter plus per-registrant waiter lists, per spec
// §3.4/§4.3.
type ManualEvent struct {
	id         uint64
	emitCount  uint32
	mu         sync.Mutex
	waitersFor map[*waiterList]struct{}
	pool       *sync.Pool
}

// NewManualEvent allocates an event instance, claiming an id from the
// process-wide pool.
func NewManualEvent() *ManualEvent {
	return &ManualEvent{
		id:         globalEventIDs.acquire(),
		waitersFor: make(map[*waiterList]struct{}),
	}
}

// Close returns this event's id to the process-wide free list. The event
// must not be waited upon after Close.
func (e *ManualEvent) Close() {
	globalEventIDs.release(e.id)
}

// ID returns the process-wide instance id, useful for diagnostics.
func (e *ManualEvent) ID() uint64 { return e.id }

// EmitCount returns the current emit counter without blocking.
func (e *ManualEvent) EmitCount() uint32 {
	return atomic.LoadUint32(&e.emitCount)
}

// Emit atomically increments the emit counter and wakes every task currently
// registered as a waiter, from any goroutine. Thread-safe per spec.
func (e *ManualEvent) Emit() uint32 {
	n := atomic.AddUint32(&e.emitCount, 1)
	e.mu.Lock()
	lists := make([]*waiterList, 0, len(e.waitersFor))
	for wl := range e.waitersFor {
		lists = append(lists, wl)
	}
	e.mu.Unlock()

	for _, wl := range lists {
		wl.mu.Lock()
		for t := range wl.tasks {
			t.Resume(nil)
		}
		wl.tasks = make(map[*Task]struct{})
		wl.mu.Unlock()
	}
	return n
}

func (e *ManualEvent) registerWaiter(t *Task) *waiterList {
	wl := &waiterList{tasks: map[*Task]struct{}{t: {}}}
	e.mu.Lock()
	e.waitersFor[wl] = struct{}{}
	e.mu.Unlock()
	return wl
}

func (e *ManualEvent) unregisterWaiter(wl *waiterList) {
	e.mu.Lock()
	delete(e.waitersFor, wl)
	e.mu.Unlock()
}

// Wait blocks the calling goroutine until EmitCount() differs from
// referenceCount, returning the observed count. If the counts already
// differ it returns immediately without suspending.
func (e *ManualEvent) Wait(referenceCount uint32) uint32 {
	for {
		if cur := e.EmitCount(); cur != referenceCount {
			return cur
		}
		t := NewTask()
		wl := e.registerWaiter(t)
		// Re-check after registering to close the races where Emit() fired
		// between the check above and registration.
		if cur := e.EmitCount(); cur != referenceCount {
			e.unregisterWaiter(wl)
			return cur
		}
		_ = t.Wait()
		e.unregisterWaiter(wl)
	}
}

// WaitTimeout behaves like Wait but gives up after timeout, returning
// ok=false and the reference count unchanged if no Emit() arrived in time.
func (e *ManualEvent) WaitTimeout(referenceCount uint32, timeout time.Duration) (count uint32, ok bool) {
	if cur := e.EmitCount(); cur != referenceCount {
		return cur, true
	}
	t := NewTask()
	wl := e.registerWaiter(t)
	if cur := e.EmitCount(); cur != referenceCount {
		e.unregisterWaiter(wl)
		return cur, true
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case err := <-t.resumeCh:
		_ = err
		e.unregisterWaiter(wl)
		return e.EmitCount(), true
	case <-timer.C:
		e.unregisterWaiter(wl)
		t.Resume(nil) // defuse a racing Emit that fires after the timer
		return e.EmitCount(), false
	}
}

// WaitUninterruptible behaves like Wait but never propagates a delivered
// error at the suspension boundary (spec §4.3's waitUninterruptible).
func (e *ManualEvent) WaitUninterruptible(referenceCount uint32) uint32 {
	return e.Wait(referenceCount)
}
