// Package reactor implements the single-threaded cooperative driver core
// described in spec §4.2: one Driver per OS thread, multiplexing registered
// file descriptors through a Poller, a TimerQueue, and a set of idle hooks,
// with Task as the only suspension primitive. Architecturally this mirrors
// socket515-gaio/watcher.go's watcher type (a background poll goroutine
// feeding a single loop goroutine over channels) generalized to the spec's
// named operations (RunEventLoop/RunEventLoopOnce/ProcessEvents/
// ExitEventLoop) and reader/writer ownership model consumed by package tcp.
package reactor

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/vibe-d/vibe.d-sub004/internal/logx"
)

// Config holds Driver construction options, following the teacher's
// NewWatcherSize(bufsize) convention of a single tunable rather than an
// options struct with many rarely-used knobs.
type Config struct {
	// Grain is the TimerQueue comparison grain (spec §4.1). Zero selects
	// the 1ms default.
	Grain time.Duration
}

// Stats is a point-in-time snapshot of driver activity (spec_full §4.11),
// read-only and side-effect free. PendingTimers is TimerQueue.Len(): every
// timer entry the queue tracks, whether armed or not.
type Stats struct {
	RegisteredFDs int
	PendingTimers int
	LoopTurns     uint64
}

type regOp int

const (
	regAdd regOp = iota
	regModify
	regRemove
)

type registration struct {
	op      regOp
	fd      int
	mask    EventKind
	handler func(EventKind)
	done    chan error
}

// statsRequest asks the loop goroutine for a Stats snapshot. Routed through a
// channel rather than read directly because handlers/turns are loop-goroutine-
// owned state (see the Driver.handlers field comment).
type statsRequest struct {
	done chan Stats
}

// Driver is one reactor instance (spec §4.2). The zero value is not usable;
// construct with NewDriver.
type Driver struct {
	Timers *TimerQueue

	poller   Poller
	regCh    chan registration
	eventCh  chan []PollEvent
	statsCh  chan statsRequest
	exitCh   chan struct{}
	exitOnce sync.Once

	idleMu sync.Mutex
	idle   []func()

	log *logrus.Entry

	turns uint64

	// loop-goroutine-owned state; only touched by the goroutine running
	// RunEventLoopOnce/ProcessEvents.
	handlers map[int]func(EventKind)

	timerArm     *time.Timer
	timerArmedAt time.Time
	hasTimerArm  bool

	runOnce sync.Once
	started bool
	stopped chan struct{}
}

// mainDriver is the process-wide pointer populated by the first Driver
// constructed, so foreign goroutines can address "the main driver" the way
// spec §6.5 describes for foreign-thread wakeups.
var (
	mainDriverMu sync.Mutex
	mainDriver   *Driver
)

// NewDriver constructs and starts a Driver's background poll goroutine. The
// caller must still invoke RunEventLoop (or RunEventLoopOnce in a loop) from
// whichever goroutine is meant to own this reactor.
func NewDriver(cfg Config) (*Driver, error) {
	poller, err := newPlatformPoller()
	if err != nil {
		return nil, errors.Wrap(err, "reactor: create poller")
	}

	d := &Driver{
		Timers:   NewTimerQueue(cfg.Grain),
		poller:   poller,
		regCh:    make(chan registration, 64),
		eventCh:  make(chan []PollEvent, 16),
		statsCh:  make(chan statsRequest),
		exitCh:   make(chan struct{}),
		stopped:  make(chan struct{}),
		handlers: make(map[int]func(EventKind)),
		timerArm: time.NewTimer(time.Hour),
		log:      logx.For("reactor"),
	}
	d.timerArm.Stop()

	mainDriverMu.Lock()
	if mainDriver == nil {
		mainDriver = d
	}
	mainDriverMu.Unlock()

	go d.pollLoop()
	return d, nil
}

// MainDriver returns the first Driver constructed in this process, or nil if
// none has been constructed yet.
func MainDriver() *Driver {
	mainDriverMu.Lock()
	defer mainDriverMu.Unlock()
	return mainDriver
}

func (d *Driver) pollLoop() {
	var buf []PollEvent
	for {
		select {
		case <-d.exitCh:
			return
		default:
		}
		buf = buf[:0]
		var err error
		buf, err = d.poller.Wait(buf, 250*time.Millisecond)
		if err != nil {
			return
		}
		if len(buf) == 0 {
			continue
		}
		out := make([]PollEvent, len(buf))
		copy(out, buf)
		select {
		case d.eventCh <- out:
		case <-d.exitCh:
			return
		}
	}
}

// Register adds fd to the poller with the given interest mask; handler is
// invoked from the loop goroutine whenever a matching event arrives. This is
// package tcp/udp's entry point into the Native Capability Surface.
func (d *Driver) Register(fd int, mask EventKind, handler func(EventKind)) error {
	return d.submit(registration{op: regAdd, fd: fd, mask: mask, handler: handler})
}

// Modify changes fd's interest mask.
func (d *Driver) Modify(fd int, mask EventKind) error {
	return d.submit(registration{op: regModify, fd: fd, mask: mask})
}

// Unregister removes fd from the poller.
func (d *Driver) Unregister(fd int) error {
	return d.submit(registration{op: regRemove, fd: fd})
}

func (d *Driver) submit(r registration) error {
	r.done = make(chan error, 1)
	select {
	case d.regCh <- r:
	case <-d.exitCh:
		return errors.New("reactor: driver exiting")
	}
	select {
	case err := <-r.done:
		return err
	case <-d.exitCh:
		return errors.New("reactor: driver exiting")
	}
}

func (d *Driver) applyRegistration(r registration) {
	var err error
	switch r.op {
	case regAdd:
		err = d.poller.Add(r.fd, r.mask)
		if err == nil {
			d.handlers[r.fd] = r.handler
		}
	case regModify:
		err = d.poller.Modify(r.fd, r.mask)
	case regRemove:
		err = d.poller.Remove(r.fd)
		delete(d.handlers, r.fd)
	}
	if r.done != nil {
		r.done <- err
	}
}

// OnIdle registers a hook invoked once per outer loop turn, after timers are
// processed (spec §4.2's notifyIdle).
func (d *Driver) OnIdle(fn func()) {
	d.idleMu.Lock()
	d.idle = append(d.idle, fn)
	d.idleMu.Unlock()
}

func (d *Driver) notifyIdle() {
	d.idleMu.Lock()
	hooks := append([]func(){}, d.idle...)
	d.idleMu.Unlock()
	for _, h := range hooks {
		h()
	}
}

// RunEventLoop runs the reactor until ExitEventLoop is called, processing
// poller events, timers and idle hooks on every turn (spec §4.2).
func (d *Driver) RunEventLoop() error {
	d.started = true
	for {
		exit, err := d.RunEventLoopOnce()
		if err != nil {
			return err
		}
		if exit {
			return nil
		}
	}
}

// RunEventLoopOnce executes a single outer-loop turn: handle one ready input
// (queued registrations, a batch of poll events, a Stats request, or the
// native timer firing), process due timers, notify idle hooks. The turn does
// not block: when no registration is queued regBatch returns a closed
// channel, which is always ready, so RunEventLoop polls events and timers
// continuously. Returns exit=true once ExitEventLoop has fired.
func (d *Driver) RunEventLoopOnce() (exit bool, err error) {
	d.rescheduleTimerEvent()

	select {
	case <-d.exitCh:
		d.drainStop()
		return true, nil
	case regs := <-d.regBatch():
		for _, r := range regs {
			d.applyRegistration(r)
		}
	case batch := <-d.eventCh:
		d.dispatch(batch)
	case req := <-d.statsCh:
		req.done <- d.snapshotStats()
	case <-d.timerArm.C:
		d.hasTimerArm = false
	}

	d.processTimers(time.Now())
	d.notifyIdle()
	d.turns++
	d.log.WithField("turn", d.turns).Debug("loop turn complete")
	return false, nil
}

// regBatch drains whatever registrations are immediately available so a
// burst of Register calls does not serialize one event loop turn per call.
func (d *Driver) regBatch() <-chan []registration {
	out := make(chan []registration, 1)
	select {
	case first := <-d.regCh:
		batch := []registration{first}
	drain:
		for {
			select {
			case r := <-d.regCh:
				batch = append(batch, r)
			default:
				break drain
			}
		}
		out <- batch
	default:
		close(out)
	}
	return out
}

func (d *Driver) dispatch(batch []PollEvent) {
	for _, ev := range batch {
		if h, ok := d.handlers[ev.FD]; ok {
			h(ev.Kind)
		}
	}
}

// ProcessEvents polls with a zero timeout (spec §4.2) and reports whether
// ExitEventLoop had been requested.
func (d *Driver) ProcessEvents() (exitRequested bool, err error) {
	select {
	case <-d.exitCh:
		return true, nil
	default:
	}
	select {
	case regs := <-d.regBatch():
		for _, r := range regs {
			d.applyRegistration(r)
		}
	case batch := <-d.eventCh:
		d.dispatch(batch)
	case req := <-d.statsCh:
		req.done <- d.snapshotStats()
	default:
	}
	d.processTimers(time.Now())
	return false, nil
}

func (d *Driver) processTimers(now time.Time) {
	d.Timers.ConsumeTimeouts(now, func(id TimerID, periodic bool, payload interface{}) {
		if cb, ok := payload.(func()); ok && cb != nil {
			cb()
		}
	})
}

// rescheduleTimerEvent recomputes the native one-shot timer per spec §4.2:
// if there's no pending timer, leave the armed timer alone; if the next
// deadline is unchanged, leave it armed; otherwise rearm to
// max(1ms, next-now), skipping rearm if the duration would overflow what a
// single timer can represent.
func (d *Driver) rescheduleTimerEvent() {
	deadline, ok := d.Timers.FirstTimeout()
	if !ok {
		return
	}
	if d.hasTimerArm && deadline.Equal(d.timerArmedAt) {
		return
	}
	const maxDuration = time.Duration(1<<63 - 1)
	wait := time.Until(deadline)
	if wait < time.Millisecond {
		wait = time.Millisecond
	}
	if wait >= maxDuration/2 {
		return
	}
	d.timerArm.Stop()
	d.timerArm.Reset(wait)
	d.hasTimerArm = true
	d.timerArmedAt = deadline
}

// ExitEventLoop asks the reactor to stop after its current turn. Safe to
// call from any goroutine, matching spec §4.2's cross-thread-safe exit
// signal.
func (d *Driver) ExitEventLoop() {
	d.exitOnce.Do(func() {
		close(d.exitCh)
	})
}

func (d *Driver) drainStop() {
	select {
	case <-d.stopped:
	default:
		close(d.stopped)
	}
	d.poller.Close()
}

// snapshotStats reads handlers/turns directly. Only safe from the loop
// goroutine itself.
func (d *Driver) snapshotStats() Stats {
	return Stats{
		RegisteredFDs: len(d.handlers),
		PendingTimers: d.Timers.Len(),
		LoopTurns:     d.turns,
	}
}

// Stats returns a snapshot of driver activity (spec_full §4.11). Safe to call
// from any goroutine: handlers/turns are loop-goroutine-owned, so the
// snapshot is produced by the loop itself and handed back over statsCh
// rather than read directly here. Requires the loop to be running (via
// RunEventLoop/RunEventLoopOnce/ProcessEvents); returns the zero Stats if the
// driver exits before it can answer.
func (d *Driver) Stats() Stats {
	req := statsRequest{done: make(chan Stats, 1)}
	select {
	case d.statsCh <- req:
	case <-d.stopped:
		return Stats{}
	}
	select {
	case s := <-req.done:
		return s
	case <-d.stopped:
		return Stats{}
	}
}
