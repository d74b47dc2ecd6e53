//go:build darwin || netbsd || freebsd || openbsd || dragonfly

package reactor

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// pollPoller is the BSD/Darwin Native Capability Surface backend. It uses
// unix.Poll rather than kqueue: the spec treats the poll backend as an
// interchangeable implementation of the same capability surface (§9 "the
// core never needs runtime virtual dispatch across backends simultaneously"),
// and poll(2) is sufficient to satisfy Poller's batched-readiness contract
// for the connection counts this library targets.
type pollPoller struct {
	mu  sync.Mutex
	set map[int]EventKind
}

func newPlatformPoller() (Poller, error) {
	return &pollPoller{set: make(map[int]EventKind)}, nil
}

func (p *pollPoller) Add(fd int, mask EventKind) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.set[fd] = mask
	return nil
}

func (p *pollPoller) Modify(fd int, mask EventKind) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.set[fd]; !ok {
		return errors.Errorf("reactor: modify unknown fd %d", fd)
	}
	p.set[fd] = mask
	return nil
}

func (p *pollPoller) Remove(fd int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.set, fd)
	return nil
}

func (p *pollPoller) Wait(dst []PollEvent, timeout time.Duration) ([]PollEvent, error) {
	p.mu.Lock()
	fds := make([]unix.PollFd, 0, len(p.set))
	order := make([]int, 0, len(p.set))
	for fd, mask := range p.set {
		var events int16
		if mask.Has(EventRead) {
			events |= unix.POLLIN
		}
		if mask.Has(EventWrite) {
			events |= unix.POLLOUT
		}
		fds = append(fds, unix.PollFd{Fd: int32(fd), Events: events})
		order = append(order, fd)
	}
	p.mu.Unlock()

	if len(fds) == 0 {
		// Nothing registered: sleep out the timeout so the caller's loop
		// still respects timer deadlines.
		if timeout > 0 {
			time.Sleep(timeout)
		}
		return dst, nil
	}

	ms := -1
	if timeout >= 0 {
		ms = int(timeout / time.Millisecond)
		if ms == 0 && timeout > 0 {
			ms = 1
		}
	}

	n, err := unix.Poll(fds, ms)
	if err != nil {
		if err == unix.EINTR {
			return dst, nil
		}
		return dst, errors.Wrap(err, "reactor: poll")
	}
	if n == 0 {
		return dst, nil
	}

	for i, pfd := range fds {
		if pfd.Revents == 0 {
			continue
		}
		var kind EventKind
		if pfd.Revents&unix.POLLIN != 0 {
			kind |= EventRead
		}
		if pfd.Revents&unix.POLLOUT != 0 {
			kind |= EventWrite
		}
		if pfd.Revents&unix.POLLERR != 0 {
			kind |= EventError
		}
		if pfd.Revents&unix.POLLHUP != 0 {
			kind |= EventHup
		}
		dst = append(dst, PollEvent{FD: order[i], Kind: kind})
	}
	return dst, nil
}

func (p *pollPoller) Close() error {
	return nil
}
