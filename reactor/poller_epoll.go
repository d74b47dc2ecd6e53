//go:build linux

package reactor

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// epollPoller is the Linux Native Capability Surface backend, grounded on
// socket515-gaio/watcher.go's openPoll()/epoll usage: one epoll fd, level
// free (edge-independent) registration per connection fd, batched
// epoll_wait into a reused event buffer.
type epollPoller struct {
	fd int

	mu     sync.Mutex
	events []unix.EpollEvent
}

// newPlatformPoller constructs the epoll-backed Poller for this OS.
func newPlatformPoller() (Poller, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, errors.Wrap(err, "reactor: epoll_create1")
	}
	return &epollPoller{fd: fd, events: make([]unix.EpollEvent, 128)}, nil
}

func toEpollMask(mask EventKind) uint32 {
	var m uint32
	if mask.Has(EventRead) {
		m |= unix.EPOLLIN
	}
	if mask.Has(EventWrite) {
		m |= unix.EPOLLOUT
	}
	// errors/hangups are always reported by the kernel regardless of mask.
	return m
}

func (p *epollPoller) Add(fd int, mask EventKind) error {
	ev := unix.EpollEvent{Events: toEpollMask(mask), Fd: int32(fd)}
	return errors.Wrapf(unix.EpollCtl(p.fd, unix.EPOLL_CTL_ADD, fd, &ev), "reactor: epoll_ctl add %d", fd)
}

func (p *epollPoller) Modify(fd int, mask EventKind) error {
	ev := unix.EpollEvent{Events: toEpollMask(mask), Fd: int32(fd)}
	return errors.Wrapf(unix.EpollCtl(p.fd, unix.EPOLL_CTL_MOD, fd, &ev), "reactor: epoll_ctl mod %d", fd)
}

func (p *epollPoller) Remove(fd int) error {
	err := unix.EpollCtl(p.fd, unix.EPOLL_CTL_DEL, fd, nil)
	if err != nil && err != unix.ENOENT {
		return errors.Wrapf(err, "reactor: epoll_ctl del %d", fd)
	}
	return nil
}

func (p *epollPoller) Wait(dst []PollEvent, timeout time.Duration) ([]PollEvent, error) {
	ms := -1
	if timeout >= 0 {
		ms = int(timeout / time.Millisecond)
		if ms == 0 && timeout > 0 {
			ms = 1
		}
	}

	p.mu.Lock()
	buf := p.events
	p.mu.Unlock()

	n, err := unix.EpollWait(p.fd, buf, ms)
	if err != nil {
		if err == unix.EINTR {
			return dst, nil
		}
		return dst, errors.Wrap(err, "reactor: epoll_wait")
	}

	for i := 0; i < n; i++ {
		e := buf[i]
		var kind EventKind
		if e.Events&(unix.EPOLLIN|unix.EPOLLHUP|unix.EPOLLRDHUP) != 0 {
			kind |= EventRead
		}
		if e.Events&unix.EPOLLOUT != 0 {
			kind |= EventWrite
		}
		if e.Events&unix.EPOLLERR != 0 {
			kind |= EventError
		}
		if e.Events&unix.EPOLLHUP != 0 {
			kind |= EventHup
		}
		dst = append(dst, PollEvent{FD: int(e.Fd), Kind: kind})
	}
	return dst, nil
}

func (p *epollPoller) Close() error {
	return unix.Close(p.fd)
}
