// Package udp implements the UDP Connection described in spec §4.6: a
// single-task-owned datagram socket (no reader/writer split, since UDP
// operations are atomic), with send-retry-on-would-block and a
// TimerQueue-backed recv deadline. It is grounded on the same adopt-an-
// already-established-net.Conn approach as package tcp, since the teacher
// (socket515-gaio) never implements raw socket creation itself.
package udp

import (
	"net"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/vibe-d/vibe.d-sub004/internal/logx"
	"github.com/vibe-d/vibe.d-sub004/reactor"
)

var (
	// ErrClosed is returned from send/recv once the socket has been closed.
	ErrClosed = errors.New("udp: connection closed")
	// ErrBusy is the programming-error sentinel for a second task attempting
	// to use a socket already owned by another task's in-flight operation
	// (spec §4.6's single-task ownership).
	ErrBusy = errors.New("udp: another task is already using this connection")
	// ErrTimeout is returned by Recv when its deadline elapses first.
	ErrTimeout       = errors.New("udp: recv timed out")
	ErrUnsupportedConn = errors.New("udp: connection does not support SyscallConn")
)

// Connection is a single UDP socket.
type Connection struct {
	drv *reactor.Driver
	fd  int

	mu      sync.Mutex
	closed  bool
	owner   *reactor.Task
	waiting bool

	readReady  bool
	writeReady bool

	localAddr net.Addr
	log       *logrus.Entry

	closeOnce sync.Once
}

// Dial creates a UDP socket "connected" to addr (so Send/Recv don't need a
// peer address per call), adopting net.Dial's result the same way package
// tcp does.
func Dial(drv *reactor.Driver, network, addr string) (*Connection, error) {
	nc, err := net.Dial(network, addr)
	if err != nil {
		return nil, errors.Wrap(err, "udp: dial")
	}
	return adopt(drv, nc)
}

// Listen creates an unconnected UDP socket bound to addr. Recv accepts
// datagrams from any peer but does not report the sender, and Connection has
// no per-call destination address, so Send on a socket from Listen fails
// (the kernel rejects a write with no destination).
func Listen(drv *reactor.Driver, network, addr string) (*Connection, error) {
	pc, err := net.ListenPacket(network, addr)
	if err != nil {
		return nil, errors.Wrap(err, "udp: listen")
	}
	nc, ok := pc.(net.Conn)
	if !ok {
		pc.Close()
		return nil, ErrUnsupportedConn
	}
	return adopt(drv, nc)
}

type syscallConner interface {
	SyscallConn() (syscall.RawConn, error)
}

func adopt(drv *reactor.Driver, conn net.Conn) (*Connection, error) {
	sc, ok := conn.(syscallConner)
	if !ok {
		return nil, ErrUnsupportedConn
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return nil, errors.Wrap(err, "udp: SyscallConn")
	}
	var newfd int
	var dupErr error
	if ctrlErr := raw.Control(func(fd uintptr) {
		newfd, dupErr = unix.Dup(int(fd))
	}); ctrlErr != nil {
		return nil, errors.Wrap(ctrlErr, "udp: raw control")
	}
	if dupErr != nil {
		return nil, errors.Wrap(dupErr, "udp: dup")
	}

	local := conn.LocalAddr()
	conn.Close()

	if err := unix.SetNonblock(newfd, true); err != nil {
		unix.Close(newfd)
		return nil, errors.Wrap(err, "udp: set nonblocking")
	}

	c := &Connection{drv: drv, fd: newfd, localAddr: local, log: logx.For("udp")}
	if err := drv.Register(newfd, reactor.EventRead, c.onEvent); err != nil {
		unix.Close(newfd)
		return nil, errors.Wrap(err, "udp: register")
	}
	return c, nil
}

// SetBroadcast/SetMulticastLoop are the native setOption passthroughs named
// in spec §4.6.
func (c *Connection) SetBroadcast(v bool) error {
	n := 0
	if v {
		n = 1
	}
	return unix.SetsockoptInt(c.fd, unix.SOL_SOCKET, unix.SO_BROADCAST, n)
}

// SetMulticastLoop toggles IP_MULTICAST_LOOP, controlling whether datagrams
// sent to a multicast group are looped back to the local socket.
func (c *Connection) SetMulticastLoop(v bool) error {
	n := 0
	if v {
		n = 1
	}
	return unix.SetsockoptInt(c.fd, unix.IPPROTO_IP, unix.IP_MULTICAST_LOOP, n)
}

func (c *Connection) LocalAddr() net.Addr { return c.localAddr }

func (c *Connection) onEvent(kind reactor.EventKind) {
	c.mu.Lock()
	if kind.Has(reactor.EventRead) {
		c.readReady = true
	}
	if kind.Has(reactor.EventWrite) {
		c.writeReady = true
	}
	owner := c.owner
	waiting := c.waiting
	c.mu.Unlock()
	if owner != nil && waiting {
		owner.Resume(nil)
	}
}

func (c *Connection) acquire(t *reactor.Task) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.owner != nil {
		return ErrBusy
	}
	c.owner = t
	return nil
}

func (c *Connection) release() {
	c.mu.Lock()
	c.owner = nil
	c.waiting = false
	c.mu.Unlock()
}

// Send transmits p, retrying up to 3 times on would-block by yielding to the
// driver (spec §4.6), then giving up.
func (c *Connection) Send(p []byte) (int, error) {
	t := reactor.NewTask()
	if err := c.acquire(t); err != nil {
		return 0, err
	}
	defer c.release()

	const maxRetries = 3
	for attempt := 0; ; attempt++ {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return 0, ErrClosed
		}
		c.mu.Unlock()

		n, err := unix.Write(c.fd, p)
		if err == nil {
			return n, nil
		}
		if err != unix.EAGAIN {
			return 0, errors.Wrap(err, "udp: send")
		}
		if attempt >= maxRetries {
			return 0, errors.New("udp: send would block after retries")
		}
		if err := c.drv.Modify(c.fd, reactor.EventRead|reactor.EventWrite); err != nil {
			return 0, err
		}
		c.mu.Lock()
		c.waiting = true
		c.mu.Unlock()
		waitErr := t.Wait()
		c.mu.Lock()
		c.waiting = false
		c.mu.Unlock()
		_ = c.drv.Modify(c.fd, reactor.EventRead)
		if waitErr != nil {
			return 0, waitErr
		}
	}
}

// Recv receives one datagram into p. If timeout > 0 a Timer-Queue timer is
// armed; Recv fails with ErrTimeout if it fires before data arrives,
// matching spec §4.6's recv(timeout?) contract.
func (c *Connection) Recv(p []byte, timeout time.Duration) (int, error) {
	t := reactor.NewTask()
	if err := c.acquire(t); err != nil {
		return 0, err
	}
	defer c.release()

	var timerID reactor.TimerID
	var timedOut atomic.Bool
	if timeout > 0 {
		timerID = c.drv.Timers.Create(func() {
			timedOut.Store(true)
			c.mu.Lock()
			waiting := c.waiting
			c.mu.Unlock()
			if waiting {
				t.Resume(nil)
			}
		})
		c.drv.Timers.Acquire(timerID)
		defer c.drv.Timers.Destroy(timerID)
		if err := c.drv.Timers.Schedule(timerID, time.Now(), timeout, false); err != nil {
			return 0, err
		}
	}

	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return 0, ErrClosed
		}
		c.mu.Unlock()

		n, err := unix.Read(c.fd, p)
		if err == nil {
			if timeout > 0 {
				_ = c.drv.Timers.Unschedule(timerID)
			}
			return n, nil
		}
		if err != unix.EAGAIN {
			return 0, errors.Wrap(err, "udp: recv")
		}
		if timedOut.Load() {
			return 0, ErrTimeout
		}

		c.mu.Lock()
		c.waiting = true
		c.mu.Unlock()
		waitErr := t.Wait()
		c.mu.Lock()
		c.waiting = false
		c.mu.Unlock()
		if waitErr != nil {
			return 0, waitErr
		}
		if timedOut.Load() {
			return 0, ErrTimeout
		}
	}
}

// Close releases the native socket. Safe to call more than once.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		owner := c.owner
		waiting := c.waiting
		c.mu.Unlock()
		if owner != nil && waiting {
			owner.Resume(ErrClosed)
		}
		if uerr := c.drv.Unregister(c.fd); uerr != nil {
			c.log.WithError(uerr).Debug("unregister on close")
		}
		err = unix.Close(c.fd)
	})
	return err
}
