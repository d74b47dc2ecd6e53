// Package tcp implements the TCP Connection and Listener described in spec
// §3.3/§4.4/§4.5: a buffered, ring-backed read path, single reader/writer
// task ownership, and an event-driven connect/read/write/close/error state
// machine built directly on a *reactor.Driver's native capability surface.
//
// Connection establishment is delegated to the standard library's net.Dial /
// net.Listener exactly as the teacher (socket515-gaio) does: gaio never
// implements connect() itself, it adopts an already-connected net.Conn by
// duplicating its file descriptor and handing the duplicate to the reactor.
// This module follows the same division of labor — the CONNECT state is
// entered synchronously once net.Dial returns, and everything after that
// (read/write/close/error) is driven asynchronously by the reactor.
package tcp

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

// State is the TCP connection state named in spec §3.3.
type State int

const (
	StateInitialized State = iota
	StateConnected
	StatePassiveClose
	StateActiveClose
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateInitialized:
		return "initialized"
	case StateConnected:
		return "connected"
	case StatePassiveClose:
		return "passive-close"
	case StateActiveClose:
		return "active-close"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Infinite is the explicit spelling of "no deadline" for WaitForData, since
// spec §9 flags the historical zero-means-infinite quirk as worth
// surfacing under its own name.
const Infinite time.Duration = 1<<63 - 1

// token models the at-most-one-task ownership slot named in spec §4.4: a
// taskSlot, an isWaiting flag, and a suppressException flag. Reader and
// writer tokens are independent (spec §3.7): the connection supports one
// concurrent reader and one concurrent writer, never two of either.
type token struct {
	task              *reactor.Task
	waiting           bool
	suppressException bool
}

// Connection is a single TCP connection wrapping a reactor-registered file
// descriptor.
type Connection struct {
	drv *reactor.Driver
	fd  int

	mu      sync.Mutex
	state   State
	ring    *ringBuffer
	sliceOn bool
	slice   []byte
	sliceN  int
	lastErr error
	opts    Options

	reader token
	writer token

	writeWantEvent bool // whether fd is currently registered for EventWrite too

	localAddr  net.Addr
	remoteAddr net.Addr

	closeOnce sync.Once
	log       *logrus.Entry
}

// Dial connects to addr over network ("tcp", "tcp4", "tcp6") and adopts the
// resulting connection into drv.
func Dial(drv *reactor.Driver, network, addr string, opts ...Option) (*Connection, error) {
	nc, err := net.Dial(network, addr)
	if err != nil {
		return nil, errors.Wrap(err, "tcp: dial")
	}
	return adopt(drv, nc, buildOptions(opts...))
}

// adopt duplicates conn's file descriptor (spec §4.4/§9's dup-based fd
// ownership transfer, grounded on socket515-gaio/watcher.go's dupconn) and
// registers it with drv, entering StateConnected directly since net.Dial/
// net.Listener already completed the native CONNECT handshake.
func adopt(drv *reactor.Driver, conn net.Conn, opts Options) (*Connection, error) {
	fd, err := dupFD(conn)
	if err != nil {
		return nil, err
	}
	local, remote := conn.LocalAddr(), conn.RemoteAddr()
	conn.Close()

	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, errors.Wrap(err, "tcp: set nonblocking")
	}

	c := &Connection{
		drv:        drv,
		fd:         fd,
		state:      StateConnected,
		ring:       newRingBuffer(opts.RingInitialSize, opts.RingCeiling),
		opts:       opts,
		localAddr:  local,
		remoteAddr: remote,
		log:        logx.For("tcp"),
	}

	if err := drv.Register(fd, reactor.EventRead, c.onEvent); err != nil {
		unix.Close(fd)
		return nil, errors.Wrap(err, "tcp: register")
	}
	c.applyOptions()
	return c, nil
}

// syscallConner is satisfied by every net.Conn the standard library hands
// back from Dial/Listener.Accept (TCPConn, UnixConn, ...), letting dupFD
// avoid importing syscall.RawConn's concrete package directly.
type syscallConner interface {
	SyscallConn() (syscall.RawConn, error)
}

func dupFD(conn net.Conn) (int, error) {
	sc, ok := conn.(syscallConner)
	if !ok {
		return -1, ErrUnsupportedConn
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return -1, errors.Wrap(err, "tcp: SyscallConn")
	}
	var newfd int
	var dupErr error
	ctrlErr := raw.Control(func(fd uintptr) {
		newfd, dupErr = unix.Dup(int(fd))
	})
	if ctrlErr != nil {
		return -1, errors.Wrap(ctrlErr, "tcp: raw control")
	}
	if dupErr != nil {
		return -1, errors.Wrap(dupErr, "tcp: dup")
	}
	return newfd, nil
}

func (c *Connection) applyOptions() {
	if c.opts.NoDelay {
		_ = unix.SetsockoptInt(c.fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
	}
	if c.opts.KeepAlive {
		_ = unix.SetsockoptInt(c.fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1)
	}
}

// State returns the current connection state.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LocalAddr/RemoteAddr are the trivial accessors supplementing spec §6.1's
// peer/local capability fields (spec_full §4.11).
func (c *Connection) LocalAddr() net.Addr  { return c.localAddr }
func (c *Connection) RemoteAddr() net.Addr { return c.remoteAddr }

// LastError returns the most recent native I/O error recorded against this
// connection, or nil.
func (c *Connection) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// NoDelay/KeepAlive/ReadTimeout report the stored configuration verbatim
// (spec §4.4).
func (c *Connection) NoDelay() bool             { return c.opts.NoDelay }
func (c *Connection) KeepAlive() bool           { return c.opts.KeepAlive }
func (c *Connection) ReadTimeout() time.Duration { return c.opts.ReadTimeout }

// SetNoDelay/SetKeepAlive push the option through to the native socket and
// record it, regardless of whether the native call succeeds.
func (c *Connection) SetNoDelay(v bool) error {
	c.opts.NoDelay = v
	if !v {
		return unix.SetsockoptInt(c.fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 0)
	}
	return unix.SetsockoptInt(c.fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
}

func (c *Connection) SetKeepAlive(v bool) error {
	c.opts.KeepAlive = v
	n := 0
	if v {
		n = 1
	}
	return unix.SetsockoptInt(c.fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, n)
}

func (c *Connection) SetReadTimeout(d time.Duration) {
	c.opts.ReadTimeout = d
}

// onEvent is invoked from the driver's loop goroutine whenever the fd
// becomes readable, writable, or errors/hangs up.
func (c *Connection) onEvent(kind reactor.EventKind) {
	if kind.Has(reactor.EventRead) {
		c.handleReadable()
	}
	if kind.Has(reactor.EventWrite) {
		c.handleWritable()
	}
	if kind.Has(reactor.EventError) {
		c.mu.Lock()
		c.failLocked(errors.New("tcp: socket error"))
		c.mu.Unlock()
	}
}

// handleReadable loops filling the ring (or the opt-in slice buffer) while
// the native socket has data and the destination has space, matching spec
// §4.4's ring-mode fill discipline, then resumes a waiting reader.
func (c *Connection) handleReadable() {
	c.mu.Lock()
	if c.state != StateConnected && c.state != StateActiveClose {
		c.mu.Unlock()
		return
	}

	for {
		var dst []byte
		if c.sliceOn {
			dst = c.slice[c.sliceN:]
			if len(dst) == 0 {
				break
			}
		} else {
			dst = c.ring.WriteSlice(4096)
		}

		n, err := unix.Read(c.fd, dst)
		if err == unix.EAGAIN {
			break
		}
		if err == unix.EINTR {
			continue
		}
		if n > 0 {
			if c.sliceOn {
				c.sliceN += n
			} else {
				c.ring.Advance(n)
			}
		}
		if err != nil {
			c.failLocked(errors.Wrap(err, "tcp: read"))
			break
		}
		if n == 0 {
			c.passiveCloseLocked()
			break
		}
		if c.sliceOn && c.sliceN == len(c.slice) {
			break
		}
	}

	reader := c.reader.task
	waiting := c.reader.waiting
	state := c.state
	c.mu.Unlock()

	if reader != nil && waiting && (c.dataAvailable() || state != StateConnected) {
		reader.Resume(nil)
	}
}

func (c *Connection) dataAvailable() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sliceOn {
		return c.sliceN > 0
	}
	return c.ring.Len() > 0
}

// handleWritable resumes a suspended writer task so it can retry its send
// loop; the connection doesn't buffer outbound data itself (spec §4.4 write
// path retries from the writer task, not from the native handler).
func (c *Connection) handleWritable() {
	c.mu.Lock()
	writer := c.writer.task
	waiting := c.writer.waiting
	c.mu.Unlock()
	if writer != nil && waiting {
		writer.Resume(nil)
	}
}

func (c *Connection) failLocked(err error) {
	if c.state == StateDisconnected {
		return
	}
	c.lastErr = err
	c.state = StateDisconnected
	c.log.WithError(err).Debug("connection failed")
}

func (c *Connection) passiveCloseLocked() {
	if c.state == StateConnected {
		c.state = StatePassiveClose
	}
}

// acquireReader/acquireWriter implement the token Acquire contract (spec
// §4.4): asserts the slot is free, a double-acquire is a programming error
// and panics per spec §7 taxonomy #1.
func (c *Connection) acquireReader(t *reactor.Task) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.reader.task != nil {
		panic("tcp: reader token already held")
	}
	c.reader.task = t
}

func (c *Connection) releaseReader() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reader.task = nil
	c.reader.waiting = false
}

func (c *Connection) acquireWriter(t *reactor.Task) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writer.task != nil {
		panic("tcp: writer token already held")
	}
	c.writer.task = t
}

func (c *Connection) releaseWriter() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writer.task = nil
	c.writer.waiting = false
}

// Read consumes buffered data from the ring into p, suspending the calling
// task when the buffer is empty and the connection is still open. Reading
// zero bytes (len(p)==0) returns (0, nil) immediately per spec §8.
func (c *Connection) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	t := reactor.NewTask()
	c.acquireReader(t)
	defer c.releaseReader()

	for {
		c.mu.Lock()
		if c.ring.Len() > 0 {
			n := c.ring.Read(p)
			c.mu.Unlock()
			return n, nil
		}
		state := c.state
		err := c.lastErr
		c.mu.Unlock()

		switch state {
		case StatePassiveClose, StateDisconnected:
			if err != nil {
				return 0, err
			}
			return 0, ErrClosed
		}

		c.mu.Lock()
		c.reader.waiting = true
		c.mu.Unlock()
		waitErr := t.Wait()
		c.mu.Lock()
		c.reader.waiting = false
		c.mu.Unlock()
		if waitErr != nil {
			return 0, waitErr
		}
	}
}

// ReadChunk switches the connection into slice mode for the next receive
// (spec §4.4): buf becomes the fill target instead of the ring, and ReadChunk
// returns as soon as at least one byte has landed in it. Bytes already
// buffered in the ring are not returned. Data that does not fit in buf stays
// in the socket for a later read; the connection does not fall back to ring
// mode mid-receive or copy the excess into the ring.
func (c *Connection) ReadChunk(buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	t := reactor.NewTask()
	c.acquireReader(t)
	defer c.releaseReader()

	c.mu.Lock()
	c.sliceOn = true
	c.slice = buf
	c.sliceN = 0
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.sliceOn = false
		c.slice = nil
		c.sliceN = 0
		c.mu.Unlock()
	}()

	for {
		c.mu.Lock()
		if c.sliceN > 0 {
			n := c.sliceN
			c.mu.Unlock()
			return n, nil
		}
		state := c.state
		err := c.lastErr
		c.mu.Unlock()

		switch state {
		case StatePassiveClose, StateDisconnected:
			if err != nil {
				return 0, err
			}
			return 0, ErrClosed
		}

		c.mu.Lock()
		c.reader.waiting = true
		c.mu.Unlock()
		waitErr := t.Wait()
		c.mu.Lock()
		c.reader.waiting = false
		c.mu.Unlock()
		if waitErr != nil {
			return 0, waitErr
		}
	}
}

// Write sends all of p, acquiring the writer token and suspending on partial
// progress (spec §4.4). Writing an empty slice is a no-op per spec §8.
func (c *Connection) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	t := reactor.NewTask()
	c.acquireWriter(t)
	defer c.releaseWriter()

	total := 0
	for total < len(p) {
		c.mu.Lock()
		state := c.state
		c.mu.Unlock()
		if state == StateActiveClose {
			return total, errors.New("tcp: write forbidden after close")
		}
		if state == StateDisconnected || state == StatePassiveClose {
			return total, ErrClosed
		}

		n, err := unix.Write(c.fd, p[total:])
		if err == unix.EAGAIN {
			if err2 := c.drv.Modify(c.fd, reactor.EventRead|reactor.EventWrite); err2 != nil {
				return total, errors.Wrap(err2, "tcp: rearm for write")
			}
			c.mu.Lock()
			c.writer.waiting = true
			c.mu.Unlock()
			waitErr := t.Wait()
			c.mu.Lock()
			c.writer.waiting = false
			c.mu.Unlock()
			_ = c.drv.Modify(c.fd, reactor.EventRead)
			if waitErr != nil {
				return total, waitErr
			}
			continue
		}
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			c.mu.Lock()
			c.failLocked(errors.Wrap(err, "tcp: write"))
			c.mu.Unlock()
			return total, err
		}
		total += n
	}
	return total, nil
}

// Flush is a no-op: writes are unbuffered native sends (spec §4.4).
func (c *Connection) Flush() error { return nil }

// Finalize flushes (a no-op here) so callers can use it symmetrically with
// Flush per spec §4.4.
func (c *Connection) Finalize() error { return c.Flush() }

// WaitForData blocks until data is available to read, the connection is no
// longer connected, or timeout elapses. A timeout of 0 means infinite, the
// documented compatibility quirk from spec §4.4/§9; Infinite spells that
// explicitly. Per spec §4.4 this arms a Timer-Queue timer and suspends on the
// reader's own reactor event rather than polling, mirroring
// udp.Connection.Recv's timer-backed deadline.
func (c *Connection) WaitForData(timeout time.Duration) (bool, error) {
	if timeout == 0 {
		timeout = Infinite
	}

	t := reactor.NewTask()
	c.acquireReader(t)
	defer c.releaseReader()

	var timerID reactor.TimerID
	var timedOut atomic.Bool
	if timeout != Infinite {
		timerID = c.drv.Timers.Create(func() {
			timedOut.Store(true)
			c.mu.Lock()
			waiting := c.reader.waiting
			c.mu.Unlock()
			if waiting {
				t.Resume(nil)
			}
		})
		c.drv.Timers.Acquire(timerID)
		defer c.drv.Timers.Destroy(timerID)
		if err := c.drv.Timers.Schedule(timerID, time.Now(), timeout, false); err != nil {
			return false, err
		}
	}

	for {
		c.mu.Lock()
		hasData := c.ring.Len() > 0 || c.sliceN > 0
		state := c.state
		c.mu.Unlock()

		if hasData {
			if timeout != Infinite {
				_ = c.drv.Timers.Unschedule(timerID)
			}
			return true, nil
		}
		if state != StateConnected && state != StateInitialized {
			return false, nil
		}
		if timedOut.Load() {
			return false, nil
		}

		c.mu.Lock()
		c.reader.waiting = true
		c.mu.Unlock()
		waitErr := t.Wait()
		c.mu.Lock()
		c.reader.waiting = false
		c.mu.Unlock()
		if waitErr != nil {
			return false, waitErr
		}
		if timedOut.Load() {
			return false, nil
		}
	}
}

// Close implements the close protocol in spec §4.4: drain any pending
// reader, mark ActiveClose, then kill the native connection. Racing closes
// are a no-op after the first.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		reader := c.reader.task
		waiting := c.reader.waiting
		c.mu.Unlock()
		if reader != nil && waiting {
			reader.Resume(ErrClosed)
		}

		c.mu.Lock()
		if c.state != StateDisconnected {
			c.state = StateActiveClose
		}
		writer := c.writer.task
		writerWaiting := c.writer.waiting
		c.mu.Unlock()
		if writer != nil && writerWaiting {
			writer.Resume(ErrClosed)
		}

		if uerr := c.drv.Unregister(c.fd); uerr != nil {
			c.log.WithError(uerr).Debug("unregister on close")
		}
		err = unix.Close(c.fd)

		c.mu.Lock()
		c.state = StateDisconnected
		c.mu.Unlock()
	})
	return err
}
