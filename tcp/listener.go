package tcp

import (
	"context"
	"net"
	"sync"
	"syscall"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"github.com/vibe-d/vibe.d-sub004/internal/logx"
	"github.com/vibe-d/vibe.d-sub004/reactor"
)

// Listener is a TCP listen socket (spec §4.5), adopting new connections
// produced by a std net.Listener's blocking Accept into the reactor the same
// way Dial adopts an outbound connection.
type Listener struct {
	drv *reactor.Driver
	log *logrus.Entry

	mu  sync.Mutex
	ln  net.Listener   // the single listener used by Accept/Serve
	lns []net.Listener // replaces ln once Distribute fans out to per-worker sockets
}

// Listen binds addr; it does not accept by itself. Accept blocks the calling
// goroutine (net.Listener.Accept is blocking stdlib API with no non-blocking
// variant) and Serve/Distribute run accept loops; each accepted net.Conn is
// adopted into drv exactly as Dial does.
func Listen(drv *reactor.Driver, network, addr string) (*Listener, error) {
	ln, err := net.Listen(network, addr)
	if err != nil {
		return nil, errors.Wrap(err, "tcp: listen")
	}
	return &Listener{drv: drv, ln: ln, log: logx.For("tcp")}, nil
}

// listenReusePort binds addr with SO_REUSEPORT set before bind, so multiple
// sockets can share the same address and the kernel load-balances inbound
// connections across their accept queues.
func listenReusePort(network, addr string) (net.Listener, error) {
	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			var sockErr error
			if err := c.Control(func(fd uintptr) {
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
			}); err != nil {
				return err
			}
			return sockErr
		},
	}
	return lc.Listen(context.Background(), network, addr)
}

// Addr returns the bound address.
func (l *Listener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln != nil {
		return l.ln.Addr()
	}
	return l.lns[0].Addr()
}

// Close stops accepting and releases every listen socket owned by l (the
// single socket in Accept/Serve mode, or the full per-worker fan-out left
// behind by a prior Distribute call).
func (l *Listener) Close() error {
	l.mu.Lock()
	ln, lns := l.ln, l.lns
	l.ln, l.lns = nil, nil
	l.mu.Unlock()

	var firstErr error
	if ln != nil {
		firstErr = ln.Close()
	}
	for _, sub := range lns {
		if err := sub.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Accept blocks for the next inbound connection and adopts it into the
// listener's driver. Only valid in single-socket mode (before Distribute has
// replaced l.ln with a per-worker fan-out).
func (l *Listener) Accept(opts ...Option) (*Connection, error) {
	l.mu.Lock()
	ln := l.ln
	l.mu.Unlock()
	if ln == nil {
		return nil, errors.New("tcp: listener is in distribute mode")
	}
	nc, err := ln.Accept()
	if err != nil {
		return nil, errors.Wrap(err, "tcp: accept")
	}
	return adopt(l.drv, nc, buildOptions(opts...))
}

// Serve runs an accept loop, dispatching each accepted Connection to handle.
// It returns when Accept fails (typically because Close was called).
func (l *Listener) Serve(handle func(*Connection), opts ...Option) error {
	for {
		c, err := l.Accept(opts...)
		if err != nil {
			return err
		}
		go handle(c)
	}
}

// Distribute implements spec §4.5's distribute mode: it closes the listener's
// single bound socket and replaces it with `workers` independent
// SO_REUSEPORT sockets bound to the same address, each run by its own
// goroutine under an errgroup, so the kernel itself spreads inbound accepts
// across worker threads instead of a single accept loop fanning connections
// out over a channel. handle runs synchronously on whichever worker accepted
// the connection. Distribute returns once every worker's accept loop has
// failed (typically because Close was called, which closes every per-worker
// socket atomically).
func (l *Listener) Distribute(workers int, handle func(*Connection), opts ...Option) error {
	if workers < 1 {
		workers = 1
	}

	l.mu.Lock()
	if l.ln == nil {
		l.mu.Unlock()
		return errors.New("tcp: listener is already in distribute mode")
	}
	network := l.ln.Addr().Network()
	addr := l.ln.Addr().String()
	if err := l.ln.Close(); err != nil {
		l.mu.Unlock()
		return errors.Wrap(err, "tcp: close single socket before distribute")
	}
	l.ln = nil
	l.mu.Unlock()

	lns := make([]net.Listener, 0, workers)
	for i := 0; i < workers; i++ {
		ln, err := listenReusePort(network, addr)
		if err != nil {
			for _, sub := range lns {
				sub.Close()
			}
			return errors.Wrapf(err, "tcp: distribute worker %d listen", i)
		}
		lns = append(lns, ln)
	}

	l.mu.Lock()
	l.lns = lns
	l.mu.Unlock()

	var g errgroup.Group
	for _, ln := range lns {
		ln := ln
		g.Go(func() error {
			for {
				nc, err := ln.Accept()
				if err != nil {
					return err
				}
				c, err := adopt(l.drv, nc, buildOptions(opts...))
				if err != nil {
					l.log.WithError(err).Debug("distribute: adopt failed")
					nc.Close()
					continue
				}
				handle(c)
			}
		})
	}
	return g.Wait()
}
