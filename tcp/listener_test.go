package tcp

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibe-d/vibe.d-sub004/reactor"
)

func newListenerTestDriver(t *testing.T) *reactor.Driver {
	t.Helper()
	drv, err := reactor.NewDriver(reactor.Config{})
	require.NoError(t, err)
	go drv.RunEventLoop()
	t.Cleanup(drv.ExitEventLoop)
	return drv
}

// TestListenerServe exercises Serve's accept-and-dispatch loop against a
// single connecting client.
func TestListenerServe(t *testing.T) {
	drv := newListenerTestDriver(t)

	ln, err := Listen(drv, "tcp", "127.0.0.1:0")
	require.NoError(t, err)

	handled := make(chan struct{}, 1)
	go ln.Serve(func(c *Connection) {
		defer c.Close()
		handled <- struct{}{}
	})

	client, err := Dial(drv, "tcp", ln.Addr().String())
	require.NoError(t, err)
	defer client.Close()

	select {
	case <-handled:
	case <-time.After(2 * time.Second):
		t.Fatal("serve did not dispatch accepted connection")
	}
	require.NoError(t, ln.Close())
}

// TestListenerDistribute exercises spec §4.5's distribute mode: several
// SO_REUSEPORT sockets bound to the same address, each serviced by its own
// worker, together accepting every connecting client.
func TestListenerDistribute(t *testing.T) {
	drv := newListenerTestDriver(t)

	ln, err := Listen(drv, "tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()

	const workers = 4
	const clients = 12
	var handledCount int32
	distributeDone := make(chan error, 1)
	go func() {
		distributeDone <- ln.Distribute(workers, func(c *Connection) {
			defer c.Close()
			atomic.AddInt32(&handledCount, 1)
		})
	}()

	// Distribute tears down the single socket and rebinds workers fresh
	// ones; give it a moment to finish that before dialing.
	time.Sleep(50 * time.Millisecond)

	for i := 0; i < clients; i++ {
		client, err := Dial(drv, "tcp", addr)
		require.NoError(t, err)
		client.Close()
	}

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&handledCount) == clients
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, ln.Close())

	select {
	case err := <-distributeDone:
		assert.Error(t, err) // Close causes every worker's Accept to fail
	case <-time.After(2 * time.Second):
		t.Fatal("distribute did not return after Close")
	}
}

// TestListenerAcceptAfterDistributeErrors documents that Accept/Serve are
// single-socket-mode only; once Distribute has fanned the listener out, they
// report a descriptive error instead of silently racing Distribute's own
// workers for a socket that's already gone.
func TestListenerAcceptAfterDistributeErrors(t *testing.T) {
	drv := newListenerTestDriver(t)

	ln, err := Listen(drv, "tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go ln.Distribute(2, func(c *Connection) { c.Close() })
	time.Sleep(50 * time.Millisecond)

	_, err = ln.Accept()
	assert.Error(t, err)
}
