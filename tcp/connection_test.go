package tcp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibe-d/vibe.d-sub004/reactor"
)

// TestConnectionEchoRoundTrip exercises spec §8 scenario 1: a client writes
// a message, a server echoes it back, the client reads the echo.
func TestConnectionEchoRoundTrip(t *testing.T) {
	drv, err := reactor.NewDriver(reactor.Config{})
	require.NoError(t, err)
	defer drv.ExitEventLoop()
	go drv.RunEventLoop()

	ln, err := Listen(drv, "tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	serverDone := make(chan error, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			serverDone <- err
			return
		}
		defer conn.Close()
		buf := make([]byte, 64)
		n, err := conn.Read(buf)
		if err != nil {
			serverDone <- err
			return
		}
		_, err = conn.Write(buf[:n])
		serverDone <- err
	}()

	client, err := Dial(drv, "tcp", ln.Addr().String())
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Write([]byte("ping"))
	require.NoError(t, err)

	reply := make([]byte, 64)
	n, err := client.Read(reply)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(reply[:n]))

	select {
	case err := <-serverDone:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server goroutine did not finish")
	}
}

// TestConnectionReadAfterPeerClose exercises the passive-close transition:
// once the peer closes, Read must return ErrClosed rather than hang.
func TestConnectionReadAfterPeerClose(t *testing.T) {
	drv, err := reactor.NewDriver(reactor.Config{})
	require.NoError(t, err)
	defer drv.ExitEventLoop()
	go drv.RunEventLoop()

	ln, err := Listen(drv, "tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		conn.Close()
	}()

	client, err := Dial(drv, "tcp", ln.Addr().String())
	require.NoError(t, err)
	defer client.Close()

	buf := make([]byte, 16)
	_, err = client.Read(buf)
	assert.Error(t, err)
}

// TestConnectionWaitForDataTimeout exercises spec §8 scenario 6: WaitForData
// must return false, not block forever, when no data arrives before the
// deadline.
func TestConnectionWaitForDataTimeout(t *testing.T) {
	drv, err := reactor.NewDriver(reactor.Config{})
	require.NoError(t, err)
	defer drv.ExitEventLoop()
	go drv.RunEventLoop()

	ln, err := Listen(drv, "tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		time.Sleep(500 * time.Millisecond)
	}()

	client, err := Dial(drv, "tcp", ln.Addr().String())
	require.NoError(t, err)
	defer client.Close()

	ok, err := client.WaitForData(50 * time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConnectionOptionsReportedVerbatim(t *testing.T) {
	drv, err := reactor.NewDriver(reactor.Config{})
	require.NoError(t, err)
	defer drv.ExitEventLoop()
	go drv.RunEventLoop()

	ln, err := Listen(drv, "tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err == nil {
			defer conn.Close()
			time.Sleep(100 * time.Millisecond)
		}
	}()

	client, err := Dial(drv, "tcp", ln.Addr().String(), WithNoDelay(true), WithReadTimeout(time.Second))
	require.NoError(t, err)
	defer client.Close()

	assert.True(t, client.NoDelay())
	assert.Equal(t, time.Second, client.ReadTimeout())
}
