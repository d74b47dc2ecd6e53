package udp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibe-d/vibe.d-sub004/reactor"
)

func newTestDriver(t *testing.T) *reactor.Driver {
	t.Helper()
	d, err := reactor.NewDriver(reactor.Config{})
	require.NoError(t, err)
	go d.RunEventLoop()
	t.Cleanup(d.ExitEventLoop)
	return d
}

func TestUDPSendRecvRoundTrip(t *testing.T) {
	drv := newTestDriver(t)

	server, err := Listen(drv, "udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer server.Close()

	client, err := Dial(drv, "udp", server.LocalAddr().String())
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Send([]byte("hello"))
	require.NoError(t, err)

	buf := make([]byte, 32)
	n, err := server.Recv(buf, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))
}

func TestUDPRecvTimeout(t *testing.T) {
	drv := newTestDriver(t)

	server, err := Listen(drv, "udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer server.Close()

	buf := make([]byte, 32)
	_, err = server.Recv(buf, 50*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestUDPSetSockOpts(t *testing.T) {
	drv := newTestDriver(t)

	server, err := Listen(drv, "udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer server.Close()

	assert.NoError(t, server.SetBroadcast(true))
	assert.NoError(t, server.SetMulticastLoop(true))
	assert.NoError(t, server.SetMulticastLoop(false))
}

func TestUDPConnectionBusy(t *testing.T) {
	drv := newTestDriver(t)

	server, err := Listen(drv, "udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer server.Close()

	done := make(chan struct{})
	go func() {
		buf := make([]byte, 32)
		server.Recv(buf, 200*time.Millisecond)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	buf := make([]byte, 32)
	_, err = server.Recv(buf, 0)
	assert.ErrorIs(t, err, ErrBusy)

	<-done
}
