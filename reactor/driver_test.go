package reactor

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDriverRegisterDispatchesReadable exercises Register/ProcessEvents
// against a real pipe fd pair, the smallest native primitive that can stand
// in for a socket for poller testing purposes.
func TestDriverRegisterDispatchesReadable(t *testing.T) {
	d, err := NewDriver(Config{})
	require.NoError(t, err)
	defer d.ExitEventLoop()

	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	fired := make(chan EventKind, 1)
	require.NoError(t, d.Register(int(r.Fd()), EventRead, func(k EventKind) {
		fired <- k
	}))

	go d.RunEventLoop()

	_, err = w.Write([]byte("hi"))
	require.NoError(t, err)

	select {
	case k := <-fired:
		assert.True(t, k.Has(EventRead))
	case <-time.After(2 * time.Second):
		t.Fatal("read event was not dispatched")
	}
}

func TestDriverStats(t *testing.T) {
	d, err := NewDriver(Config{})
	require.NoError(t, err)
	defer d.ExitEventLoop()

	id := d.Timers.Create(nil)
	require.NoError(t, d.Timers.Schedule(id, time.Now(), time.Minute, false))

	go d.RunEventLoop()

	st := d.Stats()
	assert.Equal(t, 1, st.PendingTimers)
}
