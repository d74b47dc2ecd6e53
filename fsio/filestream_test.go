package fsio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibe-d/vibe.d-sub004/reactor"
)

func TestFileStreamSmallReadWrite(t *testing.T) {
	drv, err := reactor.NewDriver(reactor.Config{})
	require.NoError(t, err)
	defer drv.ExitEventLoop()

	path := filepath.Join(t.TempDir(), "small.txt")
	w, err := Open(drv, path, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o600)
	require.NoError(t, err)

	_, err = w.Write([]byte("hello world"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := Open(drv, path, os.O_RDONLY, 0)
	require.NoError(t, err)
	defer r.Close()

	buf := make([]byte, 64)
	n, err := r.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(buf[:n]))
}

func TestFileStreamLargeReadWrite(t *testing.T) {
	drv, err := reactor.NewDriver(reactor.Config{})
	require.NoError(t, err)
	defer drv.ExitEventLoop()

	path := filepath.Join(t.TempDir(), "large.bin")
	payload := make([]byte, largeIOThreshold+1024)
	for i := range payload {
		payload[i] = byte(i)
	}

	w, err := Open(drv, path, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o600)
	require.NoError(t, err)
	n, err := w.Write(payload)
	require.NoError(t, err)
	assert.Equal(t, len(payload), n)
	require.NoError(t, w.Close())

	r, err := Open(drv, path, os.O_RDONLY, 0)
	require.NoError(t, err)
	defer r.Close()

	buf := make([]byte, len(payload))
	n, err = r.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, payload, buf[:n])
}

func TestFileStreamClosedReturnsError(t *testing.T) {
	drv, err := reactor.NewDriver(reactor.Config{})
	require.NoError(t, err)
	defer drv.ExitEventLoop()

	path := filepath.Join(t.TempDir(), "closed.txt")
	f, err := Open(drv, path, os.O_CREATE|os.O_RDWR, 0o600)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = f.Write([]byte("x"))
	assert.ErrorIs(t, err, ErrClosed)
}
