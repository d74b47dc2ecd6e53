package fsio

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectoryWatcherReportsCreate(t *testing.T) {
	dir := t.TempDir()
	w, err := WatchDir(dir)
	require.NoError(t, err)
	defer w.Kill()

	changes := make(chan Change, 8)
	go w.Run(func(c Change) { changes <- c })

	path := filepath.Join(dir, "new-file.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

	select {
	case c := <-changes:
		assert.Equal(t, Created, c.Kind)
		assert.Equal(t, path, c.Path)
	case <-time.After(2 * time.Second):
		t.Fatal("no change delivered")
	}
}

func TestDirectoryWatcherKillStopsRun(t *testing.T) {
	dir := t.TempDir()
	w, err := WatchDir(dir)
	require.NoError(t, err)

	runDone := make(chan struct{})
	go func() {
		w.Run(func(Change) {})
		close(runDone)
	}()

	require.NoError(t, w.Kill())

	select {
	case <-runDone:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Kill")
	}
}
