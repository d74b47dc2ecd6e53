package reactor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestManualEventCrossGoroutineWake mirrors spec §8 scenario 3: one
// goroutine waits on an event, another emits it, the waiter must observe a
// strictly greater emit count and wake promptly.
func TestManualEventCrossGoroutineWake(t *testing.T) {
	e := NewManualEvent()
	defer e.Close()

	ref := e.EmitCount()
	woke := make(chan uint32, 1)

	go func() {
		woke <- e.Wait(ref)
	}()

	// Give the waiter a chance to register before emitting.
	time.Sleep(10 * time.Millisecond)
	e.Emit()

	select {
	case got := <-woke:
		assert.Greater(t, got, ref)
	case <-time.After(time.Second):
		t.Fatal("waiter did not wake within one second")
	}
}

func TestManualEventWaitTimeout(t *testing.T) {
	e := NewManualEvent()
	defer e.Close()

	_, ok := e.WaitTimeout(e.EmitCount(), 20*time.Millisecond)
	assert.False(t, ok)
}

func TestManualEventImmediateReturn(t *testing.T) {
	e := NewManualEvent()
	defer e.Close()

	e.Emit()
	count, ok := e.WaitTimeout(0, time.Second)
	require.True(t, ok)
	assert.Equal(t, uint32(1), count)
}

func TestManualEventIDRecycled(t *testing.T) {
	e1 := NewManualEvent()
	id1 := e1.ID()
	e1.Close()

	e2 := NewManualEvent()
	defer e2.Close()
	assert.Equal(t, id1, e2.ID())
}
