package apu

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitSetSignalSaturates(t *testing.T) {
	w := NewWaitSet(4, 3)

	assert.Equal(t, 3, w.Signal(0, 5))
	assert.Equal(t, 3, w.Count(0))

	// already at the bound
	assert.Equal(t, 0, w.Signal(0, 1))
	assert.Equal(t, 3, w.Count(0))

	assert.Equal(t, 0, w.Signal(1, 0))
	assert.Equal(t, 0, w.Count(1))
}

func TestWaitSetTryAcquireAndDrain(t *testing.T) {
	w := NewWaitSet(2, 8)

	assert.False(t, w.TryAcquire(0))

	w.Signal(0, 3)
	assert.True(t, w.TryAcquire(0))
	assert.Equal(t, 2, w.Count(0))

	assert.Equal(t, 2, w.Drain(0))
	assert.Equal(t, 0, w.Count(0))
	assert.False(t, w.TryAcquire(0))
	assert.Equal(t, 0, w.Drain(0))
}

func TestWaitSetWaitReturnsLowestReady(t *testing.T) {
	w := NewWaitSet(6, 8)
	w.Signal(5, 1)
	w.Signal(2, 1)

	slot, ok := w.Wait()
	require.True(t, ok)
	assert.Equal(t, 2, slot)

	slot, ok = w.Wait()
	require.True(t, ok)
	assert.Equal(t, 5, slot)

	assert.Equal(t, 0, w.Count(2))
	assert.Equal(t, 0, w.Count(5))
}

func TestWaitSetWaitBlocksUntilSignaled(t *testing.T) {
	w := NewWaitSet(2, 8)

	got := make(chan int, 1)
	go func() {
		slot, ok := w.Wait()
		if ok {
			got <- slot
		}
	}()

	select {
	case <-got:
		t.Fatal("Wait returned before any signal")
	case <-time.After(20 * time.Millisecond):
	}

	w.Signal(1, 1)
	select {
	case slot := <-got:
		assert.Equal(t, 1, slot)
	case <-time.After(time.Second):
		t.Fatal("Wait did not wake on signal")
	}
}

func TestWaitSetShutdownWinsOverPermits(t *testing.T) {
	w := NewWaitSet(2, 8)
	w.Signal(0, 1)
	w.Shutdown()

	_, ok := w.Wait()
	assert.False(t, ok)

	// idempotent
	w.Shutdown()
	_, ok = w.Wait()
	assert.False(t, ok)
}

func TestWaitSetShutdownWakesWaiter(t *testing.T) {
	w := NewWaitSet(1, 8)

	done := make(chan bool, 1)
	go func() {
		_, ok := w.Wait()
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	w.Shutdown()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Wait did not wake on shutdown")
	}
}

func TestWaitSetResetAllowsReuse(t *testing.T) {
	w := NewWaitSet(2, 8)

	w.Shutdown()
	_, ok := w.Wait()
	require.False(t, ok)

	w.Reset()
	w.Signal(1, 1)
	slot, ok := w.Wait()
	require.True(t, ok)
	assert.Equal(t, 1, slot)
}

func TestWakeRoutesToSlot(t *testing.T) {
	w := NewWaitSet(4, 2)

	wake := w.Wake(3)
	assert.Equal(t, 2, wake.Signal(5))
	assert.Equal(t, 2, w.Count(3))
	assert.Equal(t, 0, w.Count(0))
}
