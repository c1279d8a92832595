package apu

import (
	"sync"

	"github.com/emucore/apu-go/internal/apu/driver"
)

// WaitSet multiplexes the per-slot counting semaphores and the shutdown
// signal behind a single condition variable. The dispatch worker blocks in
// Wait with no polling while every count is zero; drivers and registration
// raise counts through Signal. Semaphore identity is the slot index and
// persists across registration cycles.
type WaitSet struct {
	mu       sync.Mutex
	cond     *sync.Cond
	counts   []int
	maxCount int
	shutdown bool
}

// NewWaitSet creates a wait set for n slots, each with the given maximum
// queued count.
func NewWaitSet(n, maxCount int) *WaitSet {
	w := &WaitSet{
		counts:   make([]int, n),
		maxCount: maxCount,
	}
	w.cond = sync.NewCond(&w.mu)
	return w
}

// Signal raises the count of the given slot by up to n, saturating at the
// per-slot maximum. It returns the number of permits actually granted.
func (w *WaitSet) Signal(slot, n int) int {
	if n <= 0 {
		return 0
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	granted := n
	if room := w.maxCount - w.counts[slot]; granted > room {
		granted = room
	}
	if granted > 0 {
		w.counts[slot] += granted
		w.cond.Broadcast()
	}
	return granted
}

// TryAcquire consumes one permit from the slot without blocking. It reports
// whether a permit was available.
func (w *WaitSet) TryAcquire(slot int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.counts[slot] == 0 {
		return false
	}
	w.counts[slot]--
	return true
}

// Drain consumes every pending permit of the slot and returns how many were
// drained. It never blocks.
func (w *WaitSet) Drain(slot int) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := w.counts[slot]
	w.counts[slot] = 0
	return n
}

// Count returns the current permit count of the slot.
func (w *WaitSet) Count(slot int) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.counts[slot]
}

// Wait blocks until the shutdown signal is raised or at least one slot has a
// pending permit. On success it consumes one permit from the lowest-index
// ready slot and returns its index with ok true. When shut down it returns
// ok false, regardless of pending permits: no dispatch may begin after
// shutdown has been raised.
func (w *WaitSet) Wait() (slot int, ok bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for {
		if w.shutdown {
			return 0, false
		}
		for i := range w.counts {
			if w.counts[i] > 0 {
				w.counts[i]--
				return i, true
			}
		}
		w.cond.Wait()
	}
}

// Shutdown raises the shutdown signal and wakes any waiter. Idempotent.
func (w *WaitSet) Shutdown() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.shutdown = true
	w.cond.Broadcast()
}

// Reset clears the shutdown signal so the wait set can serve another worker
// lifecycle. Permit counts are left untouched.
func (w *WaitSet) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.shutdown = false
}

// Wake returns the wake primitive bound to the given slot. This is the only
// way slot semaphores are exposed outside the pool.
func (w *WaitSet) Wake(slot int) driver.Wake {
	return slotWake{ws: w, slot: slot}
}

type slotWake struct {
	ws   *WaitSet
	slot int
}

func (sw slotWake) Signal(n int) int {
	return sw.ws.Signal(sw.slot, n)
}
