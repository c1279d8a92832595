package apu

import (
	"context"
	"time"
)

// workerLoop is the single dispatch worker. It blocks on the wait set until
// a client is signaled, then pumps callbacks for every ready client in
// ascending slot order before re-entering the blocking wait. In-flight
// callback invocations are never preempted; the stop condition is checked
// between them.
func (s *System) workerLoop() {
	defer s.wg.Done()

	ctx := context.Background()
	s.logger.Debug("dispatch worker running")

	for s.state.Load() == stateRunning {
		index, ok := s.waits.Wait()
		if !ok {
			break
		}

		// Service the woken slot, then sweep upward opportunistically so
		// one wakeup covers a burst of simultaneously ready clients.
		pumped := 0
		for {
			s.mu.Lock()
			callback := s.clients[index].callback
			argBlock := s.clients[index].argBlock
			s.mu.Unlock()

			if callback != 0 {
				if _, err := s.proc.Execute(ctx, callback, uint64(argBlock)); err != nil {
					// Transient from the worker's point of view; the guest
					// and the execution engine own callback failures.
					s.logger.Error("guest callback failed",
						"slot", index,
						"callback", callback,
						"error", err)
					s.metrics.RecordDispatchError(s.slotLabels[index])
				} else {
					s.metrics.RecordCallbackDispatched(s.slotLabels[index])
				}
				pumped++
			}

			index++
			if index >= s.cfg.MaxClients || !s.waits.TryAcquire(index) {
				break
			}
		}
		s.metrics.RecordSweepLength(pumped)

		if s.state.Load() != stateRunning {
			break
		}

		if pumped == 0 {
			// Stale signal into an empty slot. Back off briefly so a rogue
			// signaler cannot spin the worker.
			s.metrics.RecordIdleWakeup()
			select {
			case <-time.After(s.cfg.IdleSleep):
			case <-s.stopc:
			}
		}
	}

	s.logger.Debug("dispatch worker exited")
}
