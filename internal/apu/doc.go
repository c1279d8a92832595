// Package apu implements the audio client dispatcher of the emulator: a
// fixed-capacity pool of guest-registered audio clients multiplexed onto a
// single background worker that pumps per-client completion callbacks back
// into guest code.
//
// # Architecture
//
//   - Slot pool: a fixed array of client records plus a FIFO free-list of
//     indices, serialized by one mutex. A slot is either free or holds
//     exactly one live driver and one valid callback pair.
//   - Wait set: one counting semaphore per slot plus a shutdown signal,
//     multiplexed behind a condition variable. Drivers raise their slot's
//     semaphore to request callback pumps.
//   - Dispatch worker: a single goroutine blocking on the wait set. A wakeup
//     services the lowest ready slot, then sweeps upward non-blocking so a
//     burst of ready clients costs one blocking round-trip.
//
// # Concurrency
//
// RegisterClient, UnregisterClient and SubmitFrame may be called from any
// number of guest execution threads; their critical sections are short and
// never block on dispatch work. Callback invocations run outside the lock.
// Shutdown is the only blocking join point: it returns once the worker has
// observably exited, and no callback begins after it has been raised.
//
// Within one wakeup sweep callbacks fire in ascending slot order. No
// ordering is guaranteed across registrations that recycle an index.
package apu
