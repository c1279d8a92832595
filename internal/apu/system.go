package apu

import (
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/emucore/apu-go/internal/apu/driver"
	"github.com/emucore/apu-go/internal/guest"
	"github.com/emucore/apu-go/internal/logging"
	"github.com/emucore/apu-go/internal/observability/metrics"
)

// Worker states.
const (
	stateStopped int32 = iota
	stateRunning
	stateStopping
)

// Config carries the fixed capacity constants of the audio system. The
// values are read once in New and are not runtime-reconfigurable.
type Config struct {
	// MaxClients is the maximum number of concurrently registered clients.
	MaxClients int
	// MaxQueuedFrames bounds the per-client semaphore count.
	MaxQueuedFrames int
	// IdleSleep is the worker back-off after a wakeup that pumped nothing.
	IdleSleep time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxClients <= 0 {
		c.MaxClients = 8
	}
	if c.MaxQueuedFrames <= 0 {
		c.MaxQueuedFrames = 64
	}
	if c.IdleSleep <= 0 {
		c.IdleSleep = 500 * time.Millisecond
	}
	return c
}

// client is one occupied slot: exactly one live driver and one valid
// callback pair. A zero callback together with a nil driver means the slot
// is free.
type client struct {
	driver      driver.Driver
	callback    guest.Address
	callbackArg uint32
	// argBlock is a 4 byte guest heap allocation holding the byte-swapped
	// callback argument. Its lifetime is tied to the client record.
	argBlock guest.Address
}

// System multiplexes registered audio clients onto a single dispatch worker
// that pumps guest callbacks through the execution engine. All methods are
// safe for concurrent use from guest execution threads.
type System struct {
	cfg     Config
	mem     guest.Memory
	proc    guest.Processor
	factory driver.Factory

	// mu serializes every access to clients and unused. No slot state is
	// observed or mutated without it.
	mu      sync.Mutex
	clients []client
	// unused is the FIFO free-list of slot indices. Its length plus the
	// occupied count always equals cfg.MaxClients.
	unused []int

	waits *WaitSet
	state atomic.Int32
	// lifecycle serializes Setup and Shutdown; stopc is only assigned and
	// closed under it, so a racing pair cannot observe a half-started worker.
	lifecycle sync.Mutex
	wg        sync.WaitGroup
	// stopc cuts the worker's idle sleep short on shutdown.
	stopc chan struct{}

	logger  *slog.Logger
	metrics *metrics.APUMetrics
	// slotLabels caches the metric label per slot index.
	slotLabels []string
}

// Option configures optional System collaborators.
type Option func(*System)

// WithLogger overrides the default service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *System) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics attaches Prometheus metrics to the system.
func WithMetrics(m *metrics.APUMetrics) Option {
	return func(s *System) {
		s.metrics = m
	}
}

// New creates an audio system with the given collaborators. The worker is
// not started until Setup is called.
func New(cfg Config, mem guest.Memory, proc guest.Processor, factory driver.Factory, opts ...Option) *System {
	cfg = cfg.withDefaults()

	logger := logging.ForService("apu")
	if logger == nil {
		logger = slog.Default().With("service", "apu")
	}

	s := &System{
		cfg:        cfg,
		mem:        mem,
		proc:       proc,
		factory:    factory,
		clients:    make([]client, cfg.MaxClients),
		unused:     make([]int, 0, cfg.MaxClients),
		waits:      NewWaitSet(cfg.MaxClients, cfg.MaxQueuedFrames),
		logger:     logger,
		slotLabels: make([]string, cfg.MaxClients),
	}
	for i := 0; i < cfg.MaxClients; i++ {
		s.unused = append(s.unused, i)
		s.slotLabels[i] = strconv.Itoa(i)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Setup starts the dispatch worker. It may be called once per Stopped state.
func (s *System) Setup() error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if !s.state.CompareAndSwap(stateStopped, stateRunning) {
		return ErrAlreadyRunning
	}

	s.waits.Reset()
	s.stopc = make(chan struct{})
	s.wg.Add(1)
	go s.workerLoop()

	s.logger.Info("audio system started",
		"max_clients", s.cfg.MaxClients,
		"max_queued_frames", s.cfg.MaxQueuedFrames)
	return nil
}

// Shutdown stops the dispatch worker and blocks until it has exited. This
// is the one designed synchronous join point; calling it again after the
// first return is an error.
func (s *System) Shutdown() error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if !s.state.CompareAndSwap(stateRunning, stateStopping) {
		return ErrNotRunning
	}

	close(s.stopc)
	s.waits.Shutdown()
	s.wg.Wait()
	s.state.Store(stateStopped)

	s.logger.Info("audio system stopped")
	return nil
}

// RegisterClient claims a free slot for a new audio client. The callback is
// the guest entry point pumped by the dispatch worker; callbackArg is stored
// byte-swapped in a small guest heap allocation whose address becomes the
// callback's single argument. The returned slot index is the client's handle
// for all subsequent operations.
func (s *System) RegisterClient(callback guest.Address, callbackArg uint32) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.unused) == 0 {
		s.metrics.RecordRegistration("no_capacity")
		return 0, ErrNoFreeSlots
	}
	index := s.unused[0]

	// Pre-fill the slot semaphore so the client is dispatchable before its
	// first frame. The driver takes over the cadence from here.
	s.waits.Signal(index, s.cfg.MaxQueuedFrames)

	drv, err := s.factory.NewDriver(index, s.waits.Wake(index))
	if err != nil {
		s.waits.Drain(index)
		s.metrics.RecordRegistration("driver_error")
		s.logger.Error("driver creation failed",
			"slot", index,
			"error", err)
		return 0, driverInitError(index, err)
	}

	ptr, err := s.mem.SystemHeapAlloc(4)
	if err != nil {
		s.waits.Drain(index)
		if derr := drv.Shutdown(); derr != nil {
			s.logger.Error("driver teardown failed during rollback",
				"slot", index,
				"error", derr)
		}
		s.metrics.RecordRegistration("alloc_error")
		return 0, argBlockError(index, err)
	}
	if err := s.mem.WriteUint32(ptr, callbackArg); err != nil {
		s.waits.Drain(index)
		if derr := drv.Shutdown(); derr != nil {
			s.logger.Error("driver teardown failed during rollback",
				"slot", index,
				"error", derr)
		}
		if ferr := s.mem.SystemHeapFree(ptr); ferr != nil {
			s.logger.Error("arg block free failed during rollback",
				"slot", index,
				"error", ferr)
		}
		s.metrics.RecordRegistration("alloc_error")
		return 0, argBlockError(index, err)
	}

	s.unused = s.unused[1:]
	s.clients[index] = client{
		driver:      drv,
		callback:    callback,
		callbackArg: callbackArg,
		argBlock:    ptr,
	}

	s.metrics.RecordRegistration("ok")
	s.metrics.UpdateRegisteredClients(s.cfg.MaxClients - len(s.unused))
	s.logger.Info("client registered",
		"slot", index,
		"callback", callback)
	return index, nil
}

// UnregisterClient destroys the client's driver, releases its arg block and
// returns the slot to the free-list. Afterwards the slot semaphore is
// drained so a stale signal cannot dispatch into the now-empty slot.
func (s *System) UnregisterClient(index int) error {
	s.mu.Lock()
	if index < 0 || index >= s.cfg.MaxClients {
		s.mu.Unlock()
		return ErrInvalidSlot
	}
	c := s.clients[index]
	if c.driver == nil {
		s.mu.Unlock()
		return ErrSlotNotRegistered
	}

	if err := c.driver.Shutdown(); err != nil {
		s.logger.Error("driver teardown failed",
			"slot", index,
			"error", err)
	}
	if err := s.mem.SystemHeapFree(c.argBlock); err != nil {
		s.logger.Error("arg block free failed",
			"slot", index,
			"error", err)
	}
	s.clients[index] = client{}
	s.unused = append(s.unused, index)
	occupied := s.cfg.MaxClients - len(s.unused)
	s.mu.Unlock()

	// Best-effort, bounded by the semaphore count; never blocks.
	drained := s.waits.Drain(index)

	s.metrics.RecordUnregistration()
	s.metrics.UpdateRegisteredClients(occupied)
	s.logger.Info("client unregistered",
		"slot", index,
		"drained_signals", drained)
	return nil
}

// SubmitFrame forwards one frame of samples to the slot's driver. The core
// does not buffer frames itself; queuing, if any, is inside the driver.
func (s *System) SubmitFrame(index int, samplesPtr guest.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= s.cfg.MaxClients {
		return ErrInvalidSlot
	}
	c := s.clients[index]
	if c.driver == nil {
		return ErrSlotNotRegistered
	}

	if err := c.driver.SubmitFrame(samplesPtr); err != nil {
		s.metrics.RecordSubmitError(s.slotLabels[index])
		return err
	}
	s.metrics.RecordFrameSubmitted(s.slotLabels[index])
	return nil
}

// Running reports whether the dispatch worker is active.
func (s *System) Running() bool {
	return s.state.Load() == stateRunning
}

// RegisteredClients returns the number of occupied slots.
func (s *System) RegisteredClients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.MaxClients - len(s.unused)
}

// WaitSet exposes the multi-wait primitive for tests and diagnostics.
func (s *System) WaitSet() *WaitSet {
	return s.waits
}
