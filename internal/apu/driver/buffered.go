package driver

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/smallnest/ringbuffer"

	"github.com/emucore/apu-go/internal/errors"
	"github.com/emucore/apu-go/internal/guest"
	"github.com/emucore/apu-go/internal/logging"
)

// One frame of 256 samples at 48kHz.
const framePeriod = time.Duration(FrameSamples) * time.Second / 48000

// Sink receives rendered frames from a BufferedDriver. The slice is only
// valid for the duration of the call.
type Sink func(frame []byte)

// BufferedDriver queues submitted frames in a ring buffer and drains them
// from a pump goroutine at the hardware frame cadence. Each pump tick
// signals the wake primitive, modeling an output device that consumed one
// period and wants more data.
type BufferedDriver struct {
	id     string
	slot   int
	wake   Wake
	mem    guest.Memory
	sink   Sink
	logger *slog.Logger

	mu sync.Mutex
	rb *ringbuffer.RingBuffer

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// BufferedConfig tunes a buffered driver factory.
type BufferedConfig struct {
	// QueueFrames is how many frames the ring buffer holds. Defaults to 8.
	QueueFrames int
	// Period overrides the pump cadence. Defaults to the hardware frame
	// period (256 samples at 48kHz).
	Period time.Duration
	// Sink receives each drained frame. Optional.
	Sink Sink
}

// NewBufferedFactory returns a factory producing BufferedDriver instances
// that read frame data from the given guest memory.
func NewBufferedFactory(mem guest.Memory, cfg BufferedConfig) Factory {
	if cfg.QueueFrames <= 0 {
		cfg.QueueFrames = 8
	}
	if cfg.Period <= 0 {
		cfg.Period = framePeriod
	}
	return FactoryFunc(func(slot int, wake Wake) (Driver, error) {
		logger := logging.ForService("apu-driver")
		if logger == nil {
			logger = slog.Default().With("service", "apu-driver")
		}
		id := uuid.NewString()
		d := &BufferedDriver{
			id:     id,
			slot:   slot,
			wake:   wake,
			mem:    mem,
			sink:   cfg.Sink,
			logger: logger.With("driver", "buffered", "driver_id", id[:8], "slot", slot),
			rb:     ringbuffer.New(cfg.QueueFrames * FrameBytes),
			done:   make(chan struct{}),
		}
		d.wg.Add(1)
		go d.pump(cfg.Period)
		d.logger.Debug("buffered driver created", "queue_frames", cfg.QueueFrames)
		return d, nil
	})
}

// SubmitFrame copies one frame out of guest memory into the queue.
func (d *BufferedDriver) SubmitFrame(samplesPtr uint32) error {
	data, err := d.mem.Bytes(samplesPtr, FrameBytes)
	if err != nil {
		return errors.New(err).
			Component("apu-driver").
			Category(errors.CategoryGuestMem).
			Context("samples_ptr", samplesPtr).
			Build()
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.rb.Free() < FrameBytes {
		return errors.Newf("frame queue full").
			Component("apu-driver").
			Category(errors.CategoryAudio).
			Context("slot", d.slot).
			Build()
	}
	if _, err := d.rb.Write(data); err != nil {
		return errors.New(err).
			Component("apu-driver").
			Category(errors.CategoryAudio).
			Context("slot", d.slot).
			Build()
	}
	return nil
}

// pump drains one frame per tick and keeps the callback cadence alive.
func (d *BufferedDriver) pump(period time.Duration) {
	defer d.wg.Done()

	frame := make([]byte, FrameBytes)
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-d.done:
			return
		case <-ticker.C:
			d.mu.Lock()
			ready := d.rb.Length() >= FrameBytes
			if ready {
				if _, err := d.rb.Read(frame); err != nil {
					ready = false
				}
			}
			d.mu.Unlock()

			if ready && d.sink != nil {
				d.sink(frame)
			}
			// The device consumed a period; ask for the next pump whether
			// or not a frame was queued, so a slow guest still gets woken.
			d.wake.Signal(1)
		}
	}
}

// Shutdown stops the pump goroutine and drops any queued frames. Safe to
// call more than once.
func (d *BufferedDriver) Shutdown() error {
	d.closeOnce.Do(func() {
		close(d.done)
		d.wg.Wait()
		d.mu.Lock()
		dropped := d.rb.Length() / FrameBytes
		d.rb.Reset()
		d.mu.Unlock()
		d.logger.Debug("buffered driver destroyed", "dropped_frames", dropped)
	})
	return nil
}
