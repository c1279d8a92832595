package driver

import (
	"encoding/binary"
	"log/slog"
	"math"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/google/uuid"
	"github.com/smallnest/ringbuffer"

	"github.com/emucore/apu-go/internal/errors"
	"github.com/emucore/apu-go/internal/guest"
	"github.com/emucore/apu-go/internal/logging"
)

// bytes per rendered sample after conversion to S16
const malgoSampleBytes = 2

// MalgoDriver plays submitted frames on the host's default output device
// through miniaudio. Submitted big-endian float frames are converted to
// interleaved signed 16 bit PCM and queued; the device data callback drains
// the queue and signals the wake primitive once per consumed frame period.
type MalgoDriver struct {
	id     string
	slot   int
	wake   Wake
	mem    guest.Memory
	logger *slog.Logger

	ctx    *malgo.AllocatedContext
	device *malgo.Device

	mu sync.Mutex
	rb *ringbuffer.RingBuffer
	// pcm is the staging buffer for one converted frame
	pcm []byte
	// pulled counts bytes handed to the device since the last wake signal
	pulled int
}

// MalgoConfig tunes the playback driver factory.
type MalgoConfig struct {
	// QueueFrames is how many converted frames the ring buffer holds.
	// Defaults to 16.
	QueueFrames int
}

// NewMalgoFactory returns a factory producing miniaudio playback drivers.
// Context and device initialization happen per client so every slot owns
// its device handle exclusively.
func NewMalgoFactory(mem guest.Memory, cfg MalgoConfig) Factory {
	if cfg.QueueFrames <= 0 {
		cfg.QueueFrames = 16
	}
	return FactoryFunc(func(slot int, wake Wake) (Driver, error) {
		logger := logging.ForService("apu-driver")
		if logger == nil {
			logger = slog.Default().With("service", "apu-driver")
		}
		id := uuid.NewString()
		d := &MalgoDriver{
			id:     id,
			slot:   slot,
			wake:   wake,
			mem:    mem,
			logger: logger.With("driver", "malgo", "driver_id", id[:8], "slot", slot),
			rb:     ringbuffer.New(cfg.QueueFrames * FrameSamples * FrameChannels * malgoSampleBytes),
			pcm:    make([]byte, FrameSamples*FrameChannels*malgoSampleBytes),
		}

		malgoCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
		if err != nil {
			return nil, errors.New(err).
				Component("apu-driver").
				Category(errors.CategoryDriver).
				Context("slot", slot).
				Context("operation", "init_context").
				Build()
		}
		d.ctx = malgoCtx

		deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
		deviceConfig.Playback.Format = malgo.FormatS16
		deviceConfig.Playback.Channels = FrameChannels
		deviceConfig.SampleRate = wavSampleRate
		deviceConfig.Alsa.NoMMap = 1

		device, err := malgo.InitDevice(malgoCtx.Context, deviceConfig, malgo.DeviceCallbacks{
			Data: d.onOutput,
		})
		if err != nil {
			_ = malgoCtx.Uninit()
			return nil, errors.New(err).
				Component("apu-driver").
				Category(errors.CategoryDriver).
				Context("slot", slot).
				Context("operation", "init_device").
				Build()
		}
		d.device = device

		if err := device.Start(); err != nil {
			device.Uninit()
			_ = malgoCtx.Uninit()
			return nil, errors.New(err).
				Component("apu-driver").
				Category(errors.CategoryDriver).
				Context("slot", slot).
				Context("operation", "start_device").
				Build()
		}

		d.logger.Debug("malgo driver created")
		return d, nil
	})
}

// SubmitFrame converts one guest frame to S16 PCM and queues it for the
// output device. A full queue drops the frame rather than blocking the
// guest thread.
func (d *MalgoDriver) SubmitFrame(samplesPtr uint32) error {
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
	for i := 0; i < FrameSamples*FrameChannels; i++ {
		bits := binary.BigEndian.Uint32(data[i*4:])
		sample := clampSample(math.Float32frombits(bits))
		binary.LittleEndian.PutUint16(d.pcm[i*2:], uint16(int16(sample)))
	}
	if d.rb.Free() < len(d.pcm) {
		d.logger.Debug("playback queue full, frame dropped")
		return nil
	}
	_, err = d.rb.Write(d.pcm)
	return err
}

// onOutput runs on the miniaudio device thread. It fills the output buffer
// from the queue, zero-padding on underrun, and requests one callback pump
// per consumed frame worth of data.
func (d *MalgoDriver) onOutput(out, _ []byte, frameCount uint32) {
	d.mu.Lock()
	n, _ := d.rb.Read(out)
	for i := n; i < len(out); i++ {
		out[i] = 0
	}
	d.pulled += len(out)
	signals := 0
	for d.pulled >= FrameSamples*FrameChannels*malgoSampleBytes {
		d.pulled -= FrameSamples * FrameChannels * malgoSampleBytes
		signals++
	}
	d.mu.Unlock()

	if signals > 0 {
		d.wake.Signal(signals)
	}
}

// Shutdown stops the device and releases the miniaudio context.
func (d *MalgoDriver) Shutdown() error {
	if d.device != nil {
		_ = d.device.Stop()
		d.device.Uninit()
		d.device = nil
	}
	var err error
	if d.ctx != nil {
		err = d.ctx.Uninit()
		d.ctx.Free()
		d.ctx = nil
	}
	d.logger.Debug("malgo driver destroyed")
	return err
}
