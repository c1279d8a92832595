package driver

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/google/uuid"

	"github.com/emucore/apu-go/internal/errors"
	"github.com/emucore/apu-go/internal/guest"
	"github.com/emucore/apu-go/internal/logging"
)

const (
	wavSampleRate = 48000
	wavBitDepth   = 16
)

// WavDriver captures every submitted frame to a WAV file. Frames are
// consumed synchronously, so each submission immediately requests the next
// callback pump. Intended for debugging and test capture.
type WavDriver struct {
	id     string
	slot   int
	wake   Wake
	mem    guest.Memory
	logger *slog.Logger

	mu   sync.Mutex
	file *os.File
	enc  *wav.Encoder
	buf  *audio.IntBuffer
}

// NewWavFactory returns a factory whose drivers write capture files named
// after their slot into dir.
func NewWavFactory(mem guest.Memory, dir string) Factory {
	return FactoryFunc(func(slot int, wake Wake) (Driver, error) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.New(err).
				Component("apu-driver").
				Category(errors.CategoryFileIO).
				Context("dir", dir).
				Build()
		}
		id := uuid.NewString()
		path := filepath.Join(dir, fmt.Sprintf("client-%d-%s.wav", slot, id[:8]))
		f, err := os.Create(path)
		if err != nil {
			return nil, errors.New(err).
				Component("apu-driver").
				Category(errors.CategoryFileIO).
				Context("path", path).
				Build()
		}

		logger := logging.ForService("apu-driver")
		if logger == nil {
			logger = slog.Default().With("service", "apu-driver")
		}
		d := &WavDriver{
			id:     id,
			slot:   slot,
			wake:   wake,
			mem:    mem,
			logger: logger.With("driver", "wav", "driver_id", id[:8], "slot", slot),
			file:   f,
			enc:    wav.NewEncoder(f, wavSampleRate, wavBitDepth, FrameChannels, 1),
			buf: &audio.IntBuffer{
				Data:           make([]int, FrameSamples*FrameChannels),
				Format:         &audio.Format{NumChannels: FrameChannels, SampleRate: wavSampleRate},
				SourceBitDepth: wavBitDepth,
			},
		}
		d.logger.Debug("wav driver created", "path", path)
		return d, nil
	})
}

// SubmitFrame decodes the big-endian float frame from guest memory and
// appends it to the capture file.
func (d *WavDriver) SubmitFrame(samplesPtr uint32) error {
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
	if d.enc == nil {
		return errors.Newf("wav driver already shut down").
			Component("apu-driver").
			Category(errors.CategoryState).
			Context("slot", d.slot).
			Build()
	}

	for i := range d.buf.Data {
		bits := binary.BigEndian.Uint32(data[i*4:])
		sample := math.Float32frombits(bits)
		d.buf.Data[i] = clampSample(sample)
	}
	if err := d.enc.Write(d.buf); err != nil {
		return errors.New(err).
			Component("apu-driver").
			Category(errors.CategoryFileIO).
			Context("slot", d.slot).
			Build()
	}

	d.wake.Signal(1)
	return nil
}

// clampSample converts a [-1, 1] float sample to 16 bit PCM.
func clampSample(f float32) int {
	switch {
	case f >= 1:
		return math.MaxInt16
	case f <= -1:
		return math.MinInt16
	default:
		return int(f * math.MaxInt16)
	}
}

// Shutdown finalizes the WAV header and closes the file.
func (d *WavDriver) Shutdown() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.enc == nil {
		return nil
	}
	encErr := d.enc.Close()
	closeErr := d.file.Close()
	d.enc = nil
	d.file = nil
	d.logger.Debug("wav driver destroyed")
	return errors.Join(encErr, closeErr)
}
