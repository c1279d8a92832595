package driver

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emucore/apu-go/internal/guest"
)

// recordingWake counts signals for assertions.
type recordingWake struct {
	mu sync.Mutex
	n  int
}

func (w *recordingWake) Signal(k int) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.n += k
	return k
}

func (w *recordingWake) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.n
}

// writeTestFrame allocates one frame in guest memory filled with a constant
// big-endian float sample.
func writeTestFrame(t *testing.T, mem *guest.Heap, sample float32) uint32 {
	t.Helper()
	ptr, err := mem.SystemHeapAlloc(FrameBytes)
	require.NoError(t, err)
	raw, err := mem.Bytes(ptr, FrameBytes)
	require.NoError(t, err)
	for i := 0; i < FrameSamples*FrameChannels; i++ {
		binary.BigEndian.PutUint32(raw[i*4:], math.Float32bits(sample))
	}
	return ptr
}

func TestNullDriverSignalsPerFrame(t *testing.T) {
	wake := &recordingWake{}
	drv, err := NewNullFactory().NewDriver(0, wake)
	require.NoError(t, err)

	require.NoError(t, drv.SubmitFrame(0x2000))
	require.NoError(t, drv.SubmitFrame(0x2000))
	assert.Equal(t, 2, wake.count())

	require.NoError(t, drv.Shutdown())
}

func TestBufferedDriverQueuesAndSignals(t *testing.T) {
	mem := guest.NewHeap(1 << 20)
	wake := &recordingWake{}

	var sinkMu sync.Mutex
	var frames int
	factory := NewBufferedFactory(mem, BufferedConfig{
		QueueFrames: 4,
		Period:      time.Millisecond,
		Sink: func(frame []byte) {
			sinkMu.Lock()
			frames++
			sinkMu.Unlock()
		},
	})
	drv, err := factory.NewDriver(1, wake)
	require.NoError(t, err)
	defer func() { require.NoError(t, drv.Shutdown()) }()

	ptr := writeTestFrame(t, mem, 0.25)
	require.NoError(t, drv.SubmitFrame(ptr))

	require.Eventually(t, func() bool {
		sinkMu.Lock()
		defer sinkMu.Unlock()
		return frames >= 1
	}, time.Second, 5*time.Millisecond, "sink never saw the frame")

	// the pump keeps the cadence alive even without queued frames
	require.Eventually(t, func() bool {
		return wake.count() >= 3
	}, time.Second, 5*time.Millisecond, "pump stopped signaling")
}

func TestBufferedDriverQueueFull(t *testing.T) {
	mem := guest.NewHeap(1 << 20)
	factory := NewBufferedFactory(mem, BufferedConfig{
		QueueFrames: 1,
		Period:      time.Hour, // pump never drains during the test
	})
	drv, err := factory.NewDriver(0, &recordingWake{})
	require.NoError(t, err)
	defer func() { require.NoError(t, drv.Shutdown()) }()

	ptr := writeTestFrame(t, mem, 0)
	require.NoError(t, drv.SubmitFrame(ptr))
	assert.Error(t, drv.SubmitFrame(ptr))
}

func TestBufferedDriverShutdownIdempotent(t *testing.T) {
	mem := guest.NewHeap(1 << 20)
	factory := NewBufferedFactory(mem, BufferedConfig{Period: time.Millisecond})
	drv, err := factory.NewDriver(0, &recordingWake{})
	require.NoError(t, err)

	require.NoError(t, drv.Shutdown())
	require.NoError(t, drv.Shutdown())
}

func TestWavDriverWritesDecodableFile(t *testing.T) {
	mem := guest.NewHeap(1 << 20)
	dir := t.TempDir()
	wake := &recordingWake{}

	drv, err := NewWavFactory(mem, dir).NewDriver(2, wake)
	require.NoError(t, err)

	ptr := writeTestFrame(t, mem, 0.5)
	require.NoError(t, drv.SubmitFrame(ptr))
	require.NoError(t, drv.SubmitFrame(ptr))
	assert.Equal(t, 2, wake.count())

	require.NoError(t, drv.Shutdown())
	// second shutdown is a no-op
	require.NoError(t, drv.Shutdown())

	matches, err := filepath.Glob(filepath.Join(dir, "client-2-*.wav"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	f, err := os.Open(matches[0])
	require.NoError(t, err)
	defer f.Close()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	require.NoError(t, err)
	assert.Equal(t, FrameChannels, buf.Format.NumChannels)
	assert.Equal(t, wavSampleRate, buf.Format.SampleRate)
	assert.Len(t, buf.Data, 2*FrameSamples*FrameChannels)

	// 0.5 in 16 bit PCM
	assert.InDelta(t, math.MaxInt16/2, buf.Data[0], 2)
}

func TestWavDriverRejectsSubmitAfterShutdown(t *testing.T) {
	mem := guest.NewHeap(1 << 20)
	drv, err := NewWavFactory(mem, t.TempDir()).NewDriver(0, &recordingWake{})
	require.NoError(t, err)
	require.NoError(t, drv.Shutdown())

	ptr := writeTestFrame(t, mem, 0)
	assert.Error(t, drv.SubmitFrame(ptr))
}
