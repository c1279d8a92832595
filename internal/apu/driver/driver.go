// Package driver defines the boundary between the audio system core and the
// per-client output backends, along with the reference backend
// implementations shipped with apu-go.
//
// A driver receives submitted sample frames and is responsible for rendering
// them somewhere useful. It also owns the callback cadence of its client:
// whenever it wants the guest notified that another frame may be submitted,
// it signals the wake primitive it was constructed with. Registration
// pre-fills that primitive, so a freshly registered client is pumped
// immediately; steady-state replenishment is entirely driver policy.
package driver

// Frame geometry of the emulated hardware: every submitted frame is
// 256 samples across 6 channels of 32-bit big-endian floats.
const (
	FrameSamples  = 256
	FrameChannels = 6
	FrameBytes    = FrameSamples * FrameChannels * 4
)

// Wake is the per-client wake primitive. Signal requests up to n further
// callback pumps for the driver's slot and returns how many were granted
// before the queued-frame bound was hit.
type Wake interface {
	Signal(n int) int
}

// Driver renders submitted sample buffers for one client.
type Driver interface {
	// SubmitFrame accepts one frame of samples located at samplesPtr in
	// guest memory. The hand-off is synchronous; any queuing is internal
	// to the driver.
	SubmitFrame(samplesPtr uint32) error

	// Shutdown releases all backend resources. It must not block
	// indefinitely.
	Shutdown() error
}

// Factory constructs a backend instance bound to a slot and its wake
// primitive.
type Factory interface {
	NewDriver(slot int, wake Wake) (Driver, error)
}

// FactoryFunc adapts a function to the Factory interface.
type FactoryFunc func(slot int, wake Wake) (Driver, error)

func (f FactoryFunc) NewDriver(slot int, wake Wake) (Driver, error) {
	return f(slot, wake)
}
