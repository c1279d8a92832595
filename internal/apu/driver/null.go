package driver

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/emucore/apu-go/internal/logging"
)

// NullDriver accepts frames and discards them. Every accepted frame is
// acknowledged by signaling the wake primitive, so the callback cadence of
// the client continues at whatever pace the guest submits.
type NullDriver struct {
	id     string
	slot   int
	wake   Wake
	logger *slog.Logger
}

// NewNullFactory returns a factory producing NullDriver instances.
func NewNullFactory() Factory {
	return FactoryFunc(func(slot int, wake Wake) (Driver, error) {
		logger := logging.ForService("apu-driver")
		if logger == nil {
			logger = slog.Default().With("service", "apu-driver")
		}
		id := uuid.NewString()
		d := &NullDriver{
			id:     id,
			slot:   slot,
			wake:   wake,
			logger: logger.With("driver", "null", "driver_id", id[:8], "slot", slot),
		}
		d.logger.Debug("null driver created")
		return d, nil
	})
}

// SubmitFrame discards the frame and requests the next callback pump.
func (d *NullDriver) SubmitFrame(samplesPtr uint32) error {
	d.logger.Debug("frame discarded", "samples_ptr", samplesPtr)
	d.wake.Signal(1)
	return nil
}

// Shutdown releases nothing; the null driver holds no resources.
func (d *NullDriver) Shutdown() error {
	d.logger.Debug("null driver destroyed")
	return nil
}
