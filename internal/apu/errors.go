package apu

import (
	"github.com/emucore/apu-go/internal/errors"
)

// Component identifier for audio system errors
const ComponentAPU = "apu"

var (
	// ErrNoFreeSlots is returned when registration finds no free client slot.
	ErrNoFreeSlots = errors.Newf("no free client slots").
		Component(ComponentAPU).
		Category(errors.CategoryCapacity).
		Build()

	// ErrInvalidSlot is returned for an out-of-range slot index.
	ErrInvalidSlot = errors.Newf("slot index out of range").
		Component(ComponentAPU).
		Category(errors.CategoryValidation).
		Build()

	// ErrSlotNotRegistered is returned when an operation references a free slot.
	ErrSlotNotRegistered = errors.Newf("slot has no registered client").
		Component(ComponentAPU).
		Category(errors.CategoryNotFound).
		Build()

	// ErrAlreadyRunning is returned by Setup when the worker is already running.
	// Its category differs from ErrNotRunning so the two remain distinguishable
	// through errors.Is.
	ErrAlreadyRunning = errors.Newf("audio system already running").
		Component(ComponentAPU).
		Category(errors.CategoryConflict).
		Build()

	// ErrNotRunning is returned by Shutdown when the worker is not running.
	ErrNotRunning = errors.Newf("audio system not running").
		Component(ComponentAPU).
		Category(errors.CategoryState).
		Build()
)

// driverInitError wraps a driver factory failure during registration.
func driverInitError(slot int, err error) error {
	return errors.New(err).
		Component(ComponentAPU).
		Category(errors.CategoryDriver).
		Context("operation", "create_driver").
		Context("slot", slot).
		Build()
}

// argBlockError wraps a guest heap failure during registration.
func argBlockError(slot int, err error) error {
	return errors.New(err).
		Component(ComponentAPU).
		Category(errors.CategoryGuestMem).
		Context("operation", "alloc_arg_block").
		Context("slot", slot).
		Build()
}
