// Package guest defines the collaborator interfaces the audio system uses to
// reach into the emulated machine: the guest memory heap and the execution
// engine that runs guest code. Hosted implementations suitable for tests and
// the demo command live alongside the interfaces.
package guest

import "context"

// Address is a pointer in the guest address space.
type Address = uint32

// Memory gives access to the guest address space. The guest machine is
// big-endian, so all scalar stores are byte-swapped relative to the host.
type Memory interface {
	// SystemHeapAlloc reserves size bytes on the guest system heap and
	// returns their guest address.
	SystemHeapAlloc(size uint32) (Address, error)

	// SystemHeapFree releases an allocation made by SystemHeapAlloc.
	SystemHeapFree(ptr Address) error

	// WriteUint32 stores v at ptr in guest byte order.
	WriteUint32(ptr Address, v uint32) error

	// ReadUint32 loads a guest-byte-order scalar from ptr.
	ReadUint32(ptr Address) (uint32, error)

	// Bytes returns the n bytes of guest memory starting at ptr. The
	// returned slice aliases guest memory and must not be retained.
	Bytes(ptr Address, n uint32) ([]byte, error)
}

// Processor executes guest code. Execute runs the function at fn with the
// given arguments and returns its result. Implementations are responsible
// for their own thread safety; the audio system serializes all Execute
// calls on its single dispatch worker.
type Processor interface {
	Execute(ctx context.Context, fn Address, args ...uint64) (uint64, error)
}
