package guest

import (
	"encoding/binary"
	"sync"

	"github.com/emucore/apu-go/internal/errors"
)

// guest addresses start above zero so that a zero Address can mean "null".
const heapBase Address = 0x1000

// Heap is a hosted implementation of Memory backed by a byte slice. It uses
// a first-fit block allocator and stores scalars big-endian, matching the
// guest machine. Safe for concurrent use.
type Heap struct {
	mu   sync.Mutex
	mem  []byte
	next Address
	// live allocations by base address
	blocks map[Address]uint32
	// freed blocks available for reuse
	free map[Address]uint32
}

// NewHeap creates a hosted guest heap of the given size in bytes.
func NewHeap(size uint32) *Heap {
	return &Heap{
		mem:    make([]byte, size),
		next:   heapBase,
		blocks: make(map[Address]uint32),
		free:   make(map[Address]uint32),
	}
}

func heapError(op string, ptr Address) *errors.EnhancedError {
	return errors.Newf("heap: invalid %s at %#x", op, ptr).
		Component("guest").
		Category(errors.CategoryGuestMem).
		Context("address", ptr).
		Build()
}

// SystemHeapAlloc reserves size bytes and returns their guest address.
func (h *Heap) SystemHeapAlloc(size uint32) (Address, error) {
	if size == 0 {
		size = 1
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	// first fit from the free blocks
	for base, blockSize := range h.free {
		if blockSize >= size {
			delete(h.free, base)
			h.blocks[base] = blockSize
			return base, nil
		}
	}

	// align fresh allocations to 8 bytes
	base := (h.next + 7) &^ 7
	end := uint64(base) + uint64(size)
	if end > uint64(heapBase)+uint64(len(h.mem)) {
		return 0, errors.Newf("heap: out of memory allocating %d bytes", size).
			Component("guest").
			Category(errors.CategoryGuestMem).
			Context("requested", size).
			Build()
	}
	h.next = Address(end)
	h.blocks[base] = size
	return base, nil
}

// SystemHeapFree releases an allocation made by SystemHeapAlloc.
func (h *Heap) SystemHeapFree(ptr Address) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	size, ok := h.blocks[ptr]
	if !ok {
		return heapError("free", ptr)
	}
	delete(h.blocks, ptr)
	h.free[ptr] = size
	return nil
}

func (h *Heap) slice(ptr Address, n uint32) ([]byte, error) {
	if ptr < heapBase {
		return nil, heapError("access", ptr)
	}
	off := uint64(ptr - heapBase)
	if off+uint64(n) > uint64(len(h.mem)) {
		return nil, heapError("access", ptr)
	}
	return h.mem[off : off+uint64(n)], nil
}

// WriteUint32 stores v at ptr in guest byte order.
func (h *Heap) WriteUint32(ptr Address, v uint32) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	b, err := h.slice(ptr, 4)
	if err != nil {
		return err
	}
	binary.BigEndian.PutUint32(b, v)
	return nil
}

// ReadUint32 loads a guest-byte-order scalar from ptr.
func (h *Heap) ReadUint32(ptr Address) (uint32, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	b, err := h.slice(ptr, 4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// Bytes returns the n bytes of guest memory starting at ptr.
func (h *Heap) Bytes(ptr Address, n uint32) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.slice(ptr, n)
}
