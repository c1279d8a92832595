package guest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeapAllocWriteRead(t *testing.T) {
	h := NewHeap(64 * 1024)

	ptr, err := h.SystemHeapAlloc(4)
	require.NoError(t, err)
	require.NotZero(t, ptr)

	require.NoError(t, h.WriteUint32(ptr, 0xDEADBEEF))

	v, err := h.ReadUint32(ptr)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xDEADBEEF), v)

	// guest machine is big-endian
	b, err := h.Bytes(ptr, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xDE, 0xAD, 0xBE, 0xEF}, b)
}

func TestHeapFreeAndReuse(t *testing.T) {
	h := NewHeap(64 * 1024)

	ptr, err := h.SystemHeapAlloc(16)
	require.NoError(t, err)
	require.NoError(t, h.SystemHeapFree(ptr))

	// double free is rejected
	assert.Error(t, h.SystemHeapFree(ptr))

	// freed block is reused
	again, err := h.SystemHeapAlloc(16)
	require.NoError(t, err)
	assert.Equal(t, ptr, again)
}

func TestHeapBounds(t *testing.T) {
	h := NewHeap(32)

	_, err := h.SystemHeapAlloc(1024)
	assert.Error(t, err)

	assert.Error(t, h.WriteUint32(0, 1))

	_, err = h.Bytes(heapBase+16, 64)
	assert.Error(t, err)
}

func TestFuncProcessor(t *testing.T) {
	p := NewFuncProcessor()

	var got []uint64
	addr := p.Register(func(_ context.Context, args ...uint64) uint64 {
		got = append(got, args...)
		return 7
	})

	ret, err := p.Execute(context.Background(), addr, 42)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), ret)
	assert.Equal(t, []uint64{42}, got)

	_, err = p.Execute(context.Background(), 0x1234)
	assert.Error(t, err)
}
