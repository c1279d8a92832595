package errors

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderDefaults(t *testing.T) {
	err := Newf("something broke").Build()
	require.Error(t, err)
	assert.Equal(t, ComponentUnknown, err.Component)
	assert.Equal(t, CategoryGeneric, err.Category)
	assert.Equal(t, "something broke", err.Error())
}

func TestWrappingPreservesChain(t *testing.T) {
	err := New(io.ErrUnexpectedEOF).
		Component("apu").
		Category(CategoryDriver).
		Context("slot", 3).
		Build()

	assert.True(t, Is(err, io.ErrUnexpectedEOF))
	assert.Equal(t, io.ErrUnexpectedEOF, Unwrap(err))

	ctx := err.GetContext()
	require.NotNil(t, ctx)
	assert.Equal(t, 3, ctx["slot"])

	// the copy must not alias internal state
	ctx["slot"] = 99
	assert.Equal(t, 3, err.GetContext()["slot"])
}

func TestSentinelMatching(t *testing.T) {
	sentinel := Newf("no free slots").Component("apu").Category(CategoryCapacity).Build()
	got := Newf("register failed: no free slots").Component("apu").Category(CategoryCapacity).Build()

	assert.True(t, Is(got, sentinel))

	other := Newf("bad index").Component("apu").Category(CategoryValidation).Build()
	assert.False(t, Is(other, sentinel))
}
