package guest

import (
	"context"
	"sync"

	"github.com/emucore/apu-go/internal/errors"
)

// Func is a host function standing in for guest code.
type Func func(ctx context.Context, args ...uint64) uint64

// FuncProcessor is a Processor that dispatches synthetic guest addresses to
// host functions. It is used by tests and by the demo command, where no real
// execution engine is present.
type FuncProcessor struct {
	mu    sync.Mutex
	next  Address
	funcs map[Address]Func
}

// NewFuncProcessor creates an empty function table.
func NewFuncProcessor() *FuncProcessor {
	return &FuncProcessor{
		next:  0x8200_0000,
		funcs: make(map[Address]Func),
	}
}

// Register adds fn to the table and returns the synthetic guest address
// that invokes it.
func (p *FuncProcessor) Register(fn Func) Address {
	p.mu.Lock()
	defer p.mu.Unlock()
	addr := p.next
	p.next += 4
	p.funcs[addr] = fn
	return addr
}

// Execute runs the registered function at fn.
func (p *FuncProcessor) Execute(ctx context.Context, fn Address, args ...uint64) (uint64, error) {
	p.mu.Lock()
	f, ok := p.funcs[fn]
	p.mu.Unlock()
	if !ok {
		return 0, errors.Newf("processor: no function at %#x", fn).
			Component("guest").
			Category(errors.CategoryDispatch).
			Context("address", fn).
			Build()
	}
	return f(ctx, args...), nil
}
