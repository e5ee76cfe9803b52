package governor

import (
	"errors"
	"fmt"

	"github.com/bytecodealliance/wasmtime-go/v25"
	"github.com/programme-lv/fnjudge/internal/invoke"
)

// instanceGuest adapts one wasmtime instance to invoke.Guest.
type instanceGuest struct {
	store   *wasmtime.Store
	inst    *wasmtime.Instance
	mem     *wasmtime.Memory
	malloc  *wasmtime.Func
	exports []string
}

func newInstanceGuest(store *wasmtime.Store, inst *wasmtime.Instance, exports []string) (*instanceGuest, error) {
	ext := inst.GetExport(store, "memory")
	if ext == nil || ext.Memory() == nil {
		return nil, errors.New("module does not export memory")
	}
	malloc := inst.GetFunc(store, "malloc")
	if malloc == nil {
		return nil, errors.New("module does not export malloc")
	}
	return &instanceGuest{
		store:   store,
		inst:    inst,
		mem:     ext.Memory(),
		malloc:  malloc,
		exports: exports,
	}, nil
}

func (g *instanceGuest) Read(offset, length uint32) ([]byte, error) {
	data := g.mem.UnsafeData(g.store)
	end := uint64(offset) + uint64(length)
	if end > uint64(len(data)) {
		return nil, fmt.Errorf("read [%#x, %#x) outside memory of %d bytes", offset, end, len(data))
	}
	out := make([]byte, length)
	copy(out, data[offset:end])
	return out, nil
}

func (g *instanceGuest) Write(offset uint32, b []byte) error {
	data := g.mem.UnsafeData(g.store)
	end := uint64(offset) + uint64(len(b))
	if end > uint64(len(data)) {
		return fmt.Errorf("write [%#x, %#x) outside memory of %d bytes", offset, end, len(data))
	}
	copy(data[offset:end], b)
	return nil
}

func (g *instanceGuest) Alloc(size uint32) (uint32, error) {
	ret, err := g.malloc.Call(g.store, int32(size))
	if err != nil {
		return 0, classifyCallErr(err)
	}
	addr, ok := ret.(int32)
	if !ok {
		return 0, fmt.Errorf("malloc returned %T", ret)
	}
	return uint32(addr), nil
}

func (g *instanceGuest) GrowMemory(pages uint32) error {
	_, err := g.mem.Grow(g.store, uint64(pages))
	return err
}

func (g *instanceGuest) Fuel() (uint64, error) {
	return g.store.GetFuel()
}

func (g *instanceGuest) SetFuel(fuel uint64) error {
	return g.store.SetFuel(fuel)
}

func (g *instanceGuest) Exports() []string {
	return g.exports
}

func (g *instanceGuest) Call(name string, args ...any) (any, error) {
	fn := g.inst.GetFunc(g.store, name)
	if fn == nil {
		return nil, fmt.Errorf("%w: %s", invoke.ErrSymbolNotFound, name)
	}
	ret, err := fn.Call(g.store, args...)
	if err != nil {
		return nil, classifyCallErr(err)
	}
	return ret, nil
}

func classifyCallErr(err error) error {
	var trap *wasmtime.Trap
	if errors.As(err, &trap) {
		return &invoke.TrapError{Message: trap.Message()}
	}
	var werr *wasmtime.Error
	if errors.As(err, &werr) {
		if status, ok := werr.ExitStatus(); ok {
			return &invoke.TrapError{Message: fmt.Sprintf("exited with status %d", status)}
		}
	}
	return err
}
