// Package invoke calls a typed function exported by a guest module and
// attributes the fuel spent by the function's own logic.
package invoke

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/programme-lv/fnjudge/internal/abi"
	"github.com/programme-lv/fnjudge/pkg/value"
)

const (
	// ReservePages is grown before arguments are written so that the
	// function has heap to allocate from.
	ReservePages = 64

	// AllocationFuel is credited while arguments are marshaled and taken
	// back before the call, so large inputs never spend the test budget.
	AllocationFuel uint64 = 1 << 36
)

// ErrSymbolNotFound means the module exports no function for the call.
var ErrSymbolNotFound = errors.New("symbol not found")

// TrapError is a fault raised by the guest while running its logic.
type TrapError struct {
	Message   string
	OutOfFuel bool
	// Fuel consumed before the trap.
	Fuel uint64
}

func (e *TrapError) Error() string {
	if e.OutOfFuel {
		return "guest ran out of fuel: " + e.Message
	}
	return "guest trapped: " + e.Message
}

// Guest is one live instance of a compiled module.
type Guest interface {
	abi.Memory
	abi.Allocator

	GrowMemory(pages uint32) error
	Fuel() (uint64, error)
	SetFuel(fuel uint64) error
	Exports() []string
	// Call runs an exported function. Guest faults come back as *TrapError.
	Call(name string, args ...any) (any, error)
}

// Result is the decoded return value and the fuel the call consumed.
type Result struct {
	Output value.Value
	Fuel   uint64
}

// Invoke runs call on g. The fuel pool of g must hold the logic budget on
// entry.
func Invoke(g Guest, call value.Call) (Result, error) {
	symbol, err := ResolveSymbol(g.Exports(), call.Name)
	if err != nil {
		return Result{}, err
	}
	if err := g.GrowMemory(ReservePages); err != nil {
		return Result{}, fmt.Errorf("reserve %d pages: %w", ReservePages, err)
	}

	budget, err := g.Fuel()
	if err != nil {
		return Result{}, err
	}
	if err := g.SetFuel(saturatingAdd(budget, AllocationFuel)); err != nil {
		return Result{}, err
	}

	m := abi.NewMarshaler(g, g)
	args := make([]any, 0, len(call.Args)+1)

	var slot uint32
	direct := passedDirectly(call.Returns)
	if !direct {
		slot, err = g.Alloc(abi.HeaderSize)
		if err != nil {
			return Result{}, &abi.MarshalError{Op: "alloc return slot", Sig: call.Returns, Err: err}
		}
		args = append(args, int32(slot))
	}
	for i, arg := range call.Args {
		if passedDirectly(arg.Signature()) {
			native, err := nativeArg(arg)
			if err != nil {
				return Result{}, fmt.Errorf("argument %d: %w", i, err)
			}
			args = append(args, native)
			continue
		}
		addr, err := m.Write(arg, nil)
		if err != nil {
			return Result{}, fmt.Errorf("argument %d: %w", i, err)
		}
		args = append(args, int32(addr))
	}

	if err := g.SetFuel(budget); err != nil {
		return Result{}, err
	}
	ret, callErr := g.Call(symbol, args...)
	remaining, err := g.Fuel()
	if err != nil {
		return Result{}, err
	}
	used := budget - min(remaining, budget)

	if callErr != nil {
		var trap *TrapError
		if errors.As(callErr, &trap) {
			trap.Fuel = used
			trap.OutOfFuel = trap.OutOfFuel || remaining == 0
			return Result{}, trap
		}
		return Result{}, callErr
	}

	var out value.Value
	if direct {
		out, err = nativeResult(call.Returns, ret)
	} else {
		out, err = m.Read(call.Returns, slot)
	}
	if err != nil {
		return Result{}, err
	}
	return Result{Output: out, Fuel: used}, nil
}

// passedDirectly reports whether values of sig travel as native wasm
// values instead of through memory.
func passedDirectly(sig value.Signature) bool {
	return sig.Shape == value.Single && sig.Kind != value.String
}

func nativeArg(v value.Value) (any, error) {
	switch x := v.Scalar.(type) {
	case int32, int64, float32, float64:
		return x, nil
	case value.ASCII:
		return int32(x), nil
	case bool:
		if x {
			return int32(1), nil
		}
		return int32(0), nil
	}
	return nil, fmt.Errorf("%T is not a native %s", v.Scalar, v.Kind)
}

func nativeResult(sig value.Signature, ret any) (value.Value, error) {
	mismatch := func() error {
		return &abi.MarshalError{Op: "read result", Sig: sig, Err: fmt.Errorf("guest returned %T", ret)}
	}
	switch sig.Kind {
	case value.Int32:
		x, ok := ret.(int32)
		if !ok {
			return value.Value{}, mismatch()
		}
		return value.NewSingle(sig.Kind, x), nil
	case value.Int64:
		x, ok := ret.(int64)
		if !ok {
			return value.Value{}, mismatch()
		}
		return value.NewSingle(sig.Kind, x), nil
	case value.Float32:
		x, ok := ret.(float32)
		if !ok {
			return value.Value{}, mismatch()
		}
		return value.NewSingle(sig.Kind, x), nil
	case value.Float64:
		x, ok := ret.(float64)
		if !ok {
			return value.Value{}, mismatch()
		}
		return value.NewSingle(sig.Kind, x), nil
	case value.Char:
		x, ok := ret.(int32)
		if !ok {
			return value.Value{}, mismatch()
		}
		b := byte(x)
		if b > 0x7F {
			return value.Value{}, &abi.MarshalError{Op: "read result", Sig: sig, Err: fmt.Errorf("char %#x is not ASCII", b)}
		}
		return value.NewSingle(sig.Kind, value.ASCII(b)), nil
	case value.Bool:
		x, ok := ret.(int32)
		if !ok {
			return value.Value{}, mismatch()
		}
		return value.NewSingle(sig.Kind, x&0xFF != 0), nil
	}
	return value.Value{}, mismatch()
}

// ResolveSymbol finds the export implementing name: the name itself, or a
// single C++ mangled export of a free function with that name.
func ResolveSymbol(exports []string, name string) (string, error) {
	prefix := "_Z" + strconv.Itoa(len(name)) + name
	var mangled []string
	for _, e := range exports {
		if e == name {
			return e, nil
		}
		if strings.HasPrefix(e, prefix) {
			mangled = append(mangled, e)
		}
	}
	switch len(mangled) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrSymbolNotFound, name)
	case 1:
		return mangled[0], nil
	}
	return "", fmt.Errorf("%w: %s is overloaded as %s", ErrSymbolNotFound, name, strings.Join(mangled, ", "))
}

func saturatingAdd(a, b uint64) uint64 {
	if a > math.MaxUint64-b {
		return math.MaxUint64
	}
	return a + b
}
