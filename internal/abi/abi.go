// Package abi reads and writes typed values in a guest's linear memory using
// the byte layout of the guest's native string and dynamic array types.
package abi

import (
	"errors"
	"fmt"

	"github.com/programme-lv/fnjudge/pkg/value"
)

// Memory is a bounds-checked view of guest linear memory. Implementations
// reject any access that falls outside the current memory size.
type Memory interface {
	Read(offset, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
}

// Allocator reserves guest heap memory through the guest's exported
// allocator.
type Allocator interface {
	Alloc(size uint32) (uint32, error)
}

// MarshalError is returned for any malformed or out-of-bounds guest memory
// access and for allocator failures.
type MarshalError struct {
	Op  string
	Sig value.Signature
	Err error
}

func (e *MarshalError) Error() string {
	return fmt.Sprintf("marshal: %s %s: %v", e.Op, e.Sig, e.Err)
}

func (e *MarshalError) Unwrap() error { return e.Err }

// MaxReadElements bounds the sequence elements and string bytes one Read
// may decode. Headers may alias the same guest range, so the guest memory
// size alone does not bound the host allocation.
const MaxReadElements = 1 << 23

// Marshaler moves values between the host and one guest instance.
type Marshaler struct {
	mem   Memory
	alloc Allocator
	left  uint32
}

func NewMarshaler(mem Memory, alloc Allocator) *Marshaler {
	return &Marshaler{mem: mem, alloc: alloc}
}

// Write stores v in guest memory and returns the address of its header or
// scalar. When at is nil the destination is allocated, otherwise v is
// written at *at and nothing is allocated for the outermost header.
func (m *Marshaler) Write(v value.Value, at *uint32) (uint32, error) {
	addr, err := m.write(v, at)
	if err != nil {
		return 0, wrap("write", v.Signature(), err)
	}
	return addr, nil
}

func (m *Marshaler) write(v value.Value, at *uint32) (uint32, error) {
	if err := v.Validate(); err != nil {
		return 0, err
	}
	c, err := codecFor(v.Signature())
	if err != nil {
		return 0, err
	}
	var addr uint32
	if at != nil {
		addr = *at
	} else {
		addr, err = m.allocate(c.size())
		if err != nil {
			return 0, err
		}
	}
	if err := c.encode(m, payload(v), addr); err != nil {
		return 0, err
	}
	return addr, nil
}

// Read decodes a value of the given signature stored at addr.
func (m *Marshaler) Read(sig value.Signature, addr uint32) (value.Value, error) {
	c, err := codecFor(sig)
	if err != nil {
		return value.Value{}, wrap("read", sig, err)
	}
	m.left = MaxReadElements
	raw, err := c.decode(m, addr)
	if err != nil {
		return value.Value{}, wrap("read", sig, err)
	}
	return fromPayload(sig, raw), nil
}

func (m *Marshaler) allocate(size uint32) (uint32, error) {
	addr, err := m.alloc.Alloc(size)
	if err != nil {
		return 0, fmt.Errorf("alloc %d bytes: %w", size, err)
	}
	if addr == 0 && size > 0 {
		return 0, fmt.Errorf("alloc %d bytes: allocator returned null", size)
	}
	return addr, nil
}

func (m *Marshaler) charge(n uint32) error {
	if n > m.left {
		return fmt.Errorf("value exceeds %d decoded elements", MaxReadElements)
	}
	m.left -= n
	return nil
}

func wrap(op string, sig value.Signature, err error) error {
	var me *MarshalError
	if errors.As(err, &me) {
		return err
	}
	return &MarshalError{Op: op, Sig: sig, Err: err}
}

// payload flattens a value into the shape the codecs work with: a scalar,
// a []any, or a []any of []any.
func payload(v value.Value) any {
	switch v.Shape {
	case value.Single:
		return v.Scalar
	case value.List:
		return v.Items
	}
	rows := make([]any, len(v.Rows))
	for i, r := range v.Rows {
		rows[i] = r
	}
	return rows
}

func fromPayload(sig value.Signature, raw any) value.Value {
	switch sig.Shape {
	case value.Single:
		return value.NewSingle(sig.Kind, raw)
	case value.List:
		return value.NewList(sig.Kind, raw.([]any)...)
	}
	outer := raw.([]any)
	rows := make([][]any, len(outer))
	for i, r := range outer {
		rows[i] = r.([]any)
	}
	if sig.Shape == value.Graph {
		return value.NewGraph(sig.Kind, rows)
	}
	return value.NewGrid(sig.Kind, rows)
}
