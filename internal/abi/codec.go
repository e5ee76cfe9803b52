package abi

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/programme-lv/fnjudge/pkg/value"
)

// HeaderSize is the size of both the string header {data, size, cap} and
// the vector header {begin, end, end_cap}.
const HeaderSize = 12

// longStringFlag marks the capacity word of a heap-allocated string.
const longStringFlag = 0x80000000

// inlineCapacity is the number of character bytes a short string can hold
// inside its header, terminator included.
const inlineCapacity = HeaderSize - 1

var le = binary.LittleEndian

// codec encodes one element at a fixed address and decodes it back.
type codec interface {
	size() uint32
	encode(m *Marshaler, v any, at uint32) error
	decode(m *Marshaler, at uint32) (any, error)
}

func codecFor(sig value.Signature) (codec, error) {
	elem, err := elemCodec(sig.Kind)
	if err != nil {
		return nil, err
	}
	switch sig.Shape {
	case value.Single:
		return elem, nil
	case value.List:
		return seqCodec{elem: elem}, nil
	case value.Grid, value.Graph:
		return seqCodec{elem: seqCodec{elem: elem}}, nil
	}
	return nil, fmt.Errorf("unknown shape %d", sig.Shape)
}

func elemCodec(k value.Kind) (codec, error) {
	if k == value.String {
		return stringCodec{}, nil
	}
	if k.Size() == 0 {
		return nil, fmt.Errorf("unknown kind %d", k)
	}
	return scalarCodec{kind: k}, nil
}

// scalarCodec handles the fixed-size primitives.
type scalarCodec struct {
	kind value.Kind
}

func (c scalarCodec) size() uint32 { return c.kind.Size() }

func (c scalarCodec) encode(m *Marshaler, v any, at uint32) error {
	buf := make([]byte, c.size())
	if err := c.put(buf, v); err != nil {
		return err
	}
	return m.mem.Write(at, buf)
}

func (c scalarCodec) decode(m *Marshaler, at uint32) (any, error) {
	buf, err := m.mem.Read(at, c.size())
	if err != nil {
		return nil, err
	}
	return c.get(buf)
}

func (c scalarCodec) put(buf []byte, v any) error {
	switch x := v.(type) {
	case int32:
		le.PutUint32(buf, uint32(x))
	case int64:
		le.PutUint64(buf, uint64(x))
	case float32:
		le.PutUint32(buf, math.Float32bits(x))
	case float64:
		le.PutUint64(buf, math.Float64bits(x))
	case value.ASCII:
		if x > 0x7F {
			return fmt.Errorf("char %#x is not ASCII", byte(x))
		}
		buf[0] = byte(x)
	case bool:
		buf[0] = 0
		if x {
			buf[0] = 1
		}
	default:
		return fmt.Errorf("cannot encode %T as %s", v, c.kind)
	}
	return nil
}

func (c scalarCodec) get(buf []byte) (any, error) {
	switch c.kind {
	case value.Int32:
		return int32(le.Uint32(buf)), nil
	case value.Int64:
		return int64(le.Uint64(buf)), nil
	case value.Float32:
		return math.Float32frombits(le.Uint32(buf)), nil
	case value.Float64:
		return math.Float64frombits(le.Uint64(buf)), nil
	case value.Char:
		if buf[0] > 0x7F {
			return nil, fmt.Errorf("char %#x is not ASCII", buf[0])
		}
		return value.ASCII(buf[0]), nil
	case value.Bool:
		return buf[0] != 0, nil
	}
	return nil, fmt.Errorf("cannot decode %s", c.kind)
}

// stringCodec writes strings in the long form only: a NUL-terminated heap
// buffer referenced by {ptr, len, cap|flag}. Both forms are decoded.
type stringCodec struct{}

func (stringCodec) size() uint32 { return HeaderSize }

func (stringCodec) encode(m *Marshaler, v any, at uint32) error {
	s, ok := v.(string)
	if !ok {
		return fmt.Errorf("cannot encode %T as string", v)
	}
	n := uint32(len(s))
	if n >= longStringFlag-1 {
		return fmt.Errorf("string of %d bytes is too long", n)
	}
	data, err := m.allocate(n + 1)
	if err != nil {
		return err
	}
	buf := make([]byte, n+1)
	copy(buf, s)
	if err := m.mem.Write(data, buf); err != nil {
		return err
	}
	return m.mem.Write(at, header(data, n, (n+1)|longStringFlag))
}

func (stringCodec) decode(m *Marshaler, at uint32) (any, error) {
	h, err := m.mem.Read(at, HeaderSize)
	if err != nil {
		return nil, err
	}
	capWord := le.Uint32(h[8:])
	if capWord&longStringFlag == 0 {
		return decodeInline(h)
	}
	ptr, n := le.Uint32(h[0:]), le.Uint32(h[4:])
	if n >= capWord&^longStringFlag {
		return nil, fmt.Errorf("string size %d exceeds capacity %d", n, capWord&^longStringFlag)
	}
	if err := m.charge(n); err != nil {
		return nil, err
	}
	data, err := m.mem.Read(ptr, n)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func decodeInline(h []byte) (string, error) {
	end := bytes.IndexByte(h[:inlineCapacity], 0)
	if end < 0 {
		return "", fmt.Errorf("inline string is not terminated")
	}
	for _, b := range h[:end] {
		if b > 0x7F {
			return "", fmt.Errorf("inline string byte %#x is not ASCII", b)
		}
	}
	return string(h[:end]), nil
}

// seqCodec handles {begin, end, end_cap} dynamic arrays of any element
// codec, recursing for nested sequences.
type seqCodec struct {
	elem codec
}

func (seqCodec) size() uint32 { return HeaderSize }

func (c seqCodec) encode(m *Marshaler, v any, at uint32) error {
	items, ok := v.([]any)
	if !ok {
		return fmt.Errorf("cannot encode %T as sequence", v)
	}
	if len(items) == 0 {
		return m.mem.Write(at, header(0, 0, 0))
	}
	stride := c.elem.size()
	total := uint64(len(items)) * uint64(stride)
	if total > math.MaxUint32 {
		return fmt.Errorf("sequence of %d elements is too large", len(items))
	}
	begin, err := m.allocate(uint32(total))
	if err != nil {
		return err
	}
	end := begin + uint32(total)

	if sc, ok := c.elem.(scalarCodec); ok {
		buf := make([]byte, total)
		for i, item := range items {
			off := uint32(i) * stride
			if err := sc.put(buf[off:off+stride], item); err != nil {
				return fmt.Errorf("element %d: %w", i, err)
			}
		}
		if err := m.mem.Write(begin, buf); err != nil {
			return err
		}
	} else {
		for i, item := range items {
			if err := c.elem.encode(m, item, begin+uint32(i)*stride); err != nil {
				return fmt.Errorf("element %d: %w", i, err)
			}
		}
	}
	return m.mem.Write(at, header(begin, end, end))
}

func (c seqCodec) decode(m *Marshaler, at uint32) (any, error) {
	h, err := m.mem.Read(at, HeaderSize)
	if err != nil {
		return nil, err
	}
	begin, end := le.Uint32(h[0:]), le.Uint32(h[4:])
	if end < begin {
		return nil, fmt.Errorf("sequence end %#x precedes begin %#x", end, begin)
	}
	stride := c.elem.size()
	span := end - begin
	if span%stride != 0 {
		return nil, fmt.Errorf("sequence span %d is not a multiple of %d", span, stride)
	}
	n := span / stride
	if n == 0 {
		return []any{}, nil
	}
	if err := m.charge(n); err != nil {
		return nil, err
	}

	if sc, ok := c.elem.(scalarCodec); ok {
		buf, err := m.mem.Read(begin, span)
		if err != nil {
			return nil, err
		}
		items := make([]any, n)
		for i := range items {
			off := uint32(i) * stride
			if items[i], err = sc.get(buf[off : off+stride]); err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
		}
		return items, nil
	}
	// The last byte of the range must exist before anything is sized by n.
	if _, err := m.mem.Read(end-1, 1); err != nil {
		return nil, err
	}
	items := make([]any, n)
	for i := range items {
		if items[i], err = c.elem.decode(m, begin+uint32(i)*stride); err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
	}
	return items, nil
}

func header(a, b, c uint32) []byte {
	h := make([]byte, HeaderSize)
	le.PutUint32(h[0:], a)
	le.PutUint32(h[4:], b)
	le.PutUint32(h[8:], c)
	return h
}
