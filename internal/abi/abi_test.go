package abi_test

import (
	"encoding/binary"
	"errors"
	"fmt"
	"testing"

	"github.com/programme-lv/fnjudge/internal/abi"
	"github.com/programme-lv/fnjudge/pkg/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// heap is linear memory with a bump allocator starting past the null page.
type heap struct {
	data   []byte
	next   uint32
	allocs int
}

func newHeap(size int) *heap {
	return &heap{data: make([]byte, size), next: 16}
}

func (h *heap) Read(off, n uint32) ([]byte, error) {
	if uint64(off)+uint64(n) > uint64(len(h.data)) {
		return nil, fmt.Errorf("read [%d, %d) out of bounds", off, uint64(off)+uint64(n))
	}
	return append([]byte(nil), h.data[off:off+n]...), nil
}

func (h *heap) Write(off uint32, b []byte) error {
	if uint64(off)+uint64(len(b)) > uint64(len(h.data)) {
		return fmt.Errorf("write [%d, %d) out of bounds", off, uint64(off)+uint64(len(b)))
	}
	copy(h.data[off:], b)
	return nil
}

func (h *heap) Alloc(size uint32) (uint32, error) {
	addr := (h.next + 7) &^ 7
	if uint64(addr)+uint64(size) > uint64(len(h.data)) {
		return 0, errors.New("out of memory")
	}
	h.next = addr + size
	h.allocs++
	return addr, nil
}

func roundTrip(t *testing.T, v value.Value) value.Value {
	t.Helper()
	h := newHeap(1 << 16)
	m := abi.NewMarshaler(h, h)
	addr, err := m.Write(v, nil)
	require.NoError(t, err)
	got, err := m.Read(v.Signature(), addr)
	require.NoError(t, err)
	return got
}

func TestRoundTripRepresentativeValues(t *testing.T) {
	long := make([]any, 300)
	for i := range long {
		long[i] = int64(i) * -3
	}
	cases := []struct {
		name string
		v    value.Value
	}{
		{"single int", value.NewSingle(value.Int32, int32(-42))},
		{"single long", value.NewSingle(value.Int64, int64(-1)<<40)},
		{"single float", value.NewSingle(value.Float32, float32(0.75))},
		{"single double", value.NewSingle(value.Float64, 3.25)},
		{"single char", value.NewSingle(value.Char, value.ASCII('q'))},
		{"single bool", value.NewSingle(value.Bool, true)},
		{"list of ints", value.NewList(value.Int32, int32(3), int32(-7), int32(0))},
		{"list of doubles", value.NewList(value.Float64, 1e-3, -2.5, 1e12)},
		{"single string", value.NewSingle(value.String, "a string well past the inline capacity")},
		{"empty string", value.NewSingle(value.String, "")},
		{"list of chars", value.NewList(value.Char, value.ASCII('a'), value.ASCII('z'))},
		{"list of bools", value.NewList(value.Bool, true, false, true)},
		{"list of floats", value.NewList(value.Float32, float32(1.5), float32(-0.25))},
		{"long list of longs", value.NewList(value.Int64, long...)},
		{"empty list", value.NewList(value.Int32)},
		{"list of strings", value.NewList(value.String, "x", "", "hello world")},
		{"grid", value.NewGrid(value.Int32, [][]any{{int32(1), int32(2)}, {}, {int32(3)}})},
		{"graph", value.NewGraph(value.Int32, [][]any{{int32(1)}, {int32(0), int32(2)}, {int32(1)}})},
		{"grid of strings", value.NewGrid(value.String, [][]any{{"ab", "cd"}, {"ef"}})},
		{"empty grid", value.NewGrid(value.Float64, nil)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := roundTrip(t, tc.v)
			assert.True(t, value.Equal(tc.v, got), "want %s, got %s", tc.v, got)
		})
	}
}

func TestNestedListPreservesOrder(t *testing.T) {
	rows := [][]any{
		{int32(5), int32(4), int32(3)},
		{int32(2)},
		{int32(1), int32(0)},
	}
	got := roundTrip(t, value.NewGrid(value.Int32, rows))
	assert.Equal(t, rows, got.Rows)
}

func TestEmptySequenceIsNullHeader(t *testing.T) {
	h := newHeap(256)
	m := abi.NewMarshaler(h, h)
	at := uint32(64)
	_, err := m.Write(value.NewList(value.Int32), &at)
	require.NoError(t, err)
	assert.Equal(t, 0, h.allocs)
	assert.Equal(t, make([]byte, abi.HeaderSize), h.data[64:64+abi.HeaderSize])
}

func TestSequenceHeaderLayout(t *testing.T) {
	h := newHeap(256)
	m := abi.NewMarshaler(h, h)
	addr, err := m.Write(value.NewList(value.Int32, int32(7), int32(8)), nil)
	require.NoError(t, err)

	begin := binary.LittleEndian.Uint32(h.data[addr:])
	end := binary.LittleEndian.Uint32(h.data[addr+4:])
	capEnd := binary.LittleEndian.Uint32(h.data[addr+8:])
	assert.Equal(t, begin+8, end)
	assert.Equal(t, end, capEnd)
	assert.Equal(t, uint32(7), binary.LittleEndian.Uint32(h.data[begin:]))
	assert.Equal(t, uint32(8), binary.LittleEndian.Uint32(h.data[begin+4:]))
}

func TestStringWritesLongForm(t *testing.T) {
	h := newHeap(256)
	m := abi.NewMarshaler(h, h)
	addr, err := m.Write(value.NewSingle(value.String, "hi"), nil)
	require.NoError(t, err)

	ptr := binary.LittleEndian.Uint32(h.data[addr:])
	size := binary.LittleEndian.Uint32(h.data[addr+4:])
	capWord := binary.LittleEndian.Uint32(h.data[addr+8:])
	assert.Equal(t, uint32(2), size)
	assert.NotZero(t, capWord&0x80000000)
	assert.Equal(t, []byte("hi\x00"), h.data[ptr:ptr+3])
}

func TestReadInlineString(t *testing.T) {
	h := newHeap(256)
	copy(h.data[32:], "short\x00")
	h.data[32+11] = 5

	m := abi.NewMarshaler(h, h)
	got, err := m.Read(value.Signature{Kind: value.String, Shape: value.Single}, 32)
	require.NoError(t, err)
	assert.Equal(t, "short", got.Scalar)
}

func TestReadInlineNonASCIIFails(t *testing.T) {
	h := newHeap(256)
	copy(h.data[32:], []byte{'o', 0xC3, 0xA9, 0})
	h.data[32+11] = 3

	m := abi.NewMarshaler(h, h)
	_, err := m.Read(value.Signature{Kind: value.String, Shape: value.Single}, 32)
	var me *abi.MarshalError
	require.ErrorAs(t, err, &me)
}

func TestReadCharAboveASCIIFails(t *testing.T) {
	h := newHeap(256)
	h.data[40] = 0x90
	m := abi.NewMarshaler(h, h)
	_, err := m.Read(value.Signature{Kind: value.Char, Shape: value.Single}, 40)
	var me *abi.MarshalError
	require.ErrorAs(t, err, &me)
}

func TestReadOutOfBoundsFails(t *testing.T) {
	h := newHeap(256)
	binary.LittleEndian.PutUint32(h.data[16:], 200)
	binary.LittleEndian.PutUint32(h.data[20:], 200+4*100)
	m := abi.NewMarshaler(h, h)

	_, err := m.Read(value.Signature{Kind: value.Int32, Shape: value.List}, 16)
	var me *abi.MarshalError
	require.ErrorAs(t, err, &me)

	_, err = m.Read(value.Signature{Kind: value.Int32, Shape: value.List}, 1<<20)
	require.ErrorAs(t, err, &me)
}

func TestReadMalformedHeaderFails(t *testing.T) {
	h := newHeap(256)
	sig := value.Signature{Kind: value.Int32, Shape: value.List}
	m := abi.NewMarshaler(h, h)

	binary.LittleEndian.PutUint32(h.data[16:], 100)
	binary.LittleEndian.PutUint32(h.data[20:], 96)
	_, err := m.Read(sig, 16)
	assert.Error(t, err)

	binary.LittleEndian.PutUint32(h.data[20:], 103)
	_, err = m.Read(sig, 16)
	assert.Error(t, err)
}

func TestAllocatorFailureIsMarshalError(t *testing.T) {
	h := newHeap(64)
	m := abi.NewMarshaler(h, h)
	items := make([]any, 100)
	for i := range items {
		items[i] = int64(i)
	}
	_, err := m.Write(value.NewList(value.Int64, items...), nil)
	var me *abi.MarshalError
	require.ErrorAs(t, err, &me)
}

func TestReadHugeSequenceHeaderFails(t *testing.T) {
	for _, kind := range []value.Kind{value.Bool, value.Int64} {
		for _, shape := range []value.Shape{value.List, value.Grid} {
			h := newHeap(1 << 16)
			binary.LittleEndian.PutUint32(h.data[16:], 0)
			binary.LittleEndian.PutUint32(h.data[20:], 0x3FFFFFF8)
			binary.LittleEndian.PutUint32(h.data[24:], 0x3FFFFFF8)
			m := abi.NewMarshaler(h, h)

			_, err := m.Read(value.Signature{Kind: kind, Shape: shape}, 16)
			var me *abi.MarshalError
			require.ErrorAs(t, err, &me, "%s of %s", shape, kind)
		}
	}
}

func TestReadAliasedRowsHitsElementCap(t *testing.T) {
	h := newHeap(1 << 20)
	rowBytes := uint32(1 << 19)
	rows := uint32(64)
	outer := uint32(16)
	inner := outer + rows*abi.HeaderSize
	// Every row header points at the same half-megabyte range of bools.
	for i := range rows {
		at := inner + i*abi.HeaderSize
		binary.LittleEndian.PutUint32(h.data[at:], 1<<19)
		binary.LittleEndian.PutUint32(h.data[at+4:], 1<<19+rowBytes-1)
	}
	binary.LittleEndian.PutUint32(h.data[outer:], inner)
	binary.LittleEndian.PutUint32(h.data[outer+4:], inner+rows*abi.HeaderSize)
	m := abi.NewMarshaler(h, h)

	_, err := m.Read(value.Signature{Kind: value.Bool, Shape: value.Grid}, outer)
	var me *abi.MarshalError
	require.ErrorAs(t, err, &me)
	assert.Contains(t, err.Error(), "decoded elements")
}

func TestReadBudgetResetsPerCall(t *testing.T) {
	h := newHeap(1 << 16)
	m := abi.NewMarshaler(h, h)
	v := value.NewList(value.Int32, int32(1), int32(2), int32(3))
	addr, err := m.Write(v, nil)
	require.NoError(t, err)
	for range 3 {
		got, err := m.Read(v.Signature(), addr)
		require.NoError(t, err)
		assert.True(t, value.Equal(v, got))
	}
}
