// Package value describes the typed arguments and results exchanged with
// a compiled submission: a primitive kind shaped as a single scalar, a list,
// a grid or an adjacency list.
package value

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind is the primitive element type of a value.
type Kind int

const (
	String Kind = iota
	Int32
	Int64
	Float32
	Float64
	Char
	Bool
)

var kindNames = [...]string{
	String:  "string",
	Int32:   "int",
	Int64:   "long",
	Float32: "float",
	Float64: "double",
	Char:    "char",
	Bool:    "bool",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
	return kindNames[k]
}

// Size is the number of bytes one element of this kind occupies in guest
// memory. Strings occupy their 12-byte header.
func (k Kind) Size() uint32 {
	switch k {
	case Bool, Char:
		return 1
	case Int32, Float32:
		return 4
	case Int64, Float64:
		return 8
	case String:
		return 12
	}
	return 0
}

// ParseKind accepts the names produced by Kind.String.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return Kind(k), nil
		}
	}
	return 0, fmt.Errorf("unknown kind %q", s)
}

// Shape decides the memory representation of a value. Grid and Graph share
// the list-of-lists layout.
type Shape int

const (
	Single Shape = iota
	List
	Grid
	Graph
)

var shapeNames = [...]string{
	Single: "single",
	List:   "list",
	Grid:   "grid",
	Graph:  "graph",
}

func (s Shape) String() string {
	if s < 0 || int(s) >= len(shapeNames) {
		return "shape(" + strconv.Itoa(int(s)) + ")"
	}
	return shapeNames[s]
}

func ParseShape(s string) (Shape, error) {
	for sh, name := range shapeNames {
		if name == s {
			return Shape(sh), nil
		}
	}
	return 0, fmt.Errorf("unknown shape %q", s)
}

// Nested reports whether the shape is a sequence of sequences.
func (s Shape) Nested() bool {
	return s == Grid || s == Graph
}

// ASCII is the element type of the char kind: a single byte below 0x80.
type ASCII byte

// Signature is the kind and shape of a value without its data.
type Signature struct {
	Kind  Kind
	Shape Shape
}

func (s Signature) String() string {
	return s.Shape.String() + "<" + s.Kind.String() + ">"
}

// Value is a typed scalar or container. Scalar holds the Single case,
// Items the List case and Rows the Grid and Graph cases. Elements are
// string, int32, int64, float32, float64, ASCII or bool according to Kind.
type Value struct {
	Kind   Kind
	Shape  Shape
	Scalar any
	Items  []any
	Rows   [][]any
}

func NewSingle(k Kind, v any) Value {
	return Value{Kind: k, Shape: Single, Scalar: v}
}

func NewList(k Kind, items ...any) Value {
	if items == nil {
		items = []any{}
	}
	return Value{Kind: k, Shape: List, Items: items}
}

func NewGrid(k Kind, rows [][]any) Value {
	if rows == nil {
		rows = [][]any{}
	}
	return Value{Kind: k, Shape: Grid, Rows: rows}
}

func NewGraph(k Kind, rows [][]any) Value {
	if rows == nil {
		rows = [][]any{}
	}
	return Value{Kind: k, Shape: Graph, Rows: rows}
}

func (v Value) Signature() Signature {
	return Signature{Kind: v.Kind, Shape: v.Shape}
}

// Zero returns the zero value of a signature: an empty container or the
// zero scalar.
func Zero(sig Signature) Value {
	switch sig.Shape {
	case List:
		return NewList(sig.Kind)
	case Grid:
		return NewGrid(sig.Kind, nil)
	case Graph:
		return NewGraph(sig.Kind, nil)
	}
	return NewSingle(sig.Kind, zeroScalar(sig.Kind))
}

func zeroScalar(k Kind) any {
	switch k {
	case String:
		return ""
	case Int32:
		return int32(0)
	case Int64:
		return int64(0)
	case Float32:
		return float32(0)
	case Float64:
		return float64(0)
	case Char:
		return ASCII(0)
	case Bool:
		return false
	}
	return nil
}

// Validate checks that every element carries the Go type matching Kind.
func (v Value) Validate() error {
	switch v.Shape {
	case Single:
		return checkElem(v.Kind, v.Scalar)
	case List:
		for i, e := range v.Items {
			if err := checkElem(v.Kind, e); err != nil {
				return fmt.Errorf("item %d: %w", i, err)
			}
		}
	case Grid, Graph:
		for i, row := range v.Rows {
			for j, e := range row {
				if err := checkElem(v.Kind, e); err != nil {
					return fmt.Errorf("row %d item %d: %w", i, j, err)
				}
			}
		}
	default:
		return fmt.Errorf("unknown shape %d", v.Shape)
	}
	return nil
}

func checkElem(k Kind, e any) error {
	ok := false
	switch k {
	case String:
		_, ok = e.(string)
	case Int32:
		_, ok = e.(int32)
	case Int64:
		_, ok = e.(int64)
	case Float32:
		_, ok = e.(float32)
	case Float64:
		_, ok = e.(float64)
	case Char:
		_, ok = e.(ASCII)
	case Bool:
		_, ok = e.(bool)
	}
	if !ok {
		return fmt.Errorf("%T is not a %s", e, k)
	}
	return nil
}

// Epsilon bounds the difference between two single floating point values
// that are still considered equal.
const Epsilon = 1e-9

// Equal compares two values. Single floats compare within Epsilon, every
// other element compares exactly.
func Equal(a, b Value) bool {
	if a.Kind != b.Kind || a.Shape != b.Shape {
		return false
	}
	switch a.Shape {
	case Single:
		switch x := a.Scalar.(type) {
		case float32:
			y, ok := b.Scalar.(float32)
			return ok && math.Abs(float64(x)-float64(y)) <= Epsilon
		case float64:
			y, ok := b.Scalar.(float64)
			return ok && math.Abs(x-y) <= Epsilon
		}
		return a.Scalar == b.Scalar
	case List:
		return equalSeq(a.Items, b.Items)
	default:
		if len(a.Rows) != len(b.Rows) {
			return false
		}
		for i := range a.Rows {
			if !equalSeq(a.Rows[i], b.Rows[i]) {
				return false
			}
		}
		return true
	}
}

func equalSeq(a, b []any) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ScalingFactor estimates the input size a value represents: the length of
// a container or string, the magnitude of a number, 1 for chars and bools.
func ScalingFactor(v Value) float64 {
	switch v.Shape {
	case List:
		return float64(len(v.Items))
	case Grid, Graph:
		return float64(len(v.Rows))
	}
	switch x := v.Scalar.(type) {
	case string:
		return float64(len(x))
	case int32:
		return math.Abs(float64(x))
	case int64:
		return math.Abs(float64(x))
	case float32:
		return math.Abs(float64(x))
	case float64:
		return math.Abs(x)
	}
	return 1
}

// String renders the value in a compact bracketed form for logs and
// progress messages.
func (v Value) String() string {
	var sb strings.Builder
	switch v.Shape {
	case Single:
		writeElem(&sb, v.Scalar)
	case List:
		writeSeq(&sb, v.Items)
	default:
		sb.WriteByte('[')
		for i, row := range v.Rows {
			if i > 0 {
				sb.WriteString(", ")
			}
			writeSeq(&sb, row)
		}
		sb.WriteByte(']')
	}
	return sb.String()
}

func writeSeq(sb *strings.Builder, items []any) {
	sb.WriteByte('[')
	for i, e := range items {
		if i > 0 {
			sb.WriteString(", ")
		}
		writeElem(sb, e)
	}
	sb.WriteByte(']')
}

func writeElem(sb *strings.Builder, e any) {
	switch x := e.(type) {
	case string:
		sb.WriteString(strconv.Quote(x))
	case ASCII:
		sb.WriteString(strconv.QuoteRune(rune(x)))
	default:
		fmt.Fprint(sb, x)
	}
}

// Call is an invocation of a named guest function.
type Call struct {
	Name    string    `json:"name"`
	Args    []Value   `json:"args"`
	Returns Signature `json:"returns"`
}

func (c Call) String() string {
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = a.String()
	}
	return c.Name + "(" + strings.Join(args, ", ") + ")"
}
