package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

func (k Kind) MarshalText() ([]byte, error) {
	if k < 0 || int(k) >= len(kindNames) {
		return nil, fmt.Errorf("unknown kind %d", int(k))
	}
	return []byte(kindNames[k]), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

func (s Shape) MarshalText() ([]byte, error) {
	if s < 0 || int(s) >= len(shapeNames) {
		return nil, fmt.Errorf("unknown shape %d", int(s))
	}
	return []byte(shapeNames[s]), nil
}

func (s *Shape) UnmarshalText(b []byte) error {
	parsed, err := ParseShape(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

type signatureJSON struct {
	Kind  Kind  `json:"kind"`
	Shape Shape `json:"shape"`
}

func (s Signature) MarshalJSON() ([]byte, error) {
	return json.Marshal(signatureJSON(s))
}

func (s *Signature) UnmarshalJSON(b []byte) error {
	var sj signatureJSON
	if err := json.Unmarshal(b, &sj); err != nil {
		return err
	}
	*s = Signature(sj)
	return nil
}

type valueJSON struct {
	Kind  Kind            `json:"kind"`
	Shape Shape           `json:"shape"`
	Value json.RawMessage `json:"value"`
}

// MarshalJSON encodes {"kind":..,"shape":..,"value":..}. Chars are
// written as one-character strings.
func (v Value) MarshalJSON() ([]byte, error) {
	var data any
	switch v.Shape {
	case Single:
		data = encodeElem(v.Scalar)
	case List:
		data = encodeSeq(v.Items)
	default:
		rows := make([][]any, len(v.Rows))
		for i, row := range v.Rows {
			rows[i] = encodeSeq(row)
		}
		data = rows
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(valueJSON{Kind: v.Kind, Shape: v.Shape, Value: raw})
}

func encodeSeq(items []any) []any {
	out := make([]any, len(items))
	for i, e := range items {
		out[i] = encodeElem(e)
	}
	return out
}

func encodeElem(e any) any {
	if c, ok := e.(ASCII); ok {
		return string(rune(c))
	}
	return e
}

func (v *Value) UnmarshalJSON(b []byte) error {
	var vj valueJSON
	if err := json.Unmarshal(b, &vj); err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(vj.Value))
	dec.UseNumber()

	out := Value{Kind: vj.Kind, Shape: vj.Shape}
	switch vj.Shape {
	case Single:
		var raw any
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("decode single %s: %w", vj.Kind, err)
		}
		e, err := decodeElem(vj.Kind, raw)
		if err != nil {
			return err
		}
		out.Scalar = e
	case List:
		var raw []any
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("decode list of %s: %w", vj.Kind, err)
		}
		items, err := decodeSeq(vj.Kind, raw)
		if err != nil {
			return err
		}
		out.Items = items
	default:
		var raw [][]any
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("decode %s of %s: %w", vj.Shape, vj.Kind, err)
		}
		out.Rows = make([][]any, len(raw))
		for i, row := range raw {
			items, err := decodeSeq(vj.Kind, row)
			if err != nil {
				return fmt.Errorf("row %d: %w", i, err)
			}
			out.Rows[i] = items
		}
	}
	*v = out
	return nil
}

func decodeSeq(k Kind, raw []any) ([]any, error) {
	items := make([]any, len(raw))
	for i, r := range raw {
		e, err := decodeElem(k, r)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		items[i] = e
	}
	return items, nil
}

func decodeElem(k Kind, raw any) (any, error) {
	switch k {
	case String:
		if s, ok := raw.(string); ok {
			return s, nil
		}
	case Char:
		if s, ok := raw.(string); ok {
			if len(s) != 1 || s[0] > 0x7F {
				return nil, fmt.Errorf("char must be one ASCII character, got %q", s)
			}
			return ASCII(s[0]), nil
		}
	case Bool:
		if b, ok := raw.(bool); ok {
			return b, nil
		}
	case Int32, Int64, Float32, Float64:
		n, ok := raw.(json.Number)
		if !ok {
			break
		}
		return parseNumber(k, n.String())
	}
	return nil, fmt.Errorf("cannot decode %T as %s", raw, k)
}

func parseNumber(k Kind, s string) (any, error) {
	switch k {
	case Int32:
		n, err := strconv.ParseInt(s, 10, 32)
		return int32(n), err
	case Int64:
		n, err := strconv.ParseInt(s, 10, 64)
		return n, err
	case Float32:
		f, err := strconv.ParseFloat(s, 32)
		return float32(f), err
	default:
		return strconv.ParseFloat(s, 64)
	}
}
