package value_test

import (
	"encoding/json"
	"testing"

	"github.com/programme-lv/fnjudge/pkg/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEqualUsesEpsilonForSingleFloats(t *testing.T) {
	a := value.NewSingle(value.Float64, 1.0)
	assert.True(t, value.Equal(a, value.NewSingle(value.Float64, 1.0+5e-10)))
	assert.False(t, value.Equal(a, value.NewSingle(value.Float64, 1.0+5e-8)))
}

func TestEqualIsExactForLists(t *testing.T) {
	a := value.NewList(value.Float64, 1.0, 2.0)
	assert.True(t, value.Equal(a, value.NewList(value.Float64, 1.0, 2.0)))
	assert.False(t, value.Equal(a, value.NewList(value.Float64, 1.0, 2.0+5e-10)))
	assert.False(t, value.Equal(a, value.NewList(value.Float64, 1.0)))
}

func TestEqualRejectsDifferentSignatures(t *testing.T) {
	assert.False(t, value.Equal(
		value.NewList(value.Int32, int32(1)),
		value.NewList(value.Int64, int64(1)),
	))
	assert.False(t, value.Equal(
		value.NewGrid(value.Int32, [][]any{{int32(1)}}),
		value.NewGraph(value.Int32, [][]any{{int32(1)}}),
	))
}

func TestScalingFactor(t *testing.T) {
	cases := []struct {
		name string
		v    value.Value
		want float64
	}{
		{"list", value.NewList(value.Int32, int32(1), int32(2), int32(3)), 3},
		{"grid", value.NewGrid(value.Int32, [][]any{{int32(1)}, {}}), 2},
		{"string", value.NewSingle(value.String, "hello"), 5},
		{"negative int", value.NewSingle(value.Int32, int32(-7)), 7},
		{"long", value.NewSingle(value.Int64, int64(1 << 40)), 1 << 40},
		{"char", value.NewSingle(value.Char, value.ASCII('x')), 1},
		{"bool", value.NewSingle(value.Bool, true), 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, value.ScalingFactor(tc.v))
		})
	}
}

func TestZero(t *testing.T) {
	z := value.Zero(value.Signature{Kind: value.Int64, Shape: value.Single})
	assert.Equal(t, int64(0), z.Scalar)

	l := value.Zero(value.Signature{Kind: value.String, Shape: value.List})
	assert.Empty(t, l.Items)
	require.NoError(t, l.Validate())
}

func TestValidate(t *testing.T) {
	require.NoError(t, value.NewList(value.Char, value.ASCII('a')).Validate())
	assert.Error(t, value.NewList(value.Int32, int64(1)).Validate())
	assert.Error(t, value.NewSingle(value.Bool, "true").Validate())
}

func TestValueJSON(t *testing.T) {
	const in = `{"kind":"int","shape":"grid","value":[[1,2],[3]]}`
	var v value.Value
	require.NoError(t, json.Unmarshal([]byte(in), &v))
	assert.Equal(t, value.Grid, v.Shape)
	assert.Equal(t, [][]any{{int32(1), int32(2)}, {int32(3)}}, v.Rows)

	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, in, string(out))
}

func TestValueJSONChars(t *testing.T) {
	v := value.NewList(value.Char, value.ASCII('a'), value.ASCII('b'))
	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"char","shape":"list","value":["a","b"]}`, string(out))

	var bad value.Value
	err = json.Unmarshal([]byte(`{"kind":"char","shape":"single","value":"ab"}`), &bad)
	assert.Error(t, err)
}

func TestValueJSONRejectsOverflow(t *testing.T) {
	var v value.Value
	err := json.Unmarshal([]byte(`{"kind":"int","shape":"single","value":4294967296}`), &v)
	assert.Error(t, err)

	require.NoError(t, json.Unmarshal([]byte(`{"kind":"long","shape":"single","value":4294967296}`), &v))
	assert.Equal(t, int64(4294967296), v.Scalar)
}

func TestCallJSON(t *testing.T) {
	const in = `{"name":"sum","args":[{"kind":"int","shape":"list","value":[1,2]}],"returns":{"kind":"long","shape":"single"}}`
	var c value.Call
	require.NoError(t, json.Unmarshal([]byte(in), &c))
	assert.Equal(t, "sum", c.Name)
	assert.Equal(t, value.Signature{Kind: value.Int64, Shape: value.Single}, c.Returns)
	assert.Equal(t, "sum([1, 2])", c.String())
}
