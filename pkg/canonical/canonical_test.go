package canonical

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalSortsKeys(t *testing.T) {
	out, err := Marshal(map[string]any{"z": 1, "a": 2, "m": 3})
	require.NoError(t, err)
	assert.Equal(t, `{"a":2,"m":3,"z":1}`, string(out))
}

func TestMarshalStructFieldOrderIrrelevant(t *testing.T) {
	type a struct {
		B string `json:"b"`
		A string `json:"a"`
	}
	type b struct {
		A string `json:"a"`
		B string `json:"b"`
	}

	outA, err := Marshal(a{A: "1", B: "2"})
	require.NoError(t, err)
	outB, err := Marshal(b{A: "1", B: "2"})
	require.NoError(t, err)
	assert.Equal(t, outA, outB)
}

func TestMarshalDeterministic(t *testing.T) {
	in := map[string]any{
		"nested": map[string]any{"y": []int{1, 2, 3}, "x": "v"},
		"ts":     1700000000,
	}
	first, err := Marshal(in)
	require.NoError(t, err)
	for range 20 {
		next, err := Marshal(in)
		require.NoError(t, err)
		assert.Equal(t, first, next)
	}
}

func TestMarshalPreservesNumbers(t *testing.T) {
	out, err := Marshal(map[string]any{"n": 9007199254740993})
	require.NoError(t, err)
	// Large int64 values must not be rewritten through float64.
	assert.Equal(t, `{"n":9007199254740993}`, string(out))
}
