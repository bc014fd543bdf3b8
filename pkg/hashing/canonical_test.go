package hashing_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relves/fraledger/pkg/hashing"
	"github.com/relves/fraledger/pkg/types"
)

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, `{}`},
		{"empty map", map[string]any{}, `{}`},
		{"sorted keys", map[string]any{"z": 1, "a": "x", "m": true}, `{"a":"x","m":true,"z":1}`},
		{"nested", map[string]any{"b": map[string]any{"y": 1, "x": 2}, "a": []any{3, 1, 2}}, `{"a":[3,1,2],"b":{"x":2,"y":1}}`},
		{"no html escaping", map[string]any{"s": "<a&b>"}, `{"s":"<a&b>"}`},
		{"null value", map[string]any{"k": nil}, `{"k":null}`},
		{"float", map[string]any{"area": 1.25}, `{"area":1.25}`},
		{"unicode", map[string]any{"name": "वन"}, `{"name":"वन"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := hashing.Canonicalize(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestCanonicalize_Numbers(t *testing.T) {
	tests := []struct {
		literal string
		want    string
	}{
		{"1", "1"},
		{"1.0", "1"},
		{"1e0", "1"},
		{"-0", "0"},
		{"0.000001", "0.000001"},
		{"1.5e-7", "1.5e-7"},
		{"123456789012345678901", "123456789012345680000"},
		{"1e21", "1e+21"},
		{"2.50", "2.5"},
	}
	for _, tt := range tests {
		t.Run(tt.literal, func(t *testing.T) {
			got, err := hashing.Canonicalize(map[string]any{"n": json.Number(tt.literal)})
			require.NoError(t, err)
			assert.Equal(t, `{"n":`+tt.want+`}`, string(got))
		})
	}

	e := hashing.Default()
	a, err := e.HashMetadata(map[string]any{"a": json.Number("1.0")})
	require.NoError(t, err)
	b, err := e.HashMetadata(map[string]any{"a": 1})
	require.NoError(t, err)
	assert.Equal(t, a, b, "number spelling must not change the hash")

	_, err = hashing.Canonicalize(map[string]any{"n": json.Number("1e400")})
	require.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestCanonicalize_Struct(t *testing.T) {
	type meta struct {
		Village string  `json:"village"`
		Area    float64 `json:"area"`
	}
	got, err := hashing.Canonicalize(meta{Village: "V1", Area: 3})
	require.NoError(t, err)
	assert.Equal(t, `{"area":3,"village":"V1"}`, string(got))
}

func TestHashMetadata_PermutationInvariant(t *testing.T) {
	e := hashing.Default()

	a := map[string]any{"village": "V-9", "claimType": "IFR", "area": 1.5, "owners": []any{"x", "y"}}
	b := map[string]any{"owners": []any{"x", "y"}, "area": 1.5, "claimType": "IFR", "village": "V-9"}

	ha, err := e.HashMetadata(a)
	require.NoError(t, err)
	hb, err := e.HashMetadata(b)
	require.NoError(t, err)
	assert.Equal(t, ha, hb)

	c := map[string]any{"owners": []any{"y", "x"}, "area": 1.5, "claimType": "IFR", "village": "V-9"}
	hc, err := e.HashMetadata(c)
	require.NoError(t, err)
	assert.NotEqual(t, ha, hc, "array order is significant")
}
