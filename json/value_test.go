package json

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSurrogatePair(t *testing.T) {
	v, err := ParseString("\"\\uD83D\\uDCEC\"")
	require.NoError(t, err)
	s, ok := v.AsString()
	require.True(t, ok)
	assert.Equal(t, "\U0001F4EC", s)
}

func TestParseIntBoundary(t *testing.T) {
	v, err := ParseString("9223372036854775807")
	require.NoError(t, err)
	assert.Equal(t, KindInt, v.Kind())

	v2, err := ParseString("9223372036854775808")
	require.NoError(t, err)
	assert.Equal(t, KindBigInt, v2.Kind())
	bi, ok := v2.AsBigInt()
	require.True(t, ok)
	assert.Equal(t, new(big.Int).SetUint64(9223372036854775808), bi)
}

func TestParseObjectRoundTrip(t *testing.T) {
	v, err := ParseString(`{"a":1,"b":"x","c":[true,null,2.5]}`)
	require.NoError(t, err)
	assert.Equal(t, KindObject, v.Kind())
	assert.ElementsMatch(t, []string{"a", "b", "c"}, v.Keys())

	a, _ := v.Field("a").AsInt()
	assert.EqualValues(t, 1, a)
	b, _ := v.Field("b").AsString()
	assert.Equal(t, "x", b)
	c := v.Field("c")
	assert.Equal(t, 3, c.Len())
	assert.Equal(t, KindBool, c.Index(0).Kind())
	assert.Equal(t, KindNull, c.Index(1).Kind())
	assert.Equal(t, KindFloat, c.Index(2).Kind())
}

func TestWriteSuppressesUndefined(t *testing.T) {
	v := Object().WithField("a", Int(1)).WithField("b", Undefined())
	out := Marshal(v)
	assert.Equal(t, `{"a":1}`, out)
}

func TestWritePrettyIndents(t *testing.T) {
	v := Object().WithField("a", Int(1))
	out := MarshalPretty(v)
	assert.Equal(t, "{\n\t\"a\": 1\n}", out)
}

func TestFieldOnMissingKeyYieldsUndefined(t *testing.T) {
	v := Object()
	got := v.Field("missing")
	assert.True(t, got.IsUndefined())
}

func TestAddSameTypeArithmetic(t *testing.T) {
	assert.True(t, Int(1).Add(Int(2)).Equal(Int(3)))
	assert.True(t, Float(1.5).Add(Float(1.5)).Equal(Float(3.0)))
	assert.True(t, String("a").Add(String("b")).Equal(String("ab")))
	assert.True(t, Int(1).Add(String("x")).IsUndefined())
}

func TestASCIIOnlyEscaping(t *testing.T) {
	input := "caf" + string(rune(0xe9))
	out := Write(String(input), WriteOptions{ASCIIOnly: true})
	assert.Equal(t, "\"caf\\u00e9\"", out)

	plain := Write(String(input), WriteOptions{})
	assert.Equal(t, "\"caf"+string(rune(0xe9))+"\"", plain)
}
