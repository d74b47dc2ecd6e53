package bson

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentRoundTrip(t *testing.T) {
	doc := NewDocumentBuilder().
		AppendValue("a", Int32(1)).
		AppendValue("b", String("x")).
		AppendValue("c", NewArrayBuilder().
			Append(Bool(true)).
			Append(Null()).
			Append(Double(2.5)).
			Build()).
		Build()

	parsed, err := Parse(doc.Raw())
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"a", "b", "c"}, mustKeys(t, parsed))

	av, err := parsed.Field("a")
	require.NoError(t, err)
	assert.Equal(t, TypeInt32, av.Type())
	n, err := av.AsInt32()
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	bv, err := parsed.Field("b")
	require.NoError(t, err)
	s, err := bv.AsString()
	require.NoError(t, err)
	assert.Equal(t, "x", s)

	cv, err := parsed.Field("c")
	require.NoError(t, err)
	assert.Equal(t, TypeArray, cv.Type())
	l, err := cv.Len()
	require.NoError(t, err)
	assert.Equal(t, 3, l)

	e0, err := cv.At(0)
	require.NoError(t, err)
	assert.Equal(t, TypeBool, e0.Type())
	e1, err := cv.At(1)
	require.NoError(t, err)
	assert.Equal(t, TypeNull, e1.Type())
	e2, err := cv.At(2)
	require.NoError(t, err)
	assert.Equal(t, TypeDouble, e2.Type())
}

func mustKeys(t *testing.T, v Value) []string {
	t.Helper()
	keys, err := v.Keys()
	require.NoError(t, err)
	return keys
}

func TestValueEqual(t *testing.T) {
	a := NewDocumentBuilder().AppendValue("x", Int32(1)).Build()
	b := NewDocumentBuilder().AppendValue("x", Int32(1)).Build()
	c := NewDocumentBuilder().AppendValue("x", Int32(2)).Build()
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestArrayKeyWireOrderPreserved(t *testing.T) {
	b := NewArrayBuilder()
	for i := 0; i < 12; i++ {
		b.Append(Int32(int32(i)))
	}
	arr := b.Build()
	keys, err := arr.Keys()
	require.NoError(t, err)
	// wire order, not lexicographic: "10" appears before "9" would sort
	// lexicographically, but wire order keeps it after "9" since it was
	// appended later.
	assert.Equal(t, "9", keys[9])
	assert.Equal(t, "10", keys[10])
}

func TestRegexFieldOrder(t *testing.T) {
	v := Regex("^a.*z$", "i")
	pattern, options, err := v.AsRegex()
	require.NoError(t, err)
	assert.Equal(t, "^a.*z$", pattern)
	assert.Equal(t, "i", options)
}

func TestDBRefAndCodeWScopeRejected(t *testing.T) {
	_, err := DBRef()
	assert.ErrorIs(t, err, ErrNotImplemented)
	_, err = CodeWScope()
	assert.ErrorIs(t, err, ErrNotImplemented)
}

func TestObjectIDHexRoundTrip(t *testing.T) {
	id := NewObjectID()
	hex := id.Hex()
	assert.Len(t, hex, 24)
	id2, err := ObjectIDFromHex(hex)
	require.NoError(t, err)
	assert.Equal(t, id, id2)
}

func TestTruncatedDocumentRejected(t *testing.T) {
	_, err := Parse([]byte{0x05, 0x00, 0x00})
	assert.Error(t, err)
}
