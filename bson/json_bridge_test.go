package bson

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToJSONScalars(t *testing.T) {
	doc := NewDocumentBuilder().
		AppendValue("a", Int32(1)).
		AppendValue("b", String("x")).
		AppendValue("oid", ObjectIDValue(NewObjectID())).
		Build()

	jv, err := ToJSON(doc)
	require.NoError(t, err)

	a := jv.Field("a")
	n, ok := a.AsInt()
	require.True(t, ok)
	assert.EqualValues(t, 1, n)

	b := jv.Field("b")
	s, ok := b.AsString()
	require.True(t, ok)
	assert.Equal(t, "x", s)

	oid := jv.Field("oid")
	oidStr, ok := oid.AsString()
	require.True(t, ok)
	assert.Len(t, oidStr, 24)
}

func TestToJSONRejectsRegex(t *testing.T) {
	_, err := ToJSON(Regex("a", "i"))
	assert.ErrorIs(t, err, ErrNotImplemented)
}
