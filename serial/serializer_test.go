package serial

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibe-d/vibe.d-sub004/bson"
	"github.com/vibe-d/vibe.d-sub004/json"
)

type color int

const (
	colorRed color = iota
	colorGreen
	colorBlue
)

func (c color) String() string {
	switch c {
	case colorRed:
		return "red"
	case colorGreen:
		return "green"
	case colorBlue:
		return "blue"
	default:
		return "unknown"
	}
}

func (c *color) SetByName(name string) error {
	switch name {
	case "red":
		*c = colorRed
	case "green":
		*c = colorGreen
	case "blue":
		*c = colorBlue
	default:
		return assertUnknownColor(name)
	}
	return nil
}

func assertUnknownColor(name string) error {
	return &unknownColorError{name: name}
}

type unknownColorError struct{ name string }

func (e *unknownColorError) Error() string { return "unknown color: " + e.name }

type point struct {
	X int `serial:"x"`
	Y int `serial:"y"`
}

type widget struct {
	Name     string   `serial:"name"`
	Color    color    `serial:"color,byname"`
	Tags     []string `serial:"tags,optional"`
	Internal string   `serial:"-"`
	Hidden   string   `serial:"hidden,ignore"`
	Origin   point    `serial:"origin,asarray"`
}

func TestStructRoundTripMemoryBackend(t *testing.T) {
	w := widget{
		Name:   "gizmo",
		Color:  colorGreen,
		Tags:   []string{"a", "b"},
		Origin: point{X: 1, Y: 2},
	}

	wb := newMemoryBackend()
	s := New(wb)
	require.NoError(t, s.Serialize(w))

	m := wb.Result().(map[string]interface{})
	assert.Equal(t, "gizmo", m["name"])
	assert.Equal(t, "green", m["color"])
	assert.Equal(t, []interface{}{"a", "b"}, m["tags"])
	assert.Equal(t, []interface{}{int64(1), int64(2)}, m["origin"])
	_, hasInternal := m["Internal"]
	assert.False(t, hasInternal)
	_, hasHidden := m["hidden"]
	assert.False(t, hasHidden)

	var out widget
	rb := newMemoryBackendFromValue(m)
	require.NoError(t, New(rb).Deserialize(&out))
	assert.Equal(t, "gizmo", out.Name)
	assert.Equal(t, colorGreen, out.Color)
	assert.Equal(t, []string{"a", "b"}, out.Tags)
	assert.Equal(t, point{X: 1, Y: 2}, out.Origin)
}

func TestOptionalFieldOmittedWhenEmpty(t *testing.T) {
	w := widget{Name: "bare", Color: colorRed, Origin: point{}}
	wb := newMemoryBackend()
	require.NoError(t, New(wb).Serialize(w))
	m := wb.Result().(map[string]interface{})
	_, hasTags := m["tags"]
	assert.False(t, hasTags)
}

func TestMissingRequiredFieldErrors(t *testing.T) {
	m := map[string]interface{}{"name": "x", "color": "red"}
	var out widget
	err := New(newMemoryBackendFromValue(m)).Deserialize(&out)
	assert.Error(t, err)
}

// doublingPolicy doubles integers on the way out and halves them coming
// back, used to prove that policy chaining picks the leftmost applicable
// entry.
type doublingPolicy struct{}

func (doublingPolicy) AppliesTo(v interface{}) bool {
	switch v.(type) {
	case int, *int:
		return true
	}
	return false
}

func (doublingPolicy) ToRepresentation(v interface{}) (interface{}, error) {
	return int64(v.(int) * 2), nil
}

func (doublingPolicy) FromRepresentation(repr interface{}, dst interface{}) error {
	n, ok := repr.(int64)
	if !ok {
		if f, fok := repr.(float64); fok {
			n = int64(f)
		}
	}
	*(dst.(*int)) = int(n) / 2
	return nil
}

// blockingPolicy never applies; used to prove it's skipped in favor of
// the next chain entry.
type blockingPolicy struct{}

func (blockingPolicy) AppliesTo(v interface{}) bool                             { return false }
func (blockingPolicy) ToRepresentation(v interface{}) (interface{}, error)      { return nil, nil }
func (blockingPolicy) FromRepresentation(repr, dst interface{}) error           { return nil }

func TestPolicyChainLeftmostApplicableWins(t *testing.T) {
	wb := newMemoryBackend()
	s := New(wb, blockingPolicy{}, doublingPolicy{})
	require.NoError(t, s.Serialize(21))
	assert.Equal(t, int64(42), wb.Result())

	rb := newMemoryBackendFromValue(int64(42))
	var out int
	require.NoError(t, New(rb, blockingPolicy{}, doublingPolicy{}).Deserialize(&out))
	assert.Equal(t, 21, out)
}

func TestJSONValueBackendRoundTrip(t *testing.T) {
	w := widget{Name: "jv", Color: colorBlue, Origin: point{X: 3, Y: 4}}
	wb := NewJSONValueBackend()
	require.NoError(t, New(wb).Serialize(w))
	jv := wb.Result().(json.Value)
	name, ok := jv.Field("name").AsString()
	require.True(t, ok)
	assert.Equal(t, "jv", name)

	var out widget
	rb := NewJSONValueBackendFromValue(jv)
	require.NoError(t, New(rb).Deserialize(&out))
	assert.Equal(t, w.Name, out.Name)
	assert.Equal(t, w.Color, out.Color)
	assert.Equal(t, w.Origin, out.Origin)
}

func TestJSONTextBackendRoundTrip(t *testing.T) {
	w := widget{Name: "text", Color: colorRed, Origin: point{X: 5, Y: 6}}
	wb := NewJSONTextBackend(json.WriteOptions{})
	require.NoError(t, New(wb).Serialize(w))
	text := wb.Result().(string)

	rb, err := NewJSONTextBackendFromText(text)
	require.NoError(t, err)
	var out widget
	require.NoError(t, New(rb).Deserialize(&out))
	assert.Equal(t, w, out)
}

func TestBSONBackendRoundTrip(t *testing.T) {
	w := widget{Name: "bson", Color: colorGreen, Origin: point{X: 7, Y: 8}}
	wb := NewBSONBackend()
	require.NoError(t, New(wb).Serialize(w))
	doc := wb.Result().(bson.Value)

	parsed, err := bson.Parse(doc.Raw())
	require.NoError(t, err)

	var out widget
	rb := NewBSONBackendFromValue(parsed)
	require.NoError(t, New(rb).Deserialize(&out))
	assert.Equal(t, w.Name, out.Name)
	assert.Equal(t, w.Color, out.Color)
	assert.Equal(t, w.Origin, out.Origin)
}
