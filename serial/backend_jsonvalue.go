package serial

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/vibe-d/vibe.d-sub004/json"
)

// JSONValueBackend serializes into, and deserializes out of, a json.Value
// tree directly (spec §6.2's "JSON value" back-end, as opposed to the
// text back-end below). Useful when the caller wants to keep composing
// json.Value trees rather than round-tripping through text.
type JSONValueBackend struct {
	stack  []jvFrame
	result json.Value

	read []json.Value
}

type jvFrameKind int

const (
	jvDict jvFrameKind = iota
	jvArray
)

type jvFrame struct {
	kind jvFrameKind
	obj  json.Value
	key  string
}

// NewJSONValueBackend returns a backend ready for a single Serialize call.
func NewJSONValueBackend() *JSONValueBackend {
	return &JSONValueBackend{}
}

// NewJSONValueBackendFromValue returns a backend ready for a single
// Deserialize call reading from v.
func NewJSONValueBackendFromValue(v json.Value) *JSONValueBackend {
	return &JSONValueBackend{read: []json.Value{v}}
}

func (b *JSONValueBackend) finish(v json.Value) {
	if len(b.stack) == 0 {
		b.result = v
		return
	}
	top := &b.stack[len(b.stack)-1]
	if top.kind == jvDict {
		top.obj = top.obj.WithField(top.key, v)
	} else {
		top.obj = top.obj.Append(v)
	}
}

func (b *JSONValueBackend) pop() json.Value {
	n := len(b.stack)
	v := b.stack[n-1].obj
	b.stack = b.stack[:n-1]
	return v
}

func (b *JSONValueBackend) BeginWriteDictionary() error {
	b.stack = append(b.stack, jvFrame{kind: jvDict, obj: json.Object()})
	return nil
}

func (b *JSONValueBackend) EndWriteDictionary() error {
	b.finish(b.pop())
	return nil
}

func (b *JSONValueBackend) BeginWriteDictionaryEntry(name string) error {
	b.stack[len(b.stack)-1].key = name
	return nil
}

func (b *JSONValueBackend) EndWriteDictionaryEntry(name string) error { return nil }

func (b *JSONValueBackend) BeginWriteArray(n int) error {
	b.stack = append(b.stack, jvFrame{kind: jvArray, obj: json.Array()})
	return nil
}

func (b *JSONValueBackend) EndWriteArray() error {
	b.finish(b.pop())
	return nil
}

func (b *JSONValueBackend) BeginWriteArrayEntry(i int) error { return nil }
func (b *JSONValueBackend) EndWriteArrayEntry(i int) error   { return nil }

func (b *JSONValueBackend) WriteValue(v interface{}) error {
	jv, err := nativeToJSON(v)
	if err != nil {
		return err
	}
	b.finish(jv)
	return nil
}

func (b *JSONValueBackend) Result() interface{} { return b.result }

func nativeToJSON(v interface{}) (json.Value, error) {
	switch t := v.(type) {
	case nil:
		return json.Null(), nil
	case bool:
		return json.Bool(t), nil
	case int64:
		return json.Int(t), nil
	case float64:
		return json.Float(t), nil
	case string:
		return json.String(t), nil
	case *big.Int:
		return json.BigInt(t), nil
	default:
		return json.Value{}, errors.Errorf("serial: unsupported native value type %T", v)
	}
}

func (b *JSONValueBackend) current() json.Value {
	return b.read[len(b.read)-1]
}

func (b *JSONValueBackend) ReadDictionaryEntry(fn func(name string) error) error {
	cur := b.current()
	var outerErr error
	cur.Each(func(key string, val json.Value) bool {
		b.read = append(b.read, val)
		outerErr = fn(key)
		b.read = b.read[:len(b.read)-1]
		return outerErr == nil
	})
	return outerErr
}

func (b *JSONValueBackend) BeginReadArray() (int, error) {
	return b.current().Len(), nil
}

func (b *JSONValueBackend) EndReadArray() error { return nil }

func (b *JSONValueBackend) ReadArrayEntry(i int, fn func() error) error {
	b.read = append(b.read, b.current().Index(i))
	err := fn()
	b.read = b.read[:len(b.read)-1]
	return err
}

func (b *JSONValueBackend) ReadValue(dst interface{}) error {
	cur := b.current()
	switch d := dst.(type) {
	case *bool:
		v, ok := cur.AsBool()
		if !ok {
			return errors.Errorf("serial: expected bool, got %s", cur.Kind())
		}
		*d = v
	case *int64:
		v, ok := cur.AsInt()
		if !ok {
			f, fok := cur.AsFloat()
			if !fok {
				return errors.Errorf("serial: expected int, got %s", cur.Kind())
			}
			v = int64(f)
		}
		*d = v
	case *float64:
		v, ok := cur.AsFloat()
		if !ok {
			n, nok := cur.AsInt()
			if !nok {
				return errors.Errorf("serial: expected float, got %s", cur.Kind())
			}
			v = float64(n)
		}
		*d = v
	case *string:
		v, ok := cur.AsString()
		if !ok {
			return errors.Errorf("serial: expected string, got %s", cur.Kind())
		}
		*d = v
	case *interface{}:
		*d = jsonToNative(cur)
	default:
		return errors.Errorf("serial: unsupported read destination %T", dst)
	}
	return nil
}

func jsonToNative(v json.Value) interface{} {
	switch v.Kind() {
	case json.KindBool:
		b, _ := v.AsBool()
		return b
	case json.KindInt:
		n, _ := v.AsInt()
		return n
	case json.KindBigInt:
		bi, _ := v.AsBigInt()
		return bi
	case json.KindFloat:
		f, _ := v.AsFloat()
		return f
	case json.KindString:
		s, _ := v.AsString()
		return s
	case json.KindNull:
		return nil
	default:
		return nil
	}
}

func (b *JSONValueBackend) TryReadNull() (bool, error) {
	cur := b.current()
	return cur.IsNull() || cur.IsUndefined(), nil
}
