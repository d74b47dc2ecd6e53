package serial

import (
	"github.com/pkg/errors"

	"github.com/vibe-d/vibe.d-sub004/bson"
)

// BSONBackend serializes into, and deserializes out of, a bson.Value
// document tree using bson.DocumentBuilder/ArrayBuilder on the write side
// and bson.Value's Field/At/Each/AsX accessors on the read side.
type BSONBackend struct {
	stack  []bsonFrame
	result bson.Value

	read []bson.Value
}

type bsonFrameKind int

const (
	bsonDict bsonFrameKind = iota
	bsonArr
)

type bsonFrame struct {
	kind bsonFrameKind
	doc  *bson.DocumentBuilder
	arr  *bson.ArrayBuilder
	key  string
}

// NewBSONBackend returns a backend ready for a single Serialize call.
func NewBSONBackend() *BSONBackend {
	return &BSONBackend{}
}

// NewBSONBackendFromValue returns a backend ready for a single
// Deserialize call reading from v (typically the result of bson.Parse).
func NewBSONBackendFromValue(v bson.Value) *BSONBackend {
	return &BSONBackend{read: []bson.Value{v}}
}

func (b *BSONBackend) finish(v bson.Value) {
	if len(b.stack) == 0 {
		b.result = v
		return
	}
	top := &b.stack[len(b.stack)-1]
	switch top.kind {
	case bsonDict:
		top.doc.AppendValue(top.key, v)
	case bsonArr:
		top.arr.Append(v)
	}
}

func (b *BSONBackend) BeginWriteDictionary() error {
	b.stack = append(b.stack, bsonFrame{kind: bsonDict, doc: bson.NewDocumentBuilder()})
	return nil
}

func (b *BSONBackend) EndWriteDictionary() error {
	n := len(b.stack)
	f := b.stack[n-1]
	b.stack = b.stack[:n-1]
	b.finish(f.doc.Build())
	return nil
}

func (b *BSONBackend) BeginWriteDictionaryEntry(name string) error {
	b.stack[len(b.stack)-1].key = name
	return nil
}

func (b *BSONBackend) EndWriteDictionaryEntry(name string) error { return nil }

func (b *BSONBackend) BeginWriteArray(n int) error {
	b.stack = append(b.stack, bsonFrame{kind: bsonArr, arr: bson.NewArrayBuilder()})
	return nil
}

func (b *BSONBackend) EndWriteArray() error {
	n := len(b.stack)
	f := b.stack[n-1]
	b.stack = b.stack[:n-1]
	b.finish(f.arr.Build())
	return nil
}

func (b *BSONBackend) BeginWriteArrayEntry(i int) error { return nil }
func (b *BSONBackend) EndWriteArrayEntry(i int) error   { return nil }

func (b *BSONBackend) WriteValue(v interface{}) error {
	bv, err := nativeToBSON(v)
	if err != nil {
		return err
	}
	b.finish(bv)
	return nil
}

func (b *BSONBackend) Result() interface{} { return b.result }

func nativeToBSON(v interface{}) (bson.Value, error) {
	switch t := v.(type) {
	case nil:
		return bson.Null(), nil
	case bool:
		return bson.Bool(t), nil
	case int64:
		return bson.Int64(t), nil
	case float64:
		return bson.Double(t), nil
	case string:
		return bson.String(t), nil
	default:
		return bson.Value{}, errors.Errorf("serial: unsupported native value type %T for bson backend", v)
	}
}

func (b *BSONBackend) current() bson.Value {
	return b.read[len(b.read)-1]
}

func (b *BSONBackend) ReadDictionaryEntry(fn func(name string) error) error {
	cur := b.current()
	var outerErr error
	err := cur.Each(func(key string, val bson.Value) bool {
		b.read = append(b.read, val)
		outerErr = fn(key)
		b.read = b.read[:len(b.read)-1]
		return outerErr == nil
	})
	if err != nil {
		return err
	}
	return outerErr
}

func (b *BSONBackend) BeginReadArray() (int, error) {
	return b.current().Len()
}

func (b *BSONBackend) EndReadArray() error { return nil }

func (b *BSONBackend) ReadArrayEntry(i int, fn func() error) error {
	el, err := b.current().At(i)
	if err != nil {
		return err
	}
	b.read = append(b.read, el)
	err = fn()
	b.read = b.read[:len(b.read)-1]
	return err
}

func (b *BSONBackend) ReadValue(dst interface{}) error {
	cur := b.current()
	switch d := dst.(type) {
	case *bool:
		v, err := cur.AsBool()
		if err != nil {
			return err
		}
		*d = v
	case *int64:
		switch cur.Type() {
		case bson.TypeInt32:
			n, err := cur.AsInt32()
			if err != nil {
				return err
			}
			*d = int64(n)
		case bson.TypeInt64:
			n, err := cur.AsInt64()
			if err != nil {
				return err
			}
			*d = n
		case bson.TypeTimestamp:
			n, err := cur.AsTimestamp()
			if err != nil {
				return err
			}
			*d = n
		default:
			return errors.Errorf("serial: expected int-like bson type, got %s", cur.Type())
		}
	case *float64:
		v, err := cur.AsDouble()
		if err != nil {
			return err
		}
		*d = v
	case *string:
		v, err := cur.AsString()
		if err != nil {
			return err
		}
		*d = v
	default:
		return errors.Errorf("serial: unsupported read destination %T", dst)
	}
	return nil
}

func (b *BSONBackend) TryReadNull() (bool, error) {
	cur := b.current()
	return cur.IsNull() || cur.IsUndefined(), nil
}
