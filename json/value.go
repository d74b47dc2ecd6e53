// Package json implements the tagged-variant JSON value described in spec
// §3.6/§4.8: a JS-like value with undefined/null/bool/int/bigInt/float/
// string/array/object variants, a lenient recursive-descent parser, and a
// compact/pretty writer, independent of the standard library's
// encoding/json (this package is itself the codec spec.md asks to build).
package json

import "math/big"

// Kind is the tagged-variant discriminator (spec §4.8: "8 (optionally 9
// incl. big-int) JS-like types").
type Kind int

const (
	KindUndefined Kind = iota
	KindNull
	KindBool
	KindInt
	KindBigInt
	KindFloat
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindUndefined:
		return "undefined"
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindBigInt:
		return "bigInt"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Value is the tagged JSON variant. The zero Value is Undefined.
type Value struct {
	kind Kind

	b   bool
	i   int64
	big *big.Int
	f   float64
	s   string
	arr []Value
	obj *orderedFields
}

// orderedFields preserves insertion order for object keys, matching the
// teacher's preference for deterministic, observable iteration order over
// a bare map.
type orderedFields struct {
	keys   []string
	values map[string]Value
}

func newOrderedFields() *orderedFields {
	return &orderedFields{values: make(map[string]Value)}
}

func (o *orderedFields) set(key string, v Value) {
	if _, exists := o.values[key]; !exists {
		o.keys = append(o.keys, key)
	}
	o.values[key] = v
}

func (o *orderedFields) get(key string) (Value, bool) {
	v, ok := o.values[key]
	return v, ok
}

func Undefined() Value { return Value{kind: KindUndefined} }
func Null() Value      { return Value{kind: KindNull} }
func Bool(v bool) Value { return Value{kind: KindBool, b: v} }
func Int(v int64) Value { return Value{kind: KindInt, i: v} }
func BigInt(v *big.Int) Value { return Value{kind: KindBigInt, big: v} }
func Float(v float64) Value { return Value{kind: KindFloat, f: v} }
func String(v string) Value { return Value{kind: KindString, s: v} }

func Array(items ...Value) Value {
	return Value{kind: KindArray, arr: append([]Value{}, items...)}
}

func Object() Value {
	return Value{kind: KindObject, obj: newOrderedFields()}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsUndefined() bool { return v.kind == KindUndefined }
func (v Value) IsNull() bool      { return v.kind == KindNull }

// AsBool/AsInt/AsBigInt/AsFloat/AsString return the underlying value and
// whether v's kind matched.
func (v Value) AsBool() (bool, bool)       { return v.b, v.kind == KindBool }
func (v Value) AsInt() (int64, bool)       { return v.i, v.kind == KindInt }
func (v Value) AsBigInt() (*big.Int, bool) { return v.big, v.kind == KindBigInt }
func (v Value) AsFloat() (float64, bool)   { return v.f, v.kind == KindFloat }
func (v Value) AsString() (string, bool)   { return v.s, v.kind == KindString }

// Opt returns the underlying value via convert if v's kind matches want,
// else def. Mirrors spec §4.8's `opt(T, default)`.
func Opt[T any](v Value, want Kind, convert func(Value) T, def T) T {
	if v.kind != want {
		return def
	}
	return convert(v)
}

// Len reports an array's element count or an object's field count.
func (v Value) Len() int {
	switch v.kind {
	case KindArray:
		return len(v.arr)
	case KindObject:
		return len(v.obj.keys)
	default:
		return 0
	}
}

// Index returns an array element, or Undefined if out of range.
func (v Value) Index(i int) Value {
	if v.kind != KindArray || i < 0 || i >= len(v.arr) {
		return Undefined()
	}
	return v.arr[i]
}

// Append returns a new array Value with item appended (Values are
// immutable from the caller's perspective, matching the teacher's
// copy-on-write style for small value types).
func (v Value) Append(item Value) Value {
	if v.kind != KindArray {
		v = Array()
	}
	out := make([]Value, len(v.arr)+1)
	copy(out, v.arr)
	out[len(v.arr)] = item
	return Value{kind: KindArray, arr: out}
}

// Field reads an object field. Reading a non-existent field yields
// Undefined without mutating v, per spec §4.8.
func (v Value) Field(name string) Value {
	if v.kind != KindObject {
		return Undefined()
	}
	if val, ok := v.obj.get(name); ok {
		return val
	}
	return Undefined()
}

// WithField returns a new object Value with name set to val.
func (v Value) WithField(name string, val Value) Value {
	out := Object()
	if v.kind == KindObject {
		for _, k := range v.obj.keys {
			ev, _ := v.obj.get(k)
			out.obj.set(k, ev)
		}
	}
	out.obj.set(name, val)
	return out
}

// Keys returns object field names in insertion order.
func (v Value) Keys() []string {
	if v.kind != KindObject {
		return nil
	}
	return append([]string{}, v.obj.keys...)
}

// Each iterates array elements or object fields in order, stopping early if
// fn returns false. For arrays, key is the decimal index.
func (v Value) Each(fn func(key string, val Value) bool) {
	switch v.kind {
	case KindArray:
		for i, item := range v.arr {
			if !fn(itoa(i), item) {
				return
			}
		}
	case KindObject:
		for _, k := range v.obj.keys {
			val, _ := v.obj.get(k)
			if !fn(k, val) {
				return
			}
		}
	}
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}

// Equal is strict-by-type equality (spec §4.8).
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindUndefined, KindNull:
		return true
	case KindBool:
		return v.b == other.b
	case KindInt:
		return v.i == other.i
	case KindBigInt:
		return v.big.Cmp(other.big) == 0
	case KindFloat:
		return v.f == other.f
	case KindString:
		return v.s == other.s
	case KindArray:
		if len(v.arr) != len(other.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(other.arr[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(v.obj.keys) != len(other.obj.keys) {
			return false
		}
		for _, k := range v.obj.keys {
			a, _ := v.obj.get(k)
			b, ok := other.obj.get(k)
			if !ok || !a.Equal(b) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Add implements the arithmetic operations spec §4.8 names between
// same-typed values: int+int, float+float, string~string (concatenation),
// array~array (concatenation). Mismatched or unsupported kinds return
// Undefined.
func (v Value) Add(other Value) Value {
	if v.kind != other.kind {
		return Undefined()
	}
	switch v.kind {
	case KindInt:
		return Int(v.i + other.i)
	case KindFloat:
		return Float(v.f + other.f)
	case KindString:
		return String(v.s + other.s)
	case KindArray:
		out := make([]Value, 0, len(v.arr)+len(other.arr))
		out = append(out, v.arr...)
		out = append(out, other.arr...)
		return Value{kind: KindArray, arr: out}
	default:
		return Undefined()
	}
}
