package bson

import (
	"bytes"
	"encoding/binary"
	"math"
	"strconv"
	"time"
)

func writeCString(buf *bytes.Buffer, s string) {
	buf.WriteString(s)
	buf.WriteByte(0)
}

func writeLengthPrefixedCString(buf *bytes.Buffer, s string) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], uint32(len(s)+1))
	buf.Write(tmp[:])
	buf.WriteString(s)
	buf.WriteByte(0)
}

// Double/String/Bool/Int32/Int64/Date/Timestamp/ObjectIDValue/Binary/Regex/
// Symbol/Code/Null/Undefined/MinKeyValue/MaxKeyValue construct scalar
// Values from native Go values, per spec §4.7's "assignment from a native
// value produces a fresh byte slice with the correct length prefix".

func Double(v float64) Value {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], math.Float64bits(v))
	return Value{typ: TypeDouble, raw: tmp[:]}
}

func String(v string) Value {
	var buf bytes.Buffer
	writeLengthPrefixedCString(&buf, v)
	return Value{typ: TypeString, raw: buf.Bytes()}
}

func Symbol(v string) Value {
	var buf bytes.Buffer
	writeLengthPrefixedCString(&buf, v)
	return Value{typ: TypeSymbol, raw: buf.Bytes()}
}

func Code(v string) Value {
	var buf bytes.Buffer
	writeLengthPrefixedCString(&buf, v)
	return Value{typ: TypeCode, raw: buf.Bytes()}
}

func Bool(v bool) Value {
	b := byte(0)
	if v {
		b = 1
	}
	return Value{typ: TypeBool, raw: []byte{b}}
}

func Int32(v int32) Value {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], uint32(v))
	return Value{typ: TypeInt32, raw: tmp[:]}
}

func Int64(v int64) Value {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], uint64(v))
	return Value{typ: TypeInt64, raw: tmp[:]}
}

func Date(t time.Time) Value {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], uint64(t.UnixMilli()))
	return Value{typ: TypeDate, raw: tmp[:]}
}

func Timestamp(v int64) Value {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], uint64(v))
	return Value{typ: TypeTimestamp, raw: tmp[:]}
}

func ObjectIDValue(id ObjectID) Value {
	raw := make([]byte, 12)
	copy(raw, id[:])
	return Value{typ: TypeObjectID, raw: raw}
}

func Binary(subtype byte, data []byte) Value {
	var buf bytes.Buffer
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], uint32(len(data)))
	buf.Write(tmp[:])
	buf.WriteByte(subtype)
	buf.Write(data)
	return Value{typ: TypeBinData, raw: buf.Bytes()}
}

// Regex writes pattern then options, both null-terminated, the order
// decided in spec §9.
func Regex(pattern, options string) Value {
	var buf bytes.Buffer
	writeCString(&buf, pattern)
	writeCString(&buf, options)
	return Value{typ: TypeRegex, raw: buf.Bytes()}
}

func Null() Value      { return Value{typ: TypeNull} }
func Undefined() Value { return Value{typ: TypeUndefined} }
func MinKeyValue() Value { return Value{typ: TypeMinKey} }
func MaxKeyValue() Value { return Value{typ: TypeMaxKey} }

// DBRef and CodeWScope are rejected on encode per spec §9: both are
// deprecated wire formats with no natural Go value to construct them from.
func DBRef() (Value, error)       { return Value{}, ErrNotImplemented }
func CodeWScope() (Value, error)  { return Value{}, ErrNotImplemented }

// DocumentBuilder assembles an object or array Value field-by-field,
// building child payloads first and prepending the length prefix last, per
// spec §4.7's encoding rule.
type DocumentBuilder struct {
	buf bytes.Buffer
}

func NewDocumentBuilder() *DocumentBuilder { return &DocumentBuilder{} }

// AppendValue appends a (key, value) element. Works for any Value,
// including nested objects/arrays, since their Raw() is already a complete
// length-prefixed, terminated document.
func (b *DocumentBuilder) AppendValue(key string, v Value) *DocumentBuilder {
	b.buf.WriteByte(byte(v.typ))
	writeCString(&b.buf, key)
	b.buf.Write(v.raw)
	return b
}

// Build finalizes the document: length = payload size + 5 (4-byte prefix +
// 1-byte terminator), as int32, per spec §4.7.
func (b *DocumentBuilder) Build() Value {
	payload := b.buf.Bytes()
	total := len(payload) + 5
	out := make([]byte, 0, total)
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(total))
	out = append(out, lenBuf[:]...)
	out = append(out, payload...)
	out = append(out, 0x00)
	return Value{typ: TypeObject, raw: out}
}

// ArrayBuilder is DocumentBuilder with auto-incrementing decimal keys
// (spec §3.5: "arrays use decimal string keys").
type ArrayBuilder struct {
	b   *DocumentBuilder
	idx int
}

func NewArrayBuilder() *ArrayBuilder { return &ArrayBuilder{b: NewDocumentBuilder()} }

func (a *ArrayBuilder) Append(v Value) *ArrayBuilder {
	a.b.AppendValue(strconv.Itoa(a.idx), v)
	a.idx++
	return a
}

// Build finalizes the array; the result's Type() is overridden to
// TypeArray since DocumentBuilder.Build always tags TypeObject.
func (a *ArrayBuilder) Build() Value {
	v := a.b.Build()
	v.typ = TypeArray
	return v
}
