package bson

import (
	"bytes"
	"encoding/binary"
	"math"
	"time"
)

// AsDouble reads a TypeDouble payload.
func (v Value) AsDouble() (float64, error) {
	if v.typ != TypeDouble {
		return 0, ErrWrongType
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(v.raw)), nil
}

// AsString reads TypeString/TypeCode/TypeSymbol payloads, which share the
// length-prefixed-cstring wire shape.
func (v Value) AsString() (string, error) {
	switch v.typ {
	case TypeString, TypeCode, TypeSymbol:
	default:
		return "", ErrWrongType
	}
	n := int(int32(binary.LittleEndian.Uint32(v.raw[:4])))
	return string(v.raw[4 : 4+n-1]), nil
}

// AsBool reads a TypeBool payload.
func (v Value) AsBool() (bool, error) {
	if v.typ != TypeBool {
		return false, ErrWrongType
	}
	return v.raw[0] != 0, nil
}

// AsInt32 reads a TypeInt32 payload.
func (v Value) AsInt32() (int32, error) {
	if v.typ != TypeInt32 {
		return 0, ErrWrongType
	}
	return int32(binary.LittleEndian.Uint32(v.raw)), nil
}

// AsInt64 reads a TypeInt64 payload.
func (v Value) AsInt64() (int64, error) {
	if v.typ != TypeInt64 {
		return 0, ErrWrongType
	}
	return int64(binary.LittleEndian.Uint64(v.raw)), nil
}

// AsDate reads a TypeDate payload: milliseconds since the Unix epoch.
func (v Value) AsDate() (time.Time, error) {
	if v.typ != TypeDate {
		return time.Time{}, ErrWrongType
	}
	ms := int64(binary.LittleEndian.Uint64(v.raw))
	return time.UnixMilli(ms).UTC(), nil
}

// AsTimestamp reads a TypeTimestamp payload as its raw int64 (spec §4.7's
// "timestamp as its raw int64" JSON bridge mirrors this directly).
func (v Value) AsTimestamp() (int64, error) {
	if v.typ != TypeTimestamp {
		return 0, ErrWrongType
	}
	return int64(binary.LittleEndian.Uint64(v.raw)), nil
}

// AsObjectID reads a TypeObjectID payload.
func (v Value) AsObjectID() (ObjectID, error) {
	if v.typ != TypeObjectID {
		return ObjectID{}, ErrWrongType
	}
	var id ObjectID
	copy(id[:], v.raw)
	return id, nil
}

// AsBinary reads a TypeBinData payload: a subtype byte plus the payload.
func (v Value) AsBinary() (subtype byte, data []byte, err error) {
	if v.typ != TypeBinData {
		return 0, nil, ErrWrongType
	}
	return v.raw[4], v.raw[5:], nil
}

// AsRegex reads a TypeRegex payload as (pattern, options), the field order
// decided in spec §9.
func (v Value) AsRegex() (pattern, options string, err error) {
	if v.typ != TypeRegex {
		return "", "", ErrWrongType
	}
	p := bytes.IndexByte(v.raw, 0)
	pattern = string(v.raw[:p])
	rest := v.raw[p+1:]
	o := bytes.IndexByte(rest, 0)
	options = string(rest[:o])
	return pattern, options, nil
}
