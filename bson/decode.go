package bson

import (
	"bytes"
	"encoding/binary"
	"strconv"

	"github.com/pkg/errors"
)

// Value is the tagged-union wire value described in spec §3.5: a type tag
// plus the raw wire slice for that value's payload. Sub-access walks the
// slice linearly rather than eagerly decoding into a Go map/slice tree,
// matching the spec's "lazy decoding" requirement.
type Value struct {
	typ Type
	raw []byte // payload only, never including the leading tag byte or key
}

// Parse interprets data as a top-level BSON document (spec §6.3): a 32-bit
// little-endian length prefix, element bytes, and a 0x00 terminator.
func Parse(data []byte) (Value, error) {
	if len(data) < 5 {
		return Value{}, ErrTruncated
	}
	n := int(int32(binary.LittleEndian.Uint32(data[:4])))
	if n != len(data) {
		return Value{}, ErrBadLength
	}
	if data[len(data)-1] != 0x00 {
		return Value{}, ErrTruncated
	}
	// validate the body can be fully scanned
	if err := scanDocument(data, func(element) bool { return true }); err != nil {
		return Value{}, err
	}
	return Value{typ: TypeObject, raw: data}, nil
}

// Type reports the value's wire tag.
func (v Value) Type() Type { return v.typ }

// Raw returns the value's payload bytes (for object/array, the full
// length-prefixed, terminated document).
func (v Value) Raw() []byte { return v.raw }

func (v Value) IsNull() bool      { return v.typ == TypeNull }
func (v Value) IsUndefined() bool { return v.typ == TypeUndefined }

// element is one (tag, key, payload) triple found scanning a document body.
type element struct {
	typ     Type
	key     string
	payload []byte
}

func (el element) toValue() Value { return Value{typ: el.typ, raw: el.payload} }

// scanDocument walks doc's body, invoking fn for each element in wire
// order until fn returns false or the terminator is reached.
func scanDocument(doc []byte, fn func(element) bool) error {
	if len(doc) < 5 {
		return ErrTruncated
	}
	declared := int(int32(binary.LittleEndian.Uint32(doc[:4])))
	if declared != len(doc) {
		return ErrBadLength
	}
	body := doc[4 : len(doc)-1]
	i := 0
	for i < len(body) {
		tag := Type(body[i])
		i++
		if i >= len(body) {
			return ErrUnterminatedCString
		}
		nameEnd := bytes.IndexByte(body[i:], 0)
		if nameEnd < 0 {
			return ErrUnterminatedCString
		}
		key := string(body[i : i+nameEnd])
		i += nameEnd + 1

		size, err := elementSize(tag, body[i:])
		if err != nil {
			return err
		}
		if i+size > len(body) {
			return ErrTruncated
		}
		payload := body[i : i+size]
		i += size

		if !fn(element{typ: tag, key: key, payload: payload}) {
			return nil
		}
	}
	return nil
}

// elementSize reports how many bytes of rest belong to tag's payload,
// without consuming them.
func elementSize(tag Type, rest []byte) (int, error) {
	switch tag {
	case TypeDouble, TypeDate, TypeTimestamp, TypeInt64:
		return fixedSize(rest, 8)
	case TypeInt32:
		return fixedSize(rest, 4)
	case TypeBool:
		return fixedSize(rest, 1)
	case TypeObjectID:
		return fixedSize(rest, 12)
	case TypeNull, TypeUndefined, TypeMinKey, TypeMaxKey:
		return 0, nil
	case TypeString, TypeCode, TypeSymbol:
		return lengthPrefixedCStringSize(rest)
	case TypeObject, TypeArray:
		return docSize(rest)
	case TypeBinData:
		return binDataSize(rest)
	case TypeRegex:
		return regexSize(rest)
	case TypeDBRef, TypeCodeWScope:
		return 0, ErrNotImplemented
	default:
		return 0, errors.Wrapf(ErrTruncated, "unknown bson tag 0x%02x", byte(tag))
	}
}

func fixedSize(rest []byte, n int) (int, error) {
	if len(rest) < n {
		return 0, ErrTruncated
	}
	return n, nil
}

func lengthPrefixedCStringSize(rest []byte) (int, error) {
	if len(rest) < 4 {
		return 0, ErrTruncated
	}
	n := int(int32(binary.LittleEndian.Uint32(rest[:4])))
	total := 4 + n
	if n < 1 || total > len(rest) {
		return 0, ErrTruncated
	}
	if rest[total-1] != 0 {
		return 0, ErrUnterminatedCString
	}
	return total, nil
}

func docSize(rest []byte) (int, error) {
	if len(rest) < 4 {
		return 0, ErrTruncated
	}
	n := int(int32(binary.LittleEndian.Uint32(rest[:4])))
	if n < 5 || n > len(rest) {
		return 0, ErrBadLength
	}
	if rest[n-1] != 0 {
		return 0, ErrTruncated
	}
	return n, nil
}

func binDataSize(rest []byte) (int, error) {
	if len(rest) < 5 {
		return 0, ErrTruncated
	}
	n := int(int32(binary.LittleEndian.Uint32(rest[:4])))
	total := 5 + n
	if n < 0 || total > len(rest) {
		return 0, ErrTruncated
	}
	return total, nil
}

// regexSize spans pattern then options (spec §9's decided field order),
// both null-terminated C-strings.
func regexSize(rest []byte) (int, error) {
	p := bytes.IndexByte(rest, 0)
	if p < 0 {
		return 0, ErrUnterminatedCString
	}
	o := bytes.IndexByte(rest[p+1:], 0)
	if o < 0 {
		return 0, ErrUnterminatedCString
	}
	return p + 1 + o + 1, nil
}

// Field looks up name in an object or array (array indices are decimal
// string keys per spec §3.5), scanning elements in wire order.
func (v Value) Field(name string) (Value, error) {
	if v.typ != TypeObject && v.typ != TypeArray {
		return Value{}, ErrWrongType
	}
	var found *element
	err := scanDocument(v.raw, func(el element) bool {
		if el.key == name {
			e := el
			found = &e
			return false
		}
		return true
	})
	if err != nil {
		return Value{}, err
	}
	if found == nil {
		return Value{}, ErrKeyNotFound
	}
	return found.toValue(), nil
}

// At is Field using a decimal array index.
func (v Value) At(i int) (Value, error) {
	return v.Field(strconv.Itoa(i))
}

// Keys returns element keys in wire order (spec §8: "BSON array key '10'
// sorts after '9' at the wire level"; callers must not re-sort).
func (v Value) Keys() ([]string, error) {
	if v.typ != TypeObject && v.typ != TypeArray {
		return nil, ErrWrongType
	}
	var keys []string
	err := scanDocument(v.raw, func(el element) bool {
		keys = append(keys, el.key)
		return true
	})
	return keys, err
}

// Len reports the element count of an object or array.
func (v Value) Len() (int, error) {
	keys, err := v.Keys()
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

// Each iterates an object/array's elements in wire order, stopping early if
// fn returns false.
func (v Value) Each(fn func(key string, val Value) bool) error {
	if v.typ != TypeObject && v.typ != TypeArray {
		return ErrWrongType
	}
	return scanDocument(v.raw, func(el element) bool {
		return fn(el.key, el.toValue())
	})
}

// Equal is the arithmetic/strict equality spec §8 requires: same type, and
// recursively equal elements for containers, byte-identical payload
// otherwise.
func (v Value) Equal(other Value) bool {
	if v.typ != other.typ {
		return false
	}
	if v.typ != TypeObject && v.typ != TypeArray {
		return bytes.Equal(v.raw, other.raw)
	}
	ak, err := v.Keys()
	if err != nil {
		return false
	}
	bk, err := other.Keys()
	if err != nil || len(ak) != len(bk) {
		return false
	}
	for idx, k := range ak {
		if bk[idx] != k {
			return false
		}
		av, _ := v.Field(k)
		bv, err := other.Field(k)
		if err != nil || !av.Equal(bv) {
			return false
		}
	}
	return true
}
