package bson

import (
	"encoding/base64"

	"github.com/vibe-d/vibe.d-sub004/json"
)

// ToJSON maps a Bson value to a json.Value field-by-field (spec §4.7):
// binData encodes as a base64 string; objectID as hex; date as its
// ISO-extended string; timestamp as its raw int64. regex, dbRef and
// codeWScope have no JSON mapping and return ErrNotImplemented.
func ToJSON(v Value) (json.Value, error) {
	switch v.typ {
	case TypeDouble:
		f, _ := v.AsDouble()
		return json.Float(f), nil
	case TypeString, TypeSymbol, TypeCode:
		s, _ := v.AsString()
		return json.String(s), nil
	case TypeBool:
		b, _ := v.AsBool()
		return json.Bool(b), nil
	case TypeInt32:
		n, _ := v.AsInt32()
		return json.Int(int64(n)), nil
	case TypeInt64:
		n, _ := v.AsInt64()
		return json.Int(n), nil
	case TypeTimestamp:
		n, _ := v.AsTimestamp()
		return json.Int(n), nil
	case TypeNull:
		return json.Null(), nil
	case TypeUndefined:
		return json.Undefined(), nil
	case TypeObjectID:
		id, _ := v.AsObjectID()
		return json.String(id.Hex()), nil
	case TypeDate:
		t, _ := v.AsDate()
		return json.String(t.Format("2006-01-02T15:04:05.000Z")), nil
	case TypeBinData:
		_, data, _ := v.AsBinary()
		return json.String(base64.StdEncoding.EncodeToString(data)), nil
	case TypeArray:
		out := json.Array()
		var firstErr error
		err := v.Each(func(_ string, el Value) bool {
			jv, convErr := ToJSON(el)
			if convErr != nil {
				firstErr = convErr
				return false
			}
			out = out.Append(jv)
			return true
		})
		if firstErr != nil {
			return json.Value{}, firstErr
		}
		return out, err
	case TypeObject:
		out := json.Object()
		var firstErr error
		err := v.Each(func(key string, el Value) bool {
			jv, convErr := ToJSON(el)
			if convErr != nil {
				firstErr = convErr
				return false
			}
			out = out.WithField(key, jv)
			return true
		})
		if firstErr != nil {
			return json.Value{}, firstErr
		}
		return out, err
	case TypeRegex, TypeDBRef, TypeCodeWScope:
		return json.Value{}, ErrNotImplemented
	default:
		return json.Value{}, ErrNotImplemented
	}
}

// FromJSON maps a json.Value into a Bson Value using the inverse of
// ToJSON's scalar rules; json has no binData/objectID/date/timestamp
// variants of its own, so those always round-trip through their JSON
// string/int representations rather than being reconstructed exactly.
func FromJSON(v json.Value) (Value, error) {
	switch v.Kind() {
	case json.KindUndefined:
		return Undefined(), nil
	case json.KindNull:
		return Null(), nil
	case json.KindBool:
		b, _ := v.AsBool()
		return Bool(b), nil
	case json.KindInt:
		n, _ := v.AsInt()
		return Int64(n), nil
	case json.KindBigInt:
		bi, _ := v.AsBigInt()
		return String(bi.String()), nil
	case json.KindFloat:
		f, _ := v.AsFloat()
		return Double(f), nil
	case json.KindString:
		s, _ := v.AsString()
		return String(s), nil
	case json.KindArray:
		b := NewArrayBuilder()
		var err error
		v.Each(func(_ string, el json.Value) bool {
			bv, convErr := FromJSON(el)
			if convErr != nil {
				err = convErr
				return false
			}
			b.Append(bv)
			return true
		})
		if err != nil {
			return Value{}, err
		}
		return b.Build(), nil
	case json.KindObject:
		b := NewDocumentBuilder()
		var err error
		v.Each(func(key string, el json.Value) bool {
			bv, convErr := FromJSON(el)
			if convErr != nil {
				err = convErr
				return false
			}
			b.AppendValue(key, bv)
			return true
		})
		if err != nil {
			return Value{}, err
		}
		return b.Build(), nil
	default:
		return Value{}, ErrNotImplemented
	}
}
