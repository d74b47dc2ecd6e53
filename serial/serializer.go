package serial

import (
	"fmt"
	"reflect"

	"github.com/pkg/errors"
)

// Serializer drives a Backend through the reflective dispatch table spec
// §4.9 names: enum, tuple/array, map, nullable, policy/custom-serializable,
// composite (struct), pointer, and bool/numeric/string primitives. A
// Serializer is stateless beyond its Backend and Policies, and is safe to
// reuse for multiple independent Serialize/Deserialize calls as long as
// Backend is replaced with a fresh one between them: each concrete backend
// is built for a single Serialize or Deserialize call and has no reset.
type Serializer struct {
	Backend  Backend
	Policies []Policy
}

// New builds a Serializer around backend, trying policies left to right
// before falling back to the fixed type-rule table.
func New(backend Backend, policies ...Policy) *Serializer {
	return &Serializer{Backend: backend, Policies: policies}
}

// Serialize walks v and drives the backend's write-side contract. v is
// typically a struct, map, or slice; scalars are accepted too.
func (s *Serializer) Serialize(v interface{}) error {
	return s.serializeValue(reflect.ValueOf(v), fieldTag{})
}

func (s *Serializer) serializeValue(rv reflect.Value, tag fieldTag) error {
	if !rv.IsValid() {
		return s.Backend.WriteValue(nil)
	}
	if (rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface) && rv.IsNil() {
		return s.Backend.WriteValue(nil)
	}

	if rv.CanInterface() {
		iv := rv.Interface()
		for _, p := range s.Policies {
			if p.AppliesTo(iv) {
				repr, err := p.ToRepresentation(iv)
				if err != nil {
					return errors.Wrap(err, "serial: policy ToRepresentation")
				}
				return s.serializeValue(reflect.ValueOf(repr), fieldTag{})
			}
		}
		if tag.ByName {
			if name, ok := tryStringer(rv); ok {
				return s.Backend.WriteValue(name)
			}
		}
		if r, ok := iv.(Representable); ok {
			return s.serializeValue(reflect.ValueOf(r.ToRepresentation()), fieldTag{})
		}
		if r, ok := iv.(ISOExtStringer); ok {
			return s.Backend.WriteValue(r.ToISOExtString())
		}
		// string-serializable fallback (spec §4.9): a composite type with
		// its own String() stands in for a value the backend can't
		// otherwise represent. Basic kinds skip this so the enum rule
		// above (raw value unless @byName) stays in control of them.
		if !isBasicKind(rv.Kind()) {
			if name, ok := tryStringer(rv); ok {
				return s.Backend.WriteValue(name)
			}
		}
	}

	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface:
		return s.serializeValue(rv.Elem(), tag)
	case reflect.Bool:
		return s.Backend.WriteValue(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return s.Backend.WriteValue(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return s.Backend.WriteValue(int64(rv.Uint()))
	case reflect.Float32, reflect.Float64:
		return s.Backend.WriteValue(rv.Float())
	case reflect.String:
		return s.Backend.WriteValue(rv.String())
	case reflect.Slice, reflect.Array:
		return s.serializeArray(rv)
	case reflect.Map:
		return s.serializeMap(rv)
	case reflect.Struct:
		if tag.AsArray {
			return s.serializeStructAsArray(rv)
		}
		return s.serializeStruct(rv)
	default:
		return errors.Errorf("serial: unsupported kind %s", rv.Kind())
	}
}

func (s *Serializer) serializeArray(rv reflect.Value) error {
	n := rv.Len()
	if err := s.Backend.BeginWriteArray(n); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if err := s.Backend.BeginWriteArrayEntry(i); err != nil {
			return err
		}
		if err := s.serializeValue(rv.Index(i), fieldTag{}); err != nil {
			return err
		}
		if err := s.Backend.EndWriteArrayEntry(i); err != nil {
			return err
		}
	}
	return s.Backend.EndWriteArray()
}

// serializeMap writes a map as a dictionary with stringified keys, per
// spec §4.9 ("map -> dictionary, keys stringified").
func (s *Serializer) serializeMap(rv reflect.Value) error {
	if err := s.Backend.BeginWriteDictionary(); err != nil {
		return err
	}
	iter := rv.MapRange()
	for iter.Next() {
		name := fmt.Sprintf("%v", iter.Key().Interface())
		if err := s.Backend.BeginWriteDictionaryEntry(name); err != nil {
			return err
		}
		if err := s.serializeValue(iter.Value(), fieldTag{}); err != nil {
			return err
		}
		if err := s.Backend.EndWriteDictionaryEntry(name); err != nil {
			return err
		}
	}
	return s.Backend.EndWriteDictionary()
}

func (s *Serializer) serializeStruct(rv reflect.Value) error {
	rt := rv.Type()
	if err := s.Backend.BeginWriteDictionary(); err != nil {
		return err
	}
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		if sf.PkgPath != "" {
			continue
		}
		tag := parseTag(sf.Tag.Get("serial"))
		if tag.Ignore {
			continue
		}
		fv := rv.Field(i)
		if tag.Optional && isEmptyValue(fv) {
			continue
		}
		name := fieldName(sf, tag)
		if err := s.Backend.BeginWriteDictionaryEntry(name); err != nil {
			return err
		}
		if err := s.serializeValue(fv, tag); err != nil {
			return err
		}
		if err := s.Backend.EndWriteDictionaryEntry(name); err != nil {
			return err
		}
	}
	return s.Backend.EndWriteDictionary()
}

// serializeStructAsArray renders a struct positionally by field order
// (the `asarray` tag attribute from spec §4.9/§9).
func (s *Serializer) serializeStructAsArray(rv reflect.Value) error {
	rt := rv.Type()
	n := rt.NumField()
	if err := s.Backend.BeginWriteArray(n); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if err := s.Backend.BeginWriteArrayEntry(i); err != nil {
			return err
		}
		if err := s.serializeValue(rv.Field(i), fieldTag{}); err != nil {
			return err
		}
		if err := s.Backend.EndWriteArrayEntry(i); err != nil {
			return err
		}
	}
	return s.Backend.EndWriteArray()
}

// Deserialize populates dst, which must be a non-nil pointer, from the
// backend's current read cursor.
func (s *Serializer) Deserialize(dst interface{}) error {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return errors.New("serial: destination must be a non-nil pointer")
	}
	return s.deserializeValue(rv.Elem(), fieldTag{})
}

func (s *Serializer) deserializeValue(rv reflect.Value, tag fieldTag) error {
	isNull, err := s.Backend.TryReadNull()
	if err != nil {
		return err
	}
	if isNull {
		rv.Set(reflect.Zero(rv.Type()))
		return nil
	}

	if rv.CanAddr() {
		addr := rv.Addr().Interface()
		for _, p := range s.Policies {
			if p.AppliesTo(addr) {
				var repr interface{}
				if err := s.Backend.ReadValue(&repr); err != nil {
					return err
				}
				return errors.Wrap(p.FromRepresentation(repr, addr), "serial: policy FromRepresentation")
			}
		}
		if tag.ByName {
			if setter, ok := addr.(EnumByNameSetter); ok {
				var name string
				if err := s.Backend.ReadValue(&name); err != nil {
					return err
				}
				return setter.SetByName(name)
			}
		}
		if rs, ok := addr.(RepresentationSettable); ok {
			var repr interface{}
			if err := s.Backend.ReadValue(&repr); err != nil {
				return err
			}
			return rs.FromRepresentation(repr)
		}
		if iss, ok := addr.(ISOExtStringSettable); ok {
			var str string
			if err := s.Backend.ReadValue(&str); err != nil {
				return err
			}
			return iss.FromISOExtString(str)
		}
	}

	switch rv.Kind() {
	case reflect.Ptr:
		if rv.IsNil() {
			rv.Set(reflect.New(rv.Type().Elem()))
		}
		return s.deserializeValue(rv.Elem(), tag)
	case reflect.Bool:
		var b bool
		if err := s.Backend.ReadValue(&b); err != nil {
			return err
		}
		rv.SetBool(b)
		return nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		var n int64
		if err := s.Backend.ReadValue(&n); err != nil {
			return err
		}
		rv.SetInt(n)
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		var n int64
		if err := s.Backend.ReadValue(&n); err != nil {
			return err
		}
		rv.SetUint(uint64(n))
		return nil
	case reflect.Float32, reflect.Float64:
		var f float64
		if err := s.Backend.ReadValue(&f); err != nil {
			return err
		}
		rv.SetFloat(f)
		return nil
	case reflect.String:
		var str string
		if err := s.Backend.ReadValue(&str); err != nil {
			return err
		}
		rv.SetString(str)
		return nil
	case reflect.Slice:
		return s.deserializeSlice(rv)
	case reflect.Map:
		return s.deserializeMap(rv)
	case reflect.Struct:
		if tag.AsArray {
			return s.deserializeStructAsArray(rv)
		}
		return s.deserializeStruct(rv)
	default:
		return errors.Errorf("serial: unsupported kind %s", rv.Kind())
	}
}

func (s *Serializer) deserializeSlice(rv reflect.Value) error {
	n, err := s.Backend.BeginReadArray()
	if err != nil {
		return err
	}
	out := reflect.MakeSlice(rv.Type(), n, n)
	for i := 0; i < n; i++ {
		idx := i
		if err := s.Backend.ReadArrayEntry(idx, func() error {
			return s.deserializeValue(out.Index(idx), fieldTag{})
		}); err != nil {
			return err
		}
	}
	if err := s.Backend.EndReadArray(); err != nil {
		return err
	}
	rv.Set(out)
	return nil
}

func (s *Serializer) deserializeMap(rv reflect.Value) error {
	rt := rv.Type()
	out := reflect.MakeMap(rt)
	err := s.Backend.ReadDictionaryEntry(func(name string) error {
		val := reflect.New(rt.Elem()).Elem()
		if err := s.deserializeValue(val, fieldTag{}); err != nil {
			return err
		}
		key := reflect.ValueOf(name)
		if rt.Key().Kind() != reflect.String {
			return errors.New("serial: only string-keyed maps are supported")
		}
		out.SetMapIndex(key.Convert(rt.Key()), val)
		return nil
	})
	if err != nil {
		return err
	}
	rv.Set(out)
	return nil
}

func (s *Serializer) deserializeStruct(rv reflect.Value) error {
	rt := rv.Type()
	fieldByName := map[string]int{}
	tags := map[string]fieldTag{}
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		if sf.PkgPath != "" {
			continue
		}
		tag := parseTag(sf.Tag.Get("serial"))
		if tag.Ignore {
			continue
		}
		name := fieldName(sf, tag)
		fieldByName[name] = i
		tags[name] = tag
	}
	seen := map[string]bool{}
	err := s.Backend.ReadDictionaryEntry(func(name string) error {
		idx, ok := fieldByName[name]
		if !ok {
			return nil
		}
		seen[name] = true
		return s.deserializeValue(rv.Field(idx), tags[name])
	})
	if err != nil {
		return err
	}
	for name, tag := range tags {
		if !tag.Optional && !seen[name] {
			return errors.Errorf("serial: missing required field %q", name)
		}
	}
	return nil
}

func (s *Serializer) deserializeStructAsArray(rv reflect.Value) error {
	rt := rv.Type()
	n, err := s.Backend.BeginReadArray()
	if err != nil {
		return err
	}
	for i := 0; i < rt.NumField() && i < n; i++ {
		idx := i
		if err := s.Backend.ReadArrayEntry(idx, func() error {
			return s.deserializeValue(rv.Field(idx), fieldTag{})
		}); err != nil {
			return err
		}
	}
	return s.Backend.EndReadArray()
}

func fieldName(sf reflect.StructField, tag fieldTag) string {
	if tag.Name != "" {
		return tag.Name
	}
	return underscoreStrip(sf.Name)
}

func isEmptyValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Slice, reflect.Map:
		return v.IsNil()
	case reflect.String:
		return v.Len() == 0
	case reflect.Array:
		return v.Len() == 0
	default:
		return false
	}
}

func isBasicKind(k reflect.Kind) bool {
	switch k {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

func tryStringer(rv reflect.Value) (string, bool) {
	if !rv.CanInterface() {
		return "", false
	}
	if s, ok := rv.Interface().(fmt.Stringer); ok {
		return s.String(), true
	}
	return "", false
}
