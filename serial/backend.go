package serial

// Backend is the pluggable (de)serialization target described in spec
// §6.2's "serializer back-end contract". Method names mirror the spec's
// `!T`-templated D methods with the type parameter dropped, since Go's
// dispatch happens through reflect.Value at the serializer level instead
// of per-backend generic instantiation.
//
// Write-side calls always nest Begin/End pairs correctly (the serializer
// guarantees this); a backend only needs to track its own container stack.
// Read-side calls drive iteration: ReadDictionaryEntry and ReadArrayEntry
// hand control back to the serializer via a callback so that nested
// composite values can recurse before the backend advances its cursor.
type Backend interface {
	// Write side.
	BeginWriteDictionary() error
	EndWriteDictionary() error
	BeginWriteDictionaryEntry(name string) error
	EndWriteDictionaryEntry(name string) error
	BeginWriteArray(n int) error
	EndWriteArray() error
	BeginWriteArrayEntry(i int) error
	EndWriteArrayEntry(i int) error
	WriteValue(v interface{}) error
	// Result returns the finished serialized value once the top-level
	// write has completed (spec's getSerializedResult).
	Result() interface{}

	// Read side.
	// ReadDictionaryEntry invokes fn once per present key, in the
	// backend's natural order, with that entry's value made current for
	// the duration of fn.
	ReadDictionaryEntry(fn func(name string) error) error
	// BeginReadArray reports the array's element count.
	BeginReadArray() (int, error)
	EndReadArray() error
	// ReadArrayEntry makes element i current for the duration of fn.
	ReadArrayEntry(i int, fn func() error) error
	// ReadValue decodes the current value into dst: a pointer to bool,
	// int64, float64 or string, or *interface{} when a Policy or
	// RepresentationSettable reads its raw representation. A backend that
	// does not support a destination type returns an error.
	ReadValue(dst interface{}) error
	// TryReadNull reports whether the current value is null/absent
	// without consuming it.
	TryReadNull() (bool, error)
}
