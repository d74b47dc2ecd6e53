package serial

// Policy lets a caller override how a type serializes without modifying
// the type itself (spec §4.9's "policy-serializable" rule: a type paired
// with an external representation function). When more than one policy in
// a chain applies to a value, the leftmost one wins.
type Policy interface {
	// AppliesTo reports whether this policy handles v.
	AppliesTo(v interface{}) bool
	// ToRepresentation converts v into a value the serializer recurses
	// into (typically a primitive, map, or slice).
	ToRepresentation(v interface{}) (interface{}, error)
	// FromRepresentation populates dst (always a pointer) from repr.
	FromRepresentation(repr interface{}, dst interface{}) error
}

// Representable is the "custom-serializable" rule (spec §4.9): a type
// that knows its own external representation without an external Policy.
type Representable interface {
	ToRepresentation() interface{}
}

// RepresentationSettable is the read-side half of Representable.
type RepresentationSettable interface {
	FromRepresentation(repr interface{}) error
}

// ISOExtStringer covers types (dates, durations) that serialize as a
// single ISO-extended string regardless of backend, per spec §4.9.
type ISOExtStringer interface {
	ToISOExtString() string
}

// ISOExtStringSettable is the read-side half of ISOExtStringer.
type ISOExtStringSettable interface {
	FromISOExtString(s string) error
}

// EnumByNameSetter lets an integer-backed enum type parse its own name
// string, used when a field carries the `byname` tag attribute.
type EnumByNameSetter interface {
	SetByName(name string) error
}
