package bson

import "github.com/pkg/errors"

var (
	// ErrNotImplemented is returned by codec paths spec §9 leaves as open
	// questions: regex is supported, but dbRef and codeWScope (both already
	// deprecated in the wire spec) are rejected rather than emulated.
	ErrNotImplemented = errors.New("bson: not implemented")
	// ErrTruncated is a protocol error (spec §7 taxonomy #4): the wire slice
	// ended before a declared length or terminator was reached.
	ErrTruncated = errors.New("bson: truncated document")
	// ErrBadLength is raised when a declared length prefix disagrees with
	// the slice it is supposed to bound.
	ErrBadLength = errors.New("bson: length mismatch")
	// ErrUnterminatedCString is raised when a key or string payload is
	// missing its NUL terminator.
	ErrUnterminatedCString = errors.New("bson: missing terminator")
	// ErrKeyNotFound is returned by Value.Field/Value.At when no element
	// with the requested key/index exists.
	ErrKeyNotFound = errors.New("bson: key not found")
	// ErrWrongType is returned by the typed accessors (AsString, AsInt32,
	// ...) when the value's tag doesn't match.
	ErrWrongType = errors.New("bson: wrong type")
)
