package bson

import (
	"encoding/hex"

	"github.com/pkg/errors"
	"github.com/rs/xid"
)

// ObjectID is the 12-byte identifier from spec §4.7: big-endian unix-time(4)
// | machine-id(3) | pid(2) | counter(3). That is exactly the byte layout
// github.com/rs/xid produces, so generation is delegated to it rather than
// hand-rolling the machine-id/pid/counter bookkeeping xid already does
// correctly (process-wide atomic counter, machine id derived once at
// startup).
type ObjectID [12]byte

// NewObjectID generates a fresh id using the process-wide xid generator.
func NewObjectID() ObjectID {
	var id ObjectID
	copy(id[:], xid.New().Bytes())
	return id
}

// Hex renders the id as 24 lowercase hex characters, the representation
// spec §4.7's JSON bridge uses ("objectID as hex").
func (id ObjectID) Hex() string { return hex.EncodeToString(id[:]) }

// String satisfies fmt.Stringer.
func (id ObjectID) String() string { return id.Hex() }

// ObjectIDFromHex parses the 24-character hex form produced by Hex.
func ObjectIDFromHex(s string) (ObjectID, error) {
	var id ObjectID
	if len(s) != 24 {
		return id, errors.New("bson: objectID hex must be 24 characters")
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, errors.Wrap(err, "bson: objectID hex")
	}
	copy(id[:], b)
	return id, nil
}

// IsZero reports whether id is the all-zero value.
func (id ObjectID) IsZero() bool {
	return id == ObjectID{}
}
