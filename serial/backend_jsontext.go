package serial

import (
	"github.com/pkg/errors"

	"github.com/vibe-d/vibe.d-sub004/json"
)

// JSONTextBackend is the text-producing sibling of JSONValueBackend: it
// builds the same json.Value tree while writing, then renders it to a
// JSON string at Result(); on the read side it parses its input text once
// up front and delegates to JSONValueBackend for traversal.
type JSONTextBackend struct {
	JSONValueBackend
	opts json.WriteOptions
}

// NewJSONTextBackend returns a backend ready for a single Serialize call.
// The rendered text is written compactly unless opts.Pretty is set.
func NewJSONTextBackend(opts json.WriteOptions) *JSONTextBackend {
	return &JSONTextBackend{opts: opts}
}

// NewJSONTextBackendFromText parses text and returns a backend ready for
// a single Deserialize call.
func NewJSONTextBackendFromText(text string) (*JSONTextBackend, error) {
	v, err := json.ParseString(text)
	if err != nil {
		return nil, errors.Wrap(err, "serial: parsing JSON text backend input")
	}
	return &JSONTextBackend{JSONValueBackend: JSONValueBackend{read: []json.Value{v}}}, nil
}

// Result renders the backend's accumulated json.Value tree to text.
func (b *JSONTextBackend) Result() interface{} {
	return json.Write(b.JSONValueBackend.Result().(json.Value), b.opts)
}
