package json

import "github.com/pkg/errors"

// ParseError is a protocol error (spec §7 taxonomy #4) carrying the byte
// offset and line number where parsing failed.
type ParseError struct {
	Offset  int
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	return errors.Errorf("json: %s (offset %d, line %d)", e.Message, e.Offset, e.Line).Error()
}

func newParseError(p *parser, msg string) error {
	return &ParseError{Offset: p.pos, Line: p.line, Message: msg}
}
