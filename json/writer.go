package json

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf16"
)

// WriteOptions selects the writer's two modes (spec §4.8): compact (no
// whitespace) or pretty (tab-indented, one entry per line), plus an
// ASCII-only escaping mode for non-ASCII code points.
type WriteOptions struct {
	Pretty    bool
	ASCIIOnly bool
}

// Write renders v per opts.
func Write(v Value, opts WriteOptions) string {
	var sb strings.Builder
	writeValue(&sb, v, opts, 0)
	return sb.String()
}

// Marshal/MarshalPretty are the common-case compact/pretty shortcuts.
func Marshal(v Value) string       { return Write(v, WriteOptions{}) }
func MarshalPretty(v Value) string { return Write(v, WriteOptions{Pretty: true}) }

func writeValue(sb *strings.Builder, v Value, opts WriteOptions, depth int) {
	switch v.kind {
	case KindUndefined:
		sb.WriteString("undefined")
	case KindNull:
		sb.WriteString("null")
	case KindBool:
		if v.b {
			sb.WriteString("true")
		} else {
			sb.WriteString("false")
		}
	case KindInt:
		sb.WriteString(strconv.FormatInt(v.i, 10))
	case KindBigInt:
		sb.WriteString(v.big.String())
	case KindFloat:
		// NaN has no JSON representation; spec §4.8 emits `undefined`.
		if math.IsNaN(v.f) {
			sb.WriteString("undefined")
		} else {
			sb.WriteString(strconv.FormatFloat(v.f, 'g', -1, 64))
		}
	case KindString:
		writeString(sb, v.s, opts)
	case KindArray:
		writeArray(sb, v, opts, depth)
	case KindObject:
		writeObject(sb, v, opts, depth)
	}
}

func indent(sb *strings.Builder, depth int) {
	for i := 0; i < depth; i++ {
		sb.WriteByte('\t')
	}
}

// writeArray/writeObject suppress `undefined` entries from the output,
// per spec §4.8.
func writeArray(sb *strings.Builder, v Value, opts WriteOptions, depth int) {
	items := make([]Value, 0, len(v.arr))
	for _, it := range v.arr {
		if it.kind == KindUndefined {
			continue
		}
		items = append(items, it)
	}
	sb.WriteByte('[')
	if len(items) == 0 {
		sb.WriteByte(']')
		return
	}
	if opts.Pretty {
		sb.WriteByte('\n')
	}
	for i, it := range items {
		if opts.Pretty {
			indent(sb, depth+1)
		}
		writeValue(sb, it, opts, depth+1)
		if i != len(items)-1 {
			sb.WriteByte(',')
		}
		if opts.Pretty {
			sb.WriteByte('\n')
		}
	}
	if opts.Pretty {
		indent(sb, depth)
	}
	sb.WriteByte(']')
}

func writeObject(sb *strings.Builder, v Value, opts WriteOptions, depth int) {
	type field struct {
		key string
		val Value
	}
	var fields []field
	if v.obj != nil {
		for _, k := range v.obj.keys {
			val, _ := v.obj.get(k)
			if val.kind == KindUndefined {
				continue
			}
			fields = append(fields, field{k, val})
		}
	}
	sb.WriteByte('{')
	if len(fields) == 0 {
		sb.WriteByte('}')
		return
	}
	if opts.Pretty {
		sb.WriteByte('\n')
	}
	for i, f := range fields {
		if opts.Pretty {
			indent(sb, depth+1)
		}
		writeString(sb, f.key, opts)
		sb.WriteByte(':')
		if opts.Pretty {
			sb.WriteByte(' ')
		}
		writeValue(sb, f.val, opts, depth+1)
		if i != len(fields)-1 {
			sb.WriteByte(',')
		}
		if opts.Pretty {
			sb.WriteByte('\n')
		}
	}
	if opts.Pretty {
		indent(sb, depth)
	}
	sb.WriteByte('}')
}

func writeString(sb *strings.Builder, s string, opts WriteOptions) {
	sb.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\r':
			sb.WriteString(`\r`)
		case '\n':
			sb.WriteString(`\n`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			switch {
			case r < 0x20:
				sb.WriteString(escapeU(uint16(r)))
			case opts.ASCIIOnly && r > 0x7E:
				if r > 0xFFFF {
					r1, r2 := utf16.EncodeRune(r)
					sb.WriteString(escapeU(uint16(r1)))
					sb.WriteString(escapeU(uint16(r2)))
				} else {
					sb.WriteString(escapeU(uint16(r)))
				}
			default:
				sb.WriteRune(r)
			}
		}
	}
	sb.WriteByte('"')
}

func escapeU(v uint16) string {
	return fmt.Sprintf(`\u%04x`, v)
}
