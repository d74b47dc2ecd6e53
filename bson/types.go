// Package bson implements the tagged-union wire value and codec described
// in spec §3.5/§4.7/§6.3: documents are stored as their raw wire bytes and
// decoded lazily, on demand, by walking that byte slice.
package bson

// Type is one of the wire type tags named in spec §3.5. Numeric values
// match the BSON 1.1 specification (spec §6.3) so raw tag bytes read off
// the wire can be cast directly to Type.
type Type byte

const (
	TypeDouble     Type = 0x01
	TypeString     Type = 0x02
	TypeObject     Type = 0x03
	TypeArray      Type = 0x04
	TypeBinData    Type = 0x05
	TypeUndefined  Type = 0x06 // deprecated
	TypeObjectID   Type = 0x07
	TypeBool       Type = 0x08
	TypeDate       Type = 0x09
	TypeNull       Type = 0x0A
	TypeRegex      Type = 0x0B
	TypeDBRef      Type = 0x0C // deprecated
	TypeCode       Type = 0x0D
	TypeSymbol     Type = 0x0E
	TypeCodeWScope Type = 0x0F
	TypeInt32      Type = 0x10
	TypeTimestamp  Type = 0x11
	TypeInt64      Type = 0x12
	TypeMaxKey     Type = 0x7F
	TypeMinKey     Type = 0xFF
)

func (t Type) String() string {
	switch t {
	case TypeDouble:
		return "double"
	case TypeString:
		return "string"
	case TypeObject:
		return "object"
	case TypeArray:
		return "array"
	case TypeBinData:
		return "binData"
	case TypeUndefined:
		return "undefined"
	case TypeObjectID:
		return "objectID"
	case TypeBool:
		return "bool"
	case TypeDate:
		return "date"
	case TypeNull:
		return "null"
	case TypeRegex:
		return "regex"
	case TypeDBRef:
		return "dbRef"
	case TypeCode:
		return "code"
	case TypeSymbol:
		return "symbol"
	case TypeCodeWScope:
		return "codeWScope"
	case TypeInt32:
		return "int32"
	case TypeTimestamp:
		return "timestamp"
	case TypeInt64:
		return "int64"
	case TypeMaxKey:
		return "maxKey"
	case TypeMinKey:
		return "minKey"
	default:
		return "unknown"
	}
}
