package schema

import "fmt"

// Kind identifies the wire type of a field.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindU8
	KindU16
	KindU32
	KindI8
	KindI16
	KindI32
	KindBool
	KindBytes  // Fixed-size opaque bytes
	KindString // Fixed-size, NUL-padded text
)

var kindNames = map[Kind]string{
	KindU8:     "u8",
	KindU16:    "u16",
	KindU32:    "u32",
	KindI8:     "i8",
	KindI16:    "i16",
	KindI32:    "i32",
	KindBool:   "bool",
	KindBytes:  "bytes",
	KindString: "string",
}

// String returns the string representation of the kind.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "invalid"
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return KindInvalid, fmt.Errorf("schema: unknown kind %q", s)
}

// Width returns the fixed wire width of the kind, or 0 for kinds whose width
// comes from the field's Size.
func (k Kind) Width() int {
	switch k {
	case KindU8, KindI8, KindBool:
		return 1
	case KindU16, KindI16:
		return 2
	case KindU32, KindI32:
		return 4
	default:
		return 0
	}
}

// Unsigned reports whether the kind holds an unsigned integer.
func (k Kind) Unsigned() bool {
	return k == KindU8 || k == KindU16 || k == KindU32
}

// Signed reports whether the kind holds a signed integer.
func (k Kind) Signed() bool {
	return k == KindI8 || k == KindI16 || k == KindI32
}
