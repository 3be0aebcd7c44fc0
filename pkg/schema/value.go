package schema

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
)

// Value is one decoded field value. Values are comparable with ==, which is
// what the mirror relies on to detect changes.
type Value struct {
	kind Kind
	n    uint64 // integers (signed values sign-extended) and bools
	s    string // strings and bytes
}

// U8 returns a u8 value.
func U8(v uint8) Value { return Value{kind: KindU8, n: uint64(v)} }

// U16 returns a u16 value.
func U16(v uint16) Value { return Value{kind: KindU16, n: uint64(v)} }

// U32 returns a u32 value.
func U32(v uint32) Value { return Value{kind: KindU32, n: uint64(v)} }

// I8 returns an i8 value.
func I8(v int8) Value { return Value{kind: KindI8, n: uint64(int64(v))} }

// I16 returns an i16 value.
func I16(v int16) Value { return Value{kind: KindI16, n: uint64(int64(v))} }

// I32 returns an i32 value.
func I32(v int32) Value { return Value{kind: KindI32, n: uint64(int64(v))} }

// Bool returns a bool value.
func Bool(v bool) Value {
	if v {
		return Value{kind: KindBool, n: 1}
	}
	return Value{kind: KindBool}
}

// String returns a string value.
func String(v string) Value { return Value{kind: KindString, s: v} }

// Bytes returns a bytes value. The slice is copied.
func Bytes(v []byte) Value { return Value{kind: KindBytes, s: string(v)} }

// Uint builds an unsigned value of the given kind, truncating to its width.
func Uint(k Kind, v uint64) Value {
	switch k {
	case KindU8:
		return U8(uint8(v))
	case KindU16:
		return U16(uint16(v))
	default:
		return U32(uint32(v))
	}
}

// Kind returns the wire kind of the value.
func (v Value) Kind() Kind { return v.kind }

// IsValid reports whether the value was set.
func (v Value) IsValid() bool { return v.kind != KindInvalid }

// Uint returns the value as an unsigned integer. Bools are 0 or 1.
func (v Value) Uint() uint64 { return v.n }

// Int returns the value as a signed integer.
func (v Value) Int() int64 { return int64(v.n) }

// Bool returns the value as a bool.
func (v Value) Bool() bool { return v.n != 0 }

// Text returns the value of a string field.
func (v Value) Text() string { return v.s }

// RawBytes returns a copy of the value of a bytes field.
func (v Value) RawBytes() []byte { return []byte(v.s) }

// String formats the value for logs and CLI output.
func (v Value) String() string {
	switch {
	case v.kind.Unsigned():
		return strconv.FormatUint(v.n, 10)
	case v.kind.Signed():
		return strconv.FormatInt(int64(v.n), 10)
	case v.kind == KindBool:
		return strconv.FormatBool(v.n != 0)
	case v.kind == KindString:
		return strconv.Quote(v.s)
	case v.kind == KindBytes:
		return fmt.Sprintf("% x", v.s)
	default:
		return "<invalid>"
	}
}

type jsonValue struct {
	Kind  string          `json:"kind"`
	Value json.RawMessage `json:"value"`
}

// MarshalJSON encodes the value together with its kind so it can be restored
// exactly.
func (v Value) MarshalJSON() ([]byte, error) {
	var raw []byte
	var err error
	switch {
	case v.kind.Unsigned():
		raw = []byte(strconv.FormatUint(v.n, 10))
	case v.kind.Signed():
		raw = []byte(strconv.FormatInt(int64(v.n), 10))
	case v.kind == KindBool:
		raw = []byte(strconv.FormatBool(v.n != 0))
	case v.kind == KindString:
		raw, err = json.Marshal(v.s)
	case v.kind == KindBytes:
		raw, err = json.Marshal(base64.StdEncoding.EncodeToString([]byte(v.s)))
	default:
		return []byte("null"), nil
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(jsonValue{Kind: v.kind.String(), Value: raw})
}

// UnmarshalJSON decodes a value written by MarshalJSON.
func (v *Value) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = Value{}
		return nil
	}
	var jv jsonValue
	if err := json.Unmarshal(data, &jv); err != nil {
		return err
	}
	k, err := ParseKind(jv.Kind)
	if err != nil {
		return err
	}
	switch {
	case k.Unsigned():
		var n uint64
		if err := json.Unmarshal(jv.Value, &n); err != nil {
			return err
		}
		*v = Uint(k, n)
	case k.Signed():
		var n int64
		if err := json.Unmarshal(jv.Value, &n); err != nil {
			return err
		}
		*v = Value{kind: k, n: uint64(n)}
	case k == KindBool:
		var b bool
		if err := json.Unmarshal(jv.Value, &b); err != nil {
			return err
		}
		*v = Bool(b)
	case k == KindString:
		var s string
		if err := json.Unmarshal(jv.Value, &s); err != nil {
			return err
		}
		*v = String(s)
	case k == KindBytes:
		var s string
		if err := json.Unmarshal(jv.Value, &s); err != nil {
			return err
		}
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return err
		}
		*v = Bytes(b)
	}
	return nil
}
