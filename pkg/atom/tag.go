package atom

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidTag is returned when a string cannot be used as a four-byte tag.
var ErrInvalidTag = errors.New("atom: tag must be exactly 4 bytes")

// Tag is the four-byte type identifier of an atom, conventionally printable
// ASCII such as "DCut" or "_ver".
type Tag [4]byte

// ParseTag converts a four-character string into a Tag.
func ParseTag(s string) (Tag, error) {
	var t Tag
	if len(s) != 4 {
		return t, fmt.Errorf("%w: %q", ErrInvalidTag, s)
	}
	copy(t[:], s)
	return t, nil
}

// MustTag is like ParseTag but panics on error. Intended for package-level
// schema definitions.
func MustTag(s string) Tag {
	t, err := ParseTag(s)
	if err != nil {
		panic(err)
	}
	return t
}

// IsPrintable reports whether every byte of the tag is printable ASCII.
func (t Tag) IsPrintable() bool {
	for _, b := range t {
		if b < 0x20 || b > 0x7e {
			return false
		}
	}
	return true
}

// String returns the tag as text, hex-escaping it when not printable.
func (t Tag) String() string {
	if t.IsPrintable() {
		return string(t[:])
	}
	return fmt.Sprintf("0x%08x", uint32(t[0])<<24|uint32(t[1])<<16|uint32(t[2])<<8|uint32(t[3]))
}

// MarshalText implements encoding.TextMarshaler.
func (t Tag) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Tag) UnmarshalText(b []byte) error {
	s := string(b)
	if len(s) == 10 && strings.HasPrefix(s, "0x") {
		v, err := strconv.ParseUint(s[2:], 16, 32)
		if err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidTag, s)
		}
		*t = Tag{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
		return nil
	}
	parsed, err := ParseTag(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
