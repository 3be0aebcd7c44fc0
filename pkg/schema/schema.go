package schema

import (
	"fmt"
	"sort"

	"github.com/vango-dev/burp/pkg/atom"
)

// Field describes one field of a payload layout.
type Field struct {
	Name   string
	Offset int // Byte offset from the start of the payload (or element)
	Kind   Kind
	Size   int // Width for KindBytes and KindString

	// Padding marks alignment filler. Padding is never read as data and is
	// written as zero.
	Padding bool

	// Key marks the field as part of the entity key in the mirror.
	Key bool

	// Mask, when non-zero, makes the field present only if every bit of Mask
	// is set in the schema's MaskField.
	Mask uint32

	// Group clusters fields that always change together; the mirror emits
	// one change event per group.
	Group string
}

// Width returns the number of payload bytes the field occupies.
func (f Field) Width() int {
	if w := f.Kind.Width(); w > 0 {
		return w
	}
	return f.Size
}

// Significant reports whether the field carries data.
func (f Field) Significant() bool {
	return !f.Padding
}

// AsKey returns a copy of the field marked as an entity key.
func (f Field) AsKey() Field {
	f.Key = true
	return f
}

// WithMask returns a copy of the field gated by mask bits.
func (f Field) WithMask(mask uint32) Field {
	f.Mask = mask
	return f
}

// InGroup returns a copy of the field placed in a change group.
func (f Field) InGroup(group string) Field {
	f.Group = group
	return f
}

// Field constructors used by atom definitions.

func U8Field(name string, off int) Field   { return Field{Name: name, Offset: off, Kind: KindU8} }
func U16Field(name string, off int) Field  { return Field{Name: name, Offset: off, Kind: KindU16} }
func U32Field(name string, off int) Field  { return Field{Name: name, Offset: off, Kind: KindU32} }
func I8Field(name string, off int) Field   { return Field{Name: name, Offset: off, Kind: KindI8} }
func I16Field(name string, off int) Field  { return Field{Name: name, Offset: off, Kind: KindI16} }
func I32Field(name string, off int) Field  { return Field{Name: name, Offset: off, Kind: KindI32} }
func BoolField(name string, off int) Field { return Field{Name: name, Offset: off, Kind: KindBool} }

func BytesField(name string, off, size int) Field {
	return Field{Name: name, Offset: off, Kind: KindBytes, Size: size}
}

func StringField(name string, off, size int) Field {
	return Field{Name: name, Offset: off, Kind: KindString, Size: size}
}

// Pad declares size bytes of alignment filler at off.
func Pad(off, size int) Field {
	return Field{Name: fmt.Sprintf("_pad%d", off), Offset: off, Kind: KindBytes, Size: size, Padding: true}
}

// Array describes a variable-length tail of fixed-size elements.
type Array struct {
	// Prefix is the payload offset where the first element starts.
	Prefix int

	// CountField names a prefix field holding the element count. When empty
	// the count is (payload length - Prefix) / ElementSize.
	CountField string

	// ElementSize is the stride between elements.
	ElementSize int

	// Element lists the fields of one element; offsets are relative to the
	// element start.
	Element []Field

	// Entity is the mirror entity kind of each element. Defaults to the
	// schema's entity.
	Entity string
}

// Schema describes how to interpret the payload of one atom type.
type Schema struct {
	Tag  atom.Tag
	Name string

	// Version is the lowest protocol version this layout applies to. The
	// zero version applies to all.
	Version ProtocolVersion

	// Size is the fixed payload size. For array schemas it is the prefix
	// size and is set from Array.Prefix when left zero.
	Size int

	// Entity is the mirror entity kind, defaults to the tag.
	Entity string

	Fields []Field

	// MaskField names a field whose bits gate fields with a Mask.
	MaskField string

	Array *Array

	// Command marks atoms sent to the switcher; they are never merged into
	// the mirror.
	Command bool
}

// EntityKind returns the mirror entity kind for non-array records.
func (s *Schema) EntityKind() string {
	if s.Entity != "" {
		return s.Entity
	}
	return s.Tag.String()
}

// ElementEntityKind returns the mirror entity kind for array elements.
func (s *Schema) ElementEntityKind() string {
	if s.Array != nil && s.Array.Entity != "" {
		return s.Array.Entity
	}
	return s.EntityKind()
}

// Field returns the named top-level field.
func (s *Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// KeyFields returns the top-level key fields in declaration order.
func (s *Schema) KeyFields() []Field {
	return keyFields(s.Fields)
}

// ElementKeyFields returns the key fields of array elements.
func (s *Schema) ElementKeyFields() []Field {
	if s.Array == nil {
		return nil
	}
	return keyFields(s.Array.Element)
}

func keyFields(fields []Field) []Field {
	var keys []Field
	for _, f := range fields {
		if f.Key && f.Significant() {
			keys = append(keys, f)
		}
	}
	return keys
}

// String returns the tag and version.
func (s *Schema) String() string {
	if s.Version.IsZero() {
		return s.Tag.String()
	}
	return s.Tag.String() + "@" + s.Version.String()
}

// validate checks the layout and fills defaults.
func (s *Schema) validate() error {
	if s.Tag == (atom.Tag{}) {
		return fmt.Errorf("%w: empty tag", ErrInvalidSchema)
	}
	if s.Array != nil {
		if s.Array.ElementSize <= 0 {
			return fmt.Errorf("%w: %s: element size must be positive", ErrInvalidSchema, s)
		}
		if s.Size == 0 {
			s.Size = s.Array.Prefix
		}
		if s.Size != s.Array.Prefix {
			return fmt.Errorf("%w: %s: size %d differs from array prefix %d", ErrInvalidSchema, s, s.Size, s.Array.Prefix)
		}
	}
	if s.Size < 0 || s.Size > atom.MaxLength-atom.HeaderSize {
		return fmt.Errorf("%w: %s: size %d out of range", ErrInvalidSchema, s, s.Size)
	}
	if err := validateFields(s, s.Fields, s.Size); err != nil {
		return err
	}

	if s.MaskField != "" {
		mf, ok := s.Field(s.MaskField)
		if !ok || !mf.Kind.Unsigned() || mf.Padding {
			return fmt.Errorf("%w: %s: mask field %q must be an unsigned field", ErrInvalidSchema, s, s.MaskField)
		}
	}
	for _, f := range s.Fields {
		if f.Mask != 0 && s.MaskField == "" {
			return fmt.Errorf("%w: %s: field %q has a mask but schema has no mask field", ErrInvalidSchema, s, f.Name)
		}
		if f.Mask != 0 && f.Key {
			return fmt.Errorf("%w: %s: key field %q cannot be masked", ErrInvalidSchema, s, f.Name)
		}
	}

	if s.Array != nil {
		if s.Array.CountField != "" {
			cf, ok := s.Field(s.Array.CountField)
			if !ok || !cf.Kind.Unsigned() || cf.Padding {
				return fmt.Errorf("%w: %s: count field %q must be an unsigned field", ErrInvalidSchema, s, s.Array.CountField)
			}
		}
		if err := validateFields(s, s.Array.Element, s.Array.ElementSize); err != nil {
			return err
		}
		for _, f := range s.Array.Element {
			if f.Mask != 0 {
				return fmt.Errorf("%w: %s: element field %q cannot be masked", ErrInvalidSchema, s, f.Name)
			}
		}
	}
	return nil
}

func validateFields(s *Schema, fields []Field, limit int) error {
	names := make(map[string]bool, len(fields))
	type span struct{ start, end int }
	var spans []span

	for _, f := range fields {
		if f.Name == "" {
			return fmt.Errorf("%w: %s: unnamed field", ErrInvalidSchema, s)
		}
		if names[f.Name] {
			return fmt.Errorf("%w: %s: duplicate field %q", ErrInvalidSchema, s, f.Name)
		}
		names[f.Name] = true

		if f.Kind == KindInvalid || f.Width() <= 0 {
			return fmt.Errorf("%w: %s: field %q has no width", ErrInvalidSchema, s, f.Name)
		}
		if f.Offset < 0 || f.Offset+f.Width() > limit {
			return fmt.Errorf("%w: %s: field %q [%d,%d) exceeds %d bytes", ErrInvalidSchema, s, f.Name, f.Offset, f.Offset+f.Width(), limit)
		}
		if f.Significant() {
			spans = append(spans, span{f.Offset, f.Offset + f.Width()})
		}
	}

	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	for i := 1; i < len(spans); i++ {
		if spans[i].start < spans[i-1].end {
			return fmt.Errorf("%w: %s: overlapping fields at offset %d", ErrInvalidSchema, s, spans[i].start)
		}
	}
	return nil
}
