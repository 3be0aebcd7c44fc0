package schema

import (
	"errors"
	"fmt"

	"github.com/vango-dev/burp/pkg/atom"
)

// ErrValueKind is returned when encoding a value whose kind does not match
// the field.
var ErrValueKind = errors.New("schema: value kind does not match field")

// Element is one decoded array element.
type Element map[string]Value

// Record is the schema-aware view of an atom.
type Record struct {
	Tag    atom.Tag
	Schema *Schema // nil for opaque records

	// Fields holds every significant top-level field that is present.
	// Masked fields whose bit is clear are absent.
	Fields map[string]Value

	// Elements holds decoded array elements in wire order.
	Elements []Element

	// Payload is the raw payload, kept for opaque records and logging.
	Payload []byte

	// Opaque is set when no schema was registered for the tag.
	Opaque bool

	// Warnings lists tolerated inconsistencies, such as an explicit count
	// that disagrees with the payload length.
	Warnings []string
}

// Get returns a top-level field value.
func (r *Record) Get(name string) (Value, bool) {
	v, ok := r.Fields[name]
	return v, ok
}

// Decode interprets an atom payload with this schema.
func (s *Schema) Decode(a atom.Atom) (*Record, error) {
	rec := &Record{
		Tag:     a.Tag,
		Schema:  s,
		Fields:  make(map[string]Value, len(s.Fields)),
		Payload: a.Payload,
	}

	if len(a.Payload) < s.Size {
		return nil, atom.SchemaMismatch(a.Tag, "payload is %d bytes, layout needs %d", len(a.Payload), s.Size)
	}

	var mask uint32
	if s.MaskField != "" {
		mf, _ := s.Field(s.MaskField)
		v, err := readField(a.Payload, 0, mf)
		if err != nil {
			return nil, atom.Truncated(a.Tag, "mask field: %v", err)
		}
		mask = uint32(v.Uint())
	}

	for _, f := range s.Fields {
		if !f.Significant() {
			continue
		}
		if f.Mask != 0 && mask&f.Mask != f.Mask {
			continue
		}
		v, err := readField(a.Payload, 0, f)
		if err != nil {
			return nil, atom.Truncated(a.Tag, "field %s: %v", f.Name, err)
		}
		rec.Fields[f.Name] = v
	}

	if s.Array == nil {
		if extra := len(a.Payload) - s.Size; extra > 0 {
			rec.Warnings = append(rec.Warnings, fmt.Sprintf("%d trailing payload bytes ignored", extra))
		}
		return rec, nil
	}

	count, err := s.elementCount(rec)
	if err != nil {
		return nil, err
	}
	rec.Elements = make([]Element, 0, count)
	for i := 0; i < count; i++ {
		base := s.Array.Prefix + i*s.Array.ElementSize
		el := make(Element, len(s.Array.Element))
		for _, f := range s.Array.Element {
			if !f.Significant() {
				continue
			}
			v, err := readField(a.Payload, base, f)
			if err != nil {
				return nil, atom.Truncated(a.Tag, "element %d field %s: %v", i, f.Name, err)
			}
			el[f.Name] = v
		}
		rec.Elements = append(rec.Elements, el)
	}
	return rec, nil
}

// elementCount resolves the number of array elements. An explicit count
// field wins over the length-derived count as long as it fits the payload;
// a disagreement is recorded as a warning.
func (s *Schema) elementCount(rec *Record) (int, error) {
	avail := len(rec.Payload) - s.Array.Prefix
	derived := avail / s.Array.ElementSize
	rem := avail % s.Array.ElementSize

	if s.Array.CountField == "" {
		if rem != 0 {
			return 0, atom.SchemaMismatch(rec.Tag, "%d element bytes is not a multiple of %d", avail, s.Array.ElementSize)
		}
		return derived, nil
	}

	explicit := int(rec.Fields[s.Array.CountField].Uint())
	if explicit > derived {
		return 0, atom.SchemaMismatch(rec.Tag, "count field says %d elements, payload holds %d", explicit, derived)
	}
	if explicit != derived || rem != 0 {
		rec.Warnings = append(rec.Warnings,
			fmt.Sprintf("count field says %d elements, length implies %d (%d spare bytes)", explicit, derived, avail-explicit*s.Array.ElementSize))
	}
	return explicit, nil
}

func readField(payload []byte, base int, f Field) (Value, error) {
	d := atom.NewDecoder(payload)
	if err := d.Seek(base + f.Offset); err != nil {
		return Value{}, err
	}
	switch f.Kind {
	case KindU8:
		v, err := d.ReadUint8()
		return U8(v), err
	case KindU16:
		v, err := d.ReadUint16()
		return U16(v), err
	case KindU32:
		v, err := d.ReadUint32()
		return U32(v), err
	case KindI8:
		v, err := d.ReadInt8()
		return I8(v), err
	case KindI16:
		v, err := d.ReadInt16()
		return I16(v), err
	case KindI32:
		v, err := d.ReadInt32()
		return I32(v), err
	case KindBool:
		v, err := d.ReadBool()
		return Bool(v), err
	case KindString:
		v, err := d.ReadFixedString(f.Size)
		return String(v), err
	case KindBytes:
		v, err := d.ReadBytes(f.Size)
		return Bytes(v), err
	default:
		return Value{}, fmt.Errorf("schema: field %s has invalid kind", f.Name)
	}
}

// Encode builds an atom from field values. Padding and absent fields are
// written as zero. The count field of an array schema and the mask field
// are derived from elements and present masked fields when not supplied.
func (s *Schema) Encode(fields map[string]Value, elements []Element) (atom.Atom, error) {
	size := s.Size
	if s.Array != nil {
		size += len(elements) * s.Array.ElementSize
	} else if len(elements) > 0 {
		return atom.Atom{}, fmt.Errorf("schema: %s has no array", s)
	}
	if size > atom.MaxLength-atom.HeaderSize {
		return atom.Atom{}, atom.ErrAtomTooLarge
	}

	fields = s.derivedFields(fields, len(elements))
	payload := make([]byte, size)

	for _, f := range s.Fields {
		if !f.Significant() {
			continue
		}
		v, ok := fields[f.Name]
		if !ok {
			continue
		}
		if err := putField(payload, 0, f, v); err != nil {
			return atom.Atom{}, err
		}
	}
	for i, el := range elements {
		base := s.Array.Prefix + i*s.Array.ElementSize
		for _, f := range s.Array.Element {
			if !f.Significant() {
				continue
			}
			v, ok := el[f.Name]
			if !ok {
				continue
			}
			if err := putField(payload, base, f, v); err != nil {
				return atom.Atom{}, err
			}
		}
	}

	return atom.Atom{Tag: s.Tag, Payload: payload}, nil
}

// EncodeRecord is Encode for a decoded or hand-built record.
func (s *Schema) EncodeRecord(r *Record) (atom.Atom, error) {
	return s.Encode(r.Fields, r.Elements)
}

func (s *Schema) derivedFields(fields map[string]Value, n int) map[string]Value {
	needCount := s.Array != nil && s.Array.CountField != ""
	needMask := s.MaskField != ""
	if needCount {
		if _, ok := fields[s.Array.CountField]; ok {
			needCount = false
		}
	}
	if needMask {
		if _, ok := fields[s.MaskField]; ok {
			needMask = false
		}
	}
	if !needCount && !needMask {
		return fields
	}

	out := make(map[string]Value, len(fields)+2)
	for k, v := range fields {
		out[k] = v
	}
	if needCount {
		cf, _ := s.Field(s.Array.CountField)
		out[cf.Name] = Uint(cf.Kind, uint64(n))
	}
	if needMask {
		var mask uint32
		for _, f := range s.Fields {
			if _, ok := fields[f.Name]; ok && f.Mask != 0 {
				mask |= f.Mask
			}
		}
		mf, _ := s.Field(s.MaskField)
		out[mf.Name] = Uint(mf.Kind, uint64(mask))
	}
	return out
}

func putField(payload []byte, base int, f Field, v Value) error {
	if v.Kind() != f.Kind {
		return fmt.Errorf("%w: %s is %s, got %s", ErrValueKind, f.Name, f.Kind, v.Kind())
	}
	e := atom.NewEncoderWithCap(f.Width())
	switch f.Kind {
	case KindU8, KindI8:
		e.WriteUint8(uint8(v.Uint()))
	case KindU16, KindI16:
		e.WriteUint16(uint16(v.Uint()))
	case KindU32, KindI32:
		e.WriteUint32(uint32(v.Uint()))
	case KindBool:
		e.WriteBool(v.Bool())
	case KindString:
		e.WriteFixedString(v.Text(), f.Size)
	case KindBytes:
		b := v.RawBytes()
		if len(b) > f.Size {
			b = b[:f.Size]
		}
		e.WriteBytes(b)
		e.WriteZeros(f.Size - len(b))
	}
	copy(payload[base+f.Offset:], e.Bytes())
	return nil
}
