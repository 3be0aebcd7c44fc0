package atom

import (
	"bytes"
	"errors"
	"testing"
)

func TestAtomHeaderRoundTrip(t *testing.T) {
	a := Atom{Tag: MustTag("DCut"), Payload: []byte{0x00, 0x00, 0x00, 0x00}}

	encoded, err := a.Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	want := []byte{0x00, 0x0C, 0x00, 0x00, 'D', 'C', 'u', 't', 0x00, 0x00, 0x00, 0x00}
	if !bytes.Equal(encoded, want) {
		t.Fatalf("Encode() = % x, want % x", encoded, want)
	}
	if a.Len() != 12 {
		t.Errorf("Len() = %d, want 12", a.Len())
	}

	decoded, n, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if n != 12 {
		t.Errorf("Decode() consumed %d, want 12", n)
	}
	if decoded.Tag != a.Tag {
		t.Errorf("Decode() tag = %v, want %v", decoded.Tag, a.Tag)
	}
	if !bytes.Equal(decoded.Payload, a.Payload) {
		t.Errorf("Decode() payload = % x, want % x", decoded.Payload, a.Payload)
	}
}

func TestDecodeIgnoresReservedField(t *testing.T) {
	data := []byte{0x00, 0x0C, 0xAB, 0xCD, 'D', 'A', 'u', 't', 0x01, 0x7F, 0x7F, 0x7F}

	a, _, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	// Re-encoding zero-fills the reserved field; everything else survives.
	encoded, err := a.Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if encoded[2] != 0 || encoded[3] != 0 {
		t.Errorf("reserved = % x, want 00 00", encoded[2:4])
	}
	if !bytes.Equal(encoded[4:], data[4:]) {
		t.Errorf("body = % x, want % x", encoded[4:], data[4:])
	}
}

func TestDecodeTruncated(t *testing.T) {
	full := []byte{0x00, 0x0C, 0x00, 0x00, 'D', 'C', 'u', 't', 0x00, 0x00, 0x00, 0x00}

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"one_byte", full[:1]},
		{"short_header", full[:7]},
		{"header_only", full[:8]},
		{"short_payload", full[:11]},
		{"length_below_header", []byte{0x00, 0x07, 0x00, 0x00, 'D', 'C', 'u', 't'}},
		{"length_zero", []byte{0x00, 0x00, 0x00, 0x00, 'D', 'C', 'u', 't'}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, n, err := Decode(tc.data)
			if !errors.Is(err, ErrTruncated) {
				t.Fatalf("Decode() error = %v, want ErrTruncated", err)
			}
			if n != 0 {
				t.Errorf("Decode() consumed %d, want 0", n)
			}
			if KindOf(err) != KindTruncated {
				t.Errorf("KindOf() = %v, want Truncated", KindOf(err))
			}
		})
	}
}

func TestDecodeDoesNotAliasInput(t *testing.T) {
	data := []byte{0x00, 0x0A, 0x00, 0x00, 'T', 'e', 's', 't', 0x01, 0x02}
	a, _, err := Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	data[8] = 0xFF
	if a.Payload[0] != 0x01 {
		t.Errorf("payload aliased input buffer")
	}
}

func TestDecodeAll(t *testing.T) {
	atoms := []Atom{
		{Tag: MustTag("PrgI"), Payload: []byte{0x00, 0x00, 0x00, 0x01}},
		{Tag: MustTag("DCut"), Payload: []byte{0x00, 0x00, 0x00, 0x00}},
		{Tag: MustTag("InCm"), Payload: nil},
	}

	batch, err := EncodeAll(atoms)
	if err != nil {
		t.Fatalf("EncodeAll() error = %v", err)
	}
	if len(batch) != 12+12+8 {
		t.Fatalf("batch length = %d, want 32", len(batch))
	}

	got, err := DecodeAll(batch)
	if err != nil {
		t.Fatalf("DecodeAll() error = %v", err)
	}
	if len(got) != len(atoms) {
		t.Fatalf("DecodeAll() returned %d atoms, want %d", len(got), len(atoms))
	}
	for i := range atoms {
		if got[i].Tag != atoms[i].Tag || !bytes.Equal(got[i].Payload, atoms[i].Payload) {
			t.Errorf("atom %d = %v % x, want %v % x", i, got[i].Tag, got[i].Payload, atoms[i].Tag, atoms[i].Payload)
		}
	}

	t.Run("truncated_tail", func(t *testing.T) {
		got, err := DecodeAll(batch[:len(batch)-3])
		if !errors.Is(err, ErrTruncated) {
			t.Fatalf("DecodeAll() error = %v, want ErrTruncated", err)
		}
		if len(got) != 2 {
			t.Errorf("DecodeAll() kept %d atoms, want 2", len(got))
		}
	})
}

func TestEncodeTooLarge(t *testing.T) {
	a := Atom{Tag: MustTag("Huge"), Payload: make([]byte, MaxLength)}
	if _, err := a.Encode(); !errors.Is(err, ErrAtomTooLarge) {
		t.Errorf("Encode() error = %v, want ErrAtomTooLarge", err)
	}
}

func TestTag(t *testing.T) {
	if _, err := ParseTag("ABC"); !errors.Is(err, ErrInvalidTag) {
		t.Errorf("ParseTag(ABC) error = %v, want ErrInvalidTag", err)
	}

	tag := MustTag("_ver")
	if tag.String() != "_ver" {
		t.Errorf("String() = %q, want _ver", tag.String())
	}

	raw := Tag{0x00, 0x01, 0x02, 0xFF}
	if raw.IsPrintable() {
		t.Error("IsPrintable() = true for binary tag")
	}
	if raw.String() != "0x000102ff" {
		t.Errorf("String() = %q, want 0x000102ff", raw.String())
	}

	for _, in := range []Tag{tag, raw} {
		text, err := in.MarshalText()
		if err != nil {
			t.Fatal(err)
		}
		var out Tag
		if err := out.UnmarshalText(text); err != nil {
			t.Fatalf("UnmarshalText(%s) error = %v", text, err)
		}
		if out != in {
			t.Errorf("text round trip = %v, want %v", out, in)
		}
	}
}

func TestDecodeErrorUnwrap(t *testing.T) {
	tests := []struct {
		err   *DecodeError
		want  error
		fatal bool
	}{
		{Truncated(MustTag("DCut"), "x"), ErrTruncated, true},
		{UnknownType(MustTag("Zzzz")), ErrUnknownType, false},
		{SchemaMismatch(MustTag("TlSr"), "count %d", 3), ErrSchemaMismatch, true},
	}
	for _, tc := range tests {
		t.Run(tc.err.Kind.String(), func(t *testing.T) {
			if !errors.Is(tc.err, tc.want) {
				t.Errorf("errors.Is(%v, %v) = false", tc.err, tc.want)
			}
			if tc.err.Fatal() != tc.fatal {
				t.Errorf("Fatal() = %v, want %v", tc.err.Fatal(), tc.fatal)
			}
			if tc.err.Error() == "" {
				t.Error("Error() is empty")
			}
		})
	}
}
