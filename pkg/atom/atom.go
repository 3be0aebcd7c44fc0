package atom

import "math"

// Atom constants.
const (
	// HeaderSize is the size of the atom header in bytes.
	HeaderSize = 8

	// MaxLength is the largest total length the 16-bit length field can hold.
	MaxLength = math.MaxUint16
)

// Atom is one typed binary record.
//
// Wire format (8 bytes header + variable payload):
//
//	┌──────────────┬──────────────┬───────────────────────────────┐
//	│ Length       │ Reserved     │ Tag                           │
//	│ (2 bytes)    │ (2 bytes)    │ (4 bytes)                     │
//	└──────────────┴──────────────┴───────────────────────────────┘
//	│                                                             │
//	│  Payload (Length - 8 bytes, schema-defined)                 │
//	│                                                             │
//	└─────────────────────────────────────────────────────────────┘
//
// Length counts the header. The reserved field is ignored on decode and
// written as zero.
type Atom struct {
	Tag     Tag
	Payload []byte
}

// New creates an atom, copying the payload.
func New(tag Tag, payload []byte) Atom {
	p := make([]byte, len(payload))
	copy(p, payload)
	return Atom{Tag: tag, Payload: p}
}

// Len returns the total encoded length including the header.
func (a Atom) Len() int {
	return HeaderSize + len(a.Payload)
}

// Encode encodes the atom to bytes including the header.
func (a Atom) Encode() ([]byte, error) {
	e := NewEncoderWithCap(a.Len())
	if err := a.EncodeTo(e); err != nil {
		return nil, err
	}
	return e.Bytes(), nil
}

// EncodeTo encodes the atom using the provided encoder.
func (a Atom) EncodeTo(e *Encoder) error {
	if a.Len() > MaxLength {
		return ErrAtomTooLarge
	}
	e.WriteUint16(uint16(a.Len()))
	e.WriteZeros(2)
	e.WriteBytes(a.Tag[:])
	e.WriteBytes(a.Payload)
	return nil
}

// Decode decodes one atom from the start of data and returns it together
// with the number of bytes consumed. The payload is copied, so the returned
// atom does not alias data.
func Decode(data []byte) (Atom, int, error) {
	if len(data) < HeaderSize {
		return Atom{}, 0, Truncated(Tag{}, "need %d header bytes, have %d", HeaderSize, len(data))
	}

	length := int(data[0])<<8 | int(data[1])
	var tag Tag
	copy(tag[:], data[4:8])

	if length < HeaderSize {
		return Atom{}, 0, Truncated(tag, "declared length %d below header size", length)
	}
	if length > len(data) {
		return Atom{}, 0, Truncated(tag, "declared length %d, have %d", length, len(data))
	}

	payload := make([]byte, length-HeaderSize)
	copy(payload, data[HeaderSize:length])

	return Atom{Tag: tag, Payload: payload}, length, nil
}

// DecodeAll splits a batch of concatenated atoms. Atom boundaries come from
// the headers alone. On error the atoms decoded before the failure are
// returned with it.
func DecodeAll(data []byte) ([]Atom, error) {
	var atoms []Atom
	for len(data) > 0 {
		a, n, err := Decode(data)
		if err != nil {
			return atoms, err
		}
		atoms = append(atoms, a)
		data = data[n:]
	}
	return atoms, nil
}

// EncodeAll concatenates the encoded form of every atom.
func EncodeAll(atoms []Atom) ([]byte, error) {
	size := 0
	for _, a := range atoms {
		size += a.Len()
	}
	e := NewEncoderWithCap(size)
	for _, a := range atoms {
		if err := a.EncodeTo(e); err != nil {
			return nil, err
		}
	}
	return e.Bytes(), nil
}
