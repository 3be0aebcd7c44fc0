// Package atom implements the generic atom envelope of the BEP/BURP switcher
// protocol and the network-order primitives used by payload layouts.
//
// An atom is a length-prefixed, tagged record. Every command sent to a
// switcher and every state update it emits is an atom; packets carry
// batches of them back to back.
//
// # Wire Format
//
// All multi-byte integers are big-endian regardless of host architecture:
//
//	offset  size  field
//	0       2     total length, header included (>= 8)
//	2       2     reserved, zero on encode, ignored on decode
//	4       4     type tag, e.g. "DCut"
//	8       n     payload
//
// Atom boundaries are derived from the header alone, so a batch can be split
// with DecodeAll without knowing any payload schema. Interpreting the payload
// is the job of package schema.
//
// # Errors
//
// Decode failures are reported as *DecodeError and match the sentinels
// ErrTruncated, ErrUnknownType and ErrSchemaMismatch via errors.Is.
// A short buffer never causes an out-of-bounds read.
//
// # Example
//
//	a := atom.Atom{Tag: atom.MustTag("DCut"), Payload: []byte{0, 0, 0, 0}}
//	b, _ := a.Encode() // 00 0c 00 00 44 43 75 74 00 00 00 00
//	back, n, err := atom.Decode(b)
package atom
