package atom

import (
	"bytes"
	"encoding/binary"
	"io"
)

// Decoder reads network-order primitives from a byte buffer.
// Every read is bounds-checked and fails with io.ErrUnexpectedEOF rather
// than reading past the end.
type Decoder struct {
	buf []byte
	pos int
}

// NewDecoder reads from buf without copying it.
func NewDecoder(buf []byte) *Decoder {
	return &Decoder{buf: buf}
}

func (d *Decoder) Remaining() int {
	return len(d.buf) - d.pos
}

// EOF reports whether buf is exhausted.
func (d *Decoder) EOF() bool {
	return d.pos >= len(d.buf)
}

// Position is the offset of the next read.
func (d *Decoder) Position() int {
	return d.pos
}

// Seek jumps to an absolute offset. Schemas address fields by offset, not
// by order.
func (d *Decoder) Seek(off int) error {
	if off < 0 || off > len(d.buf) {
		return io.ErrUnexpectedEOF
	}
	d.pos = off
	return nil
}

func (d *Decoder) Skip(n int) error {
	if n < 0 || d.pos+n > len(d.buf) {
		return io.ErrUnexpectedEOF
	}
	d.pos += n
	return nil
}

func (d *Decoder) ReadByte() (byte, error) {
	if d.pos >= len(d.buf) {
		return 0, io.ErrUnexpectedEOF
	}
	b := d.buf[d.pos]
	d.pos++
	return b, nil
}

// ReadBytes returns the next n bytes. The slice aliases buf.
func (d *Decoder) ReadBytes(n int) ([]byte, error) {
	if n < 0 || d.pos+n > len(d.buf) {
		return nil, io.ErrUnexpectedEOF
	}
	b := d.buf[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

// ReadBool reads a boolean. Any non-zero byte is true; the device is not
// strict about 0x01.
func (d *Decoder) ReadBool() (bool, error) {
	b, err := d.ReadByte()
	if err != nil {
		return false, err
	}
	return b != 0, nil
}

func (d *Decoder) ReadUint8() (uint8, error) {
	return d.ReadByte()
}

// ReadUint16 reads a network-order uint16.
func (d *Decoder) ReadUint16() (uint16, error) {
	if d.pos+2 > len(d.buf) {
		return 0, io.ErrUnexpectedEOF
	}
	v := binary.BigEndian.Uint16(d.buf[d.pos:])
	d.pos += 2
	return v, nil
}

// ReadUint32 reads a network-order uint32.
func (d *Decoder) ReadUint32() (uint32, error) {
	if d.pos+4 > len(d.buf) {
		return 0, io.ErrUnexpectedEOF
	}
	v := binary.BigEndian.Uint32(d.buf[d.pos:])
	d.pos += 4
	return v, nil
}

func (d *Decoder) ReadInt8() (int8, error) {
	v, err := d.ReadByte()
	return int8(v), err
}

func (d *Decoder) ReadInt16() (int16, error) {
	v, err := d.ReadUint16()
	return int16(v), err
}

func (d *Decoder) ReadInt32() (int32, error) {
	v, err := d.ReadUint32()
	return int32(v), err
}

// ReadFixedString reads a size-byte field and returns the text before the
// first NUL. Bytes after the terminator are undefined and ignored.
func (d *Decoder) ReadFixedString(size int) (string, error) {
	b, err := d.ReadBytes(size)
	if err != nil {
		return "", err
	}
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b), nil
}
