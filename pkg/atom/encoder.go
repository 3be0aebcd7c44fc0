package atom

import "encoding/binary"

// Encoder appends network-order primitives to an internal buffer.
// It never fails; bounds are checked by the caller that frames the result.
type Encoder struct {
	buf []byte
}

// NewEncoder returns an encoder sized for a handful of small atoms.
func NewEncoder() *Encoder {
	return &Encoder{
		buf: make([]byte, 0, 64),
	}
}

// NewEncoderWithCap returns an encoder that can hold cap bytes before growing.
func NewEncoderWithCap(cap int) *Encoder {
	return &Encoder{
		buf: make([]byte, 0, cap),
	}
}

// Reset empties the encoder and keeps its buffer.
func (e *Encoder) Reset() {
	e.buf = e.buf[:0]
}

// Bytes returns the buffer. It is overwritten by the next Reset and may be
// reallocated by the next write.
func (e *Encoder) Bytes() []byte {
	return e.buf
}

func (e *Encoder) Len() int {
	return len(e.buf)
}

// WriteByte appends b. Unlike io.ByteWriter it cannot fail.
func (e *Encoder) WriteByte(b byte) {
	e.buf = append(e.buf, b)
}

func (e *Encoder) WriteBytes(b []byte) {
	e.buf = append(e.buf, b...)
}

// WriteZeros appends n zero bytes. Used for padding, which is always
// written as zero even though the device leaves it undefined.
func (e *Encoder) WriteZeros(n int) {
	for i := 0; i < n; i++ {
		e.buf = append(e.buf, 0)
	}
}

// WriteBool appends 1 or 0.
func (e *Encoder) WriteBool(b bool) {
	var v byte
	if b {
		v = 1
	}
	e.buf = append(e.buf, v)
}

func (e *Encoder) WriteUint8(v uint8) {
	e.buf = append(e.buf, v)
}

// WriteUint16 appends v in network order.
func (e *Encoder) WriteUint16(v uint16) {
	e.buf = binary.BigEndian.AppendUint16(e.buf, v)
}

// WriteUint32 appends v in network order.
func (e *Encoder) WriteUint32(v uint32) {
	e.buf = binary.BigEndian.AppendUint32(e.buf, v)
}

func (e *Encoder) WriteInt8(v int8) {
	e.buf = append(e.buf, byte(v))
}

// WriteInt16 appends v as two's complement in network order.
func (e *Encoder) WriteInt16(v int16) {
	e.WriteUint16(uint16(v))
}

func (e *Encoder) WriteInt32(v int32) {
	e.WriteUint32(uint32(v))
}

// WriteFixedString appends s truncated or NUL-padded to exactly size bytes.
func (e *Encoder) WriteFixedString(s string, size int) {
	if len(s) > size {
		s = s[:size]
	}
	e.buf = append(e.buf, s...)
	e.WriteZeros(size - len(s))
}

// PutUint16 overwrites two bytes at off in big-endian order.
// The offset must already have been written.
func (e *Encoder) PutUint16(off int, v uint16) {
	binary.BigEndian.PutUint16(e.buf[off:], v)
}
