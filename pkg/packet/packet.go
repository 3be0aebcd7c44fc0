package packet

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vango-dev/burp/pkg/atom"
)

// Packet constants.
const (
	// HeaderSize is the size of the packet header in bytes.
	HeaderSize = 12

	// MaxLength is the largest packet the 11-bit length field can describe.
	MaxLength = 0x7ff

	// MaxPayloadSize is the room left for atoms after the header.
	MaxPayloadSize = MaxLength - HeaderSize

	// MaxID is the largest packet id; ids wrap to zero after it.
	MaxID = 0x7fff

	// SwitcherSessionBit is set on session ids assigned by the switcher.
	SwitcherSessionBit = 0x8000

	// ClientIDConnect is the client packet id sent with a Connect control.
	ClientIDConnect = 0xb1

	// ClientIDStateRequest is the client packet id of the handshake ack
	// that asks the switcher for its full state.
	ClientIDStateRequest = 0xd4

	lengthMask = 0x07ff
)

// Flags are the five flag bits sharing the first header word with the
// packet length.
type Flags uint16

const (
	FlagAckRequest     Flags = 0x0800 // Receiver must acknowledge
	FlagControl        Flags = 0x1000 // Payload is a control message
	FlagRetransmission Flags = 0x2000 // Packet is being resent
	FlagHello          Flags = 0x4000 // Sender started a new sequence baseline
	FlagResponse       Flags = 0x8000 // AckedID acknowledges a packet
)

// Has returns true if the flags contain the specified flag.
func (f Flags) Has(flag Flags) bool {
	return f&flag != 0
}

// String returns the set flags joined with "|".
func (f Flags) String() string {
	names := []struct {
		flag Flags
		name string
	}{
		{FlagAckRequest, "ACK"},
		{FlagControl, "CTRL"},
		{FlagRetransmission, "RETX"},
		{FlagHello, "HELLO"},
		{FlagResponse, "RESP"},
	}
	var parts []string
	for _, n := range names {
		if f.Has(n.flag) {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "0"
	}
	return strings.Join(parts, "|")
}

// Packet errors.
var (
	ErrShortPacket    = errors.New("packet: shorter than header")
	ErrBadLength      = errors.New("packet: declared length does not match datagram")
	ErrPacketTooLarge = errors.New("packet: payload too large")
	ErrNotControl     = errors.New("packet: not a control packet")
)

// Packet is one datagram of the switcher protocol.
//
// Wire format (12 bytes header + variable payload, big-endian):
//
//	┌──────────────────┬──────────────┬──────────────┬──────────────┐
//	│ Flags | Length   │ Session ID   │ Acked ID     │ Reserved     │
//	│ (5 + 11 bits)    │ (2 bytes)    │ (2 bytes)    │ (2 bytes)    │
//	├──────────────────┼──────────────┼──────────────┴──────────────┘
//	│ Client ID        │ Sender ID    │
//	│ (2 bytes)        │ (2 bytes)    │
//	└──────────────────┴──────────────┘
//	│  Payload: control message (8 bytes) or concatenated atoms      │
type Packet struct {
	Flags     Flags
	SessionID uint16
	AckedID   uint16
	Reserved  uint16
	ClientID  uint16
	SenderID  uint16
	Payload   []byte
}

// Len returns the encoded length including the header.
func (p *Packet) Len() int {
	return HeaderSize + len(p.Payload)
}

// Encode encodes the packet to bytes including the header.
func (p *Packet) Encode() ([]byte, error) {
	e := atom.NewEncoderWithCap(p.Len())
	if err := p.EncodeTo(e); err != nil {
		return nil, err
	}
	return e.Bytes(), nil
}

// EncodeTo encodes the packet using the provided encoder.
func (p *Packet) EncodeTo(e *atom.Encoder) error {
	if p.Len() > MaxLength {
		return ErrPacketTooLarge
	}
	e.WriteUint16(uint16(p.Flags)&^lengthMask | uint16(p.Len()))
	e.WriteUint16(p.SessionID)
	e.WriteUint16(p.AckedID)
	e.WriteUint16(p.Reserved)
	e.WriteUint16(p.ClientID)
	e.WriteUint16(p.SenderID)
	e.WriteBytes(p.Payload)
	return nil
}

// Decode decodes a packet from one datagram. The payload is copied.
func Decode(data []byte) (*Packet, error) {
	if len(data) < HeaderSize {
		return nil, ErrShortPacket
	}

	d := atom.NewDecoder(data)
	word, _ := d.ReadUint16()
	length := int(word & lengthMask)
	if length < HeaderSize || length > len(data) {
		return nil, fmt.Errorf("%w: header says %d, datagram is %d", ErrBadLength, length, len(data))
	}

	p := &Packet{Flags: Flags(word &^ lengthMask)}
	p.SessionID, _ = d.ReadUint16()
	p.AckedID, _ = d.ReadUint16()
	p.Reserved, _ = d.ReadUint16()
	p.ClientID, _ = d.ReadUint16()
	p.SenderID, _ = d.ReadUint16()

	p.Payload = make([]byte, length-HeaderSize)
	copy(p.Payload, data[HeaderSize:length])
	return p, nil
}

// IsControl reports whether the packet carries a control message.
func (p *Packet) IsControl() bool {
	return p.Flags.Has(FlagControl)
}

// IsPureAck reports whether the packet only acknowledges: no sender id and
// no atoms. Pure acks never enter the receive window.
func (p *Packet) IsPureAck() bool {
	return !p.IsControl() && p.SenderID == 0 && len(p.Payload) == 0
}

// Control decodes the control message.
func (p *Packet) Control() (Control, error) {
	if !p.IsControl() {
		return Control{}, ErrNotControl
	}
	return DecodeControl(p.Payload)
}

// Atoms splits the payload into atoms.
func (p *Packet) Atoms() ([]atom.Atom, error) {
	if p.IsControl() {
		return nil, nil
	}
	return atom.DecodeAll(p.Payload)
}

// String summarises the header for logs.
func (p *Packet) String() string {
	return fmt.Sprintf("packet{flags=%s session=%#04x acked=%#04x client=%#04x sender=%#04x len=%d}",
		p.Flags, p.SessionID, p.AckedID, p.ClientID, p.SenderID, p.Len())
}

// NewControl creates a control packet.
func NewControl(sessionID uint16, c Control, clientID uint16) *Packet {
	return &Packet{
		Flags:     FlagControl,
		SessionID: sessionID,
		ClientID:  clientID,
		Payload:   c.Encode(),
	}
}

// NewAtoms creates an ack-requesting packet carrying atoms.
func NewAtoms(sessionID, senderID uint16, atoms []atom.Atom) (*Packet, error) {
	payload, err := atom.EncodeAll(atoms)
	if err != nil {
		return nil, err
	}
	if len(payload) > MaxPayloadSize {
		return nil, ErrPacketTooLarge
	}
	return &Packet{
		Flags:     FlagAckRequest,
		SessionID: sessionID,
		SenderID:  senderID,
		Payload:   payload,
	}, nil
}

// NewAck creates a standalone acknowledgement of ackedID.
func NewAck(sessionID, ackedID uint16) *Packet {
	return &Packet{
		Flags:     FlagResponse,
		SessionID: sessionID,
		AckedID:   ackedID,
	}
}
