package packet

import (
	"fmt"

	"github.com/vango-dev/burp/pkg/atom"
)

// ControlSize is the fixed size of a control payload.
const ControlSize = 8

// ControlCode identifies the type of control message.
type ControlCode uint8

const (
	ControlConnect       ControlCode = 0x01 // Client opens a session
	ControlConnectAck    ControlCode = 0x02 // Switcher accepts and assigns an id
	ControlConnectNack   ControlCode = 0x03 // Switcher refuses (too many clients)
	ControlDisconnect    ControlCode = 0x04 // Either side closes
	ControlDisconnectAck ControlCode = 0x05 // Close acknowledged
)

// String returns the string representation of the control code.
func (c ControlCode) String() string {
	switch c {
	case ControlConnect:
		return "Connect"
	case ControlConnectAck:
		return "ConnectAck"
	case ControlConnectNack:
		return "ConnectNack"
	case ControlDisconnect:
		return "Disconnect"
	case ControlDisconnectAck:
		return "DisconnectAck"
	default:
		return "Unknown"
	}
}

// Control is a decoded control payload.
//
// Wire format (8 bytes):
//
//	┌──────────┬──────────┬──────────────────────┬──────────────┐
//	│ Code     │ Reserved │ Session ID           │ Reserved     │
//	│ (1 byte) │ (1 byte) │ (2 bytes, ConnectAck)│ (4 bytes)    │
//	└──────────┴──────────┴──────────────────────┴──────────────┘
type Control struct {
	Code ControlCode

	// SessionID is only meaningful for ConnectAck. The switcher sends the
	// low 15 bits; the session id used afterwards has SwitcherSessionBit set.
	SessionID uint16
}

// Encode encodes the control payload.
func (c Control) Encode() []byte {
	e := atom.NewEncoderWithCap(ControlSize)
	e.WriteUint8(uint8(c.Code))
	e.WriteZeros(1)
	if c.Code == ControlConnectAck {
		e.WriteUint16(c.SessionID)
	} else {
		e.WriteZeros(2)
	}
	e.WriteZeros(4)
	return e.Bytes()
}

// DecodeControl decodes a control payload.
func DecodeControl(data []byte) (Control, error) {
	if len(data) < ControlSize {
		return Control{}, fmt.Errorf("packet: control payload is %d bytes, want %d", len(data), ControlSize)
	}
	d := atom.NewDecoder(data)
	code, _ := d.ReadUint8()
	c := Control{Code: ControlCode(code)}
	switch c.Code {
	case ControlConnect, ControlConnectNack, ControlDisconnect, ControlDisconnectAck:
	case ControlConnectAck:
		_ = d.Skip(1)
		c.SessionID, _ = d.ReadUint16()
	default:
		return Control{}, fmt.Errorf("packet: unknown control code %#02x", code)
	}
	return c, nil
}

// AssignedSession returns the session id to use after a ConnectAck.
func (c Control) AssignedSession() uint16 {
	return c.SessionID | SwitcherSessionBit
}
