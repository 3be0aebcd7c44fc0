package packet

import (
	"bytes"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/vango-dev/burp/pkg/atom"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestControlPacketsWireFormat(t *testing.T) {
	tests := []struct {
		name string
		pkt  *Packet
		hex  string
	}{
		{
			name: "connect",
			pkt:  NewControl(0x2970, Control{Code: ControlConnect}, ClientIDConnect),
			hex:  "101429700000000000b100000100000000000000",
		},
		{
			name: "connect_ack",
			pkt:  NewControl(0x2970, Control{Code: ControlConnectAck, SessionID: 0x0002}, 0),
			hex:  "1014297000000000000000000200000200000000",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			want := mustHex(t, tc.hex)

			got, err := tc.pkt.Encode()
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if !bytes.Equal(got, want) {
				t.Fatalf("Encode() = %x, want %x", got, want)
			}

			decoded, err := Decode(want)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if !decoded.IsControl() {
				t.Fatal("decoded packet is not control")
			}
			c, err := decoded.Control()
			if err != nil {
				t.Fatalf("Control() error = %v", err)
			}
			orig, _ := tc.pkt.Control()
			if c != orig {
				t.Errorf("Control() = %+v, want %+v", c, orig)
			}
		})
	}
}

func TestConnectAckAssignedSession(t *testing.T) {
	c := Control{Code: ControlConnectAck, SessionID: 0x0002}
	if got := c.AssignedSession(); got != 0x8002 {
		t.Errorf("AssignedSession() = %#x, want 0x8002", got)
	}
}

func TestAtomPacketRoundTrip(t *testing.T) {
	// A single RFIP state atom captured from a switcher.
	single := mustHex(t, "08288001000000000000003f001c0000524649500001420901000000ffffffffffff01000004cb01")

	p, err := Decode(single)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if p.Flags != FlagAckRequest {
		t.Errorf("Flags = %v, want ACK", p.Flags)
	}
	if p.SessionID != 0x8001 || p.SenderID != 0x3f {
		t.Errorf("header = %v", p)
	}
	atoms, err := p.Atoms()
	if err != nil {
		t.Fatalf("Atoms() error = %v", err)
	}
	if len(atoms) != 1 || atoms[0].Tag != atom.MustTag("RFIP") || len(atoms[0].Payload) != 20 {
		t.Fatalf("Atoms() = %v", atoms)
	}

	out, err := p.Encode()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, single) {
		t.Errorf("re-encode = %x\nwant       %x", out, single)
	}

	multi := mustHex(t, ""+
		"08dc80010000000000000040"+
		"001c0000524649500002420901000000ffffffffffff01000004ca01"+
		"001c0000524649500003420901000000ffffffffffff01000004cb01"+
		"001c0000524649500004420901000000ffffffffffff01000004cb01"+
		"000c000052464c5002ce0004"+
		"001c0000524649500515420901000000ffffffffffffff000004c801"+
		"001c000052464950051514c8877f0000ffffffffffffff01000414c8"+
		"001c0000524649500516420901000000ffffffffffffff000004cd01"+
		"001c0000524649500516a50d887f0000ffffffffffffff010004a50d")

	p, err = Decode(multi)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	atoms, err = p.Atoms()
	if err != nil {
		t.Fatalf("Atoms() error = %v", err)
	}
	if len(atoms) != 8 {
		t.Fatalf("Atoms() returned %d atoms, want 8", len(atoms))
	}
	if atoms[3].Tag != atom.MustTag("RFLP") {
		t.Errorf("atom 3 = %v, want RFLP", atoms[3].Tag)
	}

	rebuilt, err := NewAtoms(p.SessionID, p.SenderID, atoms)
	if err != nil {
		t.Fatal(err)
	}
	out, err = rebuilt.Encode()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, multi) {
		t.Errorf("rebuilt packet differs:\n got %x\nwant %x", out, multi)
	}
}

func TestCutCommandPacket(t *testing.T) {
	cut := atom.Atom{Tag: atom.MustTag("DCut"), Payload: []byte{0, 0, 0, 0}}
	p, err := NewAtoms(0x8001, 0x000f, []atom.Atom{cut})
	if err != nil {
		t.Fatal(err)
	}
	p.ClientID = 1

	got, err := p.Encode()
	if err != nil {
		t.Fatal(err)
	}
	want := mustHex(t, "08188001000000000001000f000c00004443757400000000")
	if !bytes.Equal(got, want) {
		t.Errorf("Encode() = %x, want %x", got, want)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrShortPacket},
		{"short", make([]byte, 11), ErrShortPacket},
		{"length_below_header", []byte{0x08, 0x0B, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}, ErrBadLength},
		{"length_past_datagram", []byte{0x08, 0x10, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}, ErrBadLength},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Decode(tc.data); !errors.Is(err, tc.want) {
				t.Errorf("Decode() error = %v, want %v", err, tc.want)
			}
		})
	}

	if _, err := (&Packet{Payload: make([]byte, MaxPayloadSize+1)}).Encode(); !errors.Is(err, ErrPacketTooLarge) {
		t.Errorf("Encode() oversize error = %v", err)
	}
	if _, err := (&Packet{}).Control(); !errors.Is(err, ErrNotControl) {
		t.Errorf("Control() on data packet error = %v", err)
	}
	if _, err := DecodeControl([]byte{0x09, 0, 0, 0, 0, 0, 0, 0}); err == nil {
		t.Error("DecodeControl() accepted unknown code")
	}
	if _, err := DecodeControl([]byte{0x01}); err == nil {
		t.Error("DecodeControl() accepted short payload")
	}
}

func TestAckPacket(t *testing.T) {
	p := NewAck(0x8001, 0x0042)
	if !p.IsPureAck() {
		t.Error("IsPureAck() = false for standalone ack")
	}
	b, err := p.Encode()
	if err != nil {
		t.Fatal(err)
	}
	if b[0] != 0x80 || b[1] != 0x0C {
		t.Errorf("first word = % x, want 80 0c", b[:2])
	}
	if b[4] != 0x00 || b[5] != 0x42 {
		t.Errorf("acked id = % x, want 00 42", b[4:6])
	}
}

func TestFlagsString(t *testing.T) {
	if s := (FlagAckRequest | FlagRetransmission).String(); s != "ACK|RETX" {
		t.Errorf("String() = %q", s)
	}
	if s := Flags(0).String(); s != "0" {
		t.Errorf("String() = %q", s)
	}
}

func TestSequenceArithmetic(t *testing.T) {
	tests := []struct {
		a, b uint16
		want int
	}{
		{5, 3, 2},
		{3, 5, -2},
		{0, MaxID, 1},
		{MaxID, 0, -1},
		{2, 0x7ffe, 4},
		{0x4000, 0, -0x4000},
		{0x3fff, 0, 0x3fff},
	}
	for _, tc := range tests {
		if got := Diff(tc.a, tc.b); got != tc.want {
			t.Errorf("Diff(%#x, %#x) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
	if NextID(MaxID) != 0 || NextID(7) != 8 {
		t.Error("NextID() wrap wrong")
	}
	if !After(0, MaxID) || After(MaxID, 0) {
		t.Error("After() wrap wrong")
	}
}

func TestBatch(t *testing.T) {
	small := atom.Atom{Tag: atom.MustTag("DCut"), Payload: make([]byte, 4)} // 12 bytes
	atoms := []atom.Atom{small, small, small, small, small}

	batches, err := Batch(atoms, 30)
	if err != nil {
		t.Fatal(err)
	}
	if len(batches) != 3 || len(batches[0]) != 2 || len(batches[1]) != 2 || len(batches[2]) != 1 {
		t.Errorf("Batch() sizes = %v", batchSizes(batches))
	}

	batches, err = Batch(atoms, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(batches) != 1 {
		t.Errorf("Batch() with default room = %v", batchSizes(batches))
	}

	big := atom.Atom{Tag: atom.MustTag("Huge"), Payload: make([]byte, MaxPayloadSize)}
	if _, err := Batch([]atom.Atom{big}, 0); !errors.Is(err, atom.ErrAtomTooLarge) {
		t.Errorf("Batch() oversize error = %v", err)
	}

	if batches, _ := Batch(nil, 0); len(batches) != 0 {
		t.Errorf("Batch(nil) = %v", batches)
	}
}

func batchSizes(b [][]atom.Atom) []int {
	var out []int
	for _, x := range b {
		out = append(out, len(x))
	}
	return out
}
