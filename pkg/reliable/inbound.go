package reliable

import (
	"time"

	"github.com/vango-dev/burp/pkg/packet"
)

// Verdict says what Inbound did with a packet.
type Verdict uint8

const (
	Released  Verdict = iota + 1 // Packet (and possibly buffered ones) released in order
	Buffered                     // Held until the gap before it fills
	Duplicate                    // Already buffered
	Stale                        // Already released; the sender missed our ack
	TooFar                       // Beyond the reorder window; discarded
)

// String returns the string representation of the verdict.
func (v Verdict) String() string {
	switch v {
	case Released:
		return "released"
	case Buffered:
		return "buffered"
	case Duplicate:
		return "duplicate"
	case Stale:
		return "stale"
	case TooFar:
		return "too_far"
	default:
		return "unknown"
	}
}

// Inbound restores sender order on inbound packets. Packets within the
// reorder window are held until every earlier id has arrived; anything
// older than the next expected id or beyond the window is rejected without
// disturbing the sequence.
//
// Inbound is not safe for concurrent use; the session loop owns it.
type Inbound struct {
	window   int
	next     uint16
	buf      map[uint16]*packet.Packet
	gapSince time.Time
}

// NewInbound creates a reorder buffer expecting id 1 first.
func NewInbound(cfg Config) *Inbound {
	cfg = cfg.withDefaults()
	return &Inbound{
		window: cfg.ReorderWindow,
		next:   1,
		buf:    make(map[uint16]*packet.Packet),
	}
}

// Reset clears the buffer and sets the next expected id.
func (in *Inbound) Reset(next uint16) {
	in.next = next & packet.MaxID
	clear(in.buf)
	in.gapSince = time.Time{}
}

// Accept offers p to the buffer and returns the packets that are now
// deliverable, in order.
func (in *Inbound) Accept(p *packet.Packet, now time.Time) (Verdict, []*packet.Packet) {
	id := p.SenderID
	d := packet.Diff(id, in.next)
	switch {
	case d < 0:
		return Stale, nil
	case d >= in.window:
		return TooFar, nil
	}
	if _, ok := in.buf[id]; ok {
		return Duplicate, nil
	}
	in.buf[id] = p

	var released []*packet.Packet
	for {
		q, ok := in.buf[in.next]
		if !ok {
			break
		}
		delete(in.buf, in.next)
		released = append(released, q)
		in.next = packet.NextID(in.next)
	}

	switch {
	case len(in.buf) == 0:
		in.gapSince = time.Time{}
	case len(released) > 0 || in.gapSince.IsZero():
		in.gapSince = now
	}

	if len(released) == 0 {
		return Buffered, nil
	}
	return Released, released
}

// Next returns the next expected id.
func (in *Inbound) Next() uint16 {
	return in.next
}

// LastReleased returns the id of the most recently released packet.
func (in *Inbound) LastReleased() uint16 {
	return (in.next + packet.MaxID) & packet.MaxID
}

// Buffered returns the number of packets held behind a gap.
func (in *Inbound) Buffered() int {
	return len(in.buf)
}

// Stalled reports whether a gap has stayed open longer than maxAge.
func (in *Inbound) Stalled(now time.Time, maxAge time.Duration) bool {
	return len(in.buf) > 0 && now.Sub(in.gapSince) >= maxAge
}
