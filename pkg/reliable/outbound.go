package reliable

import (
	"errors"
	"fmt"
	"time"

	"github.com/vango-dev/burp/pkg/packet"
)

// Outbound errors.
var (
	ErrQueueFull  = errors.New("reliable: unacknowledged queue full")
	ErrUnknownAck = errors.New("reliable: acknowledgement for a packet never sent")
)

// Pending is an outbound packet awaiting acknowledgement.
type Pending struct {
	Packet   *packet.Packet
	Frame    []byte    // Encoded packet, re-encoded when the flags change
	SentAt   time.Time // Last (re)transmission
	Attempts int       // Retransmissions so far
}

// ID returns the sender id of the packet.
func (p *Pending) ID() uint16 {
	return p.Packet.SenderID
}

// Outbound numbers outbound packets and tracks them until acknowledged.
// It works like a ring of sent frames: packets enter in id order and leave
// from the front as cumulative acks arrive.
//
// Outbound is not safe for concurrent use; the session loop owns it.
type Outbound struct {
	cfg     Config
	nextID  uint16
	pending []*Pending // Ascending by id, wrap-aware
}

// NewOutbound creates an outbound tracker. Ids start at 1.
func NewOutbound(cfg Config) *Outbound {
	return &Outbound{
		cfg:    cfg.withDefaults(),
		nextID: 1,
	}
}

// Reset drops every pending packet and restarts ids at 1. The dropped
// packets are returned so their senders can be failed.
func (o *Outbound) Reset() []*Pending {
	dropped := o.pending
	o.pending = nil
	o.nextID = 1
	return dropped
}

// Allocate returns the next sender id.
func (o *Outbound) Allocate() uint16 {
	id := o.nextID
	o.nextID = packet.NextID(o.nextID)
	return id
}

// LastSent returns the most recently allocated id.
func (o *Outbound) LastSent() uint16 {
	return (o.nextID + packet.MaxID) & packet.MaxID
}

// Track encodes p and records it as sent at now. The caller writes the
// returned frame to the transport.
func (o *Outbound) Track(p *packet.Packet, now time.Time) (*Pending, error) {
	if len(o.pending) >= o.cfg.MaxAckQueue {
		return nil, ErrQueueFull
	}
	frame, err := p.Encode()
	if err != nil {
		return nil, err
	}
	pend := &Pending{Packet: p, Frame: frame, SentAt: now}
	o.pending = append(o.pending, pend)
	return pend, nil
}

// Ack releases every pending packet up to and including id. An id after
// the last allocated one is a protocol violation.
func (o *Outbound) Ack(id uint16) ([]*Pending, error) {
	if packet.After(id, o.LastSent()) {
		return nil, fmt.Errorf("%w: %#04x, last sent %#04x", ErrUnknownAck, id, o.LastSent())
	}

	n := 0
	for n < len(o.pending) && packet.Diff(o.pending[n].ID(), id) <= 0 {
		n++
	}
	if n == 0 {
		return nil, nil
	}
	acked := make([]*Pending, n)
	copy(acked, o.pending[:n])
	o.pending = o.pending[n:]
	return acked, nil
}

// Due returns the packets whose retransmit timer has fired. Packets still
// within their retry bound are marked as retransmissions, restamped and
// returned in resend; packets that exhausted the bound are removed and
// returned in expired.
func (o *Outbound) Due(now time.Time) (resend, expired []*Pending) {
	kept := o.pending[:0]
	for _, p := range o.pending {
		if now.Sub(p.SentAt) < o.cfg.RetransmitInterval {
			kept = append(kept, p)
			continue
		}
		if p.Attempts >= o.cfg.MaxRetransmits {
			expired = append(expired, p)
			continue
		}
		p.Attempts++
		p.SentAt = now
		if !p.Packet.Flags.Has(packet.FlagRetransmission) {
			p.Packet.Flags |= packet.FlagRetransmission
			if frame, err := p.Packet.Encode(); err == nil {
				p.Frame = frame
			}
		}
		resend = append(resend, p)
		kept = append(kept, p)
	}
	for i := len(kept); i < len(o.pending); i++ {
		o.pending[i] = nil
	}
	o.pending = kept
	return resend, expired
}

// NextDeadline returns when the earliest pending packet is due.
func (o *Outbound) NextDeadline() (time.Time, bool) {
	if len(o.pending) == 0 {
		return time.Time{}, false
	}
	earliest := o.pending[0].SentAt
	for _, p := range o.pending[1:] {
		if p.SentAt.Before(earliest) {
			earliest = p.SentAt
		}
	}
	return earliest.Add(o.cfg.RetransmitInterval), true
}

// Len returns the number of unacknowledged packets.
func (o *Outbound) Len() int {
	return len(o.pending)
}

// Free returns how many more packets may be tracked.
func (o *Outbound) Free() int {
	return o.cfg.MaxAckQueue - len(o.pending)
}
