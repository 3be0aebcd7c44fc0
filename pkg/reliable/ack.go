package reliable

import "time"

// AckTracker coalesces inbound acknowledgements. Acks are cumulative, so
// only the newest id matters. An ack rides on the next outbound packet when
// one is sent in time, and goes out standalone after the configured delay
// otherwise.
type AckTracker struct {
	delay   time.Duration
	pending bool
	id      uint16
	since   time.Time
}

// NewAckTracker creates a tracker with cfg.AckDelay.
func NewAckTracker(cfg Config) *AckTracker {
	return &AckTracker{delay: cfg.withDefaults().AckDelay}
}

// Mark records that id must be acknowledged.
func (a *AckTracker) Mark(id uint16, now time.Time) {
	if !a.pending {
		a.pending = true
		a.since = now
	}
	a.id = id
}

// Piggyback hands the pending ack to an outbound packet.
func (a *AckTracker) Piggyback() (uint16, bool) {
	if !a.pending {
		return 0, false
	}
	a.pending = false
	return a.id, true
}

// Due returns the pending ack once it has waited for the delay.
func (a *AckTracker) Due(now time.Time) (uint16, bool) {
	if !a.pending || now.Sub(a.since) < a.delay {
		return 0, false
	}
	return a.Piggyback()
}

// Deadline returns when a standalone ack will be due.
func (a *AckTracker) Deadline() (time.Time, bool) {
	if !a.pending {
		return time.Time{}, false
	}
	return a.since.Add(a.delay), true
}

// Reset forgets any pending ack.
func (a *AckTracker) Reset() {
	a.pending = false
	a.id = 0
}
