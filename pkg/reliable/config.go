package reliable

import "time"

// Config holds the reliability parameters of one session.
type Config struct {
	// MaxAckQueue bounds the number of unacknowledged outbound packets.
	// Default: 512.
	MaxAckQueue int

	// MaxRetransmits is how many times a packet is resent before the
	// session is declared failed. Default: 3.
	MaxRetransmits int

	// RetransmitInterval is the time between resends of one packet.
	// Default: 500ms.
	RetransmitInterval time.Duration

	// ReorderWindow is how far ahead of the next expected id an inbound
	// packet may be buffered. Default: 64.
	ReorderWindow int

	// MaxGapAge is how long an inbound gap may stay unfilled. Default: 2s.
	MaxGapAge time.Duration

	// AckDelay bounds how long an acknowledgement waits for an outbound
	// packet to ride on. Default: 20ms.
	AckDelay time.Duration
}

// DefaultConfig returns a Config with the values observed from switchers
// and their vendor software.
func DefaultConfig() Config {
	return Config{
		MaxAckQueue:        512,
		MaxRetransmits:     3,
		RetransmitInterval: 500 * time.Millisecond,
		ReorderWindow:      64,
		MaxGapAge:          2 * time.Second,
		AckDelay:           20 * time.Millisecond,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxAckQueue <= 0 {
		c.MaxAckQueue = d.MaxAckQueue
	}
	if c.MaxRetransmits < 0 {
		c.MaxRetransmits = 0
	}
	if c.RetransmitInterval <= 0 {
		c.RetransmitInterval = d.RetransmitInterval
	}
	if c.ReorderWindow <= 0 {
		c.ReorderWindow = d.ReorderWindow
	}
	if c.MaxGapAge <= 0 {
		c.MaxGapAge = d.MaxGapAge
	}
	if c.AckDelay <= 0 {
		c.AckDelay = d.AckDelay
	}
	return c
}
