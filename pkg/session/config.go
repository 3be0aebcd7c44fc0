package session

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/vango-dev/burp/pkg/atom"
	"github.com/vango-dev/burp/pkg/mirror"
	"github.com/vango-dev/burp/pkg/reliable"
	"github.com/vango-dev/burp/pkg/telemetry"
)

// Config holds configuration for one session.
type Config struct {
	// Handshake

	// HandshakeTimeout is how long one Connect attempt waits for the
	// switcher's answer.
	// Default: 1 second.
	HandshakeTimeout time.Duration

	// HandshakeRetries is the number of Connect attempts before giving up.
	// Default: 3.
	HandshakeRetries int

	// DisconnectTimeout bounds the wait for DisconnectAck on a local close.
	// Default: 250ms.
	DisconnectTimeout time.Duration

	// Reliability

	// RetransmitInterval is the time between resends of an unacknowledged
	// packet.
	// Default: 500ms.
	RetransmitInterval time.Duration

	// MaxRetransmits is how many resends a packet gets before the session
	// fails.
	// Default: 3.
	MaxRetransmits int

	// AckDelay bounds how long an acknowledgement waits for outbound traffic
	// to ride on.
	// Default: 20ms.
	AckDelay time.Duration

	// ReorderWindow is how far ahead of a gap inbound packets are buffered.
	// Default: 64.
	ReorderWindow int

	// MaxAckQueue bounds unacknowledged outbound packets.
	// Default: 512.
	MaxAckQueue int

	// MaxRxQueueTime is how long an inbound gap may stay open before the
	// session resynchronises.
	// Default: 2 seconds.
	MaxRxQueueTime time.Duration

	// KeepaliveInterval sends an empty reliable packet after this much
	// outbound silence so a dead link reaches the retransmit bound. Zero
	// disables keepalives.
	// Default: 1 second.
	KeepaliveInterval time.Duration

	// MaxReceiveErrors is the number of consecutive transport receive
	// failures tolerated before the session fails.
	// Default: 8.
	MaxReceiveErrors int

	// State

	// SyncCompleteTag marks the end of the initial state dump.
	// Default: "InCm".
	SyncCompleteTag atom.Tag

	// VersionTag carries the switcher's protocol version (u16 major,
	// u16 minor). The first one seen selects the registry view.
	// Default: "_ver".
	VersionTag atom.Tag

	// RetainOnReset keeps mirror entries across a baseline reset, marked
	// stale, instead of discarding them.
	// Default: false.
	RetainOnReset bool

	// EventBuffer is the per-subscriber change event buffer. A subscriber
	// that falls this far behind has its sequence ended.
	// Default: 1024.
	EventBuffer int

	// Seed pre-populates the mirror with stale entries from a stored
	// snapshot.
	Seed *mirror.Snapshot

	// Observability

	Logger  *slog.Logger
	Metrics *telemetry.Metrics
	Tracer  *telemetry.Tracer
}

// DefaultConfig returns a Config with the timings switchers expect.
func DefaultConfig() *Config {
	r := reliable.DefaultConfig()
	return &Config{
		HandshakeTimeout:   time.Second,
		HandshakeRetries:   3,
		DisconnectTimeout:  250 * time.Millisecond,
		RetransmitInterval: r.RetransmitInterval,
		MaxRetransmits:     r.MaxRetransmits,
		AckDelay:           r.AckDelay,
		ReorderWindow:      r.ReorderWindow,
		MaxAckQueue:        r.MaxAckQueue,
		MaxRxQueueTime:     r.MaxGapAge,
		KeepaliveInterval:  time.Second,
		MaxReceiveErrors:   8,
		SyncCompleteTag:    atom.MustTag("InCm"),
		VersionTag:         atom.MustTag("_ver"),
		EventBuffer:        1024,
	}
}

func (c *Config) validate() error {
	switch {
	case c.HandshakeTimeout <= 0:
		return fmt.Errorf("session: HandshakeTimeout must be positive")
	case c.HandshakeRetries < 1:
		return fmt.Errorf("session: HandshakeRetries must be at least 1")
	case c.RetransmitInterval <= 0:
		return fmt.Errorf("session: RetransmitInterval must be positive")
	case c.MaxRetransmits < 0:
		return fmt.Errorf("session: MaxRetransmits must not be negative")
	case c.ReorderWindow < 1 || c.ReorderWindow > 0x4000:
		return fmt.Errorf("session: ReorderWindow must be in 1..16384")
	case c.EventBuffer < 1:
		return fmt.Errorf("session: EventBuffer must be positive")
	}
	return nil
}

func (c *Config) reliable() reliable.Config {
	return reliable.Config{
		MaxAckQueue:        c.MaxAckQueue,
		MaxRetransmits:     c.MaxRetransmits,
		RetransmitInterval: c.RetransmitInterval,
		ReorderWindow:      c.ReorderWindow,
		MaxGapAge:          c.MaxRxQueueTime,
		AckDelay:           c.AckDelay,
	}
}

// Option configures a Session.
type Option func(*Config)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

// WithMetrics sets the Prometheus collectors.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(c *Config) {
		c.Metrics = m
	}
}

// WithTracer sets the span tracer.
func WithTracer(t *telemetry.Tracer) Option {
	return func(c *Config) {
		c.Tracer = t
	}
}

// WithHandshakeTimeout sets the per-attempt handshake timeout.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.HandshakeTimeout = d
	}
}

// WithHandshakeRetries sets the number of handshake attempts.
func WithHandshakeRetries(n int) Option {
	return func(c *Config) {
		c.HandshakeRetries = n
	}
}

// WithRetransmit sets the retransmit interval and bound.
func WithRetransmit(interval time.Duration, max int) Option {
	return func(c *Config) {
		c.RetransmitInterval = interval
		c.MaxRetransmits = max
	}
}

// WithAckDelay sets the standalone acknowledgement delay.
func WithAckDelay(d time.Duration) Option {
	return func(c *Config) {
		c.AckDelay = d
	}
}

// WithReorderWindow sets the inbound reorder window.
func WithReorderWindow(n int) Option {
	return func(c *Config) {
		c.ReorderWindow = n
	}
}

// WithKeepalive sets the keepalive interval; zero disables keepalives.
func WithKeepalive(d time.Duration) Option {
	return func(c *Config) {
		c.KeepaliveInterval = d
	}
}

// WithRetainOnReset keeps stale mirror entries across a baseline reset.
func WithRetainOnReset(retain bool) Option {
	return func(c *Config) {
		c.RetainOnReset = retain
	}
}

// WithSeed pre-populates the mirror from a stored snapshot.
func WithSeed(snap *mirror.Snapshot) Option {
	return func(c *Config) {
		c.Seed = snap
	}
}

// WithEventBuffer sets the per-subscriber change event buffer.
func WithEventBuffer(n int) Option {
	return func(c *Config) {
		c.EventBuffer = n
	}
}
