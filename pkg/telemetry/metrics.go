package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsConfig configures the Prometheus collectors.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "burp").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for handshake and command latency.
	// Default: 1ms to ~4s.
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus collectors.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "burp",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 13),
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics holds the protocol collectors. One Metrics is shared by every
// session of a process; a nil *Metrics records nothing.
type Metrics struct {
	packets           *prometheus.CounterVec
	retransmits       prometheus.Counter
	acks              *prometheus.CounterVec
	decodeErrors      *prometheus.CounterVec
	reorder           *prometheus.CounterVec
	transitions       *prometheus.CounterVec
	changeEvents      prometheus.Counter
	reconnects        prometheus.Counter
	handshakeDuration prometheus.Histogram
	commandDuration   *prometheus.HistogramVec
	unacked           prometheus.Gauge
	entities          prometheus.Gauge
}

// NewMetrics registers the collectors and returns them.
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Metrics{
		packets: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "packets_total",
			Help:        "Packets exchanged with the switcher by direction and kind",
			ConstLabels: config.ConstLabels,
		}, []string{"direction", "kind"}),

		retransmits: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "retransmits_total",
			Help:        "Outbound packets resent after the retransmit interval",
			ConstLabels: config.ConstLabels,
		}),

		acks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "acks_sent_total",
			Help:        "Acknowledgements sent, piggybacked or standalone",
			ConstLabels: config.ConstLabels,
		}, []string{"mode"}),

		decodeErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "decode_errors_total",
			Help:        "Atoms that failed schema-aware decoding, by error kind",
			ConstLabels: config.ConstLabels,
		}, []string{"kind"}),

		reorder: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "inbound_verdicts_total",
			Help:        "Reorder buffer verdicts for inbound packets",
			ConstLabels: config.ConstLabels,
		}, []string{"verdict"}),

		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "session_transitions_total",
			Help:        "Session state transitions",
			ConstLabels: config.ConstLabels,
		}, []string{"from", "to"}),

		changeEvents: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "change_events_total",
			Help:        "Mirror change events produced",
			ConstLabels: config.ConstLabels,
		}),

		reconnects: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "reconnects_total",
			Help:        "Resynchronisations after a switcher baseline reset",
			ConstLabels: config.ConstLabels,
		}),

		handshakeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "handshake_duration_seconds",
			Help:        "Time from Connect to ConnectAck",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),

		commandDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "command_duration_seconds",
			Help:        "Time from sending a command to its acknowledgement",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"status"}),

		unacked: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "unacked_packets",
			Help:        "Outbound packets awaiting acknowledgement",
			ConstLabels: config.ConstLabels,
		}),

		entities: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "mirror_entities",
			Help:        "Entities held in the state mirror",
			ConstLabels: config.ConstLabels,
		}),
	}
}

// PacketIn counts an inbound packet.
func (m *Metrics) PacketIn(kind string) {
	if m == nil {
		return
	}
	m.packets.WithLabelValues("in", kind).Inc()
}

// PacketOut counts an outbound packet.
func (m *Metrics) PacketOut(kind string) {
	if m == nil {
		return
	}
	m.packets.WithLabelValues("out", kind).Inc()
}

// Retransmits counts resent packets.
func (m *Metrics) Retransmits(n int) {
	if m == nil || n == 0 {
		return
	}
	m.retransmits.Add(float64(n))
}

// AckSent counts an acknowledgement by mode ("piggyback" or "standalone").
func (m *Metrics) AckSent(mode string) {
	if m == nil {
		return
	}
	m.acks.WithLabelValues(mode).Inc()
}

// DecodeError counts a decode failure.
func (m *Metrics) DecodeError(kind string) {
	if m == nil {
		return
	}
	m.decodeErrors.WithLabelValues(kind).Inc()
}

// Verdict counts a reorder buffer verdict.
func (m *Metrics) Verdict(verdict string) {
	if m == nil {
		return
	}
	m.reorder.WithLabelValues(verdict).Inc()
}

// Transition counts a state change.
func (m *Metrics) Transition(from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to).Inc()
}

// ChangeEvents counts mirror events.
func (m *Metrics) ChangeEvents(n int) {
	if m == nil || n == 0 {
		return
	}
	m.changeEvents.Add(float64(n))
}

// Reconnect counts a resynchronisation.
func (m *Metrics) Reconnect() {
	if m == nil {
		return
	}
	m.reconnects.Inc()
}

// ObserveHandshake records handshake latency.
func (m *Metrics) ObserveHandshake(d time.Duration) {
	if m == nil {
		return
	}
	m.handshakeDuration.Observe(d.Seconds())
}

// ObserveCommand records command latency with its outcome ("ok" or "error").
func (m *Metrics) ObserveCommand(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.commandDuration.WithLabelValues(status).Observe(d.Seconds())
}

// SetUnacked sets the unacknowledged packet gauge.
func (m *Metrics) SetUnacked(n int) {
	if m == nil {
		return
	}
	m.unacked.Set(float64(n))
}

// SetEntities sets the mirror size gauge.
func (m *Metrics) SetEntities(n int) {
	if m == nil {
		return
	}
	m.entities.Set(float64(n))
}
