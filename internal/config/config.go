package config

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vango-dev/burp"
	"github.com/vango-dev/burp/internal/errors"
	"github.com/vango-dev/burp/pkg/session"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "burp.yaml"

	// AddrEnv overrides the switcher address from the file.
	AddrEnv = "BURP_ADDR"
)

// Config represents the complete burp.yaml configuration.
type Config struct {
	// Addr is the switcher address, host or host:port.
	Addr string `yaml:"addr"`

	// Transport is "udp" (direct) or "websocket" (through a relay, with
	// Addr as the ws:// URL).
	Transport string `yaml:"transport"`

	// Session tunes the protocol timings.
	Session SessionConfig `yaml:"session"`

	// Store configures snapshot persistence.
	Store StoreConfig `yaml:"store"`

	// HTTP configures the watch endpoint.
	HTTP HTTPConfig `yaml:"http"`

	// Log configures logging.
	Log LogConfig `yaml:"log"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// SessionConfig mirrors the tunable parts of session.Config.
type SessionConfig struct {
	HandshakeTimeout   time.Duration `yaml:"handshake_timeout"`
	HandshakeRetries   int           `yaml:"handshake_retries"`
	RetransmitInterval time.Duration `yaml:"retransmit_interval"`
	MaxRetransmits     int           `yaml:"max_retransmits"`
	AckDelay           time.Duration `yaml:"ack_delay"`
	ReorderWindow      int           `yaml:"reorder_window"`
	Keepalive          time.Duration `yaml:"keepalive"`
	EventBuffer        int           `yaml:"event_buffer"`
	RetainOnReset      bool          `yaml:"retain_on_reset"`
}

// StoreConfig selects where mirror snapshots are kept.
type StoreConfig struct {
	// Kind is "none", "memory", "sqlite" or "s3".
	Kind string `yaml:"kind"`

	// Path is the SQLite database file.
	Path string `yaml:"path,omitempty"`

	// Bucket and Prefix locate S3 objects.
	Bucket string `yaml:"bucket,omitempty"`
	Prefix string `yaml:"prefix,omitempty"`

	// Region defaults to AWS_REGION. Endpoint points at an S3-compatible
	// service such as MinIO and switches to path-style addressing.
	Region   string `yaml:"region,omitempty"`
	Endpoint string `yaml:"endpoint,omitempty"`

	// Interval is how often a live mirror is saved.
	Interval time.Duration `yaml:"interval"`

	// TTL is how long a snapshot stays usable.
	TTL time.Duration `yaml:"ttl"`
}

// HTTPConfig configures the watch HTTP endpoint.
type HTTPConfig struct {
	// Addr is the listen address; empty disables the endpoint.
	Addr string `yaml:"addr,omitempty"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	// Level is "debug", "info", "warn" or "error".
	Level string `yaml:"level"`

	// Format is "text" or "json".
	Format string `yaml:"format"`
}

// New creates a new Config with default values.
func New() *Config {
	d := session.DefaultConfig()
	return &Config{
		Transport: "udp",
		Session: SessionConfig{
			HandshakeTimeout:   d.HandshakeTimeout,
			HandshakeRetries:   d.HandshakeRetries,
			RetransmitInterval: d.RetransmitInterval,
			MaxRetransmits:     d.MaxRetransmits,
			AckDelay:           d.AckDelay,
			ReorderWindow:      d.ReorderWindow,
			Keepalive:          d.KeepaliveInterval,
			EventBuffer:        d.EventBuffer,
		},
		Store: StoreConfig{
			Kind:     "none",
			Prefix:   "burp/",
			Interval: 30 * time.Second,
			TTL:      24 * time.Hour,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration from path. An empty path looks for burp.yaml
// in the working directory and falls back to defaults when there is none.
// BURP_ADDR overrides the address in either case.
func Load(path string) (*Config, error) {
	var cfg *Config
	if path == "" {
		c, err := LoadFile(ConfigFileName)
		var be *errors.BurpError
		switch {
		case err == nil:
			cfg = c
		case stderrors.As(err, &be) && be.Code == "B100":
			cfg = New()
		default:
			return nil, err
		}
	} else {
		c, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		cfg = c
	}

	if addr := os.Getenv(AddrEnv); addr != "" {
		cfg.Addr = addr
	}
	return cfg, nil
}

// LoadFile reads configuration from the specified file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("B100").
				WithDetail("No " + filepath.Base(path) + " found in " + filepath.Dir(path)).
				Wrap(err)
		}
		return nil, errors.New("B101").Wrap(err).WithDetail(err.Error())
	}

	cfg, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	cfg.configPath = path
	return cfg, nil
}

// Parse decodes YAML over the defaults. Unknown keys are rejected.
func Parse(r io.Reader) (*Config, error) {
	cfg := New()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return nil, errors.New("B101").Wrap(err).WithDetail("Failed to parse configuration: " + err.Error())
	}
	return cfg, nil
}

// SaveTo writes the configuration to the specified path.
func (c *Config) SaveTo(path string) error {
	data, err := c.Marshal()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("B900").Wrap(err).WithDetail(err.Error())
	}
	c.configPath = path
	return nil
}

// Marshal encodes the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, errors.New("B900").Wrap(err)
	}
	if err := enc.Close(); err != nil {
		return nil, errors.New("B900").Wrap(err)
	}
	return buf.Bytes(), nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

func invalid(key, format string, args ...any) error {
	return errors.New("B102").WithDetail(key + ": " + fmt.Sprintf(format, args...))
}

// Validate checks the configuration. The returned error names the
// offending key.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return invalid("addr", "must not be empty (set it in %s or %s)", ConfigFileName, AddrEnv)
	}
	switch c.Transport {
	case "udp":
		if _, _, err := net.SplitHostPort(c.SwitcherAddr()); err != nil {
			return invalid("addr", "%v", err)
		}
	case "websocket":
		if !strings.HasPrefix(c.Addr, "ws://") && !strings.HasPrefix(c.Addr, "wss://") {
			return invalid("addr", "websocket transport needs a ws:// or wss:// URL")
		}
	default:
		return invalid("transport", "must be udp or websocket, got %q", c.Transport)
	}

	s := c.Session
	switch {
	case s.HandshakeTimeout <= 0:
		return invalid("session.handshake_timeout", "must be positive")
	case s.HandshakeRetries < 1:
		return invalid("session.handshake_retries", "must be at least 1")
	case s.RetransmitInterval <= 0:
		return invalid("session.retransmit_interval", "must be positive")
	case s.MaxRetransmits < 0:
		return invalid("session.max_retransmits", "must not be negative")
	case s.AckDelay < 0:
		return invalid("session.ack_delay", "must not be negative")
	case s.ReorderWindow < 1 || s.ReorderWindow > 0x4000:
		return invalid("session.reorder_window", "must be in 1..16384")
	case s.Keepalive < 0:
		return invalid("session.keepalive", "must not be negative")
	case s.EventBuffer < 1:
		return invalid("session.event_buffer", "must be positive")
	}

	switch c.Store.Kind {
	case "", "none", "memory":
	case "sqlite":
		if c.Store.Path == "" {
			return invalid("store.path", "required for the sqlite store")
		}
	case "s3":
		if c.Store.Bucket == "" {
			return invalid("store.bucket", "required for the s3 store")
		}
	default:
		return invalid("store.kind", "must be none, memory, sqlite or s3, got %q", c.Store.Kind)
	}
	if c.Store.Interval <= 0 {
		return invalid("store.interval", "must be positive")
	}
	if c.Store.TTL <= 0 {
		return invalid("store.ttl", "must be positive")
	}

	if _, err := parseLevel(c.Log.Level); err != nil {
		return invalid("log.level", "%v", err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return invalid("log.format", "must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// SwitcherAddr returns Addr with the default port added when it has none.
func (c *Config) SwitcherAddr() string {
	if c.Transport != "udp" {
		return c.Addr
	}
	return burp.WithDefaultPort(c.Addr)
}

// SessionOptions converts the session section into session options.
func (c *Config) SessionOptions() []session.Option {
	s := c.Session
	return []session.Option{
		session.WithHandshakeTimeout(s.HandshakeTimeout),
		session.WithHandshakeRetries(s.HandshakeRetries),
		session.WithRetransmit(s.RetransmitInterval, s.MaxRetransmits),
		session.WithAckDelay(s.AckDelay),
		session.WithReorderWindow(s.ReorderWindow),
		session.WithKeepalive(s.Keepalive),
		session.WithEventBuffer(s.EventBuffer),
		session.WithRetainOnReset(s.RetainOnReset),
	}
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	err := l.UnmarshalText([]byte(s))
	return l, err
}

// Logger builds the configured slog logger writing to w.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.Log.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
