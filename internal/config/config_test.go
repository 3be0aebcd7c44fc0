package config

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/burp/internal/errors"
	"github.com/vango-dev/burp/pkg/session"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func codeOf(t *testing.T, err error) string {
	t.Helper()
	var be *errors.BurpError
	require.True(t, stderrors.As(err, &be), "error %v is not a BurpError", err)
	return be.Code
}

func TestNew(t *testing.T) {
	cfg := New()
	d := session.DefaultConfig()

	assert.Equal(t, "udp", cfg.Transport)
	assert.Equal(t, d.HandshakeTimeout, cfg.Session.HandshakeTimeout)
	assert.Equal(t, d.MaxRetransmits, cfg.Session.MaxRetransmits)
	assert.Equal(t, "none", cfg.Store.Kind)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
addr: 10.0.0.5
session:
  handshake_timeout: 250ms
  max_retransmits: 5
  retain_on_reset: true
store:
  kind: sqlite
  path: /var/lib/burp/snapshots.db
  ttl: 1h
log:
  level: debug
  format: json
`)
	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, path, cfg.Path())
	assert.Equal(t, "10.0.0.5", cfg.Addr)
	assert.Equal(t, "10.0.0.5:9910", cfg.SwitcherAddr())
	assert.Equal(t, 250*time.Millisecond, cfg.Session.HandshakeTimeout)
	assert.Equal(t, 5, cfg.Session.MaxRetransmits)
	assert.True(t, cfg.Session.RetainOnReset)
	assert.Equal(t, time.Hour, cfg.Store.TTL)

	// Untouched keys keep their defaults.
	assert.Equal(t, New().Session.RetransmitInterval, cfg.Session.RetransmitInterval)
	assert.Equal(t, 30*time.Second, cfg.Store.Interval)

	require.NoError(t, cfg.Validate())
}

func TestLoadFileErrors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), ConfigFileName))
	assert.Equal(t, "B100", codeOf(t, err))

	_, err = LoadFile(writeConfig(t, "addr: [unclosed"))
	assert.Equal(t, "B101", codeOf(t, err))

	_, err = LoadFile(writeConfig(t, "adress: 10.0.0.5\n"))
	assert.Equal(t, "B101", codeOf(t, err), "unknown keys are rejected")
}

func TestLoadEmptyFile(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, New().Session, cfg.Session)
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, "addr: 10.0.0.5\n")
	t.Setenv(AddrEnv, "192.168.1.240:9910")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.240:9910", cfg.Addr)
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { os.Chdir(wd) })
	t.Setenv(AddrEnv, "10.1.1.1")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "10.1.1.1", cfg.Addr)
	assert.Equal(t, "", cfg.Path())

	_, err = Load("missing.yaml")
	assert.Equal(t, "B100", codeOf(t, err), "an explicit path must exist")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		key    string
	}{
		{"no addr", func(c *Config) { c.Addr = "" }, "addr"},
		{"bad transport", func(c *Config) { c.Transport = "tcp" }, "transport"},
		{"websocket needs url", func(c *Config) { c.Transport = "websocket" }, "addr"},
		{"handshake timeout", func(c *Config) { c.Session.HandshakeTimeout = 0 }, "session.handshake_timeout"},
		{"retries", func(c *Config) { c.Session.HandshakeRetries = 0 }, "session.handshake_retries"},
		{"retransmit interval", func(c *Config) { c.Session.RetransmitInterval = -time.Second }, "session.retransmit_interval"},
		{"max retransmits", func(c *Config) { c.Session.MaxRetransmits = -1 }, "session.max_retransmits"},
		{"window", func(c *Config) { c.Session.ReorderWindow = 0x8000 }, "session.reorder_window"},
		{"event buffer", func(c *Config) { c.Session.EventBuffer = 0 }, "session.event_buffer"},
		{"store kind", func(c *Config) { c.Store.Kind = "redis" }, "store.kind"},
		{"sqlite path", func(c *Config) { c.Store.Kind = "sqlite" }, "store.path"},
		{"s3 bucket", func(c *Config) { c.Store.Kind = "s3" }, "store.bucket"},
		{"ttl", func(c *Config) { c.Store.TTL = 0 }, "store.ttl"},
		{"log level", func(c *Config) { c.Log.Level = "verbose" }, "log.level"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			cfg.Addr = "10.0.0.5"
			tt.modify(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Equal(t, "B102", codeOf(t, err))
			assert.True(t, strings.Contains(err.Error(), tt.key+":"), "error %q should name %s", err, tt.key)
		})
	}

	ws := New()
	ws.Transport = "websocket"
	ws.Addr = "ws://relay.local/burp"
	assert.NoError(t, ws.Validate())
	assert.Equal(t, "ws://relay.local/burp", ws.SwitcherAddr())
}

func TestSwitcherAddr(t *testing.T) {
	tests := []struct{ in, want string }{
		{"10.0.0.5", "10.0.0.5:9910"},
		{"10.0.0.5:9999", "10.0.0.5:9999"},
		{"atem.local", "atem.local:9910"},
		{"fe80::1", "[fe80::1]:9910"},
		{"[fe80::1]:9910", "[fe80::1]:9910"},
	}
	for _, tt := range tests {
		cfg := New()
		cfg.Addr = tt.in
		assert.Equal(t, tt.want, cfg.SwitcherAddr(), tt.in)
	}
}

func TestSessionOptions(t *testing.T) {
	cfg := New()
	cfg.Session.MaxRetransmits = 7
	cfg.Session.Keepalive = 0
	cfg.Session.RetainOnReset = true

	got := session.DefaultConfig()
	for _, opt := range cfg.SessionOptions() {
		opt(got)
	}
	assert.Equal(t, 7, got.MaxRetransmits)
	assert.Zero(t, got.KeepaliveInterval)
	assert.True(t, got.RetainOnReset)
}

func TestSaveRoundTrip(t *testing.T) {
	cfg := New()
	cfg.Addr = "10.0.0.5"
	cfg.Store.Kind = "s3"
	cfg.Store.Bucket = "studio"

	path := filepath.Join(t.TempDir(), ConfigFileName)
	require.NoError(t, cfg.SaveTo(path))
	assert.Equal(t, path, cfg.Path())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "handshake_timeout: 1s")

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	loaded.configPath = ""
	cfg.configPath = ""
	assert.Equal(t, cfg, loaded)
}

func TestLogger(t *testing.T) {
	cfg := New()
	cfg.Log.Level = "warn"
	logger := cfg.Logger(io.Discard)
	assert.False(t, logger.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, logger.Enabled(context.Background(), slog.LevelWarn))
}
