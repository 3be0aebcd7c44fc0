// Package burp connects to broadcast video switchers that speak the BURP
// control protocol.
//
// Dial opens a session that mirrors the switcher's state and sends
// commands:
//
//	sess, err := burp.Dial(ctx, "10.0.0.5:9910")
//	if err != nil {
//	    return err
//	}
//	defer sess.Disconnect(context.Background())
//
//	if err := sess.WaitSynced(ctx); err != nil {
//	    return err
//	}
//	fields, _ := sess.Snapshot(mirror.Key{Kind: atoms.EntityMixEffect, ID: "0"})
//	fmt.Println("program:", fields["program"])
//
//	err = sess.SendCommand(ctx, atoms.Cut(0))
//
// The session, mirror and codec packages live under pkg/ and can be used
// directly with any transport.
package burp

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"github.com/vango-dev/burp/pkg/atoms"
	"github.com/vango-dev/burp/pkg/mirrorstore"
	"github.com/vango-dev/burp/pkg/schema"
	"github.com/vango-dev/burp/pkg/session"
	"github.com/vango-dev/burp/pkg/transport"
)

// DefaultPort is the switcher's UDP control port.
const DefaultPort = 9910

// Option configures Dial.
type Option func(*dialOptions)

type dialOptions struct {
	registry *schema.Registry
	relay    bool
	header   http.Header
	store    mirrorstore.Store
	seedName string
	logger   *slog.Logger
	session  []session.Option
}

// WithRegistry replaces the built-in atom registry.
func WithRegistry(reg *schema.Registry) Option {
	return func(o *dialOptions) {
		o.registry = reg
	}
}

// WithSession passes options through to the session.
func WithSession(opts ...session.Option) Option {
	return func(o *dialOptions) {
		o.session = append(o.session, opts...)
	}
}

// WithLogger sets the logger for Dial and the session.
func WithLogger(l *slog.Logger) Option {
	return func(o *dialOptions) {
		o.logger = l
	}
}

// ViaRelay treats addr as a ws:// or wss:// URL of a datagram relay
// instead of a switcher address.
func ViaRelay(header http.Header) Option {
	return func(o *dialOptions) {
		o.relay = true
		o.header = header
	}
}

// WithSeedFrom seeds the mirror from the snapshot stored under name. A
// missing snapshot is not an error; a failing store is logged and ignored.
func WithSeedFrom(store mirrorstore.Store, name string) Option {
	return func(o *dialOptions) {
		o.store = store
		o.seedName = name
	}
}

// Dial connects to the switcher at addr and performs the handshake. The
// port defaults to 9910. On success the session is Connected and the
// state dump is in flight; use WaitSynced to wait for it.
func Dial(ctx context.Context, addr string, opts ...Option) (*session.Session, error) {
	o := &dialOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}
	if o.registry == nil {
		o.registry = atoms.Registry()
	}

	sessOpts := append([]session.Option{session.WithLogger(o.logger)}, o.session...)
	if o.store != nil {
		snap, err := mirrorstore.LoadSnapshot(ctx, o.store, o.seedName)
		switch {
		case err != nil:
			o.logger.Warn("ignoring stored snapshot", "name", o.seedName, "error", err)
		case snap != nil:
			o.logger.Debug("seeding mirror", "name", o.seedName, "entries", snap.Len())
			sessOpts = append(sessOpts, session.WithSeed(snap))
		}
	}

	tr, err := dialTransport(ctx, addr, o)
	if err != nil {
		return nil, err
	}

	sess, err := session.New(tr, o.registry, sessOpts...)
	if err != nil {
		tr.Close()
		return nil, err
	}
	if err := sess.Connect(ctx); err != nil {
		return nil, err
	}
	return sess, nil
}

func dialTransport(ctx context.Context, addr string, o *dialOptions) (transport.Transport, error) {
	if o.relay {
		ws, err := transport.DialWebSocket(ctx, addr, o.header)
		if err != nil {
			return nil, &session.TransportError{Op: "dial", Err: err}
		}
		return ws, nil
	}
	udp, err := transport.DialUDP(ctx, WithDefaultPort(addr))
	if err != nil {
		return nil, &session.TransportError{Op: "dial", Err: err}
	}
	return udp, nil
}

// WithDefaultPort adds DefaultPort to addr when it has no port.
func WithDefaultPort(addr string) string {
	if _, _, err := net.SplitHostPort(addr); err == nil {
		return addr
	}
	host := addr
	if len(host) > 1 && host[0] == '[' && host[len(host)-1] == ']' {
		host = host[1 : len(host)-1]
	}
	return net.JoinHostPort(host, strconv.Itoa(DefaultPort))
}

// Version reports the library version.
func Version() string {
	return fmt.Sprintf("burp %s", version)
}

const version = "0.3.0"
