package session

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/vango-dev/burp/pkg/atom"
	"github.com/vango-dev/burp/pkg/mirror"
	"github.com/vango-dev/burp/pkg/reliable"
	"github.com/vango-dev/burp/pkg/schema"
	"github.com/vango-dev/burp/pkg/telemetry"
	"github.com/vango-dev/burp/pkg/transport"
)

// Session is one client connection to a switcher.
//
// A Session is single use: Connect starts it, and once it reaches
// Disconnected it stays there. All protocol state is owned by one event
// loop goroutine; a second goroutine only reads datagrams. The public
// methods are safe for concurrent use.
type Session struct {
	id      string
	tr      transport.Transport
	reg     *schema.Registry
	cfg     *Config
	logger  *slog.Logger
	metrics *telemetry.Metrics
	tracer  *telemetry.Tracer
	mirror  *mirror.Mirror
	feed    *feed

	rx        chan rxItem
	cmds      chan *command
	closeReq  chan closeRequest
	ready     chan error
	done      chan struct{}
	lifecycle chan Transition
	started   atomic.Bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	mu       sync.Mutex
	state    State
	err      error
	version  schema.ProtocolVersion
	synced   chan struct{}
	isSynced bool
	unknown  map[atom.Tag]int

	// Owned by the event loop.
	ctx          context.Context
	sessionID    uint16
	out          *reliable.Outbound
	in           *reliable.Inbound
	acks         *reliable.AckTracker
	view         *schema.View
	versionBound bool
	waiters      map[uint16]*command
	lastSend     time.Time
	recvErrors   int
}

type rxItem struct {
	data []byte
	err  error
	at   time.Time
}

type closeRequest struct {
	cause error
}

// closeError unwinds the loop when a close request arrives mid-handshake.
type closeError struct {
	cause error
}

func (e *closeError) Error() string {
	if e.cause == nil {
		return "session: closed locally"
	}
	return "session: closed locally: " + e.cause.Error()
}

// command is one SendCommand call in flight.
type command struct {
	atoms    []atom.Atom
	started  time.Time
	pending  int
	finished bool
	done     chan error
}

func (c *command) finish(err error) {
	if c.finished {
		return
	}
	c.finished = true
	c.done <- err
}

// New creates a session over tr that decodes atoms with reg. The session
// owns tr from Connect on and closes it when the session ends.
func New(tr transport.Transport, reg *schema.Registry, opts ...Option) (*Session, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if tr == nil || reg == nil {
		return nil, errors.New("session: transport and registry are required")
	}

	id := uuid.NewString()
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Session{
		id:        id,
		tr:        tr,
		reg:       reg,
		cfg:       cfg,
		logger:    logger.With("session_id", id),
		metrics:   cfg.Metrics,
		tracer:    cfg.Tracer,
		mirror:    mirror.New(),
		feed:      newFeed(cfg.EventBuffer),
		rx:        make(chan rxItem, 64),
		cmds:      make(chan *command),
		closeReq:  make(chan closeRequest),
		ready:     make(chan error, 1),
		done:      make(chan struct{}),
		lifecycle: make(chan Transition, 32),
		synced:    make(chan struct{}),
		unknown:   make(map[atom.Tag]int),
		out:       reliable.NewOutbound(cfg.reliable()),
		in:        reliable.NewInbound(cfg.reliable()),
		acks:      reliable.NewAckTracker(cfg.reliable()),
		view:      reg.View(schema.ProtocolVersion{}),
		waiters:   make(map[uint16]*command),
	}
	if cfg.Seed != nil {
		n := s.mirror.Seed(cfg.Seed)
		s.logger.Info("mirror seeded", "entities", n, "taken_at", cfg.Seed.TakenAt)
	}
	return s, nil
}

// ID returns the session's correlation id used in logs.
func (s *Session) ID() string {
	return s.id
}

// Connect performs the handshake and returns once the switcher has accepted
// the session. The state dump continues in the background; use WaitSynced
// to wait for it. Cancelling ctx aborts the attempt and ends the session.
func (s *Session) Connect(ctx context.Context) (err error) {
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	ctx, finish := s.tracer.Start(ctx, "burp.connect", attribute.String("burp.session_id", s.id))
	defer func() { finish(err) }()

	loopCtx, cancel := context.WithCancel(context.Background())
	s.ctx = loopCtx
	s.cancel = cancel
	s.wg.Add(2)
	go s.readLoop(loopCtx)
	go s.run()
	go func() {
		s.wg.Wait()
		close(s.done)
	}()

	select {
	case err := <-s.ready:
		return err
	case <-ctx.Done():
		s.requestClose(ctx.Err())
		<-s.done
		return ctx.Err()
	}
}

// Disconnect closes the session, telling the switcher first when connected.
// It returns once the session has reached Disconnected.
func (s *Session) Disconnect(ctx context.Context) error {
	if !s.started.Load() {
		return nil
	}
	if err := s.requestCloseCtx(ctx, nil); err != nil {
		return err
	}
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) requestClose(cause error) {
	select {
	case s.closeReq <- closeRequest{cause: cause}:
	case <-s.done:
	}
}

func (s *Session) requestCloseCtx(ctx context.Context, cause error) error {
	select {
	case s.closeReq <- closeRequest{cause: cause}:
		return nil
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SendCommand sends atoms to the switcher and waits until every packet
// carrying them is acknowledged. Atoms that do not fit one packet are split
// across several, in order.
func (s *Session) SendCommand(ctx context.Context, atoms ...atom.Atom) (err error) {
	if len(atoms) == 0 {
		return nil
	}
	switch s.State() {
	case Connected:
	case Reconnecting:
		return ErrReconnecting
	case Disconnected:
		if s.started.Load() {
			return s.closedErr()
		}
		return ErrNotConnected
	default:
		return ErrNotConnected
	}

	ctx, finish := s.tracer.Start(ctx, "burp.command",
		attribute.String("burp.session_id", s.id),
		attribute.String("burp.tag", atoms[0].Tag.String()),
		attribute.Int("burp.atoms", len(atoms)),
	)
	defer func() { finish(err) }()

	cmd := &command{atoms: atoms, started: time.Now(), done: make(chan error, 1)}
	select {
	case s.cmds <- cmd:
	case <-s.done:
		return s.closedErr()
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-cmd.done:
		if err != nil {
			s.metrics.ObserveCommand("error", time.Since(cmd.started))
		}
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Events returns the change events of the current mirror generation. The
// subscription starts when iteration starts. The sequence ends when ctx is
// done, when the session resynchronises (call Events again and re-read the
// mirror), when the consumer falls more than EventBuffer events behind, or
// when the session ends.
func (s *Session) Events(ctx context.Context) iter.Seq[mirror.ChangeEvent] {
	return func(yield func(mirror.ChangeEvent) bool) {
		sub := s.feed.subscribe()
		if sub == nil {
			return
		}
		defer s.feed.unsubscribe(sub)
		for {
			select {
			case ev, ok := <-sub.ch:
				if !ok || !yield(ev) {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}
}

// Snapshot returns a copy of the fields known for key.
func (s *Session) Snapshot(key mirror.Key) (map[string]schema.Value, bool) {
	return s.mirror.Snapshot(key)
}

// Keys returns every entity key in the mirror.
func (s *Session) Keys() []mirror.Key {
	return s.mirror.Keys()
}

// Stale reports whether key holds a seeded or retained value the switcher
// has not confirmed yet.
func (s *Session) Stale(key mirror.Key) bool {
	return s.mirror.Stale(key)
}

// Export copies the mirror for persistence.
func (s *Session) Export() *mirror.Snapshot {
	snap := s.mirror.Export()
	if v := s.Version(); !v.IsZero() {
		snap.Version = v.String()
	}
	return snap
}

// WaitSynced blocks until the switcher has finished sending its state dump
// for the current connection.
func (s *Session) WaitSynced(ctx context.Context) error {
	s.mu.Lock()
	ch := s.synced
	s.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-s.done:
		return s.closedErr()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Synced reports whether the current state dump has completed.
func (s *Session) Synced() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isSynced
}

// State returns the lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the error that ended the session, or nil.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Lifecycle returns the transitions of this session. The channel is closed
// after the transition to Disconnected. When the consumer falls behind, the
// oldest transitions are dropped; the final one is always delivered.
func (s *Session) Lifecycle() <-chan Transition {
	return s.lifecycle
}

// Done is closed when the session has fully stopped.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Version returns the protocol version the switcher reported, or the zero
// version before it has.
func (s *Session) Version() schema.ProtocolVersion {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// UnknownTags returns how often each unregistered tag was received.
func (s *Session) UnknownTags() map[atom.Tag]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[atom.Tag]int, len(s.unknown))
	for k, v := range s.unknown {
		out[k] = v
	}
	return out
}

func (s *Session) closedErr() error {
	if err := s.Err(); err != nil {
		return err
	}
	return ErrClosed
}

// setState records a transition and publishes it. Only the event loop calls
// it.
func (s *Session) setState(to State, err error) {
	s.mu.Lock()
	from := s.state
	if from == to {
		s.mu.Unlock()
		return
	}
	s.state = to
	if to == Disconnected {
		s.err = err
	}
	s.mu.Unlock()

	s.metrics.Transition(from.String(), to.String())
	switch {
	case to == Disconnected && err != nil:
		s.logger.Error("session ended", "from", from, "error", err)
	case err != nil:
		s.logger.Warn("session state changed", "from", from, "to", to, "cause", err)
	default:
		s.logger.Info("session state changed", "from", from, "to", to)
	}

	t := Transition{From: from, To: to, Err: err, At: time.Now()}
	select {
	case s.lifecycle <- t:
		return
	default:
	}
	// Full: make room by dropping the oldest.
	select {
	case <-s.lifecycle:
	default:
	}
	s.lifecycle <- t
}
