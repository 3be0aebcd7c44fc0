package transport

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocket carries datagrams as binary WebSocket messages, one datagram per
// message. It lets a client reach a switcher through a Relay when UDP cannot
// cross the network in between.
type WebSocket struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	closed  atomic.Bool
}

// DialWebSocket connects to a relay endpoint such as ws://host:8080/relay.
func DialWebSocket(ctx context.Context, url string, header http.Header) (*WebSocket, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(MaxDatagram)
	return &WebSocket{conn: conn}, nil
}

// NewWebSocket wraps an established connection.
func NewWebSocket(conn *websocket.Conn) *WebSocket {
	conn.SetReadLimit(MaxDatagram)
	return &WebSocket{conn: conn}
}

// Send implements Transport.
func (w *WebSocket) Send(ctx context.Context, datagram []byte) error {
	if w.closed.Load() {
		return ErrClosed
	}
	if len(datagram) > MaxDatagram {
		return ErrTooBig
	}
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	if dl, ok := ctx.Deadline(); ok {
		w.conn.SetWriteDeadline(dl)
	} else {
		w.conn.SetWriteDeadline(time.Time{})
	}
	return w.mapErr(ctx, w.conn.WriteMessage(websocket.BinaryMessage, datagram))
}

// Receive implements Transport. Text messages are skipped.
func (w *WebSocket) Receive(ctx context.Context) ([]byte, error) {
	stop := context.AfterFunc(ctx, func() {
		w.conn.SetReadDeadline(time.Unix(1, 0))
	})
	defer stop()

	for {
		if w.closed.Load() {
			return nil, ErrClosed
		}
		mt, msg, err := w.conn.ReadMessage()
		if err != nil {
			return nil, w.mapErr(ctx, err)
		}
		if mt == websocket.BinaryMessage {
			return msg, nil
		}
	}
}

// Close implements Transport. It sends a close frame before closing the
// connection.
func (w *WebSocket) Close() error {
	if w.closed.Swap(true) {
		return nil
	}
	w.writeMu.Lock()
	w.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	w.writeMu.Unlock()
	return w.conn.Close()
}

func (w *WebSocket) mapErr(ctx context.Context, err error) error {
	switch {
	case err == nil:
		return nil
	case w.closed.Load():
		return ErrClosed
	case ctx.Err() != nil:
		return ctx.Err()
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
		return ErrClosed
	default:
		return err
	}
}

// Relay is an http.Handler that bridges each WebSocket client to its own
// switcher transport, typically a UDP socket.
type Relay struct {
	// Dial opens the switcher side for one client.
	Dial func(ctx context.Context) (Transport, error)

	// Upgrader upgrades incoming requests. The zero value accepts
	// same-origin requests only.
	Upgrader websocket.Upgrader

	Logger *slog.Logger
}

// ServeHTTP implements http.Handler.
func (rl *Relay) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := rl.Logger
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := rl.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("relay upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}
	client := NewWebSocket(conn)
	defer client.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	upstream, err := rl.Dial(ctx)
	if err != nil {
		logger.Error("relay dial failed", "error", err)
		return
	}
	defer upstream.Close()

	logger.Info("relay open", "remote", r.RemoteAddr)
	errc := make(chan error, 2)
	go func() { errc <- pump(ctx, client, upstream) }()
	go func() { errc <- pump(ctx, upstream, client) }()

	err = <-errc
	cancel()
	if err != nil && !errors.Is(err, ErrClosed) && !errors.Is(err, context.Canceled) {
		logger.Warn("relay closed", "error", err, "remote", r.RemoteAddr)
		return
	}
	logger.Info("relay closed", "remote", r.RemoteAddr)
}

// pump copies datagrams from src to dst until either side fails.
func pump(ctx context.Context, src, dst Transport) error {
	for {
		msg, err := src.Receive(ctx)
		if err != nil {
			return err
		}
		if err := dst.Send(ctx, msg); err != nil {
			return err
		}
	}
}
