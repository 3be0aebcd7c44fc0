package transport

import (
	"context"
	"errors"
)

// DefaultPort is the switcher's control port.
const DefaultPort = 9910

// MaxDatagram bounds the size of one datagram. Switcher packets never exceed
// 0x7ff bytes; the slack absorbs relay framing.
const MaxDatagram = 2048

// Transport errors.
var (
	ErrClosed = errors.New("transport: closed")
	ErrTooBig = errors.New("transport: datagram too large")
)

// Transport is an unreliable datagram channel to one switcher. Datagrams may
// be lost, duplicated or reordered; every call to Receive returns exactly one
// datagram.
//
// Send and Receive may be called concurrently with each other, but each from
// a single goroutine. Close unblocks both.
type Transport interface {
	// Send writes one datagram.
	Send(ctx context.Context, datagram []byte) error

	// Receive blocks for the next datagram. The returned slice is owned by
	// the caller.
	Receive(ctx context.Context) ([]byte, error)

	// Close releases the underlying socket.
	Close() error
}
