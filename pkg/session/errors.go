package session

import (
	"errors"
	"fmt"
)

// Sentinel errors for session lifecycle conditions.
var (
	// ErrClosed is returned when an operation is attempted on a session that
	// has ended.
	ErrClosed = errors.New("session: closed")

	// ErrNotConnected is returned by SendCommand before the handshake
	// completes.
	ErrNotConnected = errors.New("session: not connected")

	// ErrAlreadyStarted is returned when Connect is called twice.
	ErrAlreadyStarted = errors.New("session: already started")

	// ErrRejected is returned when the switcher answers Connect with
	// ConnectNack, usually because all client slots are taken.
	ErrRejected = errors.New("session: connection rejected by switcher")

	// ErrRemoteDisconnect ends a session the switcher closed.
	ErrRemoteDisconnect = errors.New("session: switcher disconnected")

	// ErrReconnecting fails commands in flight when the session resyncs.
	ErrReconnecting = errors.New("session: reconnecting")

	// ErrResyncFailed ends a session whose re-handshake after a baseline
	// reset failed.
	ErrResyncFailed = errors.New("session: resync failed")

	// ErrBaselineReset is the cause recorded when the switcher restarts its
	// sequence numbering, typically after a reboot.
	ErrBaselineReset = errors.New("session: switcher reset its sequence baseline")

	// ErrNoAnswer is the cause of a handshake attempt that timed out.
	ErrNoAnswer = errors.New("session: no answer to Connect")

	// ErrAckTimeout is wrapped by a TransportError when a packet exhausts
	// its retransmissions.
	ErrAckTimeout = errors.New("session: packet not acknowledged")
)

// TransportError reports a send or receive failure that could not be
// recovered by retrying.
type TransportError struct {
	Op  string // "send", "receive" or "retransmit"
	Err error
}

// Error returns the error message.
func (e *TransportError) Error() string {
	return fmt.Sprintf("session: transport %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// HandshakeTimeoutError reports that every handshake attempt failed.
type HandshakeTimeoutError struct {
	Attempts int
	Last     error // Cause of the last failed attempt, if any
}

// Error returns the error message.
func (e *HandshakeTimeoutError) Error() string {
	if e.Last != nil {
		return fmt.Sprintf("session: handshake failed after %d attempts: %v", e.Attempts, e.Last)
	}
	return fmt.Sprintf("session: handshake timed out after %d attempts", e.Attempts)
}

// Unwrap returns the cause of the last attempt.
func (e *HandshakeTimeoutError) Unwrap() error {
	return e.Last
}

// ProtocolViolationError reports sequencing the switcher could not have
// produced in a healthy session, such as an acknowledgement for a packet
// never sent. It forces a resync.
type ProtocolViolationError struct {
	Reason string
	ID     uint16
	Err    error
}

// Error returns the error message.
func (e *ProtocolViolationError) Error() string {
	return fmt.Sprintf("session: protocol violation: %s (id %#04x)", e.Reason, e.ID)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *ProtocolViolationError) Unwrap() error {
	return e.Err
}

// SessionError is the terminal error of a session, as reported by Err and
// the final Lifecycle transition. Op is the state the session was in when
// it failed.
type SessionError struct {
	SessionID string
	Op        string
	Err       error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("session %s: %s: %v", e.SessionID, e.Op, e.Err)
}

func (e *SessionError) Unwrap() error {
	return e.Err
}
