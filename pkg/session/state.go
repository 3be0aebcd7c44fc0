package session

import "time"

// State is the connection lifecycle state.
type State uint8

const (
	Disconnected State = iota
	Handshaking
	Connected
	Reconnecting
	Closing
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Handshaking:
		return "handshaking"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	case Closing:
		return "closing"
	default:
		return "unknown"
	}
}

// Transition is one lifecycle change. Err is set on the transition that
// ends the session with a failure, and on the move to Reconnecting (the
// reset cause).
type Transition struct {
	From State
	To   State
	Err  error
	At   time.Time
}

// Terminal reports whether the session ended with this transition.
func (t Transition) Terminal() bool {
	return t.To == Disconnected
}
