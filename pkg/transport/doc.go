// Package transport provides the datagram channels a session runs over.
//
// The session layer only needs Send, Receive and Close; this package is the
// one place that creates sockets. UDP talks to a switcher directly,
// WebSocket reaches one through a Relay, and Pipe is an in-memory link with
// fault injection for tests and simulators.
package transport
