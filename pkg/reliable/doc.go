// Package reliable turns the switcher's unreliable datagram exchange into an
// ordered, acknowledged stream.
//
// It holds three pieces of state, all driven by a single owner (the session
// event loop) with explicit timestamps instead of timers:
//
//   - Outbound numbers packets, keeps them until a cumulative ack releases
//     them, and reports which ones to resend or give up on.
//   - Inbound buffers packets that arrive ahead of a gap and releases them in
//     sender order once the gap fills.
//   - AckTracker decides when an acknowledgement piggybacks on outbound
//     traffic and when it must go out alone.
package reliable
