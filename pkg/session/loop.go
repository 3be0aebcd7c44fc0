package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/vango-dev/burp/pkg/atom"
	"github.com/vango-dev/burp/pkg/packet"
	"github.com/vango-dev/burp/pkg/reliable"
	"github.com/vango-dev/burp/pkg/schema"
	"github.com/vango-dev/burp/pkg/transport"
)

// readLoop feeds datagrams to the event loop until the transport closes.
func (s *Session) readLoop(ctx context.Context) {
	defer s.wg.Done()
	for {
		data, err := s.tr.Receive(ctx)
		if ctx.Err() != nil {
			return
		}
		select {
		case s.rx <- rxItem{data: data, err: err, at: time.Now()}:
		case <-ctx.Done():
			return
		}
		if err == nil {
			continue
		}
		if errors.Is(err, transport.ErrClosed) {
			return
		}
		select {
		case <-time.After(10 * time.Millisecond):
		case <-ctx.Done():
			return
		}
	}
}

// run is the event loop. It owns every protocol field of the session.
func (s *Session) run() {
	defer s.wg.Done()

	s.setState(Handshaking, nil)
	start := time.Now()
	err := s.handshake()
	if err == nil {
		s.metrics.ObserveHandshake(time.Since(start))
		s.setState(Connected, nil)
		s.ready <- nil
		err = s.steady()
	} else {
		s.ready <- s.unwrapClose(err)
	}

	op := s.State().String()
	var ce *closeError
	if errors.As(err, &ce) {
		s.setState(Closing, nil)
		err = ce.cause
	}
	if err != nil {
		err = &SessionError{SessionID: s.id, Op: op, Err: err}
	}
	s.terminate(err)
}

func (s *Session) unwrapClose(err error) error {
	var ce *closeError
	if errors.As(err, &ce) {
		if ce.cause != nil {
			return ce.cause
		}
		return ErrClosed
	}
	return err
}

// terminate releases everything. Nothing is sent after the transport is
// closed here.
func (s *Session) terminate(err error) {
	cause := err
	if cause == nil {
		cause = ErrClosed
	}
	s.failPending(cause)
	s.feed.close()
	s.cancel()
	if cerr := s.tr.Close(); cerr != nil {
		s.logger.Debug("transport close", "error", cerr)
	}
	s.setState(Disconnected, err)
	close(s.lifecycle)
}

// steady runs the connected session until it ends. A nil return is a clean
// local close.
func (s *Session) steady() error {
	timer := time.NewTimer(s.nextWake(time.Now()))
	defer timer.Stop()

	for {
		var err error
		select {
		case item := <-s.rx:
			err = s.handleRx(item)
		case cmd := <-s.cmds:
			s.sendCommand(cmd)
		case req := <-s.closeReq:
			return s.closeGracefully(req)
		case now := <-timer.C:
			err = s.tick(now)
		}
		if err != nil {
			return err
		}
		timer.Reset(s.nextWake(time.Now()))
	}
}

// nextWake returns the time until the earliest timer-driven duty.
func (s *Session) nextWake(now time.Time) time.Duration {
	wake := now.Add(time.Second)
	if t, ok := s.out.NextDeadline(); ok && t.Before(wake) {
		wake = t
	}
	if t, ok := s.acks.Deadline(); ok && t.Before(wake) {
		wake = t
	}
	if s.cfg.KeepaliveInterval > 0 {
		if t := s.lastSend.Add(s.cfg.KeepaliveInterval); t.Before(wake) {
			wake = t
		}
	}
	if s.in.Buffered() > 0 {
		if t := now.Add(s.cfg.MaxRxQueueTime / 4); t.Before(wake) {
			wake = t
		}
	}
	if d := wake.Sub(now); d > time.Millisecond {
		return d
	}
	return time.Millisecond
}

// handshake opens a switcher session, retrying up to HandshakeRetries.
func (s *Session) handshake() error {
	var last error
	for attempt := 1; attempt <= s.cfg.HandshakeRetries; attempt++ {
		initial := uint16(rand.IntN(packet.MaxID)) + 1
		s.logger.Debug("handshake attempt", "attempt", attempt, "initial_session", initial)

		hello := packet.NewControl(initial, packet.Control{Code: packet.ControlConnect}, packet.ClientIDConnect)
		if err := s.write(hello, "control"); err != nil {
			last = err
		}

		err := s.awaitConnectAck(initial)
		if err == nil {
			return nil
		}
		var ce *closeError
		var te *TransportError
		if errors.As(err, &ce) || errors.As(err, &te) {
			return err
		}
		s.logger.Warn("handshake attempt failed", "attempt", attempt, "error", err)
		last = err
	}
	return &HandshakeTimeoutError{Attempts: s.cfg.HandshakeRetries, Last: last}
}

func (s *Session) awaitConnectAck(initial uint16) error {
	timer := time.NewTimer(s.cfg.HandshakeTimeout)
	defer timer.Stop()

	for {
		select {
		case item := <-s.rx:
			if item.err != nil {
				if errors.Is(item.err, transport.ErrClosed) {
					return &TransportError{Op: "receive", Err: item.err}
				}
				continue
			}
			p, err := packet.Decode(item.data)
			if err != nil || p.SessionID != initial || !p.IsControl() {
				continue
			}
			c, err := p.Control()
			if err != nil {
				continue
			}
			switch c.Code {
			case packet.ControlConnectAck:
				s.metrics.PacketIn("control")
				s.establish(c.AssignedSession(), initial, p.SenderID, item.at)
				return nil
			case packet.ControlConnectNack:
				s.metrics.PacketIn("control")
				return ErrRejected
			}
		case req := <-s.closeReq:
			return &closeError{cause: req.cause}
		case <-timer.C:
			return ErrNoAnswer
		}
	}
}

// establish adopts the switcher-assigned session and asks for the state
// dump by acknowledging the ConnectAck on the initial session id.
func (s *Session) establish(assigned, initial, ackOf uint16, now time.Time) {
	s.sessionID = assigned
	s.out.Reset()
	s.in.Reset(1)
	s.acks.Reset()
	s.recvErrors = 0

	req := packet.NewAck(initial, ackOf)
	req.ClientID = packet.ClientIDStateRequest
	if err := s.write(req, "ack"); err != nil {
		s.logger.Warn("state request failed", "error", err)
	}
	s.lastSend = now
	s.logger.Info("handshake complete", "switcher_session", fmt.Sprintf("%#04x", assigned))
}

// resync discards state after a baseline reset or protocol violation and
// performs a fresh handshake.
func (s *Session) resync(cause error) error {
	s.metrics.Reconnect()

	if s.cfg.RetainOnReset {
		s.mirror.MarkStale()
	} else {
		s.mirror.Reset()
	}
	s.feed.rotate()
	s.failPending(ErrReconnecting)
	// The new dump reports its own version; the device may have changed
	// firmware.
	s.view = s.reg.View(schema.ProtocolVersion{})
	s.versionBound = false
	s.mu.Lock()
	s.synced = make(chan struct{})
	s.isSynced = false
	s.version = schema.ProtocolVersion{}
	s.mu.Unlock()
	s.metrics.SetEntities(s.mirror.Len())

	s.setState(Reconnecting, cause)

	if err := s.handshake(); err != nil {
		var ce *closeError
		if errors.As(err, &ce) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrResyncFailed, err)
	}
	s.setState(Connected, nil)
	return nil
}

func (s *Session) failPending(err error) {
	s.out.Reset()
	for id, cmd := range s.waiters {
		cmd.finish(err)
		delete(s.waiters, id)
	}
	s.metrics.SetUnacked(0)
}

func (s *Session) handleRx(item rxItem) error {
	if item.err != nil {
		if errors.Is(item.err, transport.ErrClosed) {
			return &TransportError{Op: "receive", Err: item.err}
		}
		s.recvErrors++
		s.logger.Warn("receive failed", "error", item.err, "consecutive", s.recvErrors)
		if s.recvErrors > s.cfg.MaxReceiveErrors {
			return &TransportError{Op: "receive", Err: item.err}
		}
		return nil
	}
	s.recvErrors = 0
	return s.handlePacket(item.data, item.at)
}

func (s *Session) handlePacket(data []byte, now time.Time) error {
	p, err := packet.Decode(data)
	if err != nil {
		s.metrics.DecodeError("packet")
		s.logger.Warn("dropping malformed packet", "error", err, "size", len(data))
		return nil
	}
	if p.SessionID != s.sessionID {
		s.logger.Debug("ignoring packet for another session", "packet", p)
		return nil
	}

	if p.IsControl() {
		s.metrics.PacketIn("control")
		return s.handleControl(p)
	}
	if p.Flags.Has(packet.FlagHello) {
		s.metrics.PacketIn("hello")
		return s.resync(ErrBaselineReset)
	}

	// Id 0 in the ack field means no acknowledgement.
	if p.Flags.Has(packet.FlagResponse) && p.AckedID != 0 {
		if err := s.handleAck(p.AckedID); err != nil {
			return s.resync(err)
		}
	}
	if p.IsPureAck() {
		s.metrics.PacketIn("ack")
		return nil
	}
	s.metrics.PacketIn("atoms")

	verdict, released := s.in.Accept(p, now)
	s.metrics.Verdict(verdict.String())
	switch verdict {
	case reliable.Released:
		for _, q := range released {
			s.applyPacket(q)
		}
		s.acks.Mark(s.in.LastReleased(), now)
	case reliable.Stale:
		// The switcher missed our ack; repeat it.
		s.acks.Mark(s.in.LastReleased(), now)
	case reliable.TooFar:
		s.logger.Warn("dropping packet beyond reorder window",
			"sender_id", p.SenderID, "expected", s.in.Next())
	}

	if s.in.Stalled(now, s.cfg.MaxRxQueueTime) {
		return s.resync(&ProtocolViolationError{Reason: "inbound gap not filled", ID: s.in.Next()})
	}
	return nil
}

func (s *Session) handleControl(p *packet.Packet) error {
	c, err := p.Control()
	if err != nil {
		s.logger.Warn("dropping malformed control packet", "error", err)
		return nil
	}
	switch c.Code {
	case packet.ControlDisconnect:
		ack := packet.NewControl(s.sessionID, packet.Control{Code: packet.ControlDisconnectAck}, 0)
		if err := s.write(ack, "control"); err != nil {
			s.logger.Debug("disconnect ack failed", "error", err)
		}
		return ErrRemoteDisconnect
	case packet.ControlConnect, packet.ControlConnectAck:
		return s.resync(ErrBaselineReset)
	default:
		s.logger.Debug("ignoring control packet", "code", c.Code)
		return nil
	}
}

func (s *Session) handleAck(id uint16) error {
	acked, err := s.out.Ack(id)
	if err != nil {
		return &ProtocolViolationError{Reason: "acknowledgement for a packet never sent", ID: id, Err: err}
	}
	for _, p := range acked {
		cmd, ok := s.waiters[p.ID()]
		if !ok {
			continue
		}
		delete(s.waiters, p.ID())
		cmd.pending--
		if cmd.pending == 0 {
			s.metrics.ObserveCommand("ok", time.Since(cmd.started))
			cmd.finish(nil)
		}
	}
	s.metrics.SetUnacked(s.out.Len())
	return nil
}

// applyPacket decodes the atoms of a released packet and merges them.
func (s *Session) applyPacket(p *packet.Packet) {
	atoms, err := p.Atoms()
	if err != nil {
		s.metrics.DecodeError(atom.KindOf(err).String())
		s.logger.Warn("malformed atom batch", "sender_id", p.SenderID, "error", err, "decoded", len(atoms))
	}
	for _, a := range atoms {
		s.applyAtom(a)
	}
	s.metrics.SetEntities(s.mirror.Len())
}

func (s *Session) applyAtom(a atom.Atom) {
	if a.Tag == s.cfg.VersionTag {
		s.bindVersion(a)
	}

	rec, err := s.view.Decode(a)
	if err != nil {
		kind := atom.KindOf(err)
		s.metrics.DecodeError(kind.String())
		if kind != atom.KindUnknownType {
			s.logger.Warn("dropping atom", "tag", a.Tag, "error", err)
			return
		}
		s.noteUnknown(a)
	}
	for _, w := range rec.Warnings {
		s.logger.Warn("atom decoded with warning", "tag", a.Tag, "warning", w)
	}

	if events := s.mirror.Apply(rec); len(events) > 0 {
		s.metrics.ChangeEvents(len(events))
		if dropped := s.feed.publish(events); dropped > 0 {
			s.logger.Warn("change event subscribers fell behind", "dropped", dropped)
		}
	}

	if a.Tag == s.cfg.SyncCompleteTag {
		s.markSynced()
	}
}

// bindVersion fixes the registry view from the first version atom.
func (s *Session) bindVersion(a atom.Atom) {
	if s.versionBound {
		return
	}
	d := atom.NewDecoder(a.Payload)
	major, err1 := d.ReadUint16()
	minor, err2 := d.ReadUint16()
	if err := errors.Join(err1, err2); err != nil {
		s.logger.Warn("unreadable version atom", "error", err)
		return
	}
	v := schema.ProtocolVersion{Major: major, Minor: minor}
	s.view = s.reg.View(v)
	s.versionBound = true

	s.mu.Lock()
	s.version = v
	s.mu.Unlock()
	s.logger.Info("protocol version", "version", v.String())
}

func (s *Session) noteUnknown(a atom.Atom) {
	s.mu.Lock()
	n := s.unknown[a.Tag]
	s.unknown[a.Tag] = n + 1
	s.mu.Unlock()
	if n == 0 {
		s.logger.Warn("unknown atom type", "tag", a.Tag, "size", a.Len())
	}
}

func (s *Session) markSynced() {
	s.mu.Lock()
	if s.isSynced {
		s.mu.Unlock()
		return
	}
	s.isSynced = true
	close(s.synced)
	s.mu.Unlock()
	s.logger.Info("state synchronised", "entities", s.mirror.Len())
}

// sendCommand numbers, tracks and sends the packets of one command.
func (s *Session) sendCommand(cmd *command) {
	batches, err := packet.Batch(cmd.atoms, packet.MaxPayloadSize)
	if err != nil {
		cmd.finish(err)
		return
	}
	if len(batches) > s.out.Free() {
		cmd.finish(reliable.ErrQueueFull)
		return
	}

	now := time.Now()
	for _, batch := range batches {
		p, err := packet.NewAtoms(s.sessionID, 0, batch)
		if err != nil {
			cmd.finish(err)
			return
		}
		if err := s.track(p, now, "atoms"); err != nil {
			cmd.finish(err)
			return
		}
		s.waiters[p.SenderID] = cmd
		cmd.pending++
	}
	s.metrics.SetUnacked(s.out.Len())
}

// track numbers p, attaches any pending ack, records it for retransmission
// and sends it. A failed send is left to the retransmit timer.
func (s *Session) track(p *packet.Packet, now time.Time, kind string) error {
	p.SenderID = s.out.Allocate()
	s.piggyback(p)
	pend, err := s.out.Track(p, now)
	if err != nil {
		return err
	}
	if err := s.send(pend.Frame, kind); err != nil {
		s.logger.Warn("send failed, will retransmit", "sender_id", p.SenderID, "error", err)
	}
	return nil
}

func (s *Session) piggyback(p *packet.Packet) {
	if id, ok := s.acks.Piggyback(); ok {
		p.Flags |= packet.FlagResponse
		p.AckedID = id
		s.metrics.AckSent("piggyback")
	}
}

// tick runs retransmission, delayed acks, keepalives and the gap check.
func (s *Session) tick(now time.Time) error {
	resend, expired := s.out.Due(now)
	if len(expired) > 0 {
		p := expired[0]
		return &TransportError{
			Op:  "retransmit",
			Err: fmt.Errorf("%w: packet %#04x after %d retransmissions", ErrAckTimeout, p.ID(), p.Attempts),
		}
	}
	for _, p := range resend {
		if err := s.send(p.Frame, "retransmit"); err != nil {
			s.logger.Debug("retransmit failed", "sender_id", p.ID(), "error", err)
		}
	}
	s.metrics.Retransmits(len(resend))

	if id, ok := s.acks.Due(now); ok {
		if err := s.write(packet.NewAck(s.sessionID, id), "ack"); err != nil {
			s.logger.Debug("ack failed", "acked_id", id, "error", err)
		}
		s.metrics.AckSent("standalone")
	}

	if s.cfg.KeepaliveInterval > 0 && s.out.Len() == 0 && now.Sub(s.lastSend) >= s.cfg.KeepaliveInterval {
		p, _ := packet.NewAtoms(s.sessionID, 0, nil)
		if err := s.track(p, now, "keepalive"); err != nil {
			s.logger.Debug("keepalive not sent", "error", err)
		}
	}

	if s.in.Stalled(now, s.cfg.MaxRxQueueTime) {
		return s.resync(&ProtocolViolationError{Reason: "inbound gap not filled", ID: s.in.Next()})
	}
	return nil
}

// closeGracefully tells the switcher we are leaving and waits briefly for
// its DisconnectAck.
func (s *Session) closeGracefully(req closeRequest) error {
	s.setState(Closing, nil)
	bye := packet.NewControl(s.sessionID, packet.Control{Code: packet.ControlDisconnect}, 0)
	if err := s.write(bye, "control"); err != nil {
		return req.cause
	}

	timer := time.NewTimer(s.cfg.DisconnectTimeout)
	defer timer.Stop()
	for {
		select {
		case item := <-s.rx:
			if item.err != nil {
				return req.cause
			}
			p, err := packet.Decode(item.data)
			if err != nil || p.SessionID != s.sessionID || !p.IsControl() {
				continue
			}
			if c, err := p.Control(); err == nil && c.Code == packet.ControlDisconnectAck {
				return req.cause
			}
		case <-timer.C:
			s.logger.Debug("no DisconnectAck before timeout")
			return req.cause
		}
	}
}

// write encodes and sends an untracked packet.
func (s *Session) write(p *packet.Packet, kind string) error {
	frame, err := p.Encode()
	if err != nil {
		return err
	}
	return s.send(frame, kind)
}

func (s *Session) send(frame []byte, kind string) error {
	s.lastSend = time.Now()
	if err := s.tr.Send(s.ctx, frame); err != nil {
		return &TransportError{Op: "send", Err: err}
	}
	s.metrics.PacketOut(kind)
	return nil
}
