package session

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vango-dev/burp/pkg/atom"
	"github.com/vango-dev/burp/pkg/packet"
	"github.com/vango-dev/burp/pkg/schema"
	"github.com/vango-dev/burp/pkg/transport"
)

var (
	tagVer  = atom.MustTag("_ver")
	tagPrgI = atom.MustTag("PrgI")
	tagPrvI = atom.MustTag("PrvI")
	tagInCm = atom.MustTag("InCm")
	tagDCut = atom.MustTag("DCut")
	tagAuxS = atom.MustTag("AuxS")
)

func testRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	r := schema.NewRegistry()
	r.MustRegister(
		schema.Schema{
			Tag: tagVer, Entity: "version", Size: 4,
			Fields: []schema.Field{schema.U16Field("major", 0), schema.U16Field("minor", 2)},
		},
		schema.Schema{
			Tag: tagPrgI, Entity: "me", Size: 4,
			Fields: []schema.Field{
				schema.U8Field("me", 0).AsKey(),
				schema.Pad(1, 1),
				schema.U16Field("program", 2),
			},
		},
		schema.Schema{
			Tag: tagPrvI, Entity: "me", Size: 4,
			Fields: []schema.Field{
				schema.U8Field("me", 0).AsKey(),
				schema.Pad(1, 1),
				schema.U16Field("preview", 2),
			},
		},
		schema.Schema{Tag: tagInCm},
		schema.Schema{
			Tag: tagDCut, Size: 4, Command: true,
			Fields: []schema.Field{schema.U8Field("me", 0), schema.Pad(1, 3)},
		},
		// AuxS moved its source field in 2.30.
		schema.Schema{
			Tag: tagAuxS, Entity: "aux", Size: 4,
			Fields: []schema.Field{
				schema.U8Field("aux", 0).AsKey(),
				schema.Pad(1, 1),
				schema.U16Field("source", 2),
			},
		},
		schema.Schema{
			Tag: tagAuxS, Entity: "aux", Size: 8, Version: schema.ProtocolVersion{Major: 2, Minor: 30},
			Fields: []schema.Field{
				schema.U8Field("aux", 0).AsKey(),
				schema.Pad(1, 3),
				schema.U16Field("source", 4),
				schema.Pad(6, 2),
			},
		},
	)
	r.Freeze()
	return r
}

func encode(t *testing.T, v *schema.View, tag atom.Tag, fields map[string]schema.Value) atom.Atom {
	t.Helper()
	a, err := v.Encode(tag, fields, nil)
	if err != nil {
		t.Fatalf("encode %s: %v", tag, err)
	}
	return a
}

func programInput(t *testing.T, reg *schema.Registry, me uint8, src uint16) atom.Atom {
	return encode(t, reg.View(schema.ProtocolVersion{}), tagPrgI, map[string]schema.Value{
		"me": schema.U8(me), "program": schema.U16(src),
	})
}

func previewInput(t *testing.T, reg *schema.Registry, me uint8, src uint16) atom.Atom {
	return encode(t, reg.View(schema.ProtocolVersion{}), tagPrvI, map[string]schema.Value{
		"me": schema.U8(me), "preview": schema.U16(src),
	})
}

func versionAtom(major, minor uint16) atom.Atom {
	e := atom.NewEncoder()
	e.WriteUint16(major)
	e.WriteUint16(minor)
	return atom.New(tagVer, e.Bytes())
}

func syncComplete() atom.Atom {
	return atom.New(tagInCm, nil)
}

func cutCommand(me uint8) atom.Atom {
	return atom.New(tagDCut, []byte{me, 0, 0, 0})
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeSwitcher plays the switcher side of a pipe. It answers Connect,
// streams a state dump after the state request and acknowledges client
// packets while AckClient is set.
type fakeSwitcher struct {
	t   *testing.T
	end *transport.PipeEnd

	ackClient atomic.Bool
	silent    atomic.Bool
	nack      atomic.Bool

	mu       sync.Mutex
	session  uint16 // Assigned id, switcher bit set
	nextID   uint16
	dump     [][]atom.Atom
	gate     chan struct{}
	received []*packet.Packet
	connects int

	dumped chan struct{}
	stop   chan struct{}
	wg     sync.WaitGroup
}

func newFakeSwitcher(t *testing.T, end *transport.PipeEnd, dump ...[]atom.Atom) *fakeSwitcher {
	t.Helper()
	f := &fakeSwitcher{
		t:      t,
		end:    end,
		dump:   dump,
		nextID: 1,
		dumped: make(chan struct{}, 8),
		stop:   make(chan struct{}),
	}
	f.ackClient.Store(true)
	f.wg.Add(1)
	go f.run()
	t.Cleanup(func() {
		close(f.stop)
		f.end.Close()
		f.wg.Wait()
	})
	return f
}

func (f *fakeSwitcher) run() {
	defer f.wg.Done()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-f.stop
		cancel()
	}()

	var assigned uint16 = 0x0010
	for {
		data, err := f.end.Receive(ctx)
		if err != nil {
			return
		}
		p, err := packet.Decode(data)
		if err != nil {
			f.t.Errorf("switcher received malformed packet: %v", err)
			continue
		}
		f.mu.Lock()
		f.received = append(f.received, p)
		f.mu.Unlock()

		switch {
		case p.IsControl():
			c, err := p.Control()
			if err != nil {
				continue
			}
			switch c.Code {
			case packet.ControlConnect:
				f.mu.Lock()
				f.connects++
				f.mu.Unlock()
				if f.silent.Load() {
					continue
				}
				code := packet.ControlConnectAck
				if f.nack.Load() {
					code = packet.ControlConnectNack
				}
				assigned++
				f.mu.Lock()
				f.session = assigned | packet.SwitcherSessionBit
				f.mu.Unlock()
				f.write(packet.NewControl(p.SessionID, packet.Control{Code: code, SessionID: assigned}, 0))
			case packet.ControlDisconnect:
				f.write(packet.NewControl(p.SessionID, packet.Control{Code: packet.ControlDisconnectAck}, 0))
			}
		case p.ClientID == packet.ClientIDStateRequest:
			f.sendDump()
		case p.Flags.Has(packet.FlagAckRequest) && f.ackClient.Load():
			f.write(packet.NewAck(p.SessionID, p.SenderID))
		}
	}
}

func (f *fakeSwitcher) sendDump() {
	f.mu.Lock()
	gate := f.gate
	dump := f.dump
	f.nextID = 1
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-f.stop:
			return
		}
	}
	for _, batch := range dump {
		f.push(batch...)
	}
	f.dumped <- struct{}{}
}

func (f *fakeSwitcher) write(p *packet.Packet) {
	frame, err := p.Encode()
	if err != nil {
		f.t.Errorf("switcher encode: %v", err)
		return
	}
	_ = f.end.Send(context.Background(), frame)
}

// push sends atoms in the next reliable packet.
func (f *fakeSwitcher) push(atoms ...atom.Atom) uint16 {
	f.mu.Lock()
	id := f.nextID
	f.nextID = packet.NextID(id)
	sess := f.session
	f.mu.Unlock()

	p, err := packet.NewAtoms(sess, id, atoms)
	if err != nil {
		f.t.Errorf("switcher packet: %v", err)
		return id
	}
	f.write(p)
	return id
}

// hello announces a new sequence baseline, as a rebooted switcher does.
func (f *fakeSwitcher) hello() {
	f.mu.Lock()
	sess := f.session
	f.mu.Unlock()
	f.write(&packet.Packet{Flags: packet.FlagHello | packet.FlagAckRequest, SessionID: sess})
}

func (f *fakeSwitcher) disconnect() {
	f.mu.Lock()
	sess := f.session
	f.mu.Unlock()
	f.write(packet.NewControl(sess, packet.Control{Code: packet.ControlDisconnect}, 0))
}

func (f *fakeSwitcher) ack(id uint16) {
	f.mu.Lock()
	sess := f.session
	f.mu.Unlock()
	f.write(packet.NewAck(sess, id))
}

func (f *fakeSwitcher) setDump(dump ...[]atom.Atom) {
	f.mu.Lock()
	f.dump = dump
	f.mu.Unlock()
}

func (f *fakeSwitcher) setGate(gate chan struct{}) {
	f.mu.Lock()
	f.gate = gate
	f.mu.Unlock()
}

func (f *fakeSwitcher) connectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects
}

// packets returns the received packets matching keep.
func (f *fakeSwitcher) packets(keep func(*packet.Packet) bool) []*packet.Packet {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*packet.Packet
	for _, p := range f.received {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}

func (f *fakeSwitcher) waitDumped(t *testing.T) {
	t.Helper()
	select {
	case <-f.dumped:
	case <-time.After(2 * time.Second):
		t.Fatal("switcher never sent its state dump")
	}
}

// testOptions are fast timings for loopback tests.
func testOptions(extra ...Option) []Option {
	opts := []Option{
		WithLogger(quietLogger()),
		WithHandshakeTimeout(200 * time.Millisecond),
		WithRetransmit(20*time.Millisecond, 3),
		WithAckDelay(5 * time.Millisecond),
		WithKeepalive(0),
	}
	return append(opts, extra...)
}

// harness wires a session to a fake switcher over an in-memory pipe.
type harness struct {
	s   *Session
	sw  *fakeSwitcher
	reg *schema.Registry
}

func newHarness(t *testing.T, dump [][]atom.Atom, opts ...Option) *harness {
	t.Helper()
	reg := testRegistry(t)
	client, server := transport.NewPipe(256)
	sw := newFakeSwitcher(t, server, dump...)
	s, err := New(client, reg, testOptions(opts...)...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Disconnect(ctx)
	})
	return &harness{s: s, sw: sw, reg: reg}
}

func (h *harness) connect(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.s.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
}

func (h *harness) waitSynced(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.s.WaitSynced(ctx); err != nil {
		t.Fatalf("WaitSynced() error = %v", err)
	}
}

// nextTransition reads the lifecycle channel until a transition to want.
func nextTransition(t *testing.T, s *Session, want State) Transition {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case tr, ok := <-s.Lifecycle():
			if !ok {
				t.Fatalf("lifecycle closed before reaching %s", want)
			}
			if tr.To == want {
				return tr
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s (state %s)", want, s.State())
		}
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}
