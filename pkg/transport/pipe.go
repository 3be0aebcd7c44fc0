package transport

import (
	"context"
	"sync"
	"sync/atomic"
)

// Faults perturbs datagrams leaving a PipeEnd. Nil functions disable the
// corresponding fault.
type Faults struct {
	// Drop discards the datagram when it returns true.
	Drop func(datagram []byte) bool

	// Duplicate delivers the datagram twice when it returns true.
	Duplicate func(datagram []byte) bool

	// Hold keeps the datagram back when it returns true; held datagrams are
	// delivered, in the order given, by Release.
	Hold func(datagram []byte) bool
}

// PipeEnd is one side of an in-memory datagram link. It behaves like a lossy
// socket: a full inbox drops the datagram instead of blocking.
type PipeEnd struct {
	peer   *PipeEnd
	inbox  chan []byte
	done   chan struct{}
	once   *sync.Once
	closed *atomic.Bool

	mu     sync.Mutex
	faults Faults
	held   [][]byte
	sent   atomic.Int64
}

// NewPipe returns two connected ends. Closing either end closes both.
func NewPipe(buffer int) (*PipeEnd, *PipeEnd) {
	if buffer <= 0 {
		buffer = 256
	}
	done := make(chan struct{})
	once := new(sync.Once)
	closed := new(atomic.Bool)
	a := &PipeEnd{inbox: make(chan []byte, buffer), done: done, once: once, closed: closed}
	b := &PipeEnd{inbox: make(chan []byte, buffer), done: done, once: once, closed: closed}
	a.peer, b.peer = b, a
	return a, b
}

// SetFaults replaces the faults applied to datagrams sent from this end.
func (p *PipeEnd) SetFaults(f Faults) {
	p.mu.Lock()
	p.faults = f
	p.mu.Unlock()
}

// Release delivers every held datagram. With reverse set they arrive in the
// opposite order they were held.
func (p *PipeEnd) Release(reverse bool) {
	p.mu.Lock()
	held := p.held
	p.held = nil
	p.mu.Unlock()

	for i := range held {
		if reverse {
			p.deliver(held[len(held)-1-i])
		} else {
			p.deliver(held[i])
		}
	}
}

// Sent returns how many datagrams Send accepted, faults included.
func (p *PipeEnd) Sent() int64 {
	return p.sent.Load()
}

// Send implements Transport.
func (p *PipeEnd) Send(ctx context.Context, datagram []byte) error {
	if p.closed.Load() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(datagram) > MaxDatagram {
		return ErrTooBig
	}
	p.sent.Add(1)
	msg := append([]byte(nil), datagram...)

	p.mu.Lock()
	f := p.faults
	if f.Hold != nil && f.Hold(msg) {
		p.held = append(p.held, msg)
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	if f.Drop != nil && f.Drop(msg) {
		return nil
	}
	p.deliver(msg)
	if f.Duplicate != nil && f.Duplicate(msg) {
		p.deliver(append([]byte(nil), msg...))
	}
	return nil
}

func (p *PipeEnd) deliver(msg []byte) {
	select {
	case p.peer.inbox <- msg:
	case <-p.done:
	default:
	}
}

// Receive implements Transport.
func (p *PipeEnd) Receive(ctx context.Context) ([]byte, error) {
	select {
	case msg := <-p.inbox:
		return msg, nil
	case <-p.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close implements Transport.
func (p *PipeEnd) Close() error {
	p.once.Do(func() {
		p.closed.Store(true)
		close(p.done)
	})
	return nil
}
