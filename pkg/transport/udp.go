package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync/atomic"
	"time"
)

// UDP is a Transport over a connected UDP socket.
type UDP struct {
	conn   *net.UDPConn
	closed atomic.Bool
}

// DialUDP connects to a switcher. A bare host gets DefaultPort.
func DialUDP(ctx context.Context, addr string) (*UDP, error) {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, strconv.Itoa(DefaultPort))
	}
	var d net.Dialer
	c, err := d.DialContext(ctx, "udp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", addr, err)
	}
	return &UDP{conn: c.(*net.UDPConn)}, nil
}

// NewUDP wraps an already connected socket.
func NewUDP(conn *net.UDPConn) *UDP {
	return &UDP{conn: conn}
}

// RemoteAddr returns the switcher address.
func (u *UDP) RemoteAddr() net.Addr {
	return u.conn.RemoteAddr()
}

// Send implements Transport.
func (u *UDP) Send(ctx context.Context, datagram []byte) error {
	if u.closed.Load() {
		return ErrClosed
	}
	if len(datagram) > MaxDatagram {
		return ErrTooBig
	}
	if dl, ok := ctx.Deadline(); ok {
		u.conn.SetWriteDeadline(dl)
	} else {
		u.conn.SetWriteDeadline(time.Time{})
	}
	stop := context.AfterFunc(ctx, func() {
		u.conn.SetWriteDeadline(time.Unix(1, 0))
	})
	defer stop()

	_, err := u.conn.Write(datagram)
	return u.mapErr(ctx, err)
}

// Receive implements Transport.
func (u *UDP) Receive(ctx context.Context) ([]byte, error) {
	if u.closed.Load() {
		return nil, ErrClosed
	}
	if dl, ok := ctx.Deadline(); ok {
		u.conn.SetReadDeadline(dl)
	} else {
		u.conn.SetReadDeadline(time.Time{})
	}
	stop := context.AfterFunc(ctx, func() {
		u.conn.SetReadDeadline(time.Unix(1, 0))
	})
	defer stop()

	buf := make([]byte, MaxDatagram)
	n, err := u.conn.Read(buf)
	if err != nil {
		return nil, u.mapErr(ctx, err)
	}
	return buf[:n], nil
}

// Close implements Transport.
func (u *UDP) Close() error {
	if u.closed.Swap(true) {
		return nil
	}
	return u.conn.Close()
}

func (u *UDP) mapErr(ctx context.Context, err error) error {
	switch {
	case err == nil:
		return nil
	case u.closed.Load() || errors.Is(err, net.ErrClosed):
		return ErrClosed
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		return err
	}
}
