package errors

import (
	stderrors "errors"
	"fmt"

	"github.com/vango-dev/burp/pkg/atoms"
	"github.com/vango-dev/burp/pkg/mirrorstore"
	"github.com/vango-dev/burp/pkg/session"
)

// Classify maps an error returned by the session, command or store
// packages onto a coded BurpError. The original error stays reachable
// through Unwrap.
func Classify(err error) *BurpError {
	if err == nil {
		return nil
	}
	var be *BurpError
	if stderrors.As(err, &be) {
		return be
	}

	var (
		hto *session.HandshakeTimeoutError
		te  *session.TransportError
		pv  *session.ProtocolViolationError
	)
	switch {
	// Resync wraps the failed handshake, so it is checked first.
	case stderrors.Is(err, session.ErrResyncFailed):
		return New("B205").Wrap(err).WithDetail(err.Error())
	case stderrors.Is(err, session.ErrRejected):
		return New("B201").Wrap(err)
	case stderrors.As(err, &hto):
		return New("B200").Wrap(err).WithDetail(fmt.Sprintf("No ConnectAck after %d attempts.", hto.Attempts))
	case stderrors.Is(err, session.ErrAckTimeout):
		return New("B203").Wrap(err).WithDetail(err.Error())
	case stderrors.As(err, &te):
		return New("B202").Wrap(err).WithDetailf("%s failed: %v", te.Op, te.Err)
	case stderrors.Is(err, session.ErrRemoteDisconnect):
		return New("B204").Wrap(err)
	case stderrors.As(err, &pv):
		return New("B205").Wrap(err).WithDetail(pv.Reason)
	case stderrors.Is(err, session.ErrNotConnected),
		stderrors.Is(err, session.ErrReconnecting),
		stderrors.Is(err, session.ErrClosed):
		return New("B300").Wrap(err).WithDetail(err.Error())
	case stderrors.Is(err, atoms.ErrOutOfRange):
		return New("B301").Wrap(err).WithDetail(err.Error())
	case stderrors.Is(err, mirrorstore.ErrStoreClosed):
		return New("B400").Wrap(err).WithDetail(err.Error())
	}
	return FromError(err, "B900")
}
