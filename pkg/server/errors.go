package server

import (
	"errors"
	"io"
	"net"

	"github.com/aeolun/medius/pkg/cipher"
	"github.com/aeolun/medius/pkg/protocol"
)

var (
	// ErrUnexpectedMessage is a message the connection's state does not permit
	ErrUnexpectedMessage = errors.New("message not permitted in connection state")
	// ErrUnsupportedApp is a connect for an application id this process does not serve
	ErrUnsupportedApp = errors.New("unsupported application id")
	// ErrConnectionClosed is returned when queueing onto a closed connection
	ErrConnectionClosed = errors.New("connection closed")
	// ErrMalformed wraps a frame that failed to decode
	ErrMalformed = errors.New("malformed message")
	// ErrBacklog means a queue overflowed or the peer stopped reading
	ErrBacklog = errors.New("connection backlog exceeded")
	// ErrNoSession is an invariant violation: a handler needed a bound
	// client identity and the connection had none
	ErrNoSession = errors.New("no client bound to connection")
	// ErrInvariant marks a state the handlers should never reach
	ErrInvariant = errors.New("invariant violation")

	errPeerDisconnect = errors.New("peer disconnected")
	errPeerIdle       = errors.New("peer idle")
)

func isEOF(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

// Fatal reports whether err must close the connection it was raised on.
// Anything else is logged and the connection kept.
func Fatal(err error) bool {
	if err == nil {
		return false
	}
	for _, target := range []error{
		ErrUnexpectedMessage,
		ErrUnsupportedApp,
		ErrConnectionClosed,
		ErrMalformed,
		ErrBacklog,
		protocol.ErrFrameTooLarge,
		protocol.ErrTruncatedFrame,
		protocol.ErrInvalidFrameID,
		protocol.ErrShortBuffer,
		protocol.ErrEmptyMessage,
		cipher.ErrNoKey,
		cipher.ErrHashMismatch,
		cipher.ErrBadModulus,
		cipher.ErrBlockSize,
		cipher.ErrBlockTooLarge,
		io.EOF,
		net.ErrClosed,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
