package idscp2

import (
	"errors"

	"github.com/industrial-data-space/idscp2-go/pkg/wire"
)

// ErrorKind classifies a failure observable at the facade boundary. Callers
// that want API-stable branching should switch on ErrorKind; callers that
// prefer idiomatic Go should use errors.Is against the matching sentinel
// below instead — both work against the same value.
type ErrorKind uint8

const (
	ErrorKindNotEstablished ErrorKind = iota
	ErrorKindClosed
	ErrorKindNoMatchingRat
	ErrorKindRatFailed
	ErrorKindDatInvalid
	ErrorKindHandshakeTimeout
	ErrorKindTlsError
	ErrorKindMalformedFrame
	ErrorKindPeerClosed
	ErrorKindInternalDriverError
)

// String returns a human-readable error kind name.
func (k ErrorKind) String() string {
	switch k {
	case ErrorKindNotEstablished:
		return "NotEstablished"
	case ErrorKindClosed:
		return "Closed"
	case ErrorKindNoMatchingRat:
		return "NoMatchingRat"
	case ErrorKindRatFailed:
		return "RatFailed"
	case ErrorKindDatInvalid:
		return "DatInvalid"
	case ErrorKindHandshakeTimeout:
		return "HandshakeTimeout"
	case ErrorKindTlsError:
		return "TlsError"
	case ErrorKindMalformedFrame:
		return "MalformedFrame"
	case ErrorKindPeerClosed:
		return "PeerClosed"
	case ErrorKindInternalDriverError:
		return "InternalDriverError"
	default:
		return "Unknown"
	}
}

// Sentinel errors, one per ErrorKind, so callers can use errors.Is in
// addition to switching on ErrorKind directly.
var (
	ErrNotEstablished    = errors.New("idscp2: connection not established")
	ErrClosed            = errors.New("idscp2: connection closed")
	ErrNoMatchingRat     = errors.New("idscp2: no matching rat driver")
	ErrRatFailed         = errors.New("idscp2: rat driver failed")
	ErrDatInvalid        = errors.New("idscp2: peer dat rejected")
	ErrHandshakeTimeout  = errors.New("idscp2: handshake timed out")
	ErrTlsError          = errors.New("idscp2: tls error")
	ErrMalformedFrame    = errors.New("idscp2: malformed frame")
	ErrPeerClosed        = errors.New("idscp2: peer closed the connection")
	ErrInternalDriverError = errors.New("idscp2: internal driver error")
)

// kindErrors maps each ErrorKind to its sentinel, used by both Error() and
// errors.Is-compatible wrapping.
var kindErrors = map[ErrorKind]error{
	ErrorKindNotEstablished:      ErrNotEstablished,
	ErrorKindClosed:              ErrClosed,
	ErrorKindNoMatchingRat:       ErrNoMatchingRat,
	ErrorKindRatFailed:           ErrRatFailed,
	ErrorKindDatInvalid:          ErrDatInvalid,
	ErrorKindHandshakeTimeout:    ErrHandshakeTimeout,
	ErrorKindTlsError:            ErrTlsError,
	ErrorKindMalformedFrame:      ErrMalformedFrame,
	ErrorKindPeerClosed:          ErrPeerClosed,
	ErrorKindInternalDriverError: ErrInternalDriverError,
}

// Error wraps an ErrorKind as a Go error so it can be returned from an API
// and matched with errors.Is against the kind's sentinel.
type Error struct {
	Kind ErrorKind
}

func (e *Error) Error() string { return kindErrors[e.Kind].Error() }

func (e *Error) Unwrap() error { return kindErrors[e.Kind] }

// newError builds an *Error for kind.
func newError(kind ErrorKind) *Error { return &Error{Kind: kind} }

// closeReasonToKind maps the wire protocol's CloseReason — which the FSM
// attaches to every ActionInvokeOnError — onto the facade's richer
// ErrorKind enum. wire.CloseReason has no codes of its own for
// TlsError/MalformedFrame/PeerClosed: those three conditions collapse into
// CloseInternalError (transport failures) or are never surfaced via
// OnError at all (a clean peer CLOSE or EOF carries CloseUnspecified, which
// the FSM's shutdown helper never attaches to an ActionInvokeOnError — see
// pkg/fsm.Machine.shutdown). ErrorKindTlsError/MalformedFrame/PeerClosed
// remain part of the public enum for callers that want to pattern-match
// errors surfaced directly from pkg/transport or pkg/wire instead.
func closeReasonToKind(reason wire.CloseReason) ErrorKind {
	switch reason {
	case wire.CloseNoMatchingRat:
		return ErrorKindNoMatchingRat
	case wire.CloseTimeout:
		return ErrorKindHandshakeTimeout
	case wire.CloseRatFailed:
		return ErrorKindRatFailed
	case wire.CloseDatInvalid:
		return ErrorKindDatInvalid
	case wire.CloseUserShutdown:
		return ErrorKindClosed
	default:
		return ErrorKindInternalDriverError
	}
}
