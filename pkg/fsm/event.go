package fsm

import (
	"github.com/industrial-data-space/idscp2-go/pkg/timer"
	"github.com/industrial-data-space/idscp2-go/pkg/wire"
)

// EventKind discriminates the closed alphabet of events the transition
// table understands: wire messages, internal driver notifications, timer
// firings, user-facing calls, and transport-level signals.
type EventKind uint8

const (
	// EventStart is synthetic, posted exactly once by the owning
	// connection to bootstrap STATE_CLOSED into STATE_WAIT_FOR_HELLO.
	EventStart EventKind = iota

	EventWireHello
	EventWireDAT
	EventWireDATExpired
	EventWireRatProver
	EventWireRatVerifier
	EventWireReRat
	EventWireData
	EventWireClose

	EventDriverProverMsg
	EventDriverProverOK
	EventDriverProverFailed
	EventDriverVerifierMsg
	EventDriverVerifierOK
	EventDriverVerifierFailed

	EventTimerHandshake
	EventTimerDat
	EventTimerRat
	EventTimerAck

	EventUserSend
	EventUserClose
	EventUserRepeatRat

	EventTransportEOF
	EventTransportTLSError
	EventTransportMalformed
)

// String returns a human-readable event name, used in log.StateChangeEvent.
func (k EventKind) String() string {
	switch k {
	case EventStart:
		return "START"
	case EventWireHello:
		return "HELLO"
	case EventWireDAT:
		return "DAT"
	case EventWireDATExpired:
		return "DAT_EXPIRED"
	case EventWireRatProver:
		return "RAT_PROVER"
	case EventWireRatVerifier:
		return "RAT_VERIFIER"
	case EventWireReRat:
		return "RE_RAT"
	case EventWireData:
		return "IDSCP_DATA"
	case EventWireClose:
		return "CLOSE"
	case EventDriverProverMsg:
		return "DRIVER_PROVER_MSG"
	case EventDriverProverOK:
		return "RAT_PROVER_OK"
	case EventDriverProverFailed:
		return "RAT_PROVER_FAILED"
	case EventDriverVerifierMsg:
		return "DRIVER_VERIFIER_MSG"
	case EventDriverVerifierOK:
		return "RAT_VERIFIER_OK"
	case EventDriverVerifierFailed:
		return "RAT_VERIFIER_FAILED"
	case EventTimerHandshake:
		return "HANDSHAKE_TIMEOUT"
	case EventTimerDat:
		return "DAT_TIMER"
	case EventTimerRat:
		return "RAT_TIMEOUT"
	case EventTimerAck:
		return "ACK_TIMEOUT"
	case EventUserSend:
		return "USER_SEND"
	case EventUserClose:
		return "USER_CLOSE"
	case EventUserRepeatRat:
		return "USER_REPEAT_RAT"
	case EventTransportEOF:
		return "TRANSPORT_EOF"
	case EventTransportTLSError:
		return "TLS_ERROR"
	case EventTransportMalformed:
		return "MALFORMED_FRAME"
	default:
		return "UNKNOWN"
	}
}

// IsTimerEvent reports whether k originates from the timer service. The
// bounded event queue (pkg/fsm.Worker) drops the oldest queued timer event
// first on overflow, never a wire event (§5 of the governing design).
func (k EventKind) IsTimerEvent() bool {
	switch k {
	case EventTimerHandshake, EventTimerDat, EventTimerRat, EventTimerAck:
		return true
	default:
		return false
	}
}

// Event is the tagged union the transition table dispatches on. Only the
// fields relevant to Kind are populated; the rest are zero.
type Event struct {
	Kind EventKind

	// Wire carries the decoded message for EventWire* kinds.
	Wire wire.Message

	// DriverGeneration, DriverPayload and DriverErr carry the payload of
	// EventDriver* kinds. A stale generation (one that no longer matches
	// the Machine's live prover/verifier generation) is discarded by the
	// transition table before any state change.
	DriverGeneration uint64
	DriverPayload    []byte
	DriverErr        error

	// UserPayload carries the EventUserSend payload.
	UserPayload []byte

	// TransportErr carries the EventTransportTLSError / EventTransportMalformed cause.
	TransportErr error
}

// wireEventKind maps a decoded wire.Message to its EventKind.
func wireEventKind(t wire.MessageType) EventKind {
	switch t {
	case wire.TypeHello:
		return EventWireHello
	case wire.TypeDAT:
		return EventWireDAT
	case wire.TypeDATExpired:
		return EventWireDATExpired
	case wire.TypeRatProver:
		return EventWireRatProver
	case wire.TypeRatVerifier:
		return EventWireRatVerifier
	case wire.TypeReRat:
		return EventWireReRat
	case wire.TypeData:
		return EventWireData
	case wire.TypeClose:
		return EventWireClose
	default:
		return EventTransportMalformed
	}
}

// WireEvent wraps a decoded message as the matching EventWire* event.
func WireEvent(msg wire.Message) Event {
	return Event{Kind: wireEventKind(msg.MsgType()), Wire: msg}
}

// ProverMsgEvent wraps an outbound RAT_PROVER payload emitted by the local
// prover driver.
func ProverMsgEvent(generation uint64, payload []byte) Event {
	return Event{Kind: EventDriverProverMsg, DriverGeneration: generation, DriverPayload: payload}
}

// ProverOKEvent signals the local prover driver reached its terminal
// successful state.
func ProverOKEvent(generation uint64) Event {
	return Event{Kind: EventDriverProverOK, DriverGeneration: generation}
}

// ProverFailedEvent signals the local prover driver failed.
func ProverFailedEvent(generation uint64, err error) Event {
	return Event{Kind: EventDriverProverFailed, DriverGeneration: generation, DriverErr: err}
}

// VerifierMsgEvent wraps an outbound RAT_VERIFIER payload emitted by the
// local verifier driver.
func VerifierMsgEvent(generation uint64, payload []byte) Event {
	return Event{Kind: EventDriverVerifierMsg, DriverGeneration: generation, DriverPayload: payload}
}

// VerifierOKEvent signals the local verifier driver reached its terminal
// successful state.
func VerifierOKEvent(generation uint64) Event {
	return Event{Kind: EventDriverVerifierOK, DriverGeneration: generation}
}

// VerifierFailedEvent signals the local verifier driver failed.
func VerifierFailedEvent(generation uint64, err error) Event {
	return Event{Kind: EventDriverVerifierFailed, DriverGeneration: generation, DriverErr: err}
}

// timerEventKind maps a fired timer.Name to its EventKind.
func timerEventKind(name timer.Name) EventKind {
	switch name {
	case timer.HandshakeTimeout:
		return EventTimerHandshake
	case timer.DatExpired:
		return EventTimerDat
	case timer.RatTimeout:
		return EventTimerRat
	case timer.AckTimeout:
		return EventTimerAck
	default:
		return EventTimerAck
	}
}

// TimerEvent wraps a fired timer as its matching event.
func TimerEvent(name timer.Name) Event {
	return Event{Kind: timerEventKind(name)}
}

// UserSendEvent wraps a user-submitted payload for IDSCP_DATA delivery.
func UserSendEvent(payload []byte) Event {
	return Event{Kind: EventUserSend, UserPayload: payload}
}

// UserCloseEvent requests a graceful local shutdown.
func UserCloseEvent() Event { return Event{Kind: EventUserClose} }

// UserRepeatRatEvent requests a fresh RAT round while established.
func UserRepeatRatEvent() Event { return Event{Kind: EventUserRepeatRat} }

// TransportEOFEvent signals the peer closed (or half-closed) the channel.
func TransportEOFEvent() Event { return Event{Kind: EventTransportEOF} }

// TransportTLSErrorEvent signals a fatal TLS-layer error.
func TransportTLSErrorEvent(err error) Event {
	return Event{Kind: EventTransportTLSError, TransportErr: err}
}

// TransportMalformedEvent signals the codec rejected an inbound frame.
func TransportMalformedEvent(err error) Event {
	return Event{Kind: EventTransportMalformed, TransportErr: err}
}
