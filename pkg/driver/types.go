// Package driver defines the pluggable remote-attestation driver contract
// (C3/C4/C5): a process-wide registry mapping driver id to factory, and the
// runtime contract a prover or verifier implementation must satisfy.
package driver

import (
	"context"
	"errors"
)

// Errors returned by driver construction and lookup.
var (
	ErrDriverNotFound = errors.New("driver: no factory registered for id")
	ErrDriverExists   = errors.New("driver: id already registered")
	ErrDriverStart    = errors.New("driver: start failed")
)

// EventKind tags the payload carried by an Event delivered to a Listener.
type EventKind uint8

const (
	// EventMsg carries an outbound RAT frame payload to ship to the peer.
	EventMsg EventKind = iota
	// EventOK signals that the driver reached its terminal successful state.
	EventOK
	// EventFailed signals that the driver failed; Err explains why.
	EventFailed
)

// String returns a human-readable name for the event kind.
func (k EventKind) String() string {
	switch k {
	case EventMsg:
		return "MSG"
	case EventOK:
		return "OK"
	case EventFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Event is what a driver hands to its Listener.
type Event struct {
	Kind    EventKind
	Payload []byte
	Err     error
}

// Listener receives asynchronous notifications from a running driver. A
// prover driver calls OnProverMessage; a verifier driver calls
// OnVerifierMessage. The FSM implements Listener and is responsible for
// discarding events whose handle generation no longer matches the live one.
type Listener interface {
	OnProverMessage(id string, generation uint64, ev Event)
	OnVerifierMessage(id string, generation uint64, ev Event)
}

// Driver is a long-running attestation task. Delegate forwards a peer RAT
// message to it; Stop requests cooperative termination within ctx's
// deadline. Implementations must not block the caller of Delegate: either
// queue internally and process on their own goroutine, or, as the Dummy and
// SPAKE2 drivers do, handle the message synchronously and return promptly.
type Driver interface {
	Delegate(msg []byte)
	Stop(ctx context.Context) error
}

// Configurable is implemented by drivers that accept a one-time
// configuration value before being started.
type Configurable interface {
	Configure(cfg any) error
}

// Factory constructs a new driver instance bound to listener. id is the
// driver's own registered id, generation is the handle's generation
// counter, pre-bound so the driver need not track it itself.
type Factory func(id string, generation uint64, cfg any, listener Listener) (Driver, error)
