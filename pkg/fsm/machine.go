package fsm

import (
	"time"

	"github.com/industrial-data-space/idscp2-go/pkg/timer"
	"github.com/industrial-data-space/idscp2-go/pkg/wire"
)

// Machine is the pure connection-level state machine: Step is the only
// entry point, takes one Event, mutates the machine's own bookkeeping
// (state, done-flags, chosen driver ids, generation counters) and returns
// the Actions Worker must carry out. Step performs no I/O and is safe to
// call from a table-driven test with no TLS, timers, or goroutines
// involved.
type Machine struct {
	state  State
	config Config
	now    func() time.Time

	localDAT         []byte
	localDATDeadline time.Time
	peerDATDeadline  time.Time

	chosenProverID   string
	chosenVerifierID string

	proverLive   bool
	verifierLive bool

	proverGeneration   uint64
	verifierGeneration uint64

	ratProverDone   bool
	ratVerifierDone bool
}

// NewMachine constructs a Machine in STATE_CLOSED. clock defaults to
// time.Now; tests inject a deterministic function instead.
func NewMachine(cfg Config, clock func() time.Time) *Machine {
	if clock == nil {
		clock = time.Now
	}
	return &Machine{state: StateClosed, config: cfg, now: clock}
}

// State returns the machine's current state.
func (m *Machine) State() State { return m.state }

// ChosenProverID returns the driver id negotiated during HELLO for the
// local prover side. Empty before negotiation completes.
func (m *Machine) ChosenProverID() string { return m.chosenProverID }

// ChosenVerifierID returns the driver id negotiated during HELLO for the
// local verifier side.
func (m *Machine) ChosenVerifierID() string { return m.chosenVerifierID }

// ProverGeneration returns the generation currently considered live for
// the prover side (0 if no prover has ever been started).
func (m *Machine) ProverGeneration() uint64 { return m.proverGeneration }

// VerifierGeneration returns the generation currently considered live for
// the verifier side.
func (m *Machine) VerifierGeneration() uint64 { return m.verifierGeneration }

// RecordDriverStarted is called by Worker immediately after successfully
// starting a driver, binding the registry-assigned generation to role so
// Step can later recognize notifications from that instance as live. Not
// part of Step because the generation number does not exist until the
// registry call — outside of Step's own knowledge — returns.
func (m *Machine) RecordDriverStarted(role Role, generation uint64) {
	if role == RoleProver {
		m.proverGeneration = generation
	} else {
		m.verifierGeneration = generation
	}
}

// LocalDATDeadline returns when the local DAT currently in use expires.
func (m *Machine) LocalDATDeadline() time.Time { return m.localDATDeadline }

// PeerDATDeadline returns when the peer's last-verified DAT expires.
func (m *Machine) PeerDATDeadline() time.Time { return m.peerDATDeadline }

// Step is the pure (State, Event) -> (State, []Action) transition
// function. Frames arriving in STATE_CLOSED are silently dropped, per
// §4.6's edge-case rule, except the synthetic EventStart that bootstraps
// the connection.
func (m *Machine) Step(ev Event) []Action {
	if m.state == StateClosed {
		if ev.Kind == EventStart {
			return m.start()
		}
		return nil
	}

	if acts, handled := m.handleUniversal(ev); handled {
		return acts
	}

	switch m.state {
	case StateWaitForHello:
		return m.stepWaitForHello(ev)
	case StateWaitForRat, StateWaitForRatProver, StateWaitForRatVerifier:
		return m.stepWaitForRat(ev)
	case StateWaitForDatAndRat, StateWaitForDatAndRatVerifier:
		return m.stepWaitForDatAndRat(ev)
	case StateEstablished:
		return m.stepEstablished(ev)
	default:
		return nil
	}
}

// handleUniversal implements the "Any state" rules: CLOSE received, EOF,
// TLS_ERROR, and user close all run unified shutdown regardless of the
// current state (other than STATE_CLOSED itself, already filtered out by
// the caller).
func (m *Machine) handleUniversal(ev Event) ([]Action, bool) {
	switch ev.Kind {
	case EventWireClose:
		return m.shutdown(wire.CloseUnspecified, false), true
	case EventTransportEOF:
		return m.shutdown(wire.CloseUnspecified, false), true
	case EventTransportTLSError:
		return m.shutdown(wire.CloseInternalError, false), true
	case EventTransportMalformed:
		return m.shutdown(wire.CloseInternalError, false), true
	case EventUserClose:
		return m.shutdown(wire.CloseUserShutdown, true), true
	default:
		return nil, false
	}
}

// start handles the synthetic EventStart in STATE_CLOSED: emit HELLO with
// the locally supported driver ids, local DAT, and certificate hash; arm
// the handshake timer.
func (m *Machine) start() []Action {
	token, validity := m.config.DatProvider()
	m.localDAT = token
	m.localDATDeadline = m.now().Add(validity)

	hello := wire.NewHello(m.config.SupportedProvers, m.config.SupportedVerifiers, m.config.LocalCertHash, token)
	m.state = StateWaitForHello
	return []Action{
		{Kind: ActionSendFrame, Frame: hello},
		{Kind: ActionStartTimer, TimerName: timer.HandshakeTimeout, TimerDuration: m.config.HandshakeTimeout},
	}
}

// shutdown runs the unified teardown sequence: cancel every timer, stop
// whichever driver is live, optionally emit a CLOSE frame (skipped when
// the channel is already known-bad, e.g. EOF/TLS error/malformed frame),
// surface the reason via OnError, and invoke OnClose exactly once.
func (m *Machine) shutdown(reason wire.CloseReason, emitFrame bool) []Action {
	var actions []Action

	if emitFrame {
		actions = append(actions, Action{Kind: ActionSendFrame, Frame: wire.NewClose(reason)})
	}
	for _, name := range []timer.Name{timer.HandshakeTimeout, timer.DatExpired, timer.RatTimeout, timer.AckTimeout} {
		actions = append(actions, Action{Kind: ActionCancelTimer, TimerName: name})
	}
	if m.proverLive {
		actions = append(actions, Action{Kind: ActionStopDriver, Role: RoleProver})
		m.proverLive = false
	}
	if m.verifierLive {
		actions = append(actions, Action{Kind: ActionStopDriver, Role: RoleVerifier})
		m.verifierLive = false
	}
	if reason != wire.CloseUnspecified {
		actions = append(actions, Action{Kind: ActionInvokeOnError, CloseReason: reason})
	}
	actions = append(actions, Action{Kind: ActionInvokeOnClose})

	m.state = StateClosed
	m.ratProverDone = false
	m.ratVerifierDone = false
	return actions
}
