package fsm

import (
	"github.com/industrial-data-space/idscp2-go/pkg/timer"
	"github.com/industrial-data-space/idscp2-go/pkg/wire"
)

// stepWaitForHello handles STATE_WAIT_FOR_HELLO: negotiate driver ids by
// intersecting local preference with the peer's offer, validate the
// peer's DAT, and start both driver sides.
//
// Start order (verifier before prover) follows the literal order of the
// governing design note's own sentence describing this transition; either
// order is explicitly allowed since both must be running before the
// handler returns.
func (m *Machine) stepWaitForHello(ev Event) []Action {
	switch ev.Kind {
	case EventWireHello:
		hello, ok := ev.Wire.(*wire.Hello)
		if !ok {
			return nil
		}
		proverID, okP := chooseDriver(m.config.SupportedProvers, hello.SupportedVerifiers)
		verifierID, okV := chooseDriver(m.config.SupportedVerifiers, hello.SupportedProvers)
		if !okP || !okV {
			return m.shutdown(wire.CloseNoMatchingRat, true)
		}

		validity, err := m.config.DatVerifier(hello.DAT)
		if err != nil {
			return m.shutdown(wire.CloseDatInvalid, true)
		}
		m.peerDATDeadline = m.now().Add(validity)
		m.chosenProverID = proverID
		m.chosenVerifierID = verifierID
		m.ratProverDone = false
		m.ratVerifierDone = false
		m.proverLive = true
		m.verifierLive = true
		m.state = StateWaitForRat

		return []Action{
			{Kind: ActionCancelTimer, TimerName: timer.HandshakeTimeout},
			{Kind: ActionStartDriver, Role: RoleVerifier, DriverID: verifierID},
			{Kind: ActionStartDriver, Role: RoleProver, DriverID: proverID},
			{Kind: ActionStartTimer, TimerName: timer.RatTimeout, TimerDuration: m.config.RatTimeout},
			{Kind: ActionStartTimer, TimerName: timer.DatExpired, TimerDuration: m.localDATDeadline.Sub(m.now())},
		}

	case EventTimerHandshake:
		return m.shutdown(wire.CloseTimeout, true)

	default:
		return nil
	}
}

// stepWaitForRat handles STATE_WAIT_FOR_RAT and its two substates: forward
// RAT frames to the matching local driver, ship outbound driver messages
// as RAT frames, and track the per-side done flags toward STATE_ESTABLISHED.
func (m *Machine) stepWaitForRat(ev Event) []Action {
	switch ev.Kind {
	case EventWireRatProver:
		if !m.verifierLive {
			return nil
		}
		data, ok := payloadOf(ev.Wire)
		if !ok {
			return nil
		}
		return []Action{{Kind: ActionDelegateDriver, Role: RoleVerifier, Payload: data}}

	case EventWireRatVerifier:
		if !m.proverLive {
			return nil
		}
		data, ok := payloadOf(ev.Wire)
		if !ok {
			return nil
		}
		return []Action{{Kind: ActionDelegateDriver, Role: RoleProver, Payload: data}}

	case EventDriverProverMsg:
		if !m.proverLive || ev.DriverGeneration != m.proverGeneration {
			return nil
		}
		return []Action{{Kind: ActionSendFrame, Frame: wire.NewRatProver(ev.DriverPayload)}}

	case EventDriverVerifierMsg:
		if !m.verifierLive || ev.DriverGeneration != m.verifierGeneration {
			return nil
		}
		return []Action{{Kind: ActionSendFrame, Frame: wire.NewRatVerifier(ev.DriverPayload)}}

	case EventDriverProverOK:
		if !m.proverLive || ev.DriverGeneration != m.proverGeneration {
			return nil
		}
		return m.onRatDriverOK(RoleProver)

	case EventDriverVerifierOK:
		if !m.verifierLive || ev.DriverGeneration != m.verifierGeneration {
			return nil
		}
		return m.onRatDriverOK(RoleVerifier)

	case EventDriverProverFailed:
		if !m.proverLive || ev.DriverGeneration != m.proverGeneration {
			return nil
		}
		return m.shutdown(wire.CloseRatFailed, true)

	case EventDriverVerifierFailed:
		if !m.verifierLive || ev.DriverGeneration != m.verifierGeneration {
			return nil
		}
		return m.shutdown(wire.CloseRatFailed, true)

	default:
		return nil
	}
}

// stepWaitForDatAndRat handles STATE_WAIT_FOR_DAT_AND_RAT and
// STATE_WAIT_FOR_DAT_AND_RAT_VERIFIER: a DAT renewal in progress mid
// session. RAT framing and failure handling mirror stepWaitForRat; the
// two states are not further split by which side finished first, matching
// the governing design's naming (it names only these two, not a third
// "pending" substate).
func (m *Machine) stepWaitForDatAndRat(ev Event) []Action {
	switch ev.Kind {
	case EventWireRatProver:
		if !m.verifierLive {
			return nil
		}
		data, ok := payloadOf(ev.Wire)
		if !ok {
			return nil
		}
		return []Action{{Kind: ActionDelegateDriver, Role: RoleVerifier, Payload: data}}

	case EventWireRatVerifier:
		if !m.proverLive {
			return nil
		}
		data, ok := payloadOf(ev.Wire)
		if !ok {
			return nil
		}
		return []Action{{Kind: ActionDelegateDriver, Role: RoleProver, Payload: data}}

	case EventDriverProverMsg:
		if !m.proverLive || ev.DriverGeneration != m.proverGeneration {
			return nil
		}
		return []Action{{Kind: ActionSendFrame, Frame: wire.NewRatProver(ev.DriverPayload)}}

	case EventDriverVerifierMsg:
		if !m.verifierLive || ev.DriverGeneration != m.verifierGeneration {
			return nil
		}
		return []Action{{Kind: ActionSendFrame, Frame: wire.NewRatVerifier(ev.DriverPayload)}}

	case EventDriverProverOK:
		if !m.proverLive || ev.DriverGeneration != m.proverGeneration {
			return nil
		}
		return m.onDatDriverOK(RoleProver)

	case EventDriverVerifierOK:
		if !m.verifierLive || ev.DriverGeneration != m.verifierGeneration {
			return nil
		}
		return m.onDatDriverOK(RoleVerifier)

	case EventDriverProverFailed:
		if !m.proverLive || ev.DriverGeneration != m.proverGeneration {
			return nil
		}
		return m.shutdown(wire.CloseRatFailed, true)

	case EventDriverVerifierFailed:
		if !m.verifierLive || ev.DriverGeneration != m.verifierGeneration {
			return nil
		}
		return m.shutdown(wire.CloseRatFailed, true)

	default:
		return nil
	}
}

// stepEstablished handles STATE_ESTABLISHED: user payload exchange, and
// the three ways a fresh RAT round (or a DAT-driven one) can begin.
func (m *Machine) stepEstablished(ev Event) []Action {
	switch ev.Kind {
	case EventWireData:
		data, ok := ev.Wire.(*wire.Data)
		if !ok {
			return nil
		}
		return []Action{{Kind: ActionEmitUserMessage, Payload: data.Payload}}

	case EventUserSend:
		return []Action{{Kind: ActionSendFrame, Frame: wire.NewData(ev.UserPayload)}}

	case EventWireReRat:
		// The peer already knows; just follow it into a fresh round.
		return m.startFreshRat(StateWaitForRat)

	case EventUserRepeatRat, EventTimerRat:
		// Locally initiated: tell the peer first so its own FSM leaves
		// STATE_ESTABLISHED too and is listening for RAT frames again -
		// a real (non-dummy) driver's evidence exchange depends on the
		// peer being in STATE_WAIT_FOR_RAT to receive it.
		actions := []Action{{Kind: ActionSendFrame, Frame: wire.NewReRat()}}
		return append(actions, m.startFreshRat(StateWaitForRat)...)

	case EventWireDATExpired:
		// The peer's DAT expired; re-verify it without re-proving ours.
		return m.startFreshRat(StateWaitForDatAndRatVerifier)

	case EventTimerDat:
		// Our own DAT expired: issue a fresh one, tell the peer, and
		// re-run RAT so the peer's verifier can check it.
		token, validity := m.config.DatProvider()
		m.localDAT = token
		m.localDATDeadline = m.now().Add(validity)

		actions := []Action{
			{Kind: ActionSendFrame, Frame: wire.NewDATExpired()},
			{Kind: ActionStartTimer, TimerName: timer.DatExpired, TimerDuration: validity},
		}
		return append(actions, m.startFreshRat(StateWaitForDatAndRat)...)

	default:
		return nil
	}
}

// startFreshRat begins a new RAT round, starting both driver sides and
// transitioning to target (STATE_WAIT_FOR_RAT or one of the DAT-renewal
// states).
func (m *Machine) startFreshRat(target State) []Action {
	m.ratProverDone = false
	m.ratVerifierDone = false
	m.proverLive = true
	m.verifierLive = true
	m.state = target
	return []Action{
		{Kind: ActionStartDriver, Role: RoleVerifier, DriverID: m.chosenVerifierID},
		{Kind: ActionStartDriver, Role: RoleProver, DriverID: m.chosenProverID},
	}
}

// onRatDriverOK records a prover/verifier success during STATE_WAIT_FOR_RAT
// and its substates, moving to the named pending substate when only one
// side has finished, or to STATE_ESTABLISHED once both have.
func (m *Machine) onRatDriverOK(role Role) []Action {
	m.markDone(role)
	if m.bothDone() {
		return m.establish()
	}
	if role == RoleProver {
		m.state = StateWaitForRatVerifier
	} else {
		m.state = StateWaitForRatProver
	}
	return nil
}

// onDatDriverOK records a prover/verifier success during a DAT-renewal
// round. The two DAT-renewal states are not split further by which side
// finished first, so the machine simply waits in place until both are done.
func (m *Machine) onDatDriverOK(role Role) []Action {
	m.markDone(role)
	if m.bothDone() {
		return m.establish()
	}
	return nil
}

func (m *Machine) markDone(role Role) {
	if role == RoleProver {
		m.ratProverDone = true
	} else {
		m.ratVerifierDone = true
	}
}

func (m *Machine) bothDone() bool { return m.ratProverDone && m.ratVerifierDone }

// establish stops both drivers, restarts the rat timer at the configured
// refresh interval, and transitions to STATE_ESTABLISHED.
func (m *Machine) establish() []Action {
	m.proverLive = false
	m.verifierLive = false
	m.ratProverDone = false
	m.ratVerifierDone = false
	m.state = StateEstablished
	return []Action{
		{Kind: ActionStopDriver, Role: RoleProver},
		{Kind: ActionStopDriver, Role: RoleVerifier},
		{Kind: ActionStartTimer, TimerName: timer.RatTimeout, TimerDuration: m.config.RatRefreshInterval},
	}
}

// payloadOf extracts the opaque evidence bytes from a RAT_PROVER or
// RAT_VERIFIER message.
func payloadOf(msg wire.Message) ([]byte, bool) {
	switch m := msg.(type) {
	case *wire.RatProver:
		return m.Data, true
	case *wire.RatVerifier:
		return m.Data, true
	default:
		return nil, false
	}
}
