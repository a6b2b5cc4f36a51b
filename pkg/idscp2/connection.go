// Package idscp2 is the public facade (C8/C9): Connection for application
// code driving a single peer-to-peer session, and Server for accepting
// inbound ones. Everything underneath — the FSM, the driver registries, the
// secure channel — is orchestrated here but never exposed directly.
package idscp2

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/industrial-data-space/idscp2-go/pkg/fsm"
	"github.com/industrial-data-space/idscp2-go/pkg/transport"
	"github.com/industrial-data-space/idscp2-go/pkg/wire"
)

// Connection is the application-facing handle to one IDSCP2 session.
// Send/RepeatRat/Close are safe for concurrent use: they only ever enqueue
// work onto the connection's own FSM worker. The OnMessage/OnError/OnClose
// setters are not; call them immediately after construction.
type Connection struct {
	id     string
	worker *fsm.Worker
}

// Connect dials addr, completes the mutually authenticated TLS handshake,
// and synthesizes the START event to begin the IDSCP2 handshake. It blocks
// until TLS completes, not until STATE_ESTABLISHED — use OnError/OnClose,
// or watch for OnMessage traffic, to learn when RAT has finished.
func Connect(network, addr string, cfg Config) (*Connection, error) {
	tlsConfig, err := transport.NewClientTLSConfig(cfg.transportConfig(addr))
	if err != nil {
		return nil, fmt.Errorf("idscp2: connect: %w", err)
	}
	channel, err := transport.Dial(network, addr, tlsConfig)
	if err != nil {
		return nil, fmt.Errorf("idscp2: connect: %w", err)
	}
	return newConnection(cfg, channel), nil
}

// newConnection wraps an already-handshaken channel in a Connection and
// starts its worker. Both the dialing and the accepting side synthesize
// EventStart: STATE_CLOSED only reacts to that one event (every other event
// is dropped, per pkg/fsm.Machine.Step), so each peer must independently
// send its own HELLO and move itself to STATE_WAIT_FOR_HELLO before it can
// process the other side's.
func newConnection(cfg Config, channel *transport.SecureChannel) *Connection {
	connID := uuid.NewString()
	channel.SetLogger(cfg.Logger, connID)
	if cfg.MaxFrameBytes > 0 {
		channel.SetMaxFrameBytes(uint32(cfg.MaxFrameBytes))
	}

	worker := fsm.NewWorker(connID, cfg.fsmConfig(localCertHash(cfg)), clockFunc(cfg), channel, cfg.Provers, cfg.Verifiers, cfg.Logger)
	conn := &Connection{id: connID, worker: worker}
	go worker.Run()
	worker.Enqueue(fsm.Event{Kind: fsm.EventStart})
	return conn
}

// clockFunc adapts Config.Clock (pkg/timer.Clock) into the plain
// func() time.Time pkg/fsm.Machine wants for deadline arithmetic; timer
// firing does not go through it. Left nil (defaulting to time.Now) when
// Clock is unset.
func clockFunc(cfg Config) func() time.Time {
	if cfg.Clock == nil {
		return nil
	}
	return cfg.Clock.Now
}

// ID returns the connection's unique identifier, used to correlate this
// connection's records in the protocol log.
func (c *Connection) ID() string { return c.id }

// OnMessage registers the callback invoked for every inbound IDSCP_DATA
// payload. Not safe to change concurrently with traffic; set it
// immediately after construction.
func (c *Connection) OnMessage(f func(payload []byte)) { c.worker.OnMessage = f }

// OnError registers the callback invoked whenever the FSM attaches a
// reason to a transition into STATE_CLOSED.
func (c *Connection) OnError(f func(kind ErrorKind)) {
	c.worker.OnError = func(reason wire.CloseReason) { f(closeReasonToKind(reason)) }
}

// OnClose registers the callback invoked exactly once when the connection
// reaches STATE_CLOSED.
func (c *Connection) OnClose(f func()) { c.worker.OnClose = f }

// Send submits payload for transmission as IDSCP_DATA. It fails fast with
// ErrNotEstablished outside STATE_ESTABLISHED and with ErrClosed once the
// connection has reached STATE_CLOSED, matching §4.7's "no implicit
// queueing" rule; otherwise it enqueues and returns immediately.
func (c *Connection) Send(payload []byte) error {
	switch c.worker.CurrentState() {
	case fsm.StateEstablished:
		c.worker.Enqueue(fsm.UserSendEvent(payload))
		return nil
	case fsm.StateClosed:
		return newError(ErrorKindClosed)
	default:
		return newError(ErrorKindNotEstablished)
	}
}

// RepeatRat requests a fresh RAT round from STATE_ESTABLISHED. Returns
// ErrClosed if the connection has already closed.
func (c *Connection) RepeatRat() error {
	if c.worker.CurrentState() == fsm.StateClosed {
		return newError(ErrorKindClosed)
	}
	c.worker.Enqueue(fsm.UserRepeatRatEvent())
	return nil
}

// Close requests a graceful shutdown. It is safe to call more than once;
// subsequent calls are no-ops once STATE_CLOSED has been reached.
func (c *Connection) Close() {
	if c.worker.CurrentState() == fsm.StateClosed {
		return
	}
	c.worker.Enqueue(fsm.UserCloseEvent())
}

// localCertHash returns the SHA-256 digest of the local leaf certificate
// registered under cfg.CertificateAlias, used as HELLO's attestation-cert
// hash binding (§4.6's "hash of the local attestation certificate"). This
// is the same certificate the TLS handshake presents via KeySelector, so
// the peer can correlate the HELLO binding with what it already verified.
func localCertHash(cfg Config) []byte {
	c, ok := cfg.KeyStore.Certificate(cfg.CertificateAlias)
	if !ok || len(c.Certificate) == 0 {
		sum := sha256.Sum256(nil)
		return sum[:]
	}
	sum := sha256.Sum256(c.Certificate[0])
	return sum[:]
}
