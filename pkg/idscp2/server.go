package idscp2

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/industrial-data-space/idscp2-go/pkg/log"
	"github.com/industrial-data-space/idscp2-go/pkg/transport"
)

// Server binds a TLS listener, performs the handshake on every inbound
// connection, and constructs a Connection with its FSM in STATE_CLOSED for
// each one, synthesizing START on it exactly as Connect does on the dialing
// side (§4.8): both peers send their own HELLO independently and move to
// STATE_WAIT_FOR_HELLO before either can process the other's.
type Server struct {
	listener *transport.Listener
	cfg      Config
	logger   log.Logger
}

// Listen binds addr and returns a Server ready to Accept connections.
func Listen(network, addr string, cfg Config) (*Server, error) {
	tlsConfig, err := transport.NewServerTLSConfig(cfg.transportConfig(""))
	if err != nil {
		return nil, fmt.Errorf("idscp2: listen: %w", err)
	}
	l, err := transport.Listen(network, addr, tlsConfig)
	if err != nil {
		return nil, fmt.Errorf("idscp2: listen: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NoopLogger{}
	}
	return &Server{listener: l, cfg: cfg, logger: logger}, nil
}

// Addr returns the server's bound address.
func (s *Server) Addr() string { return s.listener.Addr().String() }

// Serve accepts inbound connections in a loop, invoking onConnection for
// each one, until Close is called. Per-connection errors (a failed TLS
// handshake, a reset before handshake completes) are logged and do not
// terminate the loop (§4.8: "per-connection errors do not terminate the
// listener").
func (s *Server) Serve(onConnection func(*Connection)) error {
	for {
		channel, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Log(errorEvent("accept failed: " + err.Error()))
			continue
		}
		conn := newConnection(s.cfg, channel)
		onConnection(conn)
	}
}

// Close stops accepting new connections. Already-constructed connections
// are unaffected.
func (s *Server) Close() error {
	return s.listener.Close()
}

// errorEvent is a small helper so Serve's accept-failure path produces a
// well-formed protocol-log record instead of hand-building one inline.
func errorEvent(message string) log.Event {
	return log.Event{
		Timestamp: time.Now(),
		Layer:     log.LayerTransport,
		Category:  log.CategoryError,
		Error: &log.ErrorEventData{
			Layer:   log.LayerTransport,
			Message: message,
		},
	}
}
