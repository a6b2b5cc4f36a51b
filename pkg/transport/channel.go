package transport

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/industrial-data-space/idscp2-go/pkg/log"
)

// ErrChannelClosed is returned by Send/Receive after Close has run.
var ErrChannelClosed = errors.New("secure channel closed")

// SecureChannel is a synchronous, mutually authenticated TLS endpoint
// carrying length-prefixed frames. It has no notion of IDSCP2 states or
// messages: the caller owns all concurrency and retry decisions.
type SecureChannel struct {
	conn   *tls.Conn
	framer *Framer

	closeOnce sync.Once
	closeErr  error
}

// Dial opens a TLS connection to addr and wraps it in a SecureChannel.
func Dial(network, addr string, tlsConfig *tls.Config) (*SecureChannel, error) {
	conn, err := tls.Dial(network, addr, tlsConfig)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", addr, err)
	}
	if err := conn.Handshake(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("transport: handshake with %s: %w", addr, err)
	}
	return newSecureChannel(conn), nil
}

// newSecureChannel wraps an already-established TLS connection.
func newSecureChannel(conn *tls.Conn) *SecureChannel {
	return &SecureChannel{conn: conn, framer: NewFramer(conn)}
}

// SetLogger attaches a protocol logger to this channel's framer, tagging
// every frame event with connID.
func (c *SecureChannel) SetLogger(logger log.Logger, connID string) {
	c.framer.SetLogger(logger, connID)
}

// SetMaxFrameBytes overrides the default 4 MiB decode cap (§6's
// maxFrameBytes configuration option).
func (c *SecureChannel) SetMaxFrameBytes(n uint32) {
	c.framer.SetMaxMessageSize(n)
}

// Send writes payload as a single length-prefixed frame.
func (c *SecureChannel) Send(payload []byte) error {
	if err := c.framer.WriteFrame(payload); err != nil {
		return fmt.Errorf("transport: send: %w", err)
	}
	return nil
}

// Receive reads the next frame. It returns io.EOF when the peer has
// closed the connection cleanly, including a half-close.
func (c *SecureChannel) Receive() ([]byte, error) {
	payload, err := c.framer.ReadFrame()
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, ErrFrameTruncated) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("transport: receive: %w", err)
	}
	return payload, nil
}

// PeerCertificate returns the certificate the remote side presented
// during the TLS handshake, or nil if none was presented.
func (c *SecureChannel) PeerCertificate() *x509.Certificate {
	state := c.conn.ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return nil
	}
	return state.PeerCertificates[0]
}

// ConnectionState returns the underlying TLS connection state, useful for
// ALPN/version assertions at connection setup.
func (c *SecureChannel) ConnectionState() tls.ConnectionState {
	return c.conn.ConnectionState()
}

// Close shuts down the underlying TLS connection. Idempotent.
func (c *SecureChannel) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

// Listener accepts inbound TLS connections and hands back SecureChannels.
// It performs no IDSCP2-level logic; pkg/idscp2.Server layers connection
// construction and the FSM on top.
type Listener struct {
	inner net.Listener
	tls   *tls.Config
}

// Listen binds addr and wraps the accept loop to perform the TLS
// handshake on every inbound connection before returning it.
func Listen(network, addr string, tlsConfig *tls.Config) (*Listener, error) {
	inner, err := net.Listen(network, addr)
	if err != nil {
		return nil, fmt.Errorf("transport: listen %s: %w", addr, err)
	}
	return &Listener{inner: inner, tls: tlsConfig}, nil
}

// Accept blocks until an inbound connection completes its TLS handshake
// and returns it as a SecureChannel.
func (l *Listener) Accept() (*SecureChannel, error) {
	raw, err := l.inner.Accept()
	if err != nil {
		return nil, fmt.Errorf("transport: accept: %w", err)
	}
	conn := tls.Server(raw, l.tls)
	if err := conn.Handshake(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("transport: handshake from %s: %w", raw.RemoteAddr(), err)
	}
	return newSecureChannel(conn), nil
}

// Addr returns the listener's bound address.
func (l *Listener) Addr() net.Addr {
	return l.inner.Addr()
}

// Close stops accepting new connections.
func (l *Listener) Close() error {
	return l.inner.Close()
}
