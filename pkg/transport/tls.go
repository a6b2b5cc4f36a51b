package transport

import (
	"crypto/tls"
	"fmt"

	"github.com/industrial-data-space/idscp2-go/pkg/cert"
)

// ALPNProtocol is the ALPN protocol identifier IDSCP2 negotiates over TLS.
const ALPNProtocol = "idscp2/2.0"

// DefaultPort is the default IDSCP2 listening port.
const DefaultPort = 29292

// Config holds the material needed to build an IDSCP2 TLS configuration.
// Certificate selection is delegated to KeySelector rather than a single
// static tls.Certificate, so one TrustStore/KeyStore pair can serve many
// connections with different peer requirements.
type Config struct {
	// KeySelector resolves this endpoint's certificate by alias.
	KeySelector *cert.KeySelector

	// TrustStore verifies the peer's certificate chain.
	TrustStore *cert.TrustStore

	// ServerName is sent as SNI on outgoing connections. IDSCP2 does not
	// use it for peer identification (see TrustStore), only for routing.
	ServerName string

	// MinVersion is the minimum accepted TLS version. Defaults to TLS 1.2
	// if zero.
	MinVersion uint16

	// InsecureSkipVerify disables all peer verification. Tests only.
	InsecureSkipVerify bool
}

func (cfg *Config) minVersion() uint16 {
	if cfg.MinVersion != 0 {
		return cfg.MinVersion
	}
	return tls.VersionTLS12
}

// NewServerTLSConfig builds a tls.Config for an IDSCP2 server endpoint:
// mutual authentication required, certificate chosen per-connection by
// cfg.KeySelector, peer verified by cfg.TrustStore.
func NewServerTLSConfig(cfg *Config) (*tls.Config, error) {
	if cfg == nil {
		return nil, fmt.Errorf("transport: Config is required")
	}
	if cfg.KeySelector == nil {
		return nil, fmt.Errorf("transport: KeySelector is required")
	}

	tlsConfig := &tls.Config{
		MinVersion:             cfg.minVersion(),
		ClientAuth:             tls.RequireAnyClientCert,
		GetCertificate:         cfg.KeySelector.GetCertificate,
		NextProtos:             []string{ALPNProtocol},
		InsecureSkipVerify:     true, // peer verification happens in VerifyPeerCertificate below
		SessionTicketsDisabled: true,
	}

	if cfg.InsecureSkipVerify {
		tlsConfig.ClientAuth = tls.RequestClientCert
		return tlsConfig, nil
	}
	if cfg.TrustStore == nil {
		return nil, fmt.Errorf("transport: TrustStore is required unless InsecureSkipVerify is set")
	}
	tlsConfig.ClientCAs = cfg.TrustStore.Pool()
	tlsConfig.VerifyPeerCertificate = cfg.TrustStore.VerifyPeerCertificate()

	return tlsConfig, nil
}

// NewClientTLSConfig builds a tls.Config for an IDSCP2 client endpoint.
func NewClientTLSConfig(cfg *Config) (*tls.Config, error) {
	if cfg == nil {
		return nil, fmt.Errorf("transport: Config is required")
	}
	if cfg.KeySelector == nil {
		return nil, fmt.Errorf("transport: KeySelector is required")
	}

	tlsConfig := &tls.Config{
		MinVersion:             cfg.minVersion(),
		GetClientCertificate:   cfg.KeySelector.GetClientCertificate,
		ServerName:             cfg.ServerName,
		NextProtos:             []string{ALPNProtocol},
		InsecureSkipVerify:     true,
		SessionTicketsDisabled: true,
	}

	if cfg.InsecureSkipVerify {
		return tlsConfig, nil
	}
	if cfg.TrustStore == nil {
		return nil, fmt.Errorf("transport: TrustStore is required unless InsecureSkipVerify is set")
	}
	tlsConfig.RootCAs = cfg.TrustStore.Pool()
	tlsConfig.VerifyPeerCertificate = cfg.TrustStore.VerifyPeerCertificate()

	return tlsConfig, nil
}

// VerifyALPN checks that the negotiated ALPN protocol is the IDSCP2 one.
func VerifyALPN(state tls.ConnectionState) error {
	if state.NegotiatedProtocol != ALPNProtocol {
		return fmt.Errorf("ALPN protocol %q is not %q", state.NegotiatedProtocol, ALPNProtocol)
	}
	return nil
}
