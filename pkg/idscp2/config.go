package idscp2

import (
	"crypto/tls"
	"time"

	"github.com/industrial-data-space/idscp2-go/pkg/cert"
	"github.com/industrial-data-space/idscp2-go/pkg/driver"
	"github.com/industrial-data-space/idscp2-go/pkg/fsm"
	"github.com/industrial-data-space/idscp2-go/pkg/log"
	"github.com/industrial-data-space/idscp2-go/pkg/timer"
	"github.com/industrial-data-space/idscp2-go/pkg/transport"
)

// Config collects every option a Connection or Server needs: the §6
// wire/timeout surface, the §9 open-question flag, and the ambient
// ecosystem collaborators (§10) layered on top of it. There is no
// file/viper loader — callers build a Config struct literal (or start from
// Default() and override fields), the way the teacher's service package
// builds DeviceConfig/ControllerConfig.
type Config struct {
	// HandshakeTimeout bounds STATE_WAIT_FOR_HELLO.
	HandshakeTimeout time.Duration
	// RatTimeout is the duration of the RAT timer armed when the peer's
	// HELLO is accepted. The FSM ignores that timer firing while RAT is
	// still running and later RAT rounds do not re-arm it, so it does not
	// end a stalled RAT round; on reaching STATE_ESTABLISHED the timer is
	// re-armed at RatRefreshInterval.
	RatTimeout time.Duration
	// RatRefreshInterval is how often STATE_ESTABLISHED re-runs RAT.
	RatRefreshInterval time.Duration
	// AckTimeout is carried into the FSM configuration, but no transition
	// arms the ACK timer; the FSM only cancels it on shutdown (§4.6 names
	// it without prescribing its use).
	AckTimeout time.Duration

	// MaxFrameBytes bounds decoded wire frame size.
	MaxFrameBytes int

	// SupportedProvers and SupportedVerifiers are ordered by local
	// preference, most preferred first.
	SupportedProvers   []string
	SupportedVerifiers []string

	// CertificateAlias names the key-store entry SecureChannel's
	// KeySelector forces during the TLS handshake.
	CertificateAlias string
	// KeyType restricts alias resolution to a given algorithm family; left
	// at cert.KeyTypeUnknown to accept whatever the alias actually holds.
	KeyType cert.KeyType
	// PermissiveAliasMatch controls whether the forced alias is presented
	// even when its issuer is absent from the peer's acceptable-CA list
	// (§9 open question; the source's own behavior is kept as the
	// default since no implementer guidance called for tightening it).
	PermissiveAliasMatch bool

	KeyStore   cert.KeyStore
	TrustStore *cert.TrustStore

	// MinTLSVersion defaults to tls.VersionTLS13; set to tls.VersionTLS12
	// to relax to the wire spec's bare "TLS >= 1.2" floor.
	MinTLSVersion uint16

	// DatProvider and DatVerifier are the external DAT collaborators
	// (§6.i/ii); both are required.
	DatProvider fsm.DatProvider
	DatVerifier fsm.DatVerifier

	// Provers and Verifiers are the process-wide driver registries this
	// connection's FSM starts drivers from. Defaulted to a fresh registry
	// pre-populated with the Dummy driver pair when left nil.
	Provers   *driver.ProverRegistry
	Verifiers *driver.VerifierRegistry

	// Logger receives protocol-event records (C11); nil disables capture.
	Logger log.Logger
	// Clock supplies the current time for the FSM's DAT deadline
	// arithmetic; nil defaults to the system clock. The connection's timer
	// service does not use it and always runs on the system clock.
	Clock timer.Clock
}

// Default returns a Config with the spec's documented defaults
// (handshakeTimeoutMs=5000, ratTimeoutMs=20000, ratRefreshIntervalMs=
// 600000, maxFrameBytes=4 MiB) and the Dummy driver pair registered under
// both registries so a caller can reach STATE_ESTABLISHED with zero extra
// wiring, the way the teacher's DefaultDeviceConfig/DefaultControllerConfig
// provide a batteries-included starting point.
func Default() Config {
	provers := driver.NewProverRegistry(log.NoopLogger{})
	verifiers := driver.NewVerifierRegistry(log.NoopLogger{})
	provers.Register(driver.DummyID, driver.NewDummyFactory(true), nil)
	verifiers.Register(driver.DummyID, driver.NewDummyFactory(false), nil)

	return Config{
		HandshakeTimeout:     5 * time.Second,
		RatTimeout:           20 * time.Second,
		RatRefreshInterval:   10 * time.Minute,
		AckTimeout:           2 * time.Second,
		MaxFrameBytes:        4 << 20,
		SupportedProvers:     []string{driver.DummyID},
		SupportedVerifiers:   []string{driver.DummyID},
		PermissiveAliasMatch: true,
		MinTLSVersion:        tls.VersionTLS13,
		Provers:              provers,
		Verifiers:            verifiers,
		Logger:               log.NoopLogger{},
	}
}

// fsmConfig narrows Config down to the subset pkg/fsm.Machine needs,
// stamping in the local certificate hash computed from the TLS
// configuration's own leaf certificate.
func (c Config) fsmConfig(localCertHash []byte) fsm.Config {
	return fsm.Config{
		HandshakeTimeout:   c.HandshakeTimeout,
		RatTimeout:         c.RatTimeout,
		RatRefreshInterval: c.RatRefreshInterval,
		AckTimeout:         c.AckTimeout,
		SupportedProvers:   c.SupportedProvers,
		SupportedVerifiers: c.SupportedVerifiers,
		LocalCertHash:      localCertHash,
		DatProvider:        c.DatProvider,
		DatVerifier:        c.DatVerifier,
	}
}

// transportConfig builds the pkg/transport.Config this connection's
// SecureChannel dials or accepts through: TrustStore's verifier hook plus a
// KeySelector forcing CertificateAlias, pinned to MinTLSVersion and the
// idscp2/2.0 ALPN identifier (§6 NEW: ALPN pinning, following the teacher's
// own ALPN-pinning pattern in pkg/transport/tls.go).
func (c Config) transportConfig(serverName string) *transport.Config {
	selector := cert.NewKeySelector(c.KeyStore, c.CertificateAlias)
	selector.PermissiveAliasMatch = c.PermissiveAliasMatch
	return &transport.Config{
		KeySelector: selector,
		TrustStore:  c.TrustStore,
		ServerName:  serverName,
		MinVersion:  c.MinTLSVersion,
	}
}
