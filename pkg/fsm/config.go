package fsm

import "time"

// DatProvider produces a local DAT token and declares how long it remains
// valid. An external collaborator (§6.iii of the governing design); the
// FSM calls it at START and again whenever the local DAT timer fires.
type DatProvider func() (token []byte, validity time.Duration)

// DatVerifier consumes a peer-presented DAT token and either returns how
// long it remains valid or rejects it. The caller is expected to close
// over the peer certificate captured at TLS completion so the token can be
// bound to it; the FSM itself never sees the certificate.
type DatVerifier func(peerDAT []byte) (validity time.Duration, err error)

// Config holds everything the transition table needs that isn't part of a
// single connection's mutable runtime state: timeouts, driver preference
// order, and the DAT collaborators. pkg/idscp2.Config carries the full
// ambient configuration surface and narrows it down to this subset when
// constructing a Machine.
type Config struct {
	HandshakeTimeout   time.Duration
	RatTimeout         time.Duration
	RatRefreshInterval time.Duration
	AckTimeout         time.Duration

	// SupportedProvers and SupportedVerifiers are ordered by local
	// preference, most preferred first.
	SupportedProvers   []string
	SupportedVerifiers []string

	LocalCertHash []byte

	DatProvider DatProvider
	DatVerifier DatVerifier
}

// chooseDriver returns the first id in preferred (local preference order)
// that also appears in offered (the peer's advertised set), implementing
// §4.6's "local preference wins when both sides offer the same set".
func chooseDriver(preferred, offered []string) (string, bool) {
	offeredSet := make(map[string]struct{}, len(offered))
	for _, id := range offered {
		offeredSet[id] = struct{}{}
	}
	for _, id := range preferred {
		if _, ok := offeredSet[id]; ok {
			return id, true
		}
	}
	return "", false
}
