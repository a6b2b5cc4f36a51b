package cert

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
)

// Trust errors.
var (
	ErrNoPeerCertificate = errors.New("no peer certificate presented")
	ErrUntrustedPeer     = errors.New("peer certificate not signed by a trusted root")
)

// TrustStore holds the set of root certificates IDSCP2 peers are verified
// against. IDSCP2 authenticates by certificate chain, not by DNS name, so
// verification never considers the hostname a peer connected through.
type TrustStore struct {
	roots *x509.CertPool
}

// NewTrustStore returns an empty TrustStore.
func NewTrustStore() *TrustStore {
	return &TrustStore{roots: x509.NewCertPool()}
}

// AddCertificate adds a trusted root certificate.
func (t *TrustStore) AddCertificate(c *x509.Certificate) {
	t.roots.AddCert(c)
}

// AddPEM adds every CERTIFICATE block found in a PEM-encoded byte slice.
func (t *TrustStore) AddPEM(pemData []byte) error {
	if !t.roots.AppendCertsFromPEM(pemData) {
		return fmt.Errorf("%w: no certificates found in PEM data", ErrInvalidPEM)
	}
	return nil
}

// Pool returns the underlying certificate pool, suitable for tls.Config's
// RootCAs/ClientCAs fields.
func (t *TrustStore) Pool() *x509.CertPool {
	return t.roots
}

// VerifyPeerCertificate builds a tls.Config.VerifyPeerCertificate callback
// that chains the presented leaf up to this store's roots, bypassing Go's
// built-in hostname check (tls.Config.InsecureSkipVerify must be set
// alongside this hook; the chain check below is the real verification).
func (t *TrustStore) VerifyPeerCertificate() func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
	return func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		if len(rawCerts) == 0 {
			return ErrNoPeerCertificate
		}
		leaf, err := x509.ParseCertificate(rawCerts[0])
		if err != nil {
			return fmt.Errorf("parse peer certificate: %w", err)
		}

		intermediates := x509.NewCertPool()
		for _, raw := range rawCerts[1:] {
			c, err := x509.ParseCertificate(raw)
			if err != nil {
				return fmt.Errorf("parse intermediate certificate: %w", err)
			}
			intermediates.AddCert(c)
		}

		opts := x509.VerifyOptions{
			Roots:         t.roots,
			Intermediates: intermediates,
			KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth, x509.ExtKeyUsageServerAuth},
		}
		if _, err := leaf.Verify(opts); err != nil {
			return fmt.Errorf("%w: %v", ErrUntrustedPeer, err)
		}
		return nil
	}
}

// TLSConfig returns the common skeleton of a mutually authenticated
// tls.Config: client auth required, hostname verification disabled in
// favor of VerifyPeerCertificate, and this store wired as both RootCAs and
// ClientCAs.
func (t *TrustStore) TLSConfig() *tls.Config {
	return &tls.Config{
		ClientAuth:            tls.RequireAnyClientCert,
		InsecureSkipVerify:    true,
		VerifyPeerCertificate: t.VerifyPeerCertificate(),
		RootCAs:               t.roots,
		ClientCAs:             t.roots,
	}
}
