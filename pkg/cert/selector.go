package cert

import (
	"bytes"
	"crypto/tls"
	"crypto/x509"
	"sync"
)

// KeySelector implements tls.Config's GetCertificate and
// GetClientCertificate hooks around a KeyStore: it forces a single
// configured alias whenever the requested key type matches, and otherwise
// makes no selection: GetCertificate returns (nil, nil) so the TLS stack
// falls back to tls.Config.Certificates, and GetClientCertificate returns
// an empty certificate so no client certificate is sent.
//
// PermissiveAliasMatch controls whether GetClientCertificate ignores the
// peer's advertised acceptable-CA list. It defaults to true: devices are
// commonly configured with a single operational identity, and refusing to
// present it over a CA-list mismatch would make an otherwise-valid
// handshake fail for no protocol-relevant reason. Set it false to enforce
// that the alias's issuer appears in CertificateRequestInfo.AcceptableCAs.
type KeySelector struct {
	Store                KeyStore
	Alias                string
	PermissiveAliasMatch bool

	once     sync.Once
	resolved *tls.Certificate
	keyType  KeyType
}

// NewKeySelector returns a KeySelector that forces store's certificate
// registered under alias.
func NewKeySelector(store KeyStore, alias string) *KeySelector {
	return &KeySelector{Store: store, Alias: alias, PermissiveAliasMatch: true}
}

func (s *KeySelector) resolve() {
	s.once.Do(func() {
		cert, ok := s.Store.Certificate(s.Alias)
		if !ok {
			return
		}
		kt, err := KeyTypeOf(cert)
		if err != nil {
			return
		}
		s.resolved, s.keyType = cert, kt
	})
}

// GetCertificate implements the tls.Config.GetCertificate hook.
func (s *KeySelector) GetCertificate(hello *tls.ClientHelloInfo) (*tls.Certificate, error) {
	s.resolve()
	if s.resolved == nil {
		return nil, nil
	}
	if !acceptsKeyType(hello.SignatureSchemes, s.keyType) {
		return nil, nil
	}
	return s.resolved, nil
}

// GetClientCertificate implements the tls.Config.GetClientCertificate hook.
func (s *KeySelector) GetClientCertificate(cri *tls.CertificateRequestInfo) (*tls.Certificate, error) {
	s.resolve()
	if s.resolved == nil {
		return &tls.Certificate{}, nil
	}
	if !acceptsKeyType(cri.SignatureSchemes, s.keyType) {
		return &tls.Certificate{}, nil
	}
	if !s.PermissiveAliasMatch && len(cri.AcceptableCAs) > 0 {
		if !issuerAccepted(s.resolved, cri.AcceptableCAs) {
			return &tls.Certificate{}, nil
		}
	}
	return s.resolved, nil
}

// acceptsKeyType reports whether any of the offered signature schemes is
// compatible with kt. An empty scheme list (older clients) is permissive.
func acceptsKeyType(schemes []tls.SignatureScheme, kt KeyType) bool {
	if len(schemes) == 0 {
		return true
	}
	for _, scheme := range schemes {
		switch kt {
		case KeyTypeRSA:
			switch scheme {
			case tls.PKCS1WithSHA256, tls.PKCS1WithSHA384, tls.PKCS1WithSHA512,
				tls.PSSWithSHA256, tls.PSSWithSHA384, tls.PSSWithSHA512:
				return true
			}
		case KeyTypeEC:
			switch scheme {
			case tls.ECDSAWithP256AndSHA256, tls.ECDSAWithP384AndSHA384, tls.ECDSAWithP521AndSHA512:
				return true
			}
		}
	}
	return false
}

// issuerAccepted reports whether cert's issuer DN appears in the
// raw-DER-encoded acceptable-CA list a server advertised in a
// CertificateRequest.
func issuerAccepted(cert *tls.Certificate, acceptableCAs [][]byte) bool {
	if cert.Leaf == nil {
		return false
	}
	for _, raw := range acceptableCAs {
		ca, err := x509.ParseCertificate(raw)
		if err != nil {
			continue
		}
		if bytes.Equal(ca.RawSubject, cert.Leaf.RawIssuer) {
			return true
		}
	}
	return false
}
