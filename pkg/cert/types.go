package cert

import (
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"fmt"
)

// KeyType identifies the public key algorithm of a certificate, so a
// KeySelector can tell whether an alias satisfies what the peer's TLS
// handshake is asking for.
type KeyType uint8

const (
	KeyTypeUnknown KeyType = iota
	KeyTypeRSA
	KeyTypeEC
)

// String returns a human-readable key type name.
func (kt KeyType) String() string {
	switch kt {
	case KeyTypeRSA:
		return "RSA"
	case KeyTypeEC:
		return "EC"
	default:
		return "UNKNOWN"
	}
}

// KeyTypeOf inspects a certificate's leaf public key and reports its KeyType.
func KeyTypeOf(cert *tls.Certificate) (KeyType, error) {
	if cert.Leaf == nil {
		if len(cert.Certificate) == 0 {
			return KeyTypeUnknown, fmt.Errorf("certificate has no leaf")
		}
		leaf, err := x509.ParseCertificate(cert.Certificate[0])
		if err != nil {
			return KeyTypeUnknown, fmt.Errorf("parse leaf certificate: %w", err)
		}
		cert.Leaf = leaf
	}
	switch cert.Leaf.PublicKey.(type) {
	case *rsa.PublicKey:
		return KeyTypeRSA, nil
	case *ecdsa.PublicKey:
		return KeyTypeEC, nil
	default:
		return KeyTypeUnknown, fmt.Errorf("unsupported public key algorithm %T", cert.Leaf.PublicKey)
	}
}
