package cert

import (
	"crypto/tls"
	"fmt"
	"sync"
)

// KeyStore resolves a printable alias to a certificate/private-key pair.
// Implementations must be safe for concurrent use: a KeySelector may be
// consulted by many simultaneous handshakes.
type KeyStore interface {
	// Certificate returns the certificate stored under alias. The second
	// return value is false if no certificate exists for that alias.
	Certificate(alias string) (*tls.Certificate, bool)
}

// MemoryKeyStore is a KeyStore backed by an in-memory map, populated at
// startup from loaded certificate/key files.
type MemoryKeyStore struct {
	mu    sync.RWMutex
	certs map[string]*tls.Certificate
}

// NewMemoryKeyStore returns an empty MemoryKeyStore.
func NewMemoryKeyStore() *MemoryKeyStore {
	return &MemoryKeyStore{certs: make(map[string]*tls.Certificate)}
}

// Certificate implements KeyStore.
func (s *MemoryKeyStore) Certificate(alias string) (*tls.Certificate, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.certs[alias]
	return c, ok
}

// Put registers cert under alias, replacing any previous entry.
func (s *MemoryKeyStore) Put(alias string, cert *tls.Certificate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.certs[alias] = cert
}

// LoadCertificate loads a PEM-encoded certificate chain and private key
// from disk and registers the resulting pair under alias. It accepts both
// RSA and ECDSA keys, as determined by tls.LoadX509KeyPair.
func (s *MemoryKeyStore) LoadCertificate(alias, certPath, keyPath string) error {
	pair, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return fmt.Errorf("load certificate %q: %w", alias, err)
	}
	if _, err := KeyTypeOf(&pair); err != nil {
		return fmt.Errorf("load certificate %q: %w", alias, err)
	}
	s.Put(alias, &pair)
	return nil
}
