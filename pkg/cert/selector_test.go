package cert

import (
	"crypto/tls"
	"testing"
)

func TestKeySelectorGetCertificate(t *testing.T) {
	ca, caKey := generateTestCA(t, "test-ca")
	leaf := generateTestLeaf(t, "device-1", ca, caKey)

	store := NewMemoryKeyStore()
	store.Put("default", &leaf)

	sel := NewKeySelector(store, "default")
	got, err := sel.GetCertificate(&tls.ClientHelloInfo{})
	if err != nil {
		t.Fatalf("GetCertificate: %v", err)
	}
	if got == nil || got.Leaf.Subject.CommonName != "device-1" {
		t.Errorf("GetCertificate returned %v, want device-1 cert", got)
	}
}

func TestKeySelectorGetCertificateMissingAliasDelegates(t *testing.T) {
	store := NewMemoryKeyStore()
	sel := NewKeySelector(store, "missing")

	got, err := sel.GetCertificate(&tls.ClientHelloInfo{})
	if err != nil {
		t.Fatalf("GetCertificate: %v", err)
	}
	if got != nil {
		t.Errorf("GetCertificate = %v, want nil (delegate to default)", got)
	}
}

func TestKeySelectorGetClientCertificatePermissiveByDefault(t *testing.T) {
	ca, caKey := generateTestCA(t, "test-ca")
	leaf := generateTestLeaf(t, "device-1", ca, caKey)

	otherCA, _ := generateTestCA(t, "unrelated-ca")

	store := NewMemoryKeyStore()
	store.Put("default", &leaf)

	sel := NewKeySelector(store, "default")
	got, err := sel.GetClientCertificate(&tls.CertificateRequestInfo{
		AcceptableCAs: [][]byte{otherCA.Raw},
	})
	if err != nil {
		t.Fatalf("GetClientCertificate: %v", err)
	}
	if got.Leaf == nil {
		t.Fatalf("GetClientCertificate returned empty certificate under permissive matching")
	}
}

func TestKeySelectorGetClientCertificateStrictRejectsMismatch(t *testing.T) {
	ca, caKey := generateTestCA(t, "test-ca")
	leaf := generateTestLeaf(t, "device-1", ca, caKey)

	otherCA, _ := generateTestCA(t, "unrelated-ca")

	store := NewMemoryKeyStore()
	store.Put("default", &leaf)

	sel := NewKeySelector(store, "default")
	sel.PermissiveAliasMatch = false

	got, err := sel.GetClientCertificate(&tls.CertificateRequestInfo{
		AcceptableCAs: [][]byte{otherCA.Raw},
	})
	if err != nil {
		t.Fatalf("GetClientCertificate: %v", err)
	}
	if got.Leaf != nil {
		t.Errorf("GetClientCertificate = %v, want empty certificate under strict mismatch", got)
	}
}

func TestKeySelectorGetClientCertificateStrictAcceptsMatch(t *testing.T) {
	ca, caKey := generateTestCA(t, "test-ca")
	leaf := generateTestLeaf(t, "device-1", ca, caKey)

	store := NewMemoryKeyStore()
	store.Put("default", &leaf)

	sel := NewKeySelector(store, "default")
	sel.PermissiveAliasMatch = false

	got, err := sel.GetClientCertificate(&tls.CertificateRequestInfo{
		AcceptableCAs: [][]byte{ca.Raw},
	})
	if err != nil {
		t.Fatalf("GetClientCertificate: %v", err)
	}
	if got.Leaf == nil {
		t.Fatalf("GetClientCertificate returned empty certificate despite issuer match")
	}
}
