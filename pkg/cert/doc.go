// Package cert implements the key/trust store and TLS key-selection hook
// used by pkg/transport (C10 in SPEC_FULL.md, backing C2's "custom key
// selector" requirement).
//
// # Alias-based key selection
//
// A KeyStore maps a printable alias to a certificate/private-key pair.
// KeySelector implements the tls.Config hooks (GetCertificate,
// GetClientCertificate): it forces the configured alias's certificate
// whenever the requested key type matches, and otherwise returns no
// selection. On the server side that is (nil, nil), so the TLS stack falls
// back to whatever static certificate the caller configured on
// tls.Config.Certificates — the "force one alias, delegate everything else
// to the default" design note from SPEC_FULL.md §9; on the client side it
// is an empty certificate, so none is sent.
//
// # Trust
//
// TrustStore wraps an x509.CertPool plus a hostname-independent peer
// verifier: IDSCP2 authenticates peers by certificate chain and (later)
// DAT binding, not by DNS name, so the default Go hostname check is
// disabled in favor of VerifyPeerCertificate.
package cert
