// Package transport implements the IDSCP2 secure channel (C2): a
// length-prefixed frame codec running over a mutually authenticated TLS
// connection.
//
// # Protocol Stack
//
//	┌────────────────────────────────┐
//	│      IDSCP2 CBOR Messages      │
//	├────────────────────────────────┤
//	│   Length-Prefix Framing (4B)   │
//	├────────────────────────────────┤
//	│         TLS (>= 1.2)           │
//	├────────────────────────────────┤
//	│           TCP                  │
//	└────────────────────────────────┘
//
// # Layering
//
// SecureChannel is intentionally low-level and synchronous: Send and
// Receive block, and the caller (the FSM's transport-reader goroutine, see
// pkg/fsm) owns all concurrency decisions. This package has no notion of
// IDSCP2 states, RAT, or DAT — those live in pkg/fsm and pkg/idscp2.
//
// # TLS
//
// Certificates are selected by alias via pkg/cert's key selector hook
// rather than being wired directly into tls.Config, so a single key store
// can serve many connections with different certificate requirements.
package transport
