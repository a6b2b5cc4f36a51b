// Package wire implements the IDSCP2 message codec.
//
// # Wire Format
//
// Every message is a length-prefixed frame: a 4-byte big-endian length L
// followed by L bytes of CBOR. The CBOR payload is a map with small
// integer keys (encoded via "keyasint") so a decoder can determine the
// message type from key 1 alone before committing to a full decode.
//
// # Message Types
//
//	{
//	  1: type,  // uint8: discriminates the message variant
//	  2..: ...  // the variant's own fields, as further integer keys of the
//	            // same flat map (HELLO, for example, uses keys 2-5)
//	}
//
// Encoding is deterministic: canonical CBOR (sorted map keys, no
// indefinite-length items) guarantees Encode(m) always produces the same
// bytes for equal messages, satisfying the codec's identity invariant
// (Decode(Encode(m)) == m).
package wire
