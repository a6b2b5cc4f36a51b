package wire

import "errors"

var (
	// ErrMalformedFrame indicates a frame that cannot be decoded: invalid
	// CBOR, an unknown type tag, or missing required fields for the decoded
	// type. An oversize length prefix never reaches this package: the frame
	// reader in pkg/transport rejects it with ErrMessageTooLarge.
	ErrMalformedFrame = errors.New("malformed frame")

	// ErrUnknownType indicates a type tag outside the known range.
	ErrUnknownType = errors.New("unknown message type")
)
