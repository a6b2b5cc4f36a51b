package wire

import "fmt"

// MessageType discriminates the IDSCP2 message variants. It is always
// encoded as CBOR map key 1 so a decoder can determine the variant before
// committing to a full decode (see PeekType).
type MessageType uint8

const (
	// TypeHello carries the initial RAT-driver negotiation and DAT.
	TypeHello MessageType = 1
	// TypeDAT carries a refreshed Dynamic Attribute Token.
	TypeDAT MessageType = 2
	// TypeDATExpired announces that the sender's own DAT has expired.
	TypeDATExpired MessageType = 3
	// TypeRatProver carries opaque prover evidence.
	TypeRatProver MessageType = 4
	// TypeRatVerifier carries an opaque verifier challenge/response.
	TypeRatVerifier MessageType = 5
	// TypeReRat requests that remote attestation be repeated.
	TypeReRat MessageType = 6
	// TypeData carries an opaque user payload.
	TypeData MessageType = 7
	// TypeClose announces that the connection is being torn down.
	TypeClose MessageType = 8
)

// String returns a human-readable name for the message type.
func (t MessageType) String() string {
	switch t {
	case TypeHello:
		return "HELLO"
	case TypeDAT:
		return "DAT"
	case TypeDATExpired:
		return "DAT_EXPIRED"
	case TypeRatProver:
		return "RAT_PROVER"
	case TypeRatVerifier:
		return "RAT_VERIFIER"
	case TypeReRat:
		return "RE_RAT"
	case TypeData:
		return "IDSCP_DATA"
	case TypeClose:
		return "CLOSE"
	default:
		return "UNKNOWN"
	}
}

// IsValid reports whether t is a known message type.
func (t MessageType) IsValid() bool {
	return t >= TypeHello && t <= TypeClose
}

// Message is implemented by every IDSCP2 message variant.
type Message interface {
	// MsgType returns the message's wire type tag.
	MsgType() MessageType
	// Validate checks the message for required-field and range violations.
	Validate() error
}

// Hello is sent first by both peers to negotiate RAT drivers and exchange
// the initial DAT and attestation certificate hash.
type Hello struct {
	Type               MessageType `cbor:"1,keyasint"`
	SupportedProvers   []string    `cbor:"2,keyasint"`
	SupportedVerifiers []string    `cbor:"3,keyasint"`
	CertHash           []byte      `cbor:"4,keyasint"`
	DAT                []byte      `cbor:"5,keyasint,omitempty"`
}

// NewHello builds a Hello message, stamping the type tag.
func NewHello(provers, verifiers []string, certHash, dat []byte) *Hello {
	return &Hello{
		Type:               TypeHello,
		SupportedProvers:   provers,
		SupportedVerifiers: verifiers,
		CertHash:           certHash,
		DAT:                dat,
	}
}

// MsgType implements Message.
func (m *Hello) MsgType() MessageType { return TypeHello }

// Validate implements Message.
func (m *Hello) Validate() error {
	if len(m.SupportedProvers) == 0 {
		return fmt.Errorf("%w: hello has no supported provers", ErrMalformedFrame)
	}
	if len(m.SupportedVerifiers) == 0 {
		return fmt.Errorf("%w: hello has no supported verifiers", ErrMalformedFrame)
	}
	if len(m.CertHash) == 0 {
		return fmt.Errorf("%w: hello is missing the certificate hash", ErrMalformedFrame)
	}
	return nil
}

// DAT carries a refreshed Dynamic Attribute Token.
type DAT struct {
	Type  MessageType `cbor:"1,keyasint"`
	Token []byte      `cbor:"2,keyasint"`
}

// NewDAT builds a DAT message.
func NewDAT(token []byte) *DAT {
	return &DAT{Type: TypeDAT, Token: token}
}

// MsgType implements Message.
func (m *DAT) MsgType() MessageType { return TypeDAT }

// Validate implements Message.
func (m *DAT) Validate() error {
	if len(m.Token) == 0 {
		return fmt.Errorf("%w: dat token is empty", ErrMalformedFrame)
	}
	return nil
}

// DATExpired announces that the sender's own DAT has expired and a fresh
// one must be negotiated.
type DATExpired struct {
	Type MessageType `cbor:"1,keyasint"`
}

// NewDATExpired builds a DATExpired message.
func NewDATExpired() *DATExpired {
	return &DATExpired{Type: TypeDATExpired}
}

// MsgType implements Message.
func (m *DATExpired) MsgType() MessageType { return TypeDATExpired }

// Validate implements Message.
func (m *DATExpired) Validate() error { return nil }

// RatProver carries opaque evidence produced by the sender's prover driver.
type RatProver struct {
	Type MessageType `cbor:"1,keyasint"`
	Data []byte      `cbor:"2,keyasint"`
}

// NewRatProver builds a RatProver message.
func NewRatProver(data []byte) *RatProver {
	return &RatProver{Type: TypeRatProver, Data: data}
}

// MsgType implements Message.
func (m *RatProver) MsgType() MessageType { return TypeRatProver }

// Validate implements Message.
func (m *RatProver) Validate() error {
	if len(m.Data) == 0 {
		return fmt.Errorf("%w: rat_prover has no payload", ErrMalformedFrame)
	}
	return nil
}

// RatVerifier carries an opaque challenge or response from the sender's
// verifier driver.
type RatVerifier struct {
	Type MessageType `cbor:"1,keyasint"`
	Data []byte      `cbor:"2,keyasint"`
}

// NewRatVerifier builds a RatVerifier message.
func NewRatVerifier(data []byte) *RatVerifier {
	return &RatVerifier{Type: TypeRatVerifier, Data: data}
}

// MsgType implements Message.
func (m *RatVerifier) MsgType() MessageType { return TypeRatVerifier }

// Validate implements Message.
func (m *RatVerifier) Validate() error {
	if len(m.Data) == 0 {
		return fmt.Errorf("%w: rat_verifier has no payload", ErrMalformedFrame)
	}
	return nil
}

// ReRat asks the peer to repeat remote attestation.
type ReRat struct {
	Type MessageType `cbor:"1,keyasint"`
}

// NewReRat builds a ReRat message.
func NewReRat() *ReRat {
	return &ReRat{Type: TypeReRat}
}

// MsgType implements Message.
func (m *ReRat) MsgType() MessageType { return TypeReRat }

// Validate implements Message.
func (m *ReRat) Validate() error { return nil }

// Data carries an opaque application payload, only valid in
// STATE_ESTABLISHED.
type Data struct {
	Type    MessageType `cbor:"1,keyasint"`
	Payload []byte      `cbor:"2,keyasint"`
}

// NewData builds a Data message.
func NewData(payload []byte) *Data {
	return &Data{Type: TypeData, Payload: payload}
}

// MsgType implements Message.
func (m *Data) MsgType() MessageType { return TypeData }

// Validate implements Message.
func (m *Data) Validate() error {
	if len(m.Payload) == 0 {
		return fmt.Errorf("%w: idscp_data has no payload", ErrMalformedFrame)
	}
	return nil
}

// CloseReason enumerates why a connection was closed, mirroring the
// error kinds observable at the facade (see pkg/idscp2.ErrorKind).
type CloseReason uint8

const (
	CloseUnspecified       CloseReason = 0
	CloseNoMatchingRat     CloseReason = 1
	CloseTimeout           CloseReason = 2
	CloseRatFailed         CloseReason = 3
	CloseDatInvalid        CloseReason = 4
	CloseUserShutdown      CloseReason = 5
	CloseInternalError     CloseReason = 6
)

// String returns a human-readable close reason name.
func (r CloseReason) String() string {
	switch r {
	case CloseNoMatchingRat:
		return "NoMatchingRat"
	case CloseTimeout:
		return "Timeout"
	case CloseRatFailed:
		return "RatFailed"
	case CloseDatInvalid:
		return "DatInvalid"
	case CloseUserShutdown:
		return "UserShutdown"
	case CloseInternalError:
		return "InternalError"
	default:
		return "Unspecified"
	}
}

// Close announces connection teardown, including the reason the FSM
// decided to close.
type Close struct {
	Type   MessageType `cbor:"1,keyasint"`
	Reason CloseReason `cbor:"2,keyasint"`
}

// NewClose builds a Close message.
func NewClose(reason CloseReason) *Close {
	return &Close{Type: TypeClose, Reason: reason}
}

// MsgType implements Message.
func (m *Close) MsgType() MessageType { return TypeClose }

// Validate implements Message.
func (m *Close) Validate() error { return nil }
