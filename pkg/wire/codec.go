package wire

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// encMode is the CBOR encoder mode for IDSCP2 messages: canonical output
// so that Encode is deterministic (identical messages produce identical
// bytes, per §6/invariant 5).
var encMode cbor.EncMode

// decMode is the CBOR decoder mode for IDSCP2 messages.
var decMode cbor.DecMode

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:        cbor.SortCanonical,
		IndefLength: cbor.IndefLengthForbidden,
	}
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("wire: failed to build CBOR encoder mode: %v", err))
	}

	decOpts := cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyQuiet,
		IndefLength: cbor.IndefLengthForbidden,
	}
	decMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("wire: failed to build CBOR decoder mode: %v", err))
	}
}

// typeTag is decoded first to determine which concrete type to decode
// into, without paying for a full decode of the wrong shape.
type typeTag struct {
	Type MessageType `cbor:"1,keyasint"`
}

// PeekType inspects data far enough to learn the message type without
// decoding the rest of the message.
func PeekType(data []byte) (MessageType, error) {
	var tag typeTag
	if err := decMode.Unmarshal(data, &tag); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if !tag.Type.IsValid() {
		return 0, fmt.Errorf("%w: %w: type %d", ErrMalformedFrame, ErrUnknownType, tag.Type)
	}
	return tag.Type, nil
}

// Encode validates m and encodes it to canonical CBOR bytes. The caller
// is responsible for length-prefixing via pkg/transport.
func Encode(m Message) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	data, err := encMode.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("wire: encode %s: %w", m.MsgType(), err)
	}
	return data, nil
}

// Decode determines the message type and decodes data into the matching
// concrete type, returning it as a Message. It fails with ErrMalformedFrame
// if the tag is unknown or required fields are absent.
func Decode(data []byte) (Message, error) {
	typ, err := PeekType(data)
	if err != nil {
		return nil, err
	}

	var msg Message
	switch typ {
	case TypeHello:
		msg = &Hello{}
	case TypeDAT:
		msg = &DAT{}
	case TypeDATExpired:
		msg = &DATExpired{}
	case TypeRatProver:
		msg = &RatProver{}
	case TypeRatVerifier:
		msg = &RatVerifier{}
	case TypeReRat:
		msg = &ReRat{}
	case TypeData:
		msg = &Data{}
	case TypeClose:
		msg = &Close{}
	default:
		return nil, fmt.Errorf("%w: type %d", ErrUnknownType, typ)
	}

	if err := decMode.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return msg, nil
}

// Equal reports whether two messages encode to the same bytes. Useful in
// tests that check codec round-trips (Decode(Encode(m)) == m).
func Equal(a, b Message) bool {
	da, errA := Encode(a)
	db, errB := Encode(b)
	if errA != nil || errB != nil {
		return false
	}
	return string(da) == string(db)
}
