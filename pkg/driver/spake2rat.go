package driver

import (
	"context"
	"crypto/elliptic"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"math/big"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/hkdf"
)

// Spake2ProverID and Spake2VerifierID are the registration ids of the
// non-normative SPAKE2+ reference driver pair. They demonstrate that a real
// password-authenticated proof of possession fits the same Delegate/Stop/
// Listener contract as the dummy driver.
const (
	Spake2ProverID   = "spake2rat-prover"
	Spake2VerifierID = "spake2rat-verifier"
)

// Spake2RatConfig configures a spake2rat driver instance. Secret is the
// pre-shared attestation secret both peers were provisioned with out of
// band; LocalIdentity/PeerIdentity bind the exchange to the two endpoints
// so a transcript from one pairing cannot be replayed against another.
type Spake2RatConfig struct {
	Secret        []byte
	LocalIdentity []byte
	PeerIdentity  []byte
}

var (
	errSpake2InvalidPublicKey = errors.New("spake2rat: invalid public value")
	errSpake2Confirmation     = errors.New("spake2rat: confirmation mismatch")
	errSpake2BadConfig        = errors.New("spake2rat: missing Spake2RatConfig")
)

const spake2SecretSize = 32

var spake2Curve = elliptic.P256()

// M and N are fixed generator points for SPAKE2+ on P-256, taken from the
// RFC 9383 test vectors.
var (
	spake2PointM = &spake2Point{
		x: mustHex("886e2f97ace46e55ba9dd7242579f2993b64e16ef3dcab95afd497333d8fa12f"),
		y: mustHex("5ff355163e43ce224e0b0e65ff02ac8e5c7be09419c785e0ca547d55a12e2d20"),
	}
	spake2PointN = &spake2Point{
		x: mustHex("d8bbd6c639c62937b04d997f38c3770719c629d7014d49a24b4f98baa1292b49"),
		y: mustHex("07d60aa6bfade45008a636337f5168c64d9bd36034808cd564490b1e656edbe7"),
	}
)

type spake2Point struct{ x, y *big.Int }

func mustHex(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 16)
	if !ok {
		panic("driver: invalid spake2 constant: " + s)
	}
	return n
}

func spake2DeriveW(secret, localID, peerID []byte) (w0, w1 *big.Int) {
	ctx := append(append([]byte{}, localID...), peerID...)
	r := hkdf.New(sha256.New, secret, ctx, []byte("idscp2-spake2rat w"))
	w0b := make([]byte, 32)
	w1b := make([]byte, 32)
	io.ReadFull(r, w0b)
	io.ReadFull(r, w1b)
	w0 = new(big.Int).SetBytes(w0b)
	w1 = new(big.Int).SetBytes(w1b)
	w0.Mod(w0, spake2Curve.Params().N)
	w1.Mod(w1, spake2Curve.Params().N)
	return w0, w1
}

// spake2msg is the driver's private wire envelope, carried as the opaque
// payload of a RAT_PROVER/RAT_VERIFIER frame.
type spake2msg struct {
	Phase uint8  `cbor:"1,keyasint"`
	Value []byte `cbor:"2,keyasint"`
}

const (
	spake2PhasePublic  uint8 = 1
	spake2PhaseConfirm uint8 = 2
)

// spake2RatDriver runs either role of the exchange. Role is fixed at
// construction; Delegate/Stop are safe for concurrent use with driver
// notifications firing synchronously from within Delegate since the
// protocol has no need for a background goroutine — each delegated
// message produces at most one reply, matching the FSM's single-worker
// delivery discipline.
type spake2RatDriver struct {
	mu         sync.Mutex
	id         string
	generation uint64
	listener   Listener
	isProver   bool

	localID, peerID        []byte
	x, w0, w1              *big.Int // prover ephemeral + derived scalars
	y                      *big.Int // verifier ephemeral
	verifierW0             *big.Int
	verifierLx, verifierLy *big.Int

	pA, pB       []byte
	sharedSecret []byte
	confirmKey   []byte

	done    bool
	stopped chan struct{}
}

// NewSpake2ProverFactory returns a Factory producing the client/prover side
// of the exchange: it presents proof of possession of the shared secret.
func NewSpake2ProverFactory() Factory {
	return func(id string, generation uint64, cfg any, listener Listener) (Driver, error) {
		c, ok := cfg.(Spake2RatConfig)
		if !ok {
			return nil, errSpake2BadConfig
		}
		w0, w1 := spake2DeriveW(c.Secret, c.LocalIdentity, c.PeerIdentity)
		x, err := rand.Int(rand.Reader, spake2Curve.Params().N)
		if err != nil {
			return nil, fmt.Errorf("spake2rat: generate ephemeral key: %w", err)
		}
		d := &spake2RatDriver{
			id: id, generation: generation, listener: listener, isProver: true,
			localID: c.LocalIdentity, peerID: c.PeerIdentity,
			x: x, w0: w0, w1: w1,
			stopped: make(chan struct{}),
		}
		d.sendPublicValue()
		return d, nil
	}
}

// NewSpake2VerifierFactory returns a Factory producing the server/verifier
// side: it checks the peer's proof of possession against the same shared
// secret.
func NewSpake2VerifierFactory() Factory {
	return func(id string, generation uint64, cfg any, listener Listener) (Driver, error) {
		c, ok := cfg.(Spake2RatConfig)
		if !ok {
			return nil, errSpake2BadConfig
		}
		w0, w1 := spake2DeriveW(c.Secret, c.PeerIdentity, c.LocalIdentity)
		lx, ly := spake2Curve.ScalarBaseMult(w1.Bytes())
		y, err := rand.Int(rand.Reader, spake2Curve.Params().N)
		if err != nil {
			return nil, fmt.Errorf("spake2rat: generate ephemeral key: %w", err)
		}
		d := &spake2RatDriver{
			id: id, generation: generation, listener: listener, isProver: false,
			localID: c.LocalIdentity, peerID: c.PeerIdentity,
			y: y, verifierW0: w0, verifierLx: lx, verifierLy: ly,
			stopped: make(chan struct{}),
		}
		return d, nil
	}
}

func (d *spake2RatDriver) notify(ev Event) {
	if d.isProver {
		d.listener.OnProverMessage(d.id, d.generation, ev)
	} else {
		d.listener.OnVerifierMessage(d.id, d.generation, ev)
	}
}

func (d *spake2RatDriver) fail(err error) {
	d.done = true
	d.notify(Event{Kind: EventFailed, Err: err})
}

func (d *spake2RatDriver) send(phase uint8, value []byte) {
	data, err := cbor.Marshal(spake2msg{Phase: phase, Value: value})
	if err != nil {
		d.fail(fmt.Errorf("spake2rat: encode message: %w", err))
		return
	}
	d.notify(Event{Kind: EventMsg, Payload: data})
}

// sendPublicValue emits pA = x*G + w0*M, the prover's first message.
func (d *spake2RatDriver) sendPublicValue() {
	xx, xy := spake2Curve.ScalarBaseMult(d.x.Bytes())
	w0mx, w0my := spake2Curve.ScalarMult(spake2PointM.x, spake2PointM.y, d.w0.Bytes())
	pAx, pAy := spake2Curve.Add(xx, xy, w0mx, w0my)
	d.pA = elliptic.Marshal(spake2Curve, pAx, pAy)
	d.send(spake2PhasePublic, d.pA)
}

// Delegate feeds the peer's next protocol message into the exchange.
func (d *spake2RatDriver) Delegate(msg []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.done {
		return
	}

	var m spake2msg
	if err := cbor.Unmarshal(msg, &m); err != nil {
		d.fail(fmt.Errorf("spake2rat: decode message: %w", err))
		return
	}

	if d.isProver {
		d.handleProverMessage(m)
	} else {
		d.handleVerifierMessage(m)
	}
}

func (d *spake2RatDriver) handleProverMessage(m spake2msg) {
	switch m.Phase {
	case spake2PhasePublic:
		d.pB = m.Value
		pBx, pBy := elliptic.Unmarshal(spake2Curve, d.pB)
		if pBx == nil || !spake2Curve.IsOnCurve(pBx, pBy) {
			d.fail(errSpake2InvalidPublicKey)
			return
		}
		w0nx, w0ny := spake2Curve.ScalarMult(spake2PointN.x, spake2PointN.y, d.w0.Bytes())
		w0nyNeg := new(big.Int).Neg(w0ny)
		w0nyNeg.Mod(w0nyNeg, spake2Curve.Params().P)
		yx, yy := spake2Curve.Add(pBx, pBy, w0nx, w0nyNeg)
		zx, zy := spake2Curve.ScalarMult(yx, yy, d.x.Bytes())
		vx, vy := spake2Curve.ScalarMult(yx, yy, d.w1.Bytes())
		d.deriveKeys(d.localID, d.peerID, d.pA, d.pB, zx, zy, vx, vy, d.w0)

		mac := hmac.New(sha256.New, d.confirmKey)
		mac.Write([]byte("prover"))
		mac.Write(d.pA)
		mac.Write(d.pB)
		d.send(spake2PhaseConfirm, mac.Sum(nil))
	case spake2PhaseConfirm:
		mac := hmac.New(sha256.New, d.confirmKey)
		mac.Write([]byte("verifier"))
		mac.Write(d.pB)
		mac.Write(d.pA)
		expected := mac.Sum(nil)
		if !hmac.Equal(m.Value, expected) {
			d.fail(errSpake2Confirmation)
			return
		}
		d.done = true
		d.notify(Event{Kind: EventOK})
	default:
		d.fail(fmt.Errorf("spake2rat: unexpected phase %d", m.Phase))
	}
}

func (d *spake2RatDriver) handleVerifierMessage(m spake2msg) {
	switch m.Phase {
	case spake2PhasePublic:
		d.pA = m.Value
		pAx, pAy := elliptic.Unmarshal(spake2Curve, d.pA)
		if pAx == nil || !spake2Curve.IsOnCurve(pAx, pAy) {
			d.fail(errSpake2InvalidPublicKey)
			return
		}
		yx, yy := spake2Curve.ScalarBaseMult(d.y.Bytes())
		w0nx, w0ny := spake2Curve.ScalarMult(spake2PointN.x, spake2PointN.y, d.verifierW0.Bytes())
		pBx, pBy := spake2Curve.Add(yx, yy, w0nx, w0ny)
		d.pB = elliptic.Marshal(spake2Curve, pBx, pBy)

		w0mx, w0my := spake2Curve.ScalarMult(spake2PointM.x, spake2PointM.y, d.verifierW0.Bytes())
		w0myNeg := new(big.Int).Neg(w0my)
		w0myNeg.Mod(w0myNeg, spake2Curve.Params().P)
		xx, xy := spake2Curve.Add(pAx, pAy, w0mx, w0myNeg)
		zx, zy := spake2Curve.ScalarMult(xx, xy, d.y.Bytes())
		vx, vy := spake2Curve.ScalarMult(d.verifierLx, d.verifierLy, d.y.Bytes())
		d.deriveKeys(d.peerID, d.localID, d.pA, d.pB, zx, zy, vx, vy, d.verifierW0)

		d.send(spake2PhasePublic, d.pB)
	case spake2PhaseConfirm:
		mac := hmac.New(sha256.New, d.confirmKey)
		mac.Write([]byte("prover"))
		mac.Write(d.pA)
		mac.Write(d.pB)
		expected := mac.Sum(nil)
		ok := hmac.Equal(m.Value, expected)

		reply := hmac.New(sha256.New, d.confirmKey)
		reply.Write([]byte("verifier"))
		reply.Write(d.pB)
		reply.Write(d.pA)
		d.send(spake2PhaseConfirm, reply.Sum(nil))

		d.done = true
		if ok {
			d.notify(Event{Kind: EventOK})
		} else {
			d.notify(Event{Kind: EventFailed, Err: errSpake2Confirmation})
		}
	default:
		d.fail(fmt.Errorf("spake2rat: unexpected phase %d", m.Phase))
	}
}

func (d *spake2RatDriver) deriveKeys(idA, idB, pA, pB []byte, zx, zy, vx, vy, w0 *big.Int) {
	h := sha256.New()
	h.Write(idA)
	h.Write(idB)
	h.Write(pA)
	h.Write(pB)
	h.Write(elliptic.Marshal(spake2Curve, zx, zy))
	h.Write(elliptic.Marshal(spake2Curve, vx, vy))
	h.Write(w0.Bytes())
	transcript := h.Sum(nil)

	r := hkdf.New(sha256.New, transcript, nil, []byte("idscp2-spake2rat"))
	d.sharedSecret = make([]byte, spake2SecretSize)
	d.confirmKey = make([]byte, spake2SecretSize)
	io.ReadFull(r, d.sharedSecret)
	io.ReadFull(r, d.confirmKey)
}

// Stop marks the driver inert; further Delegate calls are ignored. The
// exchange has no background goroutine so there is nothing to join.
func (d *spake2RatDriver) Stop(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	select {
	case <-d.stopped:
	default:
		close(d.stopped)
	}
	d.done = true
	return nil
}
