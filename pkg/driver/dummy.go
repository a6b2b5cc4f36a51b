package driver

import "context"

// DummyID is the registration id of the reference driver.
const DummyID = "dummy"

// dummyDriver is the normative reference driver: it reports success the
// instant it starts and echoes back whatever it is delegated, once. It
// exists to let the FSM and its scenario tests (S1/S3/S4/S6) exercise the
// full RAT exchange without any real attestation logic.
type dummyDriver struct {
	listener   Listener
	id         string
	generation uint64
	isProver   bool

	done chan struct{}
}

// NewDummyFactory returns a Factory for the dummy driver. isProver selects
// whether started instances notify via OnProverMessage or
// OnVerifierMessage.
func NewDummyFactory(isProver bool) Factory {
	return func(id string, generation uint64, _ any, listener Listener) (Driver, error) {
		d := &dummyDriver{
			listener:   listener,
			id:         id,
			generation: generation,
			isProver:   isProver,
			done:       make(chan struct{}),
		}
		d.notify(Event{Kind: EventOK})
		return d, nil
	}
}

func (d *dummyDriver) notify(ev Event) {
	if d.isProver {
		d.listener.OnProverMessage(d.id, d.generation, ev)
	} else {
		d.listener.OnVerifierMessage(d.id, d.generation, ev)
	}
}

// Delegate echoes msg back as a single EventMsg notification.
func (d *dummyDriver) Delegate(msg []byte) {
	echo := make([]byte, len(msg))
	copy(echo, msg)
	d.notify(Event{Kind: EventMsg, Payload: echo})
}

// Stop is immediate; the dummy driver holds no resources to release.
func (d *dummyDriver) Stop(ctx context.Context) error {
	select {
	case <-d.done:
	default:
		close(d.done)
	}
	return nil
}
