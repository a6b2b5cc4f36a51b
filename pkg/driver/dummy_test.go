package driver

import (
	"context"
	"testing"
)

func TestDummyDriverEmitsOKOnStart(t *testing.T) {
	listener := &recordingListener{}
	factory := NewDummyFactory(true)
	d, err := factory(DummyID, 1, nil, listener)
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	if len(listener.proverEvents) != 1 || listener.proverEvents[0].Kind != EventOK {
		t.Fatalf("expected EventOK, got %+v", listener.proverEvents)
	}
	_ = d.Stop(context.Background())
}

func TestDummyDriverEchoesDelegatedPayload(t *testing.T) {
	listener := &recordingListener{}
	factory := NewDummyFactory(false)
	d, err := factory(DummyID, 1, nil, listener)
	if err != nil {
		t.Fatalf("factory: %v", err)
	}

	payload := []byte("evidence")
	d.Delegate(payload)

	if len(listener.verifierEvents) != 2 {
		t.Fatalf("expected 2 events (OK, MSG), got %d", len(listener.verifierEvents))
	}
	echoEv := listener.verifierEvents[1]
	if echoEv.Kind != EventMsg || string(echoEv.Payload) != string(payload) {
		t.Errorf("echo event = %+v, want payload %q", echoEv, payload)
	}
}

func TestDummyDriverStopIsIdempotent(t *testing.T) {
	listener := &recordingListener{}
	factory := NewDummyFactory(true)
	d, _ := factory(DummyID, 1, nil, listener)
	if err := d.Stop(context.Background()); err != nil {
		t.Fatalf("first Stop: %v", err)
	}
	if err := d.Stop(context.Background()); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}
