package timer

import (
	"sync"
	"testing"
	"time"
)

func TestServiceFiresAfterDuration(t *testing.T) {
	clock := newFakeClock()
	var mu sync.Mutex
	var fired []Name

	svc := NewService(clock, func(name Name) {
		mu.Lock()
		fired = append(fired, name)
		mu.Unlock()
	})

	svc.Start(HandshakeTimeout, 5*time.Second)
	clock.Advance(4 * time.Second)

	mu.Lock()
	if len(fired) != 0 {
		t.Fatalf("fired too early: %v", fired)
	}
	mu.Unlock()

	clock.Advance(2 * time.Second)

	mu.Lock()
	defer mu.Unlock()
	if len(fired) != 1 || fired[0] != HandshakeTimeout {
		t.Fatalf("fired = %v, want [HANDSHAKE_TIMEOUT]", fired)
	}
}

func TestServiceCancelPreventsFiring(t *testing.T) {
	clock := newFakeClock()
	fired := false
	svc := NewService(clock, func(name Name) { fired = true })

	svc.Start(RatTimeout, time.Second)
	svc.Cancel(RatTimeout)
	clock.Advance(2 * time.Second)

	if fired {
		t.Error("expected canceled timer not to fire")
	}
}

func TestServiceRestartReplacesPendingTimer(t *testing.T) {
	clock := newFakeClock()
	var mu sync.Mutex
	count := 0
	svc := NewService(clock, func(name Name) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	svc.Start(AckTimeout, time.Second)
	svc.Restart(AckTimeout, 3*time.Second)

	clock.Advance(2 * time.Second) // would have fired the first schedule
	mu.Lock()
	if count != 0 {
		t.Fatalf("restart did not cancel original schedule, count = %d", count)
	}
	mu.Unlock()

	clock.Advance(2 * time.Second)
	mu.Lock()
	defer mu.Unlock()
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}
}

func TestServiceFiresAtMostOnce(t *testing.T) {
	clock := newFakeClock()
	var mu sync.Mutex
	count := 0
	svc := NewService(clock, func(name Name) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	svc.Start(DatExpired, time.Second)
	clock.Advance(5 * time.Second)
	clock.Advance(5 * time.Second)

	mu.Lock()
	defer mu.Unlock()
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}
}

func TestServiceCancelAllStopsEveryTimer(t *testing.T) {
	clock := newFakeClock()
	fired := 0
	svc := NewService(clock, func(name Name) { fired++ })

	svc.Start(HandshakeTimeout, time.Second)
	svc.Start(RatTimeout, time.Second)
	svc.Start(AckTimeout, time.Second)
	svc.CancelAll()

	clock.Advance(5 * time.Second)

	if fired != 0 {
		t.Errorf("fired = %d, want 0 after CancelAll", fired)
	}
}

func TestServiceCancelUnknownNameIsNoop(t *testing.T) {
	svc := NewService(newFakeClock(), nil)
	svc.Cancel(DatExpired) // must not panic
}

func TestSystemClockAfterFuncFires(t *testing.T) {
	clock := SystemClock{}
	done := make(chan struct{})
	clock.AfterFunc(10*time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("SystemClock.AfterFunc did not fire in time")
	}
}
