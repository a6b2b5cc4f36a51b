package driver

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/industrial-data-space/idscp2-go/pkg/log"
)

// Handle is the FSM's view of a running driver: an id, the generation it
// was started under, and the two inbound operations the FSM drives it with.
// The FSM keeps Generation() alongside its own "current generation" counter
// and discards notifications tagged with a stale one.
type Handle struct {
	id         string
	generation uint64
	driver     Driver
}

// ID returns the driver id this handle was started from.
func (h *Handle) ID() string { return h.id }

// Generation returns the generation counter stamped at Start time.
func (h *Handle) Generation() uint64 { return h.generation }

// Delegate forwards a peer RAT message to the running driver.
func (h *Handle) Delegate(msg []byte) { h.driver.Delegate(msg) }

// Stop requests cooperative termination, escalating to abandonment once ctx
// is done. The FSM is expected to pass a context bounded by the grace
// period (pkg/fsm's Worker uses 2s, its driverStopGrace constant).
func (h *Handle) Stop(ctx context.Context) error { return h.driver.Stop(ctx) }

type registryEntry struct {
	factory Factory
	config  any
}

// ProverKind and VerifierKind are phantom type parameters distinguishing a
// ProverRegistry from a VerifierRegistry at compile time; registries of
// different kinds are not interchangeable even though their behavior is
// identical.
type ProverKind struct{}
type VerifierKind struct{}

// Registry is a concurrency-safe, process-wide map from driver id to
// factory (+ optional static configuration). T is a phantom marker
// (ProverKind or VerifierKind) used only to keep the two registries from
// being accidentally swapped.
type Registry[T any] struct {
	mu      sync.RWMutex
	entries map[string]registryEntry
	logger  log.Logger
	kind    log.DriverKind
	nextGen atomic.Uint64
}

// ProverRegistry holds prover driver factories.
type ProverRegistry = Registry[ProverKind]

// VerifierRegistry holds verifier driver factories.
type VerifierRegistry = Registry[VerifierKind]

// NewProverRegistry creates an empty prover registry. logger may be
// log.NoopLogger{} if protocol-event capture is disabled.
func NewProverRegistry(logger log.Logger) *ProverRegistry {
	return newRegistry[ProverKind](logger, log.DriverKindProver)
}

// NewVerifierRegistry creates an empty verifier registry.
func NewVerifierRegistry(logger log.Logger) *VerifierRegistry {
	return newRegistry[VerifierKind](logger, log.DriverKindVerifier)
}

func newRegistry[T any](logger log.Logger, kind log.DriverKind) *Registry[T] {
	if logger == nil {
		logger = log.NoopLogger{}
	}
	return &Registry[T]{
		entries: make(map[string]registryEntry),
		logger:  logger,
		kind:    kind,
	}
}

// Register adds a factory under id. Returns ErrDriverExists if id is
// already registered.
func (r *Registry[T]) Register(id string, factory Factory, config any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[id]; exists {
		return fmt.Errorf("%w: %s", ErrDriverExists, id)
	}
	r.entries[id] = registryEntry{factory: factory, config: config}
	return nil
}

// Unregister removes id. A no-op if id was never registered.
func (r *Registry[T]) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
}

// IDs returns the currently registered driver ids in unspecified order.
func (r *Registry[T]) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	return ids
}

// Start looks up id and invokes its factory, returning a Handle stamped
// with a fresh generation. Returns ErrDriverNotFound if id is unregistered.
// A panic or error from the factory is caught, logged via the protocol
// logger as a DriverEvent with DriverOutcomeFailed, and surfaced as
// ErrDriverStart — the FSM treats this identically to a runtime failure.
func (r *Registry[T]) Start(connID, id string, listener Listener) (h *Handle, err error) {
	r.mu.RLock()
	entry, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDriverNotFound, id)
	}

	generation := r.nextGen.Add(1)

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %s: panic: %v", ErrDriverStart, id, p)
		}
		if err != nil {
			r.logEvent(connID, id, generation, log.DriverOutcomeFailed)
		}
	}()

	d, err := entry.factory(id, generation, entry.config, listener)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDriverStart, id, err)
	}

	r.logEvent(connID, id, generation, log.DriverOutcomeStarted)
	return &Handle{id: id, generation: generation, driver: d}, nil
}

func (r *Registry[T]) logEvent(connID, id string, generation uint64, outcome log.DriverOutcome) {
	r.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Layer:        log.LayerDriver,
		Category:     log.CategoryDriver,
		Driver: &log.DriverEvent{
			Kind:       r.kind,
			DriverID:   id,
			Outcome:    outcome,
			Generation: generation,
		},
	})
}
