package fsm

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"time"

	"github.com/industrial-data-space/idscp2-go/pkg/driver"
	"github.com/industrial-data-space/idscp2-go/pkg/log"
	"github.com/industrial-data-space/idscp2-go/pkg/timer"
	"github.com/industrial-data-space/idscp2-go/pkg/transport"
	"github.com/industrial-data-space/idscp2-go/pkg/wire"
)

// driverStopGrace bounds how long Worker waits for a driver's cooperative
// Stop before abandoning it (§4.4: "hard timeout of 2 s escalates to
// forced disposal").
const driverStopGrace = 2 * time.Second

// Worker is the single goroutine that owns a connection's Machine: it
// drains the bounded event queue, calls Step, and carries out the
// resulting Actions against the real transport, timer service, and driver
// registries. No other goroutine may mutate Machine state directly —
// driver callbacks and the timer service post events onto the queue
// instead (§5: "the FSM worker is single-threaded by contract").
type Worker struct {
	connID string

	machine *Machine
	channel *transport.SecureChannel
	timers  *timer.Service
	provers *driver.ProverRegistry
	verifiers *driver.VerifierRegistry
	logger  log.Logger

	queue *eventQueue

	proverHandle   *driver.Handle
	verifierHandle *driver.Handle

	// OnMessage, OnError, OnClose are the user callbacks the facade
	// (pkg/idscp2.Connection) installs before calling Run.
	OnMessage func(payload []byte)
	OnError   func(reason wire.CloseReason)
	OnClose   func()

	currentState atomic.Uint32
	done         chan struct{}
}

// NewWorker wires a Machine to its real collaborators. logger may be nil
// (treated as log.NoopLogger{}).
func NewWorker(connID string, cfg Config, clock func() time.Time, channel *transport.SecureChannel, provers *driver.ProverRegistry, verifiers *driver.VerifierRegistry, logger log.Logger) *Worker {
	if logger == nil {
		logger = log.NoopLogger{}
	}
	w := &Worker{
		connID:    connID,
		machine:   NewMachine(cfg, clock),
		channel:   channel,
		provers:   provers,
		verifiers: verifiers,
		logger:    logger,
		queue:     newEventQueue(defaultQueueCapacity),
		done:      make(chan struct{}),
	}
	w.timers = timer.NewService(nil, func(name timer.Name) { w.queue.Push(TimerEvent(name)) })
	return w
}

// Enqueue posts ev onto the worker's queue. Safe to call from any
// goroutine (the facade's Send/Close/RepeatRat, or the transport reader).
func (w *Worker) Enqueue(ev Event) { w.queue.Push(ev) }

// CurrentState returns the machine's last-observed state. Safe to call
// concurrently with Run; used by the facade to fail Send fast outside
// STATE_ESTABLISHED without round-tripping through the event queue.
func (w *Worker) CurrentState() State { return State(w.currentState.Load()) }

// Run drains the event queue until the machine reaches STATE_CLOSED via
// ActionInvokeOnClose, starting the transport reader goroutine first. The
// caller is expected to Enqueue an EventStart-kind Event before or shortly
// after calling Run; STATE_CLOSED drops every other event.
func (w *Worker) Run() {
	go w.readLoop()
	for {
		ev := w.queue.Pop()
		w.runStep(ev)
		w.currentState.Store(uint32(w.machine.State()))
		select {
		case <-w.done:
			return
		default:
		}
	}
}

// runStep calls Step and executes every resulting Action. Also used to
// replay a synthetic event (e.g. a driver start failure) from inside
// execute itself, which is safe because it is an ordinary function call
// on the worker's own goroutine, not a queue round-trip.
func (w *Worker) runStep(ev Event) {
	before := w.machine.State()
	for _, action := range w.machine.Step(ev) {
		w.execute(action)
	}
	if after := w.machine.State(); after != before {
		w.logger.Log(log.Event{
			Timestamp:    time.Now(),
			ConnectionID: w.connID,
			Layer:        log.LayerFSM,
			Category:     log.CategoryState,
			StateChange: &log.StateChangeEvent{
				OldState: before.String(),
				NewState: after.String(),
				Event:    ev.Kind.String(),
			},
		})
	}
}

func (w *Worker) execute(action Action) {
	switch action.Kind {
	case ActionSendFrame:
		w.sendFrame(action.Frame)
	case ActionStartTimer:
		w.timers.Start(action.TimerName, action.TimerDuration)
	case ActionCancelTimer:
		w.timers.Cancel(action.TimerName)
	case ActionStartDriver:
		w.startDriver(action.Role, action.DriverID)
	case ActionStopDriver:
		w.stopDriver(action.Role)
	case ActionDelegateDriver:
		w.delegateDriver(action.Role, action.Payload)
	case ActionEmitUserMessage:
		if w.OnMessage != nil {
			w.safeCall(func() { w.OnMessage(action.Payload) })
		}
	case ActionInvokeOnError:
		if w.OnError != nil {
			w.safeCall(func() { w.OnError(action.CloseReason) })
		}
	case ActionInvokeOnClose:
		w.timers.CancelAll()
		w.channel.Close()
		if w.OnClose != nil {
			w.safeCall(w.OnClose)
		}
		close(w.done)
	}
}

// safeCall runs a user callback, logging (not propagating) a panic: "user
// callback exceptions are caught and logged; they do not affect FSM state".
func (w *Worker) safeCall(f func()) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Log(log.Event{
				Timestamp:    time.Now(),
				ConnectionID: w.connID,
				Layer:        log.LayerFSM,
				Category:     log.CategoryError,
				Error: &log.ErrorEventData{
					Layer:   log.LayerFSM,
					Message: "user callback panicked",
					Context: "recovered",
				},
			})
		}
	}()
	f()
}

func (w *Worker) sendFrame(msg wire.Message) {
	data, err := wire.Encode(msg)
	if err != nil {
		w.runStep(TransportMalformedEvent(err))
		return
	}
	if err := w.channel.Send(data); err != nil {
		w.runStep(TransportTLSErrorEvent(err))
		return
	}
	w.logMessage(log.DirectionOut, msg)
}

func (w *Worker) readLoop() {
	for {
		data, err := w.channel.Receive()
		if err != nil {
			if errors.Is(err, io.EOF) {
				w.queue.Push(TransportEOFEvent())
			} else {
				w.queue.Push(TransportTLSErrorEvent(err))
			}
			return
		}
		msg, err := wire.Decode(data)
		if err != nil {
			w.queue.Push(TransportMalformedEvent(err))
			return
		}
		w.logMessage(log.DirectionIn, msg)
		w.queue.Push(WireEvent(msg))
	}
}

func (w *Worker) logMessage(dir log.Direction, msg wire.Message) {
	ev := log.Event{
		Timestamp:    time.Now(),
		ConnectionID: w.connID,
		Direction:    dir,
		Layer:        log.LayerWire,
		Category:     log.CategoryMessage,
		Message:      &log.MessageEvent{Type: msg.MsgType()},
	}
	if data, ok := msg.(*wire.Data); ok {
		ev.Message.PayloadSize = len(data.Payload)
	}
	if c, ok := msg.(*wire.Close); ok {
		ev.Message.CloseReason = &c.Reason
	}
	w.logger.Log(ev)
}

func (w *Worker) startDriver(role Role, id string) {
	registry, generation := w.registryAndGeneration(role)
	handle, err := registry(w.connID, id, w)
	if err != nil {
		w.runStep(w.failedEvent(role, generation, err))
		return
	}
	w.machine.RecordDriverStarted(role, handle.Generation())
	if role == RoleProver {
		w.proverHandle = handle
	} else {
		w.verifierHandle = handle
	}
}

// registryAndGeneration returns a uniform starter func for role alongside
// the generation Step currently considers live for it, used to build a
// matching *Failed event if the factory itself errors.
func (w *Worker) registryAndGeneration(role Role) (func(connID, id string, l driver.Listener) (*driver.Handle, error), uint64) {
	if role == RoleProver {
		return w.provers.Start, w.machine.ProverGeneration()
	}
	return w.verifiers.Start, w.machine.VerifierGeneration()
}

func (w *Worker) failedEvent(role Role, generation uint64, err error) Event {
	if role == RoleProver {
		return ProverFailedEvent(generation, err)
	}
	return VerifierFailedEvent(generation, err)
}

func (w *Worker) stopDriver(role Role) {
	handle := w.handleFor(role)
	if handle == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), driverStopGrace)
	defer cancel()
	handle.Stop(ctx)
	w.setHandle(role, nil)
}

func (w *Worker) delegateDriver(role Role, payload []byte) {
	handle := w.handleFor(role)
	if handle == nil {
		return
	}
	handle.Delegate(payload)
}

func (w *Worker) handleFor(role Role) *driver.Handle {
	if role == RoleProver {
		return w.proverHandle
	}
	return w.verifierHandle
}

func (w *Worker) setHandle(role Role, h *driver.Handle) {
	if role == RoleProver {
		w.proverHandle = h
	} else {
		w.verifierHandle = h
	}
}

// OnProverMessage implements driver.Listener. It runs on whichever
// goroutine the driver implementation chooses (its own task, or
// synchronously from inside Registry.Start on the worker goroutine
// itself) — either way, posting onto the queue rather than mutating the
// machine directly keeps Machine single-writer.
func (w *Worker) OnProverMessage(id string, generation uint64, ev driver.Event) {
	w.queue.Push(translateDriverEvent(RoleProver, generation, ev))
}

// OnVerifierMessage implements driver.Listener.
func (w *Worker) OnVerifierMessage(id string, generation uint64, ev driver.Event) {
	w.queue.Push(translateDriverEvent(RoleVerifier, generation, ev))
}

func translateDriverEvent(role Role, generation uint64, ev driver.Event) Event {
	isProver := role == RoleProver
	switch ev.Kind {
	case driver.EventMsg:
		if isProver {
			return ProverMsgEvent(generation, ev.Payload)
		}
		return VerifierMsgEvent(generation, ev.Payload)
	case driver.EventOK:
		if isProver {
			return ProverOKEvent(generation)
		}
		return VerifierOKEvent(generation)
	default: // driver.EventFailed
		if isProver {
			return ProverFailedEvent(generation, ev.Err)
		}
		return VerifierFailedEvent(generation, ev.Err)
	}
}
