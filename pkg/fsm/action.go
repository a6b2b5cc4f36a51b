package fsm

import (
	"time"

	"github.com/industrial-data-space/idscp2-go/pkg/timer"
	"github.com/industrial-data-space/idscp2-go/pkg/wire"
)

// ActionKind is the closed set of commands the transition table can ask
// Worker to carry out. Keeping this set closed, and the transition
// function's only output, is what keeps Step pure: it decides *what*
// happens but never performs I/O itself.
type ActionKind uint8

const (
	// ActionSendFrame writes Action.Frame to the secure channel.
	ActionSendFrame ActionKind = iota
	// ActionStartTimer (re)arms Action.TimerName for Action.TimerDuration.
	ActionStartTimer
	// ActionCancelTimer cancels Action.TimerName if armed.
	ActionCancelTimer
	// ActionStartDriver starts Action.DriverID under Action.Role via the
	// matching registry and records the resulting handle/generation.
	ActionStartDriver
	// ActionStopDriver stops the currently live handle for Action.Role.
	ActionStopDriver
	// ActionDelegateDriver forwards Action.Payload to the currently live
	// handle for Action.Role. Not one of the seven illustrative actions
	// named in the governing design note, but required to express "RAT_*
	// frames from the peer are forwarded to the local driver via
	// delegate" as a worker-executed command rather than I/O performed
	// inside Step itself (see DESIGN.md).
	ActionDelegateDriver
	// ActionEmitUserMessage invokes the user's OnMessage callback with
	// Action.Payload.
	ActionEmitUserMessage
	// ActionInvokeOnError invokes the user's OnError callback with
	// Action.CloseReason translated to an idscp2.ErrorKind. Added for the
	// same reason as ActionDelegateDriver: §4.7 promises an OnError
	// callback, and closing with a reason is meaningless to the caller
	// without it.
	ActionInvokeOnError
	// ActionInvokeOnClose invokes the user's OnClose callback. Fired
	// exactly once per connection that ever left STATE_CLOSED.
	ActionInvokeOnClose
)

// String returns a human-readable action kind name, used in tests.
func (k ActionKind) String() string {
	switch k {
	case ActionSendFrame:
		return "SEND_FRAME"
	case ActionStartTimer:
		return "START_TIMER"
	case ActionCancelTimer:
		return "CANCEL_TIMER"
	case ActionStartDriver:
		return "START_DRIVER"
	case ActionStopDriver:
		return "STOP_DRIVER"
	case ActionDelegateDriver:
		return "DELEGATE_DRIVER"
	case ActionEmitUserMessage:
		return "EMIT_USER_MESSAGE"
	case ActionInvokeOnError:
		return "INVOKE_ON_ERROR"
	case ActionInvokeOnClose:
		return "INVOKE_ON_CLOSE"
	default:
		return "UNKNOWN"
	}
}

// Action is a single structured command returned by Step for Worker to
// execute. Only the fields relevant to Kind are populated.
type Action struct {
	Kind ActionKind

	Frame wire.Message // ActionSendFrame

	TimerName     timer.Name    // ActionStartTimer, ActionCancelTimer
	TimerDuration time.Duration // ActionStartTimer

	Role     Role   // ActionStartDriver, ActionStopDriver, ActionDelegateDriver
	DriverID string // ActionStartDriver

	Payload []byte // ActionDelegateDriver, ActionEmitUserMessage

	CloseReason wire.CloseReason // ActionInvokeOnError
}
