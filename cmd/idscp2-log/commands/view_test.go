package commands

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/industrial-data-space/idscp2-go/pkg/log"
	"github.com/industrial-data-space/idscp2-go/pkg/wire"
)

func TestFormatFrameEvent(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 15, 32, 123456000, time.UTC)
	event := log.Event{
		Timestamp:    ts,
		ConnectionID: "abc12345-6789-0123-4567-890abcdef012",
		Direction:    log.DirectionOut,
		Layer:        log.LayerTransport,
		Category:     log.CategoryMessage,
		Frame: &log.FrameEvent{
			Size:      128,
			Data:      []byte{0xa1, 0x01, 0x02, 0x03},
			Truncated: false,
		},
	}

	var buf bytes.Buffer
	formatEvent(&buf, event)
	output := buf.String()

	if !strings.Contains(output, "2026-01-28T10:15:32.123456Z") {
		t.Errorf("expected RFC3339Nano timestamp, got: %s", output)
	}

	if !strings.Contains(output, "[conn:abc12345]") {
		t.Errorf("expected shortened connection ID, got: %s", output)
	}

	if !strings.Contains(output, "OUT") {
		t.Errorf("expected OUT direction, got: %s", output)
	}

	if !strings.Contains(output, "TRANSPORT") {
		t.Errorf("expected TRANSPORT layer, got: %s", output)
	}

	if !strings.Contains(output, "Frame") {
		t.Errorf("expected Frame label, got: %s", output)
	}
	if !strings.Contains(output, "128 bytes") {
		t.Errorf("expected frame size, got: %s", output)
	}
}

func TestFormatMessageEventData(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 15, 32, 123456000, time.UTC)
	event := log.Event{
		Timestamp:    ts,
		ConnectionID: "abc12345-6789-0123-4567-890abcdef012",
		Direction:    log.DirectionOut,
		Layer:        log.LayerWire,
		Category:     log.CategoryMessage,
		Message: &log.MessageEvent{
			Type:        log.TypeData,
			PayloadSize: 42,
		},
	}

	var buf bytes.Buffer
	formatEvent(&buf, event)
	output := buf.String()

	if !strings.Contains(output, "DATA") {
		t.Errorf("expected DATA type, got: %s", output)
	}

	if !strings.Contains(output, "PayloadSize: 42") {
		t.Errorf("expected PayloadSize: 42, got: %s", output)
	}
}

func TestFormatMessageEventClose(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 15, 32, 125789000, time.UTC)
	reason := wire.CloseTimeout
	event := log.Event{
		Timestamp:    ts,
		ConnectionID: "abc12345-6789-0123-4567-890abcdef012",
		Direction:    log.DirectionIn,
		Layer:        log.LayerWire,
		Category:     log.CategoryMessage,
		Message: &log.MessageEvent{
			Type:        log.TypeClose,
			CloseReason: &reason,
		},
	}

	var buf bytes.Buffer
	formatEvent(&buf, event)
	output := buf.String()

	if !strings.Contains(output, "CLOSE") {
		t.Errorf("expected CLOSE type, got: %s", output)
	}

	if !strings.Contains(output, "CloseReason:") {
		t.Errorf("expected CloseReason, got: %s", output)
	}
}

func TestFormatStateChangeEvent(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 15, 30, 0, time.UTC)
	event := log.Event{
		Timestamp:    ts,
		ConnectionID: "abc12345-6789-0123-4567-890abcdef012",
		Direction:    log.DirectionIn,
		Layer:        log.LayerFSM,
		Category:     log.CategoryState,
		StateChange: &log.StateChangeEvent{
			OldState: "WAIT_FOR_HELLO",
			NewState: "WAIT_FOR_RAT",
			Event:    "WireHello",
		},
	}

	var buf bytes.Buffer
	formatEvent(&buf, event)
	output := buf.String()

	if !strings.Contains(output, "State") {
		t.Errorf("expected State category, got: %s", output)
	}

	if !strings.Contains(output, "WAIT_FOR_HELLO -> WAIT_FOR_RAT") {
		t.Errorf("expected state transition, got: %s", output)
	}

	if !strings.Contains(output, "Event: WireHello") {
		t.Errorf("expected triggering event name, got: %s", output)
	}
}

func TestFormatDriverEvent(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 15, 35, 0, time.UTC)
	event := log.Event{
		Timestamp:    ts,
		ConnectionID: "abc12345-6789-0123-4567-890abcdef012",
		Direction:    log.DirectionOut,
		Layer:        log.LayerDriver,
		Category:     log.CategoryDriver,
		Driver: &log.DriverEvent{
			Kind:     log.DriverKindProver,
			DriverID: "dummy",
			Outcome:  log.DriverOutcomeOK,
		},
	}

	var buf bytes.Buffer
	formatEvent(&buf, event)
	output := buf.String()

	if !strings.Contains(output, "PROVER") {
		t.Errorf("expected PROVER kind, got: %s", output)
	}
	if !strings.Contains(output, "Driver: dummy") {
		t.Errorf("expected driver id, got: %s", output)
	}
	if !strings.Contains(output, "Outcome: OK") {
		t.Errorf("expected OK outcome, got: %s", output)
	}
}

func TestFormatErrorEvent(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 15, 40, 0, time.UTC)
	event := log.Event{
		Timestamp:    ts,
		ConnectionID: "abc12345-6789-0123-4567-890abcdef012",
		Direction:    log.DirectionIn,
		Layer:        log.LayerTransport,
		Category:     log.CategoryError,
		Error: &log.ErrorEventData{
			Layer:   log.LayerTransport,
			Message: "connection reset",
			Context: "readLoop",
		},
	}

	var buf bytes.Buffer
	formatEvent(&buf, event)
	output := buf.String()

	if !strings.Contains(output, "Error") {
		t.Errorf("expected Error label, got: %s", output)
	}
	if !strings.Contains(output, "connection reset") {
		t.Errorf("expected error message, got: %s", output)
	}
	if !strings.Contains(output, "Context: readLoop") {
		t.Errorf("expected error context, got: %s", output)
	}
}

func TestFilterByLayer(t *testing.T) {
	events := []log.Event{
		{Layer: log.LayerTransport, Category: log.CategoryMessage},
		{Layer: log.LayerWire, Category: log.CategoryMessage},
		{Layer: log.LayerFSM, Category: log.CategoryMessage},
	}

	wireLayer := log.LayerWire
	filter := ViewFilter{Layer: &wireLayer}

	filtered := filterEvents(events, filter)
	if len(filtered) != 1 {
		t.Errorf("expected 1 event, got %d", len(filtered))
	}
	if filtered[0].Layer != log.LayerWire {
		t.Errorf("expected wire layer, got %v", filtered[0].Layer)
	}
}

func TestFilterByDirection(t *testing.T) {
	events := []log.Event{
		{Direction: log.DirectionIn, Category: log.CategoryMessage},
		{Direction: log.DirectionOut, Category: log.CategoryMessage},
		{Direction: log.DirectionIn, Category: log.CategoryMessage},
	}

	out := log.DirectionOut
	filter := ViewFilter{Direction: &out}

	filtered := filterEvents(events, filter)
	if len(filtered) != 1 {
		t.Errorf("expected 1 event, got %d", len(filtered))
	}
	if filtered[0].Direction != log.DirectionOut {
		t.Errorf("expected out direction, got %v", filtered[0].Direction)
	}
}

func TestFilterByCategory(t *testing.T) {
	events := []log.Event{
		{Category: log.CategoryMessage},
		{Category: log.CategoryDriver},
		{Category: log.CategoryState},
		{Category: log.CategoryError},
	}

	state := log.CategoryState
	filter := ViewFilter{Category: &state}

	filtered := filterEvents(events, filter)
	if len(filtered) != 1 {
		t.Errorf("expected 1 event, got %d", len(filtered))
	}
	if filtered[0].Category != log.CategoryState {
		t.Errorf("expected state category, got %v", filtered[0].Category)
	}
}

func TestParseLayer(t *testing.T) {
	tests := []struct {
		input    string
		expected log.Layer
		wantErr  bool
	}{
		{"transport", log.LayerTransport, false},
		{"TRANSPORT", log.LayerTransport, false},
		{"wire", log.LayerWire, false},
		{"fsm", log.LayerFSM, false},
		{"driver", log.LayerDriver, false},
		{"invalid", 0, true},
	}

	for _, tt := range tests {
		got, err := parseLayer(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseLayer(%q) expected error", tt.input)
			}
		} else {
			if err != nil {
				t.Errorf("parseLayer(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.expected {
				t.Errorf("parseLayer(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		}
	}
}

func TestParseDirection(t *testing.T) {
	tests := []struct {
		input    string
		expected log.Direction
		wantErr  bool
	}{
		{"in", log.DirectionIn, false},
		{"IN", log.DirectionIn, false},
		{"out", log.DirectionOut, false},
		{"OUT", log.DirectionOut, false},
		{"invalid", 0, true},
	}

	for _, tt := range tests {
		got, err := parseDirection(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseDirection(%q) expected error", tt.input)
			}
		} else {
			if err != nil {
				t.Errorf("parseDirection(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.expected {
				t.Errorf("parseDirection(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		}
	}
}

func TestParseCategory(t *testing.T) {
	tests := []struct {
		input    string
		expected log.Category
		wantErr  bool
	}{
		{"message", log.CategoryMessage, false},
		{"MESSAGE", log.CategoryMessage, false},
		{"state", log.CategoryState, false},
		{"driver", log.CategoryDriver, false},
		{"error", log.CategoryError, false},
		{"invalid", 0, true},
	}

	for _, tt := range tests {
		got, err := parseCategory(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseCategory(%q) expected error", tt.input)
			}
		} else {
			if err != nil {
				t.Errorf("parseCategory(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.expected {
				t.Errorf("parseCategory(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		}
	}
}
