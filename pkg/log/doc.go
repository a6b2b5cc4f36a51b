// Package log provides structured protocol logging for IDSCP2 (C11).
//
// This package defines the Logger interface and Event types for capturing
// protocol-level events at multiple layers (transport, wire, FSM, driver).
// It is separate from operational logging (slog) - protocol capture provides
// a complete machine-readable event trace for debugging and analysis.
//
// # Basic Usage
//
// Applications configure logging by providing a Logger implementation:
//
//	// For development: log to console via slog
//	cfg.Logger = log.NewSlogAdapter(slog.Default())
//
//	// For production: write to binary file
//	fileLogger, _ := log.NewFileLogger("/var/log/idscp2/device.ilog")
//	cfg.Logger = fileLogger
//
//	// Both: use MultiLogger
//	cfg.Logger = log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	)
//
// # Event Types
//
// Events are captured at multiple layers:
//   - Transport: raw frame bytes (FrameEvent)
//   - Wire: decoded messages (MessageEvent)
//   - FSM: state transitions (StateChangeEvent)
//   - Driver: prover/verifier lifecycle (DriverEvent)
//
// Errors at any layer use a dedicated event type.
//
// # File Format
//
// Log files use CBOR encoding with .ilog extension. The idscp2-log CLI
// tool provides viewing, filtering, and export capabilities.
package log
