package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/industrial-data-space/idscp2-go/pkg/log"
)

// RunExport exports the log file to the specified format.
func RunExport(path, format, output string) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	// Determine output writer
	var w io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	switch format {
	case "jsonl":
		return exportJSONL(reader, w)
	case "csv":
		return exportCSV(reader, w)
	default:
		return fmt.Errorf("unknown format: %s (supported: jsonl, csv)", format)
	}
}

func exportJSONL(reader *log.Reader, w io.Writer) error {
	encoder := json.NewEncoder(w)
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if err := encoder.Encode(event); err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
	}
	return nil
}

func exportCSV(reader *log.Reader, w io.Writer) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{"timestamp", "connection_id", "direction", "layer", "category", "detail"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}

		row := []string{
			event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z"),
			event.ConnectionID,
			event.Direction.String(),
			event.Layer.String(),
			event.Category.String(),
			eventDetail(event),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	return nil
}

// eventDetail renders the one type-specific payload an event carries as a
// single summary column, matching whichever of Frame/Message/StateChange/
// Driver/Error is set.
func eventDetail(event log.Event) string {
	switch {
	case event.Message != nil:
		return fmt.Sprintf("type=%s payload_bytes=%d", event.Message.Type, event.Message.PayloadSize)
	case event.StateChange != nil:
		return fmt.Sprintf("%s->%s (%s)", event.StateChange.OldState, event.StateChange.NewState, event.StateChange.Event)
	case event.Driver != nil:
		return fmt.Sprintf("%s driver=%s outcome=%s gen=%d", event.Driver.Kind, event.Driver.DriverID, event.Driver.Outcome, event.Driver.Generation)
	case event.Error != nil:
		return fmt.Sprintf("%s: %s", event.Error.Context, event.Error.Message)
	case event.Frame != nil:
		suffix := ""
		if event.Frame.Truncated {
			suffix = " (truncated)"
		}
		return fmt.Sprintf("%d bytes%s", event.Frame.Size, suffix)
	default:
		return ""
	}
}
