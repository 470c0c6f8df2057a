package watch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/muurk/webcontrol/internal/protocol"
	"github.com/muurk/webcontrol/internal/types"
	"github.com/muurk/webcontrol/internal/ui"
)

// Message is the envelope every server message arrives in.
type Message struct {
	Type      protocol.MessageType `json:"type"`
	Timestamp time.Time            `json:"timestamp"`
	Data      json.RawMessage      `json:"data,omitempty"`
}

// Formatter turns server messages into single display lines.
type Formatter struct {
	// Color enables lipgloss styling. Without it lines are plain,
	// column-aligned text.
	Color bool

	// Location for timestamps. Nil means time.Local.
	Location *time.Location
}

// Format decodes one text frame and renders it.
func (f Formatter) Format(raw []byte) (string, error) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return "", fmt.Errorf("failed to decode message: %w", err)
	}
	if msg.Type == "" {
		return "", fmt.Errorf("message has no type")
	}
	return f.FormatMessage(msg), nil
}

// FormatMessage renders a decoded message as "HH:MM:SS type detail".
func (f Formatter) FormatMessage(msg Message) string {
	detail, level := describe(msg)

	loc := f.Location
	if loc == nil {
		loc = time.Local
	}
	ts := "--:--:--"
	if !msg.Timestamp.IsZero() {
		ts = msg.Timestamp.In(loc).Format("15:04:05")
	}

	if !f.Color {
		return fmt.Sprintf("%s %-24s %s", ts, msg.Type, detail)
	}
	typeStyle := ui.MessageTypeStyle.Foreground(ui.ColorForType(string(msg.Type)))
	return ui.TimestampStyle.Render(ts) + " " +
		typeStyle.Render(string(msg.Type)) + " " +
		ui.LevelStyle(level).Render(detail)
}

// describe returns the detail text for a message and the level it should be
// styled with.
func describe(msg Message) (string, string) {
	switch msg.Type {
	case protocol.TypeConnectionEstablished:
		var d protocol.ConnectionEstablished
		if err := json.Unmarshal(msg.Data, &d); err != nil {
			return undecodable(msg.Data)
		}
		return fmt.Sprintf("id=%s queued=%d", d.ConnectionID, d.QueuedMessages), "info"

	case protocol.TypePong:
		var d protocol.Pong
		if err := json.Unmarshal(msg.Data, &d); err != nil {
			return undecodable(msg.Data)
		}
		return "id=" + d.ConnectionID, "debug"

	case protocol.TypeOperationStart:
		var d protocol.OperationStart
		if err := json.Unmarshal(msg.Data, &d); err != nil {
			return undecodable(msg.Data)
		}
		return fmt.Sprintf("%s %s %s", ui.RunningMarker, d.Operation, d.OperationID), "info"

	case protocol.TypeOperationComplete:
		var d protocol.OperationComplete
		if err := json.Unmarshal(msg.Data, &d); err != nil {
			return undecodable(msg.Data)
		}
		if d.Result.Success {
			return fmt.Sprintf("%s %s: %s", ui.SuccessMarker, d.Operation, d.Result.Message), "success"
		}
		return fmt.Sprintf("%s %s: %s", ui.FailureMarker, d.Operation, d.Result.Message), "error"

	case protocol.TypeLogUpdate:
		var d protocol.LogUpdate
		if err := json.Unmarshal(msg.Data, &d); err != nil {
			return undecodable(msg.Data)
		}
		text := fmt.Sprintf("[%s] %s", d.Entry.Level, d.Entry.Message)
		if d.Cleared {
			text += " (log cleared)"
		}
		return text, string(d.Entry.Level)

	case protocol.TypeStateSync:
		var d types.BridgeState
		if err := json.Unmarshal(msg.Data, &d); err != nil {
			return undecodable(msg.Data)
		}
		text := fmt.Sprintf("biometrics=%t keys=%t loading=%t logs=%d",
			d.BiometricsAvailable, d.KeysExist, d.IsLoading, len(d.Logs))
		if d.OperationStatus != nil {
			text += fmt.Sprintf(" last=%s:%t", d.OperationStatus.Operation, d.OperationStatus.Success)
		}
		return text, "info"

	default:
		return compact(msg.Data), "info"
	}
}

func undecodable(data json.RawMessage) (string, string) {
	return "undecodable data: " + compact(data), "warning"
}

func compact(data json.RawMessage) string {
	if len(data) == 0 {
		return ""
	}
	var b bytes.Buffer
	if err := json.Compact(&b, data); err != nil {
		return string(data)
	}
	return b.String()
}
