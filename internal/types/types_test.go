package types

import (
	"encoding/json"
	"testing"
	"time"
)

func TestEndpointConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     EndpointConfig
		wantErr bool
	}{
		{"valid post", EndpointConfig{URL: "https://api.example.com/enroll", Method: "POST"}, false},
		{"lowercase method", EndpointConfig{URL: "http://10.0.0.2:3000/v", Method: "put"}, false},
		{"empty url", EndpointConfig{Method: "POST"}, true},
		{"ftp scheme", EndpointConfig{URL: "ftp://example.com", Method: "POST"}, true},
		{"no host", EndpointConfig{URL: "http://", Method: "POST"}, true},
		{"bad method", EndpointConfig{URL: "https://example.com", Method: "TRACE"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBridgeStateCloneIsDeep(t *testing.T) {
	state := BridgeState{
		EnrollConfig: EndpointConfig{URL: "https://a", Method: "POST", Headers: map[string]string{"X": "1"}},
		Logs:         []LogEntry{NewLogEntry(LogInfo, "first")},
		OperationStatus: &OperationResult{
			Success: true,
			Data:    json.RawMessage(`{"ok":true}`),
		},
	}

	clone := state.Clone()
	clone.EnrollConfig.Headers["X"] = "2"
	clone.Logs[0].Message = "changed"
	clone.OperationStatus.Data[2] = 'X'

	if state.EnrollConfig.Headers["X"] != "1" {
		t.Error("headers map shared between clone and original")
	}
	if state.Logs[0].Message != "first" {
		t.Error("logs slice shared between clone and original")
	}
	if string(state.OperationStatus.Data) != `{"ok":true}` {
		t.Error("operation data shared between clone and original")
	}
}

func TestStatePatchApply(t *testing.T) {
	available := true
	state := BridgeState{KeysExist: true, IsLoading: true}
	StatePatch{BiometricsAvailable: &available}.Apply(&state)

	if !state.BiometricsAvailable {
		t.Error("BiometricsAvailable not merged")
	}
	if !state.KeysExist || !state.IsLoading {
		t.Error("nil patch fields must leave state untouched")
	}
}

func TestNewIDUnique(t *testing.T) {
	now := time.Now()
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewID(now)
		if seen[id] {
			t.Fatalf("duplicate id %s after %d iterations", id, i)
		}
		seen[id] = true
	}
}

func TestParseConfigKind(t *testing.T) {
	if k, err := ParseConfigKind(" Enroll "); err != nil || k != ConfigEnroll {
		t.Errorf("ParseConfigKind(Enroll) = %v, %v", k, err)
	}
	if _, err := ParseConfigKind("other"); err == nil {
		t.Error("ParseConfigKind(other) should fail")
	}
}
