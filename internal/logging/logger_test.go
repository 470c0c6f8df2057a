package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestInitializeLevels(t *testing.T) {
	t.Setenv(LogLevelEnvVar, "")

	tests := []struct {
		level   string
		wantErr bool
	}{
		{"", false},
		{"debug", false},
		{"info", false},
		{"warn", false},
		{"error", false},
		{"verbose", true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			err := Initialize(tt.level)
			if (err != nil) != tt.wantErr {
				t.Errorf("Initialize(%q) error = %v, wantErr %v", tt.level, err, tt.wantErr)
			}
		})
	}
	SetLogger(zap.NewNop())
}

func TestLogHTTPRequestRedactsAuthorization(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	SetLogger(zap.New(core))
	defer SetLogger(zap.NewNop())

	LogHTTPRequest("127.0.0.1:5000", "GET", "/api/state", map[string]string{
		"authorization": "Basic YWRtaW46MTIzNDU2",
		"host":          "localhost",
	})

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d log entries, want 1", len(entries))
	}
	headers, ok := entries[0].ContextMap()["headers"].(map[string]string)
	if !ok {
		t.Fatalf("headers field has unexpected type %T", entries[0].ContextMap()["headers"])
	}
	if headers["authorization"] != "[redacted]" {
		t.Errorf("authorization = %q, want [redacted]", headers["authorization"])
	}
	if headers["host"] != "localhost" {
		t.Errorf("host = %q, want localhost", headers["host"])
	}
}

func TestDumpsAreBounded(t *testing.T) {
	data := make([]byte, 1000)
	if got := len(hexDump(data)); got != maxDumpBytes*2+3 {
		t.Errorf("hexDump length = %d, want %d", got, maxDumpBytes*2+3)
	}
	if got := len(asciiDump(data)); got != maxDumpBytes {
		t.Errorf("asciiDump length = %d, want %d", got, maxDumpBytes)
	}
	if got := asciiDump([]byte("ok\x00")); got != "ok." {
		t.Errorf("asciiDump = %q, want %q", got, "ok.")
	}
}
