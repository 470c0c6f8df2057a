package watch

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatter_Format(t *testing.T) {
	f := Formatter{Location: time.UTC}

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "connection established",
			raw:  `{"type":"connection-established","timestamp":"2025-01-02T15:04:05Z","data":{"connectionId":"abc","queuedMessages":2}}`,
			want: "15:04:05 connection-established   id=abc queued=2",
		},
		{
			name: "pong",
			raw:  `{"type":"pong","timestamp":"2025-01-02T15:04:05Z","data":{"connectionId":"abc"}}`,
			want: "15:04:05 pong                     id=abc",
		},
		{
			name: "operation start",
			raw:  `{"type":"operation-start","timestamp":"2025-01-02T15:04:05Z","data":{"operationId":"op1","operation":"enrollment"}}`,
			want: "15:04:05 operation-start          ● enrollment op1",
		},
		{
			name: "operation success",
			raw:  `{"type":"operation-complete","timestamp":"2025-01-02T15:04:05Z","data":{"operationId":"op1","operation":"validation","result":{"success":true,"message":"Signature valid"}}}`,
			want: "15:04:05 operation-complete       ✓ validation: Signature valid",
		},
		{
			name: "operation failure",
			raw:  `{"type":"operation-complete","timestamp":"2025-01-02T15:04:05Z","data":{"operationId":"op1","operation":"enrollment","result":{"success":false,"message":"Operation cancelled"}}}`,
			want: "15:04:05 operation-complete       ✗ enrollment: Operation cancelled",
		},
		{
			name: "log update",
			raw:  `{"type":"log-update","timestamp":"2025-01-02T15:04:05Z","data":{"entry":{"id":"1","level":"warning","message":"careful"}}}`,
			want: "15:04:05 log-update               [warning] careful",
		},
		{
			name: "log cleared",
			raw:  `{"type":"log-update","timestamp":"2025-01-02T15:04:05Z","data":{"entry":{"id":"1","level":"info","message":"Logs cleared"},"cleared":true}}`,
			want: "15:04:05 log-update               [info] Logs cleared (log cleared)",
		},
		{
			name: "state sync",
			raw:  `{"type":"state-sync","timestamp":"2025-01-02T15:04:05Z","data":{"biometricsAvailable":true,"keysExist":false,"logs":[{"id":"1"}],"isLoading":true,"operationStatus":{"operation":"enrollment","success":false,"message":"x"}}}`,
			want: "15:04:05 state-sync               biometrics=true keys=false loading=true logs=1 last=enrollment:false",
		},
		{
			name: "unknown type keeps data",
			raw:  `{"type":"custom","timestamp":"2025-01-02T15:04:05Z","data":{ "a": 1 }}`,
			want: `15:04:05 custom                   {"a":1}`,
		},
		{
			name: "missing timestamp",
			raw:  `{"type":"custom"}`,
			want: "--:--:-- custom                   ",
		},
		{
			name: "bad data",
			raw:  `{"type":"pong","timestamp":"2025-01-02T15:04:05Z","data":"nope"}`,
			want: `15:04:05 pong                     undecodable data: "nope"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.Format([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatter_FormatErrors(t *testing.T) {
	f := Formatter{}

	_, err := f.Format([]byte("not json"))
	assert.Error(t, err)

	_, err = f.Format([]byte(`{"data":{}}`))
	assert.Error(t, err)
}

func TestFormatter_Color(t *testing.T) {
	f := Formatter{Color: true, Location: time.UTC}

	got, err := f.Format([]byte(`{"type":"log-update","timestamp":"2025-01-02T15:04:05Z","data":{"entry":{"level":"error","message":"boom"}}}`))
	require.NoError(t, err)
	assert.True(t, strings.Contains(got, "15:04:05"))
	assert.True(t, strings.Contains(got, "log-update"))
	assert.True(t, strings.Contains(got, "[error] boom"))
}
