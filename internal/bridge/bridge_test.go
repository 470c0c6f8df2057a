package bridge

import (
	"fmt"
	"testing"

	"github.com/muurk/webcontrol/internal/protocol"
	"github.com/muurk/webcontrol/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshot_IsDeepCopy(t *testing.T) {
	b, _, _, _ := newTestBridge(t, func(c *Config) {
		c.EnrollConfig.Headers = map[string]string{"X-Key": "a"}
	})
	b.Log(types.LogInfo, "hello")

	snap := b.Snapshot()
	snap.EnrollConfig.Headers["X-Key"] = "mutated"
	snap.Logs[0].Message = "mutated"

	again := b.Snapshot()
	assert.Equal(t, "a", again.EnrollConfig.Headers["X-Key"])
	assert.Equal(t, "hello", again.Logs[0].Message)
}

func TestLog_IsBoundedNewestKept(t *testing.T) {
	b, _, _, _ := newTestBridge(t, func(c *Config) { c.MaxLogEntries = 3 })
	for i := 0; i < 5; i++ {
		b.Log(types.LogInfo, fmt.Sprint(i))
	}

	logs := b.Logs()
	require.Len(t, logs, 3)
	assert.Equal(t, "2", logs[0].Message)
	assert.Equal(t, "4", logs[2].Message)
}

func TestLog_IDsAreUnique(t *testing.T) {
	b, _, _, _ := newTestBridge(t, func(c *Config) { c.MaxLogEntries = 1000 })
	seen := make(map[string]bool)
	for i := 0; i < 500; i++ {
		e := b.Log(types.LogInfo, "x")
		require.False(t, seen[e.ID], "duplicate id %s", e.ID)
		seen[e.ID] = true
	}
}

func TestLog_BroadcastsLogUpdate(t *testing.T) {
	b, _, _, transport := newTestBridge(t, nil)
	b.Log(types.LogWarning, "careful")

	msg, ok := transport.last(protocol.TypeLogUpdate).(protocol.LogUpdate)
	require.True(t, ok)
	assert.Equal(t, "careful", msg.Entry.Message)
	assert.Equal(t, types.LogWarning, msg.Entry.Level)
	assert.False(t, msg.Cleared)
}

func TestListeners_UnsubscribeStopsDelivery(t *testing.T) {
	b, _, _, _ := newTestBridge(t, nil)

	var states, logs int
	unsubState := b.OnStateChange(func(types.BridgeState) { states++ })
	unsubLog := b.OnLogUpdate(func(types.LogEntry) { logs++ })

	b.ClearLogs()
	assert.Equal(t, 1, states)
	assert.Equal(t, 1, logs)

	unsubState()
	unsubState()
	unsubLog()
	b.ClearLogs()
	assert.Equal(t, 1, states)
	assert.Equal(t, 1, logs)
}

func TestListeners_UnsubscribeDuringDispatch(t *testing.T) {
	b, _, _, _ := newTestBridge(t, nil)

	var calls []string
	var unsubA func()
	unsubA = b.OnLogUpdate(func(types.LogEntry) {
		calls = append(calls, "a")
		unsubA()
	})
	b.OnLogUpdate(func(types.LogEntry) { calls = append(calls, "b") })

	b.Log(types.LogInfo, "one")
	b.Log(types.LogInfo, "two")
	assert.Equal(t, []string{"a", "b", "b"}, calls)
}

func TestClearLogs(t *testing.T) {
	b, _, _, transport := newTestBridge(t, nil)
	b.Log(types.LogInfo, "one")
	b.Log(types.LogInfo, "two")

	b.ClearLogs()

	logs := b.Logs()
	require.Len(t, logs, 1)
	assert.Equal(t, "Logs cleared", logs[0].Message)

	msg, ok := transport.last(protocol.TypeLogUpdate).(protocol.LogUpdate)
	require.True(t, ok)
	assert.True(t, msg.Cleared)
}

func TestUpdateConfiguration(t *testing.T) {
	b, _, _, transport := newTestBridge(t, nil)

	cfg := types.EndpointConfig{
		URL:     "http://10.0.0.2:3000/v2/enroll",
		Method:  "PUT",
		Headers: map[string]string{"Authorization": "Bearer x"},
	}
	require.NoError(t, b.UpdateConfiguration(types.ConfigEnroll, cfg))

	snap := b.Snapshot()
	assert.Equal(t, cfg, snap.EnrollConfig)
	assert.Equal(t, validEndpoint("/validate"), snap.ValidateConfig)
	assert.Contains(t, snap.Logs[len(snap.Logs)-1].Message, "Enrollment configuration updated")

	sync, ok := transport.last(protocol.TypeStateSync).(protocol.StateSync)
	require.True(t, ok)
	assert.Equal(t, cfg.URL, sync.EnrollConfig.URL)

	cfg.Headers["Authorization"] = "changed"
	assert.Equal(t, "Bearer x", b.Snapshot().EnrollConfig.Headers["Authorization"])
}

func TestUpdateConfiguration_Invalid(t *testing.T) {
	b, _, _, _ := newTestBridge(t, nil)

	err := b.UpdateConfiguration(types.ConfigValidate, types.EndpointConfig{URL: "not a url", Method: "POST"})
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Equal(t, validEndpoint("/validate"), b.Snapshot().ValidateConfig)

	logs := b.Logs()
	require.NotEmpty(t, logs)
	assert.Equal(t, types.LogError, logs[len(logs)-1].Level)
}

func TestSyncFromMobileApp(t *testing.T) {
	b, _, _, transport := newTestBridge(t, nil)

	available := true
	kind := "FaceID"
	b.SyncFromMobileApp(types.StatePatch{BiometricsAvailable: &available, BiometryType: &kind})

	snap := b.Snapshot()
	assert.True(t, snap.BiometricsAvailable)
	assert.Equal(t, "FaceID", snap.BiometryType)
	assert.False(t, snap.KeysExist)
	assert.Equal(t, validEndpoint("/enroll"), snap.EnrollConfig)
	assert.Equal(t, []protocol.MessageType{protocol.TypeStateSync}, transport.kinds())
}

func TestNilTransport(t *testing.T) {
	b := New(Config{}, nil, nil, nil)
	b.Log(types.LogInfo, "no transport")
	b.ClearLogs()
	assert.Len(t, b.Logs(), 1)
}
