package bridge

import (
	"testing"

	"github.com/muurk/webcontrol/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleHTTP_Routing(t *testing.T) {
	b, _, _, _ := newTestBridge(t, nil)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"root", "GET", "/", "", 200},
		{"state", "GET", "/api/state", "", 200},
		{"state trailing slash", "GET", "/api/state/", "", 200},
		{"logs", "GET", "/api/logs", "", 200},
		{"unknown path", "GET", "/api/unknown", "", 404},
		{"state wrong method", "POST", "/api/state", "", 405},
		{"config wrong method", "GET", "/api/config/enroll", "", 405},
		{"config bad json", "POST", "/api/config/enroll", "{", 400},
		{"config empty body", "PUT", "/api/config/validate", "", 400},
		{"config invalid", "POST", "/api/config/enroll", `{"url":"ftp://x","method":"POST"}`, 400},
		{"operation bad json", "POST", "/api/operations/enroll", "[", 400},
		{"sync bad json", "PATCH", "/api/sync", "nope", 400},
		{"keys wrong method", "GET", "/api/keys", "", 405},
		{"cancel idle", "POST", "/api/operations/cancel", "", 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := b.HandleHTTP(tt.method, tt.path, []byte(tt.body))
			assert.Equal(t, tt.want, resp.Status, "body: %+v", resp.Body)
			if tt.want >= 400 {
				body, ok := resp.Body.(types.ErrorBody)
				require.True(t, ok)
				assert.False(t, body.Success)
				assert.NotEmpty(t, body.Message)
			}
		})
	}
}

func TestHandleHTTP_UpdateConfig(t *testing.T) {
	b, _, _, _ := newTestBridge(t, nil)

	resp := b.HandleHTTP("PUT", "/api/config/validate", []byte(`{"url":"http://127.0.0.1:9000/check","method":"PATCH","headers":{"X-A":"1"}}`))
	require.Equal(t, 200, resp.Status)

	var body ActionBody
	decodeBody(t, resp.Body, &body)
	assert.True(t, body.Success)
	require.NotNil(t, body.Config)
	assert.Equal(t, "PATCH", body.Config.Method)

	assert.Equal(t, "http://127.0.0.1:9000/check", b.Snapshot().ValidateConfig.URL)
}

func TestHandleHTTP_StartOperation(t *testing.T) {
	b, _, api, _ := newTestBridge(t, nil)

	resp := b.HandleHTTP("POST", "/api/operations/enroll", []byte(`{"config":{"url":"https://override.example.com/e","method":"POST"}}`))
	require.Equal(t, 200, resp.Status)

	var body ActionBody
	decodeBody(t, resp.Body, &body)
	assert.NotEmpty(t, body.OperationID)

	b.Wait()
	require.Len(t, api.configs, 1)
	assert.Equal(t, "https://override.example.com/e", api.configs[0].URL)
	assert.Equal(t, body.OperationID, b.Snapshot().OperationStatus.OperationID)
}

func TestHandleHTTP_StartOperationWhileBusy(t *testing.T) {
	b, _, api, _ := newTestBridge(t, nil)
	api.block = make(chan struct{})
	api.entered = make(chan struct{})

	require.Equal(t, 200, b.HandleHTTP("POST", "/api/operations/enroll", nil).Status)
	<-api.entered

	resp := b.HandleHTTP("POST", "/api/operations/validate", nil)
	assert.Equal(t, 400, resp.Status)

	resp = b.HandleHTTP("POST", "/api/operations/cancel", nil)
	var body ActionBody
	decodeBody(t, resp.Body, &body)
	assert.True(t, body.Success)
	b.Wait()
}

func TestHandleHTTP_LogsAndClear(t *testing.T) {
	b, _, _, _ := newTestBridge(t, nil)
	b.Log(types.LogInfo, "one")

	var logs LogsBody
	decodeBody(t, b.HandleHTTP("GET", "/api/logs", nil).Body, &logs)
	require.Len(t, logs.Logs, 1)

	assert.Equal(t, 200, b.HandleHTTP("DELETE", "/api/logs", nil).Status)
	assert.Equal(t, 200, b.HandleHTTP("POST", "/api/logs/clear", nil).Status)

	decodeBody(t, b.HandleHTTP("GET", "/api/logs", nil).Body, &logs)
	require.Len(t, logs.Logs, 1)
	assert.Equal(t, "Logs cleared", logs.Logs[0].Message)
}

func TestHandleHTTP_SyncAvailabilityKeys(t *testing.T) {
	b, _, _, _ := newTestBridge(t, nil)

	resp := b.HandleHTTP("POST", "/api/sync", []byte(`{"keysExist":true,"biometryType":"TouchID"}`))
	require.Equal(t, 200, resp.Status)
	var body ActionBody
	decodeBody(t, resp.Body, &body)
	require.NotNil(t, body.State)
	assert.True(t, body.State.KeysExist)
	assert.Equal(t, "TouchID", body.State.BiometryType)

	resp = b.HandleHTTP("POST", "/api/availability", nil)
	require.Equal(t, 200, resp.Status)
	body = ActionBody{}
	decodeBody(t, resp.Body, &body)
	require.NotNil(t, body.Availability)
	assert.True(t, body.Availability.Available)
	assert.False(t, b.Snapshot().KeysExist, "availability refresh reads the key service")

	assert.Equal(t, 200, b.HandleHTTP("DELETE", "/api/keys", nil).Status)
	assert.Equal(t, 200, b.HandleHTTP("POST", "/api/keys/delete", nil).Status)
}

func TestHandleHTTP_StateSnapshot(t *testing.T) {
	b, _, _, _ := newTestBridge(t, nil)

	resp := b.HandleHTTP("GET", "/api/state", nil)
	state, ok := resp.Body.(types.BridgeState)
	require.True(t, ok)
	assert.Equal(t, validEndpoint("/enroll"), state.EnrollConfig)
	assert.NotNil(t, state.Logs)
}
