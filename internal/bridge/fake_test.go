package bridge

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/muurk/webcontrol/internal/biometric"
	"github.com/muurk/webcontrol/internal/protocol"
	"github.com/muurk/webcontrol/internal/types"
	"github.com/muurk/webcontrol/internal/verifyapi"
)

// recordingTransport captures every payload handed to the transport.
type recordingTransport struct {
	mu        sync.Mutex
	broadcast []protocol.Payload
	unicast   map[string][]protocol.Payload
}

func (t *recordingTransport) Broadcast(p protocol.Payload) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.broadcast = append(t.broadcast, p)
}

func (t *recordingTransport) SendToClient(id string, p protocol.Payload) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.unicast == nil {
		t.unicast = make(map[string][]protocol.Payload)
	}
	t.unicast[id] = append(t.unicast[id], p)
	return true
}

func (t *recordingTransport) kinds() []protocol.MessageType {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]protocol.MessageType, len(t.broadcast))
	for i, p := range t.broadcast {
		out[i] = p.MessageType()
	}
	return out
}

func (t *recordingTransport) last(kind protocol.MessageType) protocol.Payload {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := len(t.broadcast) - 1; i >= 0; i-- {
		if t.broadcast[i].MessageType() == kind {
			return t.broadcast[i]
		}
	}
	return nil
}

// fakeVerifier answers with a canned result. When block is set, calls wait
// for it to close or for ctx to end.
type fakeVerifier struct {
	mu         sync.Mutex
	result     *verifyapi.Result
	err        error
	block      chan struct{}
	entered    chan struct{}
	enterOnce  sync.Once
	publicKeys []string
	payloads   []string
	signatures []string
	configs    []types.EndpointConfig
}

func (v *fakeVerifier) wait(ctx context.Context) error {
	if v.entered != nil {
		v.enterOnce.Do(func() { close(v.entered) })
	}
	if v.block == nil {
		return nil
	}
	select {
	case <-v.block:
		return nil
	case <-ctx.Done():
		return verifyapi.NewNetworkError("request failed", ctx.Err())
	}
}

func (v *fakeVerifier) EnrollPublicKey(ctx context.Context, cfg types.EndpointConfig, publicKey string) (*verifyapi.Result, error) {
	v.mu.Lock()
	v.publicKeys = append(v.publicKeys, publicKey)
	v.configs = append(v.configs, cfg)
	v.mu.Unlock()

	if err := v.wait(ctx); err != nil {
		return nil, err
	}
	return v.result, v.err
}

func (v *fakeVerifier) ValidateSignature(ctx context.Context, cfg types.EndpointConfig, payload, signature string) (*verifyapi.Result, error) {
	v.mu.Lock()
	v.payloads = append(v.payloads, payload)
	v.signatures = append(v.signatures, signature)
	v.configs = append(v.configs, cfg)
	v.mu.Unlock()

	if err := v.wait(ctx); err != nil {
		return nil, err
	}
	return v.result, v.err
}

func validEndpoint(path string) types.EndpointConfig {
	return types.EndpointConfig{URL: "https://verify.example.com" + path, Method: "POST"}
}

func newTestBridge(t *testing.T, mutate func(*Config)) (*Bridge, *biometric.SoftwareKeyService, *fakeVerifier, *recordingTransport) {
	t.Helper()
	cfg := Config{
		MaxLogEntries:  100,
		KeyPrompt:      "Confirm",
		EnrollConfig:   validEndpoint("/enroll"),
		ValidateConfig: validEndpoint("/validate"),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	keys := biometric.NewSoftwareKeyService()
	api := &fakeVerifier{result: &verifyapi.Result{Success: true, Message: "ok", StatusCode: 200}}
	transport := &recordingTransport{}
	return New(cfg, keys, api, transport), keys, api, transport
}

func decodeBody(t *testing.T, body any, v any) {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		t.Fatal(err)
	}
}
