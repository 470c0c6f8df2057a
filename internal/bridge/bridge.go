package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/muurk/webcontrol/internal/biometric"
	"github.com/muurk/webcontrol/internal/logging"
	"github.com/muurk/webcontrol/internal/protocol"
	"github.com/muurk/webcontrol/internal/types"
	"github.com/muurk/webcontrol/internal/verifyapi"
	"go.uber.org/zap"
)

var (
	// ErrOperationInProgress is returned when an operation is already running.
	ErrOperationInProgress = errors.New("another operation is already in progress")

	// ErrInvalidConfig wraps endpoint configuration validation failures.
	ErrInvalidConfig = errors.New("invalid endpoint configuration")
)

// DefaultMaxLogEntries bounds the log when Config leaves it unset.
const DefaultMaxLogEntries = 100

// Transport delivers messages to WebSocket clients.
type Transport interface {
	Broadcast(payload protocol.Payload)
	SendToClient(connectionID string, payload protocol.Payload) bool
}

// Verifier is the remote verification API.
type Verifier interface {
	EnrollPublicKey(ctx context.Context, cfg types.EndpointConfig, publicKey string) (*verifyapi.Result, error)
	ValidateSignature(ctx context.Context, cfg types.EndpointConfig, payload, signature string) (*verifyapi.Result, error)
}

// Config holds the bridge settings.
type Config struct {
	MaxLogEntries   int
	KeyPrompt       string // shown by the key service when a key is used
	PayloadTemplate string // template for the payload signed during validation
	EnrollConfig    types.EndpointConfig
	ValidateConfig  types.EndpointConfig
}

// Bridge is the state owner. It is safe for concurrent use.
type Bridge struct {
	cfg       Config
	keys      biometric.KeyService
	api       Verifier
	transport Transport
	now       func() time.Time

	mu      sync.Mutex
	state   types.BridgeState
	current *operation

	listenerMu     sync.Mutex
	nextListener   int
	stateListeners []stateListener
	logListeners   []logListener

	ops sync.WaitGroup
}

type stateListener struct {
	id int
	fn func(types.BridgeState)
}

type logListener struct {
	id int
	fn func(types.LogEntry)
}

// New creates a Bridge. transport may be nil, in which case nothing is sent
// to WebSocket clients.
func New(cfg Config, keys biometric.KeyService, api Verifier, transport Transport) *Bridge {
	if cfg.MaxLogEntries <= 0 {
		cfg.MaxLogEntries = DefaultMaxLogEntries
	}
	return &Bridge{
		cfg:       cfg,
		keys:      keys,
		api:       api,
		transport: transport,
		now:       time.Now,
		state: types.BridgeState{
			EnrollConfig:   cfg.EnrollConfig.Clone(),
			ValidateConfig: cfg.ValidateConfig.Clone(),
			Logs:           []types.LogEntry{},
		},
	}
}

// Snapshot returns a deep copy of the current state.
func (b *Bridge) Snapshot() types.BridgeState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.Clone()
}

// Logs returns a copy of the log, oldest first.
func (b *Bridge) Logs() []types.LogEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]types.LogEntry{}, b.state.Logs...)
}

// OnStateChange registers fn for state changes. The returned function
// unregisters it and may be called more than once.
func (b *Bridge) OnStateChange(fn func(types.BridgeState)) (unsubscribe func()) {
	b.listenerMu.Lock()
	b.nextListener++
	id := b.nextListener
	b.stateListeners = append(b.stateListeners, stateListener{id: id, fn: fn})
	b.listenerMu.Unlock()

	return func() {
		b.listenerMu.Lock()
		defer b.listenerMu.Unlock()
		for i, l := range b.stateListeners {
			if l.id == id {
				b.stateListeners = append(b.stateListeners[:i:i], b.stateListeners[i+1:]...)
				return
			}
		}
	}
}

// OnLogUpdate registers fn for new log entries.
func (b *Bridge) OnLogUpdate(fn func(types.LogEntry)) (unsubscribe func()) {
	b.listenerMu.Lock()
	b.nextListener++
	id := b.nextListener
	b.logListeners = append(b.logListeners, logListener{id: id, fn: fn})
	b.listenerMu.Unlock()

	return func() {
		b.listenerMu.Lock()
		defer b.listenerMu.Unlock()
		for i, l := range b.logListeners {
			if l.id == id {
				b.logListeners = append(b.logListeners[:i:i], b.logListeners[i+1:]...)
				return
			}
		}
	}
}

// UpdateConfiguration replaces the stored enroll or validate endpoint.
func (b *Bridge) UpdateConfiguration(kind types.ConfigKind, cfg types.EndpointConfig) error {
	if err := cfg.Validate(); err != nil {
		b.Log(types.LogError, "Rejected "+string(kind)+" configuration: "+err.Error())
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	b.mu.Lock()
	switch kind {
	case types.ConfigEnroll:
		b.state.EnrollConfig = cfg.Clone()
	case types.ConfigValidate:
		b.state.ValidateConfig = cfg.Clone()
	default:
		b.mu.Unlock()
		_, err := types.ParseConfigKind(string(kind))
		return err
	}
	entry := b.appendLogLocked(types.LogInfo, configLabel(kind)+" configuration updated: "+cfg.Method+" "+cfg.URL)
	snap := b.state.Clone()
	b.mu.Unlock()

	b.emitLog(entry, false)
	b.emitState(snap)
	return nil
}

// SyncFromMobileApp merges host-side state changes.
func (b *Bridge) SyncFromMobileApp(patch types.StatePatch) {
	b.mu.Lock()
	patch.Apply(&b.state)
	snap := b.state.Clone()
	b.mu.Unlock()

	b.emitState(snap)
}

// ClearLogs empties the log and records that it was cleared.
func (b *Bridge) ClearLogs() {
	b.mu.Lock()
	b.state.Logs = b.state.Logs[:0]
	entry := b.appendLogLocked(types.LogInfo, "Logs cleared")
	snap := b.state.Clone()
	b.mu.Unlock()

	b.emitLog(entry, true)
	b.emitState(snap)
}

// Log appends an entry and publishes it.
func (b *Bridge) Log(level types.LogLevel, message string) types.LogEntry {
	b.mu.Lock()
	entry := b.appendLogLocked(level, message)
	b.mu.Unlock()

	b.emitLog(entry, false)
	return entry
}

// appendLogLocked appends an entry, dropping the oldest past the limit.
func (b *Bridge) appendLogLocked(level types.LogLevel, message string) types.LogEntry {
	now := b.now()
	entry := types.LogEntry{
		ID:        types.NewID(now),
		Timestamp: now,
		Level:     level,
		Message:   message,
	}
	b.state.Logs = append(b.state.Logs, entry)
	if over := len(b.state.Logs) - b.cfg.MaxLogEntries; over > 0 {
		b.state.Logs = append(b.state.Logs[:0], b.state.Logs[over:]...)
	}
	return entry
}

// mutate applies fn under the lock and publishes the new state.
func (b *Bridge) mutate(fn func(s *types.BridgeState)) {
	b.mu.Lock()
	fn(&b.state)
	snap := b.state.Clone()
	b.mu.Unlock()

	b.emitState(snap)
}

func (b *Bridge) emitLog(entry types.LogEntry, cleared bool) {
	logging.Debug("Bridge log",
		zap.String("level", string(entry.Level)),
		zap.String("message", entry.Message),
	)

	b.listenerMu.Lock()
	listeners := append([]logListener(nil), b.logListeners...)
	b.listenerMu.Unlock()

	for _, l := range listeners {
		l.fn(entry)
	}
	b.broadcast(protocol.LogUpdate{Entry: entry, Cleared: cleared})
}

func (b *Bridge) emitState(snap types.BridgeState) {
	b.listenerMu.Lock()
	listeners := append([]stateListener(nil), b.stateListeners...)
	b.listenerMu.Unlock()

	for _, l := range listeners {
		l.fn(snap.Clone())
	}
	b.broadcast(protocol.StateSync{BridgeState: snap})
}

func (b *Bridge) broadcast(payload protocol.Payload) {
	if b.transport != nil {
		b.transport.Broadcast(payload)
	}
}

func configLabel(kind types.ConfigKind) string {
	if kind == types.ConfigValidate {
		return "Validation"
	}
	return "Enrollment"
}
