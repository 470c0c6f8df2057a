package bridge

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/muurk/webcontrol/internal/biometric"
	"github.com/muurk/webcontrol/internal/logging"
	"github.com/muurk/webcontrol/internal/protocol"
	"github.com/muurk/webcontrol/internal/types"
	"github.com/muurk/webcontrol/internal/verifyapi"
	"go.uber.org/zap"
)

// operation is the tracked in-flight enrollment or validation.
type operation struct {
	id     string
	kind   types.OperationKind
	cfg    types.EndpointConfig
	ctx    context.Context
	cancel context.CancelFunc
}

// ExecuteEnrollment creates a key pair and registers its public key with the
// enroll endpoint. override replaces the stored configuration for this call
// only. The returned result is also stored as the operation status.
func (b *Bridge) ExecuteEnrollment(ctx context.Context, override *types.EndpointConfig) (types.OperationResult, error) {
	op, err := b.begin(ctx, types.OperationEnrollment, override)
	if err != nil {
		return types.OperationResult{}, err
	}
	return b.run(op), nil
}

// ExecuteValidation signs a fresh payload and submits it to the validate
// endpoint.
func (b *Bridge) ExecuteValidation(ctx context.Context, override *types.EndpointConfig) (types.OperationResult, error) {
	op, err := b.begin(ctx, types.OperationValidation, override)
	if err != nil {
		return types.OperationResult{}, err
	}
	return b.run(op), nil
}

// StartEnrollment runs an enrollment in the background and returns its
// operation id.
func (b *Bridge) StartEnrollment(override *types.EndpointConfig) (string, error) {
	return b.start(types.OperationEnrollment, override)
}

// StartValidation runs a validation in the background.
func (b *Bridge) StartValidation(override *types.EndpointConfig) (string, error) {
	return b.start(types.OperationValidation, override)
}

func (b *Bridge) start(kind types.OperationKind, override *types.EndpointConfig) (string, error) {
	op, err := b.begin(context.Background(), kind, override)
	if errors.Is(err, ErrOperationInProgress) {
		b.Log(types.LogWarning, operationLabel(kind)+" not started: "+err.Error())
	}
	if err != nil {
		return "", err
	}

	b.ops.Add(1)
	go func() {
		defer b.ops.Done()
		b.run(op)
	}()
	return op.id, nil
}

// Wait blocks until every background operation has returned.
func (b *Bridge) Wait() {
	b.ops.Wait()
}

// Close cancels the in-flight operation, if any, and waits for background
// operations to return.
func (b *Bridge) Close() {
	b.CancelCurrentOperation()
	b.ops.Wait()
}

// CurrentOperation returns the id of the in-flight operation, or "".
func (b *Bridge) CurrentOperation() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == nil {
		return ""
	}
	return b.current.id
}

// CancelCurrentOperation stops tracking the in-flight operation, clears the
// loading flag and cancels the operation's context. It reports whether an
// operation was running.
func (b *Bridge) CancelCurrentOperation() bool {
	b.mu.Lock()
	op := b.current
	if op == nil {
		b.mu.Unlock()
		return false
	}
	b.current = nil
	b.state.IsLoading = false
	result := types.OperationResult{
		OperationID: op.id,
		Operation:   op.kind,
		Success:     false,
		Message:     "Operation cancelled",
		CompletedAt: b.now(),
	}
	b.state.OperationStatus = &result
	entry := b.appendLogLocked(types.LogWarning, operationLabel(op.kind)+" cancelled")
	snap := b.state.Clone()
	b.mu.Unlock()

	op.cancel()
	logging.Info("Operation cancelled", zap.String("operation_id", op.id))

	b.emitLog(entry, false)
	b.broadcast(protocol.OperationComplete{OperationID: op.id, Operation: op.kind, Result: result})
	b.emitState(snap)
	return true
}

// begin validates the configuration and registers a new operation.
func (b *Bridge) begin(parent context.Context, kind types.OperationKind, override *types.EndpointConfig) (*operation, error) {
	b.mu.Lock()
	if b.current != nil {
		b.mu.Unlock()
		return nil, ErrOperationInProgress
	}

	var cfg types.EndpointConfig
	switch {
	case override != nil:
		cfg = override.Clone()
	case kind == types.OperationValidation:
		cfg = b.state.ValidateConfig.Clone()
	default:
		cfg = b.state.EnrollConfig.Clone()
	}

	label := operationLabel(kind)
	if err := cfg.Validate(); err != nil {
		result := types.OperationResult{
			OperationID: types.NewID(b.now()),
			Operation:   kind,
			Success:     false,
			Message:     fmt.Sprintf("Invalid %s configuration: %v", configLabelFor(kind), err),
			CompletedAt: b.now(),
		}
		b.state.OperationStatus = &result
		entry := b.appendLogLocked(types.LogError, label+" failed: "+result.Message)
		snap := b.state.Clone()
		b.mu.Unlock()

		b.emitLog(entry, false)
		b.emitState(snap)
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	ctx, cancel := context.WithCancel(parent)
	op := &operation{
		id:     types.NewID(b.now()),
		kind:   kind,
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
	}
	b.current = op
	b.state.IsLoading = true
	entry := b.appendLogLocked(types.LogInfo, fmt.Sprintf("Starting %s: %s %s", strings.ToLower(label), cfg.Method, cfg.URL))
	snap := b.state.Clone()
	b.mu.Unlock()

	logging.Info("Operation started",
		zap.String("operation_id", op.id),
		zap.String("operation", string(kind)),
		zap.String("url", cfg.URL),
	)

	b.emitLog(entry, false)
	b.broadcast(protocol.OperationStart{OperationID: op.id, Operation: kind})
	b.emitState(snap)
	return op, nil
}

// run executes op and records its outcome.
func (b *Bridge) run(op *operation) types.OperationResult {
	var (
		res *verifyapi.Result
		err error
	)
	switch op.kind {
	case types.OperationValidation:
		res, err = b.validate(op)
	default:
		res, err = b.enroll(op)
	}

	result := types.OperationResult{
		OperationID: op.id,
		Operation:   op.kind,
		CompletedAt: b.now(),
	}
	switch {
	case op.ctx.Err() != nil:
		result.Message = "Operation cancelled"
	case err != nil:
		result.Message = errorMessage(err)
	case res == nil:
		result.Message = "empty response from verification API"
	default:
		result.Success = res.Success
		result.Message = res.Message
		result.Data = res.Data
	}

	b.finish(op, result)
	return result
}

func (b *Bridge) enroll(op *operation) (*verifyapi.Result, error) {
	publicKey, err := b.keys.CreateKeys(op.ctx, b.cfg.KeyPrompt)
	if err != nil {
		return nil, fmt.Errorf("failed to create keys: %w", err)
	}
	b.mutate(func(s *types.BridgeState) { s.KeysExist = true })
	b.Log(types.LogInfo, "Key pair created")

	return b.api.EnrollPublicKey(op.ctx, op.cfg, publicKey)
}

func (b *Bridge) validate(op *operation) (*verifyapi.Result, error) {
	payload := b.keys.GeneratePayload(b.cfg.PayloadTemplate)
	signature, err := b.keys.CreateSignature(op.ctx, b.cfg.KeyPrompt, payload)
	if err != nil {
		if errors.Is(err, biometric.ErrNoKeys) {
			return nil, errors.New("no biometric keys found, run enrollment first")
		}
		return nil, fmt.Errorf("failed to sign payload: %w", err)
	}
	b.Log(types.LogInfo, "Payload signed: "+payload)

	return b.api.ValidateSignature(op.ctx, op.cfg, payload, signature)
}

// finish records the result unless the operation was cancelled meanwhile.
func (b *Bridge) finish(op *operation, result types.OperationResult) {
	b.mu.Lock()
	if b.current != op {
		b.mu.Unlock()
		op.cancel()
		logging.Debug("Discarding result of cancelled operation", zap.String("operation_id", op.id))
		return
	}
	b.current = nil
	b.state.IsLoading = false
	b.state.OperationStatus = &result

	label := operationLabel(op.kind)
	var entry types.LogEntry
	if result.Success {
		entry = b.appendLogLocked(types.LogSuccess, label+" succeeded: "+result.Message)
	} else {
		entry = b.appendLogLocked(types.LogError, label+" failed: "+result.Message)
	}
	snap := b.state.Clone()
	b.mu.Unlock()

	op.cancel()
	logging.Info("Operation completed",
		zap.String("operation_id", op.id),
		zap.Bool("success", result.Success),
		zap.String("message", result.Message),
	)

	b.emitLog(entry, false)
	b.broadcast(protocol.OperationComplete{OperationID: op.id, Operation: op.kind, Result: result})
	b.emitState(snap)
}

// RefreshAvailability queries the key service and records the result.
func (b *Bridge) RefreshAvailability(ctx context.Context) (biometric.Availability, error) {
	avail, err := b.keys.CheckAvailability(ctx)
	if err != nil {
		b.Log(types.LogError, "Availability check failed: "+err.Error())
		return biometric.Availability{}, err
	}
	exists, err := b.keys.KeysExist(ctx)
	if err != nil {
		b.Log(types.LogError, "Key lookup failed: "+err.Error())
		return biometric.Availability{}, err
	}

	b.mutate(func(s *types.BridgeState) {
		s.BiometricsAvailable = avail.Available
		s.BiometryType = avail.BiometryType
		s.KeysExist = exists
	})

	if avail.Available {
		b.Log(types.LogInfo, fmt.Sprintf("Biometrics available (%s), keys exist: %t", avail.BiometryType, exists))
	} else {
		b.Log(types.LogWarning, "Biometrics not available: "+avail.Reason)
	}
	return avail, nil
}

// DeleteKeys removes the device key pair.
func (b *Bridge) DeleteKeys(ctx context.Context) error {
	if err := b.keys.DeleteKeys(ctx); err != nil {
		b.Log(types.LogError, "Failed to delete keys: "+err.Error())
		return err
	}
	b.mutate(func(s *types.BridgeState) { s.KeysExist = false })
	b.Log(types.LogSuccess, "Keys deleted")
	return nil
}

func errorMessage(err error) string {
	var apiErr *verifyapi.APIError
	if errors.As(err, &apiErr) {
		return verifyapi.ShortMessage(apiErr)
	}
	return err.Error()
}

func operationLabel(kind types.OperationKind) string {
	if kind == types.OperationValidation {
		return "Validation"
	}
	return "Enrollment"
}

func configLabelFor(kind types.OperationKind) string {
	if kind == types.OperationValidation {
		return "validate"
	}
	return "enroll"
}
