package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/muurk/webcontrol/internal/types"
)

// MessageType is the "type" field of the JSON envelope.
type MessageType string

// Server-to-client message types.
const (
	TypePong                  MessageType = "pong"
	TypeConnectionEstablished MessageType = "connection-established"
	TypeOperationStart        MessageType = "operation-start"
	TypeOperationComplete     MessageType = "operation-complete"
	TypeLogUpdate             MessageType = "log-update"
	TypeStateSync             MessageType = "state-sync"
)

// Client-to-server message types.
const (
	TypePing              MessageType = "ping"
	TypeRequestState      MessageType = "request-state"
	TypeUpdateConfig      MessageType = "update-config"
	TypeExecuteEnrollment MessageType = "execute-enrollment"
	TypeExecuteValidation MessageType = "execute-validation"
	TypeCancelOperation   MessageType = "cancel-operation"
	TypeClearLogs         MessageType = "clear-logs"
)

var (
	// ErrMalformedMessage is returned when a frame is not a JSON envelope.
	ErrMalformedMessage = errors.New("malformed message")

	// ErrUnknownMessageType is returned for envelopes with an unrecognized type.
	ErrUnknownMessageType = errors.New("unknown message type")
)

// Payload is the data of a server-to-client message. The implementations in
// this package are the complete set.
type Payload interface {
	MessageType() MessageType
	isPayload()
}

// Pong answers a client ping.
type Pong struct {
	ConnectionID string `json:"connectionId"`
}

// ConnectionEstablished is the first message on every new connection.
type ConnectionEstablished struct {
	ConnectionID   string    `json:"connectionId"`
	ServerTime     time.Time `json:"serverTime"`
	QueuedMessages int       `json:"queuedMessages"`
}

// OperationStart announces a biometric operation.
type OperationStart struct {
	OperationID string              `json:"operationId"`
	Operation   types.OperationKind `json:"operation"`
}

// OperationComplete reports the outcome of an operation.
type OperationComplete struct {
	OperationID string                `json:"operationId"`
	Operation   types.OperationKind   `json:"operation"`
	Result      types.OperationResult `json:"result"`
}

// LogUpdate carries one new log entry. Cleared is set on the entry appended
// right after the log was truncated.
type LogUpdate struct {
	Entry   types.LogEntry `json:"entry"`
	Cleared bool           `json:"cleared,omitempty"`
}

// StateSync carries a full state snapshot.
type StateSync struct {
	types.BridgeState
}

func (Pong) MessageType() MessageType                  { return TypePong }
func (ConnectionEstablished) MessageType() MessageType { return TypeConnectionEstablished }
func (OperationStart) MessageType() MessageType        { return TypeOperationStart }
func (OperationComplete) MessageType() MessageType     { return TypeOperationComplete }
func (LogUpdate) MessageType() MessageType             { return TypeLogUpdate }
func (StateSync) MessageType() MessageType             { return TypeStateSync }

func (Pong) isPayload()                  {}
func (ConnectionEstablished) isPayload() {}
func (OperationStart) isPayload()        {}
func (OperationComplete) isPayload()     {}
func (LogUpdate) isPayload()             {}
func (StateSync) isPayload()             {}

// OutboundMessage is an immutable server-to-client message.
type OutboundMessage struct {
	timestamp time.Time
	payload   Payload
}

// NewOutbound stamps payload with the current time.
func NewOutbound(payload Payload) OutboundMessage {
	return OutboundMessage{timestamp: time.Now(), payload: payload}
}

// Type returns the envelope type.
func (m OutboundMessage) Type() MessageType {
	return m.payload.MessageType()
}

// Timestamp returns the construction time.
func (m OutboundMessage) Timestamp() time.Time {
	return m.timestamp
}

// Payload returns the message data.
func (m OutboundMessage) Payload() Payload {
	return m.payload
}

type envelope struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// MarshalJSON encodes {type, timestamp, data}.
func (m OutboundMessage) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(m.payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", m.Type(), err)
	}
	return json.Marshal(envelope{
		Type:      m.Type(),
		Timestamp: m.timestamp,
		Data:      data,
	})
}

// InboundMessage is a decoded client-to-server message. The implementations
// in this package are the complete set.
type InboundMessage interface {
	MessageType() MessageType
	isInbound()
}

// Ping asks the server for a pong.
type Ping struct{}

// RequestState asks for a state-sync reply.
type RequestState struct{}

// UpdateConfig replaces one endpoint configuration.
type UpdateConfig struct {
	Kind   types.ConfigKind     `json:"kind"`
	Config types.EndpointConfig `json:"config"`
}

// ExecuteOperation triggers enrollment or validation. A nil Config uses the
// stored configuration.
type ExecuteOperation struct {
	Operation types.OperationKind   `json:"-"`
	Config    *types.EndpointConfig `json:"config,omitempty"`
}

// CancelOperation cancels the tracked operation.
type CancelOperation struct{}

// ClearLogs truncates the log.
type ClearLogs struct{}

func (Ping) MessageType() MessageType            { return TypePing }
func (RequestState) MessageType() MessageType    { return TypeRequestState }
func (UpdateConfig) MessageType() MessageType    { return TypeUpdateConfig }
func (CancelOperation) MessageType() MessageType { return TypeCancelOperation }
func (ClearLogs) MessageType() MessageType       { return TypeClearLogs }

// MessageType maps the operation back to its wire type.
func (e ExecuteOperation) MessageType() MessageType {
	if e.Operation == types.OperationValidation {
		return TypeExecuteValidation
	}
	return TypeExecuteEnrollment
}

func (Ping) isInbound()             {}
func (RequestState) isInbound()     {}
func (UpdateConfig) isInbound()     {}
func (ExecuteOperation) isInbound() {}
func (CancelOperation) isInbound()  {}
func (ClearLogs) isInbound()        {}

// ParseInbound decodes a client text frame.
func ParseInbound(raw []byte) (InboundMessage, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	switch env.Type {
	case TypePing:
		return Ping{}, nil
	case TypeRequestState:
		return RequestState{}, nil
	case TypeCancelOperation:
		return CancelOperation{}, nil
	case TypeClearLogs:
		return ClearLogs{}, nil

	case TypeUpdateConfig:
		var msg UpdateConfig
		if err := decodeData(env, &msg); err != nil {
			return nil, err
		}
		kind, err := types.ParseConfigKind(string(msg.Kind))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		}
		msg.Kind = kind
		return msg, nil

	case TypeExecuteEnrollment, TypeExecuteValidation:
		msg := ExecuteOperation{Operation: types.OperationEnrollment}
		if env.Type == TypeExecuteValidation {
			msg.Operation = types.OperationValidation
		}
		if err := decodeData(env, &msg); err != nil {
			return nil, err
		}
		return msg, nil

	case "":
		return nil, fmt.Errorf("%w: missing type", ErrMalformedMessage)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessageType, env.Type)
	}
}

func decodeData(env envelope, v any) error {
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("%w: invalid %s data: %v", ErrMalformedMessage, env.Type, err)
	}
	return nil
}
