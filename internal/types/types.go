package types

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ConfigKind selects one of the two endpoint configurations.
type ConfigKind string

const (
	ConfigEnroll   ConfigKind = "enroll"
	ConfigValidate ConfigKind = "validate"
)

// ParseConfigKind converts a wire value into a ConfigKind.
func ParseConfigKind(s string) (ConfigKind, error) {
	switch ConfigKind(strings.ToLower(strings.TrimSpace(s))) {
	case ConfigEnroll:
		return ConfigEnroll, nil
	case ConfigValidate:
		return ConfigValidate, nil
	default:
		return "", fmt.Errorf("unknown config kind %q (expected enroll or validate)", s)
	}
}

// EndpointConfig describes a remote verification endpoint.
type EndpointConfig struct {
	URL           string            `json:"url" yaml:"url"`
	Method        string            `json:"method" yaml:"method"`
	Headers       map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	CustomPayload string            `json:"customPayload,omitempty" yaml:"custom_payload,omitempty"`
}

var allowedMethods = map[string]bool{
	"GET":    true,
	"POST":   true,
	"PUT":    true,
	"PATCH":  true,
	"DELETE": true,
}

// Validate checks that the URL is absolute http(s) and the method is supported.
func (c EndpointConfig) Validate() error {
	if strings.TrimSpace(c.URL) == "" {
		return fmt.Errorf("endpoint url is required")
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("invalid endpoint url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("endpoint url must use http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("endpoint url has no host")
	}
	if !allowedMethods[strings.ToUpper(c.Method)] {
		return fmt.Errorf("unsupported endpoint method %q", c.Method)
	}
	return nil
}

// Clone returns a deep copy.
func (c EndpointConfig) Clone() EndpointConfig {
	out := c
	if c.Headers != nil {
		out.Headers = make(map[string]string, len(c.Headers))
		for k, v := range c.Headers {
			out.Headers[k] = v
		}
	}
	return out
}

// LogLevel classifies a bridge log entry.
type LogLevel string

const (
	LogInfo    LogLevel = "info"
	LogSuccess LogLevel = "success"
	LogWarning LogLevel = "warning"
	LogError   LogLevel = "error"
)

// LogEntry is one line of the bridge's operation log.
type LogEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Level     LogLevel  `json:"level"`
	Message   string    `json:"message"`
}

// NewLogEntry stamps a log entry with a fresh id and the current time.
func NewLogEntry(level LogLevel, message string) LogEntry {
	now := time.Now()
	return LogEntry{
		ID:        NewID(now),
		Timestamp: now,
		Level:     level,
		Message:   message,
	}
}

// OperationKind names a biometric operation.
type OperationKind string

const (
	OperationEnrollment   OperationKind = "enrollment"
	OperationValidation   OperationKind = "validation"
	OperationAvailability OperationKind = "availability"
	OperationDeleteKeys   OperationKind = "delete-keys"
)

// OperationResult is the outcome reported by the verification API or by a
// local failure before the API was reached.
type OperationResult struct {
	OperationID string          `json:"operationId,omitempty"`
	Operation   OperationKind   `json:"operation,omitempty"`
	Success     bool            `json:"success"`
	Message     string          `json:"message"`
	Data        json.RawMessage `json:"data,omitempty"`
	CompletedAt time.Time       `json:"completedAt"`
}

// Clone returns a deep copy.
func (r *OperationResult) Clone() *OperationResult {
	if r == nil {
		return nil
	}
	out := *r
	if r.Data != nil {
		out.Data = append(json.RawMessage(nil), r.Data...)
	}
	return &out
}

// BridgeState mirrors the host application state exposed to the control page.
type BridgeState struct {
	BiometricsAvailable bool             `json:"biometricsAvailable"`
	BiometryType        string           `json:"biometryType,omitempty"`
	KeysExist           bool             `json:"keysExist"`
	EnrollConfig        EndpointConfig   `json:"enrollConfig"`
	ValidateConfig      EndpointConfig   `json:"validateConfig"`
	Logs                []LogEntry       `json:"logs"`
	OperationStatus     *OperationResult `json:"operationStatus,omitempty"`
	IsLoading           bool             `json:"isLoading"`
}

// Clone returns a deep copy.
func (s BridgeState) Clone() BridgeState {
	out := s
	out.EnrollConfig = s.EnrollConfig.Clone()
	out.ValidateConfig = s.ValidateConfig.Clone()
	out.Logs = append(make([]LogEntry, 0, len(s.Logs)), s.Logs...)
	out.OperationStatus = s.OperationStatus.Clone()
	return out
}

// StatePatch is a partial BridgeState; nil fields are left untouched when merged.
type StatePatch struct {
	BiometricsAvailable *bool            `json:"biometricsAvailable,omitempty"`
	BiometryType        *string          `json:"biometryType,omitempty"`
	KeysExist           *bool            `json:"keysExist,omitempty"`
	EnrollConfig        *EndpointConfig  `json:"enrollConfig,omitempty"`
	ValidateConfig      *EndpointConfig  `json:"validateConfig,omitempty"`
	OperationStatus     *OperationResult `json:"operationStatus,omitempty"`
	IsLoading           *bool            `json:"isLoading,omitempty"`
}

// Apply shallow-merges the non-nil fields of p into s.
func (p StatePatch) Apply(s *BridgeState) {
	if p.BiometricsAvailable != nil {
		s.BiometricsAvailable = *p.BiometricsAvailable
	}
	if p.BiometryType != nil {
		s.BiometryType = *p.BiometryType
	}
	if p.KeysExist != nil {
		s.KeysExist = *p.KeysExist
	}
	if p.EnrollConfig != nil {
		s.EnrollConfig = p.EnrollConfig.Clone()
	}
	if p.ValidateConfig != nil {
		s.ValidateConfig = p.ValidateConfig.Clone()
	}
	if p.OperationStatus != nil {
		s.OperationStatus = p.OperationStatus.Clone()
	}
	if p.IsLoading != nil {
		s.IsLoading = *p.IsLoading
	}
}

// NewID returns "<unix-millis>-<uuid>". The random half keeps ids unique even
// when many are minted within the same millisecond.
func NewID(now time.Time) string {
	return fmt.Sprintf("%d-%s", now.UnixMilli(), uuid.NewString())
}

// APIResponse is the outcome of an HTTP API call. Body is serialized as JSON.
type APIResponse struct {
	Status int
	Body   any
}

// ErrorBody is the JSON body of every failed API call.
type ErrorBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// NewErrorResponse builds a failure response with a human-readable message.
func NewErrorResponse(status int, message string) APIResponse {
	return APIResponse{Status: status, Body: ErrorBody{Success: false, Message: message}}
}
