package verifyapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/muurk/webcontrol/internal/logging"
	"github.com/muurk/webcontrol/internal/types"
	"go.uber.org/zap"
)

const (
	// DefaultTimeout is the default HTTP request timeout
	DefaultTimeout = 15 * time.Second

	// DefaultMaxRetries is the default number of retry attempts for failed requests
	DefaultMaxRetries = 3

	// DefaultRetryDelay is the default delay between retry attempts
	DefaultRetryDelay = 1 * time.Second

	// DefaultMaxRetryDelay is the maximum delay for exponential backoff
	DefaultMaxRetryDelay = 30 * time.Second

	// maxResponseBody bounds how much of a response is read
	maxResponseBody = 1 << 20
)

// Result is a successful exchange with the verification API. Success reflects
// the "success" field of a JSON response body when present.
type Result struct {
	Success    bool
	Message    string
	StatusCode int
	Data       json.RawMessage
}

// Client talks to the verification API.
type Client struct {
	// HTTPClient is the underlying HTTP client
	HTTPClient *http.Client

	// MaxRetries is the maximum number of retry attempts for failed requests
	MaxRetries int

	// RetryDelay is the initial delay between retry attempts
	RetryDelay time.Duration

	// MaxRetryDelay is the maximum delay for exponential backoff
	MaxRetryDelay time.Duration

	// UseExponentialBackoff doubles the delay after each retry
	UseExponentialBackoff bool

	now func() time.Time
}

// NewClient creates a client with default timeouts and retry policy.
func NewClient() *Client {
	return &Client{
		HTTPClient:            &http.Client{Timeout: DefaultTimeout},
		MaxRetries:            DefaultMaxRetries,
		RetryDelay:            DefaultRetryDelay,
		MaxRetryDelay:         DefaultMaxRetryDelay,
		UseExponentialBackoff: true,
		now:                   time.Now,
	}
}

// SetTimeout sets the HTTP request timeout
func (c *Client) SetTimeout(timeout time.Duration) {
	c.HTTPClient.Timeout = timeout
}

// SetRetry configures retry behavior
func (c *Client) SetRetry(maxRetries int, retryDelay time.Duration) {
	c.MaxRetries = maxRetries
	c.RetryDelay = retryDelay
}

// EnrollPublicKey registers publicKey with the enroll endpoint.
func (c *Client) EnrollPublicKey(ctx context.Context, cfg types.EndpointConfig, publicKey string) (*Result, error) {
	return c.call(ctx, cfg, templateValues{"publicKey": publicKey})
}

// ValidateSignature submits a signed payload to the validate endpoint.
func (c *Client) ValidateSignature(ctx context.Context, cfg types.EndpointConfig, payload, signature string) (*Result, error) {
	return c.call(ctx, cfg, templateValues{"payload": payload, "signature": signature})
}

// call runs the request with retries.
func (c *Client) call(ctx context.Context, cfg types.EndpointConfig, values templateValues) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, NewValidationError("invalid endpoint configuration", err)
	}

	var lastErr error
	currentDelay := c.RetryDelay

	for attempt := 0; attempt <= c.MaxRetries; attempt++ {
		if attempt > 0 {
			logging.Debug("Retrying verification API request",
				zap.String("url", cfg.URL),
				zap.Int("attempt", attempt),
				zap.Duration("delay", currentDelay),
				zap.Error(lastErr),
			)
			if err := sleep(ctx, currentDelay); err != nil {
				return nil, NewNetworkError("request canceled during backoff", err)
			}

			if c.UseExponentialBackoff {
				currentDelay *= 2
				if currentDelay > c.MaxRetryDelay {
					currentDelay = c.MaxRetryDelay
				}
			}
		}

		result, err := c.attempt(ctx, cfg, values)
		if err == nil {
			return result, nil
		}

		lastErr = err
		if !IsRetryable(err) {
			return nil, err
		}
	}

	return nil, lastErr
}

// attempt performs a single request.
func (c *Client) attempt(ctx context.Context, cfg types.EndpointConfig, values templateValues) (*Result, error) {
	req, err := c.buildRequest(ctx, cfg, values)
	if err != nil {
		return nil, err
	}

	start := c.now()
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, NewNetworkError("request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, NewNetworkError("failed to read response body", err)
	}

	logging.Info("Verification API response",
		zap.String("method", req.Method),
		zap.String("url", cfg.URL),
		zap.Int("status", resp.StatusCode),
		zap.Int("body_len", len(body)),
		zap.Duration("elapsed", c.now().Sub(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := decodeMessage(body)
		return nil, NewHTTPError(resp.StatusCode, msg, string(body))
	}

	return parseResult(resp.StatusCode, body)
}

func (c *Client) buildRequest(ctx context.Context, cfg types.EndpointConfig, values templateValues) (*http.Request, error) {
	method := strings.ToUpper(cfg.Method)
	values["timestamp"] = strconv.FormatInt(c.now().Unix(), 10)

	target := cfg.URL
	var body io.Reader
	if method == http.MethodGet || method == http.MethodDelete {
		u, err := url.Parse(cfg.URL)
		if err != nil {
			return nil, NewValidationError("invalid endpoint url", err)
		}
		q := u.Query()
		for _, k := range values.keys() {
			if k != "timestamp" {
				q.Set(k, values[k])
			}
		}
		u.RawQuery = q.Encode()
		target = u.String()
	} else {
		b, err := values.render(cfg.CustomPayload)
		if err != nil {
			return nil, NewValidationError("failed to build request body", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, NewNetworkError("failed to create request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	for name, value := range cfg.Headers {
		req.Header.Set(name, value)
	}
	return req, nil
}

// parseResult interprets a 2xx body. JSON objects may carry "success" and
// "message"; anything else is treated as a plain-text success.
func parseResult(status int, body []byte) (*Result, error) {
	trimmed := bytes.TrimSpace(body)
	result := &Result{Success: true, StatusCode: status}

	if len(trimmed) == 0 {
		result.Message = fmt.Sprintf("HTTP %d", status)
		return result, nil
	}

	if trimmed[0] != '{' && trimmed[0] != '[' {
		result.Message = string(trimmed)
		return result, nil
	}

	if !json.Valid(trimmed) {
		return nil, NewParseError("response is not valid JSON", nil)
	}
	result.Data = append(json.RawMessage(nil), trimmed...)

	var envelope struct {
		Success *bool  `json:"success"`
		Message string `json:"message"`
	}
	if trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return nil, NewParseError("failed to parse response", err)
		}
	}
	if envelope.Success != nil {
		result.Success = *envelope.Success
	}
	result.Message = envelope.Message
	if result.Message == "" {
		result.Message = fmt.Sprintf("HTTP %d", status)
	}
	return result, nil
}

// decodeMessage extracts "message" or "error" from an error body.
func decodeMessage(body []byte) (string, bool) {
	var envelope struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return strings.TrimSpace(string(body)), false
	}
	if envelope.Message != "" {
		return envelope.Message, true
	}
	return envelope.Error, envelope.Error != ""
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
