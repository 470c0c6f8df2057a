package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/muurk/webcontrol/internal/biometric"
	"github.com/muurk/webcontrol/internal/types"
)

// collaboratorTimeout bounds key service calls made for HTTP requests.
const collaboratorTimeout = 30 * time.Second

// ActionBody is the JSON body of successful mutating API calls.
type ActionBody struct {
	Success      bool                    `json:"success"`
	Message      string                  `json:"message"`
	OperationID  string                  `json:"operationId,omitempty"`
	Config       *types.EndpointConfig   `json:"config,omitempty"`
	Availability *biometric.Availability `json:"availability,omitempty"`
	State        *types.BridgeState      `json:"state,omitempty"`
}

// LogsBody is the JSON body of GET /api/logs.
type LogsBody struct {
	Logs []types.LogEntry `json:"logs"`
}

type handlerFunc func(b *Bridge, method string, body []byte) types.APIResponse

type route struct {
	methods []string
	handle  handlerFunc
}

var routes = map[string]route{
	"/":                        {[]string{"GET"}, (*Bridge).handleState},
	"/api/state":               {[]string{"GET"}, (*Bridge).handleState},
	"/api/logs":                {[]string{"GET", "DELETE"}, (*Bridge).handleLogs},
	"/api/logs/clear":          {[]string{"POST"}, (*Bridge).handleClearLogs},
	"/api/config/enroll":       {[]string{"POST", "PUT", "PATCH"}, configHandler(types.ConfigEnroll)},
	"/api/config/validate":     {[]string{"POST", "PUT", "PATCH"}, configHandler(types.ConfigValidate)},
	"/api/operations/enroll":   {[]string{"POST"}, operationHandler(types.OperationEnrollment)},
	"/api/operations/validate": {[]string{"POST"}, operationHandler(types.OperationValidation)},
	"/api/operations/cancel":   {[]string{"POST"}, (*Bridge).handleCancel},
	"/api/availability":        {[]string{"POST"}, (*Bridge).handleAvailability},
	"/api/keys":                {[]string{"DELETE"}, (*Bridge).handleDeleteKeys},
	"/api/keys/delete":         {[]string{"POST"}, (*Bridge).handleDeleteKeys},
	"/api/sync":                {[]string{"POST", "PUT", "PATCH"}, (*Bridge).handleSync},
}

// HandleHTTP resolves an authenticated API request. Unknown paths yield 404,
// known paths with the wrong method 405, and undecodable bodies 400.
func (b *Bridge) HandleHTTP(method, path string, body []byte) types.APIResponse {
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}

	r, ok := routes[path]
	if !ok {
		return types.NewErrorResponse(404, "Not found: "+path)
	}
	for _, m := range r.methods {
		if m == method {
			return r.handle(b, method, body)
		}
	}
	return types.NewErrorResponse(405, fmt.Sprintf("Method %s not allowed for %s", method, path))
}

func (b *Bridge) handleState(string, []byte) types.APIResponse {
	return types.APIResponse{Status: 200, Body: b.Snapshot()}
}

func (b *Bridge) handleLogs(method string, body []byte) types.APIResponse {
	if method == "DELETE" {
		return b.handleClearLogs(method, body)
	}
	return types.APIResponse{Status: 200, Body: LogsBody{Logs: b.Logs()}}
}

func (b *Bridge) handleClearLogs(string, []byte) types.APIResponse {
	b.ClearLogs()
	return ok("Logs cleared")
}

func configHandler(kind types.ConfigKind) handlerFunc {
	return func(b *Bridge, _ string, body []byte) types.APIResponse {
		var cfg types.EndpointConfig
		if err := decode(body, &cfg); err != nil {
			return types.NewErrorResponse(400, err.Error())
		}
		if err := b.UpdateConfiguration(kind, cfg); err != nil {
			return types.NewErrorResponse(400, err.Error())
		}
		resp := ok(configLabel(kind) + " configuration updated")
		resp.Body.(*ActionBody).Config = &cfg
		return resp
	}
}

func operationHandler(kind types.OperationKind) handlerFunc {
	return func(b *Bridge, _ string, body []byte) types.APIResponse {
		var override *types.EndpointConfig
		if len(bytes.TrimSpace(body)) > 0 {
			var req struct {
				Config *types.EndpointConfig `json:"config"`
			}
			if err := decode(body, &req); err != nil {
				return types.NewErrorResponse(400, err.Error())
			}
			override = req.Config
		}

		start := b.StartEnrollment
		if kind == types.OperationValidation {
			start = b.StartValidation
		}
		id, err := start(override)
		if err != nil {
			return types.NewErrorResponse(400, err.Error())
		}

		resp := ok(operationLabel(kind) + " started")
		resp.Body.(*ActionBody).OperationID = id
		return resp
	}
}

func (b *Bridge) handleCancel(string, []byte) types.APIResponse {
	if !b.CancelCurrentOperation() {
		return types.APIResponse{Status: 200, Body: &ActionBody{Success: false, Message: "No operation in progress"}}
	}
	return ok("Operation cancelled")
}

func (b *Bridge) handleAvailability(string, []byte) types.APIResponse {
	ctx, cancel := context.WithTimeout(context.Background(), collaboratorTimeout)
	defer cancel()

	avail, err := b.RefreshAvailability(ctx)
	if err != nil {
		return types.NewErrorResponse(500, "Availability check failed: "+err.Error())
	}
	resp := ok("Availability refreshed")
	resp.Body.(*ActionBody).Availability = &avail
	return resp
}

func (b *Bridge) handleDeleteKeys(string, []byte) types.APIResponse {
	ctx, cancel := context.WithTimeout(context.Background(), collaboratorTimeout)
	defer cancel()

	if err := b.DeleteKeys(ctx); err != nil {
		return types.NewErrorResponse(500, "Failed to delete keys: "+err.Error())
	}
	return ok("Keys deleted")
}

func (b *Bridge) handleSync(_ string, body []byte) types.APIResponse {
	var patch types.StatePatch
	if err := decode(body, &patch); err != nil {
		return types.NewErrorResponse(400, err.Error())
	}
	b.SyncFromMobileApp(patch)

	snap := b.Snapshot()
	resp := ok("State synchronized")
	resp.Body.(*ActionBody).State = &snap
	return resp
}

func ok(message string) types.APIResponse {
	return types.APIResponse{Status: 200, Body: &ActionBody{Success: true, Message: message}}
}

// decode unmarshals a JSON request body. An empty body is an error.
func decode(body []byte, v any) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return errors.New("request body is required")
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("invalid JSON body: %v", err)
	}
	return nil
}
