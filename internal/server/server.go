package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/muurk/webcontrol/internal/auth"
	"github.com/muurk/webcontrol/internal/lifecycle"
	"github.com/muurk/webcontrol/internal/logging"
	"github.com/muurk/webcontrol/internal/types"
	"github.com/muurk/webcontrol/internal/wsmanager"
	"go.uber.org/zap"
)

var (
	// ErrAlreadyRunning is returned by Start while the server is starting or running.
	ErrAlreadyRunning = errors.New("Server is already running")

	// ErrStopping is returned by Start while a Stop is in progress.
	ErrStopping = errors.New("Server is stopping")

	// ErrNoAvailablePorts is returned when no candidate port could be bound.
	ErrNoAvailablePorts = errors.New("No available ports found")

	// ErrStartTimeout is returned when binding takes longer than StartTimeout.
	ErrStartTimeout = errors.New("Server start timeout")
)

// State is the server lifecycle state.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Config holds the server configuration
type Config struct {
	Host                     string // Interface to bind (empty = all)
	PortRangeStart           int
	PortRangeEnd             int
	StartTimeout             time.Duration
	StopTimeout              time.Duration
	ReadTimeout              time.Duration // Deadline for one complete HTTP request
	WriteTimeout             time.Duration
	MaxRequestSize           int
	StopOnBackground         bool
	MaxAuthFailuresPerMinute int // 0 disables throttling
}

// DefaultConfig returns the built-in server settings.
func DefaultConfig() Config {
	return Config{
		PortRangeStart:           8080,
		PortRangeEnd:             8090,
		StartTimeout:             5 * time.Second,
		StopTimeout:              5 * time.Second,
		ReadTimeout:              30 * time.Second,
		WriteTimeout:             10 * time.Second,
		MaxRequestSize:           1 << 20,
		StopOnBackground:         true,
		MaxAuthFailuresPerMinute: 10,
	}
}

// Status describes a running server. It is the zero value while stopped.
type Status struct {
	IsRunning         bool      `json:"isRunning"`
	State             State     `json:"state"`
	Port              int       `json:"port,omitempty"`
	URL               string    `json:"url,omitempty"`
	Username          string    `json:"username,omitempty"`
	Password          string    `json:"password,omitempty"`
	StartTime         time.Time `json:"startTime"`
	ActiveConnections int       `json:"activeConnections"`
}

// APIHandler resolves every authenticated non-WebSocket request.
type APIHandler interface {
	HandleHTTP(method, path string, body []byte) types.APIResponse
}

// Advertiser announces the server on the local network.
type Advertiser interface {
	Advertise(port int) error
	Stop()
}

// Observer receives request-level events for instrumentation.
type Observer interface {
	ObserveRequest(method, route string, status int, elapsed time.Duration)
	ObserveAuthFailure(throttled bool)
}

// Option configures optional collaborators.
type Option func(*Server)

// WithAdvertiser announces the server while it runs.
func WithAdvertiser(a Advertiser) Option {
	return func(s *Server) { s.advertiser = a }
}

// WithObserver reports requests to o.
func WithObserver(o Observer) Option {
	return func(s *Server) { s.observer = o }
}

// Server is the embedded control server. The zero value is not usable; call
// New.
type Server struct {
	cfg        Config
	auth       *auth.Middleware
	manager    *wsmanager.Manager
	api        APIHandler
	advertiser Advertiser
	observer   Observer
	throttle   *authThrottle

	// listen is net.Listen; tests replace it.
	listen func(network, address string) (net.Listener, error)

	mu          sync.Mutex
	state       State
	status      Status
	listener    net.Listener
	activeConns map[net.Conn]struct{}
	// wg tracks the goroutines of the current run. Start allocates a new one.
	wg *sync.WaitGroup
}

// New creates a stopped Server.
func New(cfg Config, manager *wsmanager.Manager, api APIHandler, opts ...Option) *Server {
	s := &Server{
		cfg:         cfg,
		auth:        auth.New(),
		manager:     manager,
		api:         api,
		throttle:    newAuthThrottle(cfg.MaxAuthFailuresPerMinute),
		listen:      net.Listen,
		activeConns: make(map[net.Conn]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start binds the first free candidate port and begins serving. Candidates
// are preferredPort (when positive) followed by the configured range.
func (s *Server) Start(ctx context.Context, preferredPort int) (Status, error) {
	s.mu.Lock()
	switch s.state {
	case StateStarting, StateRunning:
		s.mu.Unlock()
		return Status{}, ErrAlreadyRunning
	case StateStopping:
		s.mu.Unlock()
		return Status{}, ErrStopping
	}
	s.state = StateStarting
	s.mu.Unlock()

	logging.Info("Starting control server",
		zap.String("host", s.cfg.Host),
		zap.Int("preferred_port", preferredPort),
		zap.Int("range_start", s.cfg.PortRangeStart),
		zap.Int("range_end", s.cfg.PortRangeEnd),
	)

	// Bind the first free port
	ln, err := s.bindWithTimeout(ctx, s.candidatePorts(preferredPort))
	if err != nil {
		s.setState(StateStopped)
		logging.Error("Failed to start control server", zap.Error(err))
		return Status{}, err
	}

	port := ln.Addr().(*net.TCPAddr).Port
	// New credentials for every run
	creds := auth.CreateAuthCredentials()
	s.auth.SetCredentials(creds)
	s.manager.Start()

	s.mu.Lock()
	s.listener = ln
	s.state = StateRunning
	s.status = Status{
		IsRunning: true,
		State:     StateRunning,
		Port:      port,
		URL:       serverURL(s.cfg.Host, port),
		Username:  creds.Username,
		Password:  creds.Password,
		StartTime: time.Now(),
	}
	wg := &sync.WaitGroup{}
	s.wg = wg
	wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer wg.Done()
		s.acceptConnections(ln, wg)
	}()

	// Announce on the LAN
	if s.advertiser != nil {
		if err := s.advertiser.Advertise(port); err != nil {
			logging.Warn("Failed to advertise control server", zap.Error(err))
		}
	}

	status := s.Status()
	logging.Info("Control server listening",
		zap.String("addr", ln.Addr().String()),
		zap.String("url", status.URL),
	)
	return status, nil
}

// candidatePorts lists the ports Start tries, in order, without duplicates.
// With no preferred port and no range, the OS picks one.
func (s *Server) candidatePorts(preferred int) []int {
	var ports []int
	seen := make(map[int]bool)
	if preferred > 0 {
		ports = append(ports, preferred)
		seen[preferred] = true
	}
	for p := s.cfg.PortRangeStart; p > 0 && p <= s.cfg.PortRangeEnd; p++ {
		if !seen[p] {
			ports = append(ports, p)
			seen[p] = true
		}
	}
	if len(ports) == 0 {
		ports = append(ports, 0)
	}
	return ports
}

type bindResult struct {
	ln  net.Listener
	err error
}

// bindWithTimeout runs the port scan in the background so a slow bind cannot
// hold Start past StartTimeout. A listener bound after the deadline is closed.
func (s *Server) bindWithTimeout(ctx context.Context, ports []int) (net.Listener, error) {
	results := make(chan bindResult, 1)
	go func() {
		ln, err := s.bind(ports)
		results <- bindResult{ln, err}
	}()

	var timeout <-chan time.Time
	if s.cfg.StartTimeout > 0 {
		timer := time.NewTimer(s.cfg.StartTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	abandon := func() {
		go func() {
			if res := <-results; res.ln != nil {
				_ = res.ln.Close()
			}
		}()
	}

	select {
	case res := <-results:
		return res.ln, res.err
	case <-timeout:
		abandon()
		return nil, ErrStartTimeout
	case <-ctx.Done():
		abandon()
		return nil, ctx.Err()
	}
}

func (s *Server) bind(ports []int) (net.Listener, error) {
	var lastErr error
	for _, port := range ports {
		addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(port))
		ln, err := s.listen("tcp", addr)
		if err == nil {
			return ln, nil
		}
		logging.Debug("Port unavailable", zap.String("addr", addr), zap.Error(err))
		lastErr = err
	}
	if lastErr == nil {
		return nil, ErrNoAvailablePorts
	}
	return nil, fmt.Errorf("%w: %v", ErrNoAvailablePorts, lastErr)
}

// acceptConnections accepts and handles incoming connections
func (s *Server) acceptConnections(ln net.Listener, wg *sync.WaitGroup) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			logging.Error("Failed to accept connection", zap.Error(err))
			continue
		}

		s.mu.Lock()
		if s.state != StateRunning {
			s.mu.Unlock()
			_ = conn.Close()
			continue
		}
		s.activeConns[conn] = struct{}{}
		wg.Add(1)
		s.mu.Unlock()

		go func() {
			defer wg.Done()
			s.handleConnection(conn)
		}()
	}
}

// handleConnection serves one TCP connection: a single HTTP exchange, or a
// WebSocket session when the request upgrades.
func (s *Server) handleConnection(conn net.Conn) {
	remoteAddr := conn.RemoteAddr().String()

	defer func() {
		_ = conn.Close()
		s.mu.Lock()
		delete(s.activeConns, conn)
		s.mu.Unlock()
		logging.LogConnection(remoteAddr, "connection_closed")
	}()

	logging.LogConnection(remoteAddr, "connection_accepted")

	raw, rest, err := readRequest(conn, s.cfg.ReadTimeout, s.cfg.MaxRequestSize)
	if err != nil {
		if len(raw) == 0 && !errors.Is(err, errRequestTooLarge) {
			logging.Debug("Connection closed without a request",
				zap.String("remote_addr", remoteAddr),
				zap.Error(err),
			)
			return
		}
		logging.Warn("Failed to read HTTP request",
			zap.String("remote_addr", remoteAddr),
			zap.Error(err),
		)
		message := "Malformed HTTP request"
		if errors.Is(err, errRequestTooLarge) {
			message = "Request too large"
		}
		s.writeJSON(conn, types.NewErrorResponse(400, message))
		return
	}

	req := ParseRequest(raw)
	if req == nil {
		logging.Warn("Malformed HTTP request", zap.String("remote_addr", remoteAddr))
		logging.LogRawBytes("Malformed request", raw)
		s.writeJSON(conn, types.NewErrorResponse(400, "Malformed HTTP request"))
		return
	}

	LogRequestDetails(req, remoteAddr)
	s.dispatch(conn, req, rest)
}

// dispatch applies throttling and authentication, then routes the request.
func (s *Server) dispatch(conn net.Conn, req *Request, rest []byte) {
	started := time.Now()
	ip := remoteIP(conn.RemoteAddr().String())
	route := routeName(req)

	if s.throttle.blocked(ip) {
		logging.Warn("Request throttled after repeated authentication failures",
			zap.String("remote_ip", ip),
		)
		s.observeAuthFailure(true)
		s.writeJSON(conn, types.NewErrorResponse(429, "Too many failed authentication attempts"))
		s.observeRequest(req.Method, route, 429, started)
		return
	}

	result := s.auth.ValidateRequest(string(req.Raw))
	if !result.IsValid {
		if result.StatusCode == 401 {
			s.throttle.recordFailure(ip)
			s.observeAuthFailure(false)
		}
		logging.Info("Request rejected by authentication",
			zap.String("remote_addr", conn.RemoteAddr().String()),
			zap.Int("status", result.StatusCode),
			zap.String("reason", result.Body),
		)
		s.writeJSONWithHeaders(conn, types.NewErrorResponse(result.StatusCode, result.Body), result.Headers)
		s.observeRequest(req.Method, route, result.StatusCode, started)
		return
	}

	if isUpgradeRequest(req) {
		s.upgrade(conn, req, rest)
		s.observeRequest(req.Method, route, 101, started)
		return
	}

	var resp types.APIResponse
	if req.Path == "/api/status" {
		if req.Method == "GET" {
			resp = types.APIResponse{Status: 200, Body: s.statusBody()}
		} else {
			resp = types.NewErrorResponse(405, "Method not allowed")
		}
	} else {
		resp = s.api.HandleHTTP(req.Method, req.Path, req.Body)
	}

	s.writeJSON(conn, resp)
	s.observeRequest(req.Method, route, resp.Status, started)
}

// upgrade hands an authenticated upgrade request to the WebSocket manager,
// which serves the connection until it closes.
func (s *Server) upgrade(conn net.Conn, req *Request, rest []byte) {
	remoteAddr := conn.RemoteAddr().String()

	key := req.Header("sec-websocket-key")
	if key == "" {
		logging.Warn("WebSocket upgrade rejected",
			zap.String("remote_addr", remoteAddr),
			zap.String("reason", "missing key"),
		)
		s.writeJSON(conn, types.NewErrorResponse(400, "Missing Sec-WebSocket-Key header"))
		return
	}
	if s.manager.IsShuttingDown() {
		s.writeJSON(conn, types.NewErrorResponse(500, wsmanager.ErrShuttingDown.Error()))
		return
	}

	if err := s.manager.Accept(conn, key, req.QueryParam("id"), rest); err != nil {
		if errors.Is(err, wsmanager.ErrShuttingDown) {
			s.writeJSON(conn, types.NewErrorResponse(500, err.Error()))
			return
		}
		logging.Error("WebSocket connection error",
			zap.String("remote_addr", remoteAddr),
			zap.Error(err),
		)
	}
}

type statusResponse struct {
	Server    Status          `json:"server"`
	WebSocket wsmanager.Stats `json:"websocket"`
}

func (s *Server) statusBody() statusResponse {
	status := s.Status()
	status.Password = ""
	return statusResponse{Server: status, WebSocket: s.manager.Stats()}
}

func (s *Server) writeJSON(conn net.Conn, resp types.APIResponse) {
	s.writeJSONWithHeaders(conn, resp, nil)
}

func (s *Server) writeJSONWithHeaders(conn net.Conn, resp types.APIResponse, headers map[string]string) {
	body, err := json.Marshal(resp.Body)
	if err != nil {
		logging.Error("Failed to encode response body", zap.Error(err))
		resp.Status = 500
		body, _ = json.Marshal(types.ErrorBody{Message: "Failed to encode response"})
	}
	_ = writeResponse(conn, s.cfg.WriteTimeout, resp.Status, headers, "application/json", body)
}

func (s *Server) observeRequest(method, route string, status int, started time.Time) {
	if s.observer != nil {
		s.observer.ObserveRequest(method, route, status, time.Since(started))
	}
}

func (s *Server) observeAuthFailure(throttled bool) {
	if s.observer != nil {
		s.observer.ObserveAuthFailure(throttled)
	}
}

// Stop stops a running server. It is a no-op in any other state. Connections
// that do not finish within StopTimeout are abandoned and the state is
// cleared regardless.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return nil
	}
	s.state = StateStopping
	s.status.State = StateStopping
	ln := s.listener
	s.listener = nil
	wg := s.wg
	s.wg = nil
	conns := make([]net.Conn, 0, len(s.activeConns))
	for c := range s.activeConns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	logging.Info("Stopping control server", zap.Int("active_connections", len(conns)))

	// Withdraw the mDNS advertisement
	if s.advertiser != nil {
		s.advertiser.Stop()
	}

	// Stop accepting new connections
	if ln != nil {
		if err := ln.Close(); err != nil {
			logging.Error("Error closing listener", zap.Error(err))
		}
	}

	// The manager sends close frames before the TCP connections go away.
	s.manager.Shutdown()

	// Close remaining connections and forget the password
	for _, c := range conns {
		_ = c.Close()
	}
	s.auth.ClearCredentials()

	// Wait for handlers, bounded by StopTimeout and ctx
	done := make(chan struct{})
	go func() {
		if wg != nil {
			wg.Wait()
		}
		close(done)
	}()

	var timeout <-chan time.Time
	if s.cfg.StopTimeout > 0 {
		timer := time.NewTimer(s.cfg.StopTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-done:
		logging.Info("All connections closed gracefully")
	case <-ctx.Done():
		logging.Warn("Stop cancelled, forcing close")
	case <-timeout:
		logging.Warn("Stop timeout, forcing close", zap.Duration("timeout", s.cfg.StopTimeout))
	}

	// Reset state
	s.mu.Lock()
	s.state = StateStopped
	s.status = Status{}
	s.activeConns = make(map[net.Conn]struct{})
	s.mu.Unlock()

	logging.Sync()
	return nil
}

// Status returns a copy of the current status.
func (s *Server) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	status := s.status
	status.State = s.state
	status.ActiveConnections = len(s.activeConns)
	return status
}

// State returns the lifecycle state.
func (s *Server) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// GetActiveConnections returns the number of open TCP connections.
func (s *Server) GetActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.activeConns)
}

// Manager returns the WebSocket manager the server hands upgrades to.
func (s *Server) Manager() *wsmanager.Manager {
	return s.manager
}

// HandleLifecycle reacts to host lifecycle events. Moving to the background
// stops the server when StopOnBackground is set; returning to the foreground
// does not restart it.
func (s *Server) HandleLifecycle(e lifecycle.Event) {
	switch e {
	case lifecycle.Background:
		if !s.cfg.StopOnBackground {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.StopTimeout+time.Second)
		defer cancel()
		if err := s.Stop(ctx); err != nil {
			logging.Error("Failed to stop server on background", zap.Error(err))
		}
	case lifecycle.Foreground:
		logging.Info("Host returned to foreground", zap.String("state", s.State().String()))
	case lifecycle.NetworkLost:
		s.manager.HandleNetworkLost()
	case lifecycle.NetworkRestored:
		s.manager.HandleNetworkRestored()
	}
}

func (s *Server) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// routeName collapses request paths into a bounded set of metric labels.
func routeName(req *Request) string {
	if isUpgradeRequest(req) {
		return "websocket"
	}
	switch req.Path {
	case "/", "/api/state", "/api/logs", "/api/logs/clear", "/api/status", "/api/sync",
		"/api/config/enroll", "/api/config/validate",
		"/api/operations/enroll", "/api/operations/validate", "/api/operations/cancel",
		"/api/availability", "/api/keys", "/api/keys/delete":
		return req.Path
	default:
		return "other"
	}
}
