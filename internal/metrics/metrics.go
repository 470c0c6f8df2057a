// Package metrics provides Prometheus instrumentation for the control server.
// It counts HTTP requests and failed authentications, exposes the WebSocket
// manager's counters, and tracks completed biometric operations.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/muurk/webcontrol/internal/logging"
	"github.com/muurk/webcontrol/internal/types"
	"github.com/muurk/webcontrol/internal/wsmanager"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	// Namespace is the Prometheus namespace for all webcontrol metrics
	Namespace = "webcontrol"

	// Label names
	LabelMethod     = "method"
	LabelRoute      = "route"
	LabelStatusCode = "status_code"
	LabelThrottled  = "throttled"
	LabelOperation  = "operation"
	LabelStatus     = "status"

	// Status values
	StatusSuccess = "success"
	StatusError   = "error"
)

// Metrics owns a registry and the collectors registered on it.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	authFailures    *prometheus.CounterVec
	operationsTotal *prometheus.CounterVec

	mu            sync.Mutex
	lastOperation string
}

// New creates the collectors on a fresh registry. stats, when non-nil, is
// sampled on every scrape for the WebSocket gauges and counters.
func New(stats func() wsmanager.Stats) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Metrics{
		registry: reg,
		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests by method, route and status code",
			},
			[]string{LabelMethod, LabelRoute, LabelStatusCode},
		),
		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{LabelMethod, LabelRoute},
		),
		authFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "auth",
				Name:      "failures_total",
				Help:      "Total number of rejected requests, split by whether the client was throttled",
			},
			[]string{LabelThrottled},
		),
		operationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "operations_total",
				Help:      "Total number of completed biometric operations by type and status",
			},
			[]string{LabelOperation, LabelStatus},
		),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if stats != nil {
		m.registerWebSocket(factory, stats)
	}
	return m
}

func (m *Metrics) registerWebSocket(factory promauto.Factory, stats func() wsmanager.Stats) {
	opts := func(name, help string) prometheus.Opts {
		return prometheus.Opts{Namespace: Namespace, Subsystem: "websocket", Name: name, Help: help}
	}

	factory.NewGaugeFunc(prometheus.GaugeOpts(opts("active_connections", "Number of registered WebSocket connections")),
		func() float64 { return float64(stats().ActiveConnections) })
	factory.NewGaugeFunc(prometheus.GaugeOpts(opts("queued_messages", "Number of broadcasts waiting for a client")),
		func() float64 { return float64(stats().QueuedMessages) })
	factory.NewCounterFunc(prometheus.CounterOpts(opts("connections_total", "Total number of WebSocket connections accepted")),
		func() float64 { return float64(stats().TotalConnections) })
	factory.NewCounterFunc(prometheus.CounterOpts(opts("messages_sent_total", "Total number of messages written to clients")),
		func() float64 { return float64(stats().MessagesSent) })
	factory.NewCounterFunc(prometheus.CounterOpts(opts("messages_received_total", "Total number of text messages read from clients")),
		func() float64 { return float64(stats().MessagesReceived) })
	factory.NewCounterFunc(prometheus.CounterOpts(opts("dropped_messages_total", "Total number of queued broadcasts evicted by the queue bound")),
		func() float64 { return float64(stats().DroppedMessages) })
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRequest records one answered HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveAuthFailure records a rejected request.
func (m *Metrics) ObserveAuthFailure(throttled bool) {
	m.authFailures.WithLabelValues(strconv.FormatBool(throttled)).Inc()
}

// ObserveState counts an operation the first time its result appears in a
// state snapshot. It is meant to be passed to the bridge's OnStateChange.
func (m *Metrics) ObserveState(s types.BridgeState) {
	r := s.OperationStatus
	if r == nil || r.OperationID == "" {
		return
	}

	m.mu.Lock()
	if r.OperationID == m.lastOperation {
		m.mu.Unlock()
		return
	}
	m.lastOperation = r.OperationID
	m.mu.Unlock()

	status := StatusSuccess
	if !r.Success {
		status = StatusError
	}
	m.operationsTotal.WithLabelValues(string(r.Operation), status).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logging.Info("Serving metrics", zap.String("addr", ln.Addr().String()))
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
