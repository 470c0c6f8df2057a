package main

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/muurk/webcontrol/internal/biometric"
	"github.com/muurk/webcontrol/internal/bridge"
	"github.com/muurk/webcontrol/internal/config"
	"github.com/muurk/webcontrol/internal/discovery"
	"github.com/muurk/webcontrol/internal/lifecycle"
	"github.com/muurk/webcontrol/internal/logging"
	"github.com/muurk/webcontrol/internal/metrics"
	"github.com/muurk/webcontrol/internal/server"
	"github.com/muurk/webcontrol/internal/verifyapi"
	"github.com/muurk/webcontrol/internal/wsmanager"
)

// app wires the control server to its collaborators.
type app struct {
	cfg     *config.Config
	manager *wsmanager.Manager
	keys    *biometric.SoftwareKeyService
	bridge  *bridge.Bridge
	metrics *metrics.Metrics
	server  *server.Server
	events  *lifecycle.Dispatcher
}

func newApp(cfg *config.Config) *app {
	manager := wsmanager.New(managerConfig(cfg))
	keys := biometric.NewSoftwareKeyService()
	br := bridge.New(bridgeConfig(cfg), keys, verifyapi.NewClient(), manager)
	manager.SetInboundHandler(br.HandleInbound)

	m := metrics.New(manager.Stats)
	br.OnStateChange(m.ObserveState)

	opts := []server.Option{server.WithObserver(m)}
	if cfg.Discovery.Advertise {
		opts = append(opts, server.WithAdvertiser(discovery.NewAdvertiser(cfg.Discovery.Instance)))
	}
	srv := server.New(serverConfig(cfg), manager, br, opts...)

	events := lifecycle.NewDispatcher()
	events.Subscribe(srv.HandleLifecycle)

	return &app{
		cfg:     cfg,
		manager: manager,
		keys:    keys,
		bridge:  br,
		metrics: m,
		server:  srv,
		events:  events,
	}
}

// start starts the server and publishes the key service's availability.
func (a *app) start(ctx context.Context) (server.Status, error) {
	status, err := a.server.Start(ctx, a.cfg.Server.PreferredPort)
	if err != nil {
		return status, err
	}
	if _, err := a.bridge.RefreshAvailability(ctx); err != nil {
		logging.Warn("Failed to check biometric availability", zap.Error(err))
	}
	return status, nil
}

// stop cancels any running operation and stops the server.
func (a *app) stop(ctx context.Context) error {
	a.bridge.Close()
	return a.server.Stop(ctx)
}

func serverConfig(cfg *config.Config) server.Config {
	return server.Config{
		Host:                     cfg.Server.Host,
		PortRangeStart:           cfg.Server.PortRangeStart,
		PortRangeEnd:             cfg.Server.PortRangeEnd,
		StartTimeout:             cfg.Server.StartTimeout,
		StopTimeout:              cfg.Server.StopTimeout,
		ReadTimeout:              cfg.Server.ReadTimeout,
		WriteTimeout:             cfg.WebSocket.WriteTimeout,
		MaxRequestSize:           cfg.Server.MaxRequestSize,
		StopOnBackground:         cfg.Server.StopOnBackground,
		MaxAuthFailuresPerMinute: cfg.Auth.MaxFailuresPerMinute,
	}
}

func managerConfig(cfg *config.Config) wsmanager.Config {
	return wsmanager.Config{
		HeartbeatInterval:    cfg.WebSocket.HeartbeatInterval,
		IdleTimeout:          cfg.WebSocket.IdleTimeout,
		MaxMissedPongs:       cfg.WebSocket.MaxMissedPongs,
		MaxQueueSize:         cfg.WebSocket.MaxQueueSize,
		MaxReconnectAttempts: cfg.WebSocket.MaxReconnectAttempts,
		WriteTimeout:         cfg.WebSocket.WriteTimeout,
		MaxMessageSize:       cfg.WebSocket.MaxMessageSize,
	}
}

func bridgeConfig(cfg *config.Config) bridge.Config {
	return bridge.Config{
		MaxLogEntries:   cfg.Bridge.MaxLogEntries,
		KeyPrompt:       cfg.Bridge.KeyPrompt,
		PayloadTemplate: cfg.Bridge.PayloadTemplate,
		EnrollConfig:    cfg.Endpoints.Enroll.Clone(),
		ValidateConfig:  cfg.Endpoints.Validate.Clone(),
	}
}

// webSocketURL derives the ws:// address from the server's http:// URL.
func webSocketURL(httpURL string) string {
	if rest, ok := strings.CutPrefix(httpURL, "http://"); ok {
		return "ws://" + rest + "/ws"
	}
	return httpURL
}
