package config

import (
	"time"

	"github.com/muurk/webcontrol/internal/types"
)

// CurrentVersion is the configuration schema version.
const CurrentVersion = 1

// Config is the whole configuration file.
type Config struct {
	Version   int             `yaml:"version"`
	Server    ServerConfig    `yaml:"server"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Auth      AuthConfig      `yaml:"auth"`
	Bridge    BridgeConfig    `yaml:"bridge"`
	Endpoints EndpointsConfig `yaml:"endpoints"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	LogLevel  string          `yaml:"log_level,omitempty"`
}

// ServerConfig controls the listener and request handling.
type ServerConfig struct {
	Host             string        `yaml:"host"`           // Interface to bind (empty = all)
	PreferredPort    int           `yaml:"preferred_port"` // Tried before the range (0 = none)
	PortRangeStart   int           `yaml:"port_range_start"`
	PortRangeEnd     int           `yaml:"port_range_end"`
	StartTimeout     time.Duration `yaml:"start_timeout"`
	StopTimeout      time.Duration `yaml:"stop_timeout"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`     // Deadline for a complete HTTP request
	MaxRequestSize   int           `yaml:"max_request_size"` // Header + body bytes
	StopOnBackground bool          `yaml:"stop_on_background"`
}

// WebSocketConfig controls the connection registry and heartbeat.
type WebSocketConfig struct {
	HeartbeatInterval    time.Duration `yaml:"heartbeat_interval"`
	IdleTimeout          time.Duration `yaml:"idle_timeout"` // 0 disables idle eviction
	MaxMissedPongs       int           `yaml:"max_missed_pongs"`
	MaxQueueSize         int           `yaml:"max_queue_size"`
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"`
	WriteTimeout         time.Duration `yaml:"write_timeout"`
	MaxMessageSize       int           `yaml:"max_message_size"`
}

// AuthConfig controls failed-authentication throttling.
type AuthConfig struct {
	MaxFailuresPerMinute int `yaml:"max_failures_per_minute"` // 0 disables throttling
}

// BridgeConfig controls the state bridge.
type BridgeConfig struct {
	MaxLogEntries   int    `yaml:"max_log_entries"`
	KeyPrompt       string `yaml:"key_prompt"`
	PayloadTemplate string `yaml:"payload_template,omitempty"` // {{timestamp}}, {{iso}}, {{nonce}}
}

// EndpointsConfig holds the initial enroll and validate endpoints.
type EndpointsConfig struct {
	Enroll   types.EndpointConfig `yaml:"enroll"`
	Validate types.EndpointConfig `yaml:"validate"`
}

// DiscoveryConfig controls mDNS advertisement of the control server.
type DiscoveryConfig struct {
	Advertise bool   `yaml:"advertise"`
	Instance  string `yaml:"instance"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Address string `yaml:"address"` // e.g. "127.0.0.1:9464"; empty disables
}

// Default returns a Config populated with the built-in defaults.
func Default() *Config {
	return &Config{
		Version: CurrentVersion,
		Server: ServerConfig{
			PortRangeStart:   8080,
			PortRangeEnd:     8090,
			StartTimeout:     5 * time.Second,
			StopTimeout:      5 * time.Second,
			ReadTimeout:      30 * time.Second,
			MaxRequestSize:   1 << 20,
			StopOnBackground: true,
		},
		WebSocket: WebSocketConfig{
			HeartbeatInterval:    30 * time.Second,
			IdleTimeout:          60 * time.Second,
			MaxMissedPongs:       3,
			MaxQueueSize:         100,
			MaxReconnectAttempts: 3,
			WriteTimeout:         10 * time.Second,
			MaxMessageSize:       64 * 1024,
		},
		Auth: AuthConfig{
			MaxFailuresPerMinute: 10,
		},
		Bridge: BridgeConfig{
			MaxLogEntries: 100,
			KeyPrompt:     "Confirm your identity",
		},
		Endpoints: EndpointsConfig{
			Enroll: types.EndpointConfig{
				URL:    "http://localhost:3000/api/enroll",
				Method: "POST",
				Headers: map[string]string{
					"Content-Type": "application/json",
				},
			},
			Validate: types.EndpointConfig{
				URL:    "http://localhost:3000/api/validate",
				Method: "POST",
				Headers: map[string]string{
					"Content-Type": "application/json",
				},
			},
		},
		Discovery: DiscoveryConfig{
			Instance: "Web Control",
		},
	}
}
