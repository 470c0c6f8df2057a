package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	appName    = "webcontrol"
	configFile = "config.yaml"
)

// Mutex for thread-safe file operations
var fileMutex sync.Mutex

// GetConfigDir returns the OS-appropriate configuration directory for the application.
//   - Linux: $XDG_CONFIG_HOME/webcontrol or $HOME/.config/webcontrol
//   - macOS: $HOME/.config/webcontrol
//   - Windows: %LOCALAPPDATA%\webcontrol
func GetConfigDir() (string, error) {
	switch runtime.GOOS {
	case "windows":
		if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
			return filepath.Join(localAppData, appName), nil
		}
		userProfile := os.Getenv("USERPROFILE")
		if userProfile == "" {
			return "", fmt.Errorf("cannot determine user profile directory (LOCALAPPDATA and USERPROFILE not set)")
		}
		return filepath.Join(userProfile, "AppData", "Local", appName), nil

	case "darwin":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		return filepath.Join(homeDir, ".config", appName), nil

	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, appName), nil
		}
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		return filepath.Join(homeDir, ".config", appName), nil
	}
}

// GetConfigPath returns the full path to the default configuration file.
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, configFile), nil
}

// Load reads the configuration at path, or at GetConfigPath() when path is
// empty. A missing file returns Default(). Values absent from the file keep
// their defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		var err error
		path, err = GetConfigPath()
		if err != nil {
			return nil, fmt.Errorf("failed to get config path: %w", err)
		}
	}

	fileMutex.Lock()
	defer fileMutex.Unlock()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if cfg.Version != CurrentVersion {
		return nil, fmt.Errorf("unsupported config version: %d (expected %d)", cfg.Version, CurrentVersion)
	}

	return cfg, nil
}

// Save writes the configuration to path (GetConfigPath() when empty).
// Performs an atomic write to prevent corruption on crash.
func (c *Config) Save(path string) error {
	fileMutex.Lock()
	defer fileMutex.Unlock()

	if path == "" {
		var err error
		path, err = GetConfigPath()
		if err != nil {
			return fmt.Errorf("failed to get config path: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# webcontrol configuration
# The Basic-Auth password is generated on every server start and is never
# stored in this file.
#
# Location: ` + path + `

`)
	data = append(header, data...)

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary config file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to save config file: %w", err)
	}

	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	s := c.Server
	if s.PreferredPort < 0 || s.PreferredPort > 65535 {
		return fmt.Errorf("server.preferred_port out of range: %d", s.PreferredPort)
	}
	if s.PortRangeStart < 1 || s.PortRangeEnd > 65535 || s.PortRangeStart > s.PortRangeEnd {
		return fmt.Errorf("invalid server port range %d-%d", s.PortRangeStart, s.PortRangeEnd)
	}
	if s.StartTimeout <= 0 || s.StopTimeout <= 0 {
		return fmt.Errorf("server start and stop timeouts must be positive")
	}
	if s.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be positive")
	}
	if s.MaxRequestSize < 1024 {
		return fmt.Errorf("server.max_request_size must be at least 1024 bytes")
	}

	w := c.WebSocket
	if w.HeartbeatInterval <= 0 {
		return fmt.Errorf("websocket.heartbeat_interval must be positive")
	}
	if w.IdleTimeout < 0 {
		return fmt.Errorf("websocket.idle_timeout must not be negative")
	}
	if w.MaxMissedPongs < 1 {
		return fmt.Errorf("websocket.max_missed_pongs must be at least 1")
	}
	if w.MaxQueueSize < 1 {
		return fmt.Errorf("websocket.max_queue_size must be at least 1")
	}
	if w.MaxReconnectAttempts < 0 {
		return fmt.Errorf("websocket.max_reconnect_attempts must not be negative")
	}
	if w.WriteTimeout <= 0 {
		return fmt.Errorf("websocket.write_timeout must be positive")
	}
	if w.MaxMessageSize < 125 {
		return fmt.Errorf("websocket.max_message_size must be at least 125 bytes")
	}

	if c.Auth.MaxFailuresPerMinute < 0 {
		return fmt.Errorf("auth.max_failures_per_minute must not be negative")
	}
	if c.Bridge.MaxLogEntries < 1 {
		return fmt.Errorf("bridge.max_log_entries must be at least 1")
	}
	if c.Discovery.Advertise && c.Discovery.Instance == "" {
		return fmt.Errorf("discovery.instance is required when advertising")
	}

	return nil
}
