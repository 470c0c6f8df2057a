// Package config loads and saves the webcontrol configuration file.
//
// The configuration is a YAML document holding server, WebSocket, auth,
// bridge, discovery and metrics settings plus the default enroll/validate
// endpoint configurations. A missing file yields Default(); command-line
// flags override individual values after loading.
//
// # Configuration File Location
//
//   - Linux: $XDG_CONFIG_HOME/webcontrol/config.yaml or $HOME/.config/webcontrol/config.yaml
//   - macOS: $HOME/.config/webcontrol/config.yaml
//   - Windows: %LOCALAPPDATA%\webcontrol\config.yaml
//
// # Security
//
// The Basic-Auth password is never stored. It is generated on every server
// start and shown only to the operator.
//
// # Usage Example
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	cfg.Server.PreferredPort = 8085
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config
