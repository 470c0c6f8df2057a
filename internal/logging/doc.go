// Package logging provides structured logging for the web control server.
//
// This package wraps a zap logger with package-level convenience functions so
// every component logs with the same fields and levels without threading a
// logger through constructors.
//
// # Log Levels
//
//   - Debug: frame-level detail, raw request bytes, heartbeat sweeps
//   - Info: server lifecycle, connections, operations
//   - Warn: recoverable failures (dropped connections, rejected requests)
//   - Error: failures that abort an operation
//
// # Structured Logging
//
//	logging.Info("Client registered",
//	    zap.String("connection_id", id),
//	    zap.Int("active_connections", n),
//	)
//
// # Configuration
//
// Initialize logging once at startup:
//
//	if err := logging.Initialize("debug"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// When no level is passed and WEBCONTROL_LOG_LEVEL is unset the logger is a
// no-op, which keeps CLI output and test runs quiet.
//
// # Thread Safety
//
// All logging functions are safe for concurrent use.
package logging
