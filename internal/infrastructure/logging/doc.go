// Package logging provides structured logging for bambuwatch.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the application.
//
// # Features
//
//   - JSON output (machine-parsable, the default)
//   - Text output for interactive use
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//
// Logs go to stderr unless configured otherwise, leaving stdout free for
// the state output of the snapshot and watch commands.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stderr"   # stdout, stderr
//
// # Usage
//
// Loggers are passed explicitly into each component rather than set
// globally:
//
//	logger := logging.New(cfg.Logging, version)
//	session := mqtt.NewSession(endpoint, mqtt.WithLogger(logger.With("component", "mqtt")))
package logging
