// Package logging provides structured logging for ugoku.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the sequencer and its adapters.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for attended sessions (human-readable)
//   - Default fields (service, version) on all log entries
//   - Optional session log file written alongside the console
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//	  file:
//	    path: "./logs/session.log"
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	defer logger.Close()
//	logger.Info("task completed", "task_id", "t1", "row", 0)
package logging
