// Package logging provides structured logging for the RCP engine.
//
// It wraps log/slog with JSON or text output, level filtering and default
// service/version fields on every entry.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Info("device created", "device", "robot-1")
//	logger.Error("publish failed", "error", err)
package logging
