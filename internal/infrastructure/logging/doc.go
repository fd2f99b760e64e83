// Package logging provides structured logging for the SwitchBot bridge.
//
// It wraps log/slog with JSON (default) or text output, level filtering
// and the default fields service=switchbot-bridge and version.
//
// Configuration:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, version)
//	machineLog := logger.ForDevice(dev)
//	machineLog.Info("refresh complete", "channel", "cloud")
//
// Never log the cloud token, the signing secret or JWTs.
package logging
