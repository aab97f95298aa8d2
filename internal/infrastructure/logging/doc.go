// Package logging provides structured logging for the Stream Deck API.
//
// It wraps log/slog so every record carries the same default fields
// (service, version) and honours the level and format from config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Component("deck").Info("device attached", "serial", serial)
//
// Never log MQTT passwords or InfluxDB tokens.
package logging
