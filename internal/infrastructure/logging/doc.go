// Package logging provides structured logging for Enviro Core.
//
// It wraps the standard library's log/slog with configuration-driven
// setup (level, format, destination) and default fields identifying the
// service and build version.
//
// Components receive a *Logger (or a narrow logging interface they define
// themselves) via dependency injection; there is no package-level global
// logger.
//
// Usage:
//
//	log := logging.New(cfg.Logging, version)
//	log.Info("sensor registered", "name", "T1", "type", "sht3x")
//
//	engineLog := log.With("component", "telemetry")
//	engineLog.Warn("sensor unavailable", "name", "T1", "attempts", 4)
package logging
