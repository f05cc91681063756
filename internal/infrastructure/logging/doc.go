// Package logging provides structured logging using uber/zap.
//
// Two modes are supported:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Components take a named child logger so every line carries its origin:
//
//	logger := logging.FromSettings(cfg.Logging.Level, cfg.Logging.Development)
//	termLog := logger.Named("terminal")
//	termLog.Info("session started", zap.String("session_id", id))
package logging
