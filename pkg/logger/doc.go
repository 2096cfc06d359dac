// Package logger provides the structured logging interface used across the
// enrichment tool.
//
// It wraps zerolog and offers:
//   - levels (Debug, Info, Warn, Error)
//   - child loggers carrying fields (WithField, WithFields, WithError)
//   - colored console output or JSON lines, optionally mirrored to a file
//   - a global logger for command wiring
//   - TestLogger and NewNopLogger for tests
//
// Basic usage:
//
//	if err := logger.Initialize(&cfg.Logging); err != nil {
//		return err
//	}
//	logger.WithField("chunk", 3).Info("Chunk written")
//
// Components receive a Logger explicitly:
//
//	log := logger.GetLogger().WithField("component", "enrich")
//	log.InfoWithFields("Row generated", map[string]interface{}{
//		"label":   "Rundhøj",
//		"sources": 2,
//	})
package logger
