// Package logger provides the structured logging interface used across prompthunter.
//
// It wraps zerolog and exposes a small interface so components can be handed
// a TestLogger or a no-op logger in tests:
//
//	if err := logger.Initialize(&cfg.Logging); err != nil {
//	    return err
//	}
//	log := logger.GetLogger().WithField("component", "scanner")
//	log.InfoWithFields("source scanned", map[string]interface{}{
//	    "handle":   "alpha",
//	    "requests": 2,
//	})
//
// Output is a colored console writer by default. Setting logging.format to
// "json" emits one JSON object per line, and logging.file appends to a file
// in addition to the console.
package logger
