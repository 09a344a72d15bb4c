// Package logger provides the structured logging interface used across kpredict.
//
// It wraps zerolog with a small Logger interface supporting leveled output,
// derived loggers carrying fields, and a global instance:
//
//	if err := logger.Initialize(&cfg.Logging); err != nil {
//	    return err
//	}
//	log := logger.GetLogger().WithField("component", "ingest")
//	log.InfoWithFields("Roster fetched", map[string]interface{}{
//	    "season":  2024,
//	    "players": 412,
//	})
//
// Console output is colored and goes to stderr. When logging.file is set the
// same events are also appended to that file as JSON lines.
//
// Tests use NewTestLogger to capture entries, or NewNopLogger to discard them.
package logger
