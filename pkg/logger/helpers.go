package logger

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// LogFetch logs one HTTP attempt against the source site
func LogFetch(l Logger, url string, attempt, status int, duration time.Duration) {
	fields := map[string]interface{}{
		"url":         url,
		"attempt":     attempt,
		"status_code": status,
		"duration":    duration,
	}

	switch {
	case status >= 200 && status < 300:
		l.DebugWithFields("Fetch completed", fields)
	case status == 429:
		l.WarnWithFields("Fetch throttled", fields)
	default:
		l.WarnWithFields("Fetch failed", fields)
	}
}

// LogBackoff logs a wait before the next fetch attempt
func LogBackoff(l Logger, url string, attempt int, wait time.Duration) {
	l.WithFields(map[string]interface{}{
		"url":     url,
		"attempt": attempt,
		"wait":    wait,
		"action":  "backoff",
	}).Warn("Backing off before retry")
}

// LogPlayerIngest logs the outcome of ingesting one player
func LogPlayerIngest(l Logger, playerID, name string, rows int, err error) {
	entry := l.WithFields(map[string]interface{}{
		"player_id": playerID,
		"player":    name,
		"rows":      rows,
	})

	if err != nil {
		entry.WithError(err).Error("Player ingest failed")
		return
	}
	entry.Info("Player ingested")
}

// LogStateTransition logs an ingestion state change
func LogStateTransition(l Logger, from, to string) {
	l.WithFields(map[string]interface{}{
		"from": from,
		"to":   to,
	}).Info("Ingestion state changed")
}

// LogProgress logs ingestion progress
func LogProgress(l Logger, done, total int) {
	percentage := 0.0
	if total > 0 {
		percentage = float64(done) / float64(total) * 100
	}
	l.WithFields(map[string]interface{}{
		"done":       done,
		"total":      total,
		"percentage": percentage,
	}).Info("Ingestion progress")
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) Fatal(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                    { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) FatalWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) GetZerolog() *zerolog.Logger                               { return nil }
