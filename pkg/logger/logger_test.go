package logger

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"kpredict/pkg/config"
)

func bufferLogger(buf *bytes.Buffer) *zerologLogger {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	zlog := zerolog.New(buf).With().Timestamp().Logger()
	return &zerologLogger{logger: &zlog, fields: make(map[string]interface{})}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{"info level", &config.LoggingConfig{Level: "info"}, false},
		{"debug level", &config.LoggingConfig{Level: "debug"}, false},
		{"invalid level", &config.LoggingConfig{Level: "invalid"}, true},
		{"file output", &config.LoggingConfig{Level: "info", File: filepath.Join(t.TempDir(), "logs", "kpredict.log")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && l == nil {
				t.Error("New() returned nil logger")
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
		wantErr  bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"INFO", zerolog.InfoLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"disabled", zerolog.Disabled, false},
		{"verbose", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			level, err := parseLogLevel(tt.level)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseLogLevel(%q) error = %v", tt.level, err)
			}
			if level != tt.expected {
				t.Errorf("parseLogLevel(%q) = %v, want %v", tt.level, level, tt.expected)
			}
		})
	}
}

func TestFieldChaining(t *testing.T) {
	var buf bytes.Buffer
	l := bufferLogger(&buf)

	l.WithField("player", "Gerrit Cole").
		WithFields(map[string]interface{}{"rows": 32, "season": 2024}).
		Info("player ingested")

	output := buf.String()
	for _, want := range []string{"player ingested", `"player":"Gerrit Cole"`, `"rows":32`, `"season":2024`} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %s in output: %s", want, output)
		}
	}
}

func TestWithFieldDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	l := bufferLogger(&buf)

	_ = l.WithField("child", true)
	l.Info("parent")

	if strings.Contains(buf.String(), "child") {
		t.Error("derived field leaked into parent logger")
	}
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	l := bufferLogger(&buf)

	if l.WithError(nil) != Logger(l) {
		t.Error("WithError(nil) should return the same logger")
	}

	l.WithError(errors.New("connection reset")).Error("fetch failed")
	if !strings.Contains(buf.String(), "connection reset") {
		t.Error("error text not found in output")
	}
}

func TestFieldTypes(t *testing.T) {
	var buf bytes.Buffer
	l := bufferLogger(&buf)

	l.InfoWithFields("typed", map[string]interface{}{
		"duration": 5 * time.Second,
		"ratio":    0.25,
		"ids":      []string{"colege01", "burneco01"},
		"cause":    errors.New("boom"),
	})

	output := buf.String()
	if !strings.Contains(output, `"ratio":0.25`) {
		t.Error("float field not found")
	}
	if !strings.Contains(output, `"cause":"boom"`) {
		t.Error("error field not found")
	}
}

func TestHelpers(t *testing.T) {
	tl := NewTestLogger()

	LogFetch(tl, "https://example.test/a", 1, 429, time.Second)
	LogFetch(tl, "https://example.test/a", 2, 200, time.Second)
	LogPlayerIngest(tl, "colege01", "Gerrit Cole", 0, errors.New("table missing"))
	LogStateTransition(tl, "INIT", "FETCHING_ROSTER")

	if !tl.HasMessage("Fetch throttled") {
		t.Error("expected throttled message")
	}
	if len(tl.GetMessagesByLevel("DEBUG")) != 1 {
		t.Error("expected successful fetch at debug level")
	}
	if !tl.HasError() {
		t.Error("expected failed ingest at error level")
	}
	for _, msg := range tl.GetMessages() {
		if msg.Message == "Ingestion state changed" && msg.Fields["to"] != "FETCHING_ROSTER" {
			t.Errorf("unexpected transition fields: %v", msg.Fields)
		}
	}
}

func TestTestLoggerSharesCapture(t *testing.T) {
	tl := NewTestLogger()
	child := tl.WithField("worker", 1).WithError(errors.New("x"))
	child.Warn("child warning")

	msgs := tl.GetMessages()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].Fields["worker"] != 1 || msgs[0].Error == nil {
		t.Errorf("unexpected captured entry: %+v", msgs[0])
	}

	tl.Clear()
	if len(tl.GetMessages()) != 0 {
		t.Error("Clear did not drop messages")
	}
}

func TestGlobalLogger(t *testing.T) {
	if err := Initialize(&config.LoggingConfig{Level: "debug"}); err != nil {
		t.Fatalf("Failed to initialize logger: %v", err)
	}
	if GetLogger() == nil {
		t.Fatal("GetLogger() returned nil")
	}

	tl := NewTestLogger()
	SetLogger(tl)
	defer SetLogger(nil)

	WithField("key", "value").Info("with field")
	if !tl.HasMessage("with field") {
		t.Error("global logger did not route to replacement")
	}
}
