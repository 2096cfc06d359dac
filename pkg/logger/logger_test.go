package logger

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"fortidsminder/pkg/config"

	"github.com/rs/zerolog"
)

func newBufferLogger(buf *bytes.Buffer) *zerologLogger {
	return &zerologLogger{zl: zerolog.New(buf).Level(zerolog.DebugLevel)}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{name: "info level", cfg: &config.LoggingConfig{Level: "info"}},
		{name: "debug level pretty", cfg: &config.LoggingConfig{Level: "debug", Pretty: true}},
		{name: "invalid level", cfg: &config.LoggingConfig{Level: "invalid"}, wantErr: true},
		{
			name: "file output",
			cfg: &config.LoggingConfig{
				Level: "info",
				File:  filepath.Join(t.TempDir(), "logs", "run.log"),
			},
		},
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
		{"DEBUG", zerolog.DebugLevel, false},
		{"info", zerolog.InfoLevel, false},
		{"", zerolog.InfoLevel, false},
		{"warn", zerolog.WarnLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"disabled", zerolog.Disabled, false},
		{"loud", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			level, err := parseLogLevel(tt.level)
			if (err != nil) != tt.wantErr {
				t.Errorf("parseLogLevel() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if level != tt.expected {
				t.Errorf("parseLogLevel() = %v, want %v", level, tt.expected)
			}
		})
	}
}

func TestLoggerMethods(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf)

	cases := map[string]func(string){
		"debug message": l.Debug,
		"info message":  l.Info,
		"warn message":  l.Warn,
		"error message": l.Error,
	}
	for msg, fn := range cases {
		buf.Reset()
		fn(msg)
		if !strings.Contains(buf.String(), msg) {
			t.Errorf("%q not found in output %q", msg, buf.String())
		}
	}
}

func TestWithFieldsDoNotLeakIntoParent(t *testing.T) {
	var buf bytes.Buffer
	parent := newBufferLogger(&buf)

	child := parent.WithField("chunk", 3)
	child.Info("child message")
	if !strings.Contains(buf.String(), `"chunk":3`) {
		t.Errorf("Field not found in child output: %s", buf.String())
	}

	buf.Reset()
	parent.Info("parent message")
	if strings.Contains(buf.String(), `"chunk"`) {
		t.Errorf("Child field leaked into parent: %s", buf.String())
	}
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf)

	if l.WithError(nil) != Logger(l) {
		t.Error("WithError(nil) should return the same logger")
	}

	l.WithError(errors.New("chunk write failed")).Error("abort")
	if !strings.Contains(buf.String(), "chunk write failed") {
		t.Errorf("Error text not found in output: %s", buf.String())
	}
}

func TestStructuredFieldTypes(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf)

	l.InfoWithFields("row generated", map[string]interface{}{
		"label":    "Rundhøj",
		"sources":  2,
		"ok":       true,
		"elapsed":  5 * time.Second,
		"labels":   []string{"a", "b"},
		"chunk_id": int64(7),
		"custom":   struct{ Name string }{Name: "x"},
	})

	output := buf.String()
	for _, want := range []string{`"label":"Rundhøj"`, `"sources":2`, `"ok":true`, `"chunk_id":7`} {
		if !strings.Contains(output, want) {
			t.Errorf("%s not found in output %s", want, output)
		}
	}
}

func TestGlobalLogger(t *testing.T) {
	if err := Initialize(&config.LoggingConfig{Level: "disabled"}); err != nil {
		t.Fatalf("Failed to initialize logger: %v", err)
	}
	if GetLogger() == nil {
		t.Fatal("GetLogger() returned nil")
	}

	captured := NewTestLogger()
	SetLogger(captured)
	defer SetLogger(nil)

	Info("info message")
	WithField("key", "value").Warn("with field")
	WithError(errors.New("boom")).Error("with error")

	if !captured.HasMessage("info message") {
		t.Error("Expected global Info to reach the test logger")
	}
	warns := captured.GetMessagesByLevel("WARN")
	if len(warns) != 1 || warns[0].Fields["key"] != "value" {
		t.Errorf("Unexpected warn messages %+v", warns)
	}
	if !captured.HasError() {
		t.Error("Expected an error message to be captured")
	}
}

func TestHelpers(t *testing.T) {
	captured := NewTestLogger()

	LogRequest(captured, "POST", "http://chat/conversation", 503, 12.5)
	LogRequest(captured, "POST", "http://chat/conversation", 429, 3)
	LogChunkProgress(captured, 1, 4, 8, 16)
	LogComponentStart(captured, "enrich", map[string]interface{}{"chunk_size": 4})
	LogComponentStop(captured, "enrich", "done")

	if len(captured.GetMessagesByLevel("ERROR")) != 1 {
		t.Error("Expected 5xx to log at error level")
	}
	if len(captured.GetMessagesByLevel("WARN")) != 1 {
		t.Error("Expected 4xx to log at warn level")
	}

	var progress LogMessage
	for _, m := range captured.GetMessages() {
		if m.Message == "Chunk progress" {
			progress = m
		}
	}
	if progress.Fields["percentage"] != "50.0%" {
		t.Errorf("Expected 50.0%% progress, got %v", progress.Fields["percentage"])
	}
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	l.WithField("k", "v").WithError(errors.New("x")).Info("dropped")
	if l.GetZerolog() == nil {
		t.Error("Nop logger should still expose a zerolog instance")
	}
}
