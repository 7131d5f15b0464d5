package logger

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func captureOutput(t *testing.T, level string, format OutputFormat, fn func()) string {
	t.Helper()
	buf := &bytes.Buffer{}
	SetTestOutput(buf)
	defer UnsetTestOutput()

	logger = nil
	InitLogger(level, format)
	fn()
	return buf.String()
}

func TestLogger(t *testing.T) {
	tests := []struct {
		name     string
		level    string
		logFn    func()
		contains []string
		excludes []string
	}{
		{
			name:     "info log",
			level:    "info",
			logFn:    func() { Info("test info message") },
			contains: []string{"test info message"},
		},
		{
			name:     "debug log with debug level",
			level:    "debug",
			logFn:    func() { Debug("test debug message") },
			contains: []string{"test debug message"},
		},
		{
			name:     "debug log with info level",
			level:    "info",
			logFn:    func() { Debug("test debug message") },
			excludes: []string{"test debug message"},
		},
		{
			name:     "warn suppressed at error level",
			level:    "error",
			logFn:    func() { Warn("quiet warning") },
			excludes: []string{"quiet warning"},
		},
		{
			name:     "warn log with fields",
			level:    "warn",
			logFn:    func() { Warn("test warning", Fields{"key1": "value1", "key2": 42}) },
			contains: []string{"test warning", "key1=value1", "key2=42"},
		},
		{
			name:     "success log",
			level:    "info",
			logFn:    func() { Success("operation completed") },
			contains: []string{"operation completed", "status=success"},
		},
		{
			name:     "formatted info log",
			level:    "info",
			logFn:    func() { Infof("formatted %s", "message") },
			contains: []string{"formatted message"},
		},
		{
			name:  "formatted debug with fields",
			level: "debug",
			logFn: func() {
				DebugfWithFields(Fields{"count": 1, "name": "test"}, "processing item %d", 1)
			},
			contains: []string{"processing item 1", "count=1", "name=test"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := captureOutput(t, tt.level, FormatText, tt.logFn)
			for _, want := range tt.contains {
				assert.Contains(t, out, want)
			}
			for _, notWant := range tt.excludes {
				assert.NotContains(t, out, notWant)
			}
		})
	}
}

func TestGetLogger_InitializesIfNil(t *testing.T) {
	buf := &bytes.Buffer{}
	SetTestOutput(buf)
	defer UnsetTestOutput()

	logger = nil
	assert.NotPanics(t, func() {
		lg := GetLogger()
		assert.NotNil(t, lg)
		lg.Info("test message")
	})
	assert.Contains(t, buf.String(), "test message")
}

func TestSetOutputFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	SetTestOutput(buf)
	defer UnsetTestOutput()

	logger = nil
	InitLogger("debug", FormatText)
	Info("test message 1")
	assert.Contains(t, buf.String(), "test message 1")

	buf.Reset()
	SetOutputFormat(FormatJSON)
	Info("test message 2")
	assert.Contains(t, buf.String(), `"msg":"test message 2"`)

	SetOutputFormat(FormatText)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}
