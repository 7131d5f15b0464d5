// Package logger is the process-wide structured logger. It exposes a small
// slog facade whose records are rendered by charmbracelet/log.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	charmlog "github.com/charmbracelet/log"
)

// OutputFormat selects how log records are rendered.
type OutputFormat string

const (
	// FormatText renders human-readable, optionally colored, lines.
	FormatText OutputFormat = "text"
	// FormatJSON renders one JSON object per record.
	FormatJSON OutputFormat = "json"
)

var (
	// testOutput is used to capture log output during tests
	testOutput   io.Writer
	testOutputMu sync.Mutex
)

// Fields is a type alias for log fields to make the API cleaner
type Fields map[string]interface{}

var (
	logger       *slog.Logger
	currentLevel = slog.LevelInfo
	currentFmt   = FormatText
)

// SetTestOutput sets the output writer for testing purposes
func SetTestOutput(w io.Writer) {
	testOutputMu.Lock()
	defer testOutputMu.Unlock()
	testOutput = w
}

// UnsetTestOutput resets the test output to nil
func UnsetTestOutput() {
	testOutputMu.Lock()
	defer testOutputMu.Unlock()
	testOutput = nil
}

func getOutput() io.Writer {
	testOutputMu.Lock()
	defer testOutputMu.Unlock()
	if testOutput != nil {
		return testOutput
	}
	return os.Stderr
}

// ParseLevel maps a level name to a slog level. Unknown names fall back to info.
func ParseLevel(logLevel string) slog.Level {
	switch strings.ToLower(logLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// InitLogger initializes the global logger for CLI operations.
func InitLogger(logLevel string, format ...OutputFormat) {
	currentLevel = ParseLevel(logLevel)
	if len(format) > 0 {
		currentFmt = format[0]
	}
	logger = slog.New(newHandler(getOutput(), currentLevel, currentFmt))
}

// SetOutputFormat switches the rendering format, keeping the current level.
func SetOutputFormat(format OutputFormat) {
	currentFmt = format
	logger = slog.New(newHandler(getOutput(), currentLevel, currentFmt))
}

func newHandler(w io.Writer, level slog.Level, format OutputFormat) slog.Handler {
	formatter := charmlog.TextFormatter
	if format == FormatJSON {
		formatter = charmlog.JSONFormatter
	}
	return charmlog.NewWithOptions(w, charmlog.Options{
		Level:     charmlog.Level(level),
		Formatter: formatter,
	})
}

// GetLogger returns the configured logger instance.
func GetLogger() *slog.Logger {
	if logger == nil {
		InitLogger("info")
	}
	return logger
}

// Info logs an info message.
func Info(msg string, fields ...Fields) {
	GetLogger().Info(msg, mergeFields(fields...)...)
}

// Infof logs a formatted info message.
func Infof(format string, args ...interface{}) {
	GetLogger().Info(fmt.Sprintf(format, args...))
}

// Debug logs a debug message (only shown when debug level is enabled).
func Debug(msg string, fields ...Fields) {
	GetLogger().Debug(msg, mergeFields(fields...)...)
}

// Debugf logs a formatted debug message.
func Debugf(format string, args ...interface{}) {
	GetLogger().Debug(fmt.Sprintf(format, args...))
}

// DebugfWithFields logs a formatted debug message with fields.
func DebugfWithFields(fields Fields, format string, args ...interface{}) {
	GetLogger().Debug(fmt.Sprintf(format, args...), mergeFields(fields)...)
}

// Error logs an error message.
func Error(msg string, fields ...Fields) {
	GetLogger().Error(msg, mergeFields(fields...)...)
}

// Errorf logs a formatted error message.
func Errorf(format string, args ...interface{}) {
	GetLogger().Error(fmt.Sprintf(format, args...))
}

// Warn logs a warning message.
func Warn(msg string, fields ...Fields) {
	GetLogger().Warn(msg, mergeFields(fields...)...)
}

// Warnf logs a formatted warning message.
func Warnf(format string, args ...interface{}) {
	GetLogger().Warn(fmt.Sprintf(format, args...))
}

// Success logs a success message as info with success indicator.
func Success(msg string, fields ...Fields) {
	allFields := mergeFields(fields...)
	allFields = append(allFields, "status", "success")
	GetLogger().Info(msg, allFields...)
}

// mergeFields merges multiple field maps into one slice of key-value pairs for slog.
func mergeFields(fields ...Fields) []interface{} {
	result := []interface{}{}
	for _, field := range fields {
		for k, v := range field {
			result = append(result, k, v)
		}
	}
	return result
}
