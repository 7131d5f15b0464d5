// Package errors holds the sentinel errors shared across qpkg and the
// helpers used to add context to them while keeping them matchable with
// errors.Is.
package errors

import "fmt"

// Common error types.
var (
	// Config errors.
	ErrEmptyConfigPath   = fmt.Errorf("config file path cannot be empty")
	ErrInvalidConfigPath = fmt.Errorf("invalid config file path")
	ErrConfigParse       = fmt.Errorf("failed to parse config")
	ErrConfigValidation  = fmt.Errorf("invalid configuration")
	ErrConfigEncode      = fmt.Errorf("failed to encode config")
	ErrConfigDirectory   = fmt.Errorf("failed to create config directory")
	ErrConfigFileCreate  = fmt.Errorf("failed to create config file")
	ErrConfigFileRename  = fmt.Errorf("failed to rename temporary config file")

	// ErrTimeoutNegative is returned when the network timeout is set to a negative value.
	ErrTimeoutNegative = fmt.Errorf("timeout cannot be negative")

	// ErrInvalidLogLevel is returned when an invalid log level is specified.
	ErrInvalidLogLevel = fmt.Errorf("invalid log level")

	// ErrRegistryURLInvalid is returned when the registry base URL cannot be parsed.
	ErrRegistryURLInvalid = fmt.Errorf("invalid registry URL")

	// Cache errors.
	ErrCacheDirectory = fmt.Errorf("cache directory cannot be empty")
	ErrCacheClean     = fmt.Errorf("failed to clean cache")
	ErrCacheIndex     = fmt.Errorf("failed to read cache index")

	// Manifest errors.
	ErrManifestNotFound = fmt.Errorf("manifest not found")
	ErrManifestParse    = fmt.Errorf("failed to parse manifest")

	// ErrInvalidPath is returned when a file or directory path is invalid.
	ErrInvalidPath = fmt.Errorf("invalid path")

	// ErrDownloadFailed is returned when a download operation fails.
	ErrDownloadFailed = fmt.Errorf("download failed")

	// ErrFileHashMismatch is returned when a downloaded file does not match its expected checksum.
	ErrFileHashMismatch = fmt.Errorf("file hash does not match expected value")

	// ErrArchiveExtract is returned when a source archive cannot be unpacked.
	ErrArchiveExtract = fmt.Errorf("failed to extract archive")
)

// Wrap wraps an error with additional context.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf wraps an error with additional formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// ErrInvalidLogLevelWithDetails is a helper to create a wrapped error with the invalid level and valid options.
func ErrInvalidLogLevelWithDetails(level string) error {
	return fmt.Errorf("%w: '%s', must be one of: debug, info, warn, error", ErrInvalidLogLevel, level)
}
