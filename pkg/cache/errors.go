package cache

import (
	"fmt"

	"github.com/glorpus-work/qpkg/pkg/errors"
)

// Common cache errors.
var (
	// ErrCacheClean is returned when there's an error cleaning the cache.
	ErrCacheClean = fmt.Errorf("failed to clean cache")

	// ErrCacheInfo is returned when there's an error getting cache information.
	ErrCacheInfo = fmt.Errorf("failed to get cache info")

	// ErrCacheDirectory is returned when there's an error with the cache directory.
	ErrCacheDirectory = fmt.Errorf("invalid cache directory")

	// ErrVersionMismatch is returned when the manifest copied into the cache
	// does not carry the version being installed.
	ErrVersionMismatch = fmt.Errorf("cached manifest version mismatch")

	// ErrNoSourceURL is returned when a remote package has no url to fetch sources from.
	ErrNoSourceURL = fmt.Errorf("package has no source url")

	// ErrIndexCorrupt is returned when the index file cannot be decoded.
	ErrIndexCorrupt = fmt.Errorf("cache index is corrupt")
)

// Wrap wraps an error with additional context specific to the cache package.
func Wrap(err error, msg string) error {
	return errors.Wrap(err, "cache: "+msg)
}

// Wrapf wraps an error with additional formatted context specific to the cache package.
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, "cache: "+format, args...)
}
