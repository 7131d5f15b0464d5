package cache

import (
	"fmt"

	"github.com/glorpus-work/qpkg/internal/logger"
)

// Operation wraps a Manager and renders its results for the CLI.
type Operation struct {
	manager Manager
}

// NewOperation creates a new cache operation instance.
func NewOperation(manager Manager) *Operation {
	return &Operation{
		manager: manager,
	}
}

// Clean cleans the cache based on the provided flags. No flag means everything.
func (op *Operation) Clean(all, index, staging bool) (string, error) {
	options := CleanOptions{
		All:     all,
		Index:   index,
		Staging: staging,
	}

	logger.Debug("Cleaning cache", logger.Fields{
		"all":     options.All,
		"index":   options.Index,
		"staging": options.Staging,
	})

	result, err := op.manager.Clean(options)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrCacheClean, err)
	}

	if result.TotalFreed == 0 {
		return "No files were removed from the cache.", nil
	}
	msg := fmt.Sprintf("Successfully cleaned cache. Freed %s of disk space.", formatBytes(result.TotalFreed))
	if result.IndexFreed > 0 {
		msg += fmt.Sprintf("\n- Index: %s", formatBytes(result.IndexFreed))
	}
	if result.PackageFreed > 0 {
		msg += fmt.Sprintf("\n- Packages: %s", formatBytes(result.PackageFreed))
	}
	if result.StagingFreed > 0 {
		msg += fmt.Sprintf("\n- Staging: %s", formatBytes(result.StagingFreed))
	}
	return msg, nil
}

// GetInfo returns information about the cache.
func (op *Operation) GetInfo() (string, error) {
	info, err := op.manager.GetInfo()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrCacheInfo, err)
	}

	return fmt.Sprintf(`Cache Information:
  Directory:    %s
  Index:        %s (%s, %d packages)
  Total Size:   %s
  Packages:     %s (%d entries, %d files)`,
		info.Directory,
		info.IndexPath,
		formatBytes(info.IndexSize),
		info.Indexed,
		formatBytes(info.TotalSize),
		formatBytes(info.PackageSize),
		info.Packages,
		info.PackageFiles,
	), nil
}

// GetDirectory returns the cache directory path.
func (op *Operation) GetDirectory() string {
	return op.manager.GetDirectory()
}

// SetDirectory sets a new cache directory.
func (op *Operation) SetDirectory(dir string) error {
	logger.Debug("Setting cache directory", logger.Fields{"directory": dir})
	return op.manager.SetDirectory(dir)
}

// formatBytes converts bytes to a human-readable string.
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	units := []string{"K", "M", "G", "T", "P", "E"}
	if exp < len(units) {
		return fmt.Sprintf("%.1f %sB", float64(bytes)/float64(div), units[exp])
	}
	return fmt.Sprintf("%d B", bytes)
}
