package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnsureDir creates a directory and all necessary parents with DirModeDefault.
func EnsureDir(path string) error {
	return os.MkdirAll(path, DirModeDefault)
}

// EnsureFileDir creates the parent directory of a file path if it doesn't exist.
func EnsureFileDir(filePath string) error {
	return EnsureDir(filepath.Dir(filePath))
}

// RemoveIfExists removes path and everything below it. A missing path is not an error.
func RemoveIfExists(path string) error {
	exists, err := Exists(path)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if !exists {
		return nil
	}
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	return nil
}
