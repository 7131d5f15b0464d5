package fsutil

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
)

// Move moves a file or directory from src to dst.
// It tries os.Rename first and falls back to copy + delete when src and dst
// live on different filesystems.
func Move(src, dst string) error {
	if src == "" || dst == "" {
		return fmt.Errorf("source and destination paths cannot be empty")
	}

	srcInfo, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("failed to stat source %s: %w", src, err)
	}

	if err := os.MkdirAll(filepath.Dir(dst), DirModeDefault); err != nil {
		return fmt.Errorf("failed to create destination directory %s: %w", filepath.Dir(dst), err)
	}

	err = os.Rename(src, dst)
	if err == nil {
		return nil
	}
	if !isCrossFilesystemError(err) {
		return fmt.Errorf("failed to rename %s to %s: %w", src, dst, err)
	}

	if srcInfo.IsDir() {
		if err := CopyDir(src, dst); err != nil {
			return err
		}
	} else if err := CopyFile(src, dst); err != nil {
		return err
	}

	if err := os.RemoveAll(src); err != nil {
		return fmt.Errorf("failed to remove source %s after copy: %w", src, err)
	}
	return nil
}

// isCrossFilesystemError reports whether an os.Rename failure was caused by
// src and dst being on different devices.
func isCrossFilesystemError(err error) bool {
	var linkErr *os.LinkError
	if errors.As(err, &linkErr) {
		return errors.Is(linkErr.Err, syscall.EXDEV)
	}
	return errors.Is(err, syscall.EXDEV)
}

// CopyPath copies src to dst. Directories are copied content-only, so the
// entries of src end up directly below dst; existing files are overwritten.
// Parent directories of dst are created as needed.
func CopyPath(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", src, err)
	}
	if info.IsDir() {
		return CopyDir(src, dst)
	}
	return CopyFile(src, dst)
}

// CopyDir recursively copies the contents of srcDir into dstDir, preserving
// file modes.
func CopyDir(srcDir, dstDir string) error {
	if err := os.MkdirAll(dstDir, DirModeDefault); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dstDir, err)
	}

	return filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(srcDir, path)
		if err != nil {
			return fmt.Errorf("failed to get relative path for %s: %w", path, err)
		}
		target := filepath.Join(dstDir, relPath)

		if d.IsDir() {
			if err := os.MkdirAll(target, DirModeDefault); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", target, err)
			}
			return nil
		}
		return CopyFile(path, target)
	})
}

// CopyFile copies the contents and permission bits of srcFile to dstFile.
func CopyFile(srcFile, dstFile string) error {
	src, err := os.Open(srcFile)
	if err != nil {
		return fmt.Errorf("failed to open source file %s: %w", srcFile, err)
	}
	defer func() { _ = src.Close() }()

	info, err := src.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat source file %s: %w", srcFile, err)
	}

	if err := os.MkdirAll(filepath.Dir(dstFile), DirModeDefault); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", dstFile, err)
	}

	dst, err := CreateFilePerm(dstFile, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("failed to create destination file %s: %w", dstFile, err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return fmt.Errorf("failed to copy from %s to %s: %w", srcFile, dstFile, err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", dstFile, err)
	}
	return nil
}

// CreateFilePerm creates a new file with the specified permissions.
func CreateFilePerm(name string, perm os.FileMode) (*os.File, error) {
	return os.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, perm)
}

// WriteFileAtomic writes data to a temporary file next to path and renames
// it into place, so readers only ever observe the old or the new content.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, DirModeDefault); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmpFile, err := os.CreateTemp(dir, ".qpkg-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file in %s: %w", dir, err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("failed to write to temporary file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("failed to sync temporary file to disk: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temporary file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("failed to set permissions on temporary file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temporary file to %s: %w", path, err)
	}
	return nil
}

// Exists reports whether path exists. Errors other than "not exist" are
// returned to the caller.
func Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}
