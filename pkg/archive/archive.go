// Package archive unpacks package source archives into the cache.
package archive

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	pkgerrors "github.com/glorpus-work/qpkg/pkg/errors"
	"github.com/glorpus-work/qpkg/pkg/fsutil"
	"github.com/mholt/archives"
)

// Extensions lists the file suffixes recognized as source archives.
var Extensions = []string{".zip", ".tar.gz", ".tgz", ".tar.xz", ".tar.bz2", ".tar.zst", ".tar"}

// HasArchiveExtension reports whether name ends in a known archive suffix.
func HasArchiveExtension(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range Extensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// Manager handles archive extraction.
type Manager struct{}

// NewManager creates a new Manager instance.
func NewManager() *Manager {
	return &Manager{}
}

// ExtractAll extracts every entry of archivePath below destDir. The format is
// detected from the file contents. Entries that would land outside destDir are
// rejected.
func (am *Manager) ExtractAll(ctx context.Context, archivePath, destDir string) error {
	fsys, err := archives.FileSystem(ctx, archivePath, nil)
	if err != nil {
		return fmt.Errorf("%w: open %s: %w", pkgerrors.ErrArchiveExtract, archivePath, err)
	}
	if closer, ok := fsys.(io.Closer); ok {
		defer func() { _ = closer.Close() }()
	}

	if err := fsutil.EnsureDir(destDir); err != nil {
		return pkgerrors.Wrap(err, "failed to create destination directory")
	}

	err = fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return am.extractEntry(fsys, path, destDir, d)
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %w", pkgerrors.ErrArchiveExtract, archivePath, err)
	}
	return nil
}

// SourceRoot picks the directory inside an extracted tree that holds the
// package sources. A non-empty subFolder wins. Otherwise, when the tree has a
// single top-level directory and nothing else (the usual layout of hosted
// archives), that directory is used.
func SourceRoot(extracted, subFolder string) (string, error) {
	if subFolder != "" {
		root, err := safeJoin(extracted, filepath.FromSlash(subFolder))
		if err != nil {
			return "", err
		}
		st, err := os.Stat(root)
		if err != nil || !st.IsDir() {
			return "", fmt.Errorf("%w: sub folder %q not found in archive", pkgerrors.ErrArchiveExtract, subFolder)
		}
		return root, nil
	}

	entries, err := os.ReadDir(extracted)
	if err != nil {
		return "", pkgerrors.Wrap(err, "failed to read extracted directory")
	}
	if len(entries) == 1 && entries[0].IsDir() {
		return filepath.Join(extracted, entries[0].Name()), nil
	}
	return extracted, nil
}

func (am *Manager) extractEntry(fsys fs.FS, path, destDir string, d fs.DirEntry) error {
	if path == "." {
		return nil
	}

	targetPath, err := safeJoin(destDir, filepath.FromSlash(path))
	if err != nil {
		return err
	}

	if d.IsDir() {
		return fsutil.EnsureDir(targetPath)
	}

	info, err := d.Info()
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to get file info for %s", path)
	}

	if info.Mode()&os.ModeSymlink != 0 {
		return am.writeSymlink(fsys, path, targetPath, destDir)
	}
	return am.writeRegularFile(fsys, path, targetPath, info)
}

// writeSymlink recreates a symlink entry. Targets escaping destDir are refused.
func (am *Manager) writeSymlink(fsys fs.FS, path, targetPath, destDir string) error {
	link, err := fsys.Open(path)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to read symlink %s", path)
	}
	defer func() { _ = link.Close() }()

	targetBytes, err := io.ReadAll(link)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to read symlink target %s", path)
	}
	target := string(targetBytes)
	if filepath.IsAbs(target) {
		return fmt.Errorf("%w: absolute symlink %s -> %s", pkgerrors.ErrInvalidPath, path, target)
	}
	if _, err := safeJoin(destDir, filepath.Join(filepath.Dir(filepath.FromSlash(path)), target)); err != nil {
		return err
	}

	if err := fsutil.EnsureFileDir(targetPath); err != nil {
		return err
	}
	_ = os.Remove(targetPath)
	return os.Symlink(target, targetPath)
}

func (am *Manager) writeRegularFile(fsys fs.FS, path, targetPath string, info fs.FileInfo) error {
	src, err := fsys.Open(path)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to open source file %s", path)
	}
	defer func() { _ = src.Close() }()

	if err := fsutil.EnsureFileDir(targetPath); err != nil {
		return err
	}

	perm := info.Mode().Perm()
	if perm == 0 {
		perm = fsutil.FileModeDefault
	}
	dst, err := fsutil.CreateFilePerm(targetPath, perm)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to create destination file %s", targetPath)
	}
	defer func() { _ = dst.Close() }()

	if _, err := io.Copy(dst, src); err != nil {
		return pkgerrors.Wrapf(err, "failed to copy file %s", path)
	}
	if err := os.Chtimes(targetPath, info.ModTime(), info.ModTime()); err != nil {
		return pkgerrors.Wrapf(err, "failed to set modification time for %s", targetPath)
	}
	return nil
}

// safeJoin joins rel onto base and fails when the result is outside base.
func safeJoin(base, rel string) (string, error) {
	joined := filepath.Join(base, rel)
	r, err := filepath.Rel(base, joined)
	if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: %s escapes %s", pkgerrors.ErrInvalidPath, rel, base)
	}
	return joined, nil
}
