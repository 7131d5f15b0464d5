package cache

import (
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/glorpus-work/qpkg/pkg/fsutil"
)

// DefaultManager implements the Manager interface for a cache rooted at a
// directory with its index file at indexPath.
type DefaultManager struct {
	directory string
	indexPath string
}

// NewManager creates a new cache manager.
func NewManager(directory, indexPath string) *DefaultManager {
	return &DefaultManager{
		directory: directory,
		indexPath: indexPath,
	}
}

// NewDefaultManager creates a cache manager for the default cache directory
// with the index stored inside it.
func NewDefaultManager() (*DefaultManager, error) {
	cacheDir, err := fsutil.GetCacheDir()
	if err != nil {
		return nil, Wrap(err, "failed to get user cache directory")
	}
	if err := os.MkdirAll(cacheDir, CacheDirPerm); err != nil {
		return nil, Wrap(err, "failed to create cache directory")
	}
	return NewManager(cacheDir, filepath.Join(cacheDir, IndexFile)), nil
}

// Clean removes cached files according to the specified options.
func (cm *DefaultManager) Clean(options CleanOptions) (*CleanResult, error) {
	result := &CleanResult{}

	if !options.Index && !options.Staging {
		options.All = true
	}

	if options.All || options.Index {
		size, err := removeFile(cm.indexPath)
		if err != nil {
			return nil, Wrap(err, "failed to remove index")
		}
		result.IndexFreed = size
	}

	switch {
	case options.All:
		size, err := cleanDirectory(cm.directory)
		if err != nil {
			return nil, Wrap(err, "failed to clean package cache")
		}
		result.PackageFreed = size
	case options.Staging:
		size, err := cm.cleanStaging()
		if err != nil {
			return nil, Wrap(err, "failed to clean staging directories")
		}
		result.StagingFreed = size
	}

	result.TotalFreed = result.IndexFreed + result.PackageFreed + result.StagingFreed
	return result, nil
}

// GetInfo returns information about the cache.
func (cm *DefaultManager) GetInfo() (*Info, error) {
	info := &Info{
		Directory: cm.directory,
		IndexPath: cm.indexPath,
	}

	size, files, err := getDirSizeAndFiles(cm.directory)
	if err != nil {
		return nil, Wrap(err, "failed to get package cache info")
	}
	info.PackageSize = size
	info.PackageFiles = files

	entries, err := filepath.Glob(filepath.Join(cm.directory, "*", "*"))
	if err != nil {
		return nil, Wrap(err, "failed to list cache entries")
	}
	for _, e := range entries {
		if st, err := os.Stat(e); err == nil && st.IsDir() {
			info.Packages++
		}
	}

	if data, err := os.ReadFile(cm.indexPath); err == nil {
		info.IndexSize = int64(len(data))
		var idx index
		if err := json.Unmarshal(data, &idx); err != nil {
			return nil, Wrapf(ErrIndexCorrupt, "%s", cm.indexPath)
		}
		for _, versions := range idx.Artifacts {
			info.Indexed += len(versions)
		}
	} else if !os.IsNotExist(err) {
		return nil, Wrap(err, "failed to read index")
	}

	if filepath.Dir(cm.indexPath) == filepath.Clean(cm.directory) {
		info.PackageSize -= info.IndexSize
		if info.IndexSize > 0 {
			info.PackageFiles--
		}
	}
	info.TotalSize = info.IndexSize + info.PackageSize
	return info, nil
}

// GetDirectory returns the cache directory path.
func (cm *DefaultManager) GetDirectory() string {
	return cm.directory
}

// SetDirectory sets the cache directory path.
func (cm *DefaultManager) SetDirectory(dir string) error {
	if dir == "" {
		return ErrCacheDirectory
	}
	cm.directory = dir
	return nil
}

// cleanStaging removes every <id>/<version>/tmp directory.
func (cm *DefaultManager) cleanStaging() (int64, error) {
	dirs, err := filepath.Glob(filepath.Join(cm.directory, "*", "*", TmpDir))
	if err != nil {
		return 0, err
	}
	var total int64
	for _, dir := range dirs {
		size, _, err := getDirSizeAndFiles(dir)
		if err != nil {
			return total, err
		}
		if err := os.RemoveAll(dir); err != nil {
			return total, Wrapf(err, "failed to remove %s", dir)
		}
		total += size
	}
	return total, nil
}

func removeFile(path string) (int64, error) {
	st, err := os.Stat(path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if err := os.Remove(path); err != nil {
		return 0, err
	}
	return st.Size(), nil
}

// cleanDirectory empties a directory and returns bytes freed.
func cleanDirectory(dir string) (int64, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return 0, nil
	}

	totalSize, _, err := getDirSizeAndFiles(dir)
	if err != nil {
		return 0, err
	}

	if err := os.RemoveAll(dir); err != nil {
		return 0, Wrapf(err, "failed to remove directory %s", dir)
	}
	if err := os.MkdirAll(dir, CacheDirPerm); err != nil {
		return totalSize, Wrapf(err, "failed to recreate directory %s", dir)
	}
	return totalSize, nil
}

// getDirSizeAndFiles calculates directory size and file count. A missing
// directory counts as empty.
func getDirSizeAndFiles(dir string) (size int64, count int, err error) {
	if _, err = os.Stat(dir); os.IsNotExist(err) {
		return 0, 0, nil
	}

	err = filepath.WalkDir(dir, func(_ string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		size += info.Size()
		count++
		return nil
	})
	if err != nil {
		err = Wrapf(err, "error walking directory %s", dir)
	}
	return size, count, err
}
