package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/glorpus-work/qpkg/internal/logger"
	"github.com/glorpus-work/qpkg/pkg/fsutil"
	"github.com/glorpus-work/qpkg/pkg/model"
	"github.com/glorpus-work/qpkg/pkg/semver"
)

// index is the on-disk shape of the cache index: id -> version -> package.
type index struct {
	Artifacts map[string]map[string]*model.ResolvedPackage `json:"artifacts"`
}

// FileRepository is the local artifact cache. It serves the packages recorded
// in its index and installs new ones below root. Reads only consult the
// in-memory index, which Load fills.
type FileRepository struct {
	root      string
	indexPath string

	// Concurrency limits parallel downloads in Populate; <=0 picks a default.
	Concurrency int

	mu        sync.RWMutex
	artifacts map[string]map[string]*model.ResolvedPackage
}

// NewFileRepository creates a cache rooted at root whose index lives at
// indexPath. Call Load before serving reads.
func NewFileRepository(root, indexPath string) *FileRepository {
	return &FileRepository{
		root:      root,
		indexPath: indexPath,
		artifacts: map[string]map[string]*model.ResolvedPackage{},
	}
}

// Load reads the index file. A missing file is an empty index.
func (r *FileRepository) Load() error {
	data, err := os.ReadFile(r.indexPath)
	if os.IsNotExist(err) {
		logger.Debug("No cache index yet", logger.Fields{"path": r.indexPath})
		return nil
	}
	if err != nil {
		return Wrapf(err, "failed to read index %s", r.indexPath)
	}

	var idx index
	if err := json.Unmarshal(data, &idx); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrIndexCorrupt, r.indexPath, err)
	}
	if idx.Artifacts == nil {
		idx.Artifacts = map[string]map[string]*model.ResolvedPackage{}
	}

	r.mu.Lock()
	r.artifacts = idx.Artifacts
	r.mu.Unlock()
	return nil
}

// Root returns the cache root directory.
func (r *FileRepository) Root() string { return r.root }

// IndexPath returns the location of the index file.
func (r *FileRepository) IndexPath() string { return r.indexPath }

// Path returns the cache entry directory of id at v.
func (r *FileRepository) Path(id string, v semver.Version) string {
	return filepath.Join(r.root, id, v.String())
}

// SourcePath returns the directory holding the package sources.
func (r *FileRepository) SourcePath(id string, v semver.Version) string {
	return filepath.Join(r.Path(id, v), SrcDir)
}

// LibPath returns the directory holding the package binaries.
func (r *FileRepository) LibPath(id string, v semver.Version) string {
	return filepath.Join(r.Path(id, v), LibDir)
}

// TmpPath returns the staging directory used while installing or populating.
func (r *FileRepository) TmpPath(id string, v semver.Version) string {
	return filepath.Join(r.Path(id, v), TmpDir)
}

// ListVersions implements repository.Repository. Versions come back ascending.
func (r *FileRepository) ListVersions(_ context.Context, id string) ([]semver.Version, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byVersion := r.artifacts[id]
	if len(byVersion) == 0 {
		return nil, nil
	}
	out := make([]semver.Version, 0, len(byVersion))
	for _, p := range byVersion {
		out = append(out, p.Version())
	}
	semver.Sort(out)
	return out, nil
}

// Fetch implements repository.Repository.
func (r *FileRepository) Fetch(_ context.Context, id string, v semver.Version) (*model.ResolvedPackage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.artifacts[id][v.String()], nil
}

// Install copies a locally built package into the cache and records it in
// the index. The sources are the project's shared dir and manifest; the
// binaries are optional and skipped with a warning when missing. Everything is
// staged in tmp and only replaces the previous src and lib once the staged
// manifest carries the expected version. On failure no staged or partially
// swapped files are left behind. The index is only written once every copy
// succeeded.
func (r *FileRepository) Install(ctx context.Context, pkg *model.ResolvedPackage, projectDir, binary, debugBinary string) (err error) {
	id, version := pkg.ID(), pkg.Version()
	if id == "" {
		return fmt.Errorf("%w: package id is empty", ErrCacheDirectory)
	}

	tmp := r.TmpPath(id, version)
	if err := fsutil.RemoveIfExists(tmp); err != nil {
		return Wrapf(err, "failed to clear %s", tmp)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	swapping := false
	defer func() {
		if err == nil {
			return
		}
		dirs := []string{tmp}
		if swapping {
			dirs = append(dirs, r.SourcePath(id, version), r.LibPath(id, version))
		}
		for _, dir := range dirs {
			if rmErr := fsutil.RemoveIfExists(dir); rmErr != nil {
				logger.Warn("Failed to clean up cache entry", logger.Fields{"path": dir, "error": rmErr.Error()})
			}
		}
	}()

	stagedSrc := filepath.Join(tmp, SrcDir)
	stagedLib := filepath.Join(tmp, LibDir)

	logger.Debug("Staging sources", logger.Fields{"id": id, "version": version.String(), "dest": stagedSrc})
	if err := fsutil.EnsureDir(stagedSrc); err != nil {
		return Wrap(err, "failed to create staging directory")
	}
	if shared := pkg.Config.SharedDir; shared != "" {
		if err := fsutil.CopyPath(filepath.Join(projectDir, shared), filepath.Join(stagedSrc, shared)); err != nil {
			return Wrapf(err, "failed to copy %s", shared)
		}
	}
	if err := fsutil.CopyFile(filepath.Join(projectDir, model.ManifestFile), filepath.Join(stagedSrc, model.ManifestFile)); err != nil {
		return Wrapf(err, "failed to copy %s", model.ManifestFile)
	}
	if err := verifyManifest(stagedSrc, id, version); err != nil {
		return err
	}
	if err := copyBinaries(&pkg.Config, stagedLib, binary, debugBinary); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	swapping = true
	if err := r.clearEntry(id, version); err != nil {
		return err
	}
	if err := fsutil.Move(stagedSrc, r.SourcePath(id, version)); err != nil {
		return Wrap(err, "failed to move staged sources")
	}
	hasLib, err := fsutil.Exists(stagedLib)
	if err != nil {
		return Wrap(err, "failed to stat staged binaries")
	}
	if hasLib {
		if err := fsutil.Move(stagedLib, r.LibPath(id, version)); err != nil {
			return Wrap(err, "failed to move staged binaries")
		}
	}
	if err := fsutil.RemoveIfExists(tmp); err != nil {
		return Wrap(err, "failed to remove staging directory")
	}

	if err := r.record(pkg); err != nil {
		return err
	}
	logger.Success("Installed into cache", logger.Fields{"id": id, "version": version.String()})
	return nil
}

// clearEntry removes src and lib of a cache entry.
func (r *FileRepository) clearEntry(id string, v semver.Version) error {
	for _, dir := range []string{r.SourcePath(id, v), r.LibPath(id, v)} {
		if err := fsutil.RemoveIfExists(dir); err != nil {
			return Wrapf(err, "failed to clear %s", dir)
		}
	}
	return nil
}

// verifyManifest reads the manifest in dir and checks it is id at v.
func verifyManifest(dir, id string, v semver.Version) error {
	m, err := model.ReadManifest(filepath.Join(dir, model.ManifestFile))
	if err != nil {
		return Wrapf(err, "failed to read cached manifest of %s", id)
	}
	if !m.Info.Version.Equal(v) {
		return fmt.Errorf("%w: %s: expected %s, found %s", ErrVersionMismatch, id, v, m.Info.Version)
	}
	return nil
}

func copyBinaries(m *model.Manifest, lib, binary, debugBinary string) error {
	pairs := []struct{ from, to string }{
		{binary, filepath.Join(lib, m.SoName())},
		{debugBinary, filepath.Join(lib, m.DebugSoName())},
	}
	for _, p := range pairs {
		if p.from == "" {
			continue
		}
		ok, err := fsutil.Exists(p.from)
		if err != nil {
			return Wrapf(err, "failed to stat %s", p.from)
		}
		if !ok {
			logger.Warn("Could not find binary, skipping", logger.Fields{"path": p.from})
			continue
		}
		if err := fsutil.EnsureDir(lib); err != nil {
			return Wrap(err, "failed to create lib directory")
		}
		if err := fsutil.CopyFile(p.from, p.to); err != nil {
			return Wrapf(err, "failed to copy binary %s", p.from)
		}
	}
	return nil
}

// record adds pkg to the index, writing the file before updating memory.
func (r *FileRepository) record(pkg *model.ResolvedPackage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := make(map[string]map[string]*model.ResolvedPackage, len(r.artifacts)+1)
	for id, versions := range r.artifacts {
		next[id] = versions
	}
	versions := make(map[string]*model.ResolvedPackage, len(next[pkg.ID()])+1)
	for k, p := range next[pkg.ID()] {
		versions[k] = p
	}
	versions[pkg.Version().String()] = pkg
	next[pkg.ID()] = versions

	data, err := json.MarshalIndent(index{Artifacts: next}, "", "  ")
	if err != nil {
		return Wrap(err, "failed to encode index")
	}
	if err := fsutil.EnsureFileDir(r.indexPath); err != nil {
		return Wrap(err, "failed to create index directory")
	}
	if err := fsutil.WriteFileAtomic(r.indexPath, data, fsutil.FileModeDefault); err != nil {
		return Wrapf(err, "failed to write index %s", r.indexPath)
	}
	r.artifacts = next
	return nil
}
