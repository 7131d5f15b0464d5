package cache

import (
	"os"
	"path/filepath"

	"github.com/glorpus-work/qpkg/internal/logger"
	"github.com/glorpus-work/qpkg/pkg/fsutil"
	"github.com/glorpus-work/qpkg/pkg/model"
)

// Project dependency layout below a manifest's dependenciesDir.
const (
	IncludesDir = "includes"
	LibsDir     = "libs"
)

// Link exposes the cached package pkg to a project: its shared directory as
// <depsDir>/includes/<id> and, unless it is headers only, its binary as
// <depsDir>/libs/<soName>. The debug binary is preferred unless useRelease is
// set; whichever exists is used. With symlink false the files are copied.
func (r *FileRepository) Link(pkg *model.ResolvedPackage, depsDir string, useRelease, symlink bool) error {
	id, version := pkg.ID(), pkg.Version()

	shared := filepath.Join(r.SourcePath(id, version), pkg.Config.SharedDir)
	if err := place(shared, filepath.Join(depsDir, IncludesDir, id), symlink); err != nil {
		return Wrapf(err, "failed to link headers of %s", id)
	}

	if pkg.Config.Info.AdditionalData.HeadersOnly {
		return nil
	}

	candidates := []string{pkg.Config.DebugSoName(), pkg.Config.SoName()}
	if useRelease {
		candidates[0], candidates[1] = candidates[1], candidates[0]
	}
	for _, name := range candidates {
		src := filepath.Join(r.LibPath(id, version), name)
		ok, err := fsutil.Exists(src)
		if err != nil {
			return Wrap(err, "failed to stat binary")
		}
		if !ok {
			continue
		}
		if err := place(src, filepath.Join(depsDir, LibsDir, pkg.Config.SoName()), symlink); err != nil {
			return Wrapf(err, "failed to link binary of %s", id)
		}
		return nil
	}

	logger.Warn("No cached binary, skipping", logger.Fields{"id": id, "version": version.String()})
	return nil
}

func place(src, dst string, symlink bool) error {
	if err := os.RemoveAll(dst); err != nil {
		return err
	}
	if err := fsutil.EnsureFileDir(dst); err != nil {
		return err
	}
	if symlink {
		return os.Symlink(src, dst)
	}
	return fsutil.CopyPath(src, dst)
}
