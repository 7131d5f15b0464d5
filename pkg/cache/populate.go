package cache

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/glorpus-work/qpkg/internal/logger"
	"github.com/glorpus-work/qpkg/pkg/archive"
	"github.com/glorpus-work/qpkg/pkg/download"
	"github.com/glorpus-work/qpkg/pkg/fsutil"
	"github.com/glorpus-work/qpkg/pkg/model"
)

// Extractor unpacks a downloaded source archive.
type Extractor interface {
	ExtractAll(ctx context.Context, archivePath, destDir string) error
}

const extractedDir = "extracted"

// ArchiveURL returns where the sources of pkg can be downloaded. A url that
// already names an archive is used as is. Anything else is treated as a
// hosted git repository: the branch archive when branchName is set,
// otherwise the archive of the v<version> tag.
func ArchiveURL(pkg *model.ResolvedPackage) (string, error) {
	raw := strings.TrimSpace(pkg.Config.Info.URL)
	if raw == "" {
		return "", fmt.Errorf("%w: %s", ErrNoSourceURL, pkg.ID())
	}
	if archive.HasArchiveExtension(raw) {
		return raw, nil
	}
	base := strings.TrimSuffix(strings.TrimRight(raw, "/"), ".git")
	if branch := pkg.Config.Info.AdditionalData.BranchName; branch != "" {
		return fmt.Sprintf("%s/archive/refs/heads/%s.zip", base, branch), nil
	}
	return fmt.Sprintf("%s/archive/refs/tags/v%s.zip", base, pkg.Version()), nil
}

// Populate makes sure every package in pkgs has its sources, and unless it is
// headers only its binaries, in the cache. Packages with a complete src
// directory of the right version and no leftover tmp directory are skipped.
// Downloads run through dl in one batch; each archive is then extracted into
// tmp, checked against the expected version and only then moved into src. Populated packages are not added to
// the index, which only lists installed packages.
func (r *FileRepository) Populate(ctx context.Context, pkgs []*model.ResolvedPackage, dl download.Manager, ex Extractor) error {
	var (
		pending []*model.ResolvedPackage
		items   []download.Item
	)
	for _, pkg := range pkgs {
		complete, err := r.isComplete(pkg)
		if err != nil {
			return err
		}
		if complete {
			logger.Debug("Sources already cached", logger.Fields{"id": pkg.ID(), "version": pkg.Version().String()})
			continue
		}
		pkgItems, err := r.downloadItems(pkg)
		if err != nil {
			return err
		}
		pending = append(pending, pkg)
		items = append(items, pkgItems...)
	}
	if len(pending) == 0 {
		return nil
	}

	for _, pkg := range pending {
		if err := fsutil.RemoveIfExists(r.SourcePath(pkg.ID(), pkg.Version())); err != nil {
			return Wrap(err, "failed to clear stale sources")
		}
	}

	logger.Info("Downloading packages", logger.Fields{"count": len(pending)})
	paths, err := dl.FetchAll(ctx, items, download.Options{Dir: r.root, Concurrency: r.Concurrency})
	if err != nil {
		return Wrap(err, "failed to download packages")
	}

	for _, pkg := range pending {
		if err := r.unpack(ctx, pkg, paths[sourceItemID(pkg)], ex); err != nil {
			return err
		}
		logger.Success("Cached", logger.Fields{"id": pkg.ID(), "version": pkg.Version().String()})
	}
	return nil
}

// isComplete reports whether the entry of pkg has a src directory holding
// the manifest of that exact version and no leftover tmp directory.
func (r *FileRepository) isComplete(pkg *model.ResolvedPackage) (bool, error) {
	id, version := pkg.ID(), pkg.Version()
	src := r.SourcePath(id, version)
	hasSrc, err := fsutil.Exists(src)
	if err != nil {
		return false, Wrap(err, "failed to stat sources")
	}
	hasTmp, err := fsutil.Exists(r.TmpPath(id, version))
	if err != nil {
		return false, Wrap(err, "failed to stat staging directory")
	}
	if !hasSrc || hasTmp {
		return false, nil
	}
	if err := verifyManifest(src, id, version); err != nil {
		logger.Debug("Cached sources are stale", logger.Fields{"id": id, "version": version.String(), "error": err.Error()})
		return false, nil
	}
	return true, nil
}

func sourceItemID(pkg *model.ResolvedPackage) string {
	return pkg.ID() + "@" + pkg.Version().String()
}

// downloadItems lists the source archive and, for packages with binaries,
// the release and debug libraries. File names are relative to the cache root.
func (r *FileRepository) downloadItems(pkg *model.ResolvedPackage) ([]download.Item, error) {
	rawURL, err := ArchiveURL(pkg)
	if err != nil {
		return nil, err
	}
	srcURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, Wrapf(err, "invalid source url for %s", pkg.ID())
	}

	entry := path.Join(pkg.ID(), pkg.Version().String())
	name := path.Base(srcURL.Path)
	if name == "." || name == "/" {
		name = "source.zip"
	}
	items := []download.Item{{
		ID:       sourceItemID(pkg),
		URL:      srcURL,
		Filename: path.Join(entry, TmpDir, name),
	}}

	info := pkg.Config.Info.AdditionalData
	if info.HeadersOnly {
		return items, nil
	}
	binaries := []struct{ link, file, suffix string }{
		{info.SoLink, pkg.Config.SoName(), ":so"},
		{info.DebugSoLink, pkg.Config.DebugSoName(), ":debug"},
	}
	for _, b := range binaries {
		if b.link == "" {
			continue
		}
		u, err := url.Parse(b.link)
		if err != nil {
			return nil, Wrapf(err, "invalid binary url for %s", pkg.ID())
		}
		items = append(items, download.Item{
			ID:       sourceItemID(pkg) + b.suffix,
			URL:      u,
			Filename: path.Join(entry, LibDir, b.file),
		})
	}
	return items, nil
}

func (r *FileRepository) unpack(ctx context.Context, pkg *model.ResolvedPackage, archivePath string, ex Extractor) error {
	id, version := pkg.ID(), pkg.Version()
	tmp := r.TmpPath(id, version)
	extracted := filepath.Join(tmp, extractedDir)

	if err := fsutil.RemoveIfExists(extracted); err != nil {
		return Wrap(err, "failed to clear extraction directory")
	}
	if err := ex.ExtractAll(ctx, archivePath, extracted); err != nil {
		return Wrapf(err, "failed to extract %s", id)
	}
	root, err := archive.SourceRoot(extracted, pkg.Config.Info.AdditionalData.SubFolder)
	if err != nil {
		return Wrapf(err, "failed to locate sources of %s", id)
	}
	if err := verifyManifest(root, id, version); err != nil {
		return err
	}
	if err := fsutil.Move(root, r.SourcePath(id, version)); err != nil {
		return Wrapf(err, "failed to move sources of %s", id)
	}
	if err := fsutil.RemoveIfExists(tmp); err != nil {
		return Wrap(err, "failed to remove staging directory")
	}
	return nil
}
