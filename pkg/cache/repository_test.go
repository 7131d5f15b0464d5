package cache

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/glorpus-work/qpkg/internal/logger"
	"github.com/glorpus-work/qpkg/pkg/model"
	"github.com/glorpus-work/qpkg/pkg/semver"
	"github.com/glorpus-work/qpkg/test/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeProject lays out a buildable project for pkg below dir: its manifest,
// one header in the shared dir and optionally the release binary.
func writeProject(t *testing.T, dir string, pkg *model.ResolvedPackage, withBinary bool) string {
	t.Helper()
	require.NoError(t, model.WriteManifest(filepath.Join(dir, model.ManifestFile), &pkg.Config))
	header := filepath.Join(dir, pkg.Config.SharedDir, pkg.ID()+".hpp")
	require.NoError(t, os.MkdirAll(filepath.Dir(header), 0o755))
	require.NoError(t, os.WriteFile(header, []byte("#pragma once\n"), 0o644))

	binary := filepath.Join(dir, "build", pkg.Config.SoName())
	if withBinary {
		require.NoError(t, os.MkdirAll(filepath.Dir(binary), 0o755))
		require.NoError(t, os.WriteFile(binary, []byte("ELF"), 0o755))
	}
	return binary
}

func newRepo(t *testing.T) *FileRepository {
	t.Helper()
	base := t.TempDir()
	return NewFileRepository(filepath.Join(base, "cache"), filepath.Join(base, "data", IndexFile))
}

func TestFileRepository_InstallThenFetch(t *testing.T) {
	repo := newRepo(t)
	project := t.TempDir()
	pkg := testutil.Package("libx", "1.2.0", testutil.Dep("liby", "^1.0.0"))
	binary := writeProject(t, project, pkg, true)

	require.NoError(t, repo.Install(context.Background(), pkg, project, binary, ""))

	versions, err := repo.ListVersions(context.Background(), "libx")
	require.NoError(t, err)
	assert.Equal(t, []semver.Version{semver.MustParse("1.2.0")}, versions)

	got, err := repo.Fetch(context.Background(), "libx", semver.MustParse("1.2.0"))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "liby", got.Config.Dependencies[0].ID)

	v := semver.MustParse("1.2.0")
	assert.FileExists(t, filepath.Join(repo.SourcePath("libx", v), model.ManifestFile))
	assert.FileExists(t, filepath.Join(repo.SourcePath("libx", v), "shared", "libx.hpp"))
	assert.FileExists(t, filepath.Join(repo.LibPath("libx", v), "liblibx_1_2_0.so"))

	// A fresh repository sees the persisted index.
	reloaded := NewFileRepository(repo.Root(), repo.IndexPath())
	require.NoError(t, reloaded.Load())
	got, err = reloaded.Fetch(context.Background(), "libx", v)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "libx", got.ID())
}

func TestFileRepository_UnknownPackage(t *testing.T) {
	repo := newRepo(t)
	require.NoError(t, repo.Load())

	versions, err := repo.ListVersions(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, versions)

	got, err := repo.Fetch(context.Background(), "ghost", semver.MustParse("1.0.0"))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFileRepository_ReinstallLeavesNoResidue(t *testing.T) {
	repo := newRepo(t)
	project := t.TempDir()
	pkg := testutil.Package("libx", "1.0.0")
	writeProject(t, project, pkg, false)
	v := pkg.Version()

	require.NoError(t, repo.Install(context.Background(), pkg, project, "", ""))

	stale := filepath.Join(repo.SourcePath("libx", v), "shared", "removed.hpp")
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o644))
	require.NoError(t, os.MkdirAll(repo.TmpPath("libx", v), 0o755))

	require.NoError(t, repo.Install(context.Background(), pkg, project, "", ""))
	assert.NoFileExists(t, stale)
	assert.NoDirExists(t, repo.TmpPath("libx", v))
}

func TestFileRepository_VersionMismatchLeavesIndexUntouched(t *testing.T) {
	repo := newRepo(t)
	project := t.TempDir()
	onDisk := testutil.Package("libx", "1.0.0")
	writeProject(t, project, onDisk, false)

	claimed := testutil.Package("libx", "2.0.0")
	err := repo.Install(context.Background(), claimed, project, "", "")
	require.ErrorIs(t, err, ErrVersionMismatch)

	versions, err := repo.ListVersions(context.Background(), "libx")
	require.NoError(t, err)
	assert.Nil(t, versions)
	assert.NoFileExists(t, repo.IndexPath())
}

func TestFileRepository_MissingBinaryIsSkipped(t *testing.T) {
	var buf bytes.Buffer
	logger.SetTestOutput(&buf)
	logger.InitLogger("info")
	defer func() {
		logger.UnsetTestOutput()
		logger.InitLogger("info")
	}()

	repo := newRepo(t)
	project := t.TempDir()
	pkg := testutil.Package("libx", "1.0.0")
	writeProject(t, project, pkg, false)

	missing := filepath.Join(project, "build", "nothing.so")
	require.NoError(t, repo.Install(context.Background(), pkg, project, missing, missing))

	assert.NoDirExists(t, repo.LibPath("libx", pkg.Version()))
	assert.Contains(t, buf.String(), "Could not find binary")

	got, err := repo.Fetch(context.Background(), "libx", pkg.Version())
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestFileRepository_InstallKeepsOtherEntries(t *testing.T) {
	repo := newRepo(t)
	for _, version := range []string{"1.0.0", "1.1.0"} {
		project := t.TempDir()
		pkg := testutil.Package("libx", version)
		writeProject(t, project, pkg, false)
		require.NoError(t, repo.Install(context.Background(), pkg, project, "", ""))
	}

	versions, err := repo.ListVersions(context.Background(), "libx")
	require.NoError(t, err)
	assert.Equal(t, []semver.Version{semver.MustParse("1.0.0"), semver.MustParse("1.1.0")}, versions)
}

func TestFileRepository_Load(t *testing.T) {
	t.Run("missing index is empty", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Load())
	})

	t.Run("malformed index", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, os.MkdirAll(filepath.Dir(repo.IndexPath()), 0o755))
		require.NoError(t, os.WriteFile(repo.IndexPath(), []byte("{not json"), 0o644))
		assert.ErrorIs(t, repo.Load(), ErrIndexCorrupt)
	})

	t.Run("index without artifacts", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, os.MkdirAll(filepath.Dir(repo.IndexPath()), 0o755))
		require.NoError(t, os.WriteFile(repo.IndexPath(), []byte("{}"), 0o644))
		require.NoError(t, repo.Load())

		versions, err := repo.ListVersions(context.Background(), "libx")
		require.NoError(t, err)
		assert.Nil(t, versions)
	})
}

func TestFileRepository_InstallCancelled(t *testing.T) {
	repo := newRepo(t)
	project := t.TempDir()
	pkg := testutil.Package("libx", "1.0.0")
	writeProject(t, project, pkg, false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, repo.Install(ctx, pkg, project, "", ""), context.Canceled)
	assert.NoFileExists(t, repo.IndexPath())
}

func TestFileRepository_FailedInstallLeavesNoEntry(t *testing.T) {
	repo := newRepo(t)
	project := t.TempDir()
	writeProject(t, project, testutil.Package("libx", "1.0.0"), false)

	claimed := testutil.Package("libx", "2.0.0")
	require.ErrorIs(t, repo.Install(context.Background(), claimed, project, "", ""), ErrVersionMismatch)

	v := claimed.Version()
	assert.NoDirExists(t, repo.SourcePath("libx", v))
	assert.NoDirExists(t, repo.TmpPath("libx", v))

	complete, err := repo.isComplete(claimed)
	require.NoError(t, err)
	assert.False(t, complete)
}

func TestFileRepository_FailedReinstallKeepsPreviousEntry(t *testing.T) {
	repo := newRepo(t)
	project := t.TempDir()
	pkg := testutil.Package("libx", "1.0.0")
	writeProject(t, project, pkg, false)
	require.NoError(t, repo.Install(context.Background(), pkg, project, "", ""))

	// The project moved on to another version but is installed under the old one.
	writeProject(t, project, testutil.Package("libx", "1.0.1"), false)
	require.ErrorIs(t, repo.Install(context.Background(), pkg, project, "", ""), ErrVersionMismatch)

	m, err := model.ReadManifest(filepath.Join(repo.SourcePath("libx", pkg.Version()), model.ManifestFile))
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", m.Info.Version.String())
	assert.NoDirExists(t, repo.TmpPath("libx", pkg.Version()))
}

func TestFileRepository_ReinstallDropsStaleBinaries(t *testing.T) {
	repo := newRepo(t)
	project := t.TempDir()
	pkg := testutil.Package("libx", "1.0.0")
	binary := writeProject(t, project, pkg, true)
	debug := filepath.Join(project, "build", "debug", pkg.Config.SoName())
	require.NoError(t, os.MkdirAll(filepath.Dir(debug), 0o755))
	require.NoError(t, os.WriteFile(debug, []byte("ELF debug"), 0o755))

	require.NoError(t, repo.Install(context.Background(), pkg, project, binary, debug))
	lib := repo.LibPath("libx", pkg.Version())
	require.FileExists(t, filepath.Join(lib, pkg.Config.DebugSoName()))

	require.NoError(t, os.Remove(debug))
	require.NoError(t, repo.Install(context.Background(), pkg, project, binary, debug))

	assert.FileExists(t, filepath.Join(lib, pkg.Config.SoName()))
	assert.NoFileExists(t, filepath.Join(lib, pkg.Config.DebugSoName()))
}
