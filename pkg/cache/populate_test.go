package cache

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/glorpus-work/qpkg/pkg/archive"
	"github.com/glorpus-work/qpkg/pkg/download"
	qhttp "github.com/glorpus-work/qpkg/pkg/http"
	"github.com/glorpus-work/qpkg/pkg/model"
	"github.com/glorpus-work/qpkg/test/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sourceZip builds a hosted-style source archive: everything below a single
// top-level directory, optionally nested further in subFolder.
func sourceZip(t *testing.T, manifest model.Manifest, top, subFolder string) []byte {
	t.Helper()
	data, err := json.Marshal(manifest)
	require.NoError(t, err)

	prefix := top + "/"
	if subFolder != "" {
		prefix += subFolder + "/"
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, dir := range []string{top + "/", prefix, prefix + "shared/"} {
		_, err := zw.Create(dir)
		require.NoError(t, err)
	}
	files := map[string]string{
		prefix + model.ManifestFile:  string(data),
		prefix + "shared/header.hpp": "#pragma once\n",
		top + "/README.md":           "readme",
	}
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

type fileServer struct {
	*httptest.Server
	mu    sync.Mutex
	files map[string][]byte
	hits  map[string]int
}

func newFileServer(t *testing.T) *fileServer {
	t.Helper()
	fs := &fileServer{files: map[string][]byte{}, hits: map[string]int{}}
	fs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fs.mu.Lock()
		defer fs.mu.Unlock()
		fs.hits[r.URL.Path]++
		body, ok := fs.files[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write(body)
	}))
	t.Cleanup(fs.Close)
	return fs
}

func (fs *fileServer) serve(path string, body []byte) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.files[path] = body
}

func (fs *fileServer) hitCount(path string) int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.hits[path]
}

func populateDeps() (download.Manager, Extractor) {
	return download.NewManager(qhttp.NewHTTPClient(5 * time.Second)), archive.NewManager()
}

func TestArchiveURL(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		branch   string
		expected string
		wantErr  error
	}{
		{
			name:     "tag archive of a repository",
			url:      "https://github.com/owner/libx",
			expected: "https://github.com/owner/libx/archive/refs/tags/v1.2.0.zip",
		},
		{
			name:     "git suffix and trailing slash are dropped",
			url:      "https://github.com/owner/libx.git/",
			expected: "https://github.com/owner/libx/archive/refs/tags/v1.2.0.zip",
		},
		{
			name:     "branch archive",
			url:      "https://github.com/owner/libx",
			branch:   "dev",
			expected: "https://github.com/owner/libx/archive/refs/heads/dev.zip",
		},
		{
			name:     "direct archive link",
			url:      "https://example.com/libx-1.2.0.tar.gz",
			branch:   "dev",
			expected: "https://example.com/libx-1.2.0.tar.gz",
		},
		{
			name:    "no url",
			wantErr: ErrNoSourceURL,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pkg := testutil.Package("libx", "1.2.0")
			pkg.Config.Info.URL = tt.url
			pkg.Config.Info.AdditionalData.BranchName = tt.branch

			got, err := ArchiveURL(pkg)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestPopulate_DownloadsExtractsAndVerifies(t *testing.T) {
	srv := newFileServer(t)
	pkg := testutil.Package("libx", "1.0.0")
	pkg.Config.Info.URL = srv.URL + "/owner/libx"
	pkg.Config.Info.AdditionalData.SoLink = srv.URL + "/bin/libx.so"
	pkg.Config.Info.AdditionalData.DebugSoLink = srv.URL + "/bin/libx.debug.so"

	srv.serve("/owner/libx/archive/refs/tags/v1.0.0.zip", sourceZip(t, pkg.Config, "libx-1.0.0", ""))
	srv.serve("/bin/libx.so", []byte("release"))
	srv.serve("/bin/libx.debug.so", []byte("debug"))

	repo := newRepo(t)
	dl, ex := populateDeps()
	require.NoError(t, repo.Populate(context.Background(), []*model.ResolvedPackage{pkg}, dl, ex))

	v := pkg.Version()
	assert.FileExists(t, filepath.Join(repo.SourcePath("libx", v), model.ManifestFile))
	assert.FileExists(t, filepath.Join(repo.SourcePath("libx", v), "shared", "header.hpp"))
	assert.NoDirExists(t, repo.TmpPath("libx", v))

	release, err := os.ReadFile(filepath.Join(repo.LibPath("libx", v), pkg.Config.SoName()))
	require.NoError(t, err)
	assert.Equal(t, "release", string(release))
	debug, err := os.ReadFile(filepath.Join(repo.LibPath("libx", v), pkg.Config.DebugSoName()))
	require.NoError(t, err)
	assert.Equal(t, "debug", string(debug))

	// Populated packages are not indexed.
	versions, err := repo.ListVersions(context.Background(), "libx")
	require.NoError(t, err)
	assert.Nil(t, versions)
}

func TestPopulate_SkipsCompleteEntries(t *testing.T) {
	srv := newFileServer(t)
	pkg := testutil.Package("libx", "1.0.0")
	pkg.Config.Info.URL = srv.URL + "/libx.zip"
	srv.serve("/libx.zip", sourceZip(t, pkg.Config, "libx", ""))

	repo := newRepo(t)
	dl, ex := populateDeps()
	pkgs := []*model.ResolvedPackage{pkg}
	require.NoError(t, repo.Populate(context.Background(), pkgs, dl, ex))
	require.NoError(t, repo.Populate(context.Background(), pkgs, dl, ex))
	assert.Equal(t, 1, srv.hitCount("/libx.zip"))

	// A leftover staging directory marks the entry as incomplete.
	require.NoError(t, os.MkdirAll(repo.TmpPath("libx", pkg.Version()), 0o755))
	require.NoError(t, repo.Populate(context.Background(), pkgs, dl, ex))
	assert.Equal(t, 2, srv.hitCount("/libx.zip"))
	assert.NoDirExists(t, repo.TmpPath("libx", pkg.Version()))
}

func TestPopulate_HeadersOnlySkipsBinaries(t *testing.T) {
	srv := newFileServer(t)
	pkg := testutil.Package("libh", "0.3.0")
	pkg.Config.Info.URL = srv.URL + "/libh.zip"
	pkg.Config.Info.AdditionalData.HeadersOnly = true
	pkg.Config.Info.AdditionalData.SoLink = srv.URL + "/bin/libh.so"
	srv.serve("/libh.zip", sourceZip(t, pkg.Config, "libh", ""))

	repo := newRepo(t)
	dl, ex := populateDeps()
	require.NoError(t, repo.Populate(context.Background(), []*model.ResolvedPackage{pkg}, dl, ex))

	assert.Equal(t, 0, srv.hitCount("/bin/libh.so"))
	assert.NoDirExists(t, repo.LibPath("libh", pkg.Version()))
}

func TestPopulate_SubFolder(t *testing.T) {
	srv := newFileServer(t)
	pkg := testutil.Package("libs", "2.0.0")
	pkg.Config.Info.URL = srv.URL + "/mono.zip"
	pkg.Config.Info.AdditionalData.SubFolder = "packages/libs"
	srv.serve("/mono.zip", sourceZip(t, pkg.Config, "mono-main", "packages/libs"))

	repo := newRepo(t)
	dl, ex := populateDeps()
	require.NoError(t, repo.Populate(context.Background(), []*model.ResolvedPackage{pkg}, dl, ex))

	src := repo.SourcePath("libs", pkg.Version())
	assert.FileExists(t, filepath.Join(src, model.ManifestFile))
	assert.NoFileExists(t, filepath.Join(src, "README.md"))
}

func TestPopulate_VersionMismatch(t *testing.T) {
	srv := newFileServer(t)
	pkg := testutil.Package("libx", "1.0.0")
	pkg.Config.Info.URL = srv.URL + "/libx.zip"
	other := testutil.Package("libx", "1.0.1")
	srv.serve("/libx.zip", sourceZip(t, other.Config, "libx", ""))

	repo := newRepo(t)
	dl, ex := populateDeps()
	err := repo.Populate(context.Background(), []*model.ResolvedPackage{pkg}, dl, ex)
	assert.ErrorIs(t, err, ErrVersionMismatch)
	assert.NoDirExists(t, repo.SourcePath("libx", pkg.Version()))
}

func TestPopulate_RefetchesEntryOfWrongVersion(t *testing.T) {
	srv := newFileServer(t)
	pkg := testutil.Package("libx", "2.0.0")
	pkg.Config.Info.URL = srv.URL + "/libx.zip"
	srv.serve("/libx.zip", sourceZip(t, pkg.Config, "libx", ""))

	repo := newRepo(t)
	src := repo.SourcePath("libx", pkg.Version())
	stale := testutil.Package("libx", "1.0.0")
	require.NoError(t, os.MkdirAll(src, 0o755))
	require.NoError(t, model.WriteManifest(filepath.Join(src, model.ManifestFile), &stale.Config))

	complete, err := repo.isComplete(pkg)
	require.NoError(t, err)
	assert.False(t, complete)

	dl, ex := populateDeps()
	require.NoError(t, repo.Populate(context.Background(), []*model.ResolvedPackage{pkg}, dl, ex))
	assert.Equal(t, 1, srv.hitCount("/libx.zip"))

	m, err := model.ReadManifest(filepath.Join(src, model.ManifestFile))
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", m.Info.Version.String())
}

func TestPopulate_DownloadFailure(t *testing.T) {
	srv := newFileServer(t)
	pkg := testutil.Package("libx", "1.0.0")
	pkg.Config.Info.URL = srv.URL + "/missing.zip"

	repo := newRepo(t)
	dl, ex := populateDeps()
	err := repo.Populate(context.Background(), []*model.ResolvedPackage{pkg}, dl, ex)
	require.Error(t, err)
	assert.NoDirExists(t, repo.SourcePath("libx", pkg.Version()))
}

func TestPopulate_NoSourceURL(t *testing.T) {
	repo := newRepo(t)
	dl, ex := populateDeps()
	err := repo.Populate(context.Background(), []*model.ResolvedPackage{testutil.Package("libx", "1.0.0")}, dl, ex)
	assert.ErrorIs(t, err, ErrNoSourceURL)
}
