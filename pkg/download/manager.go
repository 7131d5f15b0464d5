// Package download fetches package archives and binaries over HTTP into the
// cache, optionally verifying a SHA-256 checksum.
package download

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/glorpus-work/qpkg/internal/logger"
	pkgerrors "github.com/glorpus-work/qpkg/pkg/errors"
	"github.com/glorpus-work/qpkg/pkg/fsutil"
	qhttp "github.com/glorpus-work/qpkg/pkg/http"
	"golang.org/x/sync/errgroup"
)

// ManagerImpl downloads through a qhttp.Client. Items that share a URL are
// fetched once.
type ManagerImpl struct {
	client qhttp.Client
}

// NewManager creates a download manager on top of client.
func NewManager(client qhttp.Client) *ManagerImpl {
	return &ManagerImpl{client: client}
}

// FetchAll downloads multiple items concurrently and returns a map of item IDs
// to downloaded file paths. The first failure cancels the remaining downloads.
func (m *ManagerImpl) FetchAll(ctx context.Context, items []Item, opts Options) (map[string]string, error) {
	if opts.Concurrency <= 0 {
		opts.Concurrency = max(2, runtime.NumCPU()/2)
	}
	if err := prepareDir(opts.Dir); err != nil {
		return nil, err
	}

	byURL, order, err := buildURLIndex(items)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	results := make(map[string]string, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for _, key := range order {
		idx := byURL[key]
		g.Go(func() error {
			path, err := m.fetchOne(gctx, items[idx[0]], opts)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			for _, i := range idx {
				results[items[i].ID] = path
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// buildURLIndex groups item indexes by URL, keeping the first-seen URL order.
func buildURLIndex(items []Item) (map[string][]int, []string, error) {
	byURL := make(map[string][]int)
	var order []string
	for i, it := range items {
		if it.URL == nil {
			return nil, nil, fmt.Errorf("item %d has nil URL: %w", i, pkgerrors.ErrDownloadFailed)
		}
		key := it.URL.String()
		if _, seen := byURL[key]; !seen {
			order = append(order, key)
		}
		byURL[key] = append(byURL[key], i)
	}
	return byURL, order, nil
}

// Fetch downloads a single item and returns the path to the downloaded file.
func (m *ManagerImpl) Fetch(ctx context.Context, item Item, opts Options) (string, error) {
	if err := prepareDir(opts.Dir); err != nil {
		return "", err
	}
	return m.fetchOne(ctx, item, opts)
}

func prepareDir(dir string) error {
	if dir == "" || !filepath.IsAbs(dir) {
		return fmt.Errorf("download dir must be absolute: %s: %w", dir, pkgerrors.ErrInvalidPath)
	}
	if err := os.MkdirAll(dir, fsutil.DirModeDefault); err != nil {
		return pkgerrors.Wrap(err, "could not create download dir")
	}
	return nil
}

func (m *ManagerImpl) fetchOne(ctx context.Context, item Item, opts Options) (string, error) {
	if item.URL == nil {
		return "", fmt.Errorf("nil URL: %w", pkgerrors.ErrDownloadFailed)
	}
	absPath := filepath.Join(opts.Dir, selectFilename(item))
	if reuse, ok := tryReuseExisting(absPath, item.Checksum); ok {
		logger.Debug("Reusing downloaded file", logger.Fields{"id": item.ID, "path": reuse})
		return reuse, nil
	}

	logger.Debug("Downloading", logger.Fields{"id": item.ID, "url": item.URL.String()})
	tmpPath, err := m.downloadToTemp(ctx, item, absPath)
	if err != nil {
		return "", err
	}
	defer func() { _ = os.Remove(tmpPath) }()

	if item.Checksum != "" {
		ok, err := verifySHA256(tmpPath, item.Checksum)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", fmt.Errorf("checksum mismatch for %s: %w", item.URL, pkgerrors.ErrFileHashMismatch)
		}
	}
	if err := fsutil.Move(tmpPath, absPath); err != nil {
		return "", pkgerrors.Wrap(err, "could not finalize file")
	}
	return absPath, nil
}

// selectFilename picks the item's path below the download dir: the explicit
// Filename, else the checksum, else the last URL segment prefixed with a
// short hash of the full URL.
func selectFilename(item Item) string {
	if item.Filename != "" {
		return filepath.FromSlash(item.Filename)
	}
	if item.Checksum != "" {
		return normalizeHex(item.Checksum)
	}
	h := sha256.Sum256([]byte(item.URL.String()))
	prefix := hex.EncodeToString(h[:8])
	base := filepath.Base(item.URL.Path)
	if base == "." || base == "/" || base == "" {
		return prefix
	}
	return prefix + "-" + base
}

func tryReuseExisting(absPath, checksum string) (string, bool) {
	st, err := os.Stat(absPath)
	if err != nil || st.Size() == 0 || checksum == "" {
		return "", false
	}
	ok, err := verifySHA256(absPath, checksum)
	if err == nil && ok {
		return absPath, true
	}
	return "", false
}

func (m *ManagerImpl) downloadToTemp(ctx context.Context, item Item, absPath string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(absPath), fsutil.DirModeDefault); err != nil {
		return "", pkgerrors.Wrap(err, "could not create download dir")
	}
	tmp, err := os.CreateTemp(filepath.Dir(absPath), "dl-*.tmp")
	if err != nil {
		return "", pkgerrors.Wrap(err, "could not create temp file")
	}
	tmpPath := tmp.Name()

	if err := m.client.Download(ctx, item.URL.String(), tmp); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("%w: %w", pkgerrors.ErrDownloadFailed, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return "", pkgerrors.Wrap(err, "could not sync file")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", pkgerrors.Wrap(err, "could not close file")
	}
	return tmpPath, nil
}

func verifySHA256(path string, wantHex string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, pkgerrors.Wrap(err, "open for checksum")
	}
	defer func() { _ = f.Close() }()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return false, pkgerrors.Wrap(err, "hashing")
	}
	got := hex.EncodeToString(h.Sum(nil))
	return got == normalizeHex(wantHex), nil
}

func normalizeHex(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
