package repository

import (
	"context"
	"net/url"
	"strings"

	"github.com/glorpus-work/qpkg/internal/logger"
	qhttp "github.com/glorpus-work/qpkg/pkg/http"
	"github.com/glorpus-work/qpkg/pkg/memo"
	"github.com/glorpus-work/qpkg/pkg/model"
	"github.com/glorpus-work/qpkg/pkg/semver"
)

// DefaultRegistryURL is the public package index.
const DefaultRegistryURL = "https://qpackages.com"

// RegistryCache memoizes registry responses by request URL for the lifetime
// of the process. It is safe for concurrent use and may be shared between
// Registry values.
type RegistryCache struct {
	Versions *memo.Cache[[]model.PackageVersion]
	Packages *memo.Cache[*model.ResolvedPackage]
}

// NewRegistryCache returns an empty cache.
func NewRegistryCache() *RegistryCache {
	return &RegistryCache{
		Versions: memo.New[[]model.PackageVersion](),
		Packages: memo.New[*model.ResolvedPackage](),
	}
}

// Registry is a Repository backed by the remote package index:
//
//	GET {base}/{id}?limit=0     -> [{id, version}]
//	GET {base}/{id}/{version}   -> ResolvedPackage
//
// A 404 means absent; any other failure is returned as an error.
type Registry struct {
	baseURL string
	client  qhttp.Client
	cache   *RegistryCache
}

// NewRegistry creates a registry client. A nil cache gets a fresh one.
func NewRegistry(baseURL string, client qhttp.Client, cache *RegistryCache) (*Registry, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, ErrRegistryURLMissing
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, Wrapf(err, "invalid registry URL %q", baseURL)
	}
	if cache == nil {
		cache = NewRegistryCache()
	}
	return &Registry{baseURL: baseURL, client: client, cache: cache}, nil
}

func (r *Registry) versionsURL(id string) string {
	return r.baseURL + "/" + url.PathEscape(id) + "?limit=0"
}

func (r *Registry) packageURL(id string, v semver.Version) string {
	return r.baseURL + "/" + url.PathEscape(id) + "/" + url.PathEscape(v.String())
}

// ListVersions implements Repository.
func (r *Registry) ListVersions(ctx context.Context, id string) ([]semver.Version, error) {
	if id == "" {
		return nil, ErrPackageIDEmpty
	}
	endpoint := r.versionsURL(id)
	listing, err := r.cache.Versions.GetOrLoad(ctx, endpoint, func(ctx context.Context) ([]model.PackageVersion, error) {
		logger.Debug("Querying registry versions", logger.Fields{"id": id, "url": endpoint})
		var out []model.PackageVersion
		found, err := r.client.GetJSON(ctx, endpoint, &out)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, nil
		}
		return out, nil
	})
	if err != nil {
		return nil, Wrapf(err, "listing versions of %s", id)
	}
	if len(listing) == 0 {
		return nil, nil
	}

	versions := make([]semver.Version, 0, len(listing))
	for _, pv := range listing {
		versions = append(versions, pv.Version)
	}
	return versions, nil
}

// Fetch implements Repository.
func (r *Registry) Fetch(ctx context.Context, id string, version semver.Version) (*model.ResolvedPackage, error) {
	if id == "" {
		return nil, ErrPackageIDEmpty
	}
	endpoint := r.packageURL(id, version)
	pkg, err := r.cache.Packages.GetOrLoad(ctx, endpoint, func(ctx context.Context) (*model.ResolvedPackage, error) {
		logger.Debug("Fetching package from registry", logger.Fields{"id": id, "version": version.String()})
		var out model.ResolvedPackage
		found, err := r.client.GetJSON(ctx, endpoint, &out)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, nil
		}
		return &out, nil
	})
	if err != nil {
		return nil, Wrapf(err, "fetching %s@%s", id, version)
	}
	return pkg, nil
}
