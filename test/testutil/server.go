// Package testutil holds helpers shared by package tests: a fake registry
// served over HTTP and an in-memory Repository.
package testutil

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/glorpus-work/qpkg/internal/logger"
	"github.com/glorpus-work/qpkg/pkg/model"
	"github.com/glorpus-work/qpkg/pkg/semver"
)

// Dep builds a dependency edge, panicking on a malformed range.
func Dep(id, requirement string) model.Dependency {
	return model.Dependency{ID: id, VersionRange: semver.MustParseRequirement(requirement)}
}

// PrivateDep builds a dependency edge marked private.
func PrivateDep(id, requirement string) model.Dependency {
	d := Dep(id, requirement)
	d.AdditionalData.Private = true
	return d
}

// Package builds a resolved package with the given direct dependencies.
func Package(id, version string, deps ...model.Dependency) *model.ResolvedPackage {
	return &model.ResolvedPackage{
		Config: model.Manifest{
			SharedDir:       "shared",
			DependenciesDir: "extern",
			Info: model.PackageInfo{
				Name:    id,
				ID:      id,
				Version: semver.MustParse(version),
			},
			Dependencies: deps,
		},
		RestoredDependencies: []model.ResolvedDependency{},
	}
}

// MemoryRepository is an in-memory Repository.
type MemoryRepository struct {
	mu       sync.Mutex
	packages map[string][]*model.ResolvedPackage
	Calls    map[string]int
}

// NewMemoryRepository returns a repository holding pkgs.
func NewMemoryRepository(pkgs ...*model.ResolvedPackage) *MemoryRepository {
	r := &MemoryRepository{packages: map[string][]*model.ResolvedPackage{}, Calls: map[string]int{}}
	for _, p := range pkgs {
		r.Add(p)
	}
	return r
}

// Add stores p, replacing an entry with the same id and version.
func (r *MemoryRepository) Add(p *model.ResolvedPackage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.packages[p.ID()]
	for i, existing := range list {
		if existing.Version().Equal(p.Version()) {
			list[i] = p
			return
		}
	}
	r.packages[p.ID()] = append(list, p)
}

// ListVersions implements repository.Repository.
func (r *MemoryRepository) ListVersions(_ context.Context, id string) ([]semver.Version, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls["versions:"+id]++
	list := r.packages[id]
	if len(list) == 0 {
		return nil, nil
	}
	out := make([]semver.Version, 0, len(list))
	for _, p := range list {
		out = append(out, p.Version())
	}
	return out, nil
}

// Fetch implements repository.Repository.
func (r *MemoryRepository) Fetch(_ context.Context, id string, v semver.Version) (*model.ResolvedPackage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls["fetch:"+id+"@"+v.String()]++
	for _, p := range r.packages[id] {
		if p.Version().Equal(v) {
			return p, nil
		}
	}
	return nil, nil
}

// RegistryServer is a fake package registry speaking the qpackages protocol.
type RegistryServer struct {
	*httptest.Server
	repo *MemoryRepository

	mu       sync.Mutex
	requests map[string]int
	// FailIDs makes every request for these ids answer 500.
	FailIDs map[string]bool
}

// NewRegistryServer starts a fake registry serving pkgs. It is closed when the test ends.
func NewRegistryServer(t *testing.T, pkgs ...*model.ResolvedPackage) *RegistryServer {
	t.Helper()
	rs := &RegistryServer{
		repo:     NewMemoryRepository(pkgs...),
		requests: map[string]int{},
		FailIDs:  map[string]bool{},
	}
	rs.Server = httptest.NewServer(http.HandlerFunc(rs.serve))
	t.Cleanup(rs.Close)
	return rs
}

// Requests returns how many times path was requested.
func (rs *RegistryServer) Requests(path string) int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.requests[path]
}

func (rs *RegistryServer) serve(w http.ResponseWriter, r *http.Request) {
	rs.mu.Lock()
	rs.requests[r.URL.Path]++
	rs.mu.Unlock()

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	id := parts[0]
	if rs.FailIDs[id] {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	switch len(parts) {
	case 1:
		versions, _ := rs.repo.ListVersions(ctx, id)
		if versions == nil {
			http.NotFound(w, r)
			return
		}
		listing := make([]model.PackageVersion, 0, len(versions))
		for _, v := range versions {
			listing = append(listing, model.PackageVersion{ID: id, Version: v})
		}
		writeJSON(w, listing)
	case 2:
		v, err := semver.NewVersion(parts[1])
		if err != nil {
			http.NotFound(w, r)
			return
		}
		pkg, _ := rs.repo.Fetch(ctx, id, v)
		if pkg == nil {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, pkg)
	default:
		http.NotFound(w, r)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("fake registry failed to encode response", logger.Fields{"error": err.Error()})
	}
}
