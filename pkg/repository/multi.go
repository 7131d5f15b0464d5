package repository

import (
	"context"
	"slices"

	"github.com/glorpus-work/qpkg/pkg/model"
	"github.com/glorpus-work/qpkg/pkg/semver"
)

// Multi merges several repositories into one, consulted in the order given.
type Multi struct {
	repos []Repository
}

// NewMulti returns a composite over repos, highest priority first.
func NewMulti(repos ...Repository) *Multi {
	return &Multi{repos: repos}
}

// DefaultRepositories puts the local cache ahead of the remote registry, so a
// locally installed package shadows the registry copy of the same version.
func DefaultRepositories(cache, registry Repository) *Multi {
	return NewMulti(cache, registry)
}

// ListVersions returns the union of every repository's versions, each
// distinct version once, in first-seen order. It returns nil only when no
// repository knows the id.
func (m *Multi) ListVersions(ctx context.Context, id string) ([]semver.Version, error) {
	var out []semver.Version
	for _, repo := range m.repos {
		versions, err := repo.ListVersions(ctx, id)
		if err != nil {
			return nil, err
		}
		for _, v := range versions {
			if !slices.ContainsFunc(out, v.Equal) {
				out = append(out, v)
			}
		}
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

// Fetch returns the package from the first repository that has it.
func (m *Multi) Fetch(ctx context.Context, id string, version semver.Version) (*model.ResolvedPackage, error) {
	for _, repo := range m.repos {
		pkg, err := repo.Fetch(ctx, id, version)
		if err != nil {
			return nil, err
		}
		if pkg != nil {
			return pkg, nil
		}
	}
	return nil, nil
}

// Latest returns the highest version in versions.
func Latest(versions []semver.Version) (semver.Version, bool) {
	if len(versions) == 0 {
		return semver.Version{}, false
	}
	return slices.MaxFunc(versions, semver.Version.Compare), true
}
