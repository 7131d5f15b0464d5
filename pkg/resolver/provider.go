package resolver

import (
	"context"
	"slices"

	"github.com/glorpus-work/qpkg/pkg/model"
	"github.com/glorpus-work/qpkg/pkg/repository"
	"github.com/glorpus-work/qpkg/pkg/semver"
	"github.com/glorpus-work/qpkg/pkg/solver"
)

// provider answers the solver's questions from a repository, treating the
// manifest being resolved as a package of its own.
type provider struct {
	root *model.Manifest
	repo repository.Repository
}

var _ solver.Provider = (*provider)(nil)

func newProvider(root *model.Manifest, repo repository.Repository) *provider {
	return &provider{root: root, repo: repo}
}

func (p *provider) isRoot(id string, v semver.Version) bool {
	return id == p.root.Info.ID && v.Equal(p.root.Info.Version)
}

// Versions returns every version the repository knows for id. The root
// package always offers its own version as well, even if no repository has
// it yet.
func (p *provider) Versions(ctx context.Context, id string) ([]semver.Version, error) {
	versions, err := p.repo.ListVersions(ctx, id)
	if err != nil {
		return nil, Wrapf(err, "failed to list versions of %s", id)
	}

	if id == p.root.Info.ID {
		self := p.root.Info.Version
		if !slices.ContainsFunc(versions, self.Equal) {
			versions = append(slices.Clone(versions), self)
		}
	}
	return versions, nil
}

// Dependencies returns the edges of id at v. The root's edges come straight
// from the manifest. Any other package is fetched, and its private edges are
// dropped since they are not re-exported to dependents.
func (p *provider) Dependencies(ctx context.Context, id string, v semver.Version) ([]solver.Term, error) {
	if p.isRoot(id, v) {
		return terms(p.root.Dependencies, false), nil
	}

	pkg, err := p.repo.Fetch(ctx, id, v)
	if err != nil {
		return nil, Wrapf(err, "failed to fetch %s %s", id, v)
	}
	if pkg == nil {
		return nil, Wrapf(ErrPackageVanished, "%s %s", id, v)
	}
	return terms(pkg.Config.Dependencies, true), nil
}

func terms(deps []model.Dependency, skipPrivate bool) []solver.Term {
	out := make([]solver.Term, 0, len(deps))
	for _, d := range deps {
		if skipPrivate && d.AdditionalData.Private {
			continue
		}
		out = append(out, solver.Term{
			ID:          d.ID,
			Range:       d.VersionRange.Interval(),
			Requirement: d.VersionRange.String(),
		})
	}
	return out
}
