// Package resolver turns a manifest into the concrete set of packages it
// needs, by running the version solver against a repository.
package resolver

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/glorpus-work/qpkg/internal/logger"
	"github.com/glorpus-work/qpkg/pkg/model"
	"github.com/glorpus-work/qpkg/pkg/repository"
	"github.com/glorpus-work/qpkg/pkg/semver"
	"github.com/glorpus-work/qpkg/pkg/solver"
)

// Resolve picks a version for every package root transitively depends on
// and returns those packages sorted by id. The root itself is not part of
// the result.
//
// When the ranges cannot all be met the error is an *UnsatisfiableError.
// Every other error is fatal and comes from the repository.
func Resolve(ctx context.Context, root *model.Manifest, repo repository.Repository) ([]*model.ResolvedPackage, error) {
	if root.Info.ID == "" {
		return nil, Wrap(repository.ErrPackageIDEmpty, "cannot resolve manifest")
	}

	logger.Debug("Resolving dependencies", logger.Fields{
		"id":      root.Info.ID,
		"version": root.Info.Version.String(),
		"direct":  len(root.Dependencies),
	})

	solution, err := solver.Solve(ctx, newProvider(root, repo), root.Info.ID, root.Info.Version)
	if err != nil {
		var nse *solver.NoSolutionError
		if errors.As(err, &nse) {
			return nil, newUnsatisfiableError(root.Info.ID, nse)
		}
		return nil, Wrap(err, "dependency resolution failed")
	}

	ids := make([]string, 0, len(solution))
	for id := range solution {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, strings.Compare)

	out := make([]*model.ResolvedPackage, 0, len(ids))
	for _, id := range ids {
		v := semver.FromSolverVersion(solution[id])
		if id == root.Info.ID && v.Equal(root.Info.Version) {
			continue
		}
		pkg, err := repo.Fetch(ctx, id, v)
		if err != nil {
			return nil, Wrapf(err, "failed to fetch %s %s", id, v)
		}
		if pkg == nil {
			return nil, Wrapf(ErrPackageVanished, "%s %s", id, v)
		}
		logger.Debug("Resolved package", logger.Fields{"id": id, "version": v.String()})
		out = append(out, pkg)
	}
	return out, nil
}

// Restore resolves root and pins every resolved package as a restored
// dependency of it. Direct dependencies keep the edge written in the
// manifest; transitive ones get an exact-version edge.
func Restore(ctx context.Context, root *model.Manifest, repo repository.Repository) (*model.ResolvedPackage, error) {
	pkgs, err := Resolve(ctx, root, repo)
	if err != nil {
		return nil, err
	}

	restored := make([]model.ResolvedDependency, 0, len(pkgs))
	for _, pkg := range pkgs {
		var dep model.Dependency
		if direct := root.GetDependency(pkg.ID()); direct != nil {
			dep = *direct
		} else {
			dep = model.Dependency{
				ID:           pkg.ID(),
				VersionRange: semver.Exact(pkg.Version()),
			}
		}
		restored = append(restored, model.ResolvedDependency{Dependency: dep, Version: pkg.Version()})
	}

	return &model.ResolvedPackage{
		Config:               *root,
		RestoredDependencies: restored,
	}, nil
}
