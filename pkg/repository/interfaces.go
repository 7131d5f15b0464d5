//go:generate mockgen -destination=./mocks/repository.go . Repository
package repository

import (
	"context"

	"github.com/glorpus-work/qpkg/pkg/model"
	"github.com/glorpus-work/qpkg/pkg/semver"
)

// Repository is a source of packages.
//
// Absence is not an error: ListVersions returns nil when the repository has
// never heard of id (it never returns an empty, non-nil slice), and Fetch
// returns nil when it does not hold that exact version. Any returned error is
// fatal to the caller.
type Repository interface {
	ListVersions(ctx context.Context, id string) ([]semver.Version, error)
	Fetch(ctx context.Context, id string, version semver.Version) (*model.ResolvedPackage, error)
}
