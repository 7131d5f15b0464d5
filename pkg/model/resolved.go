package model

import (
	"encoding/json"
	"fmt"
	"os"

	qerrors "github.com/glorpus-work/qpkg/pkg/errors"
	"github.com/glorpus-work/qpkg/pkg/semver"
)

// ResolvedDependency pins a dependency edge to the version the solver chose.
type ResolvedDependency struct {
	Dependency Dependency     `json:"dependency"`
	Version    semver.Version `json:"version"`
}

// Validate checks that the pinned version satisfies the edge's range.
func (d ResolvedDependency) Validate() error {
	if !d.Dependency.VersionRange.Matches(d.Version) {
		return fmt.Errorf("dependency %s: version %s does not satisfy %s",
			d.Dependency.ID, d.Version, d.Dependency.VersionRange)
	}
	return nil
}

// ResolvedPackage is a manifest plus the concrete versions of its direct
// dependencies. It is what repositories serve and what qpkg.shared.json holds.
type ResolvedPackage struct {
	Config               Manifest             `json:"config"`
	RestoredDependencies []ResolvedDependency `json:"restoredDependencies"`
}

// ID returns the package id.
func (p *ResolvedPackage) ID() string { return p.Config.Info.ID }

// Version returns the package version.
func (p *ResolvedPackage) Version() semver.Version { return p.Config.Info.Version }

// Validate checks every restored dependency.
func (p *ResolvedPackage) Validate() error {
	for _, d := range p.RestoredDependencies {
		if err := d.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// PackageVersion is one entry of a registry version listing.
type PackageVersion struct {
	ID      string         `json:"id"`
	Version semver.Version `json:"version"`
}

// ReadShared loads a resolved-package file.
func ReadShared(path string) (*ResolvedPackage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, qerrors.Wrapf(err, "failed to read %s", path)
	}
	var p ResolvedPackage
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w %s: %w", qerrors.ErrManifestParse, path, err)
	}
	return &p, nil
}

// WriteShared writes p to path as indented JSON.
func WriteShared(path string, p *ResolvedPackage) error {
	if p.RestoredDependencies == nil {
		p.RestoredDependencies = []ResolvedDependency{}
	}
	return writeJSON(path, p)
}
