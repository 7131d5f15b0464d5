// Package model provides the data structures exchanged by qpkg: package
// manifests, dependency edges and the resolved package descriptions stored in
// repositories and written after a restore.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	qerrors "github.com/glorpus-work/qpkg/pkg/errors"
	"github.com/glorpus-work/qpkg/pkg/fsutil"
	"github.com/glorpus-work/qpkg/pkg/semver"
)

const (
	// ManifestFile is the name of the manifest inside a project or cached package.
	ManifestFile = "qpkg.json"
	// SharedFile is the name of the resolved-package file written by a restore.
	SharedFile = "qpkg.shared.json"
)

// ErrDuplicateDependency is returned when a manifest lists the same id twice.
var ErrDuplicateDependency = errors.New("duplicate dependency")

// CompileOptions are extra compiler settings a package asks its consumers to use.
type CompileOptions struct {
	IncludePaths   []string `json:"includePaths,omitempty"`
	SystemIncludes []string `json:"systemIncludes,omitempty"`
	CppFeatures    []string `json:"cppFeatures,omitempty"`
	CppFlags       []string `json:"cppFlags,omitempty"`
	CFlags         []string `json:"cFlags,omitempty"`
}

// AdditionalData carries flags that matter to build tooling but never to
// version selection. The same shape is used on package info and on
// dependency edges.
type AdditionalData struct {
	HeadersOnly    bool            `json:"headersOnly,omitempty"`
	StaticLinking  bool            `json:"staticLinking,omitempty"`
	SoLink         string          `json:"soLink,omitempty"`
	DebugSoLink    string          `json:"debugSoLink,omitempty"`
	OverrideSoName string          `json:"overrideSoName,omitempty"`
	ModLink        string          `json:"modLink,omitempty"`
	BranchName     string          `json:"branchName,omitempty"`
	ExtraFiles     []string        `json:"extraFiles,omitempty"`
	Private        bool            `json:"private,omitempty"`
	UseRelease     bool            `json:"useRelease,omitempty"`
	CompileOptions *CompileOptions `json:"compileOptions,omitempty"`
	SubFolder      string          `json:"subFolder,omitempty"`
}

// PackageInfo identifies a package.
type PackageInfo struct {
	Name           string         `json:"name"`
	ID             string         `json:"id"`
	Version        semver.Version `json:"version"`
	URL            string         `json:"url,omitempty"`
	AdditionalData AdditionalData `json:"additionalData"`
}

// Dependency is an edge from a package to a version range of another package.
type Dependency struct {
	ID             string             `json:"id"`
	VersionRange   semver.Requirement `json:"versionRange"`
	AdditionalData AdditionalData     `json:"additionalData"`
}

// Manifest is the declarative description of a package, stored as qpkg.json.
type Manifest struct {
	SharedDir       string         `json:"sharedDir"`
	DependenciesDir string         `json:"dependenciesDir"`
	Info            PackageInfo    `json:"info"`
	Dependencies    []Dependency   `json:"dependencies"`
	AdditionalData  AdditionalData `json:"additionalData"`
}

// Validate checks the manifest invariants.
func (m *Manifest) Validate() error {
	if strings.TrimSpace(m.Info.ID) == "" {
		return fmt.Errorf("%w: package id is empty", qerrors.ErrManifestParse)
	}
	if m.Info.Version.IsZero() {
		return fmt.Errorf("%w: package %s has no version", qerrors.ErrManifestParse, m.Info.ID)
	}
	seen := make(map[string]struct{}, len(m.Dependencies))
	for _, dep := range m.Dependencies {
		if dep.ID == "" {
			return fmt.Errorf("%w: dependency with empty id", qerrors.ErrManifestParse)
		}
		if _, dup := seen[dep.ID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateDependency, dep.ID)
		}
		seen[dep.ID] = struct{}{}
	}
	return nil
}

// GetDependency returns the edge for id, or nil.
func (m *Manifest) GetDependency(id string) *Dependency {
	for i := range m.Dependencies {
		if m.Dependencies[i].ID == id {
			return &m.Dependencies[i]
		}
	}
	return nil
}

// AddDependency appends dep unless an edge with the same id already exists.
func (m *Manifest) AddDependency(dep Dependency) error {
	if m.GetDependency(dep.ID) != nil {
		return fmt.Errorf("%w: %s", ErrDuplicateDependency, dep.ID)
	}
	m.Dependencies = append(m.Dependencies, dep)
	return nil
}

// RemoveDependency deletes the edge for id and reports whether one existed.
func (m *Manifest) RemoveDependency(id string) bool {
	for i := range m.Dependencies {
		if m.Dependencies[i].ID == id {
			m.Dependencies = append(m.Dependencies[:i], m.Dependencies[i+1:]...)
			return true
		}
	}
	return false
}

// SoName is the file name the package's binary is stored under:
// overrideSoName when set, otherwise lib<id>_<version with dots as underscores>
// with a .a or .so extension depending on static linking.
func (m *Manifest) SoName() string {
	if m.Info.AdditionalData.OverrideSoName != "" {
		return m.Info.AdditionalData.OverrideSoName
	}
	ext := "so"
	if m.AdditionalData.StaticLinking || m.Info.AdditionalData.StaticLinking {
		ext = "a"
	}
	return fmt.Sprintf("lib%s_%s.%s", m.Info.ID, strings.ReplaceAll(m.Info.Version.String(), ".", "_"), ext)
}

// DebugSoName is the file name of the debug binary.
func (m *Manifest) DebugSoName() string {
	return "debug_" + m.SoName()
}

// ReadManifest loads and validates a manifest file.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", qerrors.ErrManifestNotFound, path)
		}
		return nil, qerrors.Wrapf(err, "failed to read manifest %s", path)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w %s: %w", qerrors.ErrManifestParse, path, err)
	}
	if err := m.Validate(); err != nil {
		return nil, qerrors.Wrapf(err, "invalid manifest %s", path)
	}
	return &m, nil
}

// WriteManifest writes m to path as indented JSON.
func WriteManifest(path string, m *Manifest) error {
	if m.Dependencies == nil {
		m.Dependencies = []Dependency{}
	}
	return writeJSON(path, m)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return qerrors.Wrapf(err, "failed to encode %s", path)
	}
	data = append(data, '\n')
	return fsutil.WriteFileAtomic(path, data, fsutil.FileModeDefault)
}
