package model

import (
	"os"
	"path/filepath"
	"testing"

	qerrors "github.com/glorpus-work/qpkg/pkg/errors"
	"github.com/glorpus-work/qpkg/pkg/semver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleManifest = `{
  "sharedDir": "shared",
  "dependenciesDir": "extern",
  "info": {
    "name": "Example Mod",
    "id": "example",
    "version": "0.1.0",
    "url": "https://github.com/example/example",
    "additionalData": {"overrideSoName": "libexample.so"}
  },
  "dependencies": [
    {"id": "beatsaber-hook", "versionRange": "^3.8.0", "additionalData": {"extraFiles": ["src/inline-hook"]}},
    {"id": "codegen", "versionRange": ">=0.20.0, <0.30.0", "additionalData": {"private": true}}
  ],
  "additionalData": {}
}`

func writeSample(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ManifestFile)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadManifest(t *testing.T) {
	m, err := ReadManifest(writeSample(t, sampleManifest))
	require.NoError(t, err)

	assert.Equal(t, "example", m.Info.ID)
	assert.Equal(t, "0.1.0", m.Info.Version.String())
	assert.Equal(t, "shared", m.SharedDir)
	require.Len(t, m.Dependencies, 2)
	assert.Equal(t, "^3.8.0", m.Dependencies[0].VersionRange.String())
	assert.Equal(t, []string{"src/inline-hook"}, m.Dependencies[0].AdditionalData.ExtraFiles)
	assert.True(t, m.Dependencies[1].AdditionalData.Private)
	assert.False(t, m.Dependencies[0].AdditionalData.Private)
}

func TestReadManifest_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := ReadManifest(filepath.Join(t.TempDir(), ManifestFile))
		assert.ErrorIs(t, err, qerrors.ErrManifestNotFound)
	})

	t.Run("malformed json", func(t *testing.T) {
		_, err := ReadManifest(writeSample(t, `{"info":`))
		assert.ErrorIs(t, err, qerrors.ErrManifestParse)
	})

	t.Run("malformed requirement", func(t *testing.T) {
		_, err := ReadManifest(writeSample(t,
			`{"info":{"id":"a","version":"1.0.0"},"dependencies":[{"id":"b","versionRange":"^^1"}]}`))
		assert.ErrorIs(t, err, qerrors.ErrManifestParse)
	})

	t.Run("duplicate dependency", func(t *testing.T) {
		_, err := ReadManifest(writeSample(t,
			`{"info":{"id":"a","version":"1.0.0"},"dependencies":[{"id":"b","versionRange":"*"},{"id":"b","versionRange":"^1.0.0"}]}`))
		assert.ErrorIs(t, err, ErrDuplicateDependency)
	})

	t.Run("missing version", func(t *testing.T) {
		_, err := ReadManifest(writeSample(t, `{"info":{"id":"a"}}`))
		assert.ErrorIs(t, err, qerrors.ErrManifestParse)
	})
}

func TestWriteManifest_RoundTrip(t *testing.T) {
	m, err := ReadManifest(writeSample(t, sampleManifest))
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), ManifestFile)
	require.NoError(t, WriteManifest(out, m))

	again, err := ReadManifest(out)
	require.NoError(t, err)
	assert.Equal(t, m.Info.ID, again.Info.ID)
	assert.Equal(t, m.Dependencies[1].VersionRange.String(), again.Dependencies[1].VersionRange.String())

	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"private": true`)
}

func TestManifestDependencies(t *testing.T) {
	m := &Manifest{Info: PackageInfo{ID: "root", Version: semver.MustParse("1.0.0")}}
	dep := Dependency{ID: "libx", VersionRange: semver.MustParseRequirement("^1.0.0")}

	require.NoError(t, m.AddDependency(dep))
	assert.ErrorIs(t, m.AddDependency(dep), ErrDuplicateDependency)
	require.NotNil(t, m.GetDependency("libx"))
	assert.Nil(t, m.GetDependency("liby"))

	assert.True(t, m.RemoveDependency("libx"))
	assert.False(t, m.RemoveDependency("libx"))
	assert.Empty(t, m.Dependencies)
}

func TestSoName(t *testing.T) {
	tests := []struct {
		name     string
		manifest Manifest
		want     string
	}{
		{
			name:     "shared library",
			manifest: Manifest{Info: PackageInfo{ID: "custom-types", Version: semver.MustParse("0.15.4")}},
			want:     "libcustom-types_0_15_4.so",
		},
		{
			name: "static library",
			manifest: Manifest{
				Info:           PackageInfo{ID: "capstone", Version: semver.MustParse("0.1.0")},
				AdditionalData: AdditionalData{StaticLinking: true},
			},
			want: "libcapstone_0_1_0.a",
		},
		{
			name: "override",
			manifest: Manifest{Info: PackageInfo{
				ID: "bs-hook", Version: semver.MustParse("3.8.0"),
				AdditionalData: AdditionalData{OverrideSoName: "libbeatsaber-hook_3_8_0.so"},
			}},
			want: "libbeatsaber-hook_3_8_0.so",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.manifest.SoName())
			assert.Equal(t, "debug_"+tt.want, tt.manifest.DebugSoName())
		})
	}
}
