package semver

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewVersion(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "plain", input: "1.2.3", want: "1.2.3"},
		{name: "v prefix", input: "v0.4.0", want: "0.4.0"},
		{name: "prerelease and metadata", input: "1.0.0-rc.1+build.5", want: "1.0.0-rc.1+build.5"},
		{name: "surrounding whitespace", input: " 2.0.0 ", want: "2.0.0"},
		{name: "missing patch", input: "1.2", wantErr: true},
		{name: "four segments", input: "1.2.3.4", wantErr: true},
		{name: "garbage", input: "latest", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := NewVersion(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.String())
		})
	}
}

func TestVersionCompare(t *testing.T) {
	ordered := []string{
		"0.0.1",
		"0.1.0",
		"1.0.0-0",
		"1.0.0-1",
		"1.0.0-alpha",
		"1.0.0-alpha.1",
		"1.0.0-alpha.beta",
		"1.0.0-beta",
		"1.0.0-beta.2",
		"1.0.0-beta.11",
		"1.0.0-rc.1",
		"1.0.0",
		"1.0.1",
		"1.10.0",
		"2.0.0",
	}
	for i := 0; i < len(ordered); i++ {
		for j := 0; j < len(ordered); j++ {
			a, b := MustParse(ordered[i]), MustParse(ordered[j])
			switch {
			case i < j:
				assert.True(t, a.LessThan(b), "%s < %s", a, b)
			case i > j:
				assert.True(t, a.GreaterThan(b), "%s > %s", a, b)
			default:
				assert.True(t, a.Equal(b))
			}
		}
	}
}

func TestVersionCompare_IgnoresMetadata(t *testing.T) {
	assert.True(t, MustParse("1.0.0+a").Equal(MustParse("1.0.0+b")))
}

func TestVersionZero(t *testing.T) {
	var zero Version
	assert.True(t, zero.IsZero())
	assert.Equal(t, "", zero.String())
	assert.True(t, zero.LessThan(MustParse("0.0.0")))
}

func TestVersionAccessors(t *testing.T) {
	v := MustParse("3.14.15-beta+sha")
	assert.Equal(t, int64(3), v.Major())
	assert.Equal(t, int64(14), v.Minor())
	assert.Equal(t, int64(15), v.Patch())
	assert.Equal(t, "beta", v.Prerelease())
	assert.Equal(t, "sha", v.Metadata())
}

func TestVersionJSON(t *testing.T) {
	type doc struct {
		Version Version `json:"version"`
	}
	var d doc
	require.NoError(t, json.Unmarshal([]byte(`{"version":"0.3.1"}`), &d))
	assert.Equal(t, "0.3.1", d.Version.String())

	out, err := json.Marshal(d)
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":"0.3.1"}`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"version":3}`), &d))
	assert.Error(t, json.Unmarshal([]byte(`{"version":"nope"}`), &d))
}

func TestSort(t *testing.T) {
	vs := []Version{MustParse("1.2.0"), MustParse("0.9.0"), MustParse("1.2.0-rc.1"), MustParse("1.0.0")}
	Sort(vs)
	got := make([]string, len(vs))
	for i, v := range vs {
		got[i] = v.String()
	}
	assert.Equal(t, []string{"0.9.0", "1.0.0", "1.2.0-rc.1", "1.2.0"}, got)
}

func TestFromSolverVersion(t *testing.T) {
	v := MustParse("1.2.3")
	assert.True(t, FromSolverVersion(v).Equal(v))
}
