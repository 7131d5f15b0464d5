// Package semver is the version model used by the resolver: concrete package
// versions, the requirement syntax written in manifests, and the interval form
// the solver reasons about.
package semver

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"

	goversion "github.com/hashicorp/go-version"
)

// Version is a MAJOR.MINOR.PATCH semantic version with optional prerelease
// and build metadata. The zero Version is invalid and sorts before every
// parsed version.
type Version struct {
	v *goversion.Version
}

// NewVersion parses a full three-segment semantic version. A leading "v" is
// accepted and dropped.
func NewVersion(s string) (Version, error) {
	s = strings.TrimSpace(s)
	core := strings.TrimPrefix(s, "v")
	if i := strings.IndexAny(core, "-+"); i >= 0 {
		core = core[:i]
	}
	if strings.Count(core, ".") != 2 {
		return Version{}, fmt.Errorf("invalid version %q: expected MAJOR.MINOR.PATCH", s)
	}
	v, err := goversion.NewSemver(s)
	if err != nil {
		return Version{}, fmt.Errorf("invalid version %q: %w", s, err)
	}
	return Version{v: v}, nil
}

// MustParse is like NewVersion but panics on malformed input.
func MustParse(s string) Version {
	v, err := NewVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

func newCore(major, minor, patch int64, pre string) Version {
	s := fmt.Sprintf("%d.%d.%d", major, minor, patch)
	if pre != "" {
		s += "-" + pre
	}
	return MustParse(s)
}

// IsZero reports whether v was never parsed.
func (v Version) IsZero() bool { return v.v == nil }

func (v Version) segment(i int) int64 {
	if v.v == nil {
		return 0
	}
	return v.v.Segments64()[i]
}

// Major returns the major segment.
func (v Version) Major() int64 { return v.segment(0) }

// Minor returns the minor segment.
func (v Version) Minor() int64 { return v.segment(1) }

// Patch returns the patch segment.
func (v Version) Patch() int64 { return v.segment(2) }

// Prerelease returns the prerelease tag without the leading "-".
func (v Version) Prerelease() string {
	if v.v == nil {
		return ""
	}
	return v.v.Prerelease()
}

// Metadata returns the build metadata without the leading "+".
func (v Version) Metadata() string {
	if v.v == nil {
		return ""
	}
	return v.v.Metadata()
}

// String returns the canonical form, e.g. "1.2.3-beta.1+build".
func (v Version) String() string {
	if v.v == nil {
		return ""
	}
	return v.v.String()
}

// Compare orders versions by SemVer 2.0 precedence. Build metadata is ignored.
func (v Version) Compare(o Version) int {
	switch {
	case v.v == nil && o.v == nil:
		return 0
	case v.v == nil:
		return -1
	case o.v == nil:
		return 1
	}
	if c := v.v.Core().Compare(o.v.Core()); c != 0 {
		return c
	}
	return comparePrerelease(v.Prerelease(), o.Prerelease())
}

// Equal reports whether v and o have the same precedence.
func (v Version) Equal(o Version) bool { return v.Compare(o) == 0 }

// LessThan reports whether v sorts before o.
func (v Version) LessThan(o Version) bool { return v.Compare(o) < 0 }

// GreaterThan reports whether v sorts after o.
func (v Version) GreaterThan(o Version) bool { return v.Compare(o) > 0 }

// comparePrerelease implements SemVer 2.0 rule 11: a version without a
// prerelease outranks one with it; identifiers compare numerically when both
// are numeric, numeric identifiers sort before alphanumeric ones, and a
// shorter list of equal identifiers sorts first.
func comparePrerelease(a, b string) int {
	if a == b {
		return 0
	}
	if a == "" {
		return 1
	}
	if b == "" {
		return -1
	}
	as, bs := strings.Split(a, "."), strings.Split(b, ".")
	for i := 0; i < len(as) && i < len(bs); i++ {
		if c := compareIdentifier(as[i], bs[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(as) < len(bs):
		return -1
	case len(as) > len(bs):
		return 1
	}
	return 0
}

func compareIdentifier(a, b string) int {
	an, aErr := strconv.ParseUint(a, 10, 64)
	bn, bErr := strconv.ParseUint(b, 10, 64)
	switch {
	case aErr == nil && bErr == nil:
		switch {
		case an < bn:
			return -1
		case an > bn:
			return 1
		}
		return 0
	case aErr == nil:
		return -1
	case bErr == nil:
		return 1
	}
	return strings.Compare(a, b)
}

// MarshalText implements encoding.TextMarshaler.
func (v Version) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Version) UnmarshalText(b []byte) error {
	parsed, err := NewVersion(string(b))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// MarshalJSON encodes the version as a JSON string.
func (v Version) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.String())
}

// UnmarshalJSON decodes a JSON string into a version.
func (v *Version) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("version must be a string: %w", err)
	}
	return v.UnmarshalText([]byte(s))
}

// Sort orders versions ascending in place.
func Sort(vs []Version) {
	slices.SortStableFunc(vs, Version.Compare)
}

// FromSolverVersion converts a version chosen by the solver back into the
// domain type. The solver works on Version directly.
func FromSolverVersion(v Version) Version {
	return v
}
