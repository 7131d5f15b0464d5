package semver

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

type op int

const (
	opExact op = iota
	opGreater
	opGreaterEq
	opLess
	opLessEq
	opTilde
	opCaret
	opWildcard
)

var opPrefixes = []struct {
	prefix string
	op     op
}{
	{">=", opGreaterEq},
	{"<=", opLessEq},
	{">", opGreater},
	{"<", opLess},
	{"=", opExact},
	{"^", opCaret},
	{"~", opTilde},
}

var partialVersionRe = regexp.MustCompile(
	`^v?(\d+|[*xX])(?:\.(\d+|[*xX]))?(?:\.(\d+|[*xX]))?` +
		`(?:-([0-9A-Za-z-]+(?:\.[0-9A-Za-z-]+)*))?(?:\+([0-9A-Za-z-]+(?:\.[0-9A-Za-z-]+)*))?$`)

// comparator is a single clause of a requirement. A missing minor or patch
// segment makes it a partial comparator that refers to a whole block of
// versions, e.g. "1.2" is every 1.2.x.
type comparator struct {
	op       op
	major    int64
	minor    int64
	patch    int64
	hasMajor bool
	hasMinor bool
	hasPatch bool
	pre      string
}

// Requirement is a conjunction of comparators such as ">=1.2.0, <1.5.0" or
// "^1.0.0". The zero Requirement matches every version.
type Requirement struct {
	raw         string
	comparators []comparator
}

// ParseRequirement parses a comma-separated comparator list. Supported forms
// are =V, >V, >=V, <V, <=V, ^V, ~V, bare V (caret), and the wildcards *, 1.*
// and 1.2.*. Missing minor or patch segments follow Cargo's partial-version
// rules.
func ParseRequirement(s string) (Requirement, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return Requirement{}, fmt.Errorf("invalid version requirement %q: empty", s)
	}
	parts := strings.Split(trimmed, ",")
	comparators := make([]comparator, 0, len(parts))
	for _, part := range parts {
		c, err := parseComparator(strings.TrimSpace(part))
		if err != nil {
			return Requirement{}, fmt.Errorf("invalid version requirement %q: %w", s, err)
		}
		comparators = append(comparators, c)
	}
	return Requirement{raw: trimmed, comparators: comparators}, nil
}

// MustParseRequirement is like ParseRequirement but panics on malformed input.
func MustParseRequirement(s string) Requirement {
	r, err := ParseRequirement(s)
	if err != nil {
		panic(err)
	}
	return r
}

// Exact returns the requirement "=v".
func Exact(v Version) Requirement {
	return MustParseRequirement("=" + v.String())
}

func parseComparator(s string) (comparator, error) {
	if s == "" {
		return comparator{}, fmt.Errorf("empty comparator")
	}

	c := comparator{op: opCaret}
	explicitOp := false
	for _, p := range opPrefixes {
		if strings.HasPrefix(s, p.prefix) {
			c.op = p.op
			s = strings.TrimSpace(s[len(p.prefix):])
			explicitOp = true
			break
		}
	}

	m := partialVersionRe.FindStringSubmatch(s)
	if m == nil {
		return comparator{}, fmt.Errorf("malformed version %q", s)
	}

	segments := []struct {
		raw string
		val *int64
		has *bool
	}{
		{m[1], &c.major, &c.hasMajor},
		{m[2], &c.minor, &c.hasMinor},
		{m[3], &c.patch, &c.hasPatch},
	}
	wildcard := false
	for _, seg := range segments {
		switch seg.raw {
		case "":
		case "*", "x", "X":
			wildcard = true
		default:
			if wildcard {
				return comparator{}, fmt.Errorf("version %q has a number after a wildcard", s)
			}
			n, err := strconv.ParseInt(seg.raw, 10, 64)
			if err != nil {
				return comparator{}, fmt.Errorf("version segment %q: %w", seg.raw, err)
			}
			*seg.val = n
			*seg.has = true
		}
	}

	if m[4] != "" {
		if !c.hasPatch {
			return comparator{}, fmt.Errorf("prerelease %q requires a full MAJOR.MINOR.PATCH version", m[4])
		}
		c.pre = m[4]
	}

	switch {
	case !c.hasMajor && explicitOp:
		return comparator{}, fmt.Errorf("operator cannot be combined with a bare wildcard in %q", s)
	case wildcard && !explicitOp:
		c.op = opWildcard
	}
	return c, nil
}

func (c comparator) point() Version {
	return newCore(c.major, c.minor, c.patch, c.pre)
}

// block returns the half-open range [lo, hi) of a partial comparator.
// Prerelease builds of the first version belong to the block; those of the
// next block's first version do not.
func (c comparator) block() (lo, hi Version) {
	if !c.hasMinor {
		return newCore(c.major, 0, 0, "0"), newCore(c.major+1, 0, 0, "0")
	}
	return newCore(c.major, c.minor, 0, "0"), newCore(c.major, c.minor+1, 0, "0")
}

func (c comparator) interval() Interval {
	if !c.hasMajor {
		return Full()
	}
	if !c.hasPatch {
		lo, hi := c.block()
		switch c.op {
		case opGreater:
			return Interval{Lower: Inclusive(hi), Upper: Unbounded()}
		case opGreaterEq:
			return Interval{Lower: Inclusive(lo), Upper: Unbounded()}
		case opLess:
			return Interval{Lower: Unbounded(), Upper: Exclusive(lo)}
		case opLessEq:
			return Interval{Lower: Unbounded(), Upper: Exclusive(hi)}
		case opCaret:
			if c.hasMinor && c.major > 0 {
				return Interval{Lower: Inclusive(lo), Upper: Exclusive(newCore(c.major+1, 0, 0, "0"))}
			}
		}
		// =, ~, wildcard, and the remaining caret forms cover exactly the block.
		return Interval{Lower: Inclusive(lo), Upper: Exclusive(hi)}
	}

	p := c.point()
	switch c.op {
	case opGreater:
		return Interval{Lower: Exclusive(p), Upper: Unbounded()}
	case opGreaterEq:
		return Interval{Lower: Inclusive(p), Upper: Unbounded()}
	case opLess:
		return Interval{Lower: Unbounded(), Upper: Exclusive(p)}
	case opLessEq:
		return Interval{Lower: Unbounded(), Upper: Inclusive(p)}
	case opTilde:
		return Interval{Lower: Inclusive(p), Upper: Exclusive(newCore(c.major, c.minor+1, 0, "0"))}
	case opCaret:
		switch {
		case c.major > 0:
			return Interval{Lower: Inclusive(p), Upper: Exclusive(newCore(c.major+1, 0, 0, "0"))}
		case c.minor > 0:
			return Interval{Lower: Inclusive(p), Upper: Exclusive(newCore(0, c.minor+1, 0, "0"))}
		default:
			return Interval{Lower: Inclusive(p), Upper: Exclusive(newCore(0, 0, c.patch+1, "0"))}
		}
	}
	return Exactly(p)
}

// matches evaluates the comparator field by field.
func (c comparator) matches(v Version) bool {
	if !c.hasMajor {
		return true
	}
	if !c.hasPatch {
		key := func(major, minor int64) [2]int64 {
			if !c.hasMinor {
				return [2]int64{major, 0}
			}
			return [2]int64{major, minor}
		}
		vk, ck := key(v.Major(), v.Minor()), key(c.major, c.minor)
		cmp := compareKey(vk, ck)
		switch c.op {
		case opGreater:
			return cmp > 0
		case opGreaterEq:
			return cmp >= 0
		case opLess:
			return cmp < 0
		case opLessEq:
			return cmp <= 0
		case opCaret:
			if c.hasMinor && c.major > 0 {
				return v.Major() == c.major && v.Minor() >= c.minor
			}
		}
		return cmp == 0
	}

	cmp := v.Compare(c.point())
	switch c.op {
	case opGreater:
		return cmp > 0
	case opGreaterEq:
		return cmp >= 0
	case opLess:
		return cmp < 0
	case opLessEq:
		return cmp <= 0
	case opTilde:
		return v.Major() == c.major && v.Minor() == c.minor && cmp >= 0
	case opCaret:
		switch {
		case c.major > 0:
			return v.Major() == c.major && cmp >= 0
		case c.minor > 0:
			return v.Major() == 0 && v.Minor() == c.minor && cmp >= 0
		default:
			return v.Major() == 0 && v.Minor() == 0 && v.Patch() == c.patch && cmp >= 0
		}
	}
	return cmp == 0
}

func compareKey(a, b [2]int64) int {
	for i := range a {
		switch {
		case a[i] < b[i]:
			return -1
		case a[i] > b[i]:
			return 1
		}
	}
	return 0
}

func (c comparator) String() string {
	if !c.hasMajor {
		return "*"
	}
	var b strings.Builder
	switch c.op {
	case opExact:
		b.WriteString("=")
	case opGreater:
		b.WriteString(">")
	case opGreaterEq:
		b.WriteString(">=")
	case opLess:
		b.WriteString("<")
	case opLessEq:
		b.WriteString("<=")
	case opTilde:
		b.WriteString("~")
	case opCaret:
		b.WriteString("^")
	}
	b.WriteString(strconv.FormatInt(c.major, 10))
	if c.hasMinor {
		b.WriteString("." + strconv.FormatInt(c.minor, 10))
	} else if c.op == opWildcard {
		b.WriteString(".*")
	}
	if c.hasPatch {
		b.WriteString("." + strconv.FormatInt(c.patch, 10))
	} else if c.op == opWildcard && c.hasMinor {
		b.WriteString(".*")
	}
	if c.pre != "" {
		b.WriteString("-" + c.pre)
	}
	return b.String()
}

// Matches reports whether v satisfies every comparator of r.
func (r Requirement) Matches(v Version) bool {
	for _, c := range r.comparators {
		if !c.matches(v) {
			return false
		}
	}
	return true
}

// Interval converts r into the single interval the solver works with.
func (r Requirement) Interval() Interval {
	return ToInterval(r)
}

// ToInterval converts a requirement into its interval form. Caret on 1.2.3
// becomes [1.2.3, 2.0.0-0): the upper end excludes prereleases of 2.0.0.
func ToInterval(r Requirement) Interval {
	out := Full()
	for _, c := range r.comparators {
		out = out.Intersect(c.interval())
	}
	return out
}

// Intersect returns a requirement satisfied only by versions matching both r and o.
func (r Requirement) Intersect(o Requirement) Requirement {
	switch {
	case len(r.comparators) == 0:
		return o
	case len(o.comparators) == 0:
		return r
	}
	comparators := make([]comparator, 0, len(r.comparators)+len(o.comparators))
	comparators = append(comparators, r.comparators...)
	comparators = append(comparators, o.comparators...)
	return Requirement{raw: r.String() + ", " + o.String(), comparators: comparators}
}

// IsZero reports whether r was never parsed.
func (r Requirement) IsZero() bool { return len(r.comparators) == 0 }

// String returns the requirement as written, or "*" for the zero value.
func (r Requirement) String() string {
	if r.raw != "" {
		return r.raw
	}
	if len(r.comparators) == 0 {
		return "*"
	}
	parts := make([]string, len(r.comparators))
	for i, c := range r.comparators {
		parts[i] = c.String()
	}
	return strings.Join(parts, ", ")
}

// MarshalJSON encodes the requirement as a JSON string.
func (r Requirement) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// UnmarshalJSON decodes a requirement from a JSON string.
func (r *Requirement) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("version requirement must be a string: %w", err)
	}
	parsed, err := ParseRequirement(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
