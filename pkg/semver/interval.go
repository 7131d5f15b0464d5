package semver

import "strings"

// Bound is one end of an Interval.
type Bound struct {
	Version   Version
	Inclusive bool
	Unbounded bool
}

// Unbounded returns a bound that admits every version on its side.
func Unbounded() Bound { return Bound{Unbounded: true} }

// Inclusive returns a closed bound at v.
func Inclusive(v Version) Bound { return Bound{Version: v, Inclusive: true} }

// Exclusive returns an open bound at v.
func Exclusive(v Version) Bound { return Bound{Version: v} }

// Interval is a contiguous range of versions: the form the solver consumes.
type Interval struct {
	Lower Bound
	Upper Bound
}

// Full is the interval containing every version.
func Full() Interval { return Interval{Lower: Unbounded(), Upper: Unbounded()} }

// Exactly is the single-point interval [v, v].
func Exactly(v Version) Interval { return Interval{Lower: Inclusive(v), Upper: Inclusive(v)} }

// Contains reports whether v lies inside the interval.
func (i Interval) Contains(v Version) bool {
	if !i.Lower.Unbounded {
		c := v.Compare(i.Lower.Version)
		if c < 0 || (c == 0 && !i.Lower.Inclusive) {
			return false
		}
	}
	if !i.Upper.Unbounded {
		c := v.Compare(i.Upper.Version)
		if c > 0 || (c == 0 && !i.Upper.Inclusive) {
			return false
		}
	}
	return true
}

// IsEmpty reports whether no version can satisfy the interval.
func (i Interval) IsEmpty() bool {
	if i.Lower.Unbounded || i.Upper.Unbounded {
		return false
	}
	c := i.Lower.Version.Compare(i.Upper.Version)
	return c > 0 || (c == 0 && !(i.Lower.Inclusive && i.Upper.Inclusive))
}

// Intersect returns the versions contained in both intervals.
func (i Interval) Intersect(o Interval) Interval {
	return Interval{Lower: tighterLower(i.Lower, o.Lower), Upper: tighterUpper(i.Upper, o.Upper)}
}

func tighterLower(a, b Bound) Bound {
	switch {
	case a.Unbounded:
		return b
	case b.Unbounded:
		return a
	}
	switch c := a.Version.Compare(b.Version); {
	case c > 0:
		return a
	case c < 0:
		return b
	}
	if !a.Inclusive {
		return a
	}
	return b
}

func tighterUpper(a, b Bound) Bound {
	switch {
	case a.Unbounded:
		return b
	case b.Unbounded:
		return a
	}
	switch c := a.Version.Compare(b.Version); {
	case c < 0:
		return a
	case c > 0:
		return b
	}
	if !a.Inclusive {
		return a
	}
	return b
}

// String renders the interval in mathematical notation, e.g. "[1.2.3, 2.0.0-0)".
func (i Interval) String() string {
	var b strings.Builder
	if i.Lower.Unbounded {
		b.WriteString("(*")
	} else {
		if i.Lower.Inclusive {
			b.WriteByte('[')
		} else {
			b.WriteByte('(')
		}
		b.WriteString(i.Lower.Version.String())
	}
	b.WriteString(", ")
	if i.Upper.Unbounded {
		b.WriteString("*)")
	} else {
		b.WriteString(i.Upper.Version.String())
		if i.Upper.Inclusive {
			b.WriteByte(']')
		} else {
			b.WriteByte(')')
		}
	}
	return b.String()
}
