package solver

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/glorpus-work/qpkg/pkg/semver"
)

// NoSolutionError is returned by Solve when no assignment of versions
// satisfies every constraint. Each failure names a package whose candidates
// were all rejected, together with the ranges that rejected them.
type NoSolutionError struct {
	Root     string
	Failures []error
}

func (e *NoSolutionError) Error() string {
	return "no version solution for " + e.Root + ": " + e.Report()
}

// Report renders the failures as a human-readable, multi-line explanation.
func (e *NoSolutionError) Report() string {
	if len(e.Failures) == 0 {
		return "dependency constraints cannot be satisfied"
	}
	lines := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		lines = append(lines, f.Error())
	}
	return strings.Join(lines, "\n")
}

// Packages returns the ids of the packages named by the failures, in report order.
func (e *NoSolutionError) Packages() []string {
	out := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		if nv, ok := f.(*noVersionError); ok {
			out = append(out, nv.id)
		}
	}
	return out
}

type atom struct {
	id string
	v  semver.Version
}

func (a atom) String() string {
	return a.id + " " + a.v.String()
}

// dependency is an edge from a selected package to a term.
type dependency struct {
	depender atom
	dep      Term
}

// failure is a reason a single candidate version was rejected. It is part of
// the search, not an error of the solve.
type failure interface {
	error
	isFailure()
}

func (*versionNotAllowedFailure) isFailure()    {}
func (*disjointConstraintFailure) isFailure()   {}
func (*constraintNotAllowedFailure) isFailure() {}

type noVersionError struct {
	id    string
	fails []failedVersion
}

func (e *noVersionError) Error() string {
	if len(e.fails) == 0 {
		return fmt.Sprintf("no versions of %s are available", e.id)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "no version of %s satisfies the constraints:", e.id)
	for _, f := range e.fails {
		fmt.Fprintf(&buf, "\n  %s: %s", f.v, f.f.Error())
	}
	return buf.String()
}

// versionNotAllowedFailure: the candidate is outside the ranges already
// placed on its package by selected dependers.
type versionNotAllowedFailure struct {
	goal       atom
	failparent []dependency
}

func (e *versionNotAllowedFailure) Error() string {
	if len(e.failparent) == 1 {
		f := e.failparent[0]
		return fmt.Sprintf("%s is not allowed by %s from %s", e.goal, f.dep.Constraint(), f.depender)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s is not allowed by the ranges", e.goal)
	for i, f := range e.failparent {
		if i > 0 {
			buf.WriteString(" and")
		}
		fmt.Fprintf(&buf, " %s from %s", f.dep.Constraint(), f.depender)
	}
	return buf.String()
}

// disjointConstraintFailure: the candidate depends on a range that has no
// overlap with the ranges other selected packages already require.
type disjointConstraintFailure struct {
	goal    dependency
	failsib []dependency
}

func (e *disjointConstraintFailure) Error() string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s depends on %s %s, which has no overlap with", e.goal.depender, e.goal.dep.ID, e.goal.dep.Constraint())
	if len(e.failsib) == 0 {
		buf.WriteString(" the combined ranges of its other dependers")
		return buf.String()
	}
	for i, s := range e.failsib {
		if i > 0 {
			buf.WriteString(" and")
		}
		fmt.Fprintf(&buf, " %s from %s", s.dep.Constraint(), s.depender)
	}
	return buf.String()
}

// constraintNotAllowedFailure: the candidate depends on a range that does not
// admit the version already selected for that package.
type constraintNotAllowedFailure struct {
	goal dependency
	v    semver.Version
}

func (e *constraintNotAllowedFailure) Error() string {
	return fmt.Sprintf("%s depends on %s %s, but %s %s is already selected",
		e.goal.depender, e.goal.dep.ID, e.goal.dep.Constraint(), e.goal.dep.ID, e.v)
}
