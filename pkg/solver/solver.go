// Package solver finds one version for every package reachable from a root
// package such that each dependency range along the way is satisfied.
//
// It is a backtracking search. Packages are decided one at a time, the
// package with the fewest candidate versions first, and each package tries
// its highest candidate first. Packages and their dependencies are only ever
// seen through a Provider, so the solver knows nothing about repositories,
// manifests or privacy.
package solver

import (
	"container/heap"
	"context"
	"slices"

	"github.com/glorpus-work/qpkg/internal/logger"
	"github.com/glorpus-work/qpkg/pkg/semver"
)

// Term is one dependency edge as the solver sees it: a package id and the
// interval of versions it accepts. Requirement is the range as written and
// is only used in reports.
type Term struct {
	ID          string
	Range       semver.Interval
	Requirement string
}

// Constraint returns the range as it should appear in a report.
func (t Term) Constraint() string {
	if t.Requirement != "" {
		return t.Requirement
	}
	return t.Range.String()
}

// Provider answers the two questions the solver asks while searching.
// Versions returns the candidates for id (none for an unknown id).
// Dependencies returns the edges of one concrete package version.
// Any error either method returns aborts the solve.
type Provider interface {
	Versions(ctx context.Context, id string) ([]semver.Version, error)
	Dependencies(ctx context.Context, id string, v semver.Version) ([]Term, error)
}

// Solve picks a version for rootID and every package it transitively depends
// on. The result always contains rootID at rootVersion. When the constraints
// cannot be met the error is a *NoSolutionError; any other error came from
// the provider or ctx.
func Solve(ctx context.Context, p Provider, rootID string, rootVersion semver.Version) (map[string]semver.Version, error) {
	s := &solver{
		ctx:        ctx,
		p:          p,
		root:       atom{id: rootID, v: rootVersion},
		candidates: make(map[string][]semver.Version),
		deps:       make(map[string][]Term),
		failIndex:  make(map[string]int),
		sel: &selection{
			deps: make(map[string][]dependency),
		},
	}
	s.unsel = &unselected{cmp: s.unselectedComparator}
	heap.Init(s.unsel)

	if _, err := s.getDependenciesOf(s.root); err != nil {
		return nil, err
	}
	if err := s.selectVersion(s.root); err != nil {
		return nil, err
	}

	if err := s.solve(); err != nil {
		return nil, err
	}

	out := make(map[string]semver.Version, len(s.sel.atoms))
	for _, a := range s.sel.atoms {
		out[a.id] = a.v
	}
	return out, nil
}

type solver struct {
	ctx      context.Context
	p        Provider
	root     atom
	sel      *selection
	unsel    *unselected
	versions []*versionQueue
	attempts int

	candidates map[string][]semver.Version
	deps       map[string][]Term

	failures  []error
	failIndex map[string]int
}

func (s *solver) solve() error {
	for {
		if err := s.ctx.Err(); err != nil {
			return err
		}

		id, has := s.nextUnselected()
		if !has {
			return nil
		}

		logger.Debug("Beginning step in solve loop", logger.Fields{
			"attempts": s.attempts,
			"name":     id,
			"selcount": len(s.sel.atoms),
		})

		q, err := s.createVersionQueue(id)
		if err != nil {
			return err
		}

		found, err := s.findValidVersion(q)
		if err != nil {
			return err
		}
		if !found {
			ok, err := s.backtrack()
			if err != nil {
				return err
			}
			if !ok {
				return &NoSolutionError{Root: s.root.id, Failures: s.failures}
			}
			continue
		}

		cur, _ := q.current()
		logger.Debug("Accepted package version", logger.Fields{"name": id, "version": cur.String()})
		if err := s.selectVersion(atom{id: id, v: cur}); err != nil {
			return err
		}
		s.versions = append(s.versions, q)
	}
}

func (s *solver) createVersionQueue(id string) (*versionQueue, error) {
	candidates, err := s.getCandidates(id)
	if err != nil {
		return nil, err
	}
	return newVersionQueue(id, candidates), nil
}

// findValidVersion walks q until it finds a version that satisfies the
// current state of the selection. A false result with a nil error means the
// queue ran dry.
func (s *solver) findValidVersion(q *versionQueue) (bool, error) {
	faillen := len(q.fails)
	for {
		cur, ok := q.current()
		if !ok {
			break
		}
		err := s.satisfiable(atom{id: q.id, v: cur})
		if err == nil {
			return true, nil
		}
		fail, ok := err.(failure)
		if !ok {
			return false, err
		}
		logger.Debug("Rejected package version", logger.Fields{
			"name":    q.id,
			"version": cur.String(),
			"reason":  fail.Error(),
		})
		q.advance(fail)
	}

	s.recordFailure(&noVersionError{id: q.id, fails: slices.Clone(q.fails[faillen:])})
	return false, nil
}

// satisfiable reports whether introducing a would keep every range in the
// selection satisfied. A failure explains why it would not; any other error
// came from the provider.
func (s *solver) satisfiable(a atom) error {
	constraint := s.sel.getConstraint(a.id)
	if !constraint.Contains(a.v) {
		var failparent []dependency
		for _, d := range s.sel.getDependenciesOn(a.id) {
			if !d.dep.Range.Contains(a.v) {
				failparent = append(failparent, d)
			}
		}
		return &versionNotAllowedFailure{goal: a, failparent: failparent}
	}

	deps, err := s.getDependenciesOf(a)
	if err != nil {
		return err
	}

	for _, dep := range deps {
		if dep.ID == a.id {
			if !dep.Range.Contains(a.v) {
				return &constraintNotAllowedFailure{goal: dependency{depender: a, dep: dep}, v: a.v}
			}
			continue
		}

		constraint := s.sel.getConstraint(dep.ID)
		if constraint.Intersect(dep.Range).IsEmpty() {
			var failsib []dependency
			for _, sibling := range s.sel.getDependenciesOn(dep.ID) {
				if sibling.dep.Range.Intersect(dep.Range).IsEmpty() {
					failsib = append(failsib, sibling)
				}
			}
			return &disjointConstraintFailure{goal: dependency{depender: a, dep: dep}, failsib: failsib}
		}

		if selected, ok := s.sel.selected(dep.ID); ok && !dep.Range.Contains(selected) {
			return &constraintNotAllowedFailure{goal: dependency{depender: a, dep: dep}, v: selected}
		}
	}
	return nil
}

// backtrack unwinds the most recent decisions until one of them can move on
// to another acceptable version. It returns false when every decision has
// been exhausted.
func (s *solver) backtrack() (bool, error) {
	logger.Debug("Beginning backtracking", logger.Fields{
		"selcount":   len(s.sel.atoms),
		"queuecount": len(s.versions),
		"attempts":   s.attempts,
	})

	for len(s.versions) > 0 {
		if err := s.ctx.Err(); err != nil {
			return false, err
		}

		q := s.versions[len(s.versions)-1]
		s.unselectLast()

		q.advance(nil)
		if !q.isExhausted() {
			found, err := s.findValidVersion(q)
			if err != nil {
				return false, err
			}
			if found {
				cur, _ := q.current()
				logger.Debug("Backtracking found valid version", logger.Fields{"name": q.id, "version": cur.String()})
				if err := s.selectVersion(atom{id: q.id, v: cur}); err != nil {
					return false, err
				}
				s.attempts++
				return true, nil
			}
		}

		logger.Debug("Backtracking popped off package", logger.Fields{"name": q.id})
		s.versions[len(s.versions)-1] = nil
		s.versions = s.versions[:len(s.versions)-1]
	}
	return false, nil
}

func (s *solver) nextUnselected() (string, bool) {
	if len(s.unsel.sl) > 0 {
		return s.unsel.sl[0], true
	}
	return "", false
}

// unselectedComparator orders the pending packages: fewest candidates first,
// then by id.
func (s *solver) unselectedComparator(a, b string) bool {
	if a == b {
		return false
	}
	na, nb := len(s.candidates[a]), len(s.candidates[b])
	if na != nb {
		return na < nb
	}
	return a < b
}

func (s *solver) selectVersion(a atom) error {
	s.unsel.remove(a.id)
	s.sel.atoms = append(s.sel.atoms, a)

	deps, err := s.getDependenciesOf(a)
	if err != nil {
		return err
	}

	for _, dep := range deps {
		siblingsAndSelf := append(s.sel.getDependenciesOn(dep.ID), dependency{depender: a, dep: dep})
		s.sel.deps[dep.ID] = siblingsAndSelf

		if len(siblingsAndSelf) > 1 {
			continue
		}
		if _, ok := s.sel.selected(dep.ID); ok {
			continue
		}
		if _, err := s.getCandidates(dep.ID); err != nil {
			return err
		}
		heap.Push(s.unsel, dep.ID)
	}
	return nil
}

func (s *solver) unselectLast() {
	a := s.sel.atoms[len(s.sel.atoms)-1]
	s.sel.atoms = s.sel.atoms[:len(s.sel.atoms)-1]
	heap.Push(s.unsel, a.id)

	// Dependencies of a selected atom are always cached.
	for _, dep := range s.deps[depKey(a)] {
		siblings := s.sel.getDependenciesOn(dep.ID)
		siblings = siblings[:len(siblings)-1]
		s.sel.deps[dep.ID] = siblings

		if len(siblings) == 0 {
			if _, ok := s.sel.selected(dep.ID); !ok {
				s.unsel.remove(dep.ID)
			}
		}
	}
}

func (s *solver) getCandidates(id string) ([]semver.Version, error) {
	if c, ok := s.candidates[id]; ok {
		return c, nil
	}
	vs, err := s.p.Versions(s.ctx, id)
	if err != nil {
		return nil, err
	}
	out := slices.Clone(vs)
	slices.SortFunc(out, func(a, b semver.Version) int { return b.Compare(a) })
	out = slices.CompactFunc(out, semver.Version.Equal)
	s.candidates[id] = out
	return out, nil
}

func (s *solver) getDependenciesOf(a atom) ([]Term, error) {
	key := depKey(a)
	if d, ok := s.deps[key]; ok {
		return d, nil
	}
	d, err := s.p.Dependencies(s.ctx, a.id, a.v)
	if err != nil {
		return nil, err
	}
	s.deps[key] = d
	return d, nil
}

// recordFailure keeps the latest failure per package, in first-seen order.
func (s *solver) recordFailure(err *noVersionError) {
	if i, ok := s.failIndex[err.id]; ok {
		s.failures[i] = err
		return
	}
	s.failIndex[err.id] = len(s.failures)
	s.failures = append(s.failures, err)
}

func depKey(a atom) string {
	return a.id + "@" + a.v.String()
}

type selection struct {
	atoms []atom
	deps  map[string][]dependency
}

func (s *selection) getDependenciesOn(id string) []dependency {
	return s.deps[id]
}

// getConstraint intersects the ranges every selected depender places on id.
func (s *selection) getConstraint(id string) semver.Interval {
	c := semver.Full()
	for _, d := range s.deps[id] {
		c = c.Intersect(d.dep.Range)
	}
	return c
}

func (s *selection) selected(id string) (semver.Version, bool) {
	for _, a := range s.atoms {
		if a.id == id {
			return a.v, true
		}
	}
	return semver.Version{}, false
}

func (u *unselected) remove(id string) {
	if i := u.index(id); i >= 0 {
		heap.Remove(u, i)
	}
}
