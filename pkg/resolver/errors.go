package resolver

import (
	"fmt"

	"github.com/glorpus-work/qpkg/pkg/errors"
	"github.com/glorpus-work/qpkg/pkg/solver"
)

// ErrPackageVanished is returned when a repository listed a version during
// resolution but could not serve it afterwards.
var ErrPackageVanished = fmt.Errorf("package listed but not available")

// UnsatisfiableError means no set of versions meets every dependency range.
// Report is the solver's explanation, naming the packages and ranges in
// conflict.
type UnsatisfiableError struct {
	Root     string
	Report   string
	Packages []string

	cause *solver.NoSolutionError
}

func newUnsatisfiableError(root string, cause *solver.NoSolutionError) *UnsatisfiableError {
	return &UnsatisfiableError{
		Root:     root,
		Report:   cause.Report(),
		Packages: cause.Packages(),
		cause:    cause,
	}
}

func (e *UnsatisfiableError) Error() string {
	return fmt.Sprintf("failed to resolve dependencies of %s:\n%s", e.Root, e.Report)
}

func (e *UnsatisfiableError) Unwrap() error {
	return e.cause
}

// Wrap wraps an error with additional context specific to the resolver package.
func Wrap(err error, msg string) error {
	return errors.Wrap(err, "resolver: "+msg)
}

// Wrapf wraps an error with additional formatted context specific to the resolver package.
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, "resolver: "+format, args...)
}
