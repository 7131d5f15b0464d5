package repository

import (
	"fmt"

	"github.com/glorpus-work/qpkg/pkg/errors"
	qhttp "github.com/glorpus-work/qpkg/pkg/http"
)

// Common repository errors.
var (
	// ErrUnexpectedStatus is returned when the registry answers with a non-2xx status other than 404.
	ErrUnexpectedStatus = qhttp.ErrUnexpectedStatus

	// ErrRegistryURLMissing is returned when a registry is constructed without a base URL.
	ErrRegistryURLMissing = fmt.Errorf("registry URL cannot be empty")

	// ErrPackageIDEmpty is returned when a lookup is made with an empty package id.
	ErrPackageIDEmpty = fmt.Errorf("package id cannot be empty")
)

// Wrap wraps an error with additional context specific to the repository package.
func Wrap(err error, msg string) error {
	return errors.Wrap(err, "repository: "+msg)
}

// Wrapf wraps an error with additional formatted context specific to the repository package.
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, "repository: "+format, args...)
}
