//go:generate mockgen -destination=mocks/http.go . Client
package http

import (
	"context"
	"io"
)

// Client defines the interface for HTTP operations against the package registry.
type Client interface {
	// GetJSON fetches url and decodes the JSON body into out. It reports
	// found=false without an error when the server answers 404.
	GetJSON(ctx context.Context, url string, out any) (found bool, err error)

	// Download streams the body of url into w.
	Download(ctx context.Context, url string, w io.Writer) error
}
