// Package http is the registry transport: plain GET requests whose outcome is
// one of found, not found, or failed. It never retries.
package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/glorpus-work/qpkg/pkg/errors"
)

// DefaultUserAgent identifies qpkg to registries.
const DefaultUserAgent = "qpkg/1.0"

// ErrUnexpectedStatus is returned for any non-2xx response other than 404.
var ErrUnexpectedStatus = fmt.Errorf("unexpected status code")

// HTTPClient handles HTTP operations for repositories.
type HTTPClient struct {
	client    *http.Client
	userAgent string
	auth      Authenticator
}

// NewHTTPClient creates a new HTTP client whose requests are bounded by timeout.
func NewHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client: &http.Client{
			Timeout: timeout,
		},
		userAgent: DefaultUserAgent,
	}
}

// WithAuth makes every request carry the credentials of auth. Use a separate
// client for hosts that must not see them.
func (hc *HTTPClient) WithAuth(auth Authenticator) *HTTPClient {
	hc.auth = auth
	return hc
}

// WithUserAgent overrides the User-Agent header.
func (hc *HTTPClient) WithUserAgent(ua string) *HTTPClient {
	hc.userAgent = ua
	return hc
}

func (hc *HTTPClient) get(ctx context.Context, url, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("User-Agent", hc.userAgent)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	if hc.auth != nil {
		if err := hc.auth.Apply(req); err != nil {
			return nil, errors.Wrap(err, "failed to authenticate request")
		}
	}

	resp, err := hc.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "request to %s failed", url)
	}
	return resp, nil
}

// GetJSON implements Client.
func (hc *HTTPClient) GetJSON(ctx context.Context, url string, out any) (bool, error) {
	resp, err := hc.get(ctx, url, "application/json")
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return false, fmt.Errorf("%w: %d from %s", ErrUnexpectedStatus, resp.StatusCode, url)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, errors.Wrapf(err, "failed to decode response from %s", url)
	}
	return true, nil
}

// Download implements Client.
func (hc *HTTPClient) Download(ctx context.Context, url string, w io.Writer) error {
	resp, err := hc.get(ctx, url, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %d from %s", ErrUnexpectedStatus, resp.StatusCode, url)
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		return errors.Wrap(err, "failed to write downloaded data")
	}
	return nil
}
