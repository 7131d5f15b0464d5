package http

import "net/http"

// Authenticator adds credentials to outgoing registry requests.
type Authenticator interface {
	Apply(req *http.Request) error
}

// BearerAuth sends a registry token in the Authorization header.
type BearerAuth struct {
	Token string
}

// Apply implements Authenticator.
func (b BearerAuth) Apply(req *http.Request) error {
	req.Header.Set("Authorization", "Bearer "+b.Token)
	return nil
}

// BasicAuth sends HTTP basic credentials, for registries behind a proxy.
type BasicAuth struct {
	Username string
	Password string
}

// Apply implements Authenticator.
func (b BasicAuth) Apply(req *http.Request) error {
	req.SetBasicAuth(b.Username, b.Password)
	return nil
}
