package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthenticators(t *testing.T) {
	tests := []struct {
		name     string
		auth     Authenticator
		expected string
	}{
		{
			name:     "bearer token",
			auth:     BearerAuth{Token: "s3cret"},
			expected: "Bearer s3cret",
		},
		{
			name:     "basic credentials",
			auth:     BasicAuth{Username: "user", Password: "pass"},
			expected: "Basic dXNlcjpwYXNz", // base64("user:pass")
		},
		{
			name:     "empty basic credentials",
			auth:     BasicAuth{},
			expected: "Basic Og==",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodGet, "http://example.com", http.NoBody)
			require.NoError(t, err)
			require.NoError(t, tt.auth.Apply(req))
			assert.Equal(t, tt.expected, req.Header.Get("Authorization"))
		})
	}
}

func TestWithAuth(t *testing.T) {
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte("{}"))
	}))
	t.Cleanup(srv.Close)

	var out map[string]any
	_, err := NewHTTPClient(5*time.Second).WithAuth(BearerAuth{Token: "tok"}).GetJSON(context.Background(), srv.URL, &out)
	require.NoError(t, err)
	_, err = NewHTTPClient(5*time.Second).GetJSON(context.Background(), srv.URL, &out)
	require.NoError(t, err)

	assert.Equal(t, []string{"Bearer tok", ""}, seen)
}
