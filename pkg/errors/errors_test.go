package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrap(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		msg      string
		expected string
	}{
		{
			name:     "wrap nil error",
			err:      nil,
			msg:      "additional context",
			expected: "",
		},
		{
			name:     "wrap standard error",
			err:      errors.New("original error"),
			msg:      "additional context",
			expected: "additional context: original error",
		},
		{
			name:     "wrap sentinel",
			err:      ErrDownloadFailed,
			msg:      "fetching libx",
			expected: "fetching libx: download failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Wrap(tt.err, tt.msg)
			if tt.err == nil {
				assert.NoError(t, result)
				return
			}
			require.Error(t, result)
			assert.Equal(t, tt.expected, result.Error())
			assert.ErrorIs(t, result, tt.err)
		})
	}
}

func TestWrapf(t *testing.T) {
	assert.NoError(t, Wrapf(nil, "context %d", 1))

	err := Wrapf(ErrInvalidPath, "path %q in %s", "../x", "archive")
	assert.Equal(t, `path "../x" in archive: invalid path`, err.Error())
	assert.ErrorIs(t, err, ErrInvalidPath)

	double := Wrap(err, "outer")
	assert.ErrorIs(t, double, ErrInvalidPath)
}

func TestErrInvalidLogLevelWithDetails(t *testing.T) {
	err := ErrInvalidLogLevelWithDetails("loud")
	assert.ErrorIs(t, err, ErrInvalidLogLevel)
	assert.Contains(t, err.Error(), "'loud'")
	assert.Contains(t, err.Error(), "debug, info, warn, error")
}
