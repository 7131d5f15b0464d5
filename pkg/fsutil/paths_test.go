package fsutil

import (
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataAndCacheDirs(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG layout only applies on Linux")
	}
	base := t.TempDir()
	t.Setenv("XDG_DATA_HOME", base)

	dataDir, err := GetDataDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, AppName), dataDir)

	cacheDir, err := GetCacheDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, AppName, "cache"), cacheDir)
}

func TestGetConfigDir(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG layout only applies on Linux")
	}
	base := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", base)

	dir, err := GetConfigDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, AppName), dir)
}
