package fsutil

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
)

const (
	// AppName is the name of the application used in paths
	AppName = "qpkg"
)

// GetConfigDir returns the platform-specific configuration directory for the application.
// On Linux: $XDG_CONFIG_HOME/qpkg or ~/.config/qpkg
// On macOS: ~/Library/Application Support/qpkg
// On Windows: %AppData%\qpkg
func GetConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, AppName), nil
}

// getAppDataDir returns the platform-specific base data directory
// On Linux: ~/.local/share
// On macOS: ~/Library/Application Support
// On Windows: %LOCALAPPDATA%
func getAppDataDir() (string, error) {
	switch runtime.GOOS {
	case "windows":
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
			return "", errors.New("LOCALAPPDATA environment variable not set")
		}
		return localAppData, nil

	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "Library", "Application Support"), nil

	default: // Linux, BSD, etc.
		if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
			return xdgDataHome, nil
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".local", "share"), nil
	}
}

// GetDataDir returns the platform-specific data directory for the application.
func GetDataDir() (string, error) {
	baseDir, err := getAppDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(baseDir, AppName), nil
}

// GetCacheDir returns the default artifact cache root: <data_dir>/cache.
func GetCacheDir() (string, error) {
	dataDir, err := GetDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, "cache"), nil
}
