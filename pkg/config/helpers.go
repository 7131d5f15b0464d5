package config

import (
	"fmt"
	"strconv"
	"time"
)

// Keys lists the settings SetValue and GetValue understand, in display order.
var Keys = []string{"cache_dir", "symlink", "timeout", "registry_url", "registry_token", "registry_username", "registry_password", "max_concurrent_downloads", "ndk_path", "log_level"}

// SetValue sets a configuration value by key
// Supported keys:
//   - cache_dir: string - Path to the cache directory
//   - symlink: bool - Link cached packages into projects
//   - timeout: duration - Registry request timeout (e.g. 5s, or plain milliseconds)
//   - registry_url: string - Base URL of the package registry
//   - registry_token: string - Bearer token sent to the registry
//   - registry_username, registry_password: string - Basic credentials, used when no token is set
//   - max_concurrent_downloads: int - Parallel downloads during restore
//   - ndk_path: string - Android NDK location written to ndkpath.txt
//   - log_level: string - Logging level (debug, info, warn, error)
func (c *Config) SetValue(key, value string) error {
	switch key {
	case "cache_dir":
		c.Settings.CacheDir = value
	case "symlink":
		boolVal, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean value for %s: %s", key, value)
		}
		c.Settings.Symlink = &boolVal
	case "timeout":
		d, err := parseTimeout(value)
		if err != nil {
			return fmt.Errorf("invalid duration for %s: %s", key, value)
		}
		c.Settings.Timeout = d
	case "registry_url":
		c.Settings.RegistryURL = value
	case "registry_token":
		c.Settings.RegistryToken = value
	case "registry_username":
		c.Settings.RegistryUser = value
	case "registry_password":
		c.Settings.RegistryPass = value
	case "max_concurrent_downloads":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer value for %s: %s", key, value)
		}
		c.Settings.MaxConcurrent = n
	case "ndk_path":
		c.Settings.NDKPath = value
	case "log_level":
		c.Settings.LogLevel = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return c.Validate()
}

// GetValue returns the value of key as a string.
func (c *Config) GetValue(key string) (string, error) {
	switch key {
	case "cache_dir":
		return c.Settings.CacheDir, nil
	case "symlink":
		return strconv.FormatBool(c.SymlinkEnabled()), nil
	case "timeout":
		return c.Settings.Timeout.String(), nil
	case "registry_url":
		return c.Settings.RegistryURL, nil
	case "registry_token":
		return c.Settings.RegistryToken, nil
	case "registry_username":
		return c.Settings.RegistryUser, nil
	case "registry_password":
		return c.Settings.RegistryPass, nil
	case "max_concurrent_downloads":
		return strconv.Itoa(c.Settings.MaxConcurrent), nil
	case "ndk_path":
		return c.Settings.NDKPath, nil
	case "log_level":
		return c.Settings.LogLevel, nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

// ToMap returns every setting keyed by its YAML name, with the registry
// secrets masked. This is useful for displaying the configuration.
func (c *Config) ToMap() map[string]string {
	result := make(map[string]string, len(Keys))
	for _, key := range Keys {
		value, _ := c.GetValue(key)
		result[key] = value
	}
	for _, secret := range []string{"registry_token", "registry_password"} {
		if result[secret] != "" {
			result[secret] = "********"
		}
	}
	return result
}

// parseTimeout accepts a Go duration or a bare number of milliseconds.
func parseTimeout(value string) (time.Duration, error) {
	if ms, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	return time.ParseDuration(value)
}
