// Package config loads qpkg settings. Settings come from a global YAML file in
// the user config directory, overridden field by field by an optional
// qpkg.settings.yaml in the project directory.
package config

import (
	"bytes"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glorpus-work/qpkg/pkg/errors"
	"github.com/glorpus-work/qpkg/pkg/fsutil"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Settings Settings `yaml:"settings"`
}

// Settings represents general application settings. Zero values mean "not
// set" so that a local file only overrides what it names.
type Settings struct {
	// Cache settings
	CacheDir string `yaml:"cache_dir,omitempty"`
	Symlink  *bool  `yaml:"symlink,omitempty"` // link cached packages into projects instead of copying

	// Network settings
	Timeout       time.Duration `yaml:"timeout,omitempty"`
	RegistryURL   string        `yaml:"registry_url,omitempty"`
	RegistryToken string        `yaml:"registry_token,omitempty"`
	RegistryUser  string        `yaml:"registry_username,omitempty"`
	RegistryPass  string        `yaml:"registry_password,omitempty"`
	MaxConcurrent int           `yaml:"max_concurrent_downloads,omitempty"`

	// Build settings
	NDKPath string `yaml:"ndk_path,omitempty"`

	// Output settings
	LogLevel string `yaml:"log_level,omitempty"` // debug, info, warn, error
}

// Default configuration values.
const (
	// DefaultTimeout is the default timeout for registry requests.
	DefaultTimeout = 5 * time.Second

	// DefaultRegistryURL is the public package index.
	DefaultRegistryURL = "https://qpackages.com"

	// DefaultMaxConcurrent is the default number of parallel downloads.
	DefaultMaxConcurrent = 4

	// DefaultLogLevel is the default log level.
	DefaultLogLevel = "info"

	// GlobalFile is the name of the global settings file.
	GlobalFile = "config.yaml"

	// LocalFile is the name of the per-project settings file.
	LocalFile = "qpkg.settings.yaml"

	// IndexFile is the name of the cache index inside the cache root.
	IndexFile = "qpkg.repository.json"

	// YAMLIndent is the number of spaces to use for YAML indentation.
	YAMLIndent = 2
)

// DefaultConfig returns a configuration with every setting filled in.
func DefaultConfig() *Config {
	cacheDir, err := fsutil.GetCacheDir()
	if err != nil {
		cacheDir = filepath.Join(os.TempDir(), fsutil.AppName, "cache")
	}
	symlink := true
	return &Config{
		Settings: Settings{
			CacheDir:      cacheDir,
			Symlink:       &symlink,
			Timeout:       DefaultTimeout,
			RegistryURL:   DefaultRegistryURL,
			MaxConcurrent: DefaultMaxConcurrent,
			LogLevel:      DefaultLogLevel,
		},
	}
}

// LoadConfig loads a single settings file, applies defaults and validates
// the result. A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return finish(cfg)
}

// LoadConfigFromReader loads configuration from an io.Reader.
func LoadConfigFromReader(reader io.Reader) (*Config, error) {
	cfg, err := decode(reader)
	if err != nil {
		return nil, err
	}
	return finish(cfg)
}

// LoadCombined reads the global file and the local file, lets every field
// set in the local file win, then applies defaults and validates. Either
// file may be missing.
func LoadCombined(globalPath, localPath string) (*Config, error) {
	global, err := readFile(globalPath)
	if err != nil {
		return nil, err
	}
	local, err := readFile(localPath)
	if err != nil {
		return nil, err
	}
	global.Merge(local)
	return finish(global)
}

// Load reads the user's global settings combined with the settings of the
// project in projectDir.
func Load(projectDir string) (*Config, error) {
	globalPath, err := GetDefaultConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadCombined(globalPath, LocalConfigPath(projectDir))
}

// readFile decodes path without applying defaults. A missing file is an
// empty config.
func readFile(path string) (*Config, error) {
	if path == "" {
		return nil, errors.ErrEmptyConfigPath
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrInvalidConfigPath, err.Error())
	}

	file, err := os.Open(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, errors.Wrapf(err, "failed to open config file: %s", path)
	}
	defer func() { _ = file.Close() }()

	cfg, err := decode(file)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	return cfg, nil
}

func decode(reader io.Reader) (*Config, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config data")
	}

	var config Config
	if len(bytes.TrimSpace(data)) == 0 {
		return &config, nil
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, errors.Wrap(errors.ErrConfigParse, err.Error())
	}
	return &config, nil
}

func finish(cfg *Config) (*Config, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(errors.ErrConfigValidation, err.Error())
	}
	return cfg, nil
}

// Merge copies every setting that is set in other over c.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}
	o := other.Settings
	if o.CacheDir != "" {
		c.Settings.CacheDir = o.CacheDir
	}
	if o.Symlink != nil {
		v := *o.Symlink
		c.Settings.Symlink = &v
	}
	if o.Timeout != 0 {
		c.Settings.Timeout = o.Timeout
	}
	if o.RegistryURL != "" {
		c.Settings.RegistryURL = o.RegistryURL
	}
	if o.RegistryToken != "" {
		c.Settings.RegistryToken = o.RegistryToken
	}
	if o.RegistryUser != "" {
		c.Settings.RegistryUser = o.RegistryUser
		c.Settings.RegistryPass = o.RegistryPass
	}
	if o.MaxConcurrent != 0 {
		c.Settings.MaxConcurrent = o.MaxConcurrent
	}
	if o.NDKPath != "" {
		c.Settings.NDKPath = o.NDKPath
	}
	if o.LogLevel != "" {
		c.Settings.LogLevel = o.LogLevel
	}
}

// SaveConfig writes the configuration to path atomically.
func (c *Config) SaveConfig(path string) error {
	if path == "" {
		return errors.ErrEmptyConfigPath
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return errors.Wrap(errors.ErrInvalidConfigPath, err.Error())
	}
	if err := os.MkdirAll(filepath.Dir(absPath), fsutil.DirModeDefault); err != nil {
		return errors.Wrap(errors.ErrConfigDirectory, err.Error())
	}

	data, err := c.ToYAML()
	if err != nil {
		return err
	}
	if err := fsutil.WriteFileAtomic(absPath, data, fsutil.FileModeDefault); err != nil {
		return errors.Wrap(errors.ErrConfigFileCreate, err.Error())
	}
	return nil
}

// ToYAML converts the config to YAML bytes.
func (c *Config) ToYAML() ([]byte, error) {
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(YAMLIndent)
	if err := encoder.Encode(c); err != nil {
		return nil, errors.Wrap(errors.ErrConfigEncode, err.Error())
	}
	if err := encoder.Close(); err != nil {
		return nil, errors.Wrap(errors.ErrConfigEncode, err.Error())
	}
	return buf.Bytes(), nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c == nil {
		return errors.ErrConfigValidation
	}
	s := c.Settings
	if s.Timeout < 0 {
		return errors.ErrTimeoutNegative
	}
	if s.MaxConcurrent < 0 {
		return errors.Wrapf(errors.ErrConfigValidation, "max_concurrent_downloads must be positive, got %d", s.MaxConcurrent)
	}
	if s.RegistryURL != "" {
		u, err := url.Parse(s.RegistryURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return errors.Wrapf(errors.ErrRegistryURLInvalid, "%q", s.RegistryURL)
		}
	}
	if s.LogLevel != "" {
		validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
		if !validLevels[strings.ToLower(s.LogLevel)] {
			return errors.ErrInvalidLogLevelWithDetails(s.LogLevel)
		}
	}
	return nil
}

// GetDefaultConfigPath returns the global settings file path.
func GetDefaultConfigPath() (string, error) {
	configDir, err := fsutil.GetConfigDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get user config directory")
	}
	return filepath.Join(configDir, GlobalFile), nil
}

// LocalConfigPath returns the project settings file below projectDir.
func LocalConfigPath(projectDir string) string {
	return filepath.Join(projectDir, LocalFile)
}

// GetCacheDir returns the cache root.
func (c *Config) GetCacheDir() string {
	return c.Settings.CacheDir
}

// GetIndexPath returns the location of the cache index inside the cache root.
func (c *Config) GetIndexPath() string {
	return filepath.Join(c.Settings.CacheDir, IndexFile)
}

// SymlinkEnabled reports whether cached packages are linked into projects.
func (c *Config) SymlinkEnabled() bool {
	return c.Settings.Symlink == nil || *c.Settings.Symlink
}

// applyDefaults fills in missing values with defaults.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()

	if c.Settings.CacheDir == "" {
		c.Settings.CacheDir = defaults.Settings.CacheDir
	}
	if c.Settings.Symlink == nil {
		c.Settings.Symlink = defaults.Settings.Symlink
	}
	if c.Settings.Timeout == 0 {
		c.Settings.Timeout = defaults.Settings.Timeout
	}
	if c.Settings.RegistryURL == "" {
		c.Settings.RegistryURL = defaults.Settings.RegistryURL
	}
	if c.Settings.MaxConcurrent == 0 {
		c.Settings.MaxConcurrent = defaults.Settings.MaxConcurrent
	}
	if c.Settings.LogLevel == "" {
		c.Settings.LogLevel = defaults.Settings.LogLevel
	}
}
