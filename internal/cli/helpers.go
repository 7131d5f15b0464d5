package cli

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/glorpus-work/qpkg/pkg/cache"
	"github.com/glorpus-work/qpkg/pkg/config"
	qhttp "github.com/glorpus-work/qpkg/pkg/http"
	"github.com/glorpus-work/qpkg/pkg/model"
	"github.com/glorpus-work/qpkg/pkg/repository"
	"github.com/glorpus-work/qpkg/pkg/resolver"
	"github.com/spf13/cobra"
)

const manifestName = model.ManifestFile

var (
	errUnknownLogFormat = errors.New("unknown log format")
	errUnsatisfiable    = errors.New("dependencies cannot be satisfied")
	errPackageNotFound  = errors.New("package not found in the registry")

	errUnsafeDependenciesDir = errors.New("dependencies directory contains the project directory")
)

// loadConfig reads the global settings, overridden by the project's local
// settings file.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadCombined(configPath, config.LocalConfigPath(projectDir))
	} else {
		cfg, err = config.Load(projectDir)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// globalConfigPath is where config subcommands persist their changes.
func globalConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.GetDefaultConfigPath()
}

func manifestPath() string {
	return filepath.Join(projectDir, model.ManifestFile)
}

func readManifest() (*model.Manifest, error) {
	return model.ReadManifest(manifestPath())
}

func newHTTPClient(cfg *config.Config) *qhttp.HTTPClient {
	return qhttp.NewHTTPClient(cfg.Settings.Timeout).WithUserAgent("qpkg/" + Version)
}

// registryAuth picks the registry credentials: the token when set, otherwise
// basic credentials when a username is set. It returns nil without either.
func registryAuth(cfg *config.Config) qhttp.Authenticator {
	s := cfg.Settings
	switch {
	case s.RegistryToken != "":
		return qhttp.BearerAuth{Token: s.RegistryToken}
	case s.RegistryUser != "":
		return qhttp.BasicAuth{Username: s.RegistryUser, Password: s.RegistryPass}
	}
	return nil
}

// newRegistry returns the configured registry. Only its requests carry the
// registry credentials; downloads use a client of their own.
func newRegistry(cfg *config.Config) (*repository.Registry, error) {
	client := newHTTPClient(cfg)
	if auth := registryAuth(cfg); auth != nil {
		client.WithAuth(auth)
	}
	return repository.NewRegistry(cfg.Settings.RegistryURL, client, nil)
}

// openCache loads the local artifact cache configured by cfg.
func openCache(cfg *config.Config) (*cache.FileRepository, error) {
	local := cache.NewFileRepository(cfg.GetCacheDir(), cfg.GetIndexPath())
	local.Concurrency = cfg.Settings.MaxConcurrent
	if err := local.Load(); err != nil {
		return nil, err
	}
	return local, nil
}

// resolveError prints the conflict report of an unsatisfiable resolution to
// stderr and replaces the error with a short one. Other errors pass through.
func resolveError(cmd *cobra.Command, err error) error {
	var unsat *resolver.UnsatisfiableError
	if !errors.As(err, &unsat) {
		return err
	}
	stderr := cmd.ErrOrStderr()
	_, _ = fmt.Fprintln(stderr, errorStyle.Render("Unable to resolve dependencies of "+unsat.Root+":"))
	_, _ = fmt.Fprintln(stderr, unsat.Report)
	return fmt.Errorf("%w: %s", errUnsatisfiable, unsat.Root)
}
