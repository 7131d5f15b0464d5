// Package cli implements the qpkg command line.
package cli

import (
	"fmt"

	"github.com/glorpus-work/qpkg/internal/logger"
	"github.com/spf13/cobra"
)

// Values of the persistent flags, shared by all subcommands.
var (
	configPath string
	projectDir string
	verbose    bool
	logFormat  string
)

// NewRootCmd builds the qpkg command tree.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "qpkg",
		Short: "Package manager for native mods",
		Long: `qpkg resolves the dependencies of a native mod project against the
local package cache and the package registry, and keeps the cache populated.`,
		SilenceUsage:      true,
		PersistentPreRunE: setupLogging,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "global config file (default is the user config directory)")
	flags.StringVarP(&projectDir, "project", "C", ".", "project directory containing "+manifestName)
	flags.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	flags.StringVar(&logFormat, "log-format", string(logger.FormatText), "log output format (text, json)")

	cmd.AddCommand(
		NewRestoreCmd(),
		NewClearCmd(),
		NewInstallCmd(),
		NewListCmd(),
		NewDependencyCmd(),
		NewCacheCmd(),
		NewConfigCmd(),
		NewVersionCmd(),
	)

	return cmd
}

func setupLogging(*cobra.Command, []string) error {
	format := logger.OutputFormat(logFormat)
	if format != logger.FormatText && format != logger.FormatJSON {
		return fmt.Errorf("%w: %q", errUnknownLogFormat, logFormat)
	}

	level := "info"
	if cfg, err := loadConfig(); err == nil {
		level = cfg.Settings.LogLevel
	}
	if verbose {
		level = "debug"
	}
	logger.InitLogger(level, format)
	return nil
}
