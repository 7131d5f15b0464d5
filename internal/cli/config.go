package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/glorpus-work/qpkg/internal/logger"
	"github.com/glorpus-work/qpkg/pkg/config"
	"github.com/spf13/cobra"
)

// tabWidth is the padding between columns of config show.
const tabWidth = 2

// NewConfigCmd creates the config command with subcommands.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `View and modify qpkg settings. Changes are written to the global
config file; a project's qpkg.settings.yaml still overrides them.`,
	}

	cmd.AddCommand(
		newConfigShowCmd(),
		newConfigGetCmd(),
		newConfigSetCmd(),
		newConfigShortcutCmd("cache", "cache_dir", "DIR", "Show or set the cache directory"),
		newConfigShortcutCmd("timeout", "timeout", "DURATION", "Show or set the registry request timeout"),
	)

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE:  runConfigShow,
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get KEY",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigGet(cmd, args[0])
		},
	}
}

// Number of arguments expected by the set command.
const setCommandArgs = 2

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Set a configuration value",
		Long:  fmt.Sprintf("Set a configuration key to a specific value. Known keys: %v", config.Keys),
		Args:  cobra.ExactArgs(setCommandArgs),
		RunE: func(_ *cobra.Command, args []string) error {
			return runConfigSet(args[0], args[1])
		},
	}
}

// newConfigShortcutCmd is get without an argument and set with one, for a
// single key.
func newConfigShortcutCmd(use, key, argName, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " [" + argName + "]",
		Short: short,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return runConfigGet(cmd, key)
			}
			return runConfigSet(key, args[0])
		},
	}
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, tabWidth, ' ', 0)
	_, _ = fmt.Fprintln(tw, "SETTING\tVALUE")
	_, _ = fmt.Fprintln(tw, "-------\t-----")
	settings := cfg.ToMap()
	for _, key := range config.Keys {
		_, _ = fmt.Fprintf(tw, "%s\t%s\n", key, settings[key])
	}
	return tw.Flush()
}

func runConfigGet(cmd *cobra.Command, key string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	value, err := cfg.GetValue(key)
	if err != nil {
		return fmt.Errorf("failed to get configuration value: %w", err)
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), value)
	return nil
}

func runConfigSet(key, value string) error {
	path, err := globalConfigPath()
	if err != nil {
		return err
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return err
	}

	if err := cfg.SetValue(key, value); err != nil {
		return fmt.Errorf("failed to set configuration value: %w", err)
	}
	if err := cfg.SaveConfig(path); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	logger.Success("Configuration updated", logger.Fields{"key": key, "value": value, "file": path})
	return nil
}
