package cli

import (
	"fmt"

	"github.com/glorpus-work/qpkg/pkg/cache"
	"github.com/spf13/cobra"
)

// NewCacheCmd creates the cache command with subcommands.
func NewCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the local package cache",
		Long:  "Clear, show information about, and locate the local package cache",
	}

	cmd.AddCommand(
		newCacheClearCmd(),
		newCacheInfoCmd(),
		newCacheDirCmd(),
	)

	return cmd
}

func newCacheClearCmd() *cobra.Command {
	var (
		all     bool
		index   bool
		staging bool
	)

	cmd := &cobra.Command{
		Use:     "clear",
		Aliases: []string{"clean"},
		Short:   "Clear the package cache",
		Long: `Remove cached files to free up disk space. Without flags the whole cache,
including the index of installed packages, is removed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCacheClear(cmd, all, index, staging)
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "remove everything")
	cmd.Flags().BoolVar(&index, "index", false, "remove only the index of installed packages")
	cmd.Flags().BoolVar(&staging, "staging", false, "remove only leftover download and extraction directories")

	return cmd
}

func newCacheInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show cache information",
		Args:  cobra.NoArgs,
		RunE:  runCacheInfo,
	}
}

func newCacheDirCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dir",
		Short: "Show the cache directory path",
		Args:  cobra.NoArgs,
		RunE:  runCacheDir,
	}
}

func newCacheOperation() (*cache.Operation, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return cache.NewOperation(cache.NewManager(cfg.GetCacheDir(), cfg.GetIndexPath())), nil
}

func runCacheClear(cmd *cobra.Command, all, index, staging bool) error {
	op, err := newCacheOperation()
	if err != nil {
		return err
	}
	msg, err := op.Clean(all, index, staging)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), msg)
	return nil
}

func runCacheInfo(cmd *cobra.Command, _ []string) error {
	op, err := newCacheOperation()
	if err != nil {
		return err
	}
	info, err := op.GetInfo()
	if err != nil {
		return err
	}
	_, _ = fmt.Fprint(cmd.OutOrStdout(), info)
	return nil
}

func runCacheDir(cmd *cobra.Command, _ []string) error {
	op, err := newCacheOperation()
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), op.GetDirectory())
	return nil
}
