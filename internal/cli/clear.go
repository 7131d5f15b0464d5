package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/glorpus-work/qpkg/internal/logger"
	"github.com/glorpus-work/qpkg/pkg/fsutil"
	"github.com/glorpus-work/qpkg/pkg/model"
	"github.com/spf13/cobra"
)

// NewClearCmd creates the clear command.
func NewClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove the restored dependencies from the project",
		Long: `Remove the project's dependencies directory and qpkg.shared.json.
Linked packages are unlinked; the cached copies they point to are kept.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runClear(cmd)
		},
	}
}

func runClear(cmd *cobra.Command) error {
	manifest, err := readManifest()
	if err != nil {
		return err
	}

	depsDir := filepath.Join(projectDir, manifest.DependenciesDir)
	ok, err := fsutil.Exists(depsDir)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", depsDir, err)
	}
	if ok {
		contains, err := containsPath(depsDir, projectDir)
		if err != nil {
			return err
		}
		if contains {
			return fmt.Errorf("%w: %s", errUnsafeDependenciesDir, manifest.DependenciesDir)
		}
		// RemoveAll unlinks symlinks without descending into their targets.
		if err := os.RemoveAll(depsDir); err != nil {
			return fmt.Errorf("failed to remove %s: %w", depsDir, err)
		}
		logger.Debug("Removed dependencies directory", logger.Fields{"path": depsDir})
	}

	if err := fsutil.RemoveIfExists(filepath.Join(projectDir, model.SharedFile)); err != nil {
		return fmt.Errorf("failed to remove %s: %w", model.SharedFile, err)
	}

	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Cleared restored dependencies")
	return nil
}

// containsPath reports whether dir is path or one of its ancestors, after
// resolving symlinks in both.
func containsPath(dir, path string) (bool, error) {
	resolvedDir, err := resolvePath(dir)
	if err != nil {
		return false, err
	}
	resolvedPath, err := resolvePath(path)
	if err != nil {
		return false, err
	}
	if resolvedDir == resolvedPath {
		return true, nil
	}
	rel, err := filepath.Rel(resolvedDir, resolvedPath)
	if err != nil {
		return false, nil
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)), nil
}

func resolvePath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	return resolved, nil
}
