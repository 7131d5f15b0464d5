package cli

import (
	"fmt"
	"path/filepath"

	"github.com/glorpus-work/qpkg/internal/logger"
	"github.com/glorpus-work/qpkg/pkg/archive"
	"github.com/glorpus-work/qpkg/pkg/download"
	"github.com/glorpus-work/qpkg/pkg/model"
	"github.com/glorpus-work/qpkg/pkg/repository"
	"github.com/glorpus-work/qpkg/pkg/resolver"
	"github.com/spf13/cobra"
)

// NewRestoreCmd creates the restore command.
func NewRestoreCmd() *cobra.Command {
	var noLink bool

	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Resolve and fetch the project's dependencies",
		Long: `Resolve the dependencies declared in qpkg.json, write the result to
qpkg.shared.json and make sure every resolved package is in the local cache.
Cached packages are then linked into the project's dependencies directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRestore(cmd, !noLink)
		},
	}

	cmd.Flags().BoolVar(&noLink, "no-link", false, "do not link packages into the dependencies directory")

	return cmd
}

func runRestore(cmd *cobra.Command, link bool) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	manifest, err := readManifest()
	if err != nil {
		return err
	}
	local, err := openCache(cfg)
	if err != nil {
		return err
	}
	registry, err := newRegistry(cfg)
	if err != nil {
		return err
	}
	repo := repository.DefaultRepositories(local, registry)

	shared, err := resolver.Restore(ctx, manifest, repo)
	if err != nil {
		return resolveError(cmd, err)
	}

	sharedPath := filepath.Join(projectDir, model.SharedFile)
	if err := model.WriteShared(sharedPath, shared); err != nil {
		return err
	}

	pkgs := make([]*model.ResolvedPackage, 0, len(shared.RestoredDependencies))
	for _, dep := range shared.RestoredDependencies {
		pkg, err := repo.Fetch(ctx, dep.Dependency.ID, dep.Version)
		if err != nil {
			return err
		}
		if pkg == nil {
			return fmt.Errorf("%w: %s", resolver.ErrPackageVanished, dep.Dependency.ID)
		}
		pkgs = append(pkgs, pkg)
	}

	if err := local.Populate(ctx, pkgs, download.NewManager(newHTTPClient(cfg)), archive.NewManager()); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for i, dep := range shared.RestoredDependencies {
		if link && manifest.DependenciesDir != "" {
			depsDir := filepath.Join(projectDir, manifest.DependenciesDir)
			useRelease := dep.Dependency.AdditionalData.UseRelease
			if err := local.Link(pkgs[i], depsDir, useRelease, cfg.SymlinkEnabled()); err != nil {
				return err
			}
		}
		_, _ = fmt.Fprintf(out, "  %s\n", styledPackage(dep.Dependency.ID, dep.Version))
	}

	logger.Success("Restored dependencies", logger.Fields{
		"count": len(shared.RestoredDependencies),
		"file":  sharedPath,
	})
	return nil
}
