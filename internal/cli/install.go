package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/glorpus-work/qpkg/internal/logger"
	"github.com/glorpus-work/qpkg/pkg/fsutil"
	"github.com/glorpus-work/qpkg/pkg/model"
	"github.com/glorpus-work/qpkg/pkg/repository"
	"github.com/glorpus-work/qpkg/pkg/resolver"
	"github.com/spf13/cobra"
)

const ndkPathFile = "ndkpath.txt"

// NewInstallCmd creates the install command.
func NewInstallCmd() *cobra.Command {
	var cmakeBuild bool

	cmd := &cobra.Command{
		Use:   "install [binary] [debug-binary]",
		Short: "Install the project into the local cache",
		Long: `Resolve the project, then copy its shared directory, manifest and binaries
into the local cache so other projects can depend on it without the registry.

Without explicit paths the binaries are taken from the CMake build
directories, ./build/<so name> and ./build/debug/<so name>.`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var binary, debugBinary string
			if len(args) > 0 {
				binary = args[0]
			}
			if len(args) > 1 {
				debugBinary = args[1]
			}
			return runInstall(cmd, binary, debugBinary, cmakeBuild)
		},
	}

	cmd.Flags().BoolVar(&cmakeBuild, "cmake-build", true, "look for binaries in the CMake build directories")

	return cmd
}

func runInstall(cmd *cobra.Command, binary, debugBinary string, cmakeBuild bool) error {
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

	for _, dir := range []string{"src", "include", manifest.SharedDir} {
		if err := fsutil.EnsureDir(filepath.Join(projectDir, dir)); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	if cfg.Settings.NDKPath != "" {
		path := filepath.Join(projectDir, ndkPathFile)
		if err := os.WriteFile(path, []byte(cfg.Settings.NDKPath), fsutil.FileModeDefault); err != nil {
			return fmt.Errorf("failed to write %s: %w", ndkPathFile, err)
		}
	}

	shared, err := resolver.Restore(ctx, manifest, repository.DefaultRepositories(local, registry))
	if err != nil {
		return resolveError(cmd, err)
	}
	if err := model.WriteShared(filepath.Join(projectDir, model.SharedFile), shared); err != nil {
		return err
	}

	if !manifest.Info.AdditionalData.HeadersOnly && cmakeBuild {
		if binary == "" {
			binary = filepath.Join(projectDir, "build", manifest.SoName())
		}
		if debugBinary == "" {
			debugBinary = filepath.Join(projectDir, "build", "debug", manifest.SoName())
		}
	}

	logger.Info("Publishing package to the local cache", logger.Fields{
		"id":      manifest.Info.ID,
		"version": manifest.Info.Version.String(),
	})
	if err := local.Install(ctx, shared, projectDir, binary, debugBinary); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Installed %s\n", styledPackage(manifest.Info.ID, manifest.Info.Version))
	return nil
}
