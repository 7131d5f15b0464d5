package cli

import (
	"encoding/json"
	"fmt"

	"github.com/glorpus-work/qpkg/internal/logger"
	"github.com/glorpus-work/qpkg/pkg/model"
	"github.com/glorpus-work/qpkg/pkg/repository"
	"github.com/glorpus-work/qpkg/pkg/semver"
	"github.com/spf13/cobra"
)

// NewDependencyCmd creates the dependency command with subcommands.
func NewDependencyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "dependency",
		Aliases: []string{"dep"},
		Short:   "Edit the dependencies in qpkg.json",
	}

	cmd.AddCommand(
		newDependencyAddCmd(),
		newDependencyRemoveCmd(),
	)

	return cmd
}

func newDependencyAddCmd() *cobra.Command {
	var (
		versionRange   string
		additionalData string
	)

	cmd := &cobra.Command{
		Use:   "add ID",
		Short: "Add a dependency",
		Long: `Add a dependency on a registry package. Without --version the range
^<latest version> is used.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDependencyAdd(cmd, args[0], versionRange, additionalData)
		},
	}

	cmd.Flags().StringVarP(&versionRange, "version", "V", "", "version range of the dependency")
	cmd.Flags().StringVar(&additionalData, "additional-data", "", "additional data for the dependency as a JSON object")

	return cmd
}

func newDependencyRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove ID",
		Short: "Remove a dependency",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runDependencyRemove(args[0])
		},
	}
}

func runDependencyAdd(cmd *cobra.Command, id, versionRange, additionalData string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	manifest, err := readManifest()
	if err != nil {
		return err
	}
	registry, err := newRegistry(cfg)
	if err != nil {
		return err
	}

	versions, err := registry.ListVersions(cmd.Context(), id)
	if err != nil {
		return err
	}
	latest, ok := repository.Latest(versions)
	if !ok {
		return fmt.Errorf("%w: %s", errPackageNotFound, id)
	}

	if versionRange == "" {
		versionRange = "^" + latest.String()
	}
	req, err := semver.ParseRequirement(versionRange)
	if err != nil {
		return err
	}

	dep := model.Dependency{ID: id, VersionRange: req}
	if additionalData != "" {
		if err := json.Unmarshal([]byte(additionalData), &dep.AdditionalData); err != nil {
			return fmt.Errorf("invalid additional data: %w", err)
		}
	}

	if err := manifest.AddDependency(dep); err != nil {
		return err
	}
	if err := model.WriteManifest(manifestPath(), manifest); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Added dependency %s %s\n", idStyle.Render(id), rangeStyle.Render(req.String()))
	return nil
}

func runDependencyRemove(id string) error {
	manifest, err := readManifest()
	if err != nil {
		return err
	}
	if !manifest.RemoveDependency(id) {
		logger.Warn("Dependency not found", logger.Fields{"id": id})
		return nil
	}
	if err := model.WriteManifest(manifestPath(), manifest); err != nil {
		return err
	}
	logger.Success("Removed dependency", logger.Fields{"id": id})
	return nil
}
