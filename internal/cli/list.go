package cli

import (
	"fmt"

	"github.com/glorpus-work/qpkg/pkg/repository"
	"github.com/spf13/cobra"
)

// NewListCmd creates the list command with subcommands.
func NewListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registry information",
	}

	cmd.AddCommand(newListVersionsCmd())

	return cmd
}

func newListVersionsCmd() *cobra.Command {
	var latest bool

	cmd := &cobra.Command{
		Use:   "versions ID",
		Short: "List the published versions of a package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runListVersions(cmd, args[0], latest)
		},
	}

	cmd.Flags().BoolVar(&latest, "latest", false, "only show the latest version")

	return cmd
}

func runListVersions(cmd *cobra.Command, id string, latest bool) error {
	cfg, err := loadConfig()
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
	if len(versions) == 0 {
		return fmt.Errorf("%w: %s", errPackageNotFound, id)
	}

	out := cmd.OutOrStdout()
	if latest {
		v, _ := repository.Latest(versions)
		_, _ = fmt.Fprintf(out, "The latest version for package %s is %s\n", idStyle.Render(id), versionStyle.Render(v.String()))
		return nil
	}

	_, _ = fmt.Fprintf(out, "%s\n", headerStyle.Render(fmt.Sprintf("List of versions for package %s:", id)))
	for _, v := range versions {
		_, _ = fmt.Fprintf(out, " - %s\n", versionStyle.Render(v.String()))
	}
	return nil
}
