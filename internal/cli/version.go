package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Build information, overridden through -ldflags at release time.
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// VersionString is the one-line build description.
func VersionString() string {
	return fmt.Sprintf("%s (commit %s, built %s)", Version, GitCommit, BuildDate)
}

// NewVersionCmd creates the version command.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "qpkg version %s\n", Version)
			_, _ = fmt.Fprintf(out, "Build date: %s\n", BuildDate)
			_, _ = fmt.Fprintf(out, "Git commit: %s\n", GitCommit)
		},
	}
}
