package cli

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/glorpus-work/qpkg/pkg/semver"
)

var (
	idStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	versionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	rangeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	headerStyle  = lipgloss.NewStyle().Bold(true)
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
)

func styledPackage(id string, v semver.Version) string {
	return idStyle.Render(id) + " " + versionStyle.Render(v.String())
}
