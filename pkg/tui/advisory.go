package tui

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/stefanpenner/ghclient/pkg/versioncheck"
)

var advisoryStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(lipgloss.Color("#F4B400")).
	Padding(0, 1)

// RenderAdvisory formats an upgrade notice.
func RenderAdvisory(a versioncheck.Advisory) string {
	body := fmt.Sprintf("A new version of %s is available: %s → %s",
		a.ModuleName,
		infoStyle.Render(a.CurrentVersion),
		terminalStyle.Render(a.LatestVersion),
	)
	return advisoryStyle.Render(body)
}

// AdvisoryPrinter returns a versioncheck advisor that writes to w.
func AdvisoryPrinter(w io.Writer) func(versioncheck.Advisory) {
	return func(a versioncheck.Advisory) {
		_, _ = fmt.Fprintln(w, RenderAdvisory(a))
	}
}
