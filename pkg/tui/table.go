package tui

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/stefanpenner/ghclient/pkg/codespaces"
	"github.com/stefanpenner/ghclient/pkg/lifecycle"
	"github.com/stefanpenner/ghclient/pkg/utils"
)

var borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#444444"))

// RenderCodespaces writes one row per codespace with its state colored by
// lifecycle class.
func RenderCodespaces(w io.Writer, all []*codespaces.Codespace) {
	if len(all) == 0 {
		fmt.Fprintln(w, infoStyle.Render("No codespaces found"))
		return
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		Headers("Name", "State", "Repository", "Last Used")

	for _, cs := range all {
		t.Row(
			utils.MakeClickableLink(cs.GetWebURL(), cs.GetName()),
			statusStyle(lifecycle.Classify(cs.State())).Render(cs.State()),
			cs.GetRepository().GetFullName(),
			lastUsed(cs),
		)
	}

	fmt.Fprintln(w, t)
}

func lastUsed(cs *codespaces.Codespace) string {
	if cs.LastUsedAt == nil {
		return "-"
	}
	return cs.GetLastUsedAt().Format("2006-01-02 15:04")
}
