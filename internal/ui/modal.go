package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Modal is a blocking notification: while one is shown the dashboard only
// accepts the keys that dismiss it.
type Modal struct {
	Title string
	Body  string
	Link  string // opened with "o" when set
	Error bool
}

// View renders the modal centred in a width×height area.
func (m Modal) View(width, height int) string {
	title := StyleSuccess.Render("✓ " + m.Title)
	border := ColorSuccess
	if m.Error {
		title = StyleError.Render("✗ " + m.Title)
		border = ColorError
	}

	parts := []string{title, "", lipgloss.NewStyle().Width(56).Render(m.Body)}
	if m.Link != "" {
		parts = append(parts, "", Addr(m.Link))
	}
	keys := "[enter] close"
	if m.Link != "" {
		keys += "   [o] open in explorer"
	}
	parts = append(parts, "", Hint(keys))

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Padding(1, 2).
		Render(strings.Join(parts, "\n"))
	if width <= 0 || height <= 0 {
		return box
	}
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box)
}
