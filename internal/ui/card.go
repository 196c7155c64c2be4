package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/amoca-labs/amoca/internal/catalog"
	"github.com/amoca-labs/amoca/internal/format"
)

// CardWidth is the outer width of a project card.
const CardWidth = 40

const (
	labelConnect   = "Connect Wallet to Invest"
	labelInvesting = "Investing…"
)

// CardState is what a card needs to know about the rest of the dashboard.
type CardState struct {
	Selected  bool
	Connected bool
	Investing bool   // this card's investment is in flight
	Busy      bool   // any investment is in flight
	Label     string // label of the enabled button, e.g. "Invest 1 SOL"
}

// ButtonLabel returns the invest button text.
func ButtonLabel(s CardState) string {
	switch {
	case s.Investing:
		return labelInvesting
	case !s.Connected:
		return labelConnect
	default:
		return s.Label
	}
}

// ButtonEnabled reports whether the invest button accepts a press.
func ButtonEnabled(s CardState) bool {
	return s.Connected && !s.Investing && !s.Busy
}

// ProgressBar draws pct (0–100+) as a bar of width cells. The bar fills at
// 100; the label next to it carries the real value.
func ProgressBar(pct float64, width int) string {
	if width <= 0 {
		return ""
	}
	filled := int(pct / 100 * float64(width))
	filled = max(0, min(filled, width))
	return lipgloss.NewStyle().Foreground(ColorSuccess).Render(strings.Repeat("█", filled)) +
		StyleDim.Render(strings.Repeat("░", width-filled))
}

// RenderCard renders one project card.
func RenderCard(p catalog.Project, s CardState) string {
	inner := CardWidth - 4 // border + padding
	wrap := lipgloss.NewStyle().Width(inner)

	var lines []string
	lines = append(lines, Meta(fit("▣ "+p.ImageURL, inner, false)))
	lines = append(lines, Badge(p.Category)+" "+Meta(p.Location))
	lines = append(lines, wrap.Bold(true).Render(p.Title))
	lines = append(lines, wrap.Foreground(ColorMeta).Render(clip(p.Description, inner*3)))
	lines = append(lines, "")

	pct := format.Percent(p.Progress())
	lines = append(lines, ProgressBar(p.Progress(), inner-lipgloss.Width(pct)-1)+" "+Val(pct))
	lines = append(lines, Meta("Raised ")+Val(format.Currency(p.CurrentFunding))+
		Meta("  Goal ")+Val(format.Currency(p.FundingGoal)))
	lines = append(lines, Meta("CO₂ ")+Val(format.Number(p.Impact.CO2Reduction)+" t")+
		Meta("  Returns ")+StyleSuccess.Render(format.Token(p.Returns, 2)+"% APY"))
	lines = append(lines, "")
	lines = append(lines, button(s, inner))

	border := ColorBorder
	if s.Selected {
		border = ColorHighlight
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Padding(0, 1).
		Width(CardWidth - 2).
		Render(strings.Join(lines, "\n"))
}

func button(s CardState, width int) string {
	style := lipgloss.NewStyle().Width(width).Align(lipgloss.Center).Bold(true)
	switch {
	case s.Investing:
		style = style.Foreground(lipgloss.Color("#000000")).Background(ColorWarning)
	case ButtonEnabled(s):
		style = style.Foreground(lipgloss.Color("#000000")).Background(ColorBrand)
	default:
		style = style.Foreground(ColorMeta).Background(lipgloss.Color("#1F2937"))
	}
	return style.Render(ButtonLabel(s))
}

// clip shortens s to n runes with an ellipsis.
func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
