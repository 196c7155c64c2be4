package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/amoca-labs/amoca/internal/catalog"
)

// Color palette.
var (
	ColorSuccess   = lipgloss.Color("#00D26A") // green: confirmed, funded
	ColorWarning   = lipgloss.Color("#FFB800") // amber: pending, warnings
	ColorError     = lipgloss.Color("#FF4444") // red: errors
	ColorAddress   = lipgloss.Color("#00B4D8") // cyan: addresses, signatures
	ColorValue     = lipgloss.Color("#FFFFFF")
	ColorMeta      = lipgloss.Color("#6B7280")
	ColorBorder    = lipgloss.Color("#1F4D3A") // forest: UI chrome
	ColorBrand     = lipgloss.Color("#10B981") // emerald
	ColorHighlight = lipgloss.Color("#34D399")

	ColorSolar = lipgloss.Color("#FACC15")
	ColorWind  = lipgloss.Color("#3B82F6")
	ColorGreen = lipgloss.Color("#22C55E")
)

// Base styles.
var (
	StyleSuccess = lipgloss.NewStyle().Foreground(ColorSuccess).Bold(true)
	StyleWarning = lipgloss.NewStyle().Foreground(ColorWarning).Bold(true)
	StyleError   = lipgloss.NewStyle().Foreground(ColorError).Bold(true)
	StyleAddress = lipgloss.NewStyle().Foreground(ColorAddress)
	StyleValue   = lipgloss.NewStyle().Foreground(ColorValue).Bold(true)
	StyleMeta    = lipgloss.NewStyle().Foreground(ColorMeta)
	StyleBrand   = lipgloss.NewStyle().Foreground(ColorBrand).Bold(true)

	StyleBorder = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(0, 1)

	StyleHeader = lipgloss.NewStyle().
			Foreground(ColorHighlight).
			Bold(true).
			Underline(true)

	StyleSelected = lipgloss.NewStyle().
			Background(ColorHighlight).
			Foreground(lipgloss.Color("#000000")).
			Bold(true)

	StyleTitle = lipgloss.NewStyle().
			Foreground(ColorBrand).
			Bold(true).
			MarginBottom(1)

	StyleDim = lipgloss.NewStyle().Foreground(ColorMeta)
)

// Banner returns the amoca banner shown by the root command.
func Banner() string {
	art := `
   █████╗ ███╗   ███╗ ██████╗  ██████╗ █████╗
  ██╔══██╗████╗ ████║██╔═══██╗██╔════╝██╔══██╗
  ███████║██╔████╔██║██║   ██║██║     ███████║
  ██╔══██║██║╚██╔╝██║██║   ██║██║     ██╔══██║
  ██║  ██║██║ ╚═╝ ██║╚██████╔╝╚██████╗██║  ██║
  ╚═╝  ╚═╝╚═╝     ╚═╝ ╚═════╝  ╚═════╝╚═╝  ╚═╝`

	tagline := StyleMeta.Render("     Fund the green transition  🌱  Solana devnet")
	return StyleBrand.Render(art) + "\n" + tagline + "\n"
}

// Success formats a success message.
func Success(msg string) string { return StyleSuccess.Render("✓ " + msg) }

// Warn formats a warning message.
func Warn(msg string) string { return StyleWarning.Render("⚠ " + msg) }

// Err formats an error message.
func Err(msg string) string { return StyleError.Render("✗ " + msg) }

// Info formats an informational message.
func Info(msg string) string { return StyleAddress.Render("ℹ " + msg) }

// Hint formats a usage hint.
func Hint(msg string) string { return StyleMeta.Render("› " + msg) }

// Addr formats an address.
func Addr(a string) string { return StyleAddress.Render(a) }

// Val formats a value.
func Val(v string) string { return StyleValue.Render(v) }

// Meta formats metadata text.
func Meta(m string) string { return StyleMeta.Render(m) }

// TruncateAddr shortens a base58 address to its first and last four
// characters: ABCD...WXYZ.
func TruncateAddr(addr string) string {
	if len(addr) <= 11 {
		return addr
	}
	return addr[:4] + "..." + addr[len(addr)-4:]
}

// CategoryColor is the badge colour for a project category: solar yellow,
// wind blue, everything else green.
func CategoryColor(c catalog.Category) lipgloss.Color {
	switch c {
	case catalog.CategorySolar:
		return ColorSolar
	case catalog.CategoryWind:
		return ColorWind
	default:
		return ColorGreen
	}
}

// Badge renders a category badge.
func Badge(c catalog.Category) string {
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color("#000000")).
		Background(CategoryColor(c)).
		Bold(true).
		Padding(0, 1).
		Render(string(c))
}
