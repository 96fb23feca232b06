package wizard

import (
	"charm.land/lipgloss/v2"

	"github.com/mark3labs/dealerdesk/internal/tui/theme"
)

var palette = theme.Current()

// Color palette
var (
	colorPrimary       = theme.C(palette.Primary)
	colorText          = theme.C(palette.FgBase)
	colorBase          = theme.C(palette.BgBase)
	colorMantle        = theme.C(palette.BgMantle)
	colorSurface0      = theme.C(palette.BgSurface0)
	colorSubtext0      = theme.C(palette.FgSubtle)
	colorSubtext1      = theme.C(palette.FgDim)
	colorSurface2      = theme.C(palette.FgSurface2)
	colorOverlay0      = theme.C(palette.FgMuted)
	colorRed           = theme.C(palette.Error)
	colorGreen         = theme.C(palette.Success)
	colorBorderFocused = theme.C(palette.Accent)
)

// Modal styles
var (
	styleModalContainer = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(colorBorderFocused).
				Background(colorBase).
				Padding(1, 2)

	styleModalTitle = lipgloss.NewStyle().
			Foreground(colorPrimary).
			Bold(true).
			Align(lipgloss.Center)
)

// Form styles
var (
	styleLabel = lipgloss.NewStyle().
			Foreground(colorSubtext0)

	styleLabelFocused = lipgloss.NewStyle().
				Foreground(colorBorderFocused).
				Bold(true)

	styleValue = lipgloss.NewStyle().
			Foreground(colorText)

	styleMuted = lipgloss.NewStyle().
			Foreground(colorOverlay0)

	styleSection = lipgloss.NewStyle().
			Foreground(colorPrimary).
			Bold(true)

	styleError = lipgloss.NewStyle().
			Foreground(colorRed)

	styleBanner = lipgloss.NewStyle().
			Foreground(colorBase).
			Background(colorRed).
			Padding(0, 1)

	styleSuccess = lipgloss.NewStyle().
			Foreground(colorGreen).
			Bold(true)
)

// Hint bar styles
var (
	styleHintKey = lipgloss.NewStyle().
			Foreground(colorSubtext1).
			Bold(true)

	styleHintDesc = lipgloss.NewStyle().
			Foreground(colorSubtext0)

	styleHintSeparator = lipgloss.NewStyle().
				Foreground(colorSurface2)
)

// renderHintBar renders key-description pairs.
// Example: renderHintBar("tab", "next field", "esc", "back")
// Returns: "tab next field • esc back"
func renderHintBar(pairs ...string) string {
	if len(pairs) == 0 || len(pairs)%2 != 0 {
		return ""
	}

	var result string
	for i := 0; i < len(pairs); i += 2 {
		if i > 0 {
			result += " " + styleHintSeparator.Render("•") + " "
		}
		result += styleHintKey.Render(pairs[i]) + " " + styleHintDesc.Render(pairs[i+1])
	}
	return result
}
