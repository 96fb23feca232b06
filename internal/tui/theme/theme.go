// Package theme holds the colour palette shared by the wizard and the CLI.
package theme

import (
	"image/color"
	"sync"

	"charm.land/lipgloss/v2"
)

// Theme defines the color palette for the TUI.
type Theme struct {
	Name   string
	IsDark bool

	// Semantic colors
	Primary   string
	Secondary string
	Accent    string

	// Background hierarchy (dark→light)
	BgBase     string
	BgMantle   string
	BgSurface0 string
	BgSurface1 string

	// Foreground hierarchy (dim→bright)
	FgSurface2 string
	FgMuted    string
	FgSubtle   string
	FgDim      string
	FgBase     string

	// Status colors
	Success string
	Error   string
}

var (
	current     *Theme
	currentOnce sync.Once
)

// Current returns the active theme.
func Current() *Theme {
	currentOnce.Do(func() { current = NewCatppuccinMocha() })
	return current
}

// C converts a palette entry to a lipgloss colour.
func C(hex string) color.Color {
	return lipgloss.Color(hex)
}
