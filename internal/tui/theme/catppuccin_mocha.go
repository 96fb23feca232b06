package theme

// NewCatppuccinMocha creates the default Catppuccin Mocha theme.
func NewCatppuccinMocha() *Theme {
	return &Theme{
		Name:   "catppuccin-mocha",
		IsDark: true,

		Primary:   "#cba6f7", // Mauve
		Secondary: "#89b4fa", // Blue
		Accent:    "#b4befe", // Lavender

		BgBase:     "#1e1e2e",
		BgMantle:   "#181825",
		BgSurface0: "#313244",
		BgSurface1: "#45475a",

		FgSurface2: "#585b70",
		FgMuted:    "#6c7086", // Overlay0
		FgSubtle:   "#a6adc8", // Subtext0
		FgDim:      "#bac2de", // Subtext1
		FgBase:     "#cdd6f4",

		Success: "#a6e3a1",
		Error:   "#f38ba8",
	}
}
