package options

import (
	"github.com/spf13/cobra"

	"tableflip.dev/tilegrid/pkg/grid"
)

// ViewportOptions describe the window a command lays out.
type ViewportOptions struct {
	Width  float64
	Height float64
	Scroll float64
	Mode   string
}

func AddViewportArgs(cmd *cobra.Command, o *ViewportOptions) {
	cmd.Flags().Float64Var(&o.Width, "width", 1024,
		"Viewport width in layout units. Zero or less falls back to 360.")
	cmd.Flags().Float64Var(&o.Height, "height", 768,
		"Viewport height in layout units.")
	cmd.Flags().Float64Var(&o.Scroll, "scroll", 0,
		"Scroll offset from the top of the content.")
	cmd.Flags().StringVarP(&o.Mode, "mode", "m", "",
		"View mode, one of grid, list or text. Defaults to view_mode from config.")
	_ = cmd.RegisterFlagCompletionFunc("mode", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{"grid", "list", "text"}, cobra.ShellCompDirectiveNoFileComp
	})
}

// Viewport returns the flags as a grid viewport.
func (o *ViewportOptions) Viewport() grid.Viewport {
	return grid.Viewport{Width: o.Width, Height: o.Height, ScrollOffset: o.Scroll}
}

// ViewMode resolves --mode, falling back to def when unset.
func (o *ViewportOptions) ViewMode(def grid.ViewMode) (grid.ViewMode, error) {
	if o.Mode == "" {
		return def, nil
	}
	return grid.ParseViewMode(o.Mode)
}

// TileOptions select where tiles come from.
type TileOptions struct {
	Count int
}

func AddTileArgs(cmd *cobra.Command, o *TileOptions) {
	cmd.Flags().IntVarP(&o.Count, "count", "n", 500,
		"Number of generated tiles when no tiles file is configured.")
}
