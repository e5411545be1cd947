package commands

import (
	"github.com/spf13/cobra"

	"tableflip.dev/tilegrid/pkg/commands/options"
	"tableflip.dev/tilegrid/pkg/pipeline"
	"tableflip.dev/tilegrid/pkg/runner/layout"
)

func addLayout(topLevel *cobra.Command) {
	vo := &options.ViewportOptions{}
	to := &options.TileOptions{}
	oo := &options.OutputOptions{}
	var commands bool

	cmd := &cobra.Command{
		Use:   "layout",
		Short: "compute one frame of the grid and print it",
		Long: options.Wrap80(`Compute the layout for a single viewport and print the column count, ` +
			`tile size, content height and visible range. With --commands every draw command is listed.`),
		Example: `
tilegrid layout --width 1280 --height 800
tilegrid layout --mode list --scroll 2000 --commands
tilegrid layout --tiles cards.yaml --json
`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceUsage = true
			cfg, err := co.Load(cmd)
			if err != nil {
				return oo.HandleError(err)
			}
			mode, err := vo.ViewMode(cfg.Grid.ViewMode)
			if err != nil {
				return oo.HandleError(err)
			}
			t, err := pipeline.LoadTiles(cfg, to.Count)
			if err != nil {
				return oo.HandleError(err)
			}
			gc := cfg.Grid
			gc.ViewMode = mode
			l := layout.Layout{
				Tiles:    t,
				Config:   gc,
				Viewport: vo.Viewport(),
				Commands: commands,
				JSON:     oo.JSON,
				Out:      cmd.OutOrStdout(),
			}
			return oo.HandleError(l.Do(cmd.Context()))
		},
	}

	options.AddViewportArgs(cmd, vo)
	options.AddTileArgs(cmd, to)
	options.AddOutputArg(cmd, oo)
	cmd.Flags().BoolVar(&commands, "commands", false, "List every draw command.")

	topLevel.AddCommand(cmd)
}
