package commands

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"tableflip.dev/tilegrid/pkg/commands/options"
	"tableflip.dev/tilegrid/pkg/pipeline"
	"tableflip.dev/tilegrid/pkg/runner/ui"
)

func addUI(topLevel *cobra.Command) {
	to := &options.TileOptions{}
	var mode, logFile string

	cmd := &cobra.Command{
		Use:   "ui",
		Short: "open the tile grid browser",
		Example: `
tilegrid ui
tilegrid ui --tiles cards.yaml --mode list
tilegrid ui -n 10000 --log-file /tmp/tilegrid.log --log-level debug
`,
		ValidArgs: []string{},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			cfg, err := co.Load(cmd)
			if err != nil {
				return err
			}
			vo := options.ViewportOptions{Mode: mode}
			viewMode, err := vo.ViewMode(cfg.Grid.ViewMode)
			if err != nil {
				return err
			}
			t, err := pipeline.LoadTiles(cfg, to.Count)
			if err != nil {
				return err
			}

			// The screen belongs to the UI, so logs only go to a file.
			var w io.Writer = io.Discard
			if logFile != "" {
				f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}

			i := ui.UI{
				Config: cfg,
				Tiles:  t,
				Mode:   viewMode,
				Logger: options.NewLogger(cfg.LogLevel, w),
			}
			return i.Do(cmd.Context())
		},
	}

	options.AddTileArgs(cmd, to)
	cmd.Flags().StringVarP(&mode, "mode", "m", "", "Initial view mode, one of grid, list or text.")
	cmd.Flags().StringVar(&logFile, "log-file", "", "Append logs to this file.")

	topLevel.AddCommand(cmd)
}
