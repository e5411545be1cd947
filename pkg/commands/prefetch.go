package commands

import (
	"time"

	"github.com/spf13/cobra"

	"tableflip.dev/tilegrid/pkg/commands/options"
	"tableflip.dev/tilegrid/pkg/pipeline"
	"tableflip.dev/tilegrid/pkg/runner/prefetch"
)

func addPrefetch(topLevel *cobra.Command) {
	vo := &options.ViewportOptions{}
	to := &options.TileOptions{}
	oo := &options.OutputOptions{}
	var (
		pages   int
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "prefetch",
		Short: "warm the image cache by scrolling through the grid",
		Long: options.Wrap80(`Walk the content one viewport at a time and wait until every visible ` +
			`image is cached before moving on. Fetches go through the same rate-limited scheduler the UI uses.`),
		Example: `
tilegrid prefetch --pages 3
tilegrid prefetch --tiles cards.yaml --image-url 'https://img.example.com/{size}/{id}.png'
`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceUsage = true
			cfg, logger, err := loadConfig(cmd)
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
			p := prefetch.Prefetch{
				Config:   cfg,
				Tiles:    t,
				Mode:     mode,
				Viewport: vo.Viewport(),
				Pages:    pages,
				Timeout:  timeout,
				JSON:     oo.JSON,
				Logger:   logger,
				Out:      cmd.OutOrStdout(),
			}
			return oo.HandleError(p.Do(cmd.Context()))
		},
	}

	options.AddViewportArgs(cmd, vo)
	options.AddTileArgs(cmd, to)
	options.AddOutputArg(cmd, oo)
	cmd.Flags().IntVar(&pages, "pages", 0, "Viewports to walk. Zero walks the whole content.")
	cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "Give up when one page takes longer than this.")

	topLevel.AddCommand(cmd)
}
