package commands

import (
	"github.com/spf13/cobra"

	"tableflip.dev/tilegrid/pkg/commands/options"
	"tableflip.dev/tilegrid/pkg/runner/cache"
)

func addCache(topLevel *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "inspect or maintain the image cache",
		Example: `
tilegrid cache stats
tilegrid cache sweep --cache-backend sqlite
tilegrid cache clear
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	addCacheAction(cmd, cache.Stats, "show entries, size and counters for each tier")
	addCacheAction(cmd, cache.Sweep, "drop entries older than the retention window")
	addCacheAction(cmd, cache.Clear, "remove every cached image")

	topLevel.AddCommand(cmd)
}

func addCacheAction(parent *cobra.Command, action cache.Action, short string) {
	oo := &options.OutputOptions{}

	cmd := &cobra.Command{
		Use:   string(action),
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceUsage = true
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return oo.HandleError(err)
			}
			c := cache.Cache{
				Config: cfg,
				Action: action,
				JSON:   oo.JSON,
				Logger: logger,
				Out:    cmd.OutOrStdout(),
			}
			return oo.HandleError(c.Do(cmd.Context()))
		},
	}

	options.AddOutputArg(cmd, oo)
	parent.AddCommand(cmd)
}
