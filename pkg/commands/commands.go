package commands

import (
	"log/slog"

	base "github.com/n3wscott/cli-base/pkg/commands/options"
	"github.com/spf13/cobra"

	"tableflip.dev/tilegrid/pkg/commands/options"
	"tableflip.dev/tilegrid/pkg/config"
)

var (
	co = &options.ConfigOptions{}
)

func New() *cobra.Command {

	cmd := &cobra.Command{
		Use:   "tilegrid",
		Short: base.Wrap80("Browse large image grids in the terminal with a virtualized layout, a rate-limited image loader and a bounded two-tier cache."),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	options.AddConfigArgs(cmd, co)
	AddCommands(cmd)
	return cmd
}

func AddCommands(topLevel *cobra.Command) {
	addUI(topLevel)
	addLayout(topLevel)
	addPrefetch(topLevel)
	addCache(topLevel)
	addGenerate(topLevel)
	addMCP(topLevel)
	addVersion(topLevel)
	addCompletions(topLevel)
}

// loadConfig resolves settings for cmd and a stderr logger at the configured
// level.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := co.Load(cmd)
	if err != nil {
		return nil, nil, err
	}
	return cfg, options.NewLogger(cfg.LogLevel, cmd.ErrOrStderr()), nil
}
