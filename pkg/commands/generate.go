package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"tableflip.dev/tilegrid/pkg/commands/options"
	"tableflip.dev/tilegrid/pkg/tiles"
)

func addGenerate(topLevel *cobra.Command) {
	to := &options.TileOptions{}

	cmd := &cobra.Command{
		Use:   "generate <path>",
		Short: "write a synthetic tiles file",
		Long: options.Wrap80(`Write a deterministic set of tiles to path. The format follows the ` +
			`extension: .json writes JSON, anything else YAML.`),
		Example: `
tilegrid generate tiles.yaml -n 2000
tilegrid ui --tiles tiles.yaml
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			if err := tiles.Save(args[0], tiles.Generate(to.Count)); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "wrote %d tiles to %s\n", to.Count, args[0])
			return nil
		},
	}

	options.AddTileArgs(cmd, to)
	topLevel.AddCommand(cmd)
}
