package cli

import (
	"github.com/spf13/cobra"

	"github.com/lazypower/mnemo/internal/engine"
)

func newListCmd(g *globalOptions) *cobra.Command {
	var tags []string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show stored notes, newest first",
		Long:  "Show notes carrying all of the given tags. Expired unpinned notes are removed from the file as a side effect.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := g.resolve(cmd)
			if err != nil {
				return err
			}
			res, err := engine.New(env.memoryPath, nil, env.log).List(tags)
			if err != nil {
				return err
			}
			return printJSONIndented(cmd, res)
		},
	}

	cmd.Flags().StringArrayVar(&tags, "tag", nil, "Only notes with this tag (repeatable)")
	return cmd
}
