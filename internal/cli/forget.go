package cli

import (
	"github.com/spf13/cobra"

	"github.com/lazypower/mnemo/internal/engine"
)

func newForgetCmd(g *globalOptions) *cobra.Command {
	var ids, tags []string
	cmd := &cobra.Command{
		Use:   "forget",
		Short: "Delete notes by id or tag",
		Long:  "Delete every note whose id is given or that carries any of the given tags. Pinned notes are deleted too.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := g.resolve(cmd)
			if err != nil {
				return err
			}
			res, err := engine.New(env.memoryPath, nil, env.log).Forget(ids, tags)
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}

	cmd.Flags().StringArrayVar(&ids, "id", nil, "Note id to delete (repeatable)")
	cmd.Flags().StringArrayVar(&tags, "tag", nil, "Delete notes with this tag (repeatable)")
	return cmd
}
