package cli

import (
	"context"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lazypower/mnemo/internal/engine"
)

type searchOptions struct {
	topK     int
	tags     []string
	showText bool
	embed    embedOptions
}

func newSearchCmd(g *globalOptions) *cobra.Command {
	o := &searchOptions{}
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search notes",
		Long:  "Rank notes by embedding similarity, or by fuzzy text match when vectors are unavailable.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, args, g, o)
		},
	}

	f := cmd.Flags()
	f.IntVarP(&o.topK, "top-k", "k", 0, "Number of results (default from config)")
	f.StringArrayVar(&o.tags, "tag", nil, "Only notes with this tag (repeatable)")
	f.BoolVar(&o.showText, "show-text", false, "Include note text in results")
	o.embed.bind(cmd)

	return cmd
}

func runSearch(cmd *cobra.Command, args []string, g *globalOptions, o *searchOptions) error {
	env, err := g.resolve(cmd)
	if err != nil {
		return err
	}
	if err := o.embed.apply(cmd, &env.cfg); err != nil {
		return err
	}

	topK := env.cfg.Search.TopK
	if cmd.Flags().Changed("top-k") {
		topK = o.topK
	}
	if topK < 1 {
		return engine.ErrInvalidTopK
	}

	backend, release := openBackend(env.cfg.Embedding, env.log)
	defer release()

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	res, err := engine.New(env.memoryPath, backend, env.log).Search(ctx, engine.SearchRequest{
		Query:    strings.Join(args, " "),
		TopK:     topK,
		Tags:     o.tags,
		ShowText: o.showText,
	})
	if err != nil {
		return err
	}
	return printJSONIndented(cmd, res)
}
