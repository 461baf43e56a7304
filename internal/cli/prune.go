package cli

import (
	"github.com/spf13/cobra"

	"github.com/lazypower/mnemo/internal/engine"
)

type pruneOptions struct {
	maxRecords  int
	olderThan   string
	dropExpired bool
	keepExpired bool
	dedupe      bool
}

func newPruneCmd(g *globalOptions) *cobra.Command {
	o := &pruneOptions{}
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Apply retention policies to the memory file",
		Long: "Drop expired notes, notes older than a boundary, duplicate texts, and the oldest notes " +
			"beyond --max-records. Pinned notes are always kept.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPrune(cmd, g, o)
		},
	}

	f := cmd.Flags()
	f.IntVar(&o.maxRecords, "max-records", 0, "Keep at most this many notes, <= 0 for no cap (default from config)")
	f.StringVar(&o.olderThan, "older-than", "", "Drop notes last updated before this ISO-8601 time")
	f.BoolVar(&o.dropExpired, "drop-expired", true, "Drop expired notes")
	f.BoolVar(&o.keepExpired, "keep-expired", false, "Keep expired notes (overrides --drop-expired)")
	f.BoolVar(&o.dedupe, "dedupe", false, "Drop notes whose text repeats an earlier note")

	return cmd
}

func runPrune(cmd *cobra.Command, g *globalOptions, o *pruneOptions) error {
	env, err := g.resolve(cmd)
	if err != nil {
		return err
	}

	maxRecords := env.cfg.Memory.MaxRecords
	if cmd.Flags().Changed("max-records") {
		maxRecords = o.maxRecords
	}
	keepExpired := o.keepExpired || !o.dropExpired

	opts, err := engine.NewPruneOptions(maxRecords, o.olderThan, keepExpired, o.dedupe)
	if err != nil {
		return err
	}

	res, err := engine.New(env.memoryPath, nil, env.log).Prune(opts)
	if err != nil {
		return err
	}
	return printJSON(cmd, res)
}
