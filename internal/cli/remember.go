package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lazypower/mnemo/internal/engine"
)

type rememberOptions struct {
	file       string
	tags       []string
	source     string
	importance string
	ttl        string
	pinned     bool
	replace    string
	embed      embedOptions
}

func newRememberCmd(g *globalOptions) *cobra.Command {
	o := &rememberOptions{}
	cmd := &cobra.Command{
		Use:   "remember [text]",
		Short: "Store a memory note",
		Long:  "Store a note. The text comes from the arguments, then --file, then stdin.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRemember(cmd, args, g, o)
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.file, "file", "", "Read the note text from a file")
	f.StringArrayVar(&o.tags, "tag", nil, "Tag the note (repeatable)")
	f.StringVar(&o.source, "source", "", "Where the note came from")
	f.StringVar(&o.importance, "importance", "", "Importance: low, medium or high")
	f.StringVar(&o.ttl, "ttl", "", "Expire after a duration, e.g. 3600, 24h, 7d (0 or none: never)")
	f.BoolVar(&o.pinned, "pinned", false, "Protect the note from pruning and expiry")
	f.StringVar(&o.replace, "replace", "", "Update the note with this id instead of adding one")
	o.embed.bind(cmd)

	return cmd
}

func runRemember(cmd *cobra.Command, args []string, g *globalOptions, o *rememberOptions) error {
	env, err := g.resolve(cmd)
	if err != nil {
		return err
	}
	if err := o.embed.apply(cmd, &env.cfg); err != nil {
		return err
	}

	text, err := coalesceText(cmd, args, o.file)
	if err != nil {
		return err
	}

	backend, release := openBackend(env.cfg.Embedding, env.log)
	defer release()

	ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
	defer cancel()

	eng := engine.New(env.memoryPath, backend, env.log)
	res, err := eng.Remember(ctx, engine.RememberRequest{
		Text:       text,
		Tags:       o.tags,
		Source:     o.source,
		Importance: o.importance,
		TTL:        o.ttl,
		Pinned:     o.pinned,
		Replace:    o.replace,
	})
	if err != nil {
		return err
	}
	return printJSON(cmd, res)
}

// coalesceText picks the note text from args, then file, then stdin.
func coalesceText(cmd *cobra.Command, args []string, file string) (string, error) {
	if text := strings.TrimSpace(strings.Join(args, " ")); text != "" {
		return text, nil
	}
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read note file: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
