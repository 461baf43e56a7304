package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lazypower/mnemo/internal/config"
	"github.com/lazypower/mnemo/internal/store"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	memory    string
	config    string
	logLevel  string
	logFormat string
}

// runtimeEnv is what a command needs once flags and config are resolved.
type runtimeEnv struct {
	cfg        config.Config
	log        *slog.Logger
	memoryPath string
}

// NewRootCmd builds the mnemo command tree.
func NewRootCmd() *cobra.Command {
	g := &globalOptions{}

	root := &cobra.Command{
		Use:   "mnemo",
		Short: "Local memory notes with semantic search",
		Long: "mnemo keeps short notes in a JSONL file and finds them again by embedding " +
			"similarity, falling back to fuzzy text matching when no embedding backend is available.",
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.memory, "memory", "", "Path to the memory file (default ~/.mnemo/memory.jsonl)")
	pf.StringVar(&g.config, "config", "", "Path to the config file (default ~/.mnemo/config.toml)")
	pf.StringVar(&g.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&g.logFormat, "log-format", "", "Log format: text or json")

	root.AddCommand(newRememberCmd(g))
	root.AddCommand(newForgetCmd(g))
	root.AddCommand(newListCmd(g))
	root.AddCommand(newPruneCmd(g))
	root.AddCommand(newSearchCmd(g))
	root.AddCommand(newServeCmd(g))
	root.AddCommand(newVersionCmd())

	return root
}

func Execute() error {
	return NewRootCmd().Execute()
}

// resolve loads config, applies global flag overrides, and builds the logger.
func (g *globalOptions) resolve(cmd *cobra.Command) (*runtimeEnv, error) {
	path := g.config
	if path == "" {
		path = config.DefaultConfigPath()
	} else if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file: %w", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
	}
	if g.logFormat != "" {
		cfg.Log.Format = g.logFormat
	}

	logger, err := newLogger(cmd.ErrOrStderr(), cfg.Log)
	if err != nil {
		return nil, err
	}

	memoryPath := g.memory
	if memoryPath == "" {
		memoryPath = cfg.Memory.Path
	}
	if memoryPath == "" {
		if memoryPath, err = store.DefaultMemoryPath(); err != nil {
			return nil, fmt.Errorf("resolve memory path: %w", err)
		}
	}

	return &runtimeEnv{cfg: cfg, log: logger, memoryPath: memoryPath}, nil
}

// newLogger builds a text or JSON slog logger writing to w.
func newLogger(w io.Writer, cfg config.LogConfig) (*slog.Logger, error) {
	var level slog.Level
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q", cfg.Level)
		}
	}
	opts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(cfg.Format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, errors.New("invalid log format " + cfg.Format + " (want text or json)")
	}
}

// printJSON writes a command summary to stdout as a single JSON line.
func printJSON(cmd *cobra.Command, v any) error {
	return encodeJSON(cmd, v, "")
}

// printJSONIndented writes a listing (records or search hits) as indented JSON.
func printJSONIndented(cmd *cobra.Command, v any) error {
	return encodeJSON(cmd, v, "  ")
}

func encodeJSON(cmd *cobra.Command, v any, indent string) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetEscapeHTML(false)
	if indent != "" {
		enc.SetIndent("", indent)
	}
	return enc.Encode(v)
}
