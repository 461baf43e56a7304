package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lazypower/mnemo/internal/engine"
	"github.com/lazypower/mnemo/internal/server"
)

func newServeCmd(g *globalOptions) *cobra.Command {
	var (
		bind  string
		port  int
		embed embedOptions
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := g.resolve(cmd)
			if err != nil {
				return err
			}
			if err := embed.apply(cmd, &env.cfg); err != nil {
				return err
			}
			if bind != "" {
				env.cfg.Server.Bind = bind
			}
			if port != 0 {
				env.cfg.Server.Port = port
			}
			return runServe(env)
		},
	}

	cmd.Flags().StringVar(&bind, "bind", "", "Listen address (default from config)")
	cmd.Flags().IntVar(&port, "port", 0, "Listen port (default from config)")
	embed.bind(cmd)

	return cmd
}

func runServe(env *runtimeEnv) error {
	backend, release := openBackend(env.cfg.Embedding, env.log)
	defer release()

	eng := engine.New(env.memoryPath, backend, env.log)
	srv := server.New(eng, server.Options{
		Version:    VersionString(),
		TopK:       env.cfg.Search.TopK,
		MaxRecords: env.cfg.Memory.MaxRecords,
	})
	addr := env.cfg.ListenAddr()

	httpServer := &http.Server{
		Addr:    addr,
		Handler: srv,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		env.log.Info("mnemo serving", "addr", addr, "memory", env.memoryPath, "embedding", backend.Name())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-done:
	}
	env.log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return httpServer.Shutdown(ctx)
}
