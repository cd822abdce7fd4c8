package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"hipcortex/internal/config"
	"hipcortex/internal/logging"
	"hipcortex/internal/server"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveListen string

// serveCmd runs the reference runtime behind the HTTP command server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the agent runtime over HTTP",
	Long: `Hosts the in-process runtime and exposes its four commands on
POST /api/v1/invoke, with GET /api/v1/health for health checks.

When a graph seed file is configured and runtime.watch_seed is on, edits to
the seed reload the graph without a restart.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "Listen address (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	if endpoint != "" {
		return fmt.Errorf("serve hosts the runtime itself; drop --endpoint")
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sess, err := openSession()
	if err != nil {
		return err
	}
	defer sess.Close()
	if sess.runtime == nil {
		return fmt.Errorf("serve requires channel.mode %q", config.ChannelLocal)
	}

	if serveListen != "" {
		sess.cfg.Server.Listen = serveListen
	}
	srv := server.New(sess.cfg, sess.ch)

	var workers []func(context.Context) error
	if sess.cfg.Runtime.WatchSeed && sess.runtime.SeedPath() != "" {
		w, err := sess.runtime.Watcher()
		if err != nil {
			return err
		}
		workers = append(workers, w.Run)
	}

	go func() {
		select {
		case <-srv.Ready():
			fmt.Fprintf(cmd.OutOrStdout(), "hipcortex runtime listening on http://%s\n", srv.Addr())
		case <-ctx.Done():
		}
	}()

	logger.Info("serving runtime",
		zap.String("listen", sess.cfg.Server.Listen),
		zap.Bool("watch_seed", len(workers) > 0))
	logging.Server("serve: starting on %s", sess.cfg.Server.Listen)

	return srv.Run(ctx, workers...)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
