package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sakif/projectshelf/internal/metrics"
	"github.com/sakif/projectshelf/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.close()

	host, closeHost, err := openMedia(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeHost()
	if host == nil {
		logger.Warn("no media backend configured, /api/media answers 501")
	} else {
		logger.Info("media backend ready", slog.String("host", host.Name()))
	}

	rdb, err := openRedis(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
	}

	srv, err := server.New(server.Deps{
		Config:  cfg,
		Store:   store.Store,
		Media:   host,
		Redis:   rdb,
		Metrics: metrics.New(),
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	// Start blocks until the server is shut down (Ctrl+C or SIGTERM).
	return srv.Start(ctx)
}
