// Package main is the entry point for the projectshelf API server.
//
// MAIN PACKAGE IN GO:
// Every Go program starts execution in the main() function of the "main"
// package. It should stay small. Its job is to:
// 1. Read configuration
// 2. Create dependencies (logger, store, asset host, Redis)
// 3. Start the application
//
// All actual logic lives in the internal/ packages.
//
// COMMANDS:
//
//	projectshelf           same as "serve"
//	projectshelf serve     run the HTTP API
//	projectshelf migrate   create tables (sqlite) or indexes (mongo) and exit
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/sakif/projectshelf/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "projectshelf",
	Short: "Portfolio and project showcase API",
	Long: `projectshelf serves the REST API behind the portfolio front end:
accounts, projects, visit analytics and media uploads.`,
	SilenceUsage: true,
	RunE:         runServe,
}

func main() {
	rootCmd.AddCommand(serveCmd, migrateCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads configuration and builds the process logger.
//
// Log output is human-readable text in development and JSON everywhere
// else, where logs are usually shipped to an aggregator.
func setup() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	var h slog.Handler
	if cfg.IsDevelopment() {
		h = slog.NewTextHandler(os.Stdout, opts)
	} else {
		h = slog.NewJSONHandler(os.Stdout, opts)
	}
	logger := slog.New(h)
	slog.SetDefault(logger)

	return cfg, logger, nil
}
