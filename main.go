package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/isdelr/authgate/internal/config"
)

func main() {
	// Flags of each command read the environment into cfg.
	cfg := config.Default()

	app := &cli.App{
		Name:  "authgate",
		Usage: "Credential registration, login and token-gated resources",
		Commands: []*cli.Command{
			serveCmd(cfg),
			webCmd(cfg),
			migrateCmd(cfg),
		},
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Error().Err(err).Msg("Application failed")
		cancel()
		os.Exit(1)
	}
}
