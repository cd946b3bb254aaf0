package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"

	"github.com/silfenpath/adk/cmd/adkctl/commands"
	"github.com/silfenpath/adk/config"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	if err := config.LoadDotenv(config.DotenvPath()); err != nil {
		slog.Warn("failed to load .env", "error", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cmd := commands.NewRootCommand(version, commit)
	if err := cmd.Run(ctx, os.Args); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}
