package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/robalyx/sentinel/cmd/db/commands"
	"github.com/robalyx/sentinel/internal/setup/config"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, _, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck // -

	deps := &commands.CLIDependencies{
		Config: cfg,
		Logger: logger,
	}

	app := &cli.Command{
		Name:  "db",
		Usage: "Stats database management tool",
		Commands: []*cli.Command{
			{
				Name:     "migrate",
				Usage:    "Manage the postgres schema",
				Commands: commands.MigrationCommands(deps),
			},
			{
				Name:     "stats",
				Usage:    "Inspect stored user stats",
				Commands: commands.StatsCommands(deps),
			},
		},
	}

	return app.Run(context.Background(), os.Args)
}
