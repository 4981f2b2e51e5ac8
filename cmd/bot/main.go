package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robalyx/sentinel/internal/bot"
	"github.com/robalyx/sentinel/internal/setup"
	"github.com/robalyx/sentinel/internal/setup/telemetry"
	"github.com/urfave/cli/v3"
)

const (
	// BotLogDir specifies where bot log files are stored.
	BotLogDir = "logs/bot_logs"

	shutdownTimeout = 30 * time.Second
)

func main() {
	if err := run(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	app := &cli.Command{
		Name:  "bot",
		Usage: "Run the moderation bot",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-dir",
				Value: BotLogDir,
				Usage: "Directory for log sessions",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return runBot(ctx, c.String("log-dir"))
		},
	}

	return app.Run(context.Background(), os.Args)
}

func runBot(ctx context.Context, logDir string) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize application with required dependencies
	app, err := setup.InitializeApp(ctx, telemetry.ServiceBot, logDir)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		app.Cleanup(cleanupCtx)
	}()

	discordBot, err := bot.New(app)
	if err != nil {
		return fmt.Errorf("failed to create bot: %w", err)
	}

	if err := discordBot.Start(ctx); err != nil {
		return fmt.Errorf("failed to start bot: %w", err)
	}

	log.Println("Bot has been started. Waiting for interrupt signal to gracefully shutdown...")
	<-ctx.Done()

	closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	discordBot.Close(closeCtx)

	return nil
}
