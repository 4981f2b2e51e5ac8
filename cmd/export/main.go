package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/robalyx/sentinel/internal/export"
	"github.com/robalyx/sentinel/internal/risk"
	"github.com/robalyx/sentinel/internal/setup"
	"github.com/robalyx/sentinel/internal/setup/telemetry"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

const (
	// ExportLogDir specifies where export log files are stored.
	ExportLogDir = "logs/export_logs"
)

var ErrNoProfiles = errors.New("no risk profiles to export")

func main() {
	if err := run(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	app := &cli.Command{
		Name:  "export",
		Usage: "Export risk profiles from a snapshot to JSON, CSV and SQLite",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output directory (defaults to the configured export directory)",
			},
			&cli.StringFlag{
				Name:    "snapshot",
				Aliases: []string{"s"},
				Usage:   "Snapshot file to export (defaults to the newest snapshot)",
			},
			&cli.StringFlag{
				Name:  "log-dir",
				Value: ExportLogDir,
				Usage: "Directory for log sessions",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			// Initialize application with required dependencies
			app, err := setup.InitializeApp(ctx, telemetry.ServiceExport, c.String("log-dir"))
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}
			defer app.Cleanup(ctx)

			if path := c.String("snapshot"); path != "" {
				profiles, err := export.LoadProfiles(path)
				if err != nil {
					return err
				}

				// Export only what the chosen snapshot holds
				app.Risks = risk.NewStore(app.Logger, nil)
				app.Risks.Restore(profiles)
			}

			if app.Risks.Len() == 0 {
				return ErrNoProfiles
			}

			exporter := app.Exporter
			if outDir := c.String("output"); outDir != "" {
				exporter, err = export.New(outDir, app.Logger, nil)
				if err != nil {
					return err
				}
			}

			result, err := exporter.ExportAll(ctx, app.Risks.Profiles())
			if err != nil {
				return fmt.Errorf("failed to export data: %w", err)
			}

			app.Logger.Info("Export finished",
				zap.Int("profiles", app.Risks.Len()),
				zap.String("dir", exporter.Dir()))

			for _, path := range []string{result.ProfilesPath, result.ReportPath, result.DatabasePath} {
				fmt.Println(filepath.Base(path))
			}

			return nil
		},
	}

	return app.Run(context.Background(), os.Args)
}
