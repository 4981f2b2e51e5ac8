package commands

import (
	"context"

	"github.com/uptrace/bun/migrate"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

// MigrationCommands returns all migration-related commands.
func MigrationCommands(deps *CLIDependencies) []*cli.Command {
	return []*cli.Command{
		{
			Name:   "init",
			Usage:  "Create the migration bookkeeping tables",
			Action: handleInit(deps),
		},
		{
			Name:   "up",
			Usage:  "Apply pending migrations",
			Action: handleUp(deps),
		},
		{
			Name:   "down",
			Usage:  "Roll back the last migration group",
			Action: handleDown(deps),
		},
		{
			Name:   "status",
			Usage:  "Show applied and pending migrations",
			Action: handleStatus(deps),
		},
		{
			Name:      "create",
			Usage:     "Create a new Go migration file",
			ArgsUsage: "NAME",
			Action:    handleCreate(deps),
		},
	}
}

// handleInit handles the 'migrate init' command.
func handleInit(deps *CLIDependencies) cli.ActionFunc {
	return func(ctx context.Context, _ *cli.Command) error {
		return deps.withMigrator(ctx, func(m *migrate.Migrator) error {
			if err := m.Init(ctx); err != nil {
				return err
			}

			deps.Logger.Info("Migration tables ready")
			return nil
		})
	}
}

// handleUp handles the 'migrate up' command.
func handleUp(deps *CLIDependencies) cli.ActionFunc {
	return func(ctx context.Context, _ *cli.Command) error {
		return deps.withMigrator(ctx, func(m *migrate.Migrator) error {
			return locked(ctx, m, func() error {
				if err := m.Init(ctx); err != nil {
					return err
				}

				group, err := m.Migrate(ctx)
				if err != nil {
					return err
				}

				if group.IsZero() {
					deps.Logger.Info("Stats schema is up to date")
					return nil
				}

				deps.Logger.Info("Applied migrations", zap.String("group", group.String()))
				return nil
			})
		})
	}
}

// handleDown handles the 'migrate down' command.
func handleDown(deps *CLIDependencies) cli.ActionFunc {
	return func(ctx context.Context, _ *cli.Command) error {
		return deps.withMigrator(ctx, func(m *migrate.Migrator) error {
			return locked(ctx, m, func() error {
				group, err := m.Rollback(ctx)
				if err != nil {
					return err
				}

				if group.IsZero() {
					deps.Logger.Info("Nothing to roll back")
					return nil
				}

				deps.Logger.Info("Rolled back migrations", zap.String("group", group.String()))
				return nil
			})
		})
	}
}

// handleStatus handles the 'migrate status' command.
func handleStatus(deps *CLIDependencies) cli.ActionFunc {
	return func(ctx context.Context, _ *cli.Command) error {
		return deps.withMigrator(ctx, func(m *migrate.Migrator) error {
			ms, err := m.MigrationsWithStatus(ctx)
			if err != nil {
				return err
			}

			deps.Logger.Info("Migration status",
				zap.String("migrations", ms.String()),
				zap.String("pending", ms.Unapplied().String()),
				zap.String("last_group", ms.LastGroup().String()))

			return nil
		})
	}
}

// handleCreate handles the 'migrate create' command.
func handleCreate(deps *CLIDependencies) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		if c.Args().Len() != 1 {
			return ErrNameRequired
		}

		return deps.withMigrator(ctx, func(m *migrate.Migrator) error {
			mf, err := m.CreateGoMigration(ctx, c.Args().First())
			if err != nil {
				return err
			}

			deps.Logger.Info("Created Go migration",
				zap.String("name", mf.Name),
				zap.String("path", mf.Path))

			return nil
		})
	}
}

// locked runs fn while holding the migration lock.
func locked(ctx context.Context, m *migrate.Migrator, fn func() error) error {
	if err := m.Lock(ctx); err != nil {
		return err
	}
	defer m.Unlock(ctx) //nolint:errcheck // -

	return fn()
}
