package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/robalyx/sentinel/internal/database"
	"github.com/robalyx/sentinel/internal/setup/config"
	"github.com/uptrace/bun/migrate"
	"go.uber.org/zap"
)

var (
	ErrNameRequired   = errors.New("NAME argument required")
	ErrUserIDRequired = errors.New("USER_ID argument required")
	ErrInvalidUserID  = errors.New("USER_ID must be a positive integer")
)

// CLIDependencies holds the common dependencies needed by CLI commands.
type CLIDependencies struct {
	Config *config.Config
	Logger *zap.Logger
}

// withMigrator connects to postgres without migrating and runs fn with a migrator.
func (d *CLIDependencies) withMigrator(ctx context.Context, fn func(*migrate.Migrator) error) error {
	db, err := database.NewConnection(ctx, &d.Config.Common.PostgreSQL, d.Logger, false)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	return fn(database.NewMigrator(db.DB()))
}
