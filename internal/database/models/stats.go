package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/robalyx/sentinel/internal/database/dbretry"
	"github.com/robalyx/sentinel/internal/database/types"
	"github.com/robalyx/sentinel/internal/storage"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// StatsModel handles database operations for user stats and conversation logs.
type StatsModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewStats creates a new StatsModel.
func NewStats(db *bun.DB, logger *zap.Logger) *StatsModel {
	return &StatsModel{
		db:     db,
		logger: logger.Named("db_stats"),
	}
}

// UserExists checks whether a stats row exists for the user.
func (r *StatsModel) UserExists(ctx context.Context, userID uint64) (bool, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (bool, error) {
		exists, err := r.db.NewSelect().
			Model((*types.UserStats)(nil)).
			Where("user_id = ?", userID).
			Exists(ctx)
		if err != nil {
			return false, fmt.Errorf("failed to check user existence: %w", err)
		}

		return exists, nil
	})
}

// AddUser inserts a stats row, leaving an existing row untouched.
func (r *StatsModel) AddUser(ctx context.Context, user *types.UserStats) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := r.db.NewInsert().
			Model(user).
			On("CONFLICT (user_id) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to add user: %w", err)
		}

		return nil
	})
}

// LogConversation inserts a conversation and updates the user's score and count
// in one transaction.
func (r *StatsModel) LogConversation(ctx context.Context, conv *types.Conversation, mlRiskScore float64) error {
	return dbretry.Transaction(ctx, r.db, func(ctx context.Context, tx bun.Tx) error {
		var user types.UserStats
		err := tx.NewSelect().
			Model(&user).
			Column("user_id", "message_count").
			Where("user_id = ?", conv.UserID).
			For("UPDATE").
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %d", storage.ErrUserNotFound, conv.UserID)
		}
		if err != nil {
			return fmt.Errorf("failed to lock user: %w", err)
		}

		if _, err := tx.NewInsert().Model(conv).Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert conversation: %w", err)
		}

		count := user.MessageCount + 1
		_, err = tx.NewUpdate().
			Model((*types.UserStats)(nil)).
			Set("risk_score = ?", storage.WeightedScore(mlRiskScore, count)).
			Set("message_count = ?", count).
			Set("updated_at = ?", time.Now()).
			Where("user_id = ?", conv.UserID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to update risk score: %w", err)
		}

		return nil
	})
}

// GetUserStats returns the user's row and conversations in insertion order.
func (r *StatsModel) GetUserStats(ctx context.Context, userID uint64) (*types.UserStats, []*types.Conversation, error) {
	type result struct {
		user          *types.UserStats
		conversations []*types.Conversation
	}

	res, err := dbretry.Operation(ctx, func(ctx context.Context) (*result, error) {
		var user types.UserStats
		err := r.db.NewSelect().
			Model(&user).
			Where("user_id = ?", userID).
			Scan(ctx)
		if err != nil {
			return nil, err
		}

		var conversations []*types.Conversation
		err = r.db.NewSelect().
			Model(&conversations).
			Where("user_id = ?", userID).
			Order("id ASC").
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get conversations: %w", err)
		}

		return &result{user: &user, conversations: conversations}, nil
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, fmt.Errorf("%w: %d", storage.ErrUserNotFound, userID)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get user stats: %w", err)
	}

	return res.user, res.conversations, nil
}

// UpdateFlags sets the given status columns for the user.
func (r *StatsModel) UpdateFlags(ctx context.Context, userID uint64, columns map[string]any) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		query := r.db.NewUpdate().
			Model((*types.UserStats)(nil)).
			Set("updated_at = ?", time.Now()).
			Where("user_id = ?", userID)

		for column, value := range columns {
			query = query.Set("? = ?", bun.Ident(column), value)
		}

		res, err := query.Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to update user flags: %w", err)
		}

		if affected, err := res.RowsAffected(); err == nil && affected == 0 {
			return fmt.Errorf("%w: %d", storage.ErrUserNotFound, userID)
		}

		r.logger.Debug("Updated user flags",
			zap.Uint64("user_id", userID),
			zap.Any("columns", columns))

		return nil
	})
}
