package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		_, err := db.NewRaw(`
			CREATE INDEX IF NOT EXISTS idx_conversations_user_id
			ON conversations (user_id, id);

			CREATE INDEX IF NOT EXISTS idx_conversations_conversation_id
			ON conversations (conversation_id);

			CREATE INDEX IF NOT EXISTS idx_user_stats_risk_score
			ON user_stats (risk_score DESC)
			WHERE banned = false;
		`).Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create indexes: %w", err)
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		_, err := db.NewRaw(`
			DROP INDEX IF EXISTS idx_conversations_user_id;
			DROP INDEX IF EXISTS idx_conversations_conversation_id;
			DROP INDEX IF EXISTS idx_user_stats_risk_score;
		`).Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to drop indexes: %w", err)
		}

		return nil
	})
}
