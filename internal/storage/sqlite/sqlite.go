// Package sqlite implements storage.Store on a local SQLite file.
package sqlite

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robalyx/sentinel/internal/storage"
	"go.uber.org/zap"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	user_id        INTEGER PRIMARY KEY,
	profile_name   TEXT    NOT NULL,
	age            INTEGER,
	banned         INTEGER NOT NULL DEFAULT 0,
	suspended      INTEGER NOT NULL DEFAULT 0,
	suspension_len INTEGER NOT NULL DEFAULT 0,
	reported_law   INTEGER NOT NULL DEFAULT 0,
	risk_score     REAL    NOT NULL DEFAULT 0,
	message_count  INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS conversations (
	id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id            INTEGER NOT NULL REFERENCES users(user_id),
	message_id         INTEGER NOT NULL,
	conversation_id    TEXT    NOT NULL,
	confidence_score   REAL    NOT NULL,
	grooming_suspected INTEGER NOT NULL,
	timestamp          INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_conversations_user ON conversations (user_id, id);
`

// Store is a storage.Store backed by a single SQLite connection.
type Store struct {
	mu     sync.Mutex
	conn   *sqlite.Conn
	now    func() time.Time
	logger *zap.Logger
}

// Open opens or creates the database at path and applies the schema.
func Open(path string, logger *zap.Logger) (*Store, error) {
	conn, err := sqlite.OpenConn(path, sqlite.OpenCreate|sqlite.OpenReadWrite|sqlite.OpenWAL)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{
		conn:   conn,
		now:    time.Now,
		logger: logger.Named("sqlite_store"),
	}, nil
}

// lock serializes access to the connection and ties interrupts to ctx.
func (s *Store) lock(ctx context.Context) func() {
	s.mu.Lock()
	s.conn.SetInterrupt(ctx.Done())

	return func() {
		s.conn.SetInterrupt(nil)
		s.mu.Unlock()
	}
}

func (s *Store) UserExists(ctx context.Context, userID uint64) (bool, error) {
	defer s.lock(ctx)()

	return s.userExists(userID)
}

func (s *Store) userExists(userID uint64) (bool, error) {
	exists := false

	err := sqlitex.Execute(s.conn, "SELECT 1 FROM users WHERE user_id = ?", &sqlitex.ExecOptions{
		Args: []any{int64(userID)},
		ResultFunc: func(*sqlite.Stmt) error {
			exists = true
			return nil
		},
	})
	if err != nil {
		return false, fmt.Errorf("failed to check user: %w", err)
	}

	return exists, nil
}

func (s *Store) AddUser(ctx context.Context, userID uint64, profileName string, age *int) error {
	defer s.lock(ctx)()

	var ageArg any
	if age != nil {
		ageArg = int64(*age)
	}

	err := sqlitex.Execute(s.conn,
		"INSERT OR IGNORE INTO users (user_id, profile_name, age) VALUES (?, ?, ?)",
		&sqlitex.ExecOptions{Args: []any{int64(userID), profileName, ageArg}},
	)
	if err != nil {
		return fmt.Errorf("failed to add user: %w", err)
	}

	if s.conn.Changes() > 0 {
		s.logger.Debug("Added user", zap.Uint64("user_id", userID), zap.String("profile_name", profileName))
	}

	return nil
}

func (s *Store) LogConversation(ctx context.Context, entry storage.ConversationEntry) (err error) {
	defer s.lock(ctx)()

	endFn, err := sqlitex.ImmediateTransaction(s.conn)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer endFn(&err)

	count := -1
	err = sqlitex.Execute(s.conn, "SELECT message_count FROM users WHERE user_id = ?", &sqlitex.ExecOptions{
		Args: []any{int64(entry.UserID)},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			count = int(stmt.ColumnInt64(0))
			return nil
		},
	})
	if err != nil {
		return fmt.Errorf("failed to read message count: %w", err)
	}
	if count < 0 {
		return fmt.Errorf("%w: %d", storage.ErrUserNotFound, entry.UserID)
	}

	err = sqlitex.Execute(s.conn, `
		INSERT INTO conversations (user_id, message_id, conversation_id, confidence_score, grooming_suspected, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{Args: []any{
			int64(entry.UserID),
			int64(entry.MessageID),
			entry.ConversationID,
			entry.ConfidenceScore,
			boolInt(entry.GroomingSuspected),
			s.now().UnixMilli(),
		}},
	)
	if err != nil {
		return fmt.Errorf("failed to insert conversation: %w", err)
	}

	count++
	score := storage.WeightedScore(entry.MLRiskScore, count)

	err = sqlitex.Execute(s.conn, "UPDATE users SET risk_score = ?, message_count = ? WHERE user_id = ?",
		&sqlitex.ExecOptions{Args: []any{score, int64(count), int64(entry.UserID)}},
	)
	if err != nil {
		return fmt.Errorf("failed to update risk score: %w", err)
	}

	return nil
}

func (s *Store) GetUserStats(ctx context.Context, userID uint64) (*storage.UserStats, error) {
	defer s.lock(ctx)()

	var stats *storage.UserStats

	err := sqlitex.Execute(s.conn, `
		SELECT profile_name, age, banned, suspended, suspension_len, reported_law, risk_score, message_count
		FROM users WHERE user_id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{int64(userID)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				stats = &storage.UserStats{
					UserID:         userID,
					ProfileName:    stmt.ColumnText(0),
					Banned:         stmt.ColumnInt64(2) != 0,
					Suspended:      stmt.ColumnInt64(3) != 0,
					SuspensionDays: int(stmt.ColumnInt64(4)),
					ReportedToLaw:  stmt.ColumnInt64(5) != 0,
					RiskScore:      stmt.ColumnFloat(6),
					MessageCount:   int(stmt.ColumnInt64(7)),
				}
				if stmt.ColumnType(1) != sqlite.TypeNull {
					age := int(stmt.ColumnInt64(1))
					stats.Age = &age
				}
				return nil
			},
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to read user stats: %w", err)
	}
	if stats == nil {
		return nil, fmt.Errorf("%w: %d", storage.ErrUserNotFound, userID)
	}

	err = sqlitex.Execute(s.conn, `
		SELECT message_id, conversation_id, confidence_score, grooming_suspected, timestamp
		FROM conversations WHERE user_id = ? ORDER BY id`,
		&sqlitex.ExecOptions{
			Args: []any{int64(userID)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				stats.Conversations = append(stats.Conversations, storage.ConversationRecord{
					MessageID:         uint64(stmt.ColumnInt64(0)),
					ConversationID:    stmt.ColumnText(1),
					ConfidenceScore:   stmt.ColumnFloat(2),
					GroomingSuspected: stmt.ColumnInt64(3) != 0,
					Timestamp:         time.UnixMilli(stmt.ColumnInt64(4)),
				})
				return nil
			},
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to read conversations: %w", err)
	}

	return stats, nil
}

func (s *Store) UpdateBanStatus(ctx context.Context, userID uint64, banned bool) error {
	return s.update(ctx, userID, "UPDATE users SET banned = ? WHERE user_id = ?", boolInt(banned))
}

func (s *Store) UpdateSuspension(ctx context.Context, userID uint64, suspended bool, days int) error {
	return s.update(ctx, userID, "UPDATE users SET suspended = ?, suspension_len = ? WHERE user_id = ?",
		boolInt(suspended), int64(days))
}

func (s *Store) UpdateReportToLaw(ctx context.Context, userID uint64, banned, reported bool) error {
	return s.update(ctx, userID, "UPDATE users SET banned = ?, reported_law = ? WHERE user_id = ?",
		boolInt(banned), boolInt(reported))
}

// update runs a single-user UPDATE whose last placeholder is the user ID.
func (s *Store) update(ctx context.Context, userID uint64, query string, args ...any) error {
	defer s.lock(ctx)()

	err := sqlitex.Execute(s.conn, query, &sqlitex.ExecOptions{
		Args: append(args, int64(userID)),
	})
	if err != nil {
		return fmt.Errorf("failed to update user %d: %w", userID, err)
	}

	if s.conn.Changes() == 0 {
		return fmt.Errorf("%w: %d", storage.ErrUserNotFound, userID)
	}

	return nil
}

// Close closes the connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.conn.Close()
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}

	return 0
}
