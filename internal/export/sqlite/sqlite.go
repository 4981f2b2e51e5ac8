// Package sqlite writes risk profile snapshots as standalone SQLite databases.
package sqlite

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/robalyx/sentinel/internal/export/types"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

const schema = `
CREATE TABLE profiles (
	user_id            INTEGER PRIMARY KEY,
	risk_score         REAL NOT NULL,
	risk_level         TEXT NOT NULL,
	total_messages     INTEGER NOT NULL,
	flagged_messages   INTEGER NOT NULL,
	should_escalate    INTEGER NOT NULL,
	escalation_reason  TEXT NOT NULL,
	last_updated       TEXT NOT NULL,
	highest_risk_score REAL NOT NULL
);

CREATE TABLE predictions (
	user_id              INTEGER NOT NULL REFERENCES profiles(user_id),
	timestamp            TEXT NOT NULL,
	grooming_probability REAL NOT NULL,
	confidence           REAL NOT NULL,
	predicted_class      INTEGER NOT NULL,
	error                TEXT
);

CREATE INDEX idx_predictions_user ON predictions(user_id);
`

const batchSize = 1000

// Exporter handles writing profile databases under outDir.
type Exporter struct {
	outDir string
}

// New creates a new SQLite exporter instance.
func New(outDir string) *Exporter {
	return &Exporter{outDir: outDir}
}

// SnapshotName returns the database file name for a run at now.
func SnapshotName(now time.Time) string {
	return "user_risk_profiles_" + now.Format("20060102_150405") + ".db"
}

// Export writes users and their prediction history to a new database.
func (e *Exporter) Export(users []*types.UserSummary, predictions []*types.PredictionRecord, now time.Time) (string, error) {
	path := filepath.Join(e.outDir, SnapshotName(now))

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to remove existing file: %w", err)
	}

	conn, err := sqlite.OpenConn(path, sqlite.OpenCreate|sqlite.OpenReadWrite)
	if err != nil {
		return "", fmt.Errorf("failed to open SQLite database: %w", err)
	}
	defer conn.Close()

	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		return "", fmt.Errorf("failed to create tables: %w", err)
	}

	if err := insertBatched(conn, users, insertUser); err != nil {
		return "", fmt.Errorf("failed to insert profiles: %w", err)
	}

	if err := insertBatched(conn, predictions, insertPrediction); err != nil {
		return "", fmt.Errorf("failed to insert predictions: %w", err)
	}

	return path, nil
}

// insertBatched inserts rows in transactions of batchSize.
func insertBatched[T any](conn *sqlite.Conn, rows []T, insert func(*sqlite.Conn, T) error) error {
	for i := 0; i < len(rows); i += batchSize {
		end := min(i+batchSize, len(rows))

		if err := func() (err error) {
			defer sqlitex.Save(conn)(&err)

			for _, row := range rows[i:end] {
				if err := insert(conn, row); err != nil {
					return err
				}
			}

			return nil
		}(); err != nil {
			return err
		}
	}

	return nil
}

func insertUser(conn *sqlite.Conn, user *types.UserSummary) error {
	return sqlitex.Execute(conn, `
		INSERT INTO profiles (user_id, risk_score, risk_level, total_messages, flagged_messages,
			should_escalate, escalation_reason, last_updated, highest_risk_score)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, &sqlitex.ExecOptions{
		Args: []any{
			int64(user.UserID), user.RiskScore, user.RiskLevel, user.TotalMessages, user.FlaggedMessages,
			boolInt(user.ShouldEscalate), user.EscalationReason, user.LastUpdated.Format(time.RFC3339Nano), user.HighestRiskScore,
		},
	})
}

func insertPrediction(conn *sqlite.Conn, p *types.PredictionRecord) error {
	var errText any
	if p.Error != "" {
		errText = p.Error
	}

	return sqlitex.Execute(conn, `
		INSERT INTO predictions (user_id, timestamp, grooming_probability, confidence, predicted_class, error)
		VALUES (?, ?, ?, ?, ?, ?)`, &sqlitex.ExecOptions{
		Args: []any{
			int64(p.UserID), p.Timestamp.Format(time.RFC3339Nano), p.GroomingProbability, p.Confidence, p.PredictedClass, errText,
		},
	})
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}

	return 0
}
