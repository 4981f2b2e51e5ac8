package sqlite_test

import (
	"path/filepath"
	"testing"
	"time"

	exportSQLite "github.com/robalyx/sentinel/internal/export/sqlite"
	"github.com/robalyx/sentinel/internal/export/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

func TestExport(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	now := time.Date(2025, 6, 1, 8, 30, 15, 0, time.UTC)

	users := []*types.UserSummary{
		{UserID: 1, RiskScore: 37.7, RiskLevel: "minimal", TotalMessages: 2},
		{UserID: 2, RiskScore: 91, RiskLevel: "critical", TotalMessages: 3, FlaggedMessages: 3, ShouldEscalate: true},
	}
	predictions := []*types.PredictionRecord{
		{UserID: 1, Timestamp: now, GroomingProbability: 0.1, Confidence: 0.9},
		{UserID: 1, Timestamp: now, Error: "classifier unavailable"},
		{UserID: 2, Timestamp: now, GroomingProbability: 0.9, Confidence: 0.9, PredictedClass: 1},
	}

	path, err := exportSQLite.New(dir).Export(users, predictions, now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "user_risk_profiles_20250601_083015.db"), path)

	conn, err := sqlite.OpenConn(path, sqlite.OpenReadOnly)
	require.NoError(t, err)
	defer conn.Close()

	var escalated []int64
	err = sqlitex.Execute(conn, "SELECT user_id FROM profiles WHERE should_escalate = 1", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			escalated = append(escalated, stmt.ColumnInt64(0))
			return nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, escalated)

	var count, failed int64
	err = sqlitex.Execute(conn, "SELECT COUNT(*), COUNT(error) FROM predictions WHERE user_id = ?", &sqlitex.ExecOptions{
		Args: []any{1},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			count = stmt.ColumnInt64(0)
			failed = stmt.ColumnInt64(1)
			return nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	assert.Equal(t, int64(1), failed)
}

func TestExportEmpty(t *testing.T) {
	t.Parallel()

	path, err := exportSQLite.New(t.TempDir()).Export(nil, nil, time.Now())
	require.NoError(t, err)
	assert.FileExists(t, path)
}
