package csv_test

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	exportCSV "github.com/robalyx/sentinel/internal/export/csv"
	"github.com/robalyx/sentinel/internal/export/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, path string) [][]string {
	t.Helper()

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)

	return records
}

func TestAppendConversationWritesHeaderOnce(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	e := exportCSV.New(dir)
	day := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	row := &types.FlaggedConversation{
		Timestamp:           day,
		MessageID:           42,
		ConversationID:      "10_7_1000",
		UserID:              7,
		Username:            "someone",
		MessageContent:      "hello, \"friend\"",
		GroomingProbability: 0.91,
		ModelConfidence:     0.88,
		RiskLevel:           "medium",
		RiskScore:           61.5,
		ShouldEscalate:      true,
		EscalationReason:    "Multiple high-confidence flags: 3",
		ContextLength:       4,
		CreatedAt:           day,
	}

	path, err := e.AppendConversation(row)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "flagged_conversations_20250601.csv"), path)

	_, err = e.AppendConversation(row)
	require.NoError(t, err)

	records := readAll(t, path)
	require.Len(t, records, 3)
	assert.Equal(t, exportCSV.ConversationHeader, records[0])
	assert.Equal(t, "42", records[1][1])
	assert.Equal(t, "hello, \"friend\"", records[1][9])
	assert.Equal(t, "0.91", records[1][10])
	assert.Equal(t, "true", records[1][14])
	assert.Equal(t, "4", records[2][16])
}

func TestAppendConversationRollsDaily(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	e := exportCSV.New(dir)

	first, err := e.AppendConversation(&types.FlaggedConversation{Timestamp: time.Date(2025, 6, 1, 23, 0, 0, 0, time.UTC)})
	require.NoError(t, err)

	second, err := e.AppendConversation(&types.FlaggedConversation{Timestamp: time.Date(2025, 6, 2, 1, 0, 0, 0, time.UTC)})
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Len(t, readAll(t, second), 2)
}

func TestWriteUsers(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	e := exportCSV.New(dir)
	now := time.Date(2025, 6, 1, 8, 30, 15, 0, time.UTC)

	path, err := e.WriteUsers([]*types.UserSummary{
		{UserID: 1, RiskScore: 37.7, RiskLevel: "minimal", TotalMessages: 1, HighestRiskScore: 50},
		{UserID: 2, RiskScore: 93.333, RiskLevel: "critical", TotalMessages: 9, FlaggedMessages: 8, ShouldEscalate: true, EscalationReason: "Critical risk score: 93.3", HighestRiskScore: 93.333},
	}, now)
	require.NoError(t, err)
	assert.Equal(t, "flagged_users_report_20250601_083015.csv", filepath.Base(path))

	records := readAll(t, path)
	require.Len(t, records, 3)
	assert.Equal(t, exportCSV.UserHeader, records[0])
	assert.Equal(t, []string{"1", "37.70", "minimal", "1", "0", "false", ""}, records[1][:7])
	assert.Equal(t, "93.33", records[2][1])
	assert.Equal(t, "93.33", records[2][8])
}
