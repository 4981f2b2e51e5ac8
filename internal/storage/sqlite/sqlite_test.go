package sqlite_test

import (
	"path/filepath"
	"testing"

	"github.com/robalyx/sentinel/internal/storage"
	"github.com/robalyx/sentinel/internal/storage/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openStore(t *testing.T) *sqlite.Store {
	t.Helper()

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "user_stats.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestAddUserIsIdempotent(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	store := openStore(t)

	exists, err := store.UserExists(ctx, 1)
	require.NoError(t, err)
	assert.False(t, exists)

	age := 14
	require.NoError(t, store.AddUser(ctx, 1, "alice", &age))
	require.NoError(t, store.AddUser(ctx, 1, "renamed", nil))

	exists, err = store.UserExists(ctx, 1)
	require.NoError(t, err)
	assert.True(t, exists)

	stats, err := store.GetUserStats(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "alice", stats.ProfileName)
	require.NotNil(t, stats.Age)
	assert.Equal(t, 14, *stats.Age)
}

func TestLogConversationWeightsScore(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	store := openStore(t)
	require.NoError(t, store.AddUser(ctx, 7, "bob", nil))

	want := []float64{10, 20, 30, 40, 50, 50}
	for i, expected := range want {
		err := store.LogConversation(ctx, storage.ConversationEntry{
			UserID:            7,
			MessageID:         uint64(100 + i),
			ConversationID:    "9_7_1000",
			ConfidenceScore:   0.9,
			GroomingSuspected: i%2 == 0,
			MLRiskScore:       50,
		})
		require.NoError(t, err)

		stats, err := store.GetUserStats(ctx, 7)
		require.NoError(t, err)
		assert.InDelta(t, expected, stats.RiskScore, 1e-9, "message %d", i+1)
		assert.Equal(t, i+1, stats.MessageCount)
	}

	stats, err := store.GetUserStats(ctx, 7)
	require.NoError(t, err)
	require.Len(t, stats.Conversations, 6)
	assert.Equal(t, uint64(100), stats.Conversations[0].MessageID)
	assert.Equal(t, uint64(105), stats.Conversations[5].MessageID)
	assert.True(t, stats.Conversations[0].GroomingSuspected)
	assert.False(t, stats.Conversations[1].GroomingSuspected)
	assert.Nil(t, stats.Age)
}

func TestLogConversationUnknownUser(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	store := openStore(t)

	err := store.LogConversation(ctx, storage.ConversationEntry{UserID: 404, MLRiskScore: 50})
	require.ErrorIs(t, err, storage.ErrUserNotFound)

	// Rolled back, nothing was written
	require.NoError(t, store.AddUser(ctx, 404, "late", nil))
	stats, err := store.GetUserStats(ctx, 404)
	require.NoError(t, err)
	assert.Empty(t, stats.Conversations)
}

func TestStatusUpdates(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	store := openStore(t)
	require.NoError(t, store.AddUser(ctx, 3, "carol", nil))

	require.NoError(t, store.UpdateSuspension(ctx, 3, true, 30))
	require.NoError(t, store.UpdateBanStatus(ctx, 3, true))
	require.NoError(t, store.UpdateReportToLaw(ctx, 3, true, true))

	stats, err := store.GetUserStats(ctx, 3)
	require.NoError(t, err)
	assert.True(t, stats.Suspended)
	assert.Equal(t, 30, stats.SuspensionDays)
	assert.True(t, stats.Banned)
	assert.True(t, stats.ReportedToLaw)

	require.ErrorIs(t, store.UpdateBanStatus(ctx, 99, true), storage.ErrUserNotFound)

	_, err = store.GetUserStats(ctx, 99)
	require.ErrorIs(t, err, storage.ErrUserNotFound)
}

func TestApplyConsequence(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	store := openStore(t)
	require.NoError(t, store.AddUser(ctx, 5, "dave", nil))

	require.NoError(t, storage.ApplyConsequence(ctx, store, 5, storage.ConsequenceReportToLaw))

	stats, err := store.GetUserStats(ctx, 5)
	require.NoError(t, err)
	assert.True(t, stats.ReportedToLaw)
	assert.True(t, stats.Banned)
	assert.False(t, stats.Suspended)

	require.NoError(t, storage.ApplyConsequence(ctx, store, 5, storage.ConsequenceNone))
}
