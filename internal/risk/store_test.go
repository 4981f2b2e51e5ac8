package risk_test

import (
	"sync"
	"testing"
	"time"

	"github.com/robalyx/sentinel/internal/common/types"
	"github.com/robalyx/sentinel/internal/risk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	lowResult  = types.ClassificationResult{GroomingProbability: 0.1, Confidence: 0.9}
	highResult = types.ClassificationResult{GroomingProbability: 0.9, Confidence: 0.9, PredictedClass: 1, IsGrooming: true}
)

func newStore() *risk.Store {
	return risk.NewStore(zap.NewNop(), nil)
}

func TestUpdateUserScoreSequence(t *testing.T) {
	t.Parallel()

	store := newStore()
	want := []float64{37.7, 29.09, 30.263, 34.6841, 39.93887}
	results := []types.ClassificationResult{lowResult, lowResult, highResult, highResult, highResult}

	for i, result := range results {
		profile := store.UpdateUserScore(1, result)
		assert.InDelta(t, want[i], profile.RiskScore, 1e-3, "step %d", i)
	}

	profile, ok := store.Profile(1)
	require.True(t, ok)
	assert.Equal(t, 5, profile.TotalMessages)
	assert.Equal(t, 3, profile.FlaggedMessages)
	assert.InDelta(t, 50.0, profile.HighestRiskScore, 1e-9)
	assert.Len(t, profile.PredictionHistory, 5)
}

func TestLowConfidenceLeavesScoreUnchanged(t *testing.T) {
	t.Parallel()

	store := newStore()
	profile := store.UpdateUserScore(1, types.ClassificationResult{GroomingProbability: 0.99, Confidence: 0.5})

	assert.InDelta(t, risk.InitialScore, profile.RiskScore, 1e-9)
	assert.Equal(t, 1, profile.TotalMessages)
	assert.Equal(t, 0, profile.FlaggedMessages)
}

func TestFailedResultIsCountedWithoutSignal(t *testing.T) {
	t.Parallel()

	store := newStore()
	profile := store.UpdateUserScore(1, types.ClassificationResult{Err: "timeout"})

	assert.InDelta(t, risk.InitialScore, profile.RiskScore, 1e-9)
	assert.Equal(t, 1, profile.TotalMessages)
	assert.Equal(t, 0, profile.FlaggedMessages)
	require.Len(t, profile.PredictionHistory, 1)
	assert.Equal(t, "timeout", profile.PredictionHistory[0].Err)
}

func TestHighestRiskScoreIsMonotone(t *testing.T) {
	t.Parallel()

	store := newStore()
	highest := 0.0

	for i := range 30 {
		result := highResult
		if i%3 == 0 {
			result = lowResult
		}

		profile := store.UpdateUserScore(1, result)
		assert.GreaterOrEqual(t, profile.HighestRiskScore, profile.RiskScore)
		assert.GreaterOrEqual(t, profile.HighestRiskScore, highest)
		assert.LessOrEqual(t, profile.FlaggedMessages, profile.TotalMessages)
		highest = profile.HighestRiskScore
	}
}

func TestHistoryIsBounded(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store := risk.NewStore(zap.NewNop(), func() time.Time {
		now = now.Add(time.Second)
		return now
	})

	for range risk.MaxHistory + 20 {
		store.UpdateUserScore(1, lowResult)
	}

	profile, ok := store.Profile(1)
	require.True(t, ok)
	require.Len(t, profile.PredictionHistory, risk.MaxHistory)
	assert.True(t, profile.PredictionHistory[0].Timestamp.Before(profile.PredictionHistory[1].Timestamp))
	assert.Equal(t, risk.MaxHistory+20, profile.TotalMessages)
}

func TestRiskLevel(t *testing.T) {
	t.Parallel()

	store := newStore()

	level, score := store.RiskLevel(42)
	assert.Equal(t, risk.LevelUnknown, level)
	assert.InDelta(t, 50.0, score, 0)

	store.OverrideScore(42, 92)
	level, score = store.RiskLevel(42)
	assert.Equal(t, risk.LevelCritical, level)
	assert.InDelta(t, 92.0, score, 0)
}

func TestLevelForScore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		score float64
		want  risk.Level
	}{
		{95, risk.LevelCritical},
		{90, risk.LevelCritical},
		{75, risk.LevelHigh},
		{60, risk.LevelMedium},
		{40, risk.LevelLow},
		{39.99, risk.LevelMinimal},
		{0, risk.LevelMinimal},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, risk.LevelForScore(tt.score), "score %v", tt.score)
	}

	assert.Equal(t, "Critical", risk.LevelCritical.Title())
}

func TestOverrideScoreClamps(t *testing.T) {
	t.Parallel()

	store := newStore()

	profile := store.OverrideScore(1, 140)
	assert.InDelta(t, 100.0, profile.RiskScore, 0)
	assert.InDelta(t, 100.0, profile.HighestRiskScore, 0)

	profile = store.OverrideScore(1, 10)
	assert.InDelta(t, 10.0, profile.RiskScore, 0)
	assert.InDelta(t, 100.0, profile.HighestRiskScore, 0)
}

func TestProfilesAndRestore(t *testing.T) {
	t.Parallel()

	store := newStore()
	store.UpdateUserScore(3, highResult)
	store.UpdateUserScore(1, lowResult)

	profiles := store.Profiles()
	require.Len(t, profiles, 2)
	assert.Equal(t, uint64(1), profiles[0].UserID)
	assert.Equal(t, uint64(3), profiles[1].UserID)

	restored := newStore()
	restored.Restore(profiles)
	assert.Equal(t, 2, restored.Len())

	got, ok := restored.Profile(3)
	require.True(t, ok)
	assert.InDelta(t, profiles[1].RiskScore, got.RiskScore, 1e-9)
}

func TestProfileSnapshotIsIsolated(t *testing.T) {
	t.Parallel()

	store := newStore()
	profile := store.UpdateUserScore(1, highResult)
	profile.PredictionHistory[0].GroomingProbability = 0

	fresh, _ := store.Profile(1)
	assert.InDelta(t, 0.9, fresh.PredictionHistory[0].GroomingProbability, 1e-9)
}

func TestUpdateUserScoreConcurrent(t *testing.T) {
	t.Parallel()

	const (
		workers = 16
		updates = 50
	)

	store := newStore()

	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range updates {
				result := lowResult
				if (i+j)%2 == 0 {
					result = highResult
				}
				profile := store.UpdateUserScore(1, result)
				assert.GreaterOrEqual(t, profile.HighestRiskScore, profile.RiskScore)
			}
		}()
	}
	wg.Wait()

	profile, ok := store.Profile(1)
	require.True(t, ok)
	assert.Equal(t, workers*updates, profile.TotalMessages)
	assert.Equal(t, workers*updates/2, profile.FlaggedMessages)
	assert.Len(t, profile.PredictionHistory, risk.MaxHistory)
}

func TestLevelTitleConcurrent(t *testing.T) {
	t.Parallel()

	levels := []risk.Level{risk.LevelCritical, risk.LevelHigh, risk.LevelMedium, risk.LevelLow, risk.LevelMinimal}
	want := []string{"Critical", "High", "Medium", "Low", "Minimal"}

	var wg sync.WaitGroup
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 200 {
				idx := j % len(levels)
				assert.Equal(t, want[idx], levels[idx].Title())
			}
		}()
	}
	wg.Wait()
}
