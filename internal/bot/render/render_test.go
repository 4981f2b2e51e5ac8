package render_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/robalyx/sentinel/internal/bot/render"
	"github.com/robalyx/sentinel/internal/common/types"
	"github.com/robalyx/sentinel/internal/detector"
	"github.com/robalyx/sentinel/internal/escalation"
	"github.com/robalyx/sentinel/internal/risk"
	"github.com/robalyx/sentinel/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalysisColor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		result types.ClassificationResult
		a      escalation.Assessment
		want   int
	}{
		{
			name: "escalation wins",
			a:    escalation.Assessment{Decision: escalation.Decision{Escalate: true}},
			want: render.ColorRed,
		},
		{
			name:   "strong prediction",
			result: types.ClassificationResult{GroomingProbability: 0.9, Confidence: 0.85},
			a:      escalation.Assessment{Level: risk.LevelMinimal},
			want:   render.ColorOrange,
		},
		{
			name:   "high level",
			result: types.ClassificationResult{GroomingProbability: 0.1, Confidence: 0.9},
			a:      escalation.Assessment{Level: risk.LevelHigh},
			want:   render.ColorYellow,
		},
		{
			name:   "moderate probability",
			result: types.ClassificationResult{GroomingProbability: 0.65, Confidence: 0.5},
			a:      escalation.Assessment{Level: risk.LevelMinimal},
			want:   render.ColorGold,
		},
		{
			name:   "failed prediction is safe colored",
			result: types.FailedClassification(errors.New("down")),
			a:      escalation.Assessment{Level: risk.LevelMinimal},
			want:   render.ColorGreen,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, render.AnalysisColor(tt.result, tt.a))
		})
	}
}

func TestAnalysisFields(t *testing.T) {
	t.Parallel()

	msg := types.Message{AuthorID: 7, AuthorName: "alice", ChannelName: "general", Content: "hi"}
	a := escalation.Assessment{
		Level:    risk.LevelCritical,
		Score:    92.5,
		Total:    3,
		Flagged:  2,
		Decision: escalation.Decision{Escalate: true, Reason: "Critical risk score: 92.5"},
	}

	out := render.Analysis(msg, types.ClassificationResult{GroomingProbability: 0.9, Confidence: 0.95, IsGrooming: true}, a, nil, time.Now())
	require.Len(t, out.Embeds, 1)

	embed := out.Embeds[0]
	assert.Equal(t, "🤖 AI Message Analysis", embed.Title)
	require.Len(t, embed.Fields, 4)
	assert.Contains(t, embed.Fields[1].Value, "⚠️ Potential Grooming")
	assert.Contains(t, embed.Fields[2].Value, "**Risk Score:** 92.5/100")
	assert.Contains(t, embed.Fields[2].Value, "🚨 **ESCALATION:** Critical risk score: 92.5")
}

func TestConsequenceDescriptions(t *testing.T) {
	t.Parallel()

	msg := types.Message{AuthorName: "bob"}

	suspend := render.Consequence(msg, storage.ConsequenceSuspend).Embeds[0]
	assert.Equal(t, "**User bob** has been suspended for 30 days.", suspend.Description)

	report := render.Consequence(msg, storage.ConsequenceReportToLaw).Embeds[0]
	assert.Equal(t, "Presenting an immediate danger to the safety of children.", report.Fields[0].Value)
}

func TestFailure(t *testing.T) {
	t.Parallel()

	msg := types.Message{AuthorName: "bob"}

	assert.Equal(t, "Error updating database for user: bob", render.Failure(msg, errors.New("locked")).Content)

	enforce := render.Failure(msg, fmt.Errorf("%w: %w", detector.ErrEnforcement, errors.New("missing permissions")))
	assert.Contains(t, enforce.Content, "Error enforcing action on user: bob")
}

func TestQueueCapsFields(t *testing.T) {
	t.Parallel()

	pending := make([]*types.ModerationCase, 30)
	for i := range pending {
		pending[i] = &types.ModerationCase{Reason: "r", ReporterID: 1, ReportedUserID: 2, Score: 30, Source: types.CaseSourceUserReport}
	}

	embed := render.Queue(pending).Embeds[0]
	assert.Len(t, embed.Fields, 25)
	require.NotNil(t, embed.Footer)
	assert.Equal(t, "Showing 25 of 30 pending reports", embed.Footer.Text)
	assert.Equal(t, "From: <@1> | Against: <@2> | Score: 30", embed.Fields[0].Value)
}

func TestSearchResultsFooter(t *testing.T) {
	t.Parallel()

	matches := make([]types.Message, 12)
	embed := render.SearchResults([]string{"meet", "secret"}, matches).Embeds[0]

	assert.Len(t, embed.Fields, 10)
	assert.Equal(t, "Found 12 messages with keywords: meet, secret", embed.Description)
	require.NotNil(t, embed.Footer)
	assert.Equal(t, "Showing 10 of 12 matching messages", embed.Footer.Text)
}

func TestThreadMarksReportedMessage(t *testing.T) {
	t.Parallel()

	c := &types.ModerationCase{Message: types.Message{ID: 2, ChannelName: "general"}}
	at := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)

	embed := render.Thread(c, []types.Message{
		{ID: 1, AuthorName: "a", Content: "hello", CreatedAt: at},
		{ID: 2, AuthorName: "b", CreatedAt: at},
	}).Embeds[0]

	require.Len(t, embed.Fields, 2)
	assert.Equal(t, "a (2024-05-01 12:30)", embed.Fields[0].Name)
	assert.Equal(t, "⚠️ b (2024-05-01 12:30)", embed.Fields[1].Name)
	assert.Equal(t, "(No content)", embed.Fields[1].Value)
}

func TestProfileAttachesChart(t *testing.T) {
	t.Parallel()

	now := time.Now()
	profile := &risk.Profile{
		UserID:    42,
		RiskScore: 80,
		PredictionHistory: []risk.Prediction{
			{Timestamp: now, GroomingProbability: 0.2, Confidence: 0.9},
			{Timestamp: now, GroomingProbability: 0.9, Confidence: 0.95},
		},
	}

	out := render.Profile("carol", profile, escalation.Decision{Escalate: true, Reason: "Multiple high-confidence flags: 3"})
	require.Len(t, out.Embeds, 1)
	assert.Equal(t, render.ColorRed, out.Embeds[0].Color)
	require.Len(t, out.Files, 1)
	assert.Equal(t, render.ChartFileName, out.Files[0].Name)

	last := out.Embeds[0].Fields[len(out.Embeds[0].Fields)-1]
	assert.Equal(t, "**REQUIRES ESCALATION**\nMultiple high-confidence flags: 3", last.Value)
}

func TestHistoryChartNeedsTwoPoints(t *testing.T) {
	t.Parallel()

	buf, err := render.HistoryChart([]risk.Prediction{{GroomingProbability: 0.5, Confidence: 0.5}})
	require.NoError(t, err)
	assert.Nil(t, buf)
}
