package detector_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/robalyx/sentinel/internal/common/types"
	"github.com/robalyx/sentinel/internal/conversation"
	"github.com/robalyx/sentinel/internal/detector"
	"github.com/robalyx/sentinel/internal/escalation"
	"github.com/robalyx/sentinel/internal/moderation"
	"github.com/robalyx/sentinel/internal/ratelimit"
	"github.com/robalyx/sentinel/internal/risk"
	"github.com/robalyx/sentinel/internal/storage"
	"github.com/robalyx/sentinel/internal/storage/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	low  = types.ClassificationResult{GroomingProbability: 0.1, Confidence: 0.9}
	high = types.ClassificationResult{GroomingProbability: 0.9, Confidence: 0.9, PredictedClass: 1, IsGrooming: true}
)

type scriptedClassifier struct {
	mu      sync.Mutex
	results []types.ClassificationResult
	texts   []string
}

func (c *scriptedClassifier) Classify(_ context.Context, text string) types.ClassificationResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.texts = append(c.texts, text)
	result := c.results[0]
	c.results = c.results[1:]

	return result
}

type recordingNotifier struct {
	mu           sync.Mutex
	analyses     int
	escalated    []*types.ModerationCase
	consequences []storage.Consequence
	failures     []error
}

func (n *recordingNotifier) Analysis(context.Context, *detector.Analysis) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.analyses++
}

func (n *recordingNotifier) Escalated(_ context.Context, _ *detector.Analysis, c *types.ModerationCase) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.escalated = append(n.escalated, c)
}

func (n *recordingNotifier) Consequence(_ context.Context, _ types.Message, c storage.Consequence) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.consequences = append(n.consequences, c)
}

func (n *recordingNotifier) Failure(_ context.Context, _ types.Message, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failures = append(n.failures, err)
}

type recordingRecorder struct {
	rows []string
}

func (r *recordingRecorder) AppendFlagged(
	_ types.Message, _ types.ClassificationResult, _ escalation.Assessment, conversationID string, _ int,
) (string, error) {
	r.rows = append(r.rows, conversationID)
	return "flagged.csv", nil
}

type recordingEnforcer struct {
	applied []storage.Consequence
}

func (e *recordingEnforcer) Enforce(_ context.Context, _ types.Message, c storage.Consequence) error {
	e.applied = append(e.applied, c)
	return nil
}

type fixture struct {
	detector   *detector.Detector
	classifier *scriptedClassifier
	risks      *risk.Store
	queue      *moderation.Queue
	store      *sqlite.Store
	notifier   *recordingNotifier
	recorder   *recordingRecorder
	enforcer   *recordingEnforcer
	now        time.Time
}

func newFixture(t *testing.T, opts detector.Options, results ...types.ClassificationResult) *fixture {
	t.Helper()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "stats.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	f := &fixture{
		classifier: &scriptedClassifier{results: results},
		risks:      risk.NewStore(zap.NewNop(), clock),
		queue:      moderation.NewQueue(nil, nil, zap.NewNop()),
		store:      store,
		notifier:   &recordingNotifier{},
		recorder:   &recordingRecorder{},
		enforcer:   &recordingEnforcer{},
		now:        now,
	}

	f.detector = detector.New(detector.Dependencies{
		Window:     conversation.NewWindow(50, 24*time.Hour, conversation.WithClock(clock)),
		Classifier: f.classifier,
		Risks:      f.risks,
		Queue:      f.queue,
		Store:      f.store,
		Recorder:   f.recorder,
		Notifier:   f.notifier,
		Enforcer:   f.enforcer,
		Logger:     zap.NewNop(),
		Clock:      clock,
	}, opts)

	return f
}

func message(id uint64, content string, at time.Time) types.Message {
	return types.Message{
		ID:         id,
		AuthorID:   7,
		AuthorName: "someone",
		ChannelID:  3,
		GuildID:    1,
		Content:    content,
		CreatedAt:  at,
	}
}

func TestProcessEscalatesOnThirdFlag(t *testing.T) {
	t.Parallel()

	f := newFixture(t, detector.Options{PostAnalysis: true}, low, low, high, high, high, high)

	var analyses []*detector.Analysis
	for i := range 5 {
		analyses = append(analyses, f.detector.Process(t.Context(), message(uint64(i+1), "hello there friend", f.now)))
	}

	for _, a := range analyses[:4] {
		assert.False(t, a.Assessment.Decision.Escalate)
		assert.Nil(t, a.Case)
	}

	last := analyses[4]
	assert.True(t, last.Assessment.Decision.Escalate)
	assert.Equal(t, "Multiple high-confidence flags: 3", last.Assessment.Decision.Reason)
	require.NotNil(t, last.Case)
	assert.Equal(t, escalation.AutomaticReason, last.Case.Reason)
	assert.Equal(t, 5, f.notifier.analyses)
	require.Len(t, f.notifier.escalated, 1)

	// A pending automatic case suppresses duplicates
	again := f.detector.Process(t.Context(), message(6, "hello there friend", f.now))
	assert.True(t, again.Assessment.Decision.Escalate)
	assert.Nil(t, again.Case)
	assert.Len(t, f.queue.Pending(), 1)

	profile, ok := f.risks.Profile(7)
	require.True(t, ok)
	assert.Equal(t, 6, profile.TotalMessages)
	assert.Equal(t, 4, profile.FlaggedMessages)

	// Every flagged message is saved
	assert.Len(t, f.recorder.rows, 4)

	stats, err := f.store.GetUserStats(t.Context(), 7)
	require.NoError(t, err)
	assert.Equal(t, 6, stats.MessageCount)
	assert.Len(t, stats.Conversations, 6)
}

func TestProcessUsesConversationContext(t *testing.T) {
	t.Parallel()

	f := newFixture(t, detector.Options{}, low, low)

	f.detector.Process(t.Context(), message(1, "first message", f.now))
	f.detector.Process(t.Context(), message(2, "second message", f.now))

	assert.Equal(t, []string{
		"first message",
		"someone: first message\nsomeone: second message",
	}, f.classifier.texts)
}

func TestProcessClassifierFailure(t *testing.T) {
	t.Parallel()

	failed := types.FailedClassification(errors.New("classifier unavailable"))
	f := newFixture(t, detector.Options{PostAnalysis: true}, failed)

	a := f.detector.Process(t.Context(), message(1, "hello there friend", f.now))

	assert.True(t, a.Result.Failed())
	assert.False(t, a.Assessment.Decision.Escalate)
	assert.Equal(t, 1, f.notifier.analyses)
	assert.Empty(t, f.recorder.rows)

	profile, ok := f.risks.Profile(7)
	require.True(t, ok)
	assert.Equal(t, 1, profile.TotalMessages)
	assert.InDelta(t, risk.InitialScore, profile.RiskScore, 1e-9)

	exists, err := f.store.UserExists(t.Context(), 7)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestProcessAppliesConsequence(t *testing.T) {
	t.Parallel()

	f := newFixture(t, detector.Options{EnforceAutoActions: true}, high)

	require.NoError(t, f.store.AddUser(t.Context(), 7, "someone", nil))
	for i := range 4 {
		require.NoError(t, f.store.LogConversation(t.Context(), storage.ConversationEntry{
			UserID:      7,
			MessageID:   uint64(100 + i),
			MLRiskScore: 95,
		}))
	}

	f.risks.Restore([]*risk.Profile{{UserID: 7, RiskScore: 95, HighestRiskScore: 95}})

	a := f.detector.Process(t.Context(), message(1, "hello there friend", f.now))

	assert.Equal(t, storage.ConsequenceReportToLaw, a.Consequence)
	assert.Equal(t, []storage.Consequence{storage.ConsequenceReportToLaw}, f.notifier.consequences)
	assert.Equal(t, []storage.Consequence{storage.ConsequenceReportToLaw}, f.enforcer.applied)

	stats, err := f.store.GetUserStats(t.Context(), 7)
	require.NoError(t, err)
	assert.True(t, stats.ReportedToLaw)
	assert.True(t, stats.Banned)
	assert.InDelta(t, 90.8, stats.RiskScore, 1e-6)
}

func TestProcessRateLimited(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	limiter := ratelimit.New(&ratelimit.Config{
		PerGuildLimit:    map[ratelimit.Event]int{ratelimit.EventClassify: 1},
		GuildResetPeriod: time.Minute,
	}, func() time.Time { return now }, zap.NewNop())

	classifier := &scriptedClassifier{results: []types.ClassificationResult{low}}
	d := detector.New(detector.Dependencies{
		Window:     conversation.NewWindow(50, 24*time.Hour),
		Classifier: classifier,
		Risks:      risk.NewStore(zap.NewNop(), nil),
		Queue:      moderation.NewQueue(nil, nil, zap.NewNop()),
		Limiter:    limiter,
	}, detector.Options{})

	assert.False(t, d.Process(t.Context(), message(1, "hello there friend", now)).Skipped)
	assert.True(t, d.Process(t.Context(), message(2, "hello there friend", now)).Skipped)
	assert.Len(t, classifier.texts, 1)
}
