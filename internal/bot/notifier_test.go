package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/disgoorg/disgo/discord"
	"github.com/robalyx/sentinel/internal/common/types"
	"github.com/robalyx/sentinel/internal/detector"
	"github.com/robalyx/sentinel/internal/escalation"
	"github.com/robalyx/sentinel/internal/risk"
	"github.com/robalyx/sentinel/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type sentMessage struct {
	channelID uint64
	msg       discord.MessageCreate
}

type recordingSender struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (s *recordingSender) Send(_ context.Context, channelID uint64, msg discord.MessageCreate) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return 0, s.err
	}

	s.sent = append(s.sent, sentMessage{channelID: channelID, msg: msg})

	return uint64(len(s.sent)), nil
}

func testAnalysis(result types.ClassificationResult) *detector.Analysis {
	return &detector.Analysis{
		Message: types.Message{ID: 10, AuthorID: 7, AuthorName: "bob", ChannelName: "general", Content: "hello"},
		Result:  result,
		Assessment: escalation.Assessment{
			Level:    risk.LevelHigh,
			Score:    22,
			Decision: escalation.Decision{Escalate: true, Reason: "High risk score"},
		},
	}
}

func TestNotifierPostsToModeratorChannel(t *testing.T) {
	t.Parallel()

	sender := &recordingSender{}
	n := NewNotifier(sender, 99, zap.NewNop())

	a := testAnalysis(types.ClassificationResult{GroomingProbability: 0.9, Confidence: 0.9, IsGrooming: true})
	n.Analysis(t.Context(), a)
	n.Escalated(t.Context(), a, &types.ModerationCase{ID: "c1"})
	n.Consequence(t.Context(), a.Message, storage.ConsequenceBan)

	require.Len(t, sender.sent, 3)
	for _, s := range sender.sent {
		assert.Equal(t, uint64(99), s.channelID)
		require.Len(t, s.msg.Embeds, 1)
	}

	assert.Equal(t, "🤖 AI Message Analysis", sender.sent[0].msg.Embeds[0].Title)
	assert.Equal(t, "🚨 AUTOMATIC AI ESCALATION", sender.sent[1].msg.Embeds[0].Title)
	assert.Equal(t, "🚨 BOT ALERT", sender.sent[2].msg.Embeds[0].Title)
}

func TestNotifierFailedClassificationPostsError(t *testing.T) {
	t.Parallel()

	sender := &recordingSender{}
	n := NewNotifier(sender, 99, zap.NewNop())

	n.Analysis(t.Context(), testAnalysis(types.FailedClassification(errors.New("model offline"))))

	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0].msg.Content, "ML Processing Error")
	assert.Contains(t, sender.sent[0].msg.Content, "model offline")
}

func TestNotifierFailureKinds(t *testing.T) {
	t.Parallel()

	sender := &recordingSender{}
	n := NewNotifier(sender, 99, zap.NewNop())
	msg := types.Message{AuthorName: "bob"}

	n.Failure(t.Context(), msg, errors.New("disk full"))
	n.Failure(t.Context(), msg, fmt.Errorf("%w: %w", detector.ErrEnforcement, errors.New("missing permissions")))

	require.Len(t, sender.sent, 2)
	assert.Equal(t, "Error updating database for user: bob", sender.sent[0].msg.Content)
	assert.Contains(t, sender.sent[1].msg.Content, "Error enforcing action on user: bob")
}

func TestNotifierWithoutChannelIsSilent(t *testing.T) {
	t.Parallel()

	sender := &recordingSender{}
	n := NewNotifier(sender, 0, zap.NewNop())

	n.Consequence(t.Context(), types.Message{AuthorName: "bob"}, storage.ConsequenceSuspend)
	assert.Empty(t, sender.sent)
}

func TestNotifierSendErrorIsSwallowed(t *testing.T) {
	t.Parallel()

	sender := &recordingSender{err: errors.New("forbidden")}
	n := NewNotifier(sender, 99, zap.NewNop())

	assert.NotPanics(t, func() {
		n.Consequence(t.Context(), types.Message{AuthorName: "bob"}, storage.ConsequenceReportToLaw)
	})
}
