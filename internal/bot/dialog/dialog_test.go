package dialog_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/disgoorg/disgo/discord"
	"github.com/robalyx/sentinel/internal/bot/dialog"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type stubReporter struct {
	replies []string
	err     error
}

func (r stubReporter) HandleDirectMessage(context.Context, uint64, string) ([]string, error) {
	return r.replies, r.err
}

type recordingSender struct {
	mu   sync.Mutex
	sent []string
}

func (s *recordingSender) Send(_ context.Context, _ uint64, msg discord.MessageCreate) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg.Content)
	return uint64(len(s.sent)), nil
}

func TestHandleSendsRepliesInOrder(t *testing.T) {
	t.Parallel()

	sender := &recordingSender{}
	h := dialog.New(stubReporter{replies: []string{"first", "second"}}, sender, zap.NewNop())

	h.Handle(t.Context(), 1, 2, "report")
	assert.Equal(t, []string{"first", "second"}, sender.sent)
}

func TestHandleIgnoredMessageSendsNothing(t *testing.T) {
	t.Parallel()

	sender := &recordingSender{}
	h := dialog.New(stubReporter{}, sender, zap.NewNop())

	h.Handle(t.Context(), 1, 2, "hello")
	assert.Empty(t, sender.sent)
}

func TestHandleFailureApologizes(t *testing.T) {
	t.Parallel()

	sender := &recordingSender{}
	h := dialog.New(stubReporter{err: errors.New("redis down")}, sender, zap.NewNop())

	h.Handle(t.Context(), 1, 2, "report")
	assert.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0], "Something went wrong")
}
