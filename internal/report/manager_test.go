package report_test

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/rueidis"
	"github.com/robalyx/sentinel/internal/ratelimit"
	"github.com/robalyx/sentinel/internal/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newRedisStore(t *testing.T) (*report.RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{mr.Addr()},
		DisableCache: true,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})

	return report.NewRedisStore(client, report.SessionTTL), mr
}

func TestManagerHelpAndIgnore(t *testing.T) {
	t.Parallel()

	store := report.NewMemoryStore(time.Minute)
	t.Cleanup(store.Close)

	queue := &recordingQueue{}
	m := report.NewManager(report.NewDialog(fakeResolver{}, queue, nil), store, nil, zap.NewNop())

	replies, err := m.HandleDirectMessage(t.Context(), 1, "help")
	require.NoError(t, err)
	assert.Equal(t, []string{report.HelpText()}, replies)

	replies, err = m.HandleDirectMessage(t.Context(), 1, "hello bot")
	require.NoError(t, err)
	assert.Empty(t, replies)
	assert.Equal(t, 0, store.Len())
}

func TestManagerFullReportMemoryStore(t *testing.T) {
	t.Parallel()

	store := report.NewMemoryStore(time.Minute)
	t.Cleanup(store.Close)

	queue := &recordingQueue{}
	m := report.NewManager(report.NewDialog(fakeResolver{}, queue, nil), store, nil, zap.NewNop())

	for _, input := range []string{"report", reportLink, "3", "1", "2", "no"} {
		_, err := m.HandleDirectMessage(t.Context(), 5, input)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, store.Len())

	_, err := m.HandleDirectMessage(t.Context(), 5, "no")
	require.NoError(t, err)

	assert.Equal(t, 0, store.Len())
	assert.Equal(t, 1, queue.Len())
}

func TestManagerRedisStore(t *testing.T) {
	t.Parallel()

	store, mr := newRedisStore(t)
	queue := &recordingQueue{}
	m := report.NewManager(report.NewDialog(fakeResolver{}, queue, nil), store, nil, zap.NewNop())
	ctx := t.Context()

	_, err := m.HandleDirectMessage(ctx, 5, "report")
	require.NoError(t, err)
	_, err = m.HandleDirectMessage(ctx, 5, reportLink)
	require.NoError(t, err)

	s, ok, err := store.Get(ctx, 5)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, report.StateCategorySelect, s.State)
	require.NotNil(t, s.TargetMessage)
	assert.Equal(t, uint64(999), s.TargetMessage.AuthorID)
	assert.Equal(t, report.SessionTTL, mr.TTL("report_session:5"))

	_, err = m.HandleDirectMessage(ctx, 5, "cancel")
	require.NoError(t, err)
	assert.False(t, mr.Exists("report_session:5"))
	assert.Equal(t, 0, queue.Len())
}

func TestRedisStoreExpiry(t *testing.T) {
	t.Parallel()

	store, mr := newRedisStore(t)
	ctx := t.Context()

	require.NoError(t, store.Put(ctx, report.NewSession(9, time.Now())))
	mr.FastForward(report.SessionTTL + time.Second)

	_, ok, err := store.Get(ctx, 9)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestManagerRateLimitsInput(t *testing.T) {
	t.Parallel()

	store := report.NewMemoryStore(time.Minute)
	t.Cleanup(store.Close)

	limiter := ratelimit.New(&ratelimit.Config{
		PerUserCooldown: map[ratelimit.Event]time.Duration{ratelimit.EventReportInput: time.Hour},
	}, nil, zap.NewNop())
	m := report.NewManager(report.NewDialog(fakeResolver{}, &recordingQueue{}, nil), store, limiter, zap.NewNop())

	replies, err := m.HandleDirectMessage(t.Context(), 1, "report")
	require.NoError(t, err)
	assert.Len(t, replies, 1)

	replies, err = m.HandleDirectMessage(t.Context(), 1, reportLink)
	require.NoError(t, err)
	assert.Empty(t, replies)

	s, ok, err := store.Get(t.Context(), 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, report.StateAwaitingMessageLink, s.State)
}
