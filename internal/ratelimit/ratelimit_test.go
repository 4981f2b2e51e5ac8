package ratelimit_test

import (
	"testing"
	"time"

	"github.com/robalyx/sentinel/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func TestUserCooldown(t *testing.T) {
	t.Parallel()

	c := &clock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := ratelimit.New(&ratelimit.Config{
		PerUserCooldown: map[ratelimit.Event]time.Duration{ratelimit.EventReportInput: time.Second},
	}, c.Now, zap.NewNop())

	assert.True(t, l.Allow(ratelimit.EventReportInput, 1, 0))
	assert.False(t, l.Allow(ratelimit.EventReportInput, 1, 0))
	assert.True(t, l.Allow(ratelimit.EventReportInput, 2, 0))

	c.now = c.now.Add(time.Second)
	assert.True(t, l.Allow(ratelimit.EventReportInput, 1, 0))
}

func TestGuildAndGlobalLimits(t *testing.T) {
	t.Parallel()

	c := &clock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := ratelimit.New(&ratelimit.Config{
		PerGuildLimit:    map[ratelimit.Event]int{ratelimit.EventClassify: 2},
		GuildResetPeriod: time.Minute,
		GlobalLimit:      map[ratelimit.Event]int{ratelimit.EventClassify: 3},
		GlobalResetEvery: time.Minute,
	}, c.Now, zap.NewNop())

	assert.True(t, l.Allow(ratelimit.EventClassify, 1, 100))
	assert.True(t, l.Allow(ratelimit.EventClassify, 2, 100))
	assert.False(t, l.Allow(ratelimit.EventClassify, 3, 100), "guild limit")
	assert.True(t, l.Allow(ratelimit.EventClassify, 4, 200))
	assert.False(t, l.Allow(ratelimit.EventClassify, 5, 300), "global limit")

	c.now = c.now.Add(2 * time.Minute)
	assert.True(t, l.Allow(ratelimit.EventClassify, 3, 100))
}

func TestUnlimitedEvent(t *testing.T) {
	t.Parallel()

	l := ratelimit.New(&ratelimit.Config{}, nil, zap.NewNop())
	for range 1000 {
		assert.True(t, l.Allow(ratelimit.EventCommand, 1, 1))
	}
}

func TestCleanup(t *testing.T) {
	t.Parallel()

	c := &clock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := ratelimit.New(nil, c.Now, zap.NewNop())

	l.Allow(ratelimit.EventCommand, 1, 0)
	l.Allow(ratelimit.EventReportInput, 2, 0)
	assert.Equal(t, 0, l.Cleanup())

	c.now = c.now.Add(time.Second)
	assert.Equal(t, 2, l.Cleanup())
}
