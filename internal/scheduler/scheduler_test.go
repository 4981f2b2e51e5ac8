package scheduler_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/robalyx/sentinel/internal/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestAddRejectsBadSpec(t *testing.T) {
	t.Parallel()

	s := scheduler.New(zap.NewNop())
	require.Error(t, s.Add("broken", "every now and then", func() {}))
}

func TestJobRunsAndSurvivesPanic(t *testing.T) {
	t.Parallel()

	s := scheduler.New(zap.NewNop())

	var runs atomic.Int32
	require.NoError(t, s.Add("tick", "@every 1s", func() {
		if runs.Add(1) == 1 {
			panic("first run fails")
		}
	}))

	s.Start()
	defer s.Stop(t.Context())

	assert.Eventually(t, func() bool { return runs.Load() >= 2 }, 5*time.Second, 50*time.Millisecond)
}

func TestStandardSpecsParse(t *testing.T) {
	t.Parallel()

	for _, spec := range []string{"@hourly", "0 */6 * * *", "@every 10m"} {
		_, err := cron.ParseStandard(spec)
		assert.NoError(t, err, spec)
	}
}
