package redis_test

import (
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/robalyx/sentinel/internal/redis"
	"github.com/robalyx/sentinel/internal/setup/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestManagerDisabled(t *testing.T) {
	t.Parallel()

	m := redis.NewManager(&config.Redis{}, zap.NewNop())
	assert.False(t, m.Enabled())

	_, err := m.GetClient(redis.QueueDBIndex)
	require.ErrorIs(t, err, redis.ErrDisabled)
}

func TestManagerReusesClients(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	m := redis.NewManager(&config.Redis{Enabled: true, Host: mr.Host(), Port: port}, zap.NewNop())
	defer m.Close()

	first, err := m.GetClient(redis.SessionDBIndex)
	require.NoError(t, err)

	second, err := m.GetClient(redis.SessionDBIndex)
	require.NoError(t, err)
	assert.Same(t, first, second)

	require.NoError(t, first.Do(t.Context(), first.B().Set().Key("k").Value("v").Build()).Error())
	mr.Select(redis.SessionDBIndex)
	assert.True(t, mr.Exists("k"))
}
