package moderation

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/redis/rueidis"
	"github.com/robalyx/sentinel/internal/common/types"
	"go.uber.org/zap"
)

const (
	// CasesKey is the hash holding every case as JSON keyed by case ID.
	CasesKey = "moderation:cases"
	// OrderKey is the sorted set of case IDs scored by creation time.
	OrderKey = "moderation:order"
)

// RedisMirror stores cases in Redis so the queue survives restarts.
type RedisMirror struct {
	client rueidis.Client
	logger *zap.Logger
}

// NewRedisMirror creates a mirror on the given client.
func NewRedisMirror(client rueidis.Client, logger *zap.Logger) *RedisMirror {
	return &RedisMirror{
		client: client,
		logger: logger.Named("moderation_mirror"),
	}
}

// Save writes the case body and its position.
func (m *RedisMirror) Save(ctx context.Context, c *types.ModerationCase) error {
	caseJSON, err := sonic.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal case: %w", err)
	}

	cmds := rueidis.Commands{
		m.client.B().Hset().Key(CasesKey).FieldValue().FieldValue(c.ID, string(caseJSON)).Build(),
		m.client.B().Zadd().Key(OrderKey).Nx().ScoreMember().
			ScoreMember(float64(c.CreatedAt.UnixMilli()), c.ID).Build(),
	}

	for _, resp := range m.client.DoMulti(ctx, cmds...) {
		if err := resp.Error(); err != nil {
			return fmt.Errorf("failed to save case %s: %w", c.ID, err)
		}
	}

	return nil
}

// Load returns every stored case ordered by creation time.
func (m *RedisMirror) Load(ctx context.Context) ([]*types.ModerationCase, error) {
	ids, err := m.client.Do(ctx,
		m.client.B().Zrange().Key(OrderKey).Min("0").Max("-1").Build(),
	).AsStrSlice()
	if err != nil {
		return nil, fmt.Errorf("failed to read case order: %w", err)
	}

	if len(ids) == 0 {
		return nil, nil
	}

	values, err := m.client.Do(ctx, m.client.B().Hmget().Key(CasesKey).Field(ids...).Build()).ToArray()
	if err != nil {
		return nil, fmt.Errorf("failed to read cases: %w", err)
	}

	cases := make([]*types.ModerationCase, 0, len(values))
	for i, value := range values {
		if value.IsNil() {
			m.logger.Warn("Case missing from hash", zap.String("case_id", ids[i]))
			continue
		}

		raw, err := value.ToString()
		if err != nil {
			return nil, fmt.Errorf("failed to read case %s: %w", ids[i], err)
		}

		var c types.ModerationCase
		if err := sonic.UnmarshalString(raw, &c); err != nil {
			m.logger.Warn("Skipping unreadable case", zap.String("case_id", ids[i]), zap.Error(err))
			continue
		}

		cases = append(cases, &c)
	}

	return cases, nil
}
