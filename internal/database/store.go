package database

import (
	"context"

	"github.com/robalyx/sentinel/internal/database/types"
	"github.com/robalyx/sentinel/internal/storage"
)

// Store adapts a Client to storage.Store.
type Store struct {
	client Client
}

// NewStore wraps client.
func NewStore(client Client) *Store {
	return &Store{client: client}
}

func (s *Store) UserExists(ctx context.Context, userID uint64) (bool, error) {
	return s.client.Model().Stats().UserExists(ctx, userID)
}

func (s *Store) AddUser(ctx context.Context, userID uint64, profileName string, age *int) error {
	return s.client.Model().Stats().AddUser(ctx, &types.UserStats{
		UserID:      userID,
		ProfileName: profileName,
		Age:         age,
	})
}

func (s *Store) LogConversation(ctx context.Context, entry storage.ConversationEntry) error {
	return s.client.Model().Stats().LogConversation(ctx, &types.Conversation{
		UserID:            entry.UserID,
		MessageID:         entry.MessageID,
		ConversationID:    entry.ConversationID,
		ConfidenceScore:   entry.ConfidenceScore,
		GroomingSuspected: entry.GroomingSuspected,
	}, entry.MLRiskScore)
}

func (s *Store) GetUserStats(ctx context.Context, userID uint64) (*storage.UserStats, error) {
	user, conversations, err := s.client.Model().Stats().GetUserStats(ctx, userID)
	if err != nil {
		return nil, err
	}

	return toUserStats(user, conversations), nil
}

func (s *Store) UpdateBanStatus(ctx context.Context, userID uint64, banned bool) error {
	return s.client.Model().Stats().UpdateFlags(ctx, userID, map[string]any{"banned": banned})
}

func (s *Store) UpdateSuspension(ctx context.Context, userID uint64, suspended bool, days int) error {
	return s.client.Model().Stats().UpdateFlags(ctx, userID, map[string]any{
		"suspended":      suspended,
		"suspension_len": days,
	})
}

func (s *Store) UpdateReportToLaw(ctx context.Context, userID uint64, banned, reported bool) error {
	return s.client.Model().Stats().UpdateFlags(ctx, userID, map[string]any{
		"banned":       banned,
		"reported_law": reported,
	})
}

func (s *Store) Close() error {
	return s.client.Close()
}

func toUserStats(user *types.UserStats, conversations []*types.Conversation) *storage.UserStats {
	stats := &storage.UserStats{
		UserID:         user.UserID,
		ProfileName:    user.ProfileName,
		Age:            user.Age,
		Banned:         user.Banned,
		Suspended:      user.Suspended,
		SuspensionDays: user.SuspensionDays,
		ReportedToLaw:  user.ReportedToLaw,
		RiskScore:      user.RiskScore,
		MessageCount:   user.MessageCount,
		Conversations:  make([]storage.ConversationRecord, 0, len(conversations)),
	}

	for _, c := range conversations {
		stats.Conversations = append(stats.Conversations, storage.ConversationRecord{
			MessageID:         c.MessageID,
			ConversationID:    c.ConversationID,
			ConfidenceScore:   c.ConfidenceScore,
			GroomingSuspected: c.GroomingSuspected,
			Timestamp:         c.Timestamp,
		})
	}

	return stats
}
