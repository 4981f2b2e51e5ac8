// Package storage defines the persistent per-user moderation stats and the
// automatic consequences derived from them.
package storage

import (
	"context"
	"errors"
	"time"
)

const (
	// ReportThreshold triggers a law enforcement report.
	ReportThreshold = 80.0
	// BanThreshold triggers a ban.
	BanThreshold = 75.0
	// SuspendThreshold triggers a suspension.
	SuspendThreshold = 65.0
	// MessageThreshold is the message count at which the stored score stops being damped.
	MessageThreshold = 5
	// AutoSuspensionDays is the length of an automatic suspension.
	AutoSuspensionDays = 30
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrUnknownStore = errors.New("unknown storage driver")
)

// ConversationEntry is one classified message to log.
type ConversationEntry struct {
	UserID            uint64
	MessageID         uint64
	ConversationID    string
	ConfidenceScore   float64
	GroomingSuspected bool
	MLRiskScore       float64
}

// ConversationRecord is a logged conversation as read back.
type ConversationRecord struct {
	MessageID         uint64    `json:"message_id"`
	ConversationID    string    `json:"conversation_id"`
	ConfidenceScore   float64   `json:"confidence_score"`
	GroomingSuspected bool      `json:"grooming_suspected"`
	Timestamp         time.Time `json:"timestamp"`
}

// UserStats is the stored state of one user.
type UserStats struct {
	UserID         uint64               `json:"user_id"`
	ProfileName    string               `json:"profile_name"`
	Age            *int                 `json:"age"`
	Banned         bool                 `json:"banned"`
	Suspended      bool                 `json:"suspended"`
	SuspensionDays int                  `json:"suspension_len"`
	ReportedToLaw  bool                 `json:"reported_law"`
	RiskScore      float64              `json:"risk_score"`
	MessageCount   int                  `json:"message_count"`
	Conversations  []ConversationRecord `json:"conversations"`
}

// Store persists user stats and conversation logs.
type Store interface {
	UserExists(ctx context.Context, userID uint64) (bool, error)
	// AddUser is a no-op when the user already exists.
	AddUser(ctx context.Context, userID uint64, profileName string, age *int) error
	// LogConversation inserts the entry and updates the user's score and count atomically.
	LogConversation(ctx context.Context, entry ConversationEntry) error
	GetUserStats(ctx context.Context, userID uint64) (*UserStats, error)
	UpdateBanStatus(ctx context.Context, userID uint64, banned bool) error
	UpdateSuspension(ctx context.Context, userID uint64, suspended bool, days int) error
	UpdateReportToLaw(ctx context.Context, userID uint64, banned, reported bool) error
	Close() error
}

// WeightedScore damps the model score for users with few messages.
// newCount is the message count including the message being logged.
func WeightedScore(mlRiskScore float64, newCount int) float64 {
	if newCount < MessageThreshold {
		return mlRiskScore * float64(newCount) / MessageThreshold
	}

	return mlRiskScore
}
