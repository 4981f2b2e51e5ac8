package types

import "time"

// FlaggedConversation is one row of the daily flagged-conversation log.
type FlaggedConversation struct {
	Timestamp           time.Time
	MessageID           uint64
	ConversationID      string
	UserID              uint64
	Username            string
	GuildID             uint64
	GuildName           string
	ChannelID           uint64
	ChannelName         string
	MessageContent      string
	GroomingProbability float64
	ModelConfidence     float64
	RiskLevel           string
	RiskScore           float64
	ShouldEscalate      bool
	EscalationReason    string
	ContextLength       int
	CreatedAt           time.Time
}

// UserSummary is one user in the flagged-users report and the profile database.
type UserSummary struct {
	UserID           uint64
	RiskScore        float64
	RiskLevel        string
	TotalMessages    int
	FlaggedMessages  int
	ShouldEscalate   bool
	EscalationReason string
	LastUpdated      time.Time
	HighestRiskScore float64
}

// PredictionRecord is one history entry in the profile database.
type PredictionRecord struct {
	UserID              uint64
	Timestamp           time.Time
	GroomingProbability float64
	Confidence          float64
	PredictedClass      int
	Error               string
}
