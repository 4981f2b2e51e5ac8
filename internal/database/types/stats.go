package types

import (
	"time"

	"github.com/uptrace/bun"
)

// UserStats is the persisted moderation state of one user.
type UserStats struct {
	bun.BaseModel `bun:"table:user_stats,alias:us"`

	UserID         uint64    `bun:",pk,autoincrement:false"            json:"userId"`
	ProfileName    string    `bun:",notnull"                           json:"profileName"`
	Age            *int      `bun:",nullzero"                          json:"age"`
	Banned         bool      `bun:",notnull,default:false"             json:"banned"`
	Suspended      bool      `bun:",notnull,default:false"             json:"suspended"`
	SuspensionDays int       `bun:"suspension_len,notnull,default:0"   json:"suspensionLen"`
	ReportedToLaw  bool      `bun:"reported_law,notnull,default:false" json:"reportedLaw"`
	RiskScore      float64   `bun:",notnull,default:0"                 json:"riskScore"`
	MessageCount   int       `bun:",notnull,default:0"                 json:"messageCount"`
	CreatedAt      time.Time `bun:",notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt      time.Time `bun:",notnull,default:current_timestamp" json:"updatedAt"`
}

// Conversation is one logged classification for a user.
type Conversation struct {
	bun.BaseModel `bun:"table:conversations,alias:c"`

	ID                int64     `bun:",pk,autoincrement"                  json:"id"`
	UserID            uint64    `bun:",notnull"                           json:"userId"`
	MessageID         uint64    `bun:",notnull"                           json:"messageId"`
	ConversationID    string    `bun:",notnull"                           json:"conversationId"`
	ConfidenceScore   float64   `bun:",notnull"                           json:"confidenceScore"`
	GroomingSuspected bool      `bun:",notnull"                           json:"groomingSuspected"`
	Timestamp         time.Time `bun:",notnull,default:current_timestamp" json:"timestamp"`
}
