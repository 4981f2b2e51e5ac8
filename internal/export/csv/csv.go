// Package csv writes the flagged-conversation log and the flagged-users report.
package csv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/robalyx/sentinel/internal/export/types"
)

// ConversationHeader is the column order of the flagged-conversation log.
var ConversationHeader = []string{
	"timestamp", "message_id", "conversation_id", "user_id", "username",
	"guild_id", "guild_name", "channel_id", "channel_name", "message_content",
	"grooming_probability", "model_confidence", "risk_level", "risk_score",
	"should_escalate", "escalation_reason", "conversation_context_length", "created_at",
}

// UserHeader is the column order of the flagged-users report.
var UserHeader = []string{
	"user_id", "risk_score", "risk_level", "total_messages", "flagged_messages",
	"should_escalate", "escalation_reason", "last_updated", "highest_risk_score",
}

// Exporter handles writing csv files under outDir.
type Exporter struct {
	outDir string
	mu     sync.Mutex
}

// New creates a new csv exporter instance.
func New(outDir string) *Exporter {
	return &Exporter{outDir: outDir}
}

// ConversationLogName returns the daily log file name for day.
func ConversationLogName(day time.Time) string {
	return "flagged_conversations_" + day.Format("20060102") + ".csv"
}

// UserReportName returns the report file name for a run at now.
func UserReportName(now time.Time) string {
	return "flagged_users_report_" + now.Format("20060102_150405") + ".csv"
}

// AppendConversation appends row to the daily log, writing the header when the file is new.
func (e *Exporter) AppendConversation(row *types.FlaggedConversation) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	path := filepath.Join(e.outDir, ConversationLogName(row.Timestamp))

	_, statErr := os.Stat(path)
	isNew := errors.Is(statErr, os.ErrNotExist)

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to open csv file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	if isNew {
		if err := writer.Write(ConversationHeader); err != nil {
			return "", fmt.Errorf("failed to write header: %w", err)
		}
	}

	if err := writer.Write(conversationRecord(row)); err != nil {
		return "", fmt.Errorf("failed to write record: %w", err)
	}

	writer.Flush()

	if err := writer.Error(); err != nil {
		return "", fmt.Errorf("failed to flush csv: %w", err)
	}

	return path, nil
}

// WriteUsers writes the flagged-users report for a run at now.
func (e *Exporter) WriteUsers(users []*types.UserSummary, now time.Time) (string, error) {
	path := filepath.Join(e.outDir, UserReportName(now))

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create csv file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	if err := writer.Write(UserHeader); err != nil {
		return "", fmt.Errorf("failed to write header: %w", err)
	}

	for _, user := range users {
		if err := writer.Write([]string{
			strconv.FormatUint(user.UserID, 10),
			strconv.FormatFloat(user.RiskScore, 'f', 2, 64),
			user.RiskLevel,
			strconv.Itoa(user.TotalMessages),
			strconv.Itoa(user.FlaggedMessages),
			strconv.FormatBool(user.ShouldEscalate),
			user.EscalationReason,
			user.LastUpdated.Format(time.RFC3339Nano),
			strconv.FormatFloat(user.HighestRiskScore, 'f', 2, 64),
		}); err != nil {
			return "", fmt.Errorf("failed to write record: %w", err)
		}
	}

	writer.Flush()

	if err := writer.Error(); err != nil {
		return "", fmt.Errorf("failed to flush csv: %w", err)
	}

	return path, nil
}

func conversationRecord(row *types.FlaggedConversation) []string {
	return []string{
		row.Timestamp.Format(time.RFC3339Nano),
		strconv.FormatUint(row.MessageID, 10),
		row.ConversationID,
		strconv.FormatUint(row.UserID, 10),
		row.Username,
		strconv.FormatUint(row.GuildID, 10),
		row.GuildName,
		strconv.FormatUint(row.ChannelID, 10),
		row.ChannelName,
		row.MessageContent,
		strconv.FormatFloat(row.GroomingProbability, 'f', -1, 64),
		strconv.FormatFloat(row.ModelConfidence, 'f', -1, 64),
		row.RiskLevel,
		strconv.FormatFloat(row.RiskScore, 'f', -1, 64),
		strconv.FormatBool(row.ShouldEscalate),
		row.EscalationReason,
		strconv.Itoa(row.ContextLength),
		row.CreatedAt.Format(time.RFC3339Nano),
	}
}
