package types

import (
	"slices"
	"time"
)

// CaseStatus is the review state of a moderation case.
type CaseStatus string

const (
	CaseStatusPending   CaseStatus = "pending"
	CaseStatusCompleted CaseStatus = "completed"
)

// CaseSource identifies what created a moderation case.
type CaseSource string

const (
	CaseSourceAutomatic  CaseSource = "automatic"
	CaseSourceUserReport CaseSource = "user_report"
)

// ActionKind is a disposition a moderator applied to a case.
type ActionKind string

const (
	ActionBan         ActionKind = "ban"
	ActionSuspend     ActionKind = "suspend"
	ActionAdjustScore ActionKind = "adjust_score"
	ActionReportToLaw ActionKind = "report_to_law"
	ActionNone        ActionKind = "none"
	ActionSkip        ActionKind = "skip"
)

// ModerationCase is one unit of moderator work.
type ModerationCase struct {
	ID             string                `json:"id"`
	Source         CaseSource            `json:"source"`
	ReporterID     uint64                `json:"reporterId"`
	ReportedUserID uint64                `json:"reportedUserId"`
	Message        Message               `json:"message"`
	Reason         string                `json:"reason"`
	Details        string                `json:"details"`
	Score          int                   `json:"score"`
	Classification *ClassificationResult `json:"classification,omitempty"`
	Status         CaseStatus            `json:"status"`
	ActionsTaken   []ActionKind          `json:"actionsTaken"`
	CreatedAt      time.Time             `json:"createdAt"`
}

// IsPending reports whether the case still awaits a disposition.
func (c *ModerationCase) IsPending() bool {
	return c.Status == CaseStatusPending
}

// Clone returns a deep copy so callers never share queue-owned state.
func (c *ModerationCase) Clone() *ModerationCase {
	if c == nil {
		return nil
	}

	clone := *c
	clone.ActionsTaken = slices.Clone(c.ActionsTaken)

	if c.Classification != nil {
		result := *c.Classification
		clone.Classification = &result
	}

	return &clone
}
