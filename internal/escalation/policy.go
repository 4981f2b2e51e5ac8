// Package escalation decides when a user's risk profile needs human review.
package escalation

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/robalyx/sentinel/internal/common/types"
	"github.com/robalyx/sentinel/internal/risk"
)

const (
	// CriticalScore escalates on its own.
	CriticalScore = 90.0
	// MinRecentFlags is the flag count that escalates within the scoring window.
	MinRecentFlags = 3
	// ConsistencyWindow is the trailing window checked for consistent behavior.
	ConsistencyWindow = 5

	// AutomaticReason is the reason recorded on automatically created cases.
	AutomaticReason = "🤖 Automatic AI Detection"
	// MinAutomaticCaseScore is the floor for automatic case scores.
	MinAutomaticCaseScore = 10
)

// Decision is the outcome of evaluating a profile.
type Decision struct {
	Escalate bool
	Reason   string
}

// Evaluate applies the escalation rules to a profile. First match wins.
func Evaluate(profile *risk.Profile) Decision {
	if profile == nil {
		return Decision{Reason: "No profile data"}
	}

	if profile.RiskScore >= CriticalScore {
		return Decision{Escalate: true, Reason: fmt.Sprintf("Critical risk score: %.1f", profile.RiskScore)}
	}

	flags := 0
	for _, entry := range profile.Recent(risk.ScoringWindow) {
		if entry.Flagged() {
			flags++
		}
	}
	if flags >= MinRecentFlags {
		return Decision{Escalate: true, Reason: fmt.Sprintf("Multiple high-confidence flags: %d", flags)}
	}

	if len(profile.PredictionHistory) >= ConsistencyWindow {
		var sum float64
		var n int
		for _, entry := range profile.Recent(ConsistencyWindow) {
			if entry.Flagged() {
				sum += entry.GroomingProbability
				n++
			}
		}
		if n >= MinRecentFlags {
			return Decision{Escalate: true, Reason: fmt.Sprintf("Consistent high-risk behavior: %.2f avg", sum/float64(n))}
		}
	}

	return Decision{Reason: "No escalation needed"}
}

// ProfileSource is the read side of the risk store.
type ProfileSource interface {
	Profile(userID uint64) (*risk.Profile, bool)
}

// Policy evaluates escalation for stored profiles.
type Policy struct {
	profiles ProfileSource
}

// NewPolicy creates a Policy over a profile source.
func NewPolicy(profiles ProfileSource) *Policy {
	return &Policy{profiles: profiles}
}

// ShouldEscalate evaluates the user's current profile.
func (p *Policy) ShouldEscalate(userID uint64) Decision {
	profile, ok := p.profiles.Profile(userID)
	if !ok {
		return Decision{Reason: "No profile data"}
	}

	return Evaluate(profile)
}

// Assessment summarizes a user's risk after a message was processed.
type Assessment struct {
	Level    risk.Level
	Score    float64
	Decision Decision
	Total    int
	Flagged  int
	Highest  float64
}

// Assess builds an Assessment from a profile snapshot.
func Assess(profile *risk.Profile) Assessment {
	if profile == nil {
		return Assessment{Level: risk.LevelUnknown, Score: risk.InitialScore, Decision: Evaluate(nil)}
	}

	return Assessment{
		Level:    profile.Level(),
		Score:    profile.RiskScore,
		Decision: Evaluate(profile),
		Total:    profile.TotalMessages,
		Flagged:  profile.FlaggedMessages,
		Highest:  profile.HighestRiskScore,
	}
}

// NewAutomaticCase builds the pending case filed when a message escalates.
func NewAutomaticCase(msg types.Message, result types.ClassificationResult, a Assessment, now time.Time) *types.ModerationCase {
	var details strings.Builder
	details.WriteString("**AI Risk Assessment:** " + a.Decision.Reason + "\n")
	details.WriteString("**Grooming Probability:** " + strconv.FormatFloat(result.GroomingProbability*100, 'f', 1, 64) + "%\n")
	details.WriteString("**Model Confidence:** " + strconv.FormatFloat(result.Confidence*100, 'f', 1, 64) + "%\n")
	details.WriteString("**User Risk Score:** " + strconv.FormatFloat(a.Score, 'f', 1, 64) + "/100\n")
	details.WriteString("**Risk Level:** " + a.Level.Title())

	classification := result

	return &types.ModerationCase{
		ID:             uuid.NewString(),
		Source:         types.CaseSourceAutomatic,
		ReportedUserID: msg.AuthorID,
		Message:        msg,
		Reason:         AutomaticReason,
		Details:        details.String(),
		Score:          max(MinAutomaticCaseScore, 100-int(a.Score)),
		Classification: &classification,
		Status:         types.CaseStatusPending,
		CreatedAt:      now,
	}
}
