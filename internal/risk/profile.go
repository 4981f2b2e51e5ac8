package risk

import (
	"slices"
	"time"

	"github.com/robalyx/sentinel/internal/common/types"
)

// Prediction is one history entry of a profile.
type Prediction struct {
	Timestamp           time.Time `json:"timestamp"`
	GroomingProbability float64   `json:"grooming_probability"`
	Confidence          float64   `json:"confidence"`
	PredictedClass      int       `json:"predicted_class"`
	IsGrooming          bool      `json:"is_grooming"`
	Err                 string    `json:"error,omitempty"`
}

// NewPrediction records a classification result at the given time.
func NewPrediction(result types.ClassificationResult, at time.Time) Prediction {
	return Prediction{
		Timestamp:           at,
		GroomingProbability: result.GroomingProbability,
		Confidence:          result.Confidence,
		PredictedClass:      result.PredictedClass,
		IsGrooming:          result.IsGrooming,
		Err:                 result.Err,
	}
}

// Flagged reports whether the entry is jointly above both thresholds.
func (p Prediction) Flagged() bool {
	return p.Err == "" &&
		p.GroomingProbability > types.GroomingThreshold &&
		p.Confidence > types.ConfidenceThreshold
}

// Profile is the aggregated risk state for one user.
type Profile struct {
	UserID            uint64       `json:"user_id"`
	RiskScore         float64      `json:"risk_score"`
	TotalMessages     int          `json:"total_messages"`
	FlaggedMessages   int          `json:"flagged_messages"`
	PredictionHistory []Prediction `json:"prediction_history"`
	LastUpdated       time.Time    `json:"last_updated"`
	HighestRiskScore  float64      `json:"highest_risk_score"`
}

// Level returns the profile's current risk level.
func (p *Profile) Level() Level {
	return LevelForScore(p.RiskScore)
}

// Recent returns up to the last n history entries.
func (p *Profile) Recent(n int) []Prediction {
	if len(p.PredictionHistory) <= n {
		return p.PredictionHistory
	}

	return p.PredictionHistory[len(p.PredictionHistory)-n:]
}

// Clone returns a deep copy.
func (p *Profile) Clone() *Profile {
	clone := *p
	clone.PredictionHistory = slices.Clone(p.PredictionHistory)

	return &clone
}
