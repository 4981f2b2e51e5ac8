// Package risk aggregates classifier output into per-user risk profiles.
package risk

import (
	"cmp"
	"math"
	"slices"
	"time"

	"github.com/robalyx/sentinel/internal/common/types"
	"github.com/robalyx/sentinel/internal/common/utils"
	"go.uber.org/zap"
)

const (
	// InitialScore seeds every new profile.
	InitialScore = 50.0
	// MaxHistory bounds the prediction history.
	MaxHistory = 100
	// ScoringWindow is how many recent entries feed the score.
	ScoringWindow = 10

	decay  = 0.7
	weight = 0.3
)

// Store keeps risk profiles. Profiles are never evicted.
type Store struct {
	profiles *utils.LockedMap[uint64, *Profile]
	now      func() time.Time
	logger   *zap.Logger
}

// NewStore creates an empty store. A nil clock defaults to time.Now.
func NewStore(logger *zap.Logger, clock func() time.Time) *Store {
	if clock == nil {
		clock = time.Now
	}

	return &Store{
		profiles: utils.NewLockedMap[uint64, *Profile](clock),
		now:      clock,
		logger:   logger.Named("risk_store"),
	}
}

// UpdateUserScore folds one classification result into the user's profile
// and returns a snapshot of the updated profile.
// Failed results are counted and kept in history but carry no signal.
func (s *Store) UpdateUserScore(userID uint64, result types.ClassificationResult) *Profile {
	var snapshot *Profile

	s.profiles.Update(userID, func() *Profile {
		return &Profile{
			UserID:           userID,
			RiskScore:        InitialScore,
			HighestRiskScore: InitialScore,
		}
	}, func(p *Profile) {
		now := s.now()

		p.TotalMessages++
		p.PredictionHistory = append(p.PredictionHistory, NewPrediction(result, now))
		if over := len(p.PredictionHistory) - MaxHistory; over > 0 {
			p.PredictionHistory = slices.Delete(p.PredictionHistory, 0, over)
		}

		if result.Flagged() {
			p.FlaggedMessages++
		}

		s.rescore(p)
		p.LastUpdated = now
		snapshot = p.Clone()
	})

	return snapshot
}

func (s *Store) rescore(p *Profile) {
	var sum float64
	var n int

	// Only successful, confident predictions move the score
	for _, entry := range p.Recent(ScoringWindow) {
		if entry.Err != "" || entry.Confidence <= types.ConfidenceThreshold {
			continue
		}
		sum += entry.GroomingProbability * entry.Confidence
		n++
	}

	if n > 0 {
		p.RiskScore = p.RiskScore*decay + (sum/float64(n))*100*weight
	}

	// Clamp scores pushed out of range by malformed inputs
	if p.RiskScore < 0 || p.RiskScore > 100 || math.IsNaN(p.RiskScore) {
		s.logger.Warn("Risk score left valid range, clamping",
			zap.Uint64("user_id", p.UserID),
			zap.Float64("risk_score", p.RiskScore))
		p.RiskScore = clampScore(p.RiskScore)
	}

	p.HighestRiskScore = max(p.HighestRiskScore, p.RiskScore)
}

// Profile returns a snapshot of the user's profile.
func (s *Store) Profile(userID uint64) (*Profile, bool) {
	var snapshot *Profile

	ok := s.profiles.View(userID, func(p *Profile) {
		snapshot = p.Clone()
	})

	return snapshot, ok
}

// RiskLevel returns the user's level and score. Unknown users are (unknown, 50).
func (s *Store) RiskLevel(userID uint64) (Level, float64) {
	level, score := LevelUnknown, InitialScore

	s.profiles.View(userID, func(p *Profile) {
		level, score = p.Level(), p.RiskScore
	})

	return level, score
}

// OverrideScore sets the user's score directly, creating the profile if needed.
func (s *Store) OverrideScore(userID uint64, score float64) *Profile {
	var snapshot *Profile

	s.profiles.Update(userID, func() *Profile {
		return &Profile{UserID: userID, RiskScore: InitialScore, HighestRiskScore: InitialScore}
	}, func(p *Profile) {
		p.RiskScore = clampScore(score)
		p.HighestRiskScore = max(p.HighestRiskScore, p.RiskScore)
		p.LastUpdated = s.now()
		snapshot = p.Clone()
	})

	s.logger.Info("Risk score overridden",
		zap.Uint64("user_id", userID),
		zap.Float64("risk_score", snapshot.RiskScore))

	return snapshot
}

// Profiles returns snapshots of every profile ordered by user ID.
func (s *Store) Profiles() []*Profile {
	var out []*Profile

	s.profiles.Range(func(_ uint64, p *Profile) {
		out = append(out, p.Clone())
	})

	slices.SortFunc(out, func(a, b *Profile) int {
		return cmp.Compare(a.UserID, b.UserID)
	})

	return out
}

// Restore loads profiles from a snapshot, replacing any existing entry for the same user.
func (s *Store) Restore(profiles []*Profile) {
	for _, restored := range profiles {
		if restored == nil {
			continue
		}

		clone := restored.Clone()
		clone.RiskScore = clampScore(clone.RiskScore)
		clone.HighestRiskScore = max(clone.HighestRiskScore, clone.RiskScore)

		s.profiles.Update(clone.UserID, func() *Profile { return &Profile{} }, func(p *Profile) {
			*p = *clone
		})
	}

	s.logger.Info("Restored risk profiles", zap.Int("count", len(profiles)))
}

// Len returns the number of profiles.
func (s *Store) Len() int {
	return s.profiles.Len()
}

func clampScore(score float64) float64 {
	if math.IsNaN(score) {
		return InitialScore
	}

	return min(max(score, 0), 100)
}
