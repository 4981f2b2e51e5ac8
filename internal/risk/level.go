package risk

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Level is a coarse bucket for a risk score.
type Level string

const (
	LevelCritical Level = "critical"
	LevelHigh     Level = "high"
	LevelMedium   Level = "medium"
	LevelLow      Level = "low"
	LevelMinimal  Level = "minimal"
	LevelUnknown  Level = "unknown"
)

// LevelForScore maps a score in [0,100] to its level.
func LevelForScore(score float64) Level {
	switch {
	case score >= 90:
		return LevelCritical
	case score >= 75:
		return LevelHigh
	case score >= 60:
		return LevelMedium
	case score >= 40:
		return LevelLow
	default:
		return LevelMinimal
	}
}

// Title returns the level for display, e.g. "Critical".
func (l Level) Title() string {
	// Casers keep state between calls and cannot be shared across goroutines
	return cases.Title(language.English).String(string(l))
}
