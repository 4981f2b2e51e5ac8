package storage

import (
	"context"
	"fmt"
)

// Consequence is an automatic action derived from stored stats.
type Consequence int

const (
	ConsequenceNone Consequence = iota
	ConsequenceSuspend
	ConsequenceBan
	ConsequenceReportToLaw
)

func (c Consequence) String() string {
	switch c {
	case ConsequenceSuspend:
		return "suspend"
	case ConsequenceBan:
		return "ban"
	case ConsequenceReportToLaw:
		return "report_to_law"
	default:
		return "none"
	}
}

// DetermineConsequence picks the strongest action the stats call for that
// has not already been applied.
func DetermineConsequence(stats *UserStats) Consequence {
	if stats == nil {
		return ConsequenceNone
	}

	switch {
	case stats.RiskScore > ReportThreshold && !stats.ReportedToLaw:
		return ConsequenceReportToLaw
	case stats.RiskScore > BanThreshold && !stats.Banned:
		return ConsequenceBan
	case stats.RiskScore > SuspendThreshold && !stats.Suspended && !stats.Banned:
		return ConsequenceSuspend
	default:
		return ConsequenceNone
	}
}

// ApplyConsequence records the consequence in the store.
// Reporting to law enforcement also marks the user banned.
func ApplyConsequence(ctx context.Context, store Store, userID uint64, c Consequence) error {
	var err error

	switch c {
	case ConsequenceReportToLaw:
		err = store.UpdateReportToLaw(ctx, userID, true, true)
	case ConsequenceBan:
		err = store.UpdateBanStatus(ctx, userID, true)
	case ConsequenceSuspend:
		err = store.UpdateSuspension(ctx, userID, true, AutoSuspensionDays)
	case ConsequenceNone:
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to apply %s: %w", c, err)
	}

	return nil
}
