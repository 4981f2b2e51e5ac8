package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robalyx/sentinel/internal/common/utils"
	"github.com/robalyx/sentinel/internal/ratelimit"
	"go.uber.org/zap"
)

// Manager routes direct messages to per-user report dialogs.
// Messages from the same user are handled one at a time.
type Manager struct {
	dialog   *Dialog
	sessions SessionStore
	limiter  *ratelimit.Limiter
	locks    *utils.KeyMutex[uint64]
	now      func() time.Time
	logger   *zap.Logger
}

// NewManager creates a Manager. limiter may be nil.
func NewManager(dialog *Dialog, sessions SessionStore, limiter *ratelimit.Limiter, logger *zap.Logger) *Manager {
	return &Manager{
		dialog:   dialog,
		sessions: sessions,
		limiter:  limiter,
		locks:    utils.NewKeyMutex[uint64](),
		now:      dialog.Now,
		logger:   logger.Named("report_manager"),
	}
}

// HandleDirectMessage processes one DM and returns the replies to send.
// DMs from users without a session are ignored unless they start a report.
func (m *Manager) HandleDirectMessage(ctx context.Context, userID uint64, text string) ([]string, error) {
	trimmed := strings.TrimSpace(text)

	if strings.EqualFold(trimmed, HelpKeyword) {
		return []string{HelpText()}, nil
	}

	if m.limiter != nil && !m.limiter.Allow(ratelimit.EventReportInput, userID, 0) {
		m.logger.Debug("Dropping report input over rate limit", zap.Uint64("user_id", userID))
		return nil, nil
	}

	unlock := m.locks.Lock(userID)
	defer unlock()

	session, ok, err := m.sessions.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load report session: %w", err)
	}

	if !ok {
		if !strings.HasPrefix(strings.ToLower(trimmed), StartKeyword) {
			return nil, nil
		}
		session = NewSession(userID, m.now())
	}

	replies, err := m.dialog.Handle(ctx, session, trimmed)
	if err != nil {
		return nil, fmt.Errorf("failed to advance report dialog: %w", err)
	}

	if session.Complete() {
		if err := m.sessions.Delete(ctx, userID); err != nil {
			m.logger.Warn("Failed to delete finished report session",
				zap.Uint64("user_id", userID),
				zap.Error(err))
		}

		m.logger.Info("Report dialog finished",
			zap.Uint64("user_id", userID),
			zap.String("case_id", session.CaseID))

		return replies, nil
	}

	if err := m.sessions.Put(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save report session: %w", err)
	}

	return replies, nil
}
