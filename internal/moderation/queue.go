// Package moderation holds the moderator review queue.
package moderation

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/robalyx/sentinel/internal/common/types"
	"github.com/robalyx/sentinel/internal/metrics"
	"go.uber.org/zap"
)

var (
	ErrQueueEmpty     = errors.New("no pending cases in the queue")
	ErrNoCaseSelected = errors.New("no case currently selected")
	ErrCaseNotFound   = errors.New("case not found")
	ErrCaseClosed     = errors.New("case already completed")
	ErrDuplicateCase  = errors.New("case already enqueued")
)

// Mirror persists case changes outside the process.
type Mirror interface {
	Save(ctx context.Context, c *types.ModerationCase) error
}

// Queue keeps cases in insertion order with a single cyclic cursor.
// Cases are never removed; completed cases are skipped by Next.
type Queue struct {
	mu      sync.Mutex
	cases   []*types.ModerationCase
	byID    map[string]int
	cursor  int
	mirror  Mirror
	metrics *metrics.Metrics
	logger  *zap.Logger

	// saveMu orders mirror writes. It is taken before mu is released.
	saveMu sync.Mutex
}

// NewQueue creates an empty queue. mirror and m may be nil.
func NewQueue(mirror Mirror, m *metrics.Metrics, logger *zap.Logger) *Queue {
	return &Queue{
		byID:    make(map[string]int),
		cursor:  -1,
		mirror:  mirror,
		metrics: m,
		logger:  logger.Named("moderation_queue"),
	}
}

// Enqueue appends a pending case.
func (q *Queue) Enqueue(ctx context.Context, c *types.ModerationCase) error {
	q.mu.Lock()

	if _, exists := q.byID[c.ID]; exists {
		q.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicateCase, c.ID)
	}

	// New cases always start pending regardless of the caller's status
	stored := c.Clone()
	stored.Status = types.CaseStatusPending

	q.byID[stored.ID] = len(q.cases)
	q.cases = append(q.cases, stored)

	q.metrics.IncEnqueued(string(stored.Source))
	q.publishPending()
	q.persistUnlock(ctx, stored.Clone())

	q.logger.Info("Case enqueued",
		zap.String("case_id", stored.ID),
		zap.String("source", string(stored.Source)),
		zap.Uint64("reported_user_id", stored.ReportedUserID))

	return nil
}

// Next moves the cursor forward, wrapping around, to the next pending case.
// When nothing is pending it returns ErrQueueEmpty and leaves the cursor alone.
func (q *Queue) Next() (*types.ModerationCase, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	// Start one past the cursor and wrap, so the current case is checked last
	n := len(q.cases)
	for step := 1; step <= n; step++ {
		idx := (q.cursor + step) % n
		if q.cases[idx].IsPending() {
			q.cursor = idx
			return q.cases[idx].Clone(), nil
		}
	}

	return nil, ErrQueueEmpty
}

// Current returns the case under the cursor.
func (q *Queue) Current() (*types.ModerationCase, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.cursor < 0 || q.cursor >= len(q.cases) {
		return nil, ErrNoCaseSelected
	}

	return q.cases[q.cursor].Clone(), nil
}

// Resolve completes a case with the given disposition.
// It must only be called once the matching external action has succeeded.
func (q *Queue) Resolve(ctx context.Context, caseID string, kind types.ActionKind) (*types.ModerationCase, error) {
	q.mu.Lock()

	idx, ok := q.byID[caseID]
	if !ok {
		q.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrCaseNotFound, caseID)
	}

	c := q.cases[idx]
	if !c.IsPending() {
		q.mu.Unlock()
		return nil, ErrCaseClosed
	}

	c.Status = types.CaseStatusCompleted
	c.ActionsTaken = append(c.ActionsTaken, kind)

	q.publishPending()
	resolved := c.Clone()
	q.persistUnlock(ctx, resolved.Clone())

	q.logger.Info("Case resolved",
		zap.String("case_id", resolved.ID),
		zap.String("action", string(kind)))

	return resolved, nil
}

// ResolveCurrent resolves the case under the cursor.
func (q *Queue) ResolveCurrent(ctx context.Context, kind types.ActionKind) (*types.ModerationCase, error) {
	current, err := q.Current()
	if err != nil {
		return nil, err
	}

	return q.Resolve(ctx, current.ID, kind)
}

// Skip leaves the current case untouched. It only validates there is one.
func (q *Queue) Skip() (*types.ModerationCase, error) {
	return q.Current()
}

// Pending returns the pending cases in insertion order.
func (q *Queue) Pending() []*types.ModerationCase {
	q.mu.Lock()
	defer q.mu.Unlock()

	var out []*types.ModerationCase
	for _, c := range q.cases {
		if c.IsPending() {
			out = append(out, c.Clone())
		}
	}

	return out
}

// All returns every case in insertion order.
func (q *Queue) All() []*types.ModerationCase {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]*types.ModerationCase, 0, len(q.cases))
	for _, c := range q.cases {
		out = append(out, c.Clone())
	}

	return out
}

// Len returns the total number of cases.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.cases)
}

// HasPending reports whether the user already has a pending case from source.
func (q *Queue) HasPending(userID uint64, source types.CaseSource) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, c := range q.cases {
		if c.IsPending() && c.ReportedUserID == userID && c.Source == source {
			return true
		}
	}

	return false
}

// Restore appends previously persisted cases, skipping IDs already present.
// It does not write back to the mirror.
func (q *Queue) Restore(cases []*types.ModerationCase) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	restored := 0
	for _, c := range cases {
		if c == nil {
			continue
		}
		if _, exists := q.byID[c.ID]; exists {
			continue
		}

		q.byID[c.ID] = len(q.cases)
		q.cases = append(q.cases, c.Clone())
		restored++
	}

	q.publishPending()

	return restored
}

func (q *Queue) publishPending() {
	pending := 0
	for _, c := range q.cases {
		if c.IsPending() {
			pending++
		}
	}

	q.metrics.SetPending(pending)
}

// persistUnlock releases mu and writes c to the mirror. Writes keep the
// order of the mutations that produced them, and readers never wait on them.
func (q *Queue) persistUnlock(ctx context.Context, c *types.ModerationCase) {
	if q.mirror == nil {
		q.mu.Unlock()
		return
	}

	q.saveMu.Lock()
	q.mu.Unlock()
	defer q.saveMu.Unlock()

	if err := q.mirror.Save(ctx, c); err != nil {
		q.logger.Error("Failed to mirror case",
			zap.String("case_id", c.ID),
			zap.Error(err))
	}
}
