package database

import (
	"context"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// QueryHook logs queries with zap. Failures log at error level, the rest at debug.
type QueryHook struct {
	logger *zap.Logger
	slow   time.Duration
}

// NewQueryHook creates a QueryHook. Queries slower than slow are logged as warnings.
func NewQueryHook(logger *zap.Logger, slow time.Duration) *QueryHook {
	return &QueryHook{logger: logger.Named("db_query"), slow: slow}
}

// BeforeQuery implements bun.QueryHook.
func (h *QueryHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

// AfterQuery implements bun.QueryHook.
func (h *QueryHook) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	took := time.Since(event.StartTime)

	switch {
	case event.Err != nil:
		h.logger.Error("Query failed",
			zap.String("operation", event.Operation()),
			zap.String("query", event.Query),
			zap.Duration("duration", took),
			zap.Error(event.Err))
	case h.slow > 0 && took > h.slow:
		h.logger.Warn("Slow query",
			zap.String("operation", event.Operation()),
			zap.String("query", event.Query),
			zap.Duration("duration", took))
	default:
		h.logger.Debug("Query executed",
			zap.String("operation", event.Operation()),
			zap.Duration("duration", took))
	}
}
