// Package dbretry retries transient Postgres failures with exponential backoff.
package dbretry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
)

var (
	maxElapsedTime  = 30 * time.Second
	initialInterval = 500 * time.Millisecond
	maxInterval     = 5 * time.Second
	maxRetries      = uint64(5)
)

// retryableCodes are SQLSTATE codes for connection, contention and resource failures.
var retryableCodes = map[string]struct{}{
	"08000": {}, "08001": {}, "08003": {}, "08004": {}, "08006": {}, "08007": {}, "08P01": {},
	"40001": {}, "40P01": {},
	"53000": {}, "53100": {}, "53200": {}, "53300": {}, "53400": {},
	"57000": {}, "57P01": {}, "57P02": {}, "57P03": {},
	"55006": {}, "55P03": {},
}

var networkFragments = []string{
	"connection reset by peer",
	"broken pipe",
	"connection refused",
	"no connection",
	"i/o timeout",
}

// IsRetryableError reports whether err looks transient.
func IsRetryableError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	var pgerr pgdriver.Error
	if errors.As(err, &pgerr) {
		_, ok := retryableCodes[pgerr.Field('C')]
		return ok
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	msg := err.Error()
	for _, fragment := range networkFragments {
		if strings.Contains(msg, fragment) {
			return true
		}
	}

	return false
}

func newBackOff(ctx context.Context) backoff.BackOff {
	return backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithMaxElapsedTime(maxElapsedTime),
		backoff.WithInitialInterval(initialInterval),
		backoff.WithMaxInterval(maxInterval),
	), maxRetries), ctx)
}

// Operation runs op, retrying transient errors. Non-retryable errors are
// returned unwrapped so callers can match them with errors.Is.
func Operation[T any](ctx context.Context, op func(context.Context) (T, error)) (T, error) {
	var result T
	var lastErr error

	err := backoff.Retry(func() error {
		var err error
		result, err = op(ctx)
		if err == nil {
			return nil
		}

		lastErr = err
		if !IsRetryableError(err) {
			return backoff.Permanent(err)
		}

		return err
	}, newBackOff(ctx))
	if err != nil {
		if lastErr != nil && IsRetryableError(lastErr) {
			return result, fmt.Errorf("database operation failed after retries: %w", lastErr)
		}
		return result, lastErrOr(lastErr, err)
	}

	return result, nil
}

// NoResult is Operation for calls without a result.
func NoResult(ctx context.Context, op func(context.Context) error) error {
	_, err := Operation(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})

	return err
}

// Transaction runs fn in a transaction, retrying the whole transaction on transient errors.
func Transaction(ctx context.Context, db *bun.DB, fn func(context.Context, bun.Tx) error) error {
	return NoResult(ctx, func(ctx context.Context) error {
		return db.RunInTx(ctx, nil, fn)
	})
}

func lastErrOr(lastErr, fallback error) error {
	if lastErr != nil {
		return lastErr
	}

	return fallback
}
