// Package classifier wraps the external grooming classifier behind a
// timeout, a concurrency bound and a circuit breaker.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/robalyx/sentinel/internal/common/types"
	"github.com/robalyx/sentinel/internal/metrics"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// MinTextLength is the shortest trimmed text worth sending to the backend.
const MinTextLength = 5

var (
	// ErrInvalidPrediction indicates the backend returned values outside [0,1].
	ErrInvalidPrediction = errors.New("prediction out of range")
	// ErrBackendUnavailable indicates the circuit breaker is open.
	ErrBackendUnavailable = errors.New("classifier backend unavailable")
)

// Prediction is the raw backend output.
type Prediction struct {
	GroomingProbability float64 `json:"grooming_probability"`
	Confidence          float64 `json:"confidence"`
	PredictedClass      int     `json:"predicted_class"`
}

// Backend performs a single inference call.
type Backend interface {
	Predict(ctx context.Context, text string) (Prediction, error)
}

// Config controls the adapter's resilience settings.
type Config struct {
	Timeout          time.Duration
	MaxConcurrent    int64
	BreakerTimeout   time.Duration
	BreakerMinCalls  uint32
	BreakerFailRatio float64
}

// Adapter turns backend calls into ClassificationResult values.
type Adapter struct {
	backend   Backend
	breaker   *gobreaker.CircuitBreaker
	semaphore *semaphore.Weighted
	timeout   time.Duration
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// NewAdapter creates an Adapter. Zero config fields get sensible defaults.
func NewAdapter(backend Backend, cfg Config, m *metrics.Metrics, logger *zap.Logger) *Adapter {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 8
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}
	if cfg.BreakerMinCalls == 0 {
		cfg.BreakerMinCalls = 10
	}
	if cfg.BreakerFailRatio <= 0 {
		cfg.BreakerFailRatio = 0.6
	}

	logger = logger.Named("classifier")

	settings := gobreaker.Settings{
		Name:        "classifier",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		Interval:    0,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= cfg.BreakerMinCalls && failureRatio >= cfg.BreakerFailRatio
		},
		OnStateChange: func(_ string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}

	return &Adapter{
		backend:   backend,
		breaker:   gobreaker.NewCircuitBreaker(settings),
		semaphore: semaphore.NewWeighted(cfg.MaxConcurrent),
		timeout:   cfg.Timeout,
		metrics:   m,
		logger:    logger,
	}
}

// Classify scores text. It never returns an error: failures come back as a
// result with Err set and all numeric fields zero.
func (a *Adapter) Classify(ctx context.Context, text string) types.ClassificationResult {
	trimmed := strings.TrimSpace(text)
	if utf8.RuneCountInString(trimmed) < MinTextLength {
		a.metrics.ObserveClassification(metrics.ResultSkipped, 0)
		return types.ClassificationResult{
			GroomingProbability: 0,
			Confidence:          0.95,
			PredictedClass:      0,
			IsGrooming:          false,
			Note:                "Empty or too short conversation",
		}
	}

	ctx, span := otel.Tracer("sentinel/classifier").Start(ctx, "classifier.Classify")
	defer span.End()
	span.SetAttributes(attribute.Int("text.length", len(trimmed)))

	start := time.Now()
	prediction, err := a.predict(ctx, trimmed)
	took := time.Since(start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		a.metrics.ObserveClassification(metrics.ResultError, took)
		a.logger.Warn("Classification failed", zap.Error(err), zap.Duration("took", took))

		return types.FailedClassification(err)
	}

	result := types.ClassificationResult{
		GroomingProbability: prediction.GroomingProbability,
		Confidence:          prediction.Confidence,
		PredictedClass:      prediction.PredictedClass,
		IsGrooming:          prediction.PredictedClass == 1,
	}

	label := metrics.ResultClean
	if result.Flagged() {
		label = metrics.ResultFlagged
	}
	a.metrics.ObserveClassification(label, took)

	span.SetAttributes(
		attribute.Float64("grooming.probability", result.GroomingProbability),
		attribute.Float64("grooming.confidence", result.Confidence),
	)

	return result
}

func (a *Adapter) predict(ctx context.Context, text string) (Prediction, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	if err := a.semaphore.Acquire(ctx, 1); err != nil {
		return Prediction{}, fmt.Errorf("failed to acquire semaphore: %w", err)
	}
	defer a.semaphore.Release(1)

	result, err := a.breaker.Execute(func() (any, error) {
		return a.backend.Predict(ctx, text)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return Prediction{}, fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
		}
		return Prediction{}, err
	}

	prediction := result.(Prediction)
	if !inUnitRange(prediction.GroomingProbability) || !inUnitRange(prediction.Confidence) {
		return Prediction{}, fmt.Errorf("%w: probability=%f confidence=%f",
			ErrInvalidPrediction, prediction.GroomingProbability, prediction.Confidence)
	}

	return prediction, nil
}

func inUnitRange(v float64) bool {
	return v >= 0 && v <= 1
}
