package classifier_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/robalyx/sentinel/internal/classifier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeBackend struct {
	calls      atomic.Int32
	prediction classifier.Prediction
	err        error
	delay      time.Duration
}

func (f *fakeBackend) Predict(ctx context.Context, _ string) (classifier.Prediction, error) {
	f.calls.Add(1)

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return classifier.Prediction{}, ctx.Err()
		}
	}

	return f.prediction, f.err
}

func newAdapter(backend classifier.Backend, cfg classifier.Config) *classifier.Adapter {
	return classifier.NewAdapter(backend, cfg, nil, zap.NewNop())
}

func TestClassifyShortTextSkipsBackend(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{}
	adapter := newAdapter(backend, classifier.Config{})

	for _, text := range []string{"", "   ", "hey", " hi  "} {
		result := adapter.Classify(t.Context(), text)
		assert.False(t, result.Failed())
		assert.InDelta(t, 0.0, result.GroomingProbability, 0)
		assert.InDelta(t, 0.95, result.Confidence, 0)
		assert.Equal(t, 0, result.PredictedClass)
		assert.False(t, result.IsGrooming)
	}

	assert.Equal(t, int32(0), backend.calls.Load())
}

func TestClassifySuccess(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{prediction: classifier.Prediction{
		GroomingProbability: 0.9,
		Confidence:          0.85,
		PredictedClass:      1,
	}}
	adapter := newAdapter(backend, classifier.Config{})

	result := adapter.Classify(t.Context(), "a longer message")
	require.False(t, result.Failed())
	assert.InDelta(t, 0.9, result.GroomingProbability, 1e-9)
	assert.InDelta(t, 0.85, result.Confidence, 1e-9)
	assert.True(t, result.IsGrooming)
	assert.True(t, result.Flagged())
}

func TestClassifyBackendError(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{err: errors.New("boom")}
	adapter := newAdapter(backend, classifier.Config{})

	result := adapter.Classify(t.Context(), "a longer message")
	assert.True(t, result.Failed())
	assert.Contains(t, result.Err, "boom")
	assert.InDelta(t, 0.0, result.GroomingProbability, 0)
	assert.InDelta(t, 0.0, result.Confidence, 0)
	assert.False(t, result.Flagged())
}

func TestClassifyTimeout(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{delay: time.Second}
	adapter := newAdapter(backend, classifier.Config{Timeout: 20 * time.Millisecond})

	result := adapter.Classify(t.Context(), "a longer message")
	assert.True(t, result.Failed())
	assert.Contains(t, result.Err, context.DeadlineExceeded.Error())
}

func TestClassifyRejectsOutOfRange(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{prediction: classifier.Prediction{GroomingProbability: 1.4, Confidence: 0.9}}
	adapter := newAdapter(backend, classifier.Config{})

	result := adapter.Classify(t.Context(), "a longer message")
	assert.True(t, result.Failed())
	assert.Contains(t, result.Err, classifier.ErrInvalidPrediction.Error())
}

func TestClassifyBreakerOpens(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{err: errors.New("down")}
	adapter := newAdapter(backend, classifier.Config{
		BreakerMinCalls:  2,
		BreakerFailRatio: 0.5,
		BreakerTimeout:   time.Minute,
	})

	adapter.Classify(t.Context(), "first message")
	adapter.Classify(t.Context(), "second message")

	result := adapter.Classify(t.Context(), "third message")
	assert.True(t, result.Failed())
	assert.Contains(t, result.Err, classifier.ErrBackendUnavailable.Error())
	assert.Equal(t, int32(2), backend.calls.Load())
}
