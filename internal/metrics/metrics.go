package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Classification result labels.
const (
	ResultClean   = "clean"
	ResultFlagged = "flagged"
	ResultError   = "error"
	ResultSkipped = "skipped"
)

// Metrics holds the engine's collectors. A nil *Metrics is a valid no-op.
type Metrics struct {
	MessagesClassified *prometheus.CounterVec
	Escalations        prometheus.Counter
	CasesEnqueued      *prometheus.CounterVec
	QueuePending       prometheus.Gauge
	ClassifierLatency  prometheus.Histogram
}

// New registers all collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		MessagesClassified: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_messages_classified_total",
			Help: "Total number of messages sent through the classifier",
		}, []string{"result"}),

		Escalations: factory.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_escalations_total",
			Help: "Total number of messages that triggered an escalation",
		}),

		CasesEnqueued: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_cases_enqueued_total",
			Help: "Total number of moderation cases enqueued",
		}, []string{"source"}),

		QueuePending: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sentinel_queue_pending",
			Help: "Number of pending moderation cases",
		}),

		ClassifierLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "sentinel_classifier_latency_seconds",
			Help:    "Classifier backend latency in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
}

// ObserveClassification records one classifier outcome.
func (m *Metrics) ObserveClassification(result string, took time.Duration) {
	if m == nil {
		return
	}

	m.MessagesClassified.WithLabelValues(result).Inc()
	if result != ResultSkipped {
		m.ClassifierLatency.Observe(took.Seconds())
	}
}

// IncEscalations counts an escalation decision.
func (m *Metrics) IncEscalations() {
	if m == nil {
		return
	}

	m.Escalations.Inc()
}

// IncEnqueued counts a new case by source.
func (m *Metrics) IncEnqueued(source string) {
	if m == nil {
		return
	}

	m.CasesEnqueued.WithLabelValues(source).Inc()
}

// SetPending publishes the pending queue size.
func (m *Metrics) SetPending(n int) {
	if m == nil {
		return
	}

	m.QueuePending.Set(float64(n))
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Failed to shut down metrics server", zap.Error(err))
		}
	}()

	logger.Info("Metrics server listening", zap.String("addr", addr))

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
