package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements orchestrator.Metrics using Prometheus.
type Recorder struct {
	runs           *prometheus.CounterVec
	deliveries     *prometheus.CounterVec
	sentimentCalls *prometheus.CounterVec
	runDuration    prometheus.Histogram
	subscribers    prometheus.Gauge
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coinsentinel_runs_total",
				Help: "Watchlist update runs by result",
			},
			[]string{"result"},
		),
		deliveries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coinsentinel_deliveries_total",
				Help: "Per-subscriber delivery outcomes",
			},
			[]string{"outcome"},
		),
		sentimentCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coinsentinel_sentiment_calls_total",
				Help: "Sentiment provider calls by outcome",
			},
			[]string{"outcome"},
		),
		runDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "coinsentinel_run_duration_seconds",
				Help:    "Duration of watchlist update runs",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
		),
		subscribers: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "coinsentinel_subscribers",
				Help: "Subscribers with a non-empty watchlist in the last run",
			},
		),
	}
}

// RecordRun records a finished run.
func (r *Recorder) RecordRun(ok bool, subscribers int, d time.Duration) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	r.runs.WithLabelValues(result).Inc()
	r.runDuration.Observe(d.Seconds())
	if ok {
		r.subscribers.Set(float64(subscribers))
	}
}

// RecordDelivery records one subscriber outcome: sent, failed, skipped or timeout.
func (r *Recorder) RecordDelivery(outcome string) {
	r.deliveries.WithLabelValues(outcome).Inc()
}

// RecordSentiment records one sentiment provider call.
func (r *Recorder) RecordSentiment(ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	r.sentimentCalls.WithLabelValues(outcome).Inc()
}
