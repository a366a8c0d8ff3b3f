// Package metrics provides Prometheus metrics for curation runs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ItemsTotal counts feed items by their terminal outcome.
	ItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "curator",
			Name:      "items_total",
			Help:      "Feed items processed, by outcome",
		},
		[]string{"outcome"},
	)

	// FeedFetchTotal counts feed fetches by status.
	FeedFetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "curator",
			Name:      "feed_fetch_total",
			Help:      "Feed fetches, by status",
		},
		[]string{"status"},
	)

	// ClassifyDuration measures classification calls.
	ClassifyDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "curator",
			Name:      "classify_duration_seconds",
			Help:      "Duration of classification calls in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"status"},
	)

	// PromotedTotal counts drafts created from the queue.
	PromotedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "curator",
			Name:      "promoted_total",
			Help:      "Queue entries promoted into draft posts",
		},
	)

	// RunsTotal counts completed pipeline runs.
	RunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "curator",
			Name:      "runs_total",
			Help:      "Completed pipeline runs",
		},
	)

	// QueueLength is the queue size observed at the end of the last run.
	QueueLength = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "curator",
			Name:      "queue_length",
			Help:      "Entries waiting in the curation queue",
		},
	)
)

// RecordItem records one item outcome.
func RecordItem(outcome string) {
	ItemsTotal.WithLabelValues(outcome).Inc()
}

// RecordFeed records one feed fetch.
func RecordFeed(failed bool) {
	status := "ok"
	if failed {
		status = "failed"
	}
	FeedFetchTotal.WithLabelValues(status).Inc()
}

// RecordClassify records a classification call.
func RecordClassify(status string, seconds float64) {
	ClassifyDuration.WithLabelValues(status).Observe(seconds)
}

// RecordRun records the end of a run.
func RecordRun(promoted, queueLen int) {
	RunsTotal.Inc()
	PromotedTotal.Add(float64(promoted))
	if queueLen >= 0 {
		QueueLength.Set(float64(queueLen))
	}
}
