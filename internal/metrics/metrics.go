// Package metrics provides Prometheus metrics for the document repository.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Index metrics
	indexBuildDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "textrepo_index_build_duration_seconds",
			Help:    "Time to build the document index",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	indexDocuments = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "textrepo_index_documents",
			Help: "Number of documents in the flat index",
		},
	)

	// Segment write metrics
	segmentWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "textrepo_segment_writes_total",
			Help: "Total number of segment write attempts",
		},
		[]string{"outcome"},
	)

	segmentClobbersTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "textrepo_segment_clobbers_total",
			Help: "Segment writes that overwrote a value the client had not seen",
		},
	)

	// Commit pipeline metrics
	commitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "textrepo_commits_total",
			Help: "Commits created, by kind",
		},
		[]string{"kind"},
	)

	pushAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "textrepo_push_attempts_total",
			Help: "Push attempts, by status",
		},
		[]string{"status"},
	)

	pushEscalationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "textrepo_push_escalations_total",
			Help: "Flushes that exhausted every push attempt",
		},
	)

	// Webhook metrics
	webhookEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "textrepo_webhook_events_total",
			Help: "Remote update events, by outcome",
		},
		[]string{"outcome"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordIndexBuild records a completed index build or restore.
func RecordIndexBuild(source string, duration time.Duration, documents int) {
	indexBuildDuration.WithLabelValues(source).Observe(duration.Seconds())
	indexDocuments.Set(float64(documents))
}

// RecordSegmentWrite records the outcome of a segment write.
func RecordSegmentWrite(outcome string) {
	segmentWritesTotal.WithLabelValues(outcome).Inc()
}

// RecordClobber records a last-write-wins overwrite.
func RecordClobber() {
	segmentClobbersTotal.Inc()
}

// RecordCommit records a created ("commit", "bulk") or amended ("amend") commit.
func RecordCommit(kind string) {
	commitsTotal.WithLabelValues(kind).Inc()
}

// RecordPushAttempt records one push attempt.
func RecordPushAttempt(success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	pushAttemptsTotal.WithLabelValues(status).Inc()
}

// RecordPushEscalation records an exhausted flush.
func RecordPushEscalation() {
	pushEscalationsTotal.Inc()
}

// RecordWebhookEvent records how a remote update event was handled.
func RecordWebhookEvent(outcome string) {
	webhookEventsTotal.WithLabelValues(outcome).Inc()
}
