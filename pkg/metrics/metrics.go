// Package metrics provides Prometheus metrics for the fern pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PipelineRunsTotal tracks pipeline runs by final status
	PipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total number of pipeline runs by status",
		},
		[]string{"status"},
	)

	// PipelineRunDuration tracks full run duration in seconds
	PipelineRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "pipeline",
			Name:      "run_duration_seconds",
			Help:      "Duration of pipeline runs in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	// StageDuration tracks each pipeline stage
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		},
		[]string{"stage"},
	)

	// RowsWritten tracks rows written per table on the last run
	RowsWritten = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "fern",
			Subsystem: "warehouse",
			Name:      "rows",
			Help:      "Rows written to each table by the last run",
		},
		[]string{"table"},
	)

	// FieldIssuesTotal tracks recovered field-level problems
	FieldIssuesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "reconcile",
			Name:      "field_issues_total",
			Help:      "Total number of field values replaced by null or a default",
		},
		[]string{"kind"},
	)

	// AssertionFailures tracks failing rows per assertion on the last run
	AssertionFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "fern",
			Subsystem: "validation",
			Name:      "failing_rows",
			Help:      "Failing rows per data-quality assertion on the last run",
		},
		[]string{"scope", "assertion"},
	)

	// SourceFetchesTotal tracks raw source reads
	SourceFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "ingest",
			Name:      "fetches_total",
			Help:      "Total number of raw source fetches by source and status",
		},
		[]string{"source", "status"},
	)

	// KafkaMessagesPublished tracks run events published
	KafkaMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "kafka",
			Name:      "messages_published_total",
			Help:      "Total number of run events published to Kafka",
		},
		[]string{"topic", "status"},
	)

	// LastRunTimestamp is the unix time of the last finished run
	LastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "fern",
			Subsystem: "pipeline",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix timestamp of the last finished pipeline run",
		},
	)
)

// RecordRun records a finished pipeline run
func RecordRun(status string, durationSeconds float64, finishedUnix float64) {
	PipelineRunsTotal.WithLabelValues(status).Inc()
	PipelineRunDuration.Observe(durationSeconds)
	LastRunTimestamp.Set(finishedUnix)
}

func RecordStage(stage string, durationSeconds float64) {
	StageDuration.WithLabelValues(stage).Observe(durationSeconds)
}

func RecordRows(table string, rows int) {
	RowsWritten.WithLabelValues(table).Set(float64(rows))
}

func RecordFieldIssues(kind string, count int) {
	FieldIssuesTotal.WithLabelValues(kind).Add(float64(count))
}

func RecordAssertion(scope, assertion string, failingRows int64) {
	AssertionFailures.WithLabelValues(scope, assertion).Set(float64(failingRows))
}

func RecordSourceFetch(source, status string) {
	SourceFetchesTotal.WithLabelValues(source, status).Inc()
}

// RecordKafkaPublish records a Kafka publish operation
func RecordKafkaPublish(topic, status string) {
	KafkaMessagesPublished.WithLabelValues(topic, status).Inc()
}
