// Package events publishes pipeline run events to Kafka for downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const (
	EventRunSucceeded = "pipeline.run.succeeded"
	EventRunFailed    = "pipeline.run.failed"
)

// Config holds Kafka configuration
type Config struct {
	Brokers      []string
	Topic        string
	RequiredAcks int
	Compression  string
}

// ParseBrokers splits a comma-separated broker list, dropping blanks.
func ParseBrokers(brokers string) []string {
	var list []string
	for _, broker := range strings.Split(brokers, ",") {
		if broker = strings.TrimSpace(broker); broker != "" {
			list = append(list, broker)
		}
	}
	return list
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes run events.
type Producer struct {
	writer messageWriter
	topic  string
	logger ectologger.Logger
}

// NewProducer creates a new Kafka producer
func NewProducer(cfg Config, logger ectologger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.LeastBytes{},
		BatchSize:              1,
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:            compression(cfg.Compression),
		AllowAutoTopicCreation: true,
	}
	return newProducer(writer, cfg.Topic, logger)
}

func newProducer(writer messageWriter, topic string, logger ectologger.Logger) *Producer {
	return &Producer{writer: writer, topic: topic, logger: logger}
}

func compression(name string) kafka.Compression {
	switch name {
	case "gzip":
		return kafka.Gzip
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	case "snappy":
		return kafka.Snappy
	default:
		return 0
	}
}

// RunEvent is the message published when a run finishes.
type RunEvent struct {
	Type             string           `json:"type"`
	RunID            string           `json:"run_id"`
	RunDate          string           `json:"run_date"`
	Status           models.RunStatus `json:"status"`
	StartedAt        time.Time        `json:"started_at"`
	FinishedAt       time.Time        `json:"finished_at"`
	CanonicalRows    int              `json:"canonical_rows"`
	FactRows         int              `json:"fact_rows"`
	DepartmentRows   int              `json:"department_rows"`
	LocationRows     int              `json:"location_rows"`
	CalendarRows     int              `json:"calendar_rows"`
	FieldIssues      int              `json:"field_issues"`
	FailedAssertions []string         `json:"failed_assertions,omitempty"`
	Error            string           `json:"error,omitempty"`
	TraceID          string           `json:"trace_id,omitempty"`
}

// NewRunEvent builds the event for a finished run log entry.
func NewRunEvent(run models.PipelineRun, failed []models.AssertionResult) RunEvent {
	evt := RunEvent{
		Type:           EventRunSucceeded,
		RunID:          run.RunID.String(),
		RunDate:        run.RunDate.Format("2006-01-02"),
		Status:         run.Status,
		StartedAt:      run.StartedAt,
		CanonicalRows:  run.CanonicalRows,
		FactRows:       run.FactRows,
		DepartmentRows: run.DepartmentRows,
		LocationRows:   run.LocationRows,
		CalendarRows:   run.CalendarRows,
		FieldIssues:    run.FieldIssues,
	}
	if run.FinishedAt != nil {
		evt.FinishedAt = *run.FinishedAt
	}
	if run.Status == models.RunStatusFailed {
		evt.Type = EventRunFailed
	}
	if run.ErrorMessage != nil {
		evt.Error = *run.ErrorMessage
	}
	for _, result := range failed {
		evt.FailedAssertions = append(evt.FailedAssertions, string(result.Scope)+"."+result.Name)
	}
	return evt
}

// PublishRun publishes a run event keyed by run id.
func (p *Producer) PublishRun(ctx context.Context, evt RunEvent) error {
	ctx, span := tracing.StartSpan(ctx, "events.Producer.PublishRun")
	defer span.End()

	span.SetAttributes(
		attribute.String("messaging.system", "kafka"),
		attribute.String("messaging.destination", p.topic),
		attribute.String("run_id", evt.RunID),
	)

	evt.TraceID = tracing.GetTraceID(ctx)
	data, err := json.Marshal(evt)
	if err != nil {
		tracing.RecordError(span, err)
		return fmt.Errorf("failed to marshal run event: %w", err)
	}

	headers := []kafka.Header{
		{Key: "type", Value: []byte(evt.Type)},
		{Key: "run_id", Value: []byte(evt.RunID)},
	}
	if traceparent := tracing.GetTraceParent(ctx); traceparent != "" {
		headers = append(headers, kafka.Header{Key: "traceparent", Value: []byte(traceparent)})
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(evt.RunID),
		Value:   data,
		Headers: headers,
	}); err != nil {
		tracing.RecordError(span, err)
		metrics.RecordKafkaPublish(p.topic, "error")
		p.logger.WithContext(ctx).WithError(err).Errorf("Failed to publish run event to Kafka topic %s", p.topic)
		return err
	}

	metrics.RecordKafkaPublish(p.topic, "success")
	p.logger.WithContext(ctx).WithFields(map[string]any{
		"run_id": evt.RunID,
		"type":   evt.Type,
	}).Debug("Published run event")
	return nil
}

// Close closes the producer
func (p *Producer) Close() error {
	return p.writer.Close()
}
