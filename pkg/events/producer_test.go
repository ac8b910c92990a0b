package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/models"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func TestParseBrokers(t *testing.T) {
	assert.Equal(t, []string{"a:9092", "b:9092"}, ParseBrokers(" a:9092, ,b:9092 "))
	assert.Nil(t, ParseBrokers(""))
}

func TestNewRunEvent(t *testing.T) {
	runID := uuid.New()
	finished := time.Date(2026, time.October, 16, 6, 1, 0, 0, time.UTC)
	message := "source unavailable"

	evt := NewRunEvent(models.PipelineRun{
		RunID:        runID,
		RunDate:      time.Date(2026, time.October, 16, 0, 0, 0, 0, time.UTC),
		Status:       models.RunStatusFailed,
		FinishedAt:   &finished,
		ErrorMessage: &message,
	}, []models.AssertionResult{{Scope: models.ScopeStore, Name: "fact_row_count_matches_canonical"}})

	assert.Equal(t, EventRunFailed, evt.Type)
	assert.Equal(t, runID.String(), evt.RunID)
	assert.Equal(t, "2026-10-16", evt.RunDate)
	assert.Equal(t, finished, evt.FinishedAt)
	assert.Equal(t, message, evt.Error)
	assert.Equal(t, []string{"store.fact_row_count_matches_canonical"}, evt.FailedAssertions)
}

func TestProducer_PublishRun(t *testing.T) {
	t.Run("writes a keyed message", func(t *testing.T) {
		writer := &fakeWriter{}
		producer := newProducer(writer, "fern.pipeline-runs", testLogger())

		evt := RunEvent{Type: EventRunSucceeded, RunID: "run-1", Status: models.RunStatusSucceeded, FactRows: 320}
		require.NoError(t, producer.PublishRun(context.Background(), evt))

		require.Len(t, writer.messages, 1)
		msg := writer.messages[0]
		assert.Equal(t, "run-1", string(msg.Key))
		assert.Empty(t, msg.Topic)

		var decoded RunEvent
		require.NoError(t, json.Unmarshal(msg.Value, &decoded))
		assert.Equal(t, 320, decoded.FactRows)
		assert.Equal(t, models.RunStatusSucceeded, decoded.Status)

		require.NoError(t, producer.Close())
		assert.True(t, writer.closed)
	})

	t.Run("returns write errors", func(t *testing.T) {
		producer := newProducer(&fakeWriter{err: errors.New("broker down")}, "fern.pipeline-runs", testLogger())
		err := producer.PublishRun(context.Background(), RunEvent{RunID: "run-2"})
		assert.EqualError(t, err, "broker down")
	})
}

func TestCompression(t *testing.T) {
	assert.Equal(t, kafka.Gzip, compression("gzip"))
	assert.Equal(t, kafka.Snappy, compression("snappy"))
	assert.Equal(t, kafka.Compression(0), compression("none"))
}
