// Package kafka publishes quota usage events for downstream billing and
// analytics consumers. The sink is optional; when no brokers are configured
// the ledger simply runs without a recorder.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hydromet/imerg-subset-service/internal/observability"
	"github.com/hydromet/imerg-subset-service/internal/quota"
	kafkago "github.com/segmentio/kafka-go"
)

// UsageWriter produces usage events to a Kafka topic.
// It implements quota.Recorder.
type UsageWriter struct {
	writer  *kafkago.Writer
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewUsageWriter creates a Kafka producer for the usage topic.
func NewUsageWriter(brokers []string, topic string, logger *slog.Logger, metrics *observability.Metrics) *UsageWriter {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &UsageWriter{writer: w, logger: logger, metrics: metrics}
}

// RecordUsage serializes and publishes one usage event.
func (w *UsageWriter) RecordUsage(ctx context.Context, ev quota.UsageEvent) error {
	msg, err := serializeToMessage(ev)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish usage event: %w", err)
	}
	w.metrics.UsageEventsPublished.Inc()
	return nil
}

func (w *UsageWriter) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a usage event into a Kafka message keyed by
// username so a consumer sees one user's events in order.
func serializeToMessage(ev quota.UsageEvent) (kafkago.Message, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize usage event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(ev.Username),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "reservation_id", Value: []byte(ev.ReservationID)},
			{Key: "recorded_at", Value: []byte(ev.At.Format(time.RFC3339))},
		},
	}, nil
}
