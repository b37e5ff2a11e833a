package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/region-metrics-etl/internal/config"
	"github.com/couchcryptid/region-metrics-etl/internal/domain"
)

// Writer produces messages to a Kafka topic.
// It implements pipeline.BatchLoader.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// LoadBatch serializes and publishes the metrics of multiple regions to the
// sink Kafka topic in a single WriteMessages call. Messages are keyed by
// FIPS code so every update of a region lands on the same partition.
func (w *Writer) LoadBatch(ctx context.Context, results []domain.RegionMetrics) error {
	if len(results) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(results))
	for i := range results {
		msg, err := serializeToMessage(results[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	return w.writer.WriteMessages(ctx, msgs...)
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a RegionMetrics into a Kafka message.
func serializeToMessage(result domain.RegionMetrics) (kafkago.Message, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize region metrics %s: %w", result.Region.FIPS, err)
	}
	return kafkago.Message{
		Key:   []byte(result.Region.FIPS),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "level", Value: []byte(result.Region.Level)},
			{Key: "computed_at", Value: []byte(result.ComputedAt.Format(time.RFC3339))},
			{Key: "run_id", Value: []byte(result.RunID)},
		},
	}, nil
}
