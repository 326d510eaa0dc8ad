package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/ais-ship-tracker/internal/config"
	"github.com/couchcryptid/ais-ship-tracker/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer publishes enriched ship positions to a Kafka topic.
// It implements pipeline.BatchLoader.
type Writer struct {
	writer  *kafkago.Writer
	brokers []string
	logger  *slog.Logger
}

// NewWriter creates a Kafka producer for the configured publish topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, brokers: cfg.KafkaBrokers, logger: logger}
}

// LoadBatch serializes every record of the table and publishes them in a
// single WriteMessages call. Records are keyed by MMSI so one vessel's
// positions land on one partition in order.
func (w *Writer) LoadBatch(ctx context.Context, table *domain.EnrichedTable) error {
	if table.Len() == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(table.Records))
	for i := range table.Records {
		msg, err := serializeToMessage(table.Records[i], table.GeneratedAt)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write %d messages to %s: %w", len(msgs), w.writer.Topic, err)
	}
	w.logger.Debug("published ship positions", "topic", w.writer.Topic, "count", len(msgs))
	return nil
}

// CheckReadiness dials the first reachable broker.
func (w *Writer) CheckReadiness(ctx context.Context) error {
	var errs []error
	for _, broker := range w.brokers {
		conn, err := kafkago.DialContext(ctx, "tcp", broker)
		if err != nil {
			errs = append(errs, fmt.Errorf("dial %s: %w", broker, err))
			continue
		}
		return conn.Close()
	}
	if len(errs) == 0 {
		return errors.New("no kafka brokers configured")
	}
	return errors.Join(errs...)
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals an EnrichedRecord into a Kafka message.
func serializeToMessage(rec domain.EnrichedRecord, processedAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize ship position row %d: %w", rec.Row, err)
	}
	return kafkago.Message{
		Key:   []byte(rec.MMSI),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "vessel_name", Value: []byte(rec.VesselName)},
			{Key: "processed_at", Value: []byte(processedAt.Format(time.RFC3339))},
		},
	}, nil
}
