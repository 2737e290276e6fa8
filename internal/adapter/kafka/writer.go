package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/splashdown-etl/internal/config"
	"github.com/couchcryptid/splashdown-etl/internal/domain"
)

// ConditionsMessage is the JSON value of one published site-conditions row.
type ConditionsMessage struct {
	RunID string `json:"run_id"`
	domain.SiteConditions
}

// messageWriter is the subset of *kafkago.Writer used here.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes site conditions to a Kafka topic, keyed by site name so
// each site's series stays on one partition.
// It implements pipeline.Publisher.
type Writer struct {
	writer messageWriter
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, logger: logger}
}

// Publish serializes every row and writes them in a single WriteMessages call.
func (w *Writer) Publish(ctx context.Context, runID string, rows []domain.SiteConditions) error {
	if len(rows) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(rows))
	for i := range rows {
		msg, err := serializeToMessage(runID, rows[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish site conditions: %w", err)
	}
	w.logger.Debug("published site conditions", "messages", len(msgs), "run_id", runID)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals one SiteConditions row into a Kafka message.
func serializeToMessage(runID string, c domain.SiteConditions) (kafkago.Message, error) {
	data, err := json.Marshal(ConditionsMessage{RunID: runID, SiteConditions: c})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize site conditions: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(c.SiteName),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "run_id", Value: []byte(runID)},
			{Key: "observed_at", Value: []byte(c.Timestamp.UTC().Format(time.RFC3339))},
		},
	}, nil
}

// DecodeMessage parses a message written by Publish.
func DecodeMessage(msg kafkago.Message) (ConditionsMessage, error) {
	var out ConditionsMessage
	if err := json.Unmarshal(msg.Value, &out); err != nil {
		return ConditionsMessage{}, fmt.Errorf("decode site conditions: %w", err)
	}
	return out, nil
}
