package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/wonny/rgm/internal/contracts"
	"github.com/wonny/rgm/pkg/config"
)

// messageWriter is the subset of *kafka.Writer the publisher needs
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes one message per recommendation, keyed by SKU so that a SKU's
// recommendations stay ordered within a partition
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	log    zerolog.Logger
}

// NewKafkaPublisher creates a publisher on the configured brokers
func NewKafkaPublisher(cfg config.KafkaConfig, log zerolog.Logger) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  3,
		WriteTimeout: 10 * time.Second,
		BatchTimeout: 100 * time.Millisecond,
	}
	return newKafkaPublisher(w, cfg.Topic, log), nil
}

func newKafkaPublisher(w messageWriter, topic string, log zerolog.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer: w,
		topic:  topic,
		log:    log.With().Str("component", "publish.kafka").Logger(),
	}
}

// Name implements Publisher
func (p *KafkaPublisher) Name() string { return "kafka" }

// Publish writes the scenario's recommendations in one batch
func (p *KafkaPublisher) Publish(ctx context.Context, result *contracts.ScenarioResult) error {
	msgs, err := Messages(result)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write %d messages to %s: %w", len(msgs), p.topic, err)
	}
	p.log.Debug().
		Str("scenario_id", result.ScenarioID).
		Int("messages", len(msgs)).
		Msg("recommendations published")
	return nil
}

// Close flushes and closes the writer
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Messages encodes a result as kafka messages: key = sku, header scenario_id
func Messages(result *contracts.ScenarioResult) ([]kafka.Message, error) {
	msgs := make([]kafka.Message, 0, len(result.Recommendations))
	for _, rec := range result.Recommendations {
		value, err := json.Marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("encode recommendation %s: %w", rec.SKU, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(rec.SKU),
			Value: value,
			Time:  rec.GeneratedAt,
			Headers: []kafka.Header{
				{Key: "scenario_id", Value: []byte(result.ScenarioID)},
				{Key: "status", Value: []byte(result.Status)},
			},
		})
	}
	return msgs, nil
}
