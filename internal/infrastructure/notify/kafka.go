package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventCatalogChanged is the event type published after catalog inserts
const EventCatalogChanged = "catalog.changed"

// KafkaConfig holds Kafka producer configuration
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	RequiredAcks int
	Compression  string
}

// CatalogChangedEvent tells consumers that new catalog rows need embeddings
type CatalogChangedEvent struct {
	EventType string    `json:"event_type"`
	Inserted  int       `json:"inserted"`
	Timestamp time.Time `json:"timestamp"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier publishes catalog change events for an out-of-process
// embedding worker.
type KafkaNotifier struct {
	writer messageWriter
	topic  string
	logger *zap.Logger
}

// NewKafkaNotifier creates a new Kafka backed notifier
func NewKafkaNotifier(cfg KafkaConfig, logger *zap.Logger) (*KafkaNotifier, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka notifier: no brokers configured")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka notifier: no topic configured")
	}

	compression, err := parseCompression(cfg.Compression)
	if err != nil {
		return nil, err
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.LeastBytes{},
		BatchSize:              1,
		RequiredAcks:           kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:            compression,
		AllowAutoTopicCreation: true,
	}

	return newKafkaNotifier(writer, cfg.Topic, logger), nil
}

// parseCompression maps a codec name to the writer setting; empty means snappy
func parseCompression(name string) (kafka.Compression, error) {
	switch strings.ToLower(name) {
	case "", "snappy":
		return kafka.Snappy, nil
	case "gzip":
		return kafka.Gzip, nil
	case "lz4":
		return kafka.Lz4, nil
	case "zstd":
		return kafka.Zstd, nil
	case "none":
		return 0, nil
	default:
		return 0, fmt.Errorf("unsupported kafka compression %q", name)
	}
}

func newKafkaNotifier(writer messageWriter, topic string, logger *zap.Logger) *KafkaNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaNotifier{writer: writer, topic: topic, logger: logger.Named("kafka")}
}

// NotifyCatalogChanged implements domain.RefreshNotifier
func (n *KafkaNotifier) NotifyCatalogChanged(ctx context.Context, inserted int) error {
	event := CatalogChangedEvent{
		EventType: EventCatalogChanged,
		Inserted:  inserted,
		Timestamp: time.Now().UTC(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Topic: n.topic,
		Key:   []byte(EventCatalogChanged),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventCatalogChanged)},
			{Key: "inserted", Value: []byte(strconv.Itoa(inserted))},
		},
	}

	if err := n.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", EventCatalogChanged, err)
	}

	n.logger.Debug("published catalog change", zap.String("topic", n.topic), zap.Int("inserted", inserted))
	return nil
}

// Close closes the producer
func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}
