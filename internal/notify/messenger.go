// Package notify hands outbound messages to the delivery collaborator.
// Rendering and sending the actual email happens downstream of Kafka.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Gopher0727/Eiga/internal/pkg/kafka"
	logger "github.com/Gopher0727/Eiga/middleware/log"
)

// Welcome is sent to a user right after a successful invite redemption.
type Welcome struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Link     string `json:"link"`
}

// Messenger delivers a message to a destination address.
type Messenger interface {
	SendWelcome(ctx context.Context, msg Welcome) error
}

// KafkaMessenger publishes welcome jobs to a topic keyed by email so retries
// for one address stay on one partition.
type KafkaMessenger struct {
	producer   *kafka.Producer
	topic      string
	maxRetries int
	log        *logger.Logger
}

func NewKafkaMessenger(producer *kafka.Producer, topic string, maxRetries int, log *logger.Logger) *KafkaMessenger {
	return &KafkaMessenger{
		producer:   producer,
		topic:      topic,
		maxRetries: maxRetries,
		log:        log.Named("messenger"),
	}
}

func (m *KafkaMessenger) SendWelcome(ctx context.Context, msg Welcome) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal welcome message: %w", err)
	}

	partition, offset, err := m.producer.ProduceWithRetry(ctx, m.topic, []byte(msg.Email), payload, m.maxRetries)
	if err != nil {
		return fmt.Errorf("failed to enqueue welcome message: %w", err)
	}

	m.log.DebugContext(ctx, "welcome message enqueued",
		zap.String("topic", m.topic),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
	)
	return nil
}

// LogMessenger only logs. Used when no Kafka brokers are configured.
type LogMessenger struct {
	log *logger.Logger

	mu   sync.Mutex
	sent []Welcome
}

func NewLogMessenger(log *logger.Logger) *LogMessenger {
	return &LogMessenger{log: log.Named("messenger")}
}

func (m *LogMessenger) SendWelcome(ctx context.Context, msg Welcome) error {
	m.mu.Lock()
	m.sent = append(m.sent, msg)
	m.mu.Unlock()

	m.log.InfoContext(ctx, "welcome message", zap.String("username", msg.Username), zap.String("link", msg.Link))
	return nil
}

// Sent returns the messages recorded so far.
func (m *LogMessenger) Sent() []Welcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Welcome(nil), m.sent...)
}
