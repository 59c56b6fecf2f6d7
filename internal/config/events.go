package config

import (
	"log/slog"
	"strings"

	"github.com/SAP-F-2025/course-player/internal/events"
)

// EventConfig holds configuration for learner event publishing
type EventConfig struct {
	Enabled      bool
	Publisher    string // kafka, amqp or mock
	KafkaBrokers string
	AMQPURL      string
	LearnerTopic string
}

func (c *EventConfig) GetKafkaBrokers() []string {
	return splitList(c.KafkaBrokers)
}

// CreateEventPublisher creates an event publisher based on configuration
func (c *EventConfig) CreateEventPublisher(logger *slog.Logger) (events.EventPublisher, error) {
	if !c.Enabled {
		logger.Info("Event publishing disabled, using mock publisher")
		return events.NewMockEventPublisher(logger), nil
	}

	cfg := events.PublisherConfig{
		KafkaBrokers: c.GetKafkaBrokers(),
		AMQPURL:      c.AMQPURL,
		TopicName:    c.LearnerTopic,
		Logger:       logger,
	}

	switch strings.ToLower(c.Publisher) {
	case "kafka":
		logger.Info("Creating Kafka event publisher",
			"brokers", c.KafkaBrokers,
			"topic", c.LearnerTopic)
		return events.NewKafkaEventPublisher(cfg)
	case "amqp", "rabbitmq":
		logger.Info("Creating AMQP event publisher", "exchange", c.LearnerTopic)
		return events.NewAMQPEventPublisher(cfg)
	case "mock":
		logger.Info("Using mock event publisher")
		return events.NewMockEventPublisher(logger), nil
	default:
		logger.Warn("Unknown event publisher type, falling back to mock", "publisher", c.Publisher)
		return events.NewMockEventPublisher(logger), nil
	}
}
