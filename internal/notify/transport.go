package notify

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

const (
	TransportLog     = "log"
	TransportWebhook = "webhook"
	TransportAMQP    = "amqp"
	TransportKafka   = "kafka"
)

// TransportConfig selects and configures a Sender.
type TransportConfig struct {
	Kind         string
	WebhookURL   string
	WebhookToken string
	AMQPURL      string
	AMQPQueue    string
	KafkaBrokers []string
	KafkaTopic   string
}

// NewSender builds the configured transport. The returned closer releases
// broker connections and is never nil.
func NewSender(config TransportConfig, logger *zap.Logger) (Sender, func() error, error) {
	noop := func() error { return nil }
	switch strings.ToLower(strings.TrimSpace(config.Kind)) {
	case "", TransportLog:
		return NewLogSender(logger), noop, nil
	case TransportWebhook:
		if config.WebhookURL == "" {
			return nil, noop, fmt.Errorf("%w: webhook url is required", ErrInvalidDispatcherConfig)
		}
		return NewWebhookSender(config.WebhookURL, config.WebhookToken, nil), noop, nil
	case TransportAMQP:
		sender, err := DialAMQP(config.AMQPURL, config.AMQPQueue)
		if err != nil {
			return nil, noop, fmt.Errorf("amqp: %w", err)
		}
		return sender, sender.Close, nil
	case TransportKafka:
		if len(config.KafkaBrokers) == 0 || config.KafkaTopic == "" {
			return nil, noop, fmt.Errorf("%w: kafka brokers and topic are required", ErrInvalidDispatcherConfig)
		}
		sender := NewKafkaSender(config.KafkaBrokers, config.KafkaTopic)
		return sender, sender.Close, nil
	default:
		return nil, noop, fmt.Errorf("%w: %q", ErrUnknownTransport, config.Kind)
	}
}
