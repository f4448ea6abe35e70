package notify

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

type amqpPublisher interface {
	PublishWithContext(ctx context.Context, exchange string, key string, mandatory bool, immediate bool, message amqp.Publishing) error
}

// AMQPSender publishes rendered emails to a durable RabbitMQ queue consumed
// by the mail relay.
type AMQPSender struct {
	connection *amqp.Connection
	channel    *amqp.Channel
	publisher  amqpPublisher
	queue      string
}

// DialAMQP opens a channel and declares the queue.
func DialAMQP(url string, queue string) (*AMQPSender, error) {
	connection, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	channel, err := connection.Channel()
	if err != nil {
		_ = connection.Close()
		return nil, err
	}
	if _, err := channel.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = channel.Close()
		_ = connection.Close()
		return nil, err
	}
	return &AMQPSender{connection: connection, channel: channel, publisher: channel, queue: queue}, nil
}

func (sender *AMQPSender) Send(ctx context.Context, email Email) error {
	body, err := json.Marshal(email)
	if err != nil {
		return err
	}
	return sender.publisher.PublishWithContext(ctx, "", sender.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    email.MessageID,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
}

// Close releases the channel and connection.
func (sender *AMQPSender) Close() error {
	var errs []error
	if sender.channel != nil {
		errs = append(errs, sender.channel.Close())
	}
	if sender.connection != nil {
		errs = append(errs, sender.connection.Close())
	}
	return errors.Join(errs...)
}
