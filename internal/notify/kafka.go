package notify

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, messages ...kafka.Message) error
	Close() error
}

// KafkaSender writes rendered emails to a topic keyed by reservation so one
// reservation's messages stay ordered within a partition.
type KafkaSender struct {
	writer messageWriter
}

func NewKafkaSender(brokers []string, topic string) *KafkaSender {
	return &KafkaSender{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}}
}

func (sender *KafkaSender) Send(ctx context.Context, email Email) error {
	value, err := json.Marshal(email)
	if err != nil {
		return err
	}
	return sender.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatUint(email.ReservationID, 10)),
		Value: value,
		Time:  time.Now().UTC(),
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(email.Kind)},
			{Key: "message_id", Value: []byte(email.MessageID)},
		},
	})
}

func (sender *KafkaSender) Close() error {
	return sender.writer.Close()
}
