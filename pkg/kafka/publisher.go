package kafka

import (
	"context"

	"github.com/Astemirdum/library-circulation/pkg/circuit_breaker"
	"github.com/IBM/sarama"
	"github.com/google/uuid"
)

type Publisher struct {
	producer sarama.SyncProducer
	topic    string
	cb       circuit_breaker.CircuitBreaker
}

func NewPublisher(producer sarama.SyncProducer, topic string, cb circuit_breaker.CircuitBreaker) *Publisher {
	return &Publisher{
		producer: producer,
		topic:    topic,
		cb:       cb,
	}
}

// Publish keys messages by book so one book's events stay ordered within a partition.
// Events without a book are keyed by member.
func (p *Publisher) Publish(_ context.Context, event Event) error {
	data, err := EncodeEvent(event)
	if err != nil {
		return err
	}
	key := event.BookID
	if key == uuid.Nil {
		key = event.MemberID
	}
	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(key.String()),
		Value: sarama.ByteEncoder(data),
	}
	return p.cb.Call(func() error {
		_, _, err := p.producer.SendMessage(msg)
		return err
	})
}

func (p *Publisher) Close() error {
	return p.producer.Close()
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
