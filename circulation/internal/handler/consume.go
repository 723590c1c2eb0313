package handler

import (
	"context"
	"time"

	"github.com/Astemirdum/library-circulation/pkg/kafka"
	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

type recordEvent func(ctx context.Context, e kafka.Event) error

// Consumer projects circulation events into the stats table.
type Consumer struct {
	record   recordEvent
	attempts int
	backoff  time.Duration
	log      *zap.Logger
}

type ConsumerOption func(*Consumer)

// WithRecordRetry sets how many times a failed write is tried and the first pause between tries.
func WithRecordRetry(attempts int, backoff time.Duration) ConsumerOption {
	return func(c *Consumer) {
		c.attempts = attempts
		c.backoff = backoff
	}
}

func NewConsumer(record recordEvent, log *zap.Logger, opts ...ConsumerOption) *Consumer {
	c := &Consumer{
		record:   record,
		attempts: 3,
		backoff:  200 * time.Millisecond,
		log:      log.Named("consumer"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (consumer *Consumer) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

func (consumer *Consumer) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim marks undecodable messages and skips them. A write that still fails after
// retrying ends the claim with nothing after it marked, so the group resumes from that
// message once it rejoins. Replays are harmless: events are stored once per id.
func (consumer *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok {
				consumer.log.Warn("message channel was closed")
				return nil
			}
			event, err := kafka.DecodeEvent(message.Value)
			if err != nil {
				consumer.log.Error("kafka.DecodeEvent", zap.Error(err))
				session.MarkMessage(message, "")
				continue
			}
			if err := consumer.recordWithRetry(session.Context(), event); err != nil {
				consumer.log.Error("consumer.record",
					zap.String("type", event.Type),
					zap.Int64("offset", message.Offset),
					zap.Error(err))
				return err
			}
			consumer.log.Debug("message claimed",
				zap.String("type", event.Type),
				zap.Time("timestamp", message.Timestamp),
				zap.String("topic", message.Topic))
			session.MarkMessage(message, "")
		case <-session.Context().Done():
			return nil
		}
	}
}

func (consumer *Consumer) recordWithRetry(ctx context.Context, event kafka.Event) error {
	delay := consumer.backoff
	var err error
	for attempt := 1; ; attempt++ {
		if err = consumer.record(ctx, event); err == nil {
			return nil
		}
		if attempt >= consumer.attempts {
			return err
		}
		consumer.log.Warn("record retry", zap.Int("attempt", attempt), zap.Error(err))
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return err
		}
		delay *= 2
	}
}
