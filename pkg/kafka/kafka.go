package kafka

import (
	"context"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type Config struct {
	Addrs []string `envconfig:"KAFKA_ADDRS"`
}

func (c Config) Enabled() bool {
	return len(c.Addrs) > 0
}

const (
	CirculationTopic   = "circulation"
	StatsConsumerGroup = "circulation-stats"
)

const (
	EventTransactionBorrowed = "transaction.borrowed"
	EventTransactionReturned = "transaction.returned"
	EventTransactionRenewed  = "transaction.renewed"
	EventFineIssued          = "fine.issued"
	EventFinePaid            = "fine.paid"
	EventFineWaived          = "fine.waived"
	EventReservationCreated  = "reservation.created"
	EventReservationCanceled = "reservation.cancelled"
	EventReservationNotified = "reservation.notified"
	EventReservationFulfill  = "reservation.fulfilled"
	EventReservationExpired  = "reservation.expired"
)

// Event is the envelope of everything published on CirculationTopic.
type Event struct {
	ID          uuid.UUID           `json:"id"`
	Type        string              `json:"type"`
	AggregateID uuid.UUID           `json:"aggregateId"`
	BookID      uuid.UUID           `json:"bookId"`
	MemberID    uuid.UUID           `json:"memberId"`
	OccurredAt  time.Time           `json:"occurredAt"`
	Payload     jsoniter.RawMessage `json:"payload,omitempty"`
}

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func EncodeEvent(e Event) ([]byte, error) {
	return json.Marshal(e)
}

func DecodeEvent(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, err
	}
	if e.Type == "" {
		return Event{}, errors.New("event type is empty")
	}
	return e, nil
}

func MarshalPayload(v any) (jsoniter.RawMessage, error) {
	return json.Marshal(v)
}

func NewProducer(cfg Config) (sarama.SyncProducer, error) {
	defaultCfg := sarama.NewConfig()

	defaultCfg.Producer.RequiredAcks = sarama.WaitForAll
	defaultCfg.Producer.Return.Successes = true
	defaultCfg.Producer.Retry.Max = 3

	return sarama.NewSyncProducer(cfg.Addrs, defaultCfg)
}

func NewConsumer(cfg Config, group string) (sarama.ConsumerGroup, error) {
	defaultCfg := sarama.NewConfig()
	defaultCfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	defaultCfg.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}

	return sarama.NewConsumerGroup(cfg.Addrs, group, defaultCfg)
}

// Consume runs the group session loop until ctx is done or the group is closed.
func Consume(ctx context.Context, group sarama.ConsumerGroup, handler sarama.ConsumerGroupHandler, log *zap.Logger, topics ...string) {
	for {
		if err := group.Consume(ctx, topics, handler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return
			}
			log.Error("group.Consume", zap.Error(err))
		}
		if ctx.Err() != nil {
			return
		}
	}
}
