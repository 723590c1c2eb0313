package service

import (
	"context"

	"github.com/Astemirdum/library-circulation/pkg/kafka"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// newEvent builds an event to be published once the unit of work has committed.
func (s *Service) newEvent(typ string, aggregateID, bookID, memberID uuid.UUID, payload any) kafka.Event {
	e := kafka.Event{
		ID:          s.ids.NewID(),
		Type:        typ,
		AggregateID: aggregateID,
		BookID:      bookID,
		MemberID:    memberID,
		OccurredAt:  s.clock.Now(),
	}
	if payload != nil {
		raw, err := kafka.MarshalPayload(payload)
		if err != nil {
			s.log.Warn("marshal event payload", zap.String("type", typ), zap.Error(err))
		} else {
			e.Payload = raw
		}
	}
	return e
}

// publish never fails the caller: the state change is already committed.
func (s *Service) publish(ctx context.Context, events []kafka.Event) {
	for _, e := range events {
		if err := s.publisher.Publish(ctx, e); err != nil {
			s.log.Error("publish", zap.String("type", e.Type), zap.Stringer("aggregate", e.AggregateID), zap.Error(err))
		}
	}
}
