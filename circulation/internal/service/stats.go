package service

import (
	"context"

	"github.com/Astemirdum/library-circulation/circulation/internal/model"
	"github.com/Astemirdum/library-circulation/pkg/kafka"
)

func (s *Service) GetStats(ctx context.Context) (model.StatsInfo, error) {
	return s.repo.GetStats(ctx)
}

// RecordEvent projects a consumed circulation event into the dashboard table.
func (s *Service) RecordEvent(ctx context.Context, e kafka.Event) error {
	return s.repo.RecordEvent(ctx, model.CirculationEvent{
		ID:          e.ID,
		Type:        e.Type,
		AggregateID: e.AggregateID,
		BookID:      e.BookID,
		MemberID:    e.MemberID,
		OccurredAt:  e.OccurredAt,
		Payload:     e.Payload,
	})
}
