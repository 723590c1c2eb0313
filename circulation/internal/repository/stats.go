package repository

import (
	"context"
	"fmt"

	"github.com/Astemirdum/library-circulation/circulation/internal/model"
	"github.com/jackc/pgx/v5"
)

// RecordEvent is idempotent on event id, so redelivered messages are counted once.
func (r *repository) RecordEvent(ctx context.Context, e model.CirculationEvent) error {
	q := fmt.Sprintf(`
insert into %s (id, type, aggregate_id, book_id, member_id, occurred_at, payload)
values (@id, @type, @aggregate_id, @book_id, @member_id, @occurred_at, @payload)
on conflict (id) do nothing`, eventsTableName)
	var payload any
	if len(e.Payload) > 0 {
		payload = string(e.Payload)
	}
	args := pgx.NamedArgs{
		"id":           e.ID,
		"type":         e.Type,
		"aggregate_id": e.AggregateID,
		"book_id":      e.BookID,
		"member_id":    e.MemberID,
		"occurred_at":  e.OccurredAt,
		"payload":      payload,
	}
	if _, err := r.pool.Exec(ctx, q, args); err != nil {
		return fmt.Errorf("pool.Exec: %w", err)
	}
	return nil
}

func (r *repository) GetStats(ctx context.Context) (model.StatsInfo, error) {
	q := fmt.Sprintf(`
select type, count(*) as count, max(occurred_at) as last_event_at
from %s
group by type
order by type`, eventsTableName)
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return model.StatsInfo{}, fmt.Errorf("pool.Query: %w", err)
	}
	stats, err := pgx.CollectRows(rows, pgx.RowToStructByName[model.EventStat])
	if err != nil {
		return model.StatsInfo{}, fmt.Errorf("pgx.CollectRows: %w", err)
	}
	info := model.StatsInfo{Events: stats}
	for _, s := range stats {
		info.Total += s.Count
	}
	return info, nil
}
