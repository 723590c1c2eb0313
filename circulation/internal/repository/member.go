package repository

import (
	"context"

	"github.com/Astemirdum/library-circulation/circulation/internal/model"
	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

var memberColumns = []string{
	"id", "membership_number", "first_name", "last_name", "email", "status",
	"max_books_allowed", "current_books_count", "total_fines_owed", "max_fine_limit",
}

func (t *pgTx) MemberForUpdate(ctx context.Context, id uuid.UUID) (model.Member, error) {
	b := qb.Select(memberColumns...).
		From(memberTableName).
		Where(sq.Eq{"id": id}).
		Suffix("FOR UPDATE")
	return collectOne[model.Member](ctx, t.tx, b, "Member", id)
}

func (t *pgTx) InsertMember(ctx context.Context, m model.Member) error {
	query, args, err := qb.Insert(memberTableName).
		Columns(memberColumns...).
		Values(m.ID, m.MembershipNumber, m.FirstName, m.LastName, m.Email, m.Status,
			m.MaxBooksAllowed, m.CurrentBooksCount, m.TotalFinesOwed, m.MaxFineLimit).
		ToSql()
	if err != nil {
		return err
	}
	_, err = t.tx.Exec(ctx, query, args...)
	return err
}

func (t *pgTx) UpdateMember(ctx context.Context, m model.Member) error {
	u := qb.Update(memberTableName).
		SetMap(map[string]any{
			"status":              m.Status,
			"current_books_count": m.CurrentBooksCount,
			"total_fines_owed":    m.TotalFinesOwed,
		}).
		Where(sq.Eq{"id": m.ID})
	return execOne(ctx, t.tx, u, "Member", m.ID)
}

func (r *repository) GetMember(ctx context.Context, id uuid.UUID) (model.Member, error) {
	b := qb.Select(memberColumns...).From(memberTableName).Where(sq.Eq{"id": id})
	return getOne[model.Member](ctx, r.db, b, "Member", id)
}
