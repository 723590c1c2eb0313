package repository

import (
	"context"

	"github.com/Astemirdum/library-circulation/circulation/internal/model"
	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

var fineColumns = []string{
	"id", "fine_number", "transaction_id", "member_id", "type", "amount", "issue_date", "due_date",
	"status", "paid_date", "paid_amount", "payment_method", "reference_number", "notes",
}

func (t *pgTx) FineForUpdate(ctx context.Context, id uuid.UUID) (model.Fine, error) {
	b := qb.Select(fineColumns...).
		From(fineTableName).
		Where(sq.Eq{"id": id}).
		Suffix("FOR UPDATE")
	return collectOne[model.Fine](ctx, t.tx, b, "Fine", id)
}

func (t *pgTx) InsertFine(ctx context.Context, f model.Fine) error {
	query, args, err := qb.Insert(fineTableName).
		Columns(fineColumns...).
		Values(f.ID, f.FineNumber, f.TransactionID, f.MemberID, f.Type, f.Amount, f.IssueDate, f.DueDate,
			f.Status, f.PaidDate, f.PaidAmount, f.PaymentMethod, f.ReferenceNumber, f.Notes).
		ToSql()
	if err != nil {
		return err
	}
	_, err = t.tx.Exec(ctx, query, args...)
	return err
}

func (t *pgTx) UpdateFine(ctx context.Context, f model.Fine) error {
	u := qb.Update(fineTableName).
		SetMap(map[string]any{
			"status":           f.Status,
			"paid_date":        f.PaidDate,
			"paid_amount":      f.PaidAmount,
			"payment_method":   f.PaymentMethod,
			"reference_number": f.ReferenceNumber,
			"notes":            f.Notes,
		}).
		Where(sq.Eq{"id": f.ID})
	return execOne(ctx, t.tx, u, "Fine", f.ID)
}

func (r *repository) GetFine(ctx context.Context, id uuid.UUID) (model.Fine, error) {
	b := qb.Select(fineColumns...).From(fineTableName).Where(sq.Eq{"id": id})
	return getOne[model.Fine](ctx, r.db, b, "Fine", id)
}

func (r *repository) ListMemberFines(ctx context.Context, memberID uuid.UUID, page model.PageRequest) ([]model.Fine, int, error) {
	return selectPage[model.Fine](ctx, r.db, fineTableName, fineColumns,
		sq.Eq{"member_id": memberID}, []string{"issue_date DESC", "id"}, page)
}
