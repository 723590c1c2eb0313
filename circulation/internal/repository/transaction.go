package repository

import (
	"context"

	"github.com/Astemirdum/library-circulation/circulation/internal/model"
	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

var transactionColumns = []string{
	"id", "transaction_number", "book_id", "member_id", "type", "checkout_date", "due_date",
	"return_date", "status", "renewal_count", "max_renewals_allowed", "fine_amount", "notes",
}

func (t *pgTx) TransactionForUpdate(ctx context.Context, id uuid.UUID) (model.Transaction, error) {
	b := qb.Select(transactionColumns...).
		From(transactionTableName).
		Where(sq.Eq{"id": id}).
		Suffix("FOR UPDATE")
	return collectOne[model.Transaction](ctx, t.tx, b, "Transaction", id)
}

func (t *pgTx) InsertTransaction(ctx context.Context, tr model.Transaction) error {
	query, args, err := qb.Insert(transactionTableName).
		Columns(transactionColumns...).
		Values(tr.ID, tr.TransactionNumber, tr.BookID, tr.MemberID, tr.Type, tr.CheckoutDate, tr.DueDate,
			tr.ReturnDate, tr.Status, tr.RenewalCount, tr.MaxRenewalsAllowed, tr.FineAmount, tr.Notes).
		ToSql()
	if err != nil {
		return err
	}
	_, err = t.tx.Exec(ctx, query, args...)
	return err
}

func (t *pgTx) UpdateTransaction(ctx context.Context, tr model.Transaction) error {
	u := qb.Update(transactionTableName).
		SetMap(map[string]any{
			"due_date":      tr.DueDate,
			"return_date":   tr.ReturnDate,
			"status":        tr.Status,
			"renewal_count": tr.RenewalCount,
			"fine_amount":   tr.FineAmount,
			"notes":         tr.Notes,
		}).
		Where(sq.Eq{"id": tr.ID})
	return execOne(ctx, t.tx, u, "Transaction", tr.ID)
}

func (r *repository) GetTransaction(ctx context.Context, id uuid.UUID) (model.Transaction, error) {
	b := qb.Select(transactionColumns...).From(transactionTableName).Where(sq.Eq{"id": id})
	return getOne[model.Transaction](ctx, r.db, b, "Transaction", id)
}

func (r *repository) ListTransactions(ctx context.Context, filter model.TransactionFilter, page model.PageRequest) ([]model.Transaction, int, error) {
	where := sq.And{}
	if filter.MemberID.Valid {
		where = append(where, sq.Eq{"member_id": filter.MemberID.UUID})
	}
	if filter.BookID.Valid {
		where = append(where, sq.Eq{"book_id": filter.BookID.UUID})
	}
	if filter.ActiveOnly || filter.OverdueAfter != nil {
		where = append(where, sq.Eq{"status": model.TransactionActive})
	}
	if filter.OverdueAfter != nil {
		where = append(where, sq.Lt{"due_date": *filter.OverdueAfter})
	}
	order := []string{"checkout_date DESC", "id"}
	if filter.OverdueAfter != nil {
		order = []string{"due_date", "id"}
	}
	return selectPage[model.Transaction](ctx, r.db, transactionTableName, transactionColumns, where, order, page)
}
