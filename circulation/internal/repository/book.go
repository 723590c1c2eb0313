package repository

import (
	"context"

	"github.com/Astemirdum/library-circulation/circulation/internal/model"
	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

var bookColumns = []string{"id", "isbn", "title", "author", "category_id", "total_copies", "available_copies", "status"}

func (t *pgTx) BookForUpdate(ctx context.Context, id uuid.UUID) (model.Book, error) {
	b := qb.Select(bookColumns...).
		From(bookTableName).
		Where(sq.Eq{"id": id}).
		Suffix("FOR UPDATE")
	return collectOne[model.Book](ctx, t.tx, b, "Book", id)
}

func (t *pgTx) InsertBook(ctx context.Context, b model.Book) error {
	query, args, err := qb.Insert(bookTableName).
		Columns(bookColumns...).
		Values(b.ID, b.ISBN, b.Title, b.Author, b.CategoryID, b.TotalCopies, b.AvailableCopies, b.Status).
		ToSql()
	if err != nil {
		return err
	}
	_, err = t.tx.Exec(ctx, query, args...)
	return err
}

func (t *pgTx) UpdateBook(ctx context.Context, b model.Book) error {
	u := qb.Update(bookTableName).
		SetMap(map[string]any{
			"total_copies":     b.TotalCopies,
			"available_copies": b.AvailableCopies,
			"status":           b.Status,
		}).
		Where(sq.Eq{"id": b.ID})
	return execOne(ctx, t.tx, u, "Book", b.ID)
}

func (r *repository) GetBook(ctx context.Context, id uuid.UUID) (model.Book, error) {
	b := qb.Select(bookColumns...).From(bookTableName).Where(sq.Eq{"id": id})
	return getOne[model.Book](ctx, r.db, b, "Book", id)
}

func (r *repository) ListBooks(ctx context.Context, page model.PageRequest) ([]model.Book, int, error) {
	return selectPage[model.Book](ctx, r.db, bookTableName, bookColumns, sq.And{}, []string{"title", "id"}, page)
}
