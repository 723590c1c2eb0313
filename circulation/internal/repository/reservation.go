package repository

import (
	"context"
	"time"

	"github.com/Astemirdum/library-circulation/circulation/internal/model"
	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

var reservationColumns = []string{
	"id", "reservation_number", "book_id", "member_id", "reservation_date", "expiry_date", "status",
	"priority", "notified_date", "fulfilled_date", "notes", "cancellation_reason",
}

var queueOrder = []string{"priority DESC", "reservation_date", "id"}

func (t *pgTx) ReservationForUpdate(ctx context.Context, id uuid.UUID) (model.Reservation, error) {
	b := qb.Select(reservationColumns...).
		From(reservationTableName).
		Where(sq.Eq{"id": id}).
		Suffix("FOR UPDATE")
	return collectOne[model.Reservation](ctx, t.tx, b, "Reservation", id)
}

func (t *pgTx) NextReservationForUpdate(ctx context.Context, bookID uuid.UUID) (model.Reservation, bool, error) {
	query, args, err := qb.Select(reservationColumns...).
		From(reservationTableName).
		Where(sq.Eq{"book_id": bookID, "status": model.ReservationActive}).
		OrderBy(queueOrder...).
		Limit(1).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return model.Reservation{}, false, err
	}
	rows, err := t.tx.Query(ctx, query, args...)
	if err != nil {
		return model.Reservation{}, false, errors.Wrap(err, "tx.Query")
	}
	res, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Reservation])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Reservation{}, false, nil
		}
		return model.Reservation{}, false, errors.Wrap(err, "pgx.CollectOneRow")
	}
	return res, true, nil
}

func (t *pgTx) InsertReservation(ctx context.Context, r model.Reservation) error {
	query, args, err := qb.Insert(reservationTableName).
		Columns(reservationColumns...).
		Values(r.ID, r.ReservationNumber, r.BookID, r.MemberID, r.ReservationDate, r.ExpiryDate, r.Status,
			r.Priority, r.NotifiedDate, r.FulfilledDate, r.Notes, r.CancellationReason).
		ToSql()
	if err != nil {
		return err
	}
	_, err = t.tx.Exec(ctx, query, args...)
	return err
}

func (t *pgTx) UpdateReservation(ctx context.Context, r model.Reservation) error {
	u := qb.Update(reservationTableName).
		SetMap(map[string]any{
			"status":              r.Status,
			"notified_date":       r.NotifiedDate,
			"fulfilled_date":      r.FulfilledDate,
			"notes":               r.Notes,
			"cancellation_reason": r.CancellationReason,
		}).
		Where(sq.Eq{"id": r.ID})
	return execOne(ctx, t.tx, u, "Reservation", r.ID)
}

func (t *pgTx) ExpireReservations(ctx context.Context, now time.Time) ([]model.Reservation, error) {
	query, args, err := qb.Update(reservationTableName).
		Set("status", model.ReservationExpired).
		Where(sq.Eq{"status": model.ReservationActive}).
		Where(sq.Lt{"expiry_date": now}).
		Suffix("RETURNING " + joinColumns(reservationColumns)).
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := t.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "tx.Query")
	}
	expired, err := pgx.CollectRows(rows, pgx.RowToStructByName[model.Reservation])
	if err != nil {
		return nil, errors.Wrap(err, "pgx.CollectRows")
	}
	return expired, nil
}

func (r *repository) GetReservation(ctx context.Context, id uuid.UUID) (model.Reservation, error) {
	b := qb.Select(reservationColumns...).From(reservationTableName).Where(sq.Eq{"id": id})
	return getOne[model.Reservation](ctx, r.db, b, "Reservation", id)
}

func (r *repository) ListBookQueue(ctx context.Context, bookID uuid.UUID) ([]model.Reservation, error) {
	query, args, err := qb.Select(reservationColumns...).
		From(reservationTableName).
		Where(sq.Eq{"book_id": bookID, "status": model.ReservationActive}).
		OrderBy(queueOrder...).
		ToSql()
	if err != nil {
		return nil, err
	}
	queue := make([]model.Reservation, 0)
	if err := r.db.SelectContext(ctx, &queue, query, args...); err != nil {
		return nil, errors.Wrap(err, "db.SelectContext")
	}
	return queue, nil
}

func (r *repository) HasActiveReservation(ctx context.Context, bookID, memberID uuid.UUID) (bool, error) {
	query, args, err := qb.Select("1").
		Prefix("SELECT EXISTS (").
		From(reservationTableName).
		Where(sq.Eq{"book_id": bookID, "member_id": memberID, "status": model.ReservationActive}).
		Suffix(")").
		ToSql()
	if err != nil {
		return false, err
	}
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, args...); err != nil {
		return false, errors.Wrap(err, "db.GetContext")
	}
	return exists, nil
}
