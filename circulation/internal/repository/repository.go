package repository

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/Astemirdum/library-circulation/circulation/internal/errs"
	"github.com/Astemirdum/library-circulation/circulation/internal/model"
	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Tx is the set of locked reads and writes available inside one unit of work.
// Rows are locked in the order transaction, book, member, reservation.
type Tx interface {
	BookForUpdate(ctx context.Context, id uuid.UUID) (model.Book, error)
	InsertBook(ctx context.Context, b model.Book) error
	UpdateBook(ctx context.Context, b model.Book) error

	MemberForUpdate(ctx context.Context, id uuid.UUID) (model.Member, error)
	InsertMember(ctx context.Context, m model.Member) error
	UpdateMember(ctx context.Context, m model.Member) error

	TransactionForUpdate(ctx context.Context, id uuid.UUID) (model.Transaction, error)
	InsertTransaction(ctx context.Context, t model.Transaction) error
	UpdateTransaction(ctx context.Context, t model.Transaction) error

	FineForUpdate(ctx context.Context, id uuid.UUID) (model.Fine, error)
	InsertFine(ctx context.Context, f model.Fine) error
	UpdateFine(ctx context.Context, f model.Fine) error

	ReservationForUpdate(ctx context.Context, id uuid.UUID) (model.Reservation, error)
	// NextReservationForUpdate returns the head of the book's active queue, ok is false when the queue is empty.
	NextReservationForUpdate(ctx context.Context, bookID uuid.UUID) (r model.Reservation, ok bool, err error)
	InsertReservation(ctx context.Context, r model.Reservation) error
	UpdateReservation(ctx context.Context, r model.Reservation) error
	ExpireReservations(ctx context.Context, now time.Time) ([]model.Reservation, error)
}

// UnitOfWork commits every write made through tx atomically or none of them.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

type Reader interface {
	GetBook(ctx context.Context, id uuid.UUID) (model.Book, error)
	ListBooks(ctx context.Context, page model.PageRequest) ([]model.Book, int, error)
	GetMember(ctx context.Context, id uuid.UUID) (model.Member, error)
	GetTransaction(ctx context.Context, id uuid.UUID) (model.Transaction, error)
	ListTransactions(ctx context.Context, filter model.TransactionFilter, page model.PageRequest) ([]model.Transaction, int, error)
	GetFine(ctx context.Context, id uuid.UUID) (model.Fine, error)
	ListMemberFines(ctx context.Context, memberID uuid.UUID, page model.PageRequest) ([]model.Fine, int, error)
	GetReservation(ctx context.Context, id uuid.UUID) (model.Reservation, error)
	ListBookQueue(ctx context.Context, bookID uuid.UUID) ([]model.Reservation, error)
	HasActiveReservation(ctx context.Context, bookID, memberID uuid.UUID) (bool, error)
}

type Stats interface {
	RecordEvent(ctx context.Context, e model.CirculationEvent) error
	GetStats(ctx context.Context) (model.StatsInfo, error)
}

type Repository interface {
	UnitOfWork
	Reader
	Stats
}

type repository struct {
	pool *pgxpool.Pool
	db   *sqlx.DB
	log  *zap.Logger

	maxAttempts int
	baseDelay   time.Duration
}

func NewRepository(pool *pgxpool.Pool, db *sqlx.DB, log *zap.Logger) *repository {
	return &repository{
		pool:        pool,
		db:          db,
		log:         log.Named("repo"),
		maxAttempts: 5,
		baseDelay:   10 * time.Millisecond,
	}
}

const (
	bookTableName        = `book`
	memberTableName      = `member`
	transactionTableName = `transaction`
	fineTableName        = `fine`
	reservationTableName = `reservation`
	eventsTableName      = `circulation_events`
)

var qb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Do runs fn in a READ COMMITTED transaction. Serialization failures and deadlocks
// roll back and retry with exponential backoff; any other error is returned as is.
func (r *repository) Do(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	var err error
	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := r.baseDelay * time.Duration(1<<(attempt-1))
			delay += time.Duration(rand.Float64() * float64(delay) * 0.3) //nolint:gosec
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		err = pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
			return fn(ctx, &pgTx{tx: tx})
		})
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return mapPgError(err)
		}
		r.log.Warn("unit of work conflict", zap.Int("attempt", attempt+1), zap.Error(err))
	}
	return err
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
}

// mapPgError turns constraint violations into rule violations the caller can act on.
func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		return errs.RuleViolation(fmt.Sprintf("Duplicate value violates %s", pgErr.ConstraintName))
	case pgerrcode.CheckViolation:
		return errs.RuleViolation(fmt.Sprintf("Constraint %s violated", pgErr.ConstraintName))
	case pgerrcode.ForeignKeyViolation:
		return errs.NotFound("Referenced row not found (%s)", pgErr.ConstraintName)
	}
	return err
}

func joinColumns(cols []string) string {
	return strings.Join(cols, ", ")
}

type pgTx struct {
	tx pgx.Tx
}

func collectOne[T any](ctx context.Context, tx pgx.Tx, b sq.Sqlizer, entity string, id uuid.UUID) (T, error) {
	var zero T
	query, args, err := b.ToSql()
	if err != nil {
		return zero, err
	}
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return zero, errors.Wrap(err, "tx.Query")
	}
	item, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[T])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return zero, errs.NotFound("%s %s not found", entity, id)
		}
		return zero, errors.Wrap(err, "pgx.CollectOneRow")
	}
	return item, nil
}

func execOne(ctx context.Context, tx pgx.Tx, b sq.Sqlizer, entity string, id uuid.UUID) error {
	query, args, err := b.ToSql()
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.NotFound("%s %s not found", entity, id)
	}
	return nil
}

func getOne[T any](ctx context.Context, db *sqlx.DB, b sq.Sqlizer, entity string, id uuid.UUID) (T, error) {
	var item T
	query, args, err := b.ToSql()
	if err != nil {
		return item, err
	}
	if err := db.GetContext(ctx, &item, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return item, errs.NotFound("%s %s not found", entity, id)
		}
		return item, errors.Wrap(err, "db.GetContext")
	}
	return item, nil
}

// selectPage runs the paged select and the matching count over the same filter.
func selectPage[T any](ctx context.Context, db *sqlx.DB, table string, columns []string, where sq.Sqlizer, orderBy []string, page model.PageRequest) ([]T, int, error) {
	countQ, countArgs, err := qb.Select("count(*)").From(table).Where(where).ToSql()
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err := db.GetContext(ctx, &total, countQ, countArgs...); err != nil {
		return nil, 0, errors.Wrap(err, "count")
	}

	query, args, err := qb.Select(columns...).
		From(table).
		Where(where).
		OrderBy(orderBy...).
		Limit(uint64(page.PageSize)).
		Offset(uint64(page.Offset())).
		ToSql()
	if err != nil {
		return nil, 0, err
	}
	items := make([]T, 0, page.PageSize)
	if err := db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, errors.Wrap(err, "db.SelectContext")
	}
	return items, total, nil
}
