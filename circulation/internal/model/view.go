package model

import (
	"time"

	"github.com/google/uuid"
)

type TransactionView struct {
	Transaction
	BookTitle        string `json:"bookTitle"`
	BookISBN         string `json:"bookIsbn"`
	MemberName       string `json:"memberName"`
	MembershipNumber string `json:"membershipNumber"`
	DaysOverdue      int    `json:"daysOverdue"`
}

// NewTransactionView reports an active loan past due as OVERDUE without touching the stored row.
func NewTransactionView(t Transaction, b Book, m Member, now time.Time) TransactionView {
	v := TransactionView{
		Transaction:      t,
		BookTitle:        b.Title,
		BookISBN:         b.ISBN,
		MemberName:       m.FullName(),
		MembershipNumber: m.MembershipNumber,
	}
	if t.IsOverdue(now) {
		v.Status = TransactionOverdue
		v.DaysOverdue = DaysLate(t.DueDate, now)
	}
	return v
}

// DaysLate counts started 24h periods after due; zero when not late.
func DaysLate(due, now time.Time) int {
	late := now.Sub(due)
	if late <= 0 {
		return 0
	}
	days := int(late / (24 * time.Hour))
	if late%(24*time.Hour) != 0 {
		days++
	}
	return days
}

type TransactionFilter struct {
	MemberID     uuid.NullUUID
	BookID       uuid.NullUUID
	ActiveOnly   bool
	OverdueAfter *time.Time
}

type Page[T any] struct {
	Items      []T `json:"items"`
	TotalCount int `json:"totalCount"`
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
}

func NewPage[T any](items []T, total int, req PageRequest) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{Items: items, TotalCount: total, Page: req.Page, PageSize: req.PageSize}
}

type ExpireResponse struct {
	Expired int `json:"expired"`
}

type CirculationEvent struct {
	ID          uuid.UUID `db:"id"`
	Type        string    `db:"type"`
	AggregateID uuid.UUID `db:"aggregate_id"`
	BookID      uuid.UUID `db:"book_id"`
	MemberID    uuid.UUID `db:"member_id"`
	OccurredAt  time.Time `db:"occurred_at"`
	Payload     []byte    `db:"payload"`
}

type EventStat struct {
	Type        string    `json:"type" db:"type"`
	Count       int64     `json:"count" db:"count"`
	LastEventAt time.Time `json:"lastEventAt" db:"last_event_at"`
}

type StatsInfo struct {
	Total  int64       `json:"total"`
	Events []EventStat `json:"events"`
}
