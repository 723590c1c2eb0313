// Package memstore is an in-memory Repository. Units of work run one at a time
// against a copy of the state, which replaces the live state only on success.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Astemirdum/library-circulation/circulation/internal/errs"
	"github.com/Astemirdum/library-circulation/circulation/internal/model"
	"github.com/Astemirdum/library-circulation/circulation/internal/repository"
	"github.com/google/uuid"
)

type state struct {
	books        map[uuid.UUID]model.Book
	members      map[uuid.UUID]model.Member
	transactions map[uuid.UUID]model.Transaction
	fines        map[uuid.UUID]model.Fine
	reservations map[uuid.UUID]model.Reservation
}

func newState() state {
	return state{
		books:        map[uuid.UUID]model.Book{},
		members:      map[uuid.UUID]model.Member{},
		transactions: map[uuid.UUID]model.Transaction{},
		fines:        map[uuid.UUID]model.Fine{},
		reservations: map[uuid.UUID]model.Reservation{},
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// clone is shallow per row; rows are values and pointer fields are only ever replaced.
func (s state) clone() state {
	return state{
		books:        cloneMap(s.books),
		members:      cloneMap(s.members),
		transactions: cloneMap(s.transactions),
		fines:        cloneMap(s.fines),
		reservations: cloneMap(s.reservations),
	}
}

type Store struct {
	mu     sync.Mutex
	state  state
	events map[uuid.UUID]model.CirculationEvent
}

var _ repository.Repository = (*Store)(nil)

func New() *Store {
	return &Store{
		state:  newState(),
		events: map[uuid.UUID]model.CirculationEvent{},
	}
}

// Do must not call back into the Store's read methods from fn.
func (s *Store) Do(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &memTx{st: s.state.clone()}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	s.state = tx.st
	return nil
}

type memTx struct {
	st state
}

func notFound(entity string, id uuid.UUID) error {
	return errs.NotFound("%s %s not found", entity, id)
}

func violated(constraint string) error {
	return errs.RuleViolation(fmt.Sprintf("Constraint %s violated", constraint))
}

func checkBook(b model.Book) error {
	if b.TotalCopies < 0 || b.AvailableCopies < 0 || b.AvailableCopies > b.TotalCopies {
		return violated("book_available_le_total")
	}
	return nil
}

func checkMember(m model.Member) error {
	if m.CurrentBooksCount < 0 || m.CurrentBooksCount > m.MaxBooksAllowed {
		return violated("member_current_le_max")
	}
	if m.TotalFinesOwed.IsNegative() {
		return violated("member_total_fines_owed_check")
	}
	return nil
}

func (t *memTx) BookForUpdate(_ context.Context, id uuid.UUID) (model.Book, error) {
	b, ok := t.st.books[id]
	if !ok {
		return model.Book{}, notFound("Book", id)
	}
	return b, nil
}

func (t *memTx) InsertBook(_ context.Context, b model.Book) error {
	if err := checkBook(b); err != nil {
		return err
	}
	for _, existing := range t.st.books {
		if existing.ISBN == b.ISBN {
			return errs.RuleViolation("Duplicate value violates book_isbn_key")
		}
	}
	t.st.books[b.ID] = b
	return nil
}

func (t *memTx) UpdateBook(_ context.Context, b model.Book) error {
	cur, ok := t.st.books[b.ID]
	if !ok {
		return notFound("Book", b.ID)
	}
	cur.TotalCopies, cur.AvailableCopies, cur.Status = b.TotalCopies, b.AvailableCopies, b.Status
	if err := checkBook(cur); err != nil {
		return err
	}
	t.st.books[b.ID] = cur
	return nil
}

func (t *memTx) MemberForUpdate(_ context.Context, id uuid.UUID) (model.Member, error) {
	m, ok := t.st.members[id]
	if !ok {
		return model.Member{}, notFound("Member", id)
	}
	return m, nil
}

func (t *memTx) InsertMember(_ context.Context, m model.Member) error {
	if err := checkMember(m); err != nil {
		return err
	}
	for _, existing := range t.st.members {
		if existing.Email == m.Email {
			return errs.RuleViolation("Duplicate value violates member_email_key")
		}
	}
	t.st.members[m.ID] = m
	return nil
}

func (t *memTx) UpdateMember(_ context.Context, m model.Member) error {
	cur, ok := t.st.members[m.ID]
	if !ok {
		return notFound("Member", m.ID)
	}
	cur.Status, cur.CurrentBooksCount, cur.TotalFinesOwed = m.Status, m.CurrentBooksCount, m.TotalFinesOwed
	if err := checkMember(cur); err != nil {
		return err
	}
	t.st.members[m.ID] = cur
	return nil
}

func (t *memTx) TransactionForUpdate(_ context.Context, id uuid.UUID) (model.Transaction, error) {
	tr, ok := t.st.transactions[id]
	if !ok {
		return model.Transaction{}, notFound("Transaction", id)
	}
	return tr, nil
}

func (t *memTx) InsertTransaction(_ context.Context, tr model.Transaction) error {
	if _, ok := t.st.books[tr.BookID]; !ok {
		return errs.NotFound("Referenced row not found (transaction_book_id_fkey)")
	}
	if _, ok := t.st.members[tr.MemberID]; !ok {
		return errs.NotFound("Referenced row not found (transaction_member_id_fkey)")
	}
	t.st.transactions[tr.ID] = tr
	return nil
}

func (t *memTx) UpdateTransaction(_ context.Context, tr model.Transaction) error {
	cur, ok := t.st.transactions[tr.ID]
	if !ok {
		return notFound("Transaction", tr.ID)
	}
	cur.DueDate, cur.ReturnDate, cur.Status = tr.DueDate, tr.ReturnDate, tr.Status
	cur.RenewalCount, cur.FineAmount, cur.Notes = tr.RenewalCount, tr.FineAmount, tr.Notes
	t.st.transactions[tr.ID] = cur
	return nil
}

func (t *memTx) FineForUpdate(_ context.Context, id uuid.UUID) (model.Fine, error) {
	f, ok := t.st.fines[id]
	if !ok {
		return model.Fine{}, notFound("Fine", id)
	}
	return f, nil
}

func (t *memTx) InsertFine(_ context.Context, f model.Fine) error {
	if !f.Amount.IsPositive() {
		return violated("fine_amount_check")
	}
	t.st.fines[f.ID] = f
	return nil
}

func (t *memTx) UpdateFine(_ context.Context, f model.Fine) error {
	cur, ok := t.st.fines[f.ID]
	if !ok {
		return notFound("Fine", f.ID)
	}
	cur.Status, cur.PaidDate, cur.PaidAmount = f.Status, f.PaidDate, f.PaidAmount
	cur.PaymentMethod, cur.ReferenceNumber, cur.Notes = f.PaymentMethod, f.ReferenceNumber, f.Notes
	t.st.fines[f.ID] = cur
	return nil
}

func (t *memTx) ReservationForUpdate(_ context.Context, id uuid.UUID) (model.Reservation, error) {
	r, ok := t.st.reservations[id]
	if !ok {
		return model.Reservation{}, notFound("Reservation", id)
	}
	return r, nil
}

func (t *memTx) NextReservationForUpdate(_ context.Context, bookID uuid.UUID) (model.Reservation, bool, error) {
	queue := activeQueue(t.st, bookID)
	if len(queue) == 0 {
		return model.Reservation{}, false, nil
	}
	return queue[0], true, nil
}

func (t *memTx) InsertReservation(_ context.Context, r model.Reservation) error {
	if r.Priority < 1 || r.Priority > 10 {
		return violated("reservation_priority_check")
	}
	t.st.reservations[r.ID] = r
	return nil
}

func (t *memTx) UpdateReservation(_ context.Context, r model.Reservation) error {
	cur, ok := t.st.reservations[r.ID]
	if !ok {
		return notFound("Reservation", r.ID)
	}
	cur.Status, cur.NotifiedDate, cur.FulfilledDate = r.Status, r.NotifiedDate, r.FulfilledDate
	cur.Notes, cur.CancellationReason = r.Notes, r.CancellationReason
	t.st.reservations[r.ID] = cur
	return nil
}

func (t *memTx) ExpireReservations(_ context.Context, now time.Time) ([]model.Reservation, error) {
	expired := make([]model.Reservation, 0)
	for id, r := range t.st.reservations {
		if r.Status == model.ReservationActive && r.ExpiryDate.Before(now) {
			r.Status = model.ReservationExpired
			t.st.reservations[id] = r
			expired = append(expired, r)
		}
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i].ReservationDate.Before(expired[j].ReservationDate) })
	return expired, nil
}

func activeQueue(st state, bookID uuid.UUID) []model.Reservation {
	queue := make([]model.Reservation, 0)
	for _, r := range st.reservations {
		if r.BookID == bookID && r.Status == model.ReservationActive {
			queue = append(queue, r)
		}
	}
	sort.Slice(queue, func(i, j int) bool {
		a, b := queue[i], queue[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if !a.ReservationDate.Equal(b.ReservationDate) {
			return a.ReservationDate.Before(b.ReservationDate)
		}
		return a.ID.String() < b.ID.String()
	})
	return queue
}

func paginate[T any](items []T, page model.PageRequest) ([]T, int) {
	total := len(items)
	from := page.Offset()
	if from > total {
		from = total
	}
	to := from + page.PageSize
	if to > total {
		to = total
	}
	return items[from:to], total
}

func (s *Store) GetBook(_ context.Context, id uuid.UUID) (model.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.state.books[id]
	if !ok {
		return model.Book{}, notFound("Book", id)
	}
	return b, nil
}

func (s *Store) ListBooks(_ context.Context, page model.PageRequest) ([]model.Book, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	books := make([]model.Book, 0, len(s.state.books))
	for _, b := range s.state.books {
		books = append(books, b)
	}
	sort.Slice(books, func(i, j int) bool {
		if books[i].Title != books[j].Title {
			return books[i].Title < books[j].Title
		}
		return books[i].ID.String() < books[j].ID.String()
	})
	items, total := paginate(books, page)
	return items, total, nil
}

func (s *Store) GetMember(_ context.Context, id uuid.UUID) (model.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.state.members[id]
	if !ok {
		return model.Member{}, notFound("Member", id)
	}
	return m, nil
}

func (s *Store) GetTransaction(_ context.Context, id uuid.UUID) (model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tr, ok := s.state.transactions[id]
	if !ok {
		return model.Transaction{}, notFound("Transaction", id)
	}
	return tr, nil
}

func (s *Store) ListTransactions(_ context.Context, filter model.TransactionFilter, page model.PageRequest) ([]model.Transaction, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := make([]model.Transaction, 0)
	for _, tr := range s.state.transactions {
		if filter.MemberID.Valid && tr.MemberID != filter.MemberID.UUID {
			continue
		}
		if filter.BookID.Valid && tr.BookID != filter.BookID.UUID {
			continue
		}
		if (filter.ActiveOnly || filter.OverdueAfter != nil) && tr.Status != model.TransactionActive {
			continue
		}
		if filter.OverdueAfter != nil && !tr.DueDate.Before(*filter.OverdueAfter) {
			continue
		}
		list = append(list, tr)
	}
	byDue := filter.OverdueAfter != nil
	sort.Slice(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if byDue && !a.DueDate.Equal(b.DueDate) {
			return a.DueDate.Before(b.DueDate)
		}
		if !byDue && !a.CheckoutDate.Equal(b.CheckoutDate) {
			return a.CheckoutDate.After(b.CheckoutDate)
		}
		return a.ID.String() < b.ID.String()
	})
	items, total := paginate(list, page)
	return items, total, nil
}

func (s *Store) GetFine(_ context.Context, id uuid.UUID) (model.Fine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.state.fines[id]
	if !ok {
		return model.Fine{}, notFound("Fine", id)
	}
	return f, nil
}

func (s *Store) ListMemberFines(_ context.Context, memberID uuid.UUID, page model.PageRequest) ([]model.Fine, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := make([]model.Fine, 0)
	for _, f := range s.state.fines {
		if f.MemberID == memberID {
			list = append(list, f)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].IssueDate.Equal(list[j].IssueDate) {
			return list[i].IssueDate.After(list[j].IssueDate)
		}
		return list[i].ID.String() < list[j].ID.String()
	})
	items, total := paginate(list, page)
	return items, total, nil
}

func (s *Store) GetReservation(_ context.Context, id uuid.UUID) (model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.state.reservations[id]
	if !ok {
		return model.Reservation{}, notFound("Reservation", id)
	}
	return r, nil
}

func (s *Store) ListBookQueue(_ context.Context, bookID uuid.UUID) ([]model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return activeQueue(s.state, bookID), nil
}

func (s *Store) HasActiveReservation(_ context.Context, bookID, memberID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.state.reservations {
		if r.BookID == bookID && r.MemberID == memberID && r.Status == model.ReservationActive {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) RecordEvent(_ context.Context, e model.CirculationEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[e.ID]; !ok {
		s.events[e.ID] = e
	}
	return nil
}

func (s *Store) GetStats(_ context.Context) (model.StatsInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byType := map[string]*model.EventStat{}
	for _, e := range s.events {
		st, ok := byType[e.Type]
		if !ok {
			st = &model.EventStat{Type: e.Type}
			byType[e.Type] = st
		}
		st.Count++
		if e.OccurredAt.After(st.LastEventAt) {
			st.LastEventAt = e.OccurredAt
		}
	}
	info := model.StatsInfo{Events: make([]model.EventStat, 0, len(byType))}
	for _, st := range byType {
		info.Events = append(info.Events, *st)
		info.Total += st.Count
	}
	sort.Slice(info.Events, func(i, j int) bool { return info.Events[i].Type < info.Events[j].Type })
	return info, nil
}

// Snapshot returns every book and member, for invariant checks in tests.
func (s *Store) Snapshot() ([]model.Book, []model.Member) {
	s.mu.Lock()
	defer s.mu.Unlock()
	books := make([]model.Book, 0, len(s.state.books))
	for _, b := range s.state.books {
		books = append(books, b)
	}
	members := make([]model.Member, 0, len(s.state.members))
	for _, m := range s.state.members {
		members = append(members, m)
	}
	return books, members
}
