package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/Astemirdum/library-circulation/circulation/internal/errs"
	"github.com/Astemirdum/library-circulation/circulation/internal/model"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type circulationMachine struct {
	e            *env
	books        []model.Book
	members      []model.Member
	loans        []uuid.UUID
	reservations []uuid.UUID
	fines        []uuid.UUID
}

func newCirculationMachine(t *rapid.T) *circulationMachine {
	m := &circulationMachine{e: newEnv(t)}
	for i := 0; i < 3; i++ {
		m.books = append(m.books, m.e.book(t, rapid.IntRange(1, 3).Draw(t, "copies")))
		m.members = append(m.members, m.e.member(t, rapid.IntRange(1, 3).Draw(t, "maxBooks"), "5.00"))
	}
	return m
}

// expected fails the run on anything but a precondition failure the caller could see.
func (m *circulationMachine) expected(t *rapid.T, err error) {
	if err == nil {
		return
	}
	kind := errs.KindOf(err)
	if kind != errs.KindNotFound && kind != errs.KindRuleViolation {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.HasPrefix(err.Error(), "Constraint") {
		t.Fatalf("store constraint reached: %v", err)
	}
}

func (m *circulationMachine) borrow(t *rapid.T) {
	b := rapid.SampledFrom(m.books).Draw(t, "book")
	mem := rapid.SampledFrom(m.members).Draw(t, "member")
	v, err := m.e.svc.BorrowBook(context.Background(), model.BorrowRequest{BookID: b.ID, MemberID: mem.ID})
	m.expected(t, err)
	if err == nil {
		m.loans = append(m.loans, v.ID)
	}
}

func (m *circulationMachine) returnBook(t *rapid.T) {
	if len(m.loans) == 0 {
		t.Skip("no loans")
	}
	id := rapid.SampledFrom(m.loans).Draw(t, "loan")
	_, err := m.e.svc.ReturnBook(context.Background(), model.ReturnRequest{TransactionID: id})
	m.expected(t, err)
}

func (m *circulationMachine) renew(t *rapid.T) {
	if len(m.loans) == 0 {
		t.Skip("no loans")
	}
	id := rapid.SampledFrom(m.loans).Draw(t, "loan")
	n := rapid.IntRange(1, 30).Draw(t, "days")
	_, err := m.e.svc.RenewBook(context.Background(), model.RenewRequest{TransactionID: id, AdditionalDays: &n})
	m.expected(t, err)
}

func (m *circulationMachine) reserve(t *rapid.T) {
	b := rapid.SampledFrom(m.books).Draw(t, "book")
	mem := rapid.SampledFrom(m.members).Draw(t, "member")
	p := rapid.IntRange(1, 10).Draw(t, "priority")
	r, err := m.e.svc.CreateReservation(context.Background(), model.CreateReservationRequest{BookID: b.ID, MemberID: mem.ID, Priority: &p})
	m.expected(t, err)
	if err == nil {
		m.reservations = append(m.reservations, r.ID)
	}
}

func (m *circulationMachine) fulfill(t *rapid.T) {
	if len(m.reservations) == 0 {
		t.Skip("no reservations")
	}
	id := rapid.SampledFrom(m.reservations).Draw(t, "reservation")
	m.expected(t, m.e.svc.FulfillReservation(context.Background(), id))
}

func (m *circulationMachine) advance(t *rapid.T) {
	m.e.clock.Advance(time.Duration(rapid.IntRange(1, 20*24).Draw(t, "hours")) * time.Hour)
}

func (m *circulationMachine) pay(t *rapid.T) {
	ctx := context.Background()
	mem := rapid.SampledFrom(m.members).Draw(t, "member")
	fines, err := m.e.svc.ListMemberFines(ctx, mem.ID, model.PageRequest{PageSize: model.MaxPageSize})
	require.NoError(t, err)
	if len(fines.Items) == 0 {
		t.Skip("no fines")
	}
	f := rapid.SampledFrom(fines.Items).Draw(t, "fine")
	cents := rapid.Int64Range(1, 1000).Draw(t, "cents")
	_, err = m.e.svc.PayFine(ctx, model.PayFineRequest{FineID: f.ID, Amount: decimal.New(cents, -2), PaymentMethod: "CASH"})
	m.expected(t, err)
}

func (m *circulationMachine) check(t *rapid.T) {
	ctx := context.Background()
	books, members := m.e.store.Snapshot()
	all := model.PageRequest{Page: 1, PageSize: model.MaxPageSize}
	for _, b := range books {
		require.GreaterOrEqual(t, b.AvailableCopies, 0)
		require.LessOrEqual(t, b.AvailableCopies, b.TotalCopies)
		_, active, err := m.e.store.ListTransactions(ctx, model.TransactionFilter{
			BookID: uuid.NullUUID{UUID: b.ID, Valid: true}, ActiveOnly: true,
		}, all)
		require.NoError(t, err)
		require.Equal(t, b.TotalCopies-b.AvailableCopies, active, "copies out for %s", b.ID)
	}
	for _, mem := range members {
		require.GreaterOrEqual(t, mem.CurrentBooksCount, 0)
		require.LessOrEqual(t, mem.CurrentBooksCount, mem.MaxBooksAllowed)
		require.False(t, mem.TotalFinesOwed.IsNegative())
		require.True(t, mem.TotalFinesOwed.LessThanOrEqual(mem.MaxFineLimit), "owed %s over limit", mem.TotalFinesOwed)
		_, active, err := m.e.store.ListTransactions(ctx, model.TransactionFilter{
			MemberID: uuid.NullUUID{UUID: mem.ID, Valid: true}, ActiveOnly: true,
		}, all)
		require.NoError(t, err)
		require.Equal(t, mem.CurrentBooksCount, active, "loans for %s", mem.ID)
	}
}

func TestCirculationInvariants(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		m := newCirculationMachine(t)
		t.Repeat(map[string]func(*rapid.T){
			"borrow":  m.borrow,
			"return":  m.returnBook,
			"renew":   m.renew,
			"reserve": m.reserve,
			"fulfill": m.fulfill,
			"advance": m.advance,
			"pay":     m.pay,
			"":        m.check,
		})
	})
}
