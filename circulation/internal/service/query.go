package service

import (
	"context"
	"sync"
	"time"

	"github.com/Astemirdum/library-circulation/circulation/internal/model"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const composeLimit = 8

// transactionView reads the book and member after commit and joins them onto txn.
func (s *Service) transactionView(ctx context.Context, txn model.Transaction, now time.Time) (model.TransactionView, error) {
	var (
		book   model.Book
		member model.Member
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		book, err = s.repo.GetBook(gctx, txn.BookID)
		return err
	})
	g.Go(func() (err error) {
		member, err = s.repo.GetMember(gctx, txn.MemberID)
		return err
	})
	if err := g.Wait(); err != nil {
		return model.TransactionView{}, err
	}
	return model.NewTransactionView(txn, book, member, now), nil
}

func (s *Service) transactionViews(ctx context.Context, txns []model.Transaction, now time.Time) ([]model.TransactionView, error) {
	var (
		mu      sync.Mutex
		books   = map[uuid.UUID]model.Book{}
		members = map[uuid.UUID]model.Member{}
	)
	bookIDs := map[uuid.UUID]struct{}{}
	memberIDs := map[uuid.UUID]struct{}{}
	for _, t := range txns {
		bookIDs[t.BookID] = struct{}{}
		memberIDs[t.MemberID] = struct{}{}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(composeLimit)
	for id := range bookIDs {
		g.Go(func() error {
			b, err := s.repo.GetBook(gctx, id)
			if err != nil {
				return err
			}
			mu.Lock()
			books[id] = b
			mu.Unlock()
			return nil
		})
	}
	for id := range memberIDs {
		g.Go(func() error {
			m, err := s.repo.GetMember(gctx, id)
			if err != nil {
				return err
			}
			mu.Lock()
			members[id] = m
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	views := make([]model.TransactionView, 0, len(txns))
	for _, t := range txns {
		views = append(views, model.NewTransactionView(t, books[t.BookID], members[t.MemberID], now))
	}
	return views, nil
}

func (s *Service) GetTransaction(ctx context.Context, id uuid.UUID) (model.TransactionView, error) {
	txn, err := s.repo.GetTransaction(ctx, id)
	if err != nil {
		return model.TransactionView{}, err
	}
	return s.transactionView(ctx, txn, s.clock.Now())
}

func (s *Service) listTransactions(ctx context.Context, filter model.TransactionFilter, page model.PageRequest, now time.Time) (model.Page[model.TransactionView], error) {
	page = page.Normalize()
	txns, total, err := s.repo.ListTransactions(ctx, filter, page)
	if err != nil {
		return model.Page[model.TransactionView]{}, err
	}
	views, err := s.transactionViews(ctx, txns, now)
	if err != nil {
		return model.Page[model.TransactionView]{}, err
	}
	return model.NewPage(views, total, page), nil
}

func (s *Service) ListMemberTransactions(ctx context.Context, memberID uuid.UUID, page model.PageRequest) (model.Page[model.TransactionView], error) {
	filter := model.TransactionFilter{MemberID: uuid.NullUUID{UUID: memberID, Valid: true}}
	return s.listTransactions(ctx, filter, page, s.clock.Now())
}

func (s *Service) ListBookTransactions(ctx context.Context, bookID uuid.UUID, page model.PageRequest) (model.Page[model.TransactionView], error) {
	filter := model.TransactionFilter{BookID: uuid.NullUUID{UUID: bookID, Valid: true}}
	return s.listTransactions(ctx, filter, page, s.clock.Now())
}

// ListOverdue lists active loans whose due date has passed.
func (s *Service) ListOverdue(ctx context.Context, page model.PageRequest) (model.Page[model.TransactionView], error) {
	now := s.clock.Now()
	return s.listTransactions(ctx, model.TransactionFilter{OverdueAfter: &now}, page, now)
}

func (s *Service) ListActive(ctx context.Context, page model.PageRequest) (model.Page[model.TransactionView], error) {
	return s.listTransactions(ctx, model.TransactionFilter{ActiveOnly: true}, page, s.clock.Now())
}
