package service

import (
	"context"

	"github.com/Astemirdum/library-circulation/circulation/internal/model"
	"github.com/Astemirdum/library-circulation/circulation/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const defaultMaxBooks = 5

var defaultMaxFineLimit = decimal.NewFromInt(50)

func (s *Service) CreateBook(ctx context.Context, req model.CreateBookRequest) (model.Book, error) {
	book := model.Book{
		ID:              s.ids.NewID(),
		ISBN:            req.ISBN,
		Title:           req.Title,
		Author:          req.Author,
		TotalCopies:     req.TotalCopies,
		AvailableCopies: req.TotalCopies,
	}
	if req.CategoryID != nil {
		book.CategoryID = uuid.NullUUID{UUID: *req.CategoryID, Valid: true}
	}
	book.SyncStatus()
	err := s.repo.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		return tx.InsertBook(ctx, book)
	})
	if err != nil {
		return model.Book{}, err
	}
	return book, nil
}

func (s *Service) GetBook(ctx context.Context, id uuid.UUID) (model.Book, error) {
	return s.repo.GetBook(ctx, id)
}

func (s *Service) ListBooks(ctx context.Context, page model.PageRequest) (model.Page[model.Book], error) {
	page = page.Normalize()
	items, total, err := s.repo.ListBooks(ctx, page)
	if err != nil {
		return model.Page[model.Book]{}, err
	}
	return model.NewPage(items, total, page), nil
}

func (s *Service) CreateMember(ctx context.Context, req model.CreateMemberRequest) (model.Member, error) {
	member := model.Member{
		ID:               s.ids.NewID(),
		MembershipNumber: s.ids.Number(PrefixMember, s.clock.Now()),
		FirstName:        req.FirstName,
		LastName:         req.LastName,
		Email:            req.Email,
		Status:           model.MemberActive,
		MaxBooksAllowed:  req.MaxBooksAllowed,
		TotalFinesOwed:   decimal.Zero,
		MaxFineLimit:     req.MaxFineLimit,
	}
	if member.MaxBooksAllowed == 0 {
		member.MaxBooksAllowed = defaultMaxBooks
	}
	if member.MaxFineLimit.IsZero() {
		member.MaxFineLimit = defaultMaxFineLimit
	}
	err := s.repo.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		return tx.InsertMember(ctx, member)
	})
	if err != nil {
		return model.Member{}, err
	}
	return member, nil
}

func (s *Service) GetMember(ctx context.Context, id uuid.UUID) (model.Member, error) {
	return s.repo.GetMember(ctx, id)
}
