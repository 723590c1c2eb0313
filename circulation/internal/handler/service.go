package handler

import (
	"context"

	"github.com/Astemirdum/library-circulation/circulation/internal/model"
	"github.com/Astemirdum/library-circulation/circulation/internal/service"
	"github.com/Astemirdum/library-circulation/pkg/kafka"
	"github.com/google/uuid"
)

//go:generate go run github.com/golang/mock/mockgen -source=service.go -destination=mocks/mock.go

type TransactionService interface {
	BorrowBook(ctx context.Context, req model.BorrowRequest) (model.TransactionView, error)
	ReturnBook(ctx context.Context, req model.ReturnRequest) (model.TransactionView, error)
	RenewBook(ctx context.Context, req model.RenewRequest) (model.TransactionView, error)
	GetTransaction(ctx context.Context, id uuid.UUID) (model.TransactionView, error)
	ListMemberTransactions(ctx context.Context, memberID uuid.UUID, page model.PageRequest) (model.Page[model.TransactionView], error)
	ListBookTransactions(ctx context.Context, bookID uuid.UUID, page model.PageRequest) (model.Page[model.TransactionView], error)
	ListOverdue(ctx context.Context, page model.PageRequest) (model.Page[model.TransactionView], error)
	ListActive(ctx context.Context, page model.PageRequest) (model.Page[model.TransactionView], error)
}

type FineService interface {
	PayFine(ctx context.Context, req model.PayFineRequest) (model.Fine, error)
	WaiveFine(ctx context.Context, req model.WaiveFineRequest) (model.Fine, error)
	IssueFine(ctx context.Context, req model.IssueFineRequest) (model.Fine, error)
	GetFine(ctx context.Context, id uuid.UUID) (model.Fine, error)
	ListMemberFines(ctx context.Context, memberID uuid.UUID, page model.PageRequest) (model.Page[model.Fine], error)
}

type ReservationService interface {
	CreateReservation(ctx context.Context, req model.CreateReservationRequest) (model.Reservation, error)
	HasActiveReservation(ctx context.Context, bookID, memberID uuid.UUID) (bool, error)
	CancelReservation(ctx context.Context, req model.CancelReservationRequest) error
	FulfillReservation(ctx context.Context, id uuid.UUID) error
	ListBookQueue(ctx context.Context, bookID uuid.UUID) ([]model.Reservation, error)
	ExpireReservations(ctx context.Context) (int, error)
}

type CatalogService interface {
	CreateBook(ctx context.Context, req model.CreateBookRequest) (model.Book, error)
	GetBook(ctx context.Context, id uuid.UUID) (model.Book, error)
	ListBooks(ctx context.Context, page model.PageRequest) (model.Page[model.Book], error)
	CreateMember(ctx context.Context, req model.CreateMemberRequest) (model.Member, error)
	GetMember(ctx context.Context, id uuid.UUID) (model.Member, error)
}

type StatsService interface {
	GetStats(ctx context.Context) (model.StatsInfo, error)
	RecordEvent(ctx context.Context, e kafka.Event) error
}

var (
	_ TransactionService = (*service.Service)(nil)
	_ FineService        = (*service.Service)(nil)
	_ ReservationService = (*service.Service)(nil)
	_ CatalogService     = (*service.Service)(nil)
	_ StatsService       = (*service.Service)(nil)
)
