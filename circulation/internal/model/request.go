package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type BorrowRequest struct {
	BookID   uuid.UUID `json:"bookId" validate:"required"`
	MemberID uuid.UUID `json:"memberId" validate:"required"`
	Days     *int      `json:"days,omitempty" validate:"omitempty,min=1,max=90"`
	Notes    string    `json:"notes,omitempty" validate:"max=1000"`
}

type ReturnRequest struct {
	TransactionID uuid.UUID `json:"transactionId" validate:"required"`
	Notes         string    `json:"notes,omitempty" validate:"max=1000"`
}

type RenewRequest struct {
	TransactionID  uuid.UUID `json:"transactionId" validate:"required"`
	AdditionalDays *int      `json:"additionalDays,omitempty" validate:"omitempty,min=1,max=30"`
	Notes          string    `json:"notes,omitempty" validate:"max=1000"`
}

type PayFineRequest struct {
	FineID          uuid.UUID       `json:"fineId" validate:"required"`
	Amount          decimal.Decimal `json:"amount"`
	PaymentMethod   string          `json:"paymentMethod" validate:"required,max=50"`
	ReferenceNumber string          `json:"referenceNumber,omitempty" validate:"max=100"`
	Notes           string          `json:"notes,omitempty" validate:"max=1000"`
}

type WaiveFineRequest struct {
	FineID uuid.UUID `json:"fineId" validate:"required"`
	Reason string    `json:"reason" validate:"required,max=500"`
	Notes  string    `json:"notes,omitempty" validate:"max=1000"`
}

type IssueFineRequest struct {
	TransactionID uuid.UUID       `json:"transactionId" validate:"required"`
	Type          FineType        `json:"type" validate:"required,oneof=OVERDUE_BOOK LOST DAMAGED"`
	Amount        decimal.Decimal `json:"amount"`
	Notes         string          `json:"notes,omitempty" validate:"max=1000"`
}

type CreateReservationRequest struct {
	BookID   uuid.UUID `json:"bookId" validate:"required"`
	MemberID uuid.UUID `json:"memberId" validate:"required"`
	Priority *int      `json:"priority,omitempty" validate:"omitempty,min=1,max=10"`
	Notes    string    `json:"notes,omitempty" validate:"max=1000"`
}

type CancelReservationRequest struct {
	ReservationID uuid.UUID `json:"reservationId" validate:"required"`
	Reason        string    `json:"reason,omitempty" validate:"max=500"`
}

type CreateBookRequest struct {
	ISBN        string     `json:"isbn" validate:"required,max=20"`
	Title       string     `json:"title" validate:"required,max=255"`
	Author      string     `json:"author" validate:"required,max=255"`
	CategoryID  *uuid.UUID `json:"categoryId,omitempty"`
	TotalCopies int        `json:"totalCopies" validate:"min=1"`
}

type CreateMemberRequest struct {
	FirstName       string          `json:"firstName" validate:"required,max=100"`
	LastName        string          `json:"lastName" validate:"required,max=100"`
	Email           string          `json:"email" validate:"required,email"`
	MaxBooksAllowed int             `json:"maxBooksAllowed,omitempty" validate:"omitempty,min=1,max=100"`
	MaxFineLimit    decimal.Decimal `json:"maxFineLimit"`
}

// PageRequest is bound from the page and pageSize query parameters.
type PageRequest struct {
	Page     int `query:"page" validate:"omitempty,min=1"`
	PageSize int `query:"pageSize" validate:"omitempty,min=1,max=100"`
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

func (p PageRequest) Normalize() PageRequest {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	return p
}

func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.PageSize
}
