package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type BookStatus string

const (
	BookAvailable        BookStatus = "AVAILABLE"
	BookBorrowed         BookStatus = "BORROWED"
	BookReserved         BookStatus = "RESERVED"
	BookOutOfStock       BookStatus = "OUT_OF_STOCK"
	BookDiscontinued     BookStatus = "DISCONTINUED"
	BookUnderMaintenance BookStatus = "UNDER_MAINTENANCE"
)

type Book struct {
	ID              uuid.UUID     `json:"id" db:"id"`
	ISBN            string        `json:"isbn" db:"isbn"`
	Title           string        `json:"title" db:"title"`
	Author          string        `json:"author" db:"author"`
	CategoryID      uuid.NullUUID `json:"categoryId" db:"category_id"`
	TotalCopies     int           `json:"totalCopies" db:"total_copies"`
	AvailableCopies int           `json:"availableCopies" db:"available_copies"`
	Status          BookStatus    `json:"status" db:"status"`
}

// SyncStatus derives the status from the available count. Administrative statuses are kept.
func (b *Book) SyncStatus() {
	if b.Status == BookDiscontinued || b.Status == BookUnderMaintenance {
		return
	}
	if b.AvailableCopies == 0 {
		b.Status = BookOutOfStock
	} else {
		b.Status = BookAvailable
	}
}

type MemberStatus string

const (
	MemberActive    MemberStatus = "ACTIVE"
	MemberSuspended MemberStatus = "SUSPENDED"
	MemberExpired   MemberStatus = "EXPIRED"
	MemberBlocked   MemberStatus = "BLOCKED"
)

type Member struct {
	ID                uuid.UUID       `json:"id" db:"id"`
	MembershipNumber  string          `json:"membershipNumber" db:"membership_number"`
	FirstName         string          `json:"firstName" db:"first_name"`
	LastName          string          `json:"lastName" db:"last_name"`
	Email             string          `json:"email" db:"email"`
	Status            MemberStatus    `json:"status" db:"status"`
	MaxBooksAllowed   int             `json:"maxBooksAllowed" db:"max_books_allowed"`
	CurrentBooksCount int             `json:"currentBooksCount" db:"current_books_count"`
	TotalFinesOwed    decimal.Decimal `json:"totalFinesOwed" db:"total_fines_owed"`
	MaxFineLimit      decimal.Decimal `json:"maxFineLimit" db:"max_fine_limit"`
}

func (m Member) FullName() string {
	return m.FirstName + " " + m.LastName
}

type TransactionType string

const (
	TransactionCheckout TransactionType = "CHECKOUT"
	TransactionReturn   TransactionType = "RETURN"
)

type TransactionStatus string

const (
	TransactionActive   TransactionStatus = "ACTIVE"
	TransactionBorrowed TransactionStatus = "BORROWED"
	TransactionReturned TransactionStatus = "RETURNED"
	TransactionOverdue  TransactionStatus = "OVERDUE"
	TransactionLost     TransactionStatus = "LOST"
	TransactionDamaged  TransactionStatus = "DAMAGED"
)

type Transaction struct {
	ID                 uuid.UUID           `json:"id" db:"id"`
	TransactionNumber  string              `json:"transactionNumber" db:"transaction_number"`
	BookID             uuid.UUID           `json:"bookId" db:"book_id"`
	MemberID           uuid.UUID           `json:"memberId" db:"member_id"`
	Type               TransactionType     `json:"type" db:"type"`
	CheckoutDate       time.Time           `json:"checkoutDate" db:"checkout_date"`
	DueDate            time.Time           `json:"dueDate" db:"due_date"`
	ReturnDate         *time.Time          `json:"returnDate,omitempty" db:"return_date"`
	Status             TransactionStatus   `json:"status" db:"status"`
	RenewalCount       int                 `json:"renewalCount" db:"renewal_count"`
	MaxRenewalsAllowed int                 `json:"maxRenewalsAllowed" db:"max_renewals_allowed"`
	FineAmount         decimal.NullDecimal `json:"fineAmount" db:"fine_amount"`
	Notes              string              `json:"notes" db:"notes"`
}

// IsOverdue reports whether an active loan is past its due date at now.
func (t Transaction) IsOverdue(now time.Time) bool {
	return t.Status == TransactionActive && now.After(t.DueDate)
}

type FineType string

const (
	FineOverdueBook FineType = "OVERDUE_BOOK"
	FineLost        FineType = "LOST"
	FineDamaged     FineType = "DAMAGED"
)

type FineStatus string

const (
	FinePending       FineStatus = "PENDING"
	FineUnpaid        FineStatus = "UNPAID"
	FineOverdue       FineStatus = "OVERDUE"
	FinePartiallyPaid FineStatus = "PARTIALLY_PAID"
	FinePaid          FineStatus = "PAID"
	FineWaived        FineStatus = "WAIVED"
	FineCancelled     FineStatus = "CANCELLED"
)

func (s FineStatus) Payable() bool {
	return s == FinePending || s == FineUnpaid
}

type Fine struct {
	ID              uuid.UUID           `json:"id" db:"id"`
	FineNumber      string              `json:"fineNumber" db:"fine_number"`
	TransactionID   uuid.UUID           `json:"transactionId" db:"transaction_id"`
	MemberID        uuid.UUID           `json:"memberId" db:"member_id"`
	Type            FineType            `json:"type" db:"type"`
	Amount          decimal.Decimal     `json:"amount" db:"amount"`
	IssueDate       time.Time           `json:"issueDate" db:"issue_date"`
	DueDate         time.Time           `json:"dueDate" db:"due_date"`
	Status          FineStatus          `json:"status" db:"status"`
	PaidDate        *time.Time          `json:"paidDate,omitempty" db:"paid_date"`
	PaidAmount      decimal.NullDecimal `json:"paidAmount" db:"paid_amount"`
	PaymentMethod   string              `json:"paymentMethod,omitempty" db:"payment_method"`
	ReferenceNumber string              `json:"referenceNumber,omitempty" db:"reference_number"`
	Notes           string              `json:"notes" db:"notes"`
}

type ReservationStatus string

const (
	ReservationActive    ReservationStatus = "ACTIVE"
	ReservationFulfilled ReservationStatus = "FULFILLED"
	ReservationExpired   ReservationStatus = "EXPIRED"
	ReservationCancelled ReservationStatus = "CANCELLED"
	ReservationOnHold    ReservationStatus = "ON_HOLD"
)

type Reservation struct {
	ID                 uuid.UUID         `json:"id" db:"id"`
	ReservationNumber  string            `json:"reservationNumber" db:"reservation_number"`
	BookID             uuid.UUID         `json:"bookId" db:"book_id"`
	MemberID           uuid.UUID         `json:"memberId" db:"member_id"`
	ReservationDate    time.Time         `json:"reservationDate" db:"reservation_date"`
	ExpiryDate         time.Time         `json:"expiryDate" db:"expiry_date"`
	Status             ReservationStatus `json:"status" db:"status"`
	Priority           int               `json:"priority" db:"priority"`
	NotifiedDate       *time.Time        `json:"notifiedDate,omitempty" db:"notified_date"`
	FulfilledDate      *time.Time        `json:"fulfilledDate,omitempty" db:"fulfilled_date"`
	Notes              string            `json:"notes" db:"notes"`
	CancellationReason string            `json:"cancellationReason,omitempty" db:"cancellation_reason"`
}

// LibrarySettings is read at call time, so a change applies to the next operation.
type LibrarySettings struct {
	DailyFineRate         decimal.Decimal `envconfig:"LIBRARY_DAILY_FINE_RATE" default:"0.50"`
	DefaultLoanDays       int             `envconfig:"LIBRARY_DEFAULT_LOAN_DAYS" default:"14"`
	DefaultRenewalDays    int             `envconfig:"LIBRARY_DEFAULT_RENEWAL_DAYS" default:"14"`
	MaxRenewals           int             `envconfig:"LIBRARY_MAX_RENEWALS" default:"2"`
	ReservationExpiryDays int             `envconfig:"LIBRARY_RESERVATION_EXPIRY_DAYS" default:"7"`
	FinePaymentDays       int             `envconfig:"LIBRARY_FINE_PAYMENT_DAYS" default:"30"`
	CapFineAtLimit        bool            `envconfig:"LIBRARY_CAP_FINE_AT_LIMIT" default:"true"`
	EnforceMaxRenewals    bool            `envconfig:"LIBRARY_ENFORCE_MAX_RENEWALS" default:"false"`
}

func DefaultSettings() LibrarySettings {
	return LibrarySettings{
		DailyFineRate:         decimal.RequireFromString("0.50"),
		DefaultLoanDays:       14,
		DefaultRenewalDays:    14,
		MaxRenewals:           2,
		ReservationExpiryDays: 7,
		FinePaymentDays:       30,
		CapFineAtLimit:        true,
	}
}
