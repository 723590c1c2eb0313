package errs

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindRuleViolation
	KindUnauthorized
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindRuleViolation:
		return "rule violation"
	case KindUnauthorized:
		return "unauthorized"
	default:
		return "internal"
	}
}

// Error is a failed precondition reported to the caller. Message names the precondition.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound) holds for every not-found error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

var (
	ErrNotFound      = &Error{Kind: KindNotFound}
	ErrRuleViolation = &Error{Kind: KindRuleViolation}
	ErrUnauthorized  = &Error{Kind: KindUnauthorized}
)

func NotFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func RuleViolation(msg string) error {
	return &Error{Kind: KindRuleViolation, Message: msg}
}

func Unauthorized(msg string) error {
	return &Error{Kind: KindUnauthorized, Message: msg}
}

// KindOf returns KindInternal for anything that is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

const (
	MsgBookNotAvailable     = "Book is not available"
	MsgMemberLimitReached   = "Member has reached maximum book limit"
	MsgAlreadyReturned      = "Transaction is already returned"
	MsgTransactionNotActive = "Transaction is not active"
	MsgMaxRenewals          = "Maximum renewals reached"
	MsgFineNotPayable       = "Fine is not payable"
	MsgReservationNotActive = "Reservation is not active"
	MsgDuplicateReservation = "Member already has an active reservation for this book"
	MsgInvalidAmount        = "Amount must be positive"
	MsgInvalidLoanDays      = "Loan days must be between 1 and 90"
	MsgInvalidRenewalDays   = "Additional days must be between 1 and 30"
	MsgInvalidPriority      = "Priority must be between 1 and 10"
)

type ErrorResponse struct {
	Message string `json:"message"`
}
