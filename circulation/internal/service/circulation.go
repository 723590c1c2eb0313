package service

import (
	"context"
	"time"

	"github.com/Astemirdum/library-circulation/circulation/internal/errs"
	"github.com/Astemirdum/library-circulation/circulation/internal/model"
	"github.com/Astemirdum/library-circulation/circulation/internal/repository"
	"github.com/Astemirdum/library-circulation/pkg/kafka"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func (s *Service) BorrowBook(ctx context.Context, req model.BorrowRequest) (_ model.TransactionView, err error) {
	ctx, span := s.startSpan(ctx, "BorrowBook")
	defer func() { endSpan(span, err) }()

	settings := s.settings.Settings(ctx)
	loanDays := settings.DefaultLoanDays
	if req.Days != nil {
		loanDays = *req.Days
	}
	if loanDays < 1 || loanDays > 90 {
		return model.TransactionView{}, errs.RuleViolation(errs.MsgInvalidLoanDays)
	}

	now := s.clock.Now()
	var (
		txn    model.Transaction
		events []kafka.Event
	)
	err = s.repo.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		events = events[:0]
		book, member, err := lockParties(ctx, tx, req.BookID, req.MemberID)
		if err != nil {
			return err
		}
		txn, err = s.checkout(ctx, tx, book, member, loanDays, req.Notes, now, settings)
		if err != nil {
			return err
		}
		events = append(events, s.newEvent(kafka.EventTransactionBorrowed, txn.ID, txn.BookID, txn.MemberID, loanPayload(txn)))
		return nil
	})
	if err != nil {
		return model.TransactionView{}, err
	}
	s.publish(ctx, events)
	s.log.Debug("borrowed", zap.String("transaction", txn.TransactionNumber))
	return s.transactionView(ctx, txn, now)
}

func lockParties(ctx context.Context, tx repository.Tx, bookID, memberID uuid.UUID) (model.Book, model.Member, error) {
	book, err := tx.BookForUpdate(ctx, bookID)
	if err != nil {
		return model.Book{}, model.Member{}, err
	}
	member, err := tx.MemberForUpdate(ctx, memberID)
	if err != nil {
		return model.Book{}, model.Member{}, err
	}
	return book, member, nil
}

// checkout applies the borrow rules to rows already locked by the caller.
func (s *Service) checkout(ctx context.Context, tx repository.Tx, book model.Book, member model.Member,
	loanDays int, notes string, now time.Time, settings model.LibrarySettings,
) (model.Transaction, error) {
	if book.AvailableCopies <= 0 {
		return model.Transaction{}, errs.RuleViolation(errs.MsgBookNotAvailable)
	}
	if member.CurrentBooksCount >= member.MaxBooksAllowed {
		return model.Transaction{}, errs.RuleViolation(errs.MsgMemberLimitReached)
	}

	txn := model.Transaction{
		ID:                 s.ids.NewID(),
		TransactionNumber:  s.ids.Number(PrefixTransaction, now),
		BookID:             book.ID,
		MemberID:           member.ID,
		Type:               model.TransactionCheckout,
		CheckoutDate:       now,
		DueDate:            now.Add(days(loanDays)),
		Status:             model.TransactionActive,
		MaxRenewalsAllowed: settings.MaxRenewals,
		Notes:              notes,
	}
	if err := tx.InsertTransaction(ctx, txn); err != nil {
		return model.Transaction{}, err
	}

	book.AvailableCopies--
	book.SyncStatus()
	if err := tx.UpdateBook(ctx, book); err != nil {
		return model.Transaction{}, err
	}
	member.CurrentBooksCount++
	if err := tx.UpdateMember(ctx, member); err != nil {
		return model.Transaction{}, err
	}
	return txn, nil
}

func (s *Service) ReturnBook(ctx context.Context, req model.ReturnRequest) (_ model.TransactionView, err error) {
	ctx, span := s.startSpan(ctx, "ReturnBook")
	defer func() { endSpan(span, err) }()

	settings := s.settings.Settings(ctx)
	now := s.clock.Now()
	var (
		txn    model.Transaction
		events []kafka.Event
	)
	err = s.repo.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		events = events[:0]
		var err error
		txn, err = tx.TransactionForUpdate(ctx, req.TransactionID)
		if err != nil {
			return err
		}
		if txn.Status == model.TransactionReturned {
			return errs.RuleViolation(errs.MsgAlreadyReturned)
		}
		book, member, err := lockParties(ctx, tx, txn.BookID, txn.MemberID)
		if err != nil {
			return err
		}

		wasLate := now.After(txn.DueDate)
		txn.ReturnDate = &now
		txn.Status = model.TransactionReturned
		txn.Notes = appendNote(txn.Notes, req.Notes)

		if book.AvailableCopies < book.TotalCopies {
			book.AvailableCopies++
		}
		book.SyncStatus()
		if err := tx.UpdateBook(ctx, book); err != nil {
			return err
		}

		if member.CurrentBooksCount > 0 {
			member.CurrentBooksCount--
		}
		if wasLate {
			fine, ok, err := s.overdueFine(ctx, tx, txn, &member, now, settings)
			if err != nil {
				return err
			}
			if ok {
				txn.FineAmount = decimal.NullDecimal{Decimal: fine.Amount, Valid: true}
				events = append(events, s.newEvent(kafka.EventFineIssued, fine.ID, txn.BookID, txn.MemberID, finePayload(fine)))
			}
		}
		if err := tx.UpdateMember(ctx, member); err != nil {
			return err
		}
		if err := tx.UpdateTransaction(ctx, txn); err != nil {
			return err
		}
		events = append(events, s.newEvent(kafka.EventTransactionReturned, txn.ID, txn.BookID, txn.MemberID, loanPayload(txn)))

		next, ok, err := tx.NextReservationForUpdate(ctx, book.ID)
		if err != nil {
			return err
		}
		if ok {
			next.NotifiedDate = &now
			if err := tx.UpdateReservation(ctx, next); err != nil {
				return err
			}
			events = append(events, s.newEvent(kafka.EventReservationNotified, next.ID, next.BookID, next.MemberID, reservationPayload(next)))
		}
		return nil
	})
	if err != nil {
		return model.TransactionView{}, err
	}
	s.publish(ctx, events)
	return s.transactionView(ctx, txn, now)
}

// overdueFine inserts the late-return fine and adds it to member's balance.
// ok is false when the capped amount leaves nothing to charge.
func (s *Service) overdueFine(ctx context.Context, tx repository.Tx, txn model.Transaction, member *model.Member,
	now time.Time, settings model.LibrarySettings,
) (model.Fine, bool, error) {
	amount := OverdueFine(txn.DueDate, now, settings.DailyFineRate)
	if settings.CapFineAtLimit {
		amount = CapFine(amount, *member)
	}
	if !amount.IsPositive() {
		return model.Fine{}, false, nil
	}
	fine := model.Fine{
		ID:            s.ids.NewID(),
		FineNumber:    s.ids.Number(PrefixFine, now),
		TransactionID: txn.ID,
		MemberID:      member.ID,
		Type:          model.FineOverdueBook,
		Amount:        amount,
		IssueDate:     now,
		DueDate:       now.Add(days(settings.FinePaymentDays)),
		Status:        model.FinePending,
	}
	if err := tx.InsertFine(ctx, fine); err != nil {
		return model.Fine{}, false, err
	}
	member.TotalFinesOwed = member.TotalFinesOwed.Add(amount)
	return fine, true, nil
}

func (s *Service) RenewBook(ctx context.Context, req model.RenewRequest) (_ model.TransactionView, err error) {
	ctx, span := s.startSpan(ctx, "RenewBook")
	defer func() { endSpan(span, err) }()

	settings := s.settings.Settings(ctx)
	additional := settings.DefaultRenewalDays
	if req.AdditionalDays != nil {
		additional = *req.AdditionalDays
	}
	if additional < 1 || additional > 30 {
		return model.TransactionView{}, errs.RuleViolation(errs.MsgInvalidRenewalDays)
	}

	now := s.clock.Now()
	var (
		txn    model.Transaction
		events []kafka.Event
	)
	err = s.repo.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		events = events[:0]
		var err error
		txn, err = tx.TransactionForUpdate(ctx, req.TransactionID)
		if err != nil {
			return err
		}
		if txn.Status != model.TransactionActive {
			return errs.RuleViolation(errs.MsgTransactionNotActive)
		}
		if settings.EnforceMaxRenewals && txn.RenewalCount >= txn.MaxRenewalsAllowed {
			return errs.RuleViolation(errs.MsgMaxRenewals)
		}
		txn.DueDate = txn.DueDate.Add(days(additional))
		txn.RenewalCount++
		txn.Notes = appendNote(txn.Notes, req.Notes)
		if err := tx.UpdateTransaction(ctx, txn); err != nil {
			return err
		}
		events = append(events, s.newEvent(kafka.EventTransactionRenewed, txn.ID, txn.BookID, txn.MemberID, loanPayload(txn)))
		return nil
	})
	if err != nil {
		return model.TransactionView{}, err
	}
	s.publish(ctx, events)
	return s.transactionView(ctx, txn, now)
}

type loanEvent struct {
	TransactionNumber string     `json:"transactionNumber"`
	DueDate           time.Time  `json:"dueDate"`
	ReturnDate        *time.Time `json:"returnDate,omitempty"`
	RenewalCount      int        `json:"renewalCount"`
}

func loanPayload(t model.Transaction) loanEvent {
	return loanEvent{
		TransactionNumber: t.TransactionNumber,
		DueDate:           t.DueDate,
		ReturnDate:        t.ReturnDate,
		RenewalCount:      t.RenewalCount,
	}
}
