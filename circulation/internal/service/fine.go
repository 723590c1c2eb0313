package service

import (
	"context"

	"github.com/Astemirdum/library-circulation/circulation/internal/errs"
	"github.com/Astemirdum/library-circulation/circulation/internal/model"
	"github.com/Astemirdum/library-circulation/circulation/internal/repository"
	"github.com/Astemirdum/library-circulation/pkg/kafka"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PayFine records a payment. The amount is accepted as given; the member balance drops
// by at most the fine amount and never below zero.
func (s *Service) PayFine(ctx context.Context, req model.PayFineRequest) (_ model.Fine, err error) {
	ctx, span := s.startSpan(ctx, "PayFine")
	defer func() { endSpan(span, err) }()

	if !req.Amount.IsPositive() {
		return model.Fine{}, errs.RuleViolation(errs.MsgInvalidAmount)
	}
	now := s.clock.Now()
	var (
		fine   model.Fine
		events []kafka.Event
	)
	err = s.repo.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		events = events[:0]
		var err error
		fine, err = tx.FineForUpdate(ctx, req.FineID)
		if err != nil {
			return err
		}
		if !fine.Status.Payable() {
			return errs.RuleViolation(errs.MsgFineNotPayable)
		}
		member, err := tx.MemberForUpdate(ctx, fine.MemberID)
		if err != nil {
			return err
		}

		fine.PaidAmount = decimal.NullDecimal{Decimal: req.Amount, Valid: true}
		fine.PaidDate = &now
		fine.PaymentMethod = req.PaymentMethod
		fine.ReferenceNumber = req.ReferenceNumber
		fine.Notes = appendNote(fine.Notes, req.Notes)
		if req.Amount.GreaterThanOrEqual(fine.Amount) {
			fine.Status = model.FinePaid
		} else {
			fine.Status = model.FinePartiallyPaid
		}
		if err := tx.UpdateFine(ctx, fine); err != nil {
			return err
		}

		owed := member.TotalFinesOwed.Sub(decimal.Min(req.Amount, fine.Amount))
		if owed.IsNegative() {
			owed = decimal.Zero
		}
		member.TotalFinesOwed = owed
		if err := tx.UpdateMember(ctx, member); err != nil {
			return err
		}
		events = append(events, s.newEvent(kafka.EventFinePaid, fine.ID, uuid.Nil, fine.MemberID, finePayload(fine)))
		return nil
	})
	if err != nil {
		return model.Fine{}, err
	}
	s.publish(ctx, events)
	return fine, nil
}

// WaiveFine marks the fine waived whatever its status. The member balance is left as is.
func (s *Service) WaiveFine(ctx context.Context, req model.WaiveFineRequest) (_ model.Fine, err error) {
	ctx, span := s.startSpan(ctx, "WaiveFine")
	defer func() { endSpan(span, err) }()

	var (
		fine   model.Fine
		events []kafka.Event
	)
	err = s.repo.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		events = events[:0]
		var err error
		fine, err = tx.FineForUpdate(ctx, req.FineID)
		if err != nil {
			return err
		}
		fine.Status = model.FineWaived
		fine.Notes = appendNote(appendNote(fine.Notes, "Waived: "+req.Reason), req.Notes)
		if err := tx.UpdateFine(ctx, fine); err != nil {
			return err
		}
		events = append(events, s.newEvent(kafka.EventFineWaived, fine.ID, uuid.Nil, fine.MemberID, finePayload(fine)))
		return nil
	})
	if err != nil {
		return model.Fine{}, err
	}
	s.publish(ctx, events)
	return fine, nil
}

// IssueFine charges a fine against a transaction's member, uncapped.
func (s *Service) IssueFine(ctx context.Context, req model.IssueFineRequest) (_ model.Fine, err error) {
	ctx, span := s.startSpan(ctx, "IssueFine")
	defer func() { endSpan(span, err) }()

	if !req.Amount.IsPositive() {
		return model.Fine{}, errs.RuleViolation(errs.MsgInvalidAmount)
	}
	settings := s.settings.Settings(ctx)
	now := s.clock.Now()
	var (
		fine   model.Fine
		events []kafka.Event
	)
	err = s.repo.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		events = events[:0]
		txn, err := tx.TransactionForUpdate(ctx, req.TransactionID)
		if err != nil {
			return err
		}
		member, err := tx.MemberForUpdate(ctx, txn.MemberID)
		if err != nil {
			return err
		}
		fine = model.Fine{
			ID:            s.ids.NewID(),
			FineNumber:    s.ids.Number(PrefixFine, now),
			TransactionID: txn.ID,
			MemberID:      member.ID,
			Type:          req.Type,
			Amount:        req.Amount,
			IssueDate:     now,
			DueDate:       now.Add(days(settings.FinePaymentDays)),
			Status:        model.FinePending,
			Notes:         req.Notes,
		}
		if err := tx.InsertFine(ctx, fine); err != nil {
			return err
		}
		member.TotalFinesOwed = member.TotalFinesOwed.Add(fine.Amount)
		if err := tx.UpdateMember(ctx, member); err != nil {
			return err
		}
		events = append(events, s.newEvent(kafka.EventFineIssued, fine.ID, txn.BookID, member.ID, finePayload(fine)))
		return nil
	})
	if err != nil {
		return model.Fine{}, err
	}
	s.publish(ctx, events)
	return fine, nil
}

func (s *Service) GetFine(ctx context.Context, id uuid.UUID) (model.Fine, error) {
	return s.repo.GetFine(ctx, id)
}

func (s *Service) ListMemberFines(ctx context.Context, memberID uuid.UUID, page model.PageRequest) (model.Page[model.Fine], error) {
	page = page.Normalize()
	items, total, err := s.repo.ListMemberFines(ctx, memberID, page)
	if err != nil {
		return model.Page[model.Fine]{}, err
	}
	return model.NewPage(items, total, page), nil
}

type fineEvent struct {
	FineNumber string              `json:"fineNumber"`
	Type       model.FineType      `json:"type"`
	Status     model.FineStatus    `json:"status"`
	Amount     decimal.Decimal     `json:"amount"`
	PaidAmount decimal.NullDecimal `json:"paidAmount"`
}

func finePayload(f model.Fine) fineEvent {
	return fineEvent{
		FineNumber: f.FineNumber,
		Type:       f.Type,
		Status:     f.Status,
		Amount:     f.Amount,
		PaidAmount: f.PaidAmount,
	}
}
