package service

import (
	"context"
	"time"

	"github.com/Astemirdum/library-circulation/circulation/internal/errs"
	"github.com/Astemirdum/library-circulation/circulation/internal/model"
	"github.com/Astemirdum/library-circulation/circulation/internal/repository"
	"github.com/Astemirdum/library-circulation/pkg/kafka"
	"github.com/google/uuid"
)

// CreateReservation queues a member for a book. Duplicates are not rejected here.
func (s *Service) CreateReservation(ctx context.Context, req model.CreateReservationRequest) (_ model.Reservation, err error) {
	ctx, span := s.startSpan(ctx, "CreateReservation")
	defer func() { endSpan(span, err) }()

	priority := 1
	if req.Priority != nil {
		priority = *req.Priority
	}
	if priority < 1 || priority > 10 {
		return model.Reservation{}, errs.RuleViolation(errs.MsgInvalidPriority)
	}
	settings := s.settings.Settings(ctx)
	now := s.clock.Now()
	var (
		res    model.Reservation
		events []kafka.Event
	)
	err = s.repo.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		events = events[:0]
		book, member, err := lockParties(ctx, tx, req.BookID, req.MemberID)
		if err != nil {
			return err
		}
		res = model.Reservation{
			ID:                s.ids.NewID(),
			ReservationNumber: s.ids.Number(PrefixReservation, now),
			BookID:            book.ID,
			MemberID:          member.ID,
			ReservationDate:   now,
			ExpiryDate:        now.Add(days(settings.ReservationExpiryDays)),
			Status:            model.ReservationActive,
			Priority:          priority,
			Notes:             req.Notes,
		}
		if err := tx.InsertReservation(ctx, res); err != nil {
			return err
		}
		events = append(events, s.newEvent(kafka.EventReservationCreated, res.ID, res.BookID, res.MemberID, reservationPayload(res)))
		return nil
	})
	if err != nil {
		return model.Reservation{}, err
	}
	s.publish(ctx, events)
	return res, nil
}

func (s *Service) HasActiveReservation(ctx context.Context, bookID, memberID uuid.UUID) (bool, error) {
	return s.repo.HasActiveReservation(ctx, bookID, memberID)
}

func (s *Service) CancelReservation(ctx context.Context, req model.CancelReservationRequest) (err error) {
	ctx, span := s.startSpan(ctx, "CancelReservation")
	defer func() { endSpan(span, err) }()

	var events []kafka.Event
	err = s.repo.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		events = events[:0]
		res, err := tx.ReservationForUpdate(ctx, req.ReservationID)
		if err != nil {
			return err
		}
		if res.Status != model.ReservationActive {
			return errs.RuleViolation(errs.MsgReservationNotActive)
		}
		res.Status = model.ReservationCancelled
		res.CancellationReason = req.Reason
		if err := tx.UpdateReservation(ctx, res); err != nil {
			return err
		}
		events = append(events, s.newEvent(kafka.EventReservationCanceled, res.ID, res.BookID, res.MemberID, reservationPayload(res)))
		return nil
	})
	if err != nil {
		return err
	}
	s.publish(ctx, events)
	return nil
}

// FulfillReservation checks the book out to the reservation holder with the default loan period.
func (s *Service) FulfillReservation(ctx context.Context, id uuid.UUID) (err error) {
	ctx, span := s.startSpan(ctx, "FulfillReservation")
	defer func() { endSpan(span, err) }()

	// book and member are locked before the reservation row, so their ids are read first.
	pending, err := s.repo.GetReservation(ctx, id)
	if err != nil {
		return err
	}
	settings := s.settings.Settings(ctx)
	now := s.clock.Now()
	var events []kafka.Event
	err = s.repo.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		events = events[:0]
		book, member, err := lockParties(ctx, tx, pending.BookID, pending.MemberID)
		if err != nil {
			return err
		}
		res, err := tx.ReservationForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if res.Status != model.ReservationActive {
			return errs.RuleViolation(errs.MsgReservationNotActive)
		}
		txn, err := s.checkout(ctx, tx, book, member, settings.DefaultLoanDays, "Reservation "+res.ReservationNumber, now, settings)
		if err != nil {
			return err
		}
		res.Status = model.ReservationFulfilled
		res.FulfilledDate = &now
		if err := tx.UpdateReservation(ctx, res); err != nil {
			return err
		}
		events = append(events,
			s.newEvent(kafka.EventTransactionBorrowed, txn.ID, txn.BookID, txn.MemberID, loanPayload(txn)),
			s.newEvent(kafka.EventReservationFulfill, res.ID, res.BookID, res.MemberID, reservationPayload(res)),
		)
		return nil
	})
	if err != nil {
		return err
	}
	s.publish(ctx, events)
	return nil
}

func (s *Service) ListBookQueue(ctx context.Context, bookID uuid.UUID) ([]model.Reservation, error) {
	return s.repo.ListBookQueue(ctx, bookID)
}

// ExpireReservations moves every active reservation past its expiry date to EXPIRED.
func (s *Service) ExpireReservations(ctx context.Context) (_ int, err error) {
	ctx, span := s.startSpan(ctx, "ExpireReservations")
	defer func() { endSpan(span, err) }()

	now := s.clock.Now()
	var (
		count  int
		events []kafka.Event
	)
	err = s.repo.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		events = events[:0]
		expired, err := tx.ExpireReservations(ctx, now)
		if err != nil {
			return err
		}
		count = len(expired)
		for _, r := range expired {
			events = append(events, s.newEvent(kafka.EventReservationExpired, r.ID, r.BookID, r.MemberID, reservationPayload(r)))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.publish(ctx, events)
	return count, nil
}

type reservationEvent struct {
	ReservationNumber string                  `json:"reservationNumber"`
	Status            model.ReservationStatus `json:"status"`
	Priority          int                     `json:"priority"`
	ExpiryDate        time.Time               `json:"expiryDate"`
}

func reservationPayload(r model.Reservation) reservationEvent {
	return reservationEvent{
		ReservationNumber: r.ReservationNumber,
		Status:            r.Status,
		Priority:          r.Priority,
		ExpiryDate:        r.ExpiryDate,
	}
}
