// internal/circulation/implementation.go
package circulation

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"libracore/internal/liberr"
	"libracore/internal/model"
	"libracore/internal/notify"
	"libracore/internal/reservation"
	"libracore/internal/store"
)

// service implements the Service interface.
type service struct {
	store    store.Store
	fines    FineAssessor
	notifier notify.Notifier
	logger   *slog.Logger
	cfg      Config
	now      func() time.Time
}

// NewService creates a new circulation engine instance.
func NewService(st store.Store, fines FineAssessor, notifier notify.Notifier, logger *slog.Logger, cfg Config) Service {
	return &service{
		store:    st,
		fines:    fines,
		notifier: notifier,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Checkout opens a loan on the lowest-numbered AVAILABLE copy of the book.
// The copy status change and the borrowing row commit together.
func (s *service) Checkout(ctx context.Context, bookID, borrowerID, issuerID uuid.UUID, loanDays int) (*model.Borrowing, error) {
	if loanDays == 0 {
		loanDays = s.cfg.LoanPeriodDays
	}
	if loanDays < 0 {
		return nil, liberr.Validationf("loan period must be positive, got %d days", loanDays)
	}
	if loanDays > s.cfg.MaxLoanPeriodDays {
		return nil, liberr.BusinessRulef("loan period %d days exceeds the maximum of %d", loanDays, s.cfg.MaxLoanPeriodDays)
	}

	now := s.now().UTC()
	var borrowing *model.Borrowing
	err := s.store.Within(ctx, func(tx store.Tx) error {
		if _, err := tx.Books().Get(ctx, bookID); err != nil {
			return err
		}

		duplicate, err := tx.Borrowings().OpenByBookAndUser(ctx, bookID, borrowerID)
		if err != nil {
			return err
		}
		if duplicate != nil {
			return liberr.BusinessRulef("user %s already has this book on loan", borrowerID)
		}

		unpaid, err := tx.Fines().SumUnpaid(ctx, borrowerID)
		if err != nil {
			return err
		}
		if unpaid.GreaterThan(s.cfg.FineThreshold) {
			return liberr.BusinessRulef("user %s has %s in unpaid fines, above the %s threshold",
				borrowerID, unpaid, s.cfg.FineThreshold)
		}

		copy, err := tx.Copies().FirstAvailable(ctx, bookID)
		if err != nil {
			return err
		}
		if copy == nil {
			return liberr.Unavailablef("no available copy of book %s, place a hold instead", bookID)
		}

		if err := tx.Copies().UpdateStatus(ctx, copy.ID, model.CopyBorrowed); err != nil {
			return err
		}
		borrowing = &model.Borrowing{
			ID:         uuid.New(),
			CopyID:     copy.ID,
			BookID:     bookID,
			UserID:     borrowerID,
			IssuedBy:   issuerID,
			BorrowedAt: now,
			DueAt:      now.AddDate(0, 0, loanDays),
		}
		return tx.Borrowings().Insert(ctx, borrowing)
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "checkout",
		"borrowing_id", borrowing.ID, "book_id", bookID, "copy_id", borrowing.CopyID, "user_id", borrowerID)
	return borrowing, nil
}

// Return closes a loan and routes the copy: to RESERVED when a hold is
// waiting, back to AVAILABLE otherwise. A late return is fined after the
// transaction commits but before the call returns; if that assessment fails
// the return still stands and the overdue sweep picks the fine up later.
func (s *service) Return(ctx context.Context, borrowingID, receiverID uuid.UUID) (*model.Borrowing, error) {
	now := s.now().UTC()
	var borrowing *model.Borrowing
	var promoted *model.Reservation
	err := s.store.Within(ctx, func(tx store.Tx) error {
		var err error
		borrowing, err = tx.Borrowings().Get(ctx, borrowingID)
		if err != nil {
			return err
		}
		if !borrowing.Open() {
			return liberr.Conflictf("borrowing %s already returned", borrowingID)
		}
		if err := tx.Borrowings().Close(ctx, borrowingID, now, receiverID); err != nil {
			return err
		}
		promoted, err = reservation.PromoteNext(ctx, tx, borrowing.BookID, borrowing.CopyID, now, s.cfg.ClaimWindow)
		return err
	})
	if err != nil {
		return nil, err
	}
	borrowing.ReturnedAt = &now
	borrowing.ReturnedTo = &receiverID

	if borrowing.DaysLateAt(now) > 0 {
		fine, err := s.fines.AssessOverdue(ctx, borrowingID, s.cfg.DailyFineRate, receiverID)
		if err != nil {
			s.logger.ErrorContext(ctx, "overdue assessment failed after return",
				"borrowing_id", borrowingID, "error", err)
		}
		if fine != nil {
			s.notifier.Notify(ctx, borrowing.UserID, notify.EventFineIssued, map[string]any{
				"fine_id": fine.ID.String(),
				"amount":  fine.Amount.String(),
				"reason":  string(fine.Reason),
			})
		}
	}

	if promoted != nil {
		s.notifier.Notify(ctx, promoted.UserID, notify.EventHoldReady, map[string]any{
			"reservation_id": promoted.ID.String(),
			"book_id":        promoted.BookID.String(),
			"expires_at":     promoted.ExpiresAt,
		})
	}

	s.logger.InfoContext(ctx, "return",
		"borrowing_id", borrowingID, "copy_id", borrowing.CopyID, "late_days", borrowing.DaysLateAt(now))
	return borrowing, nil
}

// Renew extends a loan's due date by extraDays.
func (s *service) Renew(ctx context.Context, borrowingID uuid.UUID, extraDays int) (time.Time, error) {
	if extraDays <= 0 {
		return time.Time{}, liberr.Validationf("renewal must add at least one day, got %d", extraDays)
	}

	var newDue time.Time
	err := s.store.Within(ctx, func(tx store.Tx) error {
		borrowing, err := tx.Borrowings().Get(ctx, borrowingID)
		if err != nil {
			return err
		}
		if !borrowing.Open() {
			return liberr.Conflictf("borrowing %s already returned", borrowingID)
		}

		pending, err := tx.Reservations().NextPending(ctx, borrowing.BookID)
		if err != nil {
			return err
		}
		if pending != nil {
			return liberr.Conflictf("book %s has a pending hold, renewal blocked", borrowing.BookID)
		}

		newDue = borrowing.DueAt.AddDate(0, 0, extraDays)
		if model.DaysBetween(borrowing.BorrowedAt, newDue) > s.cfg.MaxLoanPeriodDays {
			return liberr.Conflictf("renewal would exceed the maximum loan period of %d days", s.cfg.MaxLoanPeriodDays)
		}
		return tx.Borrowings().UpdateDueDate(ctx, borrowingID, newDue)
	})
	if err != nil {
		return time.Time{}, err
	}
	return newDue, nil
}

// ReportCondition marks a copy LOST or DAMAGED. An open loan on the copy is
// closed and the borrower is charged the flat fee for the incident.
func (s *service) ReportCondition(ctx context.Context, copyID uuid.UUID, condition model.CopyStatus, reporterID uuid.UUID) error {
	var reason model.FineReason
	switch condition {
	case model.CopyLost:
		reason = model.FineLost
	case model.CopyDamaged:
		reason = model.FineDamaged
	default:
		return liberr.Validationf("condition must be LOST or DAMAGED, got %s", condition)
	}

	now := s.now().UTC()
	var closed *model.Borrowing
	err := s.store.Within(ctx, func(tx store.Tx) error {
		copy, err := tx.Copies().Get(ctx, copyID)
		if err != nil {
			return err
		}
		if !model.CanTransition(copy.Status, condition) {
			return liberr.Conflictf("copy %s cannot move from %s to %s", copyID, copy.Status, condition)
		}

		closed, err = tx.Borrowings().OpenByCopy(ctx, copyID)
		if err != nil {
			return err
		}
		if closed != nil {
			if err := tx.Borrowings().Close(ctx, closed.ID, now, reporterID); err != nil {
				return err
			}
		}
		return tx.Copies().UpdateStatus(ctx, copyID, condition)
	})
	if err != nil {
		return err
	}

	if closed != nil {
		fee := s.cfg.DamagedFee
		if reason == model.FineLost {
			fee = s.cfg.LostFee
		}
		fine, err := s.fines.AssessLossOrDamage(ctx, closed.ID, fee, reason, reporterID)
		if err != nil {
			return err
		}
		s.notifier.Notify(ctx, closed.UserID, notify.EventFineIssued, map[string]any{
			"fine_id": fine.ID.String(),
			"amount":  fine.Amount.String(),
			"reason":  string(fine.Reason),
		})
	}

	s.logger.InfoContext(ctx, "condition reported", "copy_id", copyID, "condition", condition)
	return nil
}

// Claim opens a loan on the specific copy reserved for a NOTIFIED hold.
func (s *service) Claim(ctx context.Context, reservationID, borrowerID, issuerID uuid.UUID) (*model.Borrowing, error) {
	now := s.now().UTC()
	var borrowing *model.Borrowing
	err := s.store.Within(ctx, func(tx store.Tx) error {
		hold, err := tx.Reservations().Get(ctx, reservationID)
		if err != nil {
			return err
		}
		if hold.Status != model.ReservationNotified {
			return liberr.Conflictf("reservation %s is %s, only notified holds can be claimed", reservationID, hold.Status)
		}
		if hold.UserID != borrowerID {
			return liberr.BusinessRulef("reservation %s belongs to another user", reservationID)
		}
		if hold.CopyID == nil {
			return liberr.NotFoundf("reservation %s has no reserved copy", reservationID)
		}

		copy, err := tx.Copies().Get(ctx, *hold.CopyID)
		if err != nil {
			return err
		}
		if copy.Status != model.CopyReserved {
			return liberr.Conflictf("copy %s is %s, not held for pickup", copy.ID, copy.Status)
		}

		if err := tx.Copies().UpdateStatus(ctx, copy.ID, model.CopyBorrowed); err != nil {
			return err
		}
		borrowing = &model.Borrowing{
			ID:         uuid.New(),
			CopyID:     copy.ID,
			BookID:     hold.BookID,
			UserID:     borrowerID,
			IssuedBy:   issuerID,
			BorrowedAt: now,
			DueAt:      now.AddDate(0, 0, s.cfg.LoanPeriodDays),
		}
		if err := tx.Borrowings().Insert(ctx, borrowing); err != nil {
			return err
		}
		return tx.Reservations().UpdateStatus(ctx, reservationID, model.ReservationFulfilled)
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "hold claimed",
		"reservation_id", reservationID, "borrowing_id", borrowing.ID, "user_id", borrowerID)
	return borrowing, nil
}

// GetBorrowing retrieves one loan.
func (s *service) GetBorrowing(ctx context.Context, borrowingID uuid.UUID) (*model.Borrowing, error) {
	var borrowing *model.Borrowing
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		borrowing, err = tx.Borrowings().Get(ctx, borrowingID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return borrowing, nil
}

// ListByUser returns a user's loan history oldest first.
func (s *service) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Borrowing, error) {
	var out []model.Borrowing
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		out, err = tx.Borrowings().ListByUser(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListByCopy returns a copy's loan history oldest first.
func (s *service) ListByCopy(ctx context.Context, copyID uuid.UUID) ([]model.Borrowing, error) {
	var out []model.Borrowing
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		out, err = tx.Borrowings().ListByCopy(ctx, copyID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
