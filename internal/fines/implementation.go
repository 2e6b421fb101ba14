// internal/fines/implementation.go
package fines

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"libracore/internal/liberr"
	"libracore/internal/model"
	"libracore/internal/store"
)

// service implements the Service interface.
type service struct {
	store  store.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a new fine engine instance.
func NewService(st store.Store, logger *slog.Logger) Service {
	return &service{
		store:  st,
		logger: logger,
		now:    time.Now,
	}
}

// AssessOverdue computes amount = daysLate * dailyRate for a borrowing and
// records it as an UNPAID LATE_RETURN fine, once.
func (s *service) AssessOverdue(ctx context.Context, borrowingID uuid.UUID, dailyRate decimal.Decimal, issuedBy uuid.UUID) (*model.Fine, error) {
	if dailyRate.IsNegative() {
		return nil, liberr.Validationf("daily rate must not be negative")
	}

	var fine *model.Fine
	err := s.store.Within(ctx, func(tx store.Tx) error {
		var created bool
		var err error
		fine, created, err = assessOverdueInTx(ctx, tx, borrowingID, dailyRate, issuedBy, s.now().UTC())
		if err != nil {
			return err
		}
		if created {
			s.logger.InfoContext(ctx, "late return fine assessed",
				"borrowing_id", borrowingID, "fine_id", fine.ID, "amount", fine.Amount)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return fine, nil
}

// assessOverdueInTx is the single atomic step shared by AssessOverdue and
// SweepOverdue. It reports whether a fine was created (as opposed to found
// or not needed).
func assessOverdueInTx(ctx context.Context, tx store.Tx, borrowingID uuid.UUID, dailyRate decimal.Decimal, issuedBy uuid.UUID, now time.Time) (*model.Fine, bool, error) {
	borrowing, err := tx.Borrowings().Get(ctx, borrowingID)
	if err != nil {
		return nil, false, err
	}

	existing, err := tx.Fines().ByBorrowingAndReason(ctx, borrowingID, model.FineLateReturn)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	daysLate := borrowing.DaysLateAt(now)
	if daysLate == 0 {
		return nil, false, nil
	}

	id := borrowingID
	fine := &model.Fine{
		ID:          uuid.New(),
		UserID:      borrowing.UserID,
		BorrowingID: &id,
		Amount:      dailyRate.Mul(decimal.NewFromInt(int64(daysLate))),
		Reason:      model.FineLateReturn,
		Status:      model.PaymentUnpaid,
		IssuedAt:    now,
		IssuedBy:    issuedBy,
	}
	if err := tx.Fines().Insert(ctx, fine); err != nil {
		return nil, false, err
	}
	return fine, true, nil
}

// AssessLossOrDamage charges a flat replacement or repair fee against the
// borrower of the given loan.
func (s *service) AssessLossOrDamage(ctx context.Context, borrowingID uuid.UUID, flatFee decimal.Decimal, reason model.FineReason, issuedBy uuid.UUID) (*model.Fine, error) {
	if reason != model.FineLost && reason != model.FineDamaged {
		return nil, liberr.Validationf("loss/damage fine reason must be LOST or DAMAGED, got %s", reason)
	}
	if flatFee.IsNegative() {
		return nil, liberr.Validationf("flat fee must not be negative")
	}

	var fine *model.Fine
	err := s.store.Within(ctx, func(tx store.Tx) error {
		borrowing, err := tx.Borrowings().Get(ctx, borrowingID)
		if err != nil {
			return err
		}
		id := borrowingID
		fine = &model.Fine{
			ID:          uuid.New(),
			UserID:      borrowing.UserID,
			BorrowingID: &id,
			Amount:      flatFee,
			Reason:      reason,
			Status:      model.PaymentUnpaid,
			IssuedAt:    s.now().UTC(),
			IssuedBy:    issuedBy,
		}
		return tx.Fines().Insert(ctx, fine)
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "loss/damage fine assessed",
		"borrowing_id", borrowingID, "fine_id", fine.ID, "reason", fine.Reason, "amount", fine.Amount)
	return fine, nil
}

// Pay settles a fine. The tendered amount must equal the outstanding amount
// exactly; pay-in-full semantics, no partial payments.
func (s *service) Pay(ctx context.Context, fineID uuid.UUID, amount decimal.Decimal, method string, receivedBy uuid.UUID) error {
	return s.store.Within(ctx, func(tx store.Tx) error {
		fine, err := tx.Fines().Get(ctx, fineID)
		if err != nil {
			return err
		}
		if fine.Status != model.PaymentUnpaid {
			return liberr.Conflictf("fine %s is already %s", fineID, fine.Status)
		}
		if !amount.Equal(fine.Amount) {
			return liberr.BusinessRulef("payment of %s does not match outstanding amount %s", amount, fine.Amount)
		}
		return tx.Fines().MarkPaid(ctx, fineID, s.now().UTC(), method, receivedBy)
	})
}

// Waive forgives a fine. Already-waived fines conflict; the move is final.
func (s *service) Waive(ctx context.Context, fineID uuid.UUID, staffID uuid.UUID) error {
	return s.store.Within(ctx, func(tx store.Tx) error {
		fine, err := tx.Fines().Get(ctx, fineID)
		if err != nil {
			return err
		}
		if fine.Status == model.PaymentWaived {
			return liberr.Conflictf("fine %s is already waived", fineID)
		}
		if err := tx.Fines().MarkWaived(ctx, fineID); err != nil {
			return err
		}
		s.logger.InfoContext(ctx, "fine waived", "fine_id", fineID, "staff_id", staffID)
		return nil
	})
}

// OutstandingBalance sums the user's UNPAID fines.
func (s *service) OutstandingBalance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	balance := decimal.Zero
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		balance, err = tx.Fines().SumUnpaid(ctx, userID)
		return err
	})
	return balance, err
}

// SweepOverdue walks all borrowings past due, open or returned late, and
// assesses each one; idempotency skips loans already fined, so the sweep
// also recovers late returns whose assessment failed at return time.
// Cancellation between steps leaves no partial fine behind.
func (s *service) SweepOverdue(ctx context.Context, dailyRate decimal.Decimal, issuedBy uuid.UUID) (int, error) {
	if dailyRate.IsNegative() {
		return 0, liberr.Validationf("daily rate must not be negative")
	}

	now := s.now().UTC()
	var overdue []model.Borrowing
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		overdue, err = tx.Borrowings().ListOverdue(ctx, now)
		return err
	})
	if err != nil {
		return 0, err
	}

	created := 0
	for _, borrowing := range overdue {
		if err := ctx.Err(); err != nil {
			return created, liberr.Wrap(liberr.KindConcurrency, "sweep cancelled", err)
		}
		borrowingID := borrowing.ID
		err := s.store.Within(ctx, func(tx store.Tx) error {
			_, wasCreated, err := assessOverdueInTx(ctx, tx, borrowingID, dailyRate, issuedBy, now)
			if err != nil {
				return err
			}
			if wasCreated {
				created++
			}
			return nil
		})
		if err != nil {
			return created, err
		}
	}

	s.logger.InfoContext(ctx, "overdue sweep finished", "scanned", len(overdue), "fines_created", created)
	return created, nil
}

// ListFines returns a user's fines oldest first.
func (s *service) ListFines(ctx context.Context, userID uuid.UUID) ([]model.Fine, error) {
	var out []model.Fine
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		out, err = tx.Fines().ListByUser(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetFine retrieves a fine by id.
func (s *service) GetFine(ctx context.Context, fineID uuid.UUID) (*model.Fine, error) {
	var fine *model.Fine
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		fine, err = tx.Fines().Get(ctx, fineID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return fine, nil
}
