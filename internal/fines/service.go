// internal/fines/service.go
package fines

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"libracore/internal/model"
)

// Service is the fine engine. It derives monetary penalties from overdue
// borrowings and loss/damage incidents and tracks their payment status.
// All arithmetic is decimal fixed-point.
type Service interface {
	// AssessOverdue is idempotent: if a LATE_RETURN fine already exists for
	// the borrowing it returns that fine unchanged. Returns nil when the
	// borrowing is not late at all.
	AssessOverdue(ctx context.Context, borrowingID uuid.UUID, dailyRate decimal.Decimal, issuedBy uuid.UUID) (*model.Fine, error)
	// AssessLossOrDamage always creates a new fine: distinct incidents are
	// distinct charges.
	AssessLossOrDamage(ctx context.Context, borrowingID uuid.UUID, flatFee decimal.Decimal, reason model.FineReason, issuedBy uuid.UUID) (*model.Fine, error)
	// Pay settles a fine in full; partial payments are rejected.
	Pay(ctx context.Context, fineID uuid.UUID, amount decimal.Decimal, method string, receivedBy uuid.UUID) error
	// Waive is the administrative override; it is not reversible.
	Waive(ctx context.Context, fineID uuid.UUID, staffID uuid.UUID) error
	// OutstandingBalance sums the user's UNPAID fines.
	OutstandingBalance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error)
	// SweepOverdue assesses every open borrowing past its due date. Each
	// fine is its own atomic step, so the sweep is safe to cancel
	// mid-flight and to run repeatedly. Returns the number of fines created.
	SweepOverdue(ctx context.Context, dailyRate decimal.Decimal, issuedBy uuid.UUID) (int, error)
	ListFines(ctx context.Context, userID uuid.UUID) ([]model.Fine, error)
	GetFine(ctx context.Context, fineID uuid.UUID) (*model.Fine, error)
}
