// internal/circulation/service.go
package circulation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"libracore/internal/model"
)

// Service is the circulation engine: every operation that opens or closes a
// loan goes through here, so copy status and the borrowing ledger always
// move together.
type Service interface {
	// Checkout lends the lowest-numbered AVAILABLE copy of a book. A zero
	// loanDays uses the configured default period.
	Checkout(ctx context.Context, bookID, borrowerID, issuerID uuid.UUID, loanDays int) (*model.Borrowing, error)
	// Return closes a loan. A late return produces a LATE_RETURN fine before
	// the call comes back; a pending hold on the book captures the copy.
	Return(ctx context.Context, borrowingID, receiverID uuid.UUID) (*model.Borrowing, error)
	// Renew extends a loan's due date. Blocked while the book has a pending
	// hold, and capped by the configured maximum loan period.
	Renew(ctx context.Context, borrowingID uuid.UUID, extraDays int) (time.Time, error)
	// ReportCondition records a borrowed copy as LOST or DAMAGED, closing
	// the open loan and charging the flat replacement/repair fee.
	ReportCondition(ctx context.Context, copyID uuid.UUID, condition model.CopyStatus, reporterID uuid.UUID) error
	// Claim converts a NOTIFIED hold into a loan of its reserved copy. Only
	// the reservation holder may claim.
	Claim(ctx context.Context, reservationID, borrowerID, issuerID uuid.UUID) (*model.Borrowing, error)
	GetBorrowing(ctx context.Context, borrowingID uuid.UUID) (*model.Borrowing, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Borrowing, error)
	ListByCopy(ctx context.Context, copyID uuid.UUID) ([]model.Borrowing, error)
}

// FineAssessor is the slice of the fine engine the circulation engine needs.
// Fines are assessed after the copy/loan transaction commits, but before the
// triggering operation returns.
type FineAssessor interface {
	AssessOverdue(ctx context.Context, borrowingID uuid.UUID, dailyRate decimal.Decimal, issuedBy uuid.UUID) (*model.Fine, error)
	AssessLossOrDamage(ctx context.Context, borrowingID uuid.UUID, flatFee decimal.Decimal, reason model.FineReason, issuedBy uuid.UUID) (*model.Fine, error)
	OutstandingBalance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error)
}

// Config carries the lending policy.
type Config struct {
	// LoanPeriodDays is the default loan length.
	LoanPeriodDays int
	// MaxLoanPeriodDays caps borrow date to due date across renewals.
	MaxLoanPeriodDays int
	// DailyFineRate is charged per day late on return.
	DailyFineRate decimal.Decimal
	// LostFee and DamagedFee are the flat replacement/repair charges.
	LostFee    decimal.Decimal
	DamagedFee decimal.Decimal
	// FineThreshold blocks checkout once a borrower's unpaid balance
	// exceeds it.
	FineThreshold decimal.Decimal
	// ClaimWindow is how long a promoted hold reserves its copy.
	ClaimWindow time.Duration
}

// DefaultConfig mirrors common lending desk policy.
func DefaultConfig() Config {
	return Config{
		LoanPeriodDays:    14,
		MaxLoanPeriodDays: 60,
		DailyFineRate:     decimal.RequireFromString("0.50"),
		LostFee:           decimal.RequireFromString("25.00"),
		DamagedFee:        decimal.RequireFromString("10.00"),
		FineThreshold:     decimal.RequireFromString("10.00"),
		ClaimWindow:       3 * 24 * time.Hour,
	}
}
