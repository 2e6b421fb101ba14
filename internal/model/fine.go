// internal/model/fine.go
package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"libracore/internal/liberr"
)

// FineReason names the incident that produced a fine.
type FineReason string

const (
	FineLateReturn FineReason = "LATE_RETURN"
	FineDamaged    FineReason = "DAMAGED"
	FineLost       FineReason = "LOST"
)

// ParseFineReason parses a stored or submitted reason strictly.
func ParseFineReason(s string) (FineReason, error) {
	switch FineReason(s) {
	case FineLateReturn, FineDamaged, FineLost:
		return FineReason(s), nil
	default:
		return "", liberr.Validationf("unknown fine reason %q", s)
	}
}

// PaymentStatus moves forward only: once PAID or WAIVED, never back to UNPAID.
type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "UNPAID"
	PaymentPaid   PaymentStatus = "PAID"
	PaymentWaived PaymentStatus = "WAIVED"
)

// ParsePaymentStatus parses a stored or submitted payment status strictly.
func ParsePaymentStatus(s string) (PaymentStatus, error) {
	switch PaymentStatus(s) {
	case PaymentUnpaid, PaymentPaid, PaymentWaived:
		return PaymentStatus(s), nil
	default:
		return "", liberr.Validationf("unknown payment status %q", s)
	}
}

// Fine is a monetary obligation. Amounts are fixed-point decimals; PaidAt is
// set iff PaymentStatus is PAID.
type Fine struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	UserID      uuid.UUID       `json:"user_id" db:"user_id"`
	BorrowingID *uuid.UUID      `json:"borrowing_id,omitempty" db:"borrowing_id"`
	Amount      decimal.Decimal `json:"amount" db:"amount"`
	Reason      FineReason      `json:"reason" db:"reason"`
	Status      PaymentStatus   `json:"status" db:"status"`
	IssuedAt    time.Time       `json:"issued_at" db:"issued_at"`
	IssuedBy    uuid.UUID       `json:"issued_by" db:"issued_by"`
	PaidAt      *time.Time      `json:"paid_at,omitempty" db:"paid_at"`
	PaidMethod  *string         `json:"paid_method,omitempty" db:"paid_method"`
	ReceivedBy  *uuid.UUID      `json:"received_by,omitempty" db:"received_by"`
}
