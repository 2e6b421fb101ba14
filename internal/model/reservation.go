// internal/model/reservation.go
package model

import (
	"time"

	"github.com/google/uuid"

	"libracore/internal/liberr"
)

// ReservationStatus moves forward only; there are no back-transitions.
type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "PENDING"
	ReservationNotified  ReservationStatus = "NOTIFIED"
	ReservationFulfilled ReservationStatus = "FULFILLED"
	ReservationExpired   ReservationStatus = "EXPIRED"
	ReservationCancelled ReservationStatus = "CANCELLED"
)

// ParseReservationStatus parses a stored or submitted status value strictly.
func ParseReservationStatus(s string) (ReservationStatus, error) {
	switch ReservationStatus(s) {
	case ReservationPending, ReservationNotified, ReservationFulfilled,
		ReservationExpired, ReservationCancelled:
		return ReservationStatus(s), nil
	default:
		return "", liberr.Validationf("unknown reservation status %q", s)
	}
}

// Reservation is a hold on a title, not on a specific copy. CopyID is set
// once the hold is promoted to NOTIFIED and a freed copy is bound to it.
type Reservation struct {
	ID         uuid.UUID         `json:"id" db:"id"`
	BookID     uuid.UUID         `json:"book_id" db:"book_id"`
	UserID     uuid.UUID         `json:"user_id" db:"user_id"`
	Status     ReservationStatus `json:"status" db:"status"`
	CopyID     *uuid.UUID        `json:"copy_id,omitempty" db:"copy_id"`
	CreatedAt  time.Time         `json:"created_at" db:"created_at"`
	ExpiresAt  time.Time         `json:"expires_at" db:"expires_at"`
	NotifiedAt *time.Time        `json:"notified_at,omitempty" db:"notified_at"`
}
