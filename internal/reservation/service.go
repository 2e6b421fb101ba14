// internal/reservation/service.go
package reservation

import (
	"context"
	"time"

	"github.com/google/uuid"

	"libracore/internal/model"
)

// Service is the reservation queue: a per-book FIFO of pending holds.
// Claiming a notified hold is a loan-creating operation and lives on the
// circulation engine.
type Service interface {
	// PlaceHold queues a hold on a title. Rejected while an AVAILABLE copy
	// exists (check out directly instead) or while the user already has a
	// PENDING hold on the book.
	PlaceHold(ctx context.Context, bookID, userID uuid.UUID, ttlDays int) (*model.Reservation, error)
	// Cancel withdraws a PENDING or NOTIFIED hold. A cancelled NOTIFIED
	// hold releases its reserved copy to the next hold in line.
	Cancel(ctx context.Context, reservationID uuid.UUID) error
	// NextPending returns the oldest PENDING hold for a book, nil when the
	// queue is empty.
	NextPending(ctx context.Context, bookID uuid.UUID) (*model.Reservation, error)
	// ExpireOverdueHolds expires every PENDING or NOTIFIED hold whose expiry
	// has passed, releasing reserved copies down the queue. Each hold is its
	// own atomic step; the batch honors context cancellation between steps.
	// Returns the number of holds expired.
	ExpireOverdueHolds(ctx context.Context, now time.Time) (int, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Reservation, error)
	Get(ctx context.Context, reservationID uuid.UUID) (*model.Reservation, error)
}
