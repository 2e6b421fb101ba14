// internal/reservation/promotion.go
package reservation

import (
	"context"
	"time"

	"github.com/google/uuid"

	"libracore/internal/model"
	"libracore/internal/store"
)

// PromoteNext hands a freed copy to the oldest PENDING hold on its book, or
// releases it. When a hold is in line the copy moves to RESERVED and the hold
// becomes NOTIFIED with a fresh claim deadline; otherwise the copy becomes
// AVAILABLE. Runs inside the caller's unit of work so the copy status and the
// hold promotion commit together. Returns the promoted hold, nil when the
// queue was empty.
func PromoteNext(ctx context.Context, tx store.Tx, bookID, copyID uuid.UUID, now time.Time, claimWindow time.Duration) (*model.Reservation, error) {
	next, err := tx.Reservations().NextPending(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if next == nil {
		if err := tx.Copies().UpdateStatus(ctx, copyID, model.CopyAvailable); err != nil {
			return nil, err
		}
		return nil, nil
	}

	if err := tx.Copies().UpdateStatus(ctx, copyID, model.CopyReserved); err != nil {
		return nil, err
	}
	if err := tx.Reservations().MarkNotified(ctx, next.ID, copyID, now, now.Add(claimWindow)); err != nil {
		return nil, err
	}

	next.Status = model.ReservationNotified
	next.CopyID = &copyID
	next.NotifiedAt = &now
	next.ExpiresAt = now.Add(claimWindow)
	return next, nil
}
