// internal/reservation/implementation.go
package reservation

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"libracore/internal/liberr"
	"libracore/internal/model"
	"libracore/internal/notify"
	"libracore/internal/store"
)

// Config carries the queue's policy knobs.
type Config struct {
	// ClaimWindow is how long a NOTIFIED hold waits for its reserver before
	// it expires and the copy moves down the queue.
	ClaimWindow time.Duration
}

// DefaultConfig matches a three-day pickup window.
func DefaultConfig() Config {
	return Config{ClaimWindow: 3 * 24 * time.Hour}
}

// service implements the Service interface.
type service struct {
	store    store.Store
	notifier notify.Notifier
	logger   *slog.Logger
	cfg      Config
	now      func() time.Time
}

// NewService creates a new reservation queue instance.
func NewService(st store.Store, notifier notify.Notifier, logger *slog.Logger, cfg Config) Service {
	return &service{
		store:    st,
		notifier: notifier,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
	}
}

// PlaceHold queues a PENDING hold on a title.
func (s *service) PlaceHold(ctx context.Context, bookID, userID uuid.UUID, ttlDays int) (*model.Reservation, error) {
	if ttlDays <= 0 {
		return nil, liberr.Validationf("hold ttl must be positive, got %d days", ttlDays)
	}

	now := s.now().UTC()
	hold := &model.Reservation{
		ID:        uuid.New(),
		BookID:    bookID,
		UserID:    userID,
		Status:    model.ReservationPending,
		CreatedAt: now,
		ExpiresAt: now.AddDate(0, 0, ttlDays),
	}

	err := s.store.Within(ctx, func(tx store.Tx) error {
		if _, err := tx.Books().Get(ctx, bookID); err != nil {
			return err
		}
		existing, err := tx.Reservations().PendingByBookAndUser(ctx, bookID, userID)
		if err != nil {
			return err
		}
		if existing != nil {
			return liberr.Conflictf("user %s already holds a pending reservation on book %s", userID, bookID)
		}
		available, err := tx.Copies().CountByStatus(ctx, bookID, model.CopyAvailable)
		if err != nil {
			return err
		}
		if available > 0 {
			return liberr.Conflictf("book %s has an available copy, check it out instead of holding", bookID)
		}
		return tx.Reservations().Insert(ctx, hold)
	})
	if err != nil {
		return nil, err
	}
	return hold, nil
}

// Cancel withdraws a hold. Reserved copies flow to the next hold in line.
func (s *service) Cancel(ctx context.Context, reservationID uuid.UUID) error {
	var promoted *model.Reservation
	err := s.store.Within(ctx, func(tx store.Tx) error {
		hold, err := tx.Reservations().Get(ctx, reservationID)
		if err != nil {
			return err
		}
		if hold.Status != model.ReservationPending && hold.Status != model.ReservationNotified {
			return liberr.Conflictf("reservation %s is %s and cannot be cancelled", reservationID, hold.Status)
		}
		if err := tx.Reservations().UpdateStatus(ctx, reservationID, model.ReservationCancelled); err != nil {
			return err
		}
		promoted, err = s.releaseBoundCopy(ctx, tx, hold, s.now().UTC())
		return err
	})
	if err != nil {
		return err
	}
	s.notifyPromoted(ctx, promoted)
	return nil
}

// NextPending returns the head of a book's queue.
func (s *service) NextPending(ctx context.Context, bookID uuid.UUID) (*model.Reservation, error) {
	var next *model.Reservation
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		next, err = tx.Reservations().NextPending(ctx, bookID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return next, nil
}

// ExpireOverdueHolds expires lapsed holds one atomic step at a time.
func (s *service) ExpireOverdueHolds(ctx context.Context, now time.Time) (int, error) {
	var lapsed []model.Reservation
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		lapsed, err = tx.Reservations().ListExpirable(ctx, now)
		return err
	})
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, hold := range lapsed {
		if err := ctx.Err(); err != nil {
			return expired, liberr.Wrap(liberr.KindConcurrency, "expiry sweep cancelled", err)
		}
		holdID := hold.ID
		var promoted *model.Reservation
		err := s.store.Within(ctx, func(tx store.Tx) error {
			current, err := tx.Reservations().Get(ctx, holdID)
			if err != nil {
				return err
			}
			// A hold promoted or claimed since the listing is no longer
			// expirable; skip it.
			if current.Status != model.ReservationPending && current.Status != model.ReservationNotified {
				return nil
			}
			if current.ExpiresAt.After(now) {
				return nil
			}
			if err := tx.Reservations().UpdateStatus(ctx, holdID, model.ReservationExpired); err != nil {
				return err
			}
			expired++
			promoted, err = s.releaseBoundCopy(ctx, tx, current, now)
			return err
		})
		if err != nil {
			return expired, err
		}
		s.notifyPromoted(ctx, promoted)
	}

	if expired > 0 {
		s.logger.InfoContext(ctx, "holds expired", "count", expired)
	}
	return expired, nil
}

// releaseBoundCopy frees the copy a NOTIFIED hold had reserved, offering it
// to the next hold in line. PENDING holds have no bound copy. The claim
// deadline of a chained promotion starts at the given instant.
func (s *service) releaseBoundCopy(ctx context.Context, tx store.Tx, hold *model.Reservation, now time.Time) (*model.Reservation, error) {
	if hold.CopyID == nil {
		return nil, nil
	}
	copy, err := tx.Copies().Get(ctx, *hold.CopyID)
	if err != nil {
		return nil, err
	}
	if copy.Status != model.CopyReserved {
		return nil, nil
	}
	return PromoteNext(ctx, tx, hold.BookID, copy.ID, now, s.cfg.ClaimWindow)
}

func (s *service) notifyPromoted(ctx context.Context, promoted *model.Reservation) {
	if promoted == nil {
		return
	}
	s.notifier.Notify(ctx, promoted.UserID, notify.EventHoldReady, map[string]any{
		"reservation_id": promoted.ID.String(),
		"book_id":        promoted.BookID.String(),
		"expires_at":     promoted.ExpiresAt,
	})
}

// ListByUser returns a user's holds oldest first.
func (s *service) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Reservation, error) {
	var out []model.Reservation
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		out, err = tx.Reservations().ListByUser(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Get retrieves a hold by id.
func (s *service) Get(ctx context.Context, reservationID uuid.UUID) (*model.Reservation, error) {
	var hold *model.Reservation
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		hold, err = tx.Reservations().Get(ctx, reservationID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return hold, nil
}
