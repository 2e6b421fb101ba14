// internal/registry/implementation.go
package registry

import (
	"context"
	"time"

	"github.com/google/uuid"

	"libracore/internal/liberr"
	"libracore/internal/model"
	"libracore/internal/store"
)

// service implements the Service interface.
type service struct {
	store store.Store
	now   func() time.Time
}

// NewService creates a new copy registry instance.
func NewService(st store.Store) Service {
	return &service{
		store: st,
		now:   time.Now,
	}
}

// RegisterCopy adds a copy to inventory in AVAILABLE status, assigning the
// next sequential copy number for the book (starting at 1).
func (s *service) RegisterCopy(ctx context.Context, params RegisterCopyParams) (*model.BookCopy, error) {
	copy := &model.BookCopy{
		ID:            uuid.New(),
		BookID:        params.BookID,
		Status:        model.CopyAvailable,
		AcquiredAt:    s.now().UTC(),
		ShelfLocation: params.ShelfLocation,
		Notes:         params.Notes,
	}

	err := s.store.Within(ctx, func(tx store.Tx) error {
		if _, err := tx.Books().Get(ctx, params.BookID); err != nil {
			return err
		}
		max, err := tx.Copies().MaxCopyNumber(ctx, params.BookID)
		if err != nil {
			return err
		}
		copy.CopyNumber = max + 1
		return tx.Copies().Insert(ctx, copy)
	})
	if err != nil {
		return nil, err
	}
	return copy, nil
}

// GetCopy retrieves a copy by its id.
func (s *service) GetCopy(ctx context.Context, id uuid.UUID) (*model.BookCopy, error) {
	var copy *model.BookCopy
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		copy, err = tx.Copies().Get(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return copy, nil
}

// SetStatus applies a status without transition validation.
func (s *service) SetStatus(ctx context.Context, id uuid.UUID, status model.CopyStatus) error {
	return s.store.Within(ctx, func(tx store.Tx) error {
		return tx.Copies().UpdateStatus(ctx, id, status)
	})
}

// Restore returns a LOST or DAMAGED copy to AVAILABLE.
func (s *service) Restore(ctx context.Context, id uuid.UUID) error {
	return s.store.Within(ctx, func(tx store.Tx) error {
		copy, err := tx.Copies().Get(ctx, id)
		if err != nil {
			return err
		}
		if copy.Status != model.CopyLost && copy.Status != model.CopyDamaged {
			return liberr.Conflictf("copy %s is %s, only LOST or DAMAGED copies can be restored", id, copy.Status)
		}
		return tx.Copies().UpdateStatus(ctx, id, model.CopyAvailable)
	})
}

// MarkCondition marks an AVAILABLE or RESERVED copy LOST or DAMAGED.
func (s *service) MarkCondition(ctx context.Context, id uuid.UUID, status model.CopyStatus) error {
	if status != model.CopyLost && status != model.CopyDamaged {
		return liberr.Validationf("condition must be LOST or DAMAGED, got %s", status)
	}
	return s.store.Within(ctx, func(tx store.Tx) error {
		copy, err := tx.Copies().Get(ctx, id)
		if err != nil {
			return err
		}
		if copy.Status == model.CopyBorrowed {
			return liberr.Conflictf("copy %s is on loan, report its condition through circulation", id)
		}
		if !model.CanTransition(copy.Status, status) {
			return liberr.Conflictf("copy %s cannot move from %s to %s", id, copy.Status, status)
		}
		return tx.Copies().UpdateStatus(ctx, id, status)
	})
}

// RemoveCopy deletes a copy from inventory. Copies with an open loan stay.
func (s *service) RemoveCopy(ctx context.Context, id uuid.UUID) error {
	return s.store.Within(ctx, func(tx store.Tx) error {
		if _, err := tx.Copies().Get(ctx, id); err != nil {
			return err
		}
		open, err := tx.Borrowings().OpenByCopy(ctx, id)
		if err != nil {
			return err
		}
		if open != nil {
			return liberr.Conflictf("copy %s has an open borrowing", id)
		}
		return tx.Copies().Delete(ctx, id)
	})
}

// ListCopies returns all copies of a book ordered by copy number.
func (s *service) ListCopies(ctx context.Context, bookID uuid.UUID) ([]model.BookCopy, error) {
	var copies []model.BookCopy
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		copies, err = tx.Copies().ListByBook(ctx, bookID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return copies, nil
}

// CountAvailable counts the book's AVAILABLE copies.
func (s *service) CountAvailable(ctx context.Context, bookID uuid.UUID) (int, error) {
	var n int
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		n, err = tx.Copies().CountByStatus(ctx, bookID, model.CopyAvailable)
		return err
	})
	return n, err
}

// CountTotal counts all copies of the book.
func (s *service) CountTotal(ctx context.Context, bookID uuid.UUID) (int, error) {
	var n int
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		n, err = tx.Copies().CountTotal(ctx, bookID)
		return err
	})
	return n, err
}
