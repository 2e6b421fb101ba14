// internal/registry/service.go
package registry

import (
	"context"

	"github.com/google/uuid"

	"libracore/internal/model"
)

// RegisterCopyParams carries the caller-supplied fields for a new copy.
type RegisterCopyParams struct {
	BookID        uuid.UUID `json:"book_id"`
	ShelfLocation string    `json:"shelf_location"`
	Notes         string    `json:"notes"`
}

// Service is the copy registry: the single source of truth for whether a
// specific physical item is lendable right now. Status is mutated only
// through the circulation and fine engines, which validate transitions
// before calling SetStatus.
type Service interface {
	RegisterCopy(ctx context.Context, params RegisterCopyParams) (*model.BookCopy, error)
	GetCopy(ctx context.Context, id uuid.UUID) (*model.BookCopy, error)
	// SetStatus applies a status unconditionally; the caller is responsible
	// for having validated the transition.
	SetStatus(ctx context.Context, id uuid.UUID, status model.CopyStatus) error
	// Restore is the explicit administrative re-entry of a LOST or DAMAGED
	// copy into circulation.
	Restore(ctx context.Context, id uuid.UUID) error
	// MarkCondition administratively marks a non-borrowed copy LOST or
	// DAMAGED (shelf audits; borrowed copies go through the circulation
	// engine's report operation instead).
	MarkCondition(ctx context.Context, id uuid.UUID, status model.CopyStatus) error
	RemoveCopy(ctx context.Context, id uuid.UUID) error
	ListCopies(ctx context.Context, bookID uuid.UUID) ([]model.BookCopy, error)
	CountAvailable(ctx context.Context, bookID uuid.UUID) (int, error)
	CountTotal(ctx context.Context, bookID uuid.UUID) (int, error)
}
