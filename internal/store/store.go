// internal/store/store.go

// Package store defines the unit-of-work boundary between the circulation
// engines and the persistence layer. Engines never hold connections; they
// receive a transaction-scoped Tx carrying typed repositories, and every
// multi-row mutation commits or rolls back as one unit.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"libracore/internal/model"
)

// Store opens units of work. Implementations must run fn with serializable
// isolation with respect to other units touching the same copies or
// borrowings, with a bounded wait: contention surfaces as a
// liberr.KindConcurrency error, never a deadlock.
type Store interface {
	// Within runs fn inside a transaction. A nil return commits; any error
	// rolls back everything fn wrote.
	Within(ctx context.Context, fn func(tx Tx) error) error
	// View runs fn inside a read-only transaction.
	View(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is one unit of work. Repositories obtained from the same Tx share its
// transaction.
type Tx interface {
	Books() BookRepo
	Copies() CopyRepo
	Borrowings() BorrowingRepo
	Reservations() ReservationRepo
	Fines() FineRepo
}

// BookRepo persists catalog titles.
type BookRepo interface {
	Insert(ctx context.Context, b *model.Book) error
	Get(ctx context.Context, id uuid.UUID) (*model.Book, error)
	Update(ctx context.Context, b *model.Book) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, titleFilter string) ([]model.Book, error)
}

// CopyRepo persists physical copies. Status writes go through UpdateStatus
// only; the engines validate transitions before calling it.
type CopyRepo interface {
	Insert(ctx context.Context, c *model.BookCopy) error
	Get(ctx context.Context, id uuid.UUID) (*model.BookCopy, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.CopyStatus) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByBook(ctx context.Context, bookID uuid.UUID) ([]model.BookCopy, error)
	// MaxCopyNumber returns the highest copy number assigned for the book,
	// zero when the book has no copies.
	MaxCopyNumber(ctx context.Context, bookID uuid.UUID) (int, error)
	// FirstAvailable returns the AVAILABLE copy with the lowest copy number,
	// or nil when none exists.
	FirstAvailable(ctx context.Context, bookID uuid.UUID) (*model.BookCopy, error)
	CountByStatus(ctx context.Context, bookID uuid.UUID, status model.CopyStatus) (int, error)
	CountTotal(ctx context.Context, bookID uuid.UUID) (int, error)
}

// BorrowingRepo persists the loan ledger. Rows are never deleted; a loan is
// mutated exactly once, on close.
type BorrowingRepo interface {
	Insert(ctx context.Context, b *model.Borrowing) error
	Get(ctx context.Context, id uuid.UUID) (*model.Borrowing, error)
	// Close sets the return date and receiving staff id on an open loan.
	Close(ctx context.Context, id uuid.UUID, returnedAt time.Time, returnedTo uuid.UUID) error
	UpdateDueDate(ctx context.Context, id uuid.UUID, dueAt time.Time) error
	// OpenByCopy returns the open loan on a copy, nil when the copy is not
	// out.
	OpenByCopy(ctx context.Context, copyID uuid.UUID) (*model.Borrowing, error)
	// OpenByBookAndUser returns an open loan of any copy of the book held by
	// the user, nil when none exists.
	OpenByBookAndUser(ctx context.Context, bookID, userID uuid.UUID) (*model.Borrowing, error)
	// ListOverdue returns loans past due as of asOf: open loans whose due
	// date lies before asOf, plus loans that came back after their due date.
	ListOverdue(ctx context.Context, asOf time.Time) ([]model.Borrowing, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Borrowing, error)
	ListByCopy(ctx context.Context, copyID uuid.UUID) ([]model.Borrowing, error)
}

// ReservationRepo persists holds.
type ReservationRepo interface {
	Insert(ctx context.Context, r *model.Reservation) error
	Get(ctx context.Context, id uuid.UUID) (*model.Reservation, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.ReservationStatus) error
	// MarkNotified promotes a PENDING hold, binding it to the freed copy and
	// setting the claim deadline.
	MarkNotified(ctx context.Context, id, copyID uuid.UUID, notifiedAt, expiresAt time.Time) error
	// NextPending returns the oldest PENDING hold for the book by creation
	// time, ties broken by id ascending; nil when the queue is empty.
	NextPending(ctx context.Context, bookID uuid.UUID) (*model.Reservation, error)
	// PendingByBookAndUser returns the user's PENDING hold on the book, nil
	// when none exists.
	PendingByBookAndUser(ctx context.Context, bookID, userID uuid.UUID) (*model.Reservation, error)
	// ListExpirable returns PENDING and NOTIFIED holds whose expiry lies
	// before asOf.
	ListExpirable(ctx context.Context, asOf time.Time) ([]model.Reservation, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Reservation, error)
}

// FineRepo persists monetary obligations.
type FineRepo interface {
	Insert(ctx context.Context, f *model.Fine) error
	Get(ctx context.Context, id uuid.UUID) (*model.Fine, error)
	// ByBorrowingAndReason returns the fine tied to a borrowing with the
	// given reason, nil when none exists. Backs assessOverdue idempotency.
	ByBorrowingAndReason(ctx context.Context, borrowingID uuid.UUID, reason model.FineReason) (*model.Fine, error)
	MarkPaid(ctx context.Context, id uuid.UUID, paidAt time.Time, method string, receivedBy uuid.UUID) error
	MarkWaived(ctx context.Context, id uuid.UUID) error
	// SumUnpaid totals the user's UNPAID fines.
	SumUnpaid(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Fine, error)
}
