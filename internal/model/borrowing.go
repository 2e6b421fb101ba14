// internal/model/borrowing.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// BorrowingStatus is derived from the return date and due date, never stored.
type BorrowingStatus string

const (
	BorrowingActive   BorrowingStatus = "ACTIVE"
	BorrowingOverdue  BorrowingStatus = "OVERDUE"
	BorrowingReturned BorrowingStatus = "RETURNED"
)

// Borrowing is one loan event on a specific copy. ReturnedAt == nil means the
// loan is open.
type Borrowing struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	CopyID     uuid.UUID  `json:"copy_id" db:"copy_id"`
	BookID     uuid.UUID  `json:"book_id" db:"book_id"`
	UserID     uuid.UUID  `json:"user_id" db:"user_id"`
	IssuedBy   uuid.UUID  `json:"issued_by" db:"issued_by"`
	BorrowedAt time.Time  `json:"borrowed_at" db:"borrowed_at"`
	DueAt      time.Time  `json:"due_at" db:"due_at"`
	ReturnedAt *time.Time `json:"returned_at,omitempty" db:"returned_at"`
	ReturnedTo *uuid.UUID `json:"returned_to,omitempty" db:"returned_to"`
}

// Open reports whether the loan has not been returned yet.
func (b *Borrowing) Open() bool { return b.ReturnedAt == nil }

// StatusAt computes the derived status at the given instant.
func (b *Borrowing) StatusAt(now time.Time) BorrowingStatus {
	if b.ReturnedAt != nil {
		return BorrowingReturned
	}
	if DaysBetween(b.DueAt, now) > 0 {
		return BorrowingOverdue
	}
	return BorrowingActive
}

// DaysLateAt returns how many whole days past due the loan is (or was, if
// returned). Never negative.
func (b *Borrowing) DaysLateAt(now time.Time) int {
	end := now
	if b.ReturnedAt != nil {
		end = *b.ReturnedAt
	}
	if d := DaysBetween(b.DueAt, end); d > 0 {
		return d
	}
	return 0
}

// DaysBetween counts whole calendar days from one instant's date to
// another's, in UTC. Negative when to precedes from.
func DaysBetween(from, to time.Time) int {
	f := DateOf(from)
	t := DateOf(to)
	return int(t.Sub(f).Hours() / 24)
}

// DateOf truncates an instant to its UTC calendar date.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
