// internal/model/copy.go
package model

import (
	"time"

	"github.com/google/uuid"

	"libracore/internal/liberr"
)

// CopyStatus is the lending state of one physical copy.
type CopyStatus string

const (
	CopyAvailable CopyStatus = "AVAILABLE"
	CopyBorrowed  CopyStatus = "BORROWED"
	CopyReserved  CopyStatus = "RESERVED"
	CopyLost      CopyStatus = "LOST"
	CopyDamaged   CopyStatus = "DAMAGED"
)

// ParseCopyStatus parses a stored or submitted status value. Unknown input is
// a validation error, never a silent default.
func ParseCopyStatus(s string) (CopyStatus, error) {
	switch CopyStatus(s) {
	case CopyAvailable, CopyBorrowed, CopyReserved, CopyLost, CopyDamaged:
		return CopyStatus(s), nil
	default:
		return "", liberr.Validationf("unknown copy status %q", s)
	}
}

// copyTransitions lists the legal status moves. LOST and DAMAGED exit only
// through the explicit administrative repair/replace transition back to
// AVAILABLE.
var copyTransitions = map[CopyStatus][]CopyStatus{
	CopyAvailable: {CopyBorrowed, CopyLost, CopyDamaged},
	CopyBorrowed:  {CopyAvailable, CopyReserved, CopyLost, CopyDamaged},
	CopyReserved:  {CopyBorrowed, CopyAvailable, CopyLost, CopyDamaged},
	CopyLost:      {CopyAvailable},
	CopyDamaged:   {CopyAvailable},
}

// CanTransition reports whether a copy may move from one status to another.
func CanTransition(from, to CopyStatus) bool {
	for _, next := range copyTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// BookCopy is one physical, individually tracked instance of a Book.
type BookCopy struct {
	ID            uuid.UUID  `json:"id" db:"id"`
	BookID        uuid.UUID  `json:"book_id" db:"book_id"`
	CopyNumber    int        `json:"copy_number" db:"copy_number"`
	Status        CopyStatus `json:"status" db:"status"`
	AcquiredAt    time.Time  `json:"acquired_at" db:"acquired_at"`
	ShelfLocation string     `json:"shelf_location" db:"shelf_location"`
	Notes         string     `json:"notes" db:"notes"`
}
