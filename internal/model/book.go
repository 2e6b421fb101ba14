// internal/model/book.go
package model

import (
	"time"

	"github.com/google/uuid"

	"libracore/internal/liberr"
)

// Book is a catalog title. Physical inventory is tracked per BookCopy.
type Book struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Title     string    `json:"title" db:"title"`
	ISBN      string    `json:"isbn" db:"isbn"`
	Authors   []string  `json:"authors" db:"authors"`
	Publisher string    `json:"publisher" db:"publisher"`
	Year      int       `json:"year" db:"year"`
	Language  string    `json:"language" db:"language"`
	Pages     int       `json:"pages" db:"pages"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Validate checks the fields a caller controls before the book is stored.
func (b *Book) Validate() error {
	if b.Title == "" {
		return liberr.Validationf("book title must not be empty")
	}
	if b.ISBN == "" {
		return liberr.Validationf("book isbn must not be empty")
	}
	if b.Year < 0 {
		return liberr.Validationf("book year must not be negative")
	}
	if b.Pages < 0 {
		return liberr.Validationf("book page count must not be negative")
	}
	return nil
}
