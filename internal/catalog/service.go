// internal/catalog/service.go
package catalog

import (
	"context"

	"github.com/google/uuid"

	"libracore/internal/model"
)

// AddBookParams carries the caller-supplied fields for a new title.
type AddBookParams struct {
	Title     string   `json:"title"`
	ISBN      string   `json:"isbn"`
	Authors   []string `json:"authors"`
	Publisher string   `json:"publisher"`
	Year      int      `json:"year"`
	Language  string   `json:"language"`
	Pages     int      `json:"pages"`
}

// Service defines the interface for the catalog service. The circulation
// engine reads book identity through it and never mutates catalog data.
type Service interface {
	AddBook(ctx context.Context, params AddBookParams) (*model.Book, error)
	GetBook(ctx context.Context, id uuid.UUID) (*model.Book, error)
	UpdateBook(ctx context.Context, book *model.Book) (*model.Book, error)
	RemoveBook(ctx context.Context, id uuid.UUID) error
	ListBooks(ctx context.Context, titleFilter string) ([]model.Book, error)
}
