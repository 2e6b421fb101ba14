// internal/catalog/implementation.go
package catalog

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

// NewService creates a new catalog service instance.
func NewService(st store.Store) Service {
	return &service{
		store: st,
		now:   time.Now,
	}
}

// AddBook creates a new title in the catalog. The ISBN must be unique.
func (s *service) AddBook(ctx context.Context, params AddBookParams) (*model.Book, error) {
	book := &model.Book{
		ID:        uuid.New(),
		Title:     params.Title,
		ISBN:      params.ISBN,
		Authors:   params.Authors,
		Publisher: params.Publisher,
		Year:      params.Year,
		Language:  params.Language,
		Pages:     params.Pages,
		CreatedAt: s.now().UTC(),
	}
	if err := book.Validate(); err != nil {
		return nil, err
	}

	err := s.store.Within(ctx, func(tx store.Tx) error {
		return tx.Books().Insert(ctx, book)
	})
	if err != nil {
		return nil, err
	}
	return book, nil
}

// GetBook retrieves a title by its id.
func (s *service) GetBook(ctx context.Context, id uuid.UUID) (*model.Book, error) {
	var book *model.Book
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		book, err = tx.Books().Get(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return book, nil
}

// UpdateBook replaces a title's editable fields.
func (s *service) UpdateBook(ctx context.Context, book *model.Book) (*model.Book, error) {
	if err := book.Validate(); err != nil {
		return nil, err
	}
	err := s.store.Within(ctx, func(tx store.Tx) error {
		return tx.Books().Update(ctx, book)
	})
	if err != nil {
		return nil, err
	}
	return book, nil
}

// RemoveBook deletes a title. Titles with registered copies cannot be
// removed; the copies go first, through the registry.
func (s *service) RemoveBook(ctx context.Context, id uuid.UUID) error {
	return s.store.Within(ctx, func(tx store.Tx) error {
		total, err := tx.Copies().CountTotal(ctx, id)
		if err != nil {
			return err
		}
		if total > 0 {
			return liberr.Conflictf("book %s still has %d registered copies", id, total)
		}
		return tx.Books().Delete(ctx, id)
	})
}

// ListBooks returns titles, optionally filtered by a title substring.
func (s *service) ListBooks(ctx context.Context, titleFilter string) ([]model.Book, error) {
	var books []model.Book
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		books, err = tx.Books().List(ctx, titleFilter)
		return err
	})
	if err != nil {
		return nil, err
	}
	return books, nil
}
