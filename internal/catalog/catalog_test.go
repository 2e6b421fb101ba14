// internal/catalog/catalog_test.go
package catalog_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libracore/internal/catalog"
	"libracore/internal/liberr"
	"libracore/internal/model"
	"libracore/internal/store"
	"libracore/internal/store/memory"
)

func newService(t *testing.T) (catalog.Service, *memory.Memory) {
	t.Helper()
	m := memory.New()
	return catalog.NewService(m), m
}

func TestAddAndGetBook(t *testing.T) {
	svc, _ := newService(t)

	book, err := svc.AddBook(context.Background(), catalog.AddBookParams{
		Title:   "Snow Crash",
		ISBN:    "978-0553380958",
		Authors: []string{"Neal Stephenson"},
		Year:    1992,
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, book.ID)

	got, err := svc.GetBook(context.Background(), book.ID)
	require.NoError(t, err)
	assert.Equal(t, "Snow Crash", got.Title)
	assert.Equal(t, []string{"Neal Stephenson"}, got.Authors)
}

func TestAddBookRejectsDuplicateISBN(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.AddBook(context.Background(), catalog.AddBookParams{Title: "A", ISBN: "isbn-1"})
	require.NoError(t, err)

	_, err = svc.AddBook(context.Background(), catalog.AddBookParams{Title: "B", ISBN: "isbn-1"})
	assert.True(t, liberr.IsConflict(err))
}

func TestAddBookValidates(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.AddBook(context.Background(), catalog.AddBookParams{ISBN: "isbn-1"})
	assert.True(t, liberr.IsValidation(err))
}

func TestGetBookNotFound(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.GetBook(context.Background(), uuid.New())
	assert.True(t, liberr.IsNotFound(err))
}

func TestRemoveBookBlockedByCopies(t *testing.T) {
	svc, m := newService(t)

	book, err := svc.AddBook(context.Background(), catalog.AddBookParams{Title: "A", ISBN: "isbn-1"})
	require.NoError(t, err)

	require.NoError(t, m.Within(context.Background(), func(tx store.Tx) error {
		return tx.Copies().Insert(context.Background(), &model.BookCopy{
			ID: uuid.New(), BookID: book.ID, CopyNumber: 1, Status: model.CopyAvailable,
		})
	}))

	err = svc.RemoveBook(context.Background(), book.ID)
	assert.True(t, liberr.IsConflict(err))

	// Still listed.
	books, err := svc.ListBooks(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, books, 1)
}

func TestRemoveBookWithoutCopies(t *testing.T) {
	svc, _ := newService(t)

	book, err := svc.AddBook(context.Background(), catalog.AddBookParams{Title: "A", ISBN: "isbn-1"})
	require.NoError(t, err)

	require.NoError(t, svc.RemoveBook(context.Background(), book.ID))

	_, err = svc.GetBook(context.Background(), book.ID)
	assert.True(t, liberr.IsNotFound(err))
}

func TestListBooksFiltersByTitle(t *testing.T) {
	svc, _ := newService(t)

	for _, b := range []catalog.AddBookParams{
		{Title: "The Left Hand of Darkness", ISBN: "isbn-1"},
		{Title: "A Wizard of Earthsea", ISBN: "isbn-2"},
		{Title: "The Dispossessed", ISBN: "isbn-3"},
	} {
		_, err := svc.AddBook(context.Background(), b)
		require.NoError(t, err)
	}

	books, err := svc.ListBooks(context.Background(), "the")
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, "The Dispossessed", books[0].Title)
	assert.Equal(t, "The Left Hand of Darkness", books[1].Title)
}

func TestUpdateBook(t *testing.T) {
	svc, _ := newService(t)

	book, err := svc.AddBook(context.Background(), catalog.AddBookParams{Title: "Drafty", ISBN: "isbn-1"})
	require.NoError(t, err)

	book.Title = "Final"
	updated, err := svc.UpdateBook(context.Background(), book)
	require.NoError(t, err)
	assert.Equal(t, "Final", updated.Title)

	got, err := svc.GetBook(context.Background(), book.ID)
	require.NoError(t, err)
	assert.Equal(t, "Final", got.Title)
}
