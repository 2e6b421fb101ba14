// internal/store/memory/memory_test.go
package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libracore/internal/liberr"
	"libracore/internal/model"
	"libracore/internal/store"
	"libracore/internal/store/memory"
)

func seedBook(t *testing.T, m *memory.Memory) model.Book {
	t.Helper()
	book := model.Book{
		ID:        uuid.New(),
		Title:     "Dune",
		ISBN:      uuid.NewString(),
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, m.Within(context.Background(), func(tx store.Tx) error {
		return tx.Books().Insert(context.Background(), &book)
	}))
	return book
}

func TestWithinCommitsOnSuccess(t *testing.T) {
	m := memory.New()
	book := seedBook(t, m)

	err := m.View(context.Background(), func(tx store.Tx) error {
		got, err := tx.Books().Get(context.Background(), book.ID)
		require.NoError(t, err)
		assert.Equal(t, "Dune", got.Title)
		return nil
	})
	require.NoError(t, err)
}

func TestWithinDiscardsOnError(t *testing.T) {
	m := memory.New()
	boom := errors.New("boom")

	bookID := uuid.New()
	err := m.Within(context.Background(), func(tx store.Tx) error {
		require.NoError(t, tx.Books().Insert(context.Background(), &model.Book{
			ID: bookID, Title: "Ghost", ISBN: "x",
		}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	err = m.View(context.Background(), func(tx store.Tx) error {
		_, err := tx.Books().Get(context.Background(), bookID)
		assert.True(t, liberr.IsNotFound(err))
		return nil
	})
	require.NoError(t, err)
}

func TestViewDiscardsWrites(t *testing.T) {
	m := memory.New()
	bookID := uuid.New()

	require.NoError(t, m.View(context.Background(), func(tx store.Tx) error {
		return tx.Books().Insert(context.Background(), &model.Book{ID: bookID, Title: "x", ISBN: "y"})
	}))

	err := m.View(context.Background(), func(tx store.Tx) error {
		_, err := tx.Books().Get(context.Background(), bookID)
		assert.True(t, liberr.IsNotFound(err))
		return nil
	})
	require.NoError(t, err)
}

func TestOneOpenBorrowingPerCopy(t *testing.T) {
	m := memory.New()
	copyID := uuid.New()
	now := time.Now().UTC()

	open := func(id uuid.UUID) *model.Borrowing {
		return &model.Borrowing{
			ID: id, CopyID: copyID, BookID: uuid.New(), UserID: uuid.New(),
			BorrowedAt: now, DueAt: now.AddDate(0, 0, 14),
		}
	}

	err := m.Within(context.Background(), func(tx store.Tx) error {
		return tx.Borrowings().Insert(context.Background(), open(uuid.New()))
	})
	require.NoError(t, err)

	err = m.Within(context.Background(), func(tx store.Tx) error {
		return tx.Borrowings().Insert(context.Background(), open(uuid.New()))
	})
	assert.True(t, liberr.IsConflict(err))

	// A closed loan on the same copy is fine.
	returned := now
	closed := open(uuid.New())
	closed.ReturnedAt = &returned
	err = m.Within(context.Background(), func(tx store.Tx) error {
		return tx.Borrowings().Insert(context.Background(), closed)
	})
	require.NoError(t, err)
}

func TestBoundedLockWait(t *testing.T) {
	m := memory.New()
	m.SetLockWait(50 * time.Millisecond)

	holding := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = m.Within(context.Background(), func(store.Tx) error {
			close(holding)
			<-release
			return nil
		})
	}()
	<-holding
	defer close(release)

	err := m.Within(context.Background(), func(store.Tx) error { return nil })
	assert.True(t, liberr.IsConcurrency(err))
}

func TestLockWaitHonorsContext(t *testing.T) {
	m := memory.New()

	holding := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = m.Within(context.Background(), func(store.Tx) error {
			close(holding)
			<-release
			return nil
		})
	}()
	<-holding
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := m.Within(ctx, func(store.Tx) error { return nil })
	assert.True(t, liberr.IsConcurrency(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNextPendingIsFIFO(t *testing.T) {
	m := memory.New()
	bookID := uuid.New()
	base := time.Now().UTC()

	first := uuid.New()
	second := uuid.New()
	err := m.Within(context.Background(), func(tx store.Tx) error {
		if err := tx.Reservations().Insert(context.Background(), &model.Reservation{
			ID: second, BookID: bookID, UserID: uuid.New(),
			Status: model.ReservationPending, CreatedAt: base.Add(time.Minute),
		}); err != nil {
			return err
		}
		return tx.Reservations().Insert(context.Background(), &model.Reservation{
			ID: first, BookID: bookID, UserID: uuid.New(),
			Status: model.ReservationPending, CreatedAt: base,
		})
	})
	require.NoError(t, err)

	err = m.View(context.Background(), func(tx store.Tx) error {
		next, err := tx.Reservations().NextPending(context.Background(), bookID)
		require.NoError(t, err)
		require.NotNil(t, next)
		assert.Equal(t, first, next.ID)
		return nil
	})
	require.NoError(t, err)
}

func TestFirstAvailablePicksLowestCopyNumber(t *testing.T) {
	m := memory.New()
	bookID := uuid.New()

	err := m.Within(context.Background(), func(tx store.Tx) error {
		for n, status := range map[int]model.CopyStatus{
			1: model.CopyBorrowed,
			2: model.CopyAvailable,
			3: model.CopyAvailable,
		} {
			if err := tx.Copies().Insert(context.Background(), &model.BookCopy{
				ID: uuid.New(), BookID: bookID, CopyNumber: n, Status: status,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	err = m.View(context.Background(), func(tx store.Tx) error {
		got, err := tx.Copies().FirstAvailable(context.Background(), bookID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, 2, got.CopyNumber)
		return nil
	})
	require.NoError(t, err)
}
