// internal/circulation/circulation_test.go
package circulation

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libracore/internal/fines"
	"libracore/internal/liberr"
	"libracore/internal/model"
	"libracore/internal/notify"
	"libracore/internal/store"
	"libracore/internal/store/memory"
)

type capturedNote struct {
	userID uuid.UUID
	event  notify.Event
}

type captureNotifier struct {
	notes []capturedNote
}

func (n *captureNotifier) Notify(_ context.Context, userID uuid.UUID, event notify.Event, _ map[string]any) {
	n.notes = append(n.notes, capturedNote{userID: userID, event: event})
}

func (n *captureNotifier) eventsFor(userID uuid.UUID) []notify.Event {
	var out []notify.Event
	for _, note := range n.notes {
		if note.userID == userID {
			out = append(out, note.event)
		}
	}
	return out
}

type fixture struct {
	svc      *service
	fines    fines.Service
	store    *memory.Memory
	notifier *captureNotifier
	bookID   uuid.UUID
	copyIDs  []uuid.UUID
	staff    uuid.UUID
	now      time.Time
}

func newFixture(t *testing.T, copies int) *fixture {
	t.Helper()
	m := memory.New()
	notifier := &captureNotifier{}
	logger := slog.New(slog.DiscardHandler)
	finesSvc := fines.NewService(m, logger)
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	svc := NewService(m, finesSvc, notifier, logger, DefaultConfig()).(*service)
	svc.now = func() time.Time { return now }

	f := &fixture{
		svc: svc, fines: finesSvc, store: m, notifier: notifier,
		bookID: uuid.New(), staff: uuid.New(), now: now,
	}
	require.NoError(t, m.Within(context.Background(), func(tx store.Tx) error {
		if err := tx.Books().Insert(context.Background(), &model.Book{
			ID: f.bookID, Title: "Foundation", ISBN: "978-0553293357",
		}); err != nil {
			return err
		}
		for n := 1; n <= copies; n++ {
			id := uuid.New()
			f.copyIDs = append(f.copyIDs, id)
			if err := tx.Copies().Insert(context.Background(), &model.BookCopy{
				ID: id, BookID: f.bookID, CopyNumber: n, Status: model.CopyAvailable,
			}); err != nil {
				return err
			}
		}
		return nil
	}))
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
	f.svc.now = func() time.Time { return f.now }
}

func (f *fixture) copyStatus(t *testing.T, copyID uuid.UUID) model.CopyStatus {
	t.Helper()
	var status model.CopyStatus
	require.NoError(t, f.store.View(context.Background(), func(tx store.Tx) error {
		copy, err := tx.Copies().Get(context.Background(), copyID)
		if err != nil {
			return err
		}
		status = copy.Status
		return nil
	}))
	return status
}

func (f *fixture) seedPendingHold(t *testing.T, userID uuid.UUID) *model.Reservation {
	t.Helper()
	hold := &model.Reservation{
		ID: uuid.New(), BookID: f.bookID, UserID: userID,
		Status: model.ReservationPending, CreatedAt: f.now, ExpiresAt: f.now.AddDate(0, 0, 30),
	}
	require.NoError(t, f.store.Within(context.Background(), func(tx store.Tx) error {
		return tx.Reservations().Insert(context.Background(), hold)
	}))
	return hold
}

func TestCheckout(t *testing.T) {
	f := newFixture(t, 1)
	borrower := uuid.New()

	borrowing, err := f.svc.Checkout(context.Background(), f.bookID, borrower, f.staff, 0)
	require.NoError(t, err)

	assert.Equal(t, f.bookID, borrowing.BookID)
	assert.Equal(t, borrower, borrowing.UserID)
	assert.Equal(t, f.staff, borrowing.IssuedBy)
	assert.Equal(t, f.now.AddDate(0, 0, 14), borrowing.DueAt)
	assert.True(t, borrowing.Open())
	assert.Equal(t, model.CopyBorrowed, f.copyStatus(t, borrowing.CopyID))
}

func TestCheckoutPicksLowestNumberedCopy(t *testing.T) {
	f := newFixture(t, 3)

	// Take copy 1 out of play.
	_, err := f.svc.Checkout(context.Background(), f.bookID, uuid.New(), f.staff, 0)
	require.NoError(t, err)

	borrowing, err := f.svc.Checkout(context.Background(), f.bookID, uuid.New(), f.staff, 0)
	require.NoError(t, err)
	assert.Equal(t, f.copyIDs[1], borrowing.CopyID)
}

func TestCheckoutNoCopyAvailable(t *testing.T) {
	f := newFixture(t, 1)

	_, err := f.svc.Checkout(context.Background(), f.bookID, uuid.New(), f.staff, 0)
	require.NoError(t, err)

	_, err = f.svc.Checkout(context.Background(), f.bookID, uuid.New(), f.staff, 0)
	assert.True(t, liberr.IsUnavailable(err))

	// The failed attempt wrote nothing.
	require.NoError(t, f.store.View(context.Background(), func(tx store.Tx) error {
		open, err := tx.Borrowings().OpenByCopy(context.Background(), f.copyIDs[0])
		require.NoError(t, err)
		require.NotNil(t, open)
		return nil
	}))
}

func TestCheckoutDuplicateLoanForSameTitle(t *testing.T) {
	f := newFixture(t, 2)
	borrower := uuid.New()

	_, err := f.svc.Checkout(context.Background(), f.bookID, borrower, f.staff, 0)
	require.NoError(t, err)

	_, err = f.svc.Checkout(context.Background(), f.bookID, borrower, f.staff, 0)
	assert.True(t, liberr.IsBusinessRule(err))

	// Second copy is untouched.
	assert.Equal(t, model.CopyAvailable, f.copyStatus(t, f.copyIDs[1]))
}

func TestCheckoutBlockedByUnpaidFines(t *testing.T) {
	f := newFixture(t, 1)
	borrower := uuid.New()

	require.NoError(t, f.store.Within(context.Background(), func(tx store.Tx) error {
		return tx.Fines().Insert(context.Background(), &model.Fine{
			ID: uuid.New(), UserID: borrower,
			Amount: decimal.RequireFromString("10.50"),
			Reason: model.FineLost, Status: model.PaymentUnpaid,
			IssuedAt: f.now, IssuedBy: f.staff,
		})
	}))

	_, err := f.svc.Checkout(context.Background(), f.bookID, borrower, f.staff, 0)
	assert.True(t, liberr.IsBusinessRule(err))
}

func TestCheckoutAllowedAtFineThreshold(t *testing.T) {
	f := newFixture(t, 1)
	borrower := uuid.New()

	// Exactly at the threshold is still allowed; only exceeding it blocks.
	require.NoError(t, f.store.Within(context.Background(), func(tx store.Tx) error {
		return tx.Fines().Insert(context.Background(), &model.Fine{
			ID: uuid.New(), UserID: borrower,
			Amount: decimal.RequireFromString("10.00"),
			Reason: model.FineLost, Status: model.PaymentUnpaid,
			IssuedAt: f.now, IssuedBy: f.staff,
		})
	}))

	_, err := f.svc.Checkout(context.Background(), f.bookID, borrower, f.staff, 0)
	require.NoError(t, err)
}

func TestCheckoutUnknownBook(t *testing.T) {
	f := newFixture(t, 1)

	_, err := f.svc.Checkout(context.Background(), uuid.New(), uuid.New(), f.staff, 0)
	assert.True(t, liberr.IsNotFound(err))
}

func TestCheckoutLoanPeriodBounds(t *testing.T) {
	f := newFixture(t, 1)

	_, err := f.svc.Checkout(context.Background(), f.bookID, uuid.New(), f.staff, 61)
	assert.True(t, liberr.IsBusinessRule(err))

	_, err = f.svc.Checkout(context.Background(), f.bookID, uuid.New(), f.staff, -3)
	assert.True(t, liberr.IsValidation(err))
}

func TestReturnOnTime(t *testing.T) {
	f := newFixture(t, 1)
	borrower := uuid.New()

	borrowing, err := f.svc.Checkout(context.Background(), f.bookID, borrower, f.staff, 0)
	require.NoError(t, err)

	f.advance(5 * 24 * time.Hour)
	returned, err := f.svc.Return(context.Background(), borrowing.ID, f.staff)
	require.NoError(t, err)

	assert.False(t, returned.Open())
	require.NotNil(t, returned.ReturnedTo)
	assert.Equal(t, f.staff, *returned.ReturnedTo)
	assert.Equal(t, model.CopyAvailable, f.copyStatus(t, borrowing.CopyID))
	assert.Empty(t, f.notifier.eventsFor(borrower))

	balance, err := f.fines.OutstandingBalance(context.Background(), borrower)
	require.NoError(t, err)
	assert.True(t, balance.IsZero())
}

func TestReturnLateChargesFine(t *testing.T) {
	f := newFixture(t, 1)
	borrower := uuid.New()

	borrowing, err := f.svc.Checkout(context.Background(), f.bookID, borrower, f.staff, 0)
	require.NoError(t, err)

	// Due in 14 days, returned after 20: six days late at 0.50/day.
	f.advance(20 * 24 * time.Hour)
	_, err = f.svc.Return(context.Background(), borrowing.ID, f.staff)
	require.NoError(t, err)

	balance, err := f.fines.OutstandingBalance(context.Background(), borrower)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("3.00")), "got %s", balance)

	assert.Equal(t, []notify.Event{notify.EventFineIssued}, f.notifier.eventsFor(borrower))
}

func TestReturnWithPendingHoldReservesCopy(t *testing.T) {
	f := newFixture(t, 1)
	holder := uuid.New()

	borrowing, err := f.svc.Checkout(context.Background(), f.bookID, uuid.New(), f.staff, 0)
	require.NoError(t, err)
	hold := f.seedPendingHold(t, holder)

	_, err = f.svc.Return(context.Background(), borrowing.ID, f.staff)
	require.NoError(t, err)

	assert.Equal(t, model.CopyReserved, f.copyStatus(t, borrowing.CopyID))
	assert.Equal(t, []notify.Event{notify.EventHoldReady}, f.notifier.eventsFor(holder))

	require.NoError(t, f.store.View(context.Background(), func(tx store.Tx) error {
		got, err := tx.Reservations().Get(context.Background(), hold.ID)
		require.NoError(t, err)
		assert.Equal(t, model.ReservationNotified, got.Status)
		require.NotNil(t, got.CopyID)
		assert.Equal(t, borrowing.CopyID, *got.CopyID)
		assert.Equal(t, f.now.Add(f.svc.cfg.ClaimWindow), got.ExpiresAt)
		return nil
	}))
}

type failingAssessor struct {
	fines.Service
}

func (failingAssessor) AssessOverdue(context.Context, uuid.UUID, decimal.Decimal, uuid.UUID) (*model.Fine, error) {
	return nil, liberr.Concurrencyf("store busy")
}

func TestReturnLateSurvivesAssessmentFailure(t *testing.T) {
	f := newFixture(t, 1)
	borrower := uuid.New()

	borrowing, err := f.svc.Checkout(context.Background(), f.bookID, borrower, f.staff, 0)
	require.NoError(t, err)

	f.svc.fines = failingAssessor{Service: f.fines}
	f.advance(20 * 24 * time.Hour)

	// The loan is closed before assessment runs, so a failing assessment
	// must not hide the committed return from the caller.
	returned, err := f.svc.Return(context.Background(), borrowing.ID, f.staff)
	require.NoError(t, err)
	require.NotNil(t, returned)
	assert.False(t, returned.Open())
	assert.Equal(t, model.CopyAvailable, f.copyStatus(t, borrowing.CopyID))
	assert.Empty(t, f.notifier.eventsFor(borrower))

	// The overdue sweep charges the missed fine afterwards.
	f.svc.fines = f.fines
	created, err := f.fines.SweepOverdue(context.Background(), f.svc.cfg.DailyFineRate, f.staff)
	require.NoError(t, err)
	assert.Equal(t, 1, created)
}

func TestReturnTwiceConflicts(t *testing.T) {
	f := newFixture(t, 1)

	borrowing, err := f.svc.Checkout(context.Background(), f.bookID, uuid.New(), f.staff, 0)
	require.NoError(t, err)
	_, err = f.svc.Return(context.Background(), borrowing.ID, f.staff)
	require.NoError(t, err)

	_, err = f.svc.Return(context.Background(), borrowing.ID, f.staff)
	assert.True(t, liberr.IsConflict(err))
}

func TestRenew(t *testing.T) {
	f := newFixture(t, 1)

	borrowing, err := f.svc.Checkout(context.Background(), f.bookID, uuid.New(), f.staff, 0)
	require.NoError(t, err)

	newDue, err := f.svc.Renew(context.Background(), borrowing.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, borrowing.DueAt.AddDate(0, 0, 7), newDue)
}

func TestRenewBlockedByPendingHold(t *testing.T) {
	f := newFixture(t, 1)

	borrowing, err := f.svc.Checkout(context.Background(), f.bookID, uuid.New(), f.staff, 0)
	require.NoError(t, err)
	f.seedPendingHold(t, uuid.New())

	_, err = f.svc.Renew(context.Background(), borrowing.ID, 7)
	assert.True(t, liberr.IsConflict(err))
}

func TestRenewCappedByMaxLoanPeriod(t *testing.T) {
	f := newFixture(t, 1)

	borrowing, err := f.svc.Checkout(context.Background(), f.bookID, uuid.New(), f.staff, 30)
	require.NoError(t, err)

	// 30 + 31 would exceed the 60-day cap.
	_, err = f.svc.Renew(context.Background(), borrowing.ID, 31)
	assert.True(t, liberr.IsConflict(err))

	_, err = f.svc.Renew(context.Background(), borrowing.ID, 30)
	require.NoError(t, err)
}

func TestRenewReturnedLoanConflicts(t *testing.T) {
	f := newFixture(t, 1)

	borrowing, err := f.svc.Checkout(context.Background(), f.bookID, uuid.New(), f.staff, 0)
	require.NoError(t, err)
	_, err = f.svc.Return(context.Background(), borrowing.ID, f.staff)
	require.NoError(t, err)

	_, err = f.svc.Renew(context.Background(), borrowing.ID, 7)
	assert.True(t, liberr.IsConflict(err))
}

func TestRenewValidatesExtraDays(t *testing.T) {
	f := newFixture(t, 1)

	_, err := f.svc.Renew(context.Background(), uuid.New(), 0)
	assert.True(t, liberr.IsValidation(err))
}

func TestReportLostBorrowedCopy(t *testing.T) {
	f := newFixture(t, 1)
	borrower := uuid.New()

	borrowing, err := f.svc.Checkout(context.Background(), f.bookID, borrower, f.staff, 0)
	require.NoError(t, err)

	require.NoError(t, f.svc.ReportCondition(context.Background(), borrowing.CopyID, model.CopyLost, f.staff))

	assert.Equal(t, model.CopyLost, f.copyStatus(t, borrowing.CopyID))

	got, err := f.svc.GetBorrowing(context.Background(), borrowing.ID)
	require.NoError(t, err)
	assert.False(t, got.Open())

	balance, err := f.fines.OutstandingBalance(context.Background(), borrower)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("25.00")), "got %s", balance)
	assert.Equal(t, []notify.Event{notify.EventFineIssued}, f.notifier.eventsFor(borrower))
}

func TestReportDamagedShelfCopy(t *testing.T) {
	f := newFixture(t, 1)

	require.NoError(t, f.svc.ReportCondition(context.Background(), f.copyIDs[0], model.CopyDamaged, f.staff))

	assert.Equal(t, model.CopyDamaged, f.copyStatus(t, f.copyIDs[0]))
	// No loan, no fine, no notification.
	assert.Empty(t, f.notifier.notes)
}

func TestReportConditionValidatesTarget(t *testing.T) {
	f := newFixture(t, 1)

	err := f.svc.ReportCondition(context.Background(), f.copyIDs[0], model.CopyAvailable, f.staff)
	assert.True(t, liberr.IsValidation(err))
}

func TestReportConditionRejectsLostToDamaged(t *testing.T) {
	f := newFixture(t, 1)

	require.NoError(t, f.svc.ReportCondition(context.Background(), f.copyIDs[0], model.CopyLost, f.staff))

	err := f.svc.ReportCondition(context.Background(), f.copyIDs[0], model.CopyDamaged, f.staff)
	assert.True(t, liberr.IsConflict(err))
}

// TestHoldAndClaimJourney walks the whole single-copy contention story: one
// reader has the book, another queues a hold, the return reserves the copy
// for the holder, and the claim turns the hold into a loan.
func TestHoldAndClaimJourney(t *testing.T) {
	f := newFixture(t, 1)
	reader := uuid.New()
	holder := uuid.New()

	loan, err := f.svc.Checkout(context.Background(), f.bookID, reader, f.staff, 0)
	require.NoError(t, err)
	hold := f.seedPendingHold(t, holder)

	_, err = f.svc.Return(context.Background(), loan.ID, f.staff)
	require.NoError(t, err)
	assert.Equal(t, model.CopyReserved, f.copyStatus(t, loan.CopyID))

	// Nobody else can claim the reserved copy.
	_, err = f.svc.Claim(context.Background(), hold.ID, uuid.New(), f.staff)
	assert.True(t, liberr.IsBusinessRule(err))

	claimed, err := f.svc.Claim(context.Background(), hold.ID, holder, f.staff)
	require.NoError(t, err)
	assert.Equal(t, loan.CopyID, claimed.CopyID)
	assert.Equal(t, holder, claimed.UserID)
	assert.Equal(t, model.CopyBorrowed, f.copyStatus(t, loan.CopyID))

	require.NoError(t, f.store.View(context.Background(), func(tx store.Tx) error {
		got, err := tx.Reservations().Get(context.Background(), hold.ID)
		require.NoError(t, err)
		assert.Equal(t, model.ReservationFulfilled, got.Status)
		return nil
	}))

	// A settled hold cannot be claimed again.
	_, err = f.svc.Claim(context.Background(), hold.ID, holder, f.staff)
	assert.True(t, liberr.IsConflict(err))
}

func TestClaimPendingHoldConflicts(t *testing.T) {
	f := newFixture(t, 1)
	holder := uuid.New()
	hold := f.seedPendingHold(t, holder)

	_, err := f.svc.Claim(context.Background(), hold.ID, holder, f.staff)
	assert.True(t, liberr.IsConflict(err))
}

func TestListByUserAndCopy(t *testing.T) {
	f := newFixture(t, 1)
	borrower := uuid.New()

	loan, err := f.svc.Checkout(context.Background(), f.bookID, borrower, f.staff, 0)
	require.NoError(t, err)
	f.advance(24 * time.Hour)
	_, err = f.svc.Return(context.Background(), loan.ID, f.staff)
	require.NoError(t, err)

	f.advance(24 * time.Hour)
	second, err := f.svc.Checkout(context.Background(), f.bookID, borrower, f.staff, 0)
	require.NoError(t, err)

	byUser, err := f.svc.ListByUser(context.Background(), borrower)
	require.NoError(t, err)
	require.Len(t, byUser, 2)
	assert.Equal(t, loan.ID, byUser[0].ID)
	assert.Equal(t, second.ID, byUser[1].ID)

	byCopy, err := f.svc.ListByCopy(context.Background(), loan.CopyID)
	require.NoError(t, err)
	assert.Len(t, byCopy, 2)
}
