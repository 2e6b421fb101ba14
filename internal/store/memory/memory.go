// internal/store/memory/memory.go

// Package memory implements store.Store on plain maps. A unit of work runs
// against a deep copy of the dataset and the copy is swapped in on commit, so
// a failed operation leaves nothing behind. Lock acquisition has a bounded
// wait and reports contention as a concurrency error, mirroring the postgres
// store's lock_timeout behavior.
package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"libracore/internal/liberr"
	"libracore/internal/model"
	"libracore/internal/store"
)

const defaultLockWait = 2 * time.Second

// Memory is an in-process store.Store. Safe for concurrent use.
type Memory struct {
	sem      chan struct{}
	lockWait time.Duration
	data     *dataset
}

type dataset struct {
	books        map[uuid.UUID]model.Book
	copies       map[uuid.UUID]model.BookCopy
	borrowings   map[uuid.UUID]model.Borrowing
	reservations map[uuid.UUID]model.Reservation
	fines        map[uuid.UUID]model.Fine
}

// New creates an empty in-memory store.
func New() *Memory {
	return &Memory{
		sem:      make(chan struct{}, 1),
		lockWait: defaultLockWait,
		data: &dataset{
			books:        make(map[uuid.UUID]model.Book),
			copies:       make(map[uuid.UUID]model.BookCopy),
			borrowings:   make(map[uuid.UUID]model.Borrowing),
			reservations: make(map[uuid.UUID]model.Reservation),
			fines:        make(map[uuid.UUID]model.Fine),
		},
	}
}

// SetLockWait overrides the bounded lock wait, mainly for contention tests.
func (m *Memory) SetLockWait(d time.Duration) { m.lockWait = d }

func (m *Memory) acquire(ctx context.Context) error {
	timer := time.NewTimer(m.lockWait)
	defer timer.Stop()
	select {
	case m.sem <- struct{}{}:
		return nil
	case <-timer.C:
		return liberr.Concurrencyf("store lock not acquired within %s", m.lockWait)
	case <-ctx.Done():
		return liberr.Wrap(liberr.KindConcurrency, "store lock wait cancelled", ctx.Err())
	}
}

func (m *Memory) release() { <-m.sem }

// Within implements store.Store.
func (m *Memory) Within(ctx context.Context, fn func(tx store.Tx) error) error {
	if err := m.acquire(ctx); err != nil {
		return err
	}
	defer m.release()

	work := m.data.clone()
	if err := fn(&memTx{ds: work}); err != nil {
		return err
	}
	m.data = work
	return nil
}

// View implements store.Store. The callback runs on a copy, so accidental
// writes are discarded.
func (m *Memory) View(ctx context.Context, fn func(tx store.Tx) error) error {
	if err := m.acquire(ctx); err != nil {
		return err
	}
	defer m.release()

	return fn(&memTx{ds: m.data.clone()})
}

func (d *dataset) clone() *dataset {
	c := &dataset{
		books:        make(map[uuid.UUID]model.Book, len(d.books)),
		copies:       make(map[uuid.UUID]model.BookCopy, len(d.copies)),
		borrowings:   make(map[uuid.UUID]model.Borrowing, len(d.borrowings)),
		reservations: make(map[uuid.UUID]model.Reservation, len(d.reservations)),
		fines:        make(map[uuid.UUID]model.Fine, len(d.fines)),
	}
	for k, v := range d.books {
		v.Authors = append([]string(nil), v.Authors...)
		c.books[k] = v
	}
	for k, v := range d.copies {
		c.copies[k] = v
	}
	for k, v := range d.borrowings {
		c.borrowings[k] = v
	}
	for k, v := range d.reservations {
		c.reservations[k] = v
	}
	for k, v := range d.fines {
		c.fines[k] = v
	}
	return c
}

type memTx struct {
	ds *dataset
}

func (t *memTx) Books() store.BookRepo               { return &bookRepo{ds: t.ds} }
func (t *memTx) Copies() store.CopyRepo              { return &copyRepo{ds: t.ds} }
func (t *memTx) Borrowings() store.BorrowingRepo     { return &borrowingRepo{ds: t.ds} }
func (t *memTx) Reservations() store.ReservationRepo { return &reservationRepo{ds: t.ds} }
func (t *memTx) Fines() store.FineRepo               { return &fineRepo{ds: t.ds} }

type bookRepo struct{ ds *dataset }

func (r *bookRepo) Insert(_ context.Context, b *model.Book) error {
	for _, existing := range r.ds.books {
		if existing.ISBN == b.ISBN {
			return liberr.Conflictf("book with isbn %s already exists", b.ISBN)
		}
	}
	r.ds.books[b.ID] = *b
	return nil
}

func (r *bookRepo) Get(_ context.Context, id uuid.UUID) (*model.Book, error) {
	b, ok := r.ds.books[id]
	if !ok {
		return nil, liberr.NotFoundf("book %s not found", id)
	}
	return &b, nil
}

func (r *bookRepo) Update(_ context.Context, b *model.Book) error {
	if _, ok := r.ds.books[b.ID]; !ok {
		return liberr.NotFoundf("book %s not found", b.ID)
	}
	for id, existing := range r.ds.books {
		if id != b.ID && existing.ISBN == b.ISBN {
			return liberr.Conflictf("book with isbn %s already exists", b.ISBN)
		}
	}
	r.ds.books[b.ID] = *b
	return nil
}

func (r *bookRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := r.ds.books[id]; !ok {
		return liberr.NotFoundf("book %s not found", id)
	}
	delete(r.ds.books, id)
	return nil
}

func (r *bookRepo) List(_ context.Context, titleFilter string) ([]model.Book, error) {
	var out []model.Book
	for _, b := range r.ds.books {
		if titleFilter == "" || containsFold(b.Title, titleFilter) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

type copyRepo struct{ ds *dataset }

func (r *copyRepo) Insert(_ context.Context, c *model.BookCopy) error {
	for _, existing := range r.ds.copies {
		if existing.BookID == c.BookID && existing.CopyNumber == c.CopyNumber {
			return liberr.Conflictf("copy number %d already exists for book %s", c.CopyNumber, c.BookID)
		}
	}
	r.ds.copies[c.ID] = *c
	return nil
}

func (r *copyRepo) Get(_ context.Context, id uuid.UUID) (*model.BookCopy, error) {
	c, ok := r.ds.copies[id]
	if !ok {
		return nil, liberr.NotFoundf("copy %s not found", id)
	}
	return &c, nil
}

func (r *copyRepo) UpdateStatus(_ context.Context, id uuid.UUID, status model.CopyStatus) error {
	c, ok := r.ds.copies[id]
	if !ok {
		return liberr.NotFoundf("copy %s not found", id)
	}
	c.Status = status
	r.ds.copies[id] = c
	return nil
}

func (r *copyRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := r.ds.copies[id]; !ok {
		return liberr.NotFoundf("copy %s not found", id)
	}
	delete(r.ds.copies, id)
	return nil
}

func (r *copyRepo) ListByBook(_ context.Context, bookID uuid.UUID) ([]model.BookCopy, error) {
	var out []model.BookCopy
	for _, c := range r.ds.copies {
		if c.BookID == bookID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CopyNumber < out[j].CopyNumber })
	return out, nil
}

func (r *copyRepo) MaxCopyNumber(_ context.Context, bookID uuid.UUID) (int, error) {
	max := 0
	for _, c := range r.ds.copies {
		if c.BookID == bookID && c.CopyNumber > max {
			max = c.CopyNumber
		}
	}
	return max, nil
}

func (r *copyRepo) FirstAvailable(_ context.Context, bookID uuid.UUID) (*model.BookCopy, error) {
	var best *model.BookCopy
	for _, c := range r.ds.copies {
		if c.BookID != bookID || c.Status != model.CopyAvailable {
			continue
		}
		c := c
		if best == nil || c.CopyNumber < best.CopyNumber {
			best = &c
		}
	}
	return best, nil
}

func (r *copyRepo) CountByStatus(_ context.Context, bookID uuid.UUID, status model.CopyStatus) (int, error) {
	n := 0
	for _, c := range r.ds.copies {
		if c.BookID == bookID && c.Status == status {
			n++
		}
	}
	return n, nil
}

func (r *copyRepo) CountTotal(_ context.Context, bookID uuid.UUID) (int, error) {
	n := 0
	for _, c := range r.ds.copies {
		if c.BookID == bookID {
			n++
		}
	}
	return n, nil
}

type borrowingRepo struct{ ds *dataset }

func (r *borrowingRepo) Insert(_ context.Context, b *model.Borrowing) error {
	// Mirrors the partial unique index on (copy_id) WHERE return_date IS NULL.
	if b.Open() {
		for _, existing := range r.ds.borrowings {
			if existing.CopyID == b.CopyID && existing.Open() {
				return liberr.Conflictf("copy %s already has an open borrowing", b.CopyID)
			}
		}
	}
	r.ds.borrowings[b.ID] = *b
	return nil
}

func (r *borrowingRepo) Get(_ context.Context, id uuid.UUID) (*model.Borrowing, error) {
	b, ok := r.ds.borrowings[id]
	if !ok {
		return nil, liberr.NotFoundf("borrowing %s not found", id)
	}
	return &b, nil
}

func (r *borrowingRepo) Close(_ context.Context, id uuid.UUID, returnedAt time.Time, returnedTo uuid.UUID) error {
	b, ok := r.ds.borrowings[id]
	if !ok {
		return liberr.NotFoundf("borrowing %s not found", id)
	}
	if !b.Open() {
		return liberr.Conflictf("borrowing %s already returned", id)
	}
	b.ReturnedAt = &returnedAt
	b.ReturnedTo = &returnedTo
	r.ds.borrowings[id] = b
	return nil
}

func (r *borrowingRepo) UpdateDueDate(_ context.Context, id uuid.UUID, dueAt time.Time) error {
	b, ok := r.ds.borrowings[id]
	if !ok {
		return liberr.NotFoundf("borrowing %s not found", id)
	}
	b.DueAt = dueAt
	r.ds.borrowings[id] = b
	return nil
}

func (r *borrowingRepo) OpenByCopy(_ context.Context, copyID uuid.UUID) (*model.Borrowing, error) {
	for _, b := range r.ds.borrowings {
		if b.CopyID == copyID && b.Open() {
			b := b
			return &b, nil
		}
	}
	return nil, nil
}

func (r *borrowingRepo) OpenByBookAndUser(_ context.Context, bookID, userID uuid.UUID) (*model.Borrowing, error) {
	for _, b := range r.ds.borrowings {
		if b.BookID == bookID && b.UserID == userID && b.Open() {
			b := b
			return &b, nil
		}
	}
	return nil, nil
}

func (r *borrowingRepo) ListOverdue(_ context.Context, asOf time.Time) ([]model.Borrowing, error) {
	var out []model.Borrowing
	for _, b := range r.ds.borrowings {
		if b.DaysLateAt(asOf) > 0 {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueAt.Before(out[j].DueAt) })
	return out, nil
}

func (r *borrowingRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]model.Borrowing, error) {
	var out []model.Borrowing
	for _, b := range r.ds.borrowings {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BorrowedAt.Before(out[j].BorrowedAt) })
	return out, nil
}

func (r *borrowingRepo) ListByCopy(_ context.Context, copyID uuid.UUID) ([]model.Borrowing, error) {
	var out []model.Borrowing
	for _, b := range r.ds.borrowings {
		if b.CopyID == copyID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BorrowedAt.Before(out[j].BorrowedAt) })
	return out, nil
}

type reservationRepo struct{ ds *dataset }

func (r *reservationRepo) Insert(_ context.Context, res *model.Reservation) error {
	r.ds.reservations[res.ID] = *res
	return nil
}

func (r *reservationRepo) Get(_ context.Context, id uuid.UUID) (*model.Reservation, error) {
	res, ok := r.ds.reservations[id]
	if !ok {
		return nil, liberr.NotFoundf("reservation %s not found", id)
	}
	return &res, nil
}

func (r *reservationRepo) UpdateStatus(_ context.Context, id uuid.UUID, status model.ReservationStatus) error {
	res, ok := r.ds.reservations[id]
	if !ok {
		return liberr.NotFoundf("reservation %s not found", id)
	}
	res.Status = status
	r.ds.reservations[id] = res
	return nil
}

func (r *reservationRepo) MarkNotified(_ context.Context, id, copyID uuid.UUID, notifiedAt, expiresAt time.Time) error {
	res, ok := r.ds.reservations[id]
	if !ok {
		return liberr.NotFoundf("reservation %s not found", id)
	}
	res.Status = model.ReservationNotified
	res.CopyID = &copyID
	res.NotifiedAt = &notifiedAt
	res.ExpiresAt = expiresAt
	r.ds.reservations[id] = res
	return nil
}

func (r *reservationRepo) NextPending(_ context.Context, bookID uuid.UUID) (*model.Reservation, error) {
	var pending []model.Reservation
	for _, res := range r.ds.reservations {
		if res.BookID == bookID && res.Status == model.ReservationPending {
			pending = append(pending, res)
		}
	}
	if len(pending) == 0 {
		return nil, nil
	}
	sort.Slice(pending, func(i, j int) bool {
		if pending[i].CreatedAt.Equal(pending[j].CreatedAt) {
			return pending[i].ID.String() < pending[j].ID.String()
		}
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	return &pending[0], nil
}

func (r *reservationRepo) PendingByBookAndUser(_ context.Context, bookID, userID uuid.UUID) (*model.Reservation, error) {
	for _, res := range r.ds.reservations {
		if res.BookID == bookID && res.UserID == userID && res.Status == model.ReservationPending {
			res := res
			return &res, nil
		}
	}
	return nil, nil
}

func (r *reservationRepo) ListExpirable(_ context.Context, asOf time.Time) ([]model.Reservation, error) {
	var out []model.Reservation
	for _, res := range r.ds.reservations {
		if (res.Status == model.ReservationPending || res.Status == model.ReservationNotified) &&
			res.ExpiresAt.Before(asOf) {
			out = append(out, res)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *reservationRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]model.Reservation, error) {
	var out []model.Reservation
	for _, res := range r.ds.reservations {
		if res.UserID == userID {
			out = append(out, res)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

type fineRepo struct{ ds *dataset }

func (r *fineRepo) Insert(_ context.Context, f *model.Fine) error {
	r.ds.fines[f.ID] = *f
	return nil
}

func (r *fineRepo) Get(_ context.Context, id uuid.UUID) (*model.Fine, error) {
	f, ok := r.ds.fines[id]
	if !ok {
		return nil, liberr.NotFoundf("fine %s not found", id)
	}
	return &f, nil
}

func (r *fineRepo) ByBorrowingAndReason(_ context.Context, borrowingID uuid.UUID, reason model.FineReason) (*model.Fine, error) {
	for _, f := range r.ds.fines {
		if f.BorrowingID != nil && *f.BorrowingID == borrowingID && f.Reason == reason {
			f := f
			return &f, nil
		}
	}
	return nil, nil
}

func (r *fineRepo) MarkPaid(_ context.Context, id uuid.UUID, paidAt time.Time, method string, receivedBy uuid.UUID) error {
	f, ok := r.ds.fines[id]
	if !ok {
		return liberr.NotFoundf("fine %s not found", id)
	}
	f.Status = model.PaymentPaid
	f.PaidAt = &paidAt
	f.PaidMethod = &method
	f.ReceivedBy = &receivedBy
	r.ds.fines[id] = f
	return nil
}

func (r *fineRepo) MarkWaived(_ context.Context, id uuid.UUID) error {
	f, ok := r.ds.fines[id]
	if !ok {
		return liberr.NotFoundf("fine %s not found", id)
	}
	f.Status = model.PaymentWaived
	f.PaidAt = nil
	f.PaidMethod = nil
	f.ReceivedBy = nil
	r.ds.fines[id] = f
	return nil
}

func (r *fineRepo) SumUnpaid(_ context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, f := range r.ds.fines {
		if f.UserID == userID && f.Status == model.PaymentUnpaid {
			sum = sum.Add(f.Amount)
		}
	}
	return sum, nil
}

func (r *fineRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]model.Fine, error) {
	var out []model.Fine
	for _, f := range r.ds.fines {
		if f.UserID == userID {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IssuedAt.Before(out[j].IssuedAt) })
	return out, nil
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
