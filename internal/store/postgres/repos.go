// internal/store/postgres/repos.go
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"libracore/internal/liberr"
	"libracore/internal/model"
	"libracore/internal/store"
)

var bookColumns = []any{"id", "title", "isbn", "authors", "publisher", "year", "language", "pages", "created_at"}

type bookRepo struct {
	tx DBTx
}

func (r *bookRepo) Insert(ctx context.Context, b *model.Book) error {
	query, args, err := dialect.Insert("books").Rows(goqu.Record{
		"id":         b.ID,
		"title":      b.Title,
		"isbn":       b.ISBN,
		"authors":    pq.StringArray(b.Authors),
		"publisher":  b.Publisher,
		"year":       b.Year,
		"language":   b.Language,
		"pages":      b.Pages,
		"created_at": b.CreatedAt,
	}).Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("build insert book: %w", err)
	}
	_, err = r.tx.Exec(ctx, query, args...)
	return err
}

func (r *bookRepo) Get(ctx context.Context, id uuid.UUID) (*model.Book, error) {
	query, args, err := dialect.From("books").Select(bookColumns...).
		Where(goqu.Ex{"id": id}).Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build get book: %w", err)
	}
	books, err := r.queryBooks(ctx, query, args)
	if err != nil {
		return nil, err
	}
	if len(books) == 0 {
		return nil, liberr.NotFoundf("book %s not found", id)
	}
	return &books[0], nil
}

func (r *bookRepo) Update(ctx context.Context, b *model.Book) error {
	query, args, err := dialect.Update("books").Set(goqu.Record{
		"title":     b.Title,
		"isbn":      b.ISBN,
		"authors":   pq.StringArray(b.Authors),
		"publisher": b.Publisher,
		"year":      b.Year,
		"language":  b.Language,
		"pages":     b.Pages,
	}).Where(goqu.Ex{"id": b.ID}).Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("build update book: %w", err)
	}
	n, err := r.tx.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if n == 0 {
		return liberr.NotFoundf("book %s not found", b.ID)
	}
	return nil
}

func (r *bookRepo) Delete(ctx context.Context, id uuid.UUID) error {
	query, args, err := dialect.Delete("books").Where(goqu.Ex{"id": id}).Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("build delete book: %w", err)
	}
	n, err := r.tx.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if n == 0 {
		return liberr.NotFoundf("book %s not found", id)
	}
	return nil
}

func (r *bookRepo) List(ctx context.Context, titleFilter string) ([]model.Book, error) {
	builder := dialect.From("books").Select(bookColumns...).Order(goqu.I("title").Asc())
	if titleFilter != "" {
		builder = builder.Where(goqu.I("title").ILike("%" + titleFilter + "%"))
	}
	query, args, err := builder.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list books: %w", err)
	}
	return r.queryBooks(ctx, query, args)
}

func (r *bookRepo) queryBooks(ctx context.Context, query string, args []any) ([]model.Book, error) {
	rows, err := r.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Book
	for rows.Next() {
		var b model.Book
		var authors pq.StringArray
		if err := rows.Scan(&b.ID, &b.Title, &b.ISBN, &authors, &b.Publisher, &b.Year, &b.Language, &b.Pages, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		b.Authors = []string(authors)
		out = append(out, b)
	}
	return out, rows.Err()
}

var copyColumns = []any{"id", "book_id", "copy_number", "status", "acquired_at", "shelf_location", "notes"}

type copyRepo struct {
	tx DBTx
}

func (r *copyRepo) Insert(ctx context.Context, c *model.BookCopy) error {
	query, args, err := dialect.Insert("book_copies").Rows(goqu.Record{
		"id":             c.ID,
		"book_id":        c.BookID,
		"copy_number":    c.CopyNumber,
		"status":         string(c.Status),
		"acquired_at":    c.AcquiredAt,
		"shelf_location": c.ShelfLocation,
		"notes":          c.Notes,
	}).Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("build insert copy: %w", err)
	}
	_, err = r.tx.Exec(ctx, query, args...)
	return err
}

func (r *copyRepo) Get(ctx context.Context, id uuid.UUID) (*model.BookCopy, error) {
	query, args, err := dialect.From("book_copies").Select(copyColumns...).
		Where(goqu.Ex{"id": id}).Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build get copy: %w", err)
	}
	copies, err := r.queryCopies(ctx, query, args)
	if err != nil {
		return nil, err
	}
	if len(copies) == 0 {
		return nil, liberr.NotFoundf("copy %s not found", id)
	}
	return &copies[0], nil
}

func (r *copyRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status model.CopyStatus) error {
	query, args, err := dialect.Update("book_copies").Set(goqu.Record{
		"status": string(status),
	}).Where(goqu.Ex{"id": id}).Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("build update copy status: %w", err)
	}
	n, err := r.tx.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if n == 0 {
		return liberr.NotFoundf("copy %s not found", id)
	}
	return nil
}

func (r *copyRepo) Delete(ctx context.Context, id uuid.UUID) error {
	query, args, err := dialect.Delete("book_copies").Where(goqu.Ex{"id": id}).Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("build delete copy: %w", err)
	}
	n, err := r.tx.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if n == 0 {
		return liberr.NotFoundf("copy %s not found", id)
	}
	return nil
}

func (r *copyRepo) ListByBook(ctx context.Context, bookID uuid.UUID) ([]model.BookCopy, error) {
	query, args, err := dialect.From("book_copies").Select(copyColumns...).
		Where(goqu.Ex{"book_id": bookID}).
		Order(goqu.I("copy_number").Asc()).Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list copies: %w", err)
	}
	return r.queryCopies(ctx, query, args)
}

func (r *copyRepo) MaxCopyNumber(ctx context.Context, bookID uuid.UUID) (int, error) {
	query, args, err := dialect.From("book_copies").
		Select(goqu.COALESCE(goqu.MAX("copy_number"), 0)).
		Where(goqu.Ex{"book_id": bookID}).Prepared(true).ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build max copy number: %w", err)
	}
	return r.queryInt(ctx, query, args)
}

func (r *copyRepo) FirstAvailable(ctx context.Context, bookID uuid.UUID) (*model.BookCopy, error) {
	query, args, err := dialect.From("book_copies").Select(copyColumns...).
		Where(goqu.Ex{"book_id": bookID, "status": string(model.CopyAvailable)}).
		Order(goqu.I("copy_number").Asc()).Limit(1).Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build first available: %w", err)
	}
	copies, err := r.queryCopies(ctx, query, args)
	if err != nil {
		return nil, err
	}
	if len(copies) == 0 {
		return nil, nil
	}
	return &copies[0], nil
}

func (r *copyRepo) CountByStatus(ctx context.Context, bookID uuid.UUID, status model.CopyStatus) (int, error) {
	query, args, err := dialect.From("book_copies").Select(goqu.COUNT(goqu.Star())).
		Where(goqu.Ex{"book_id": bookID, "status": string(status)}).Prepared(true).ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build count by status: %w", err)
	}
	return r.queryInt(ctx, query, args)
}

func (r *copyRepo) CountTotal(ctx context.Context, bookID uuid.UUID) (int, error) {
	query, args, err := dialect.From("book_copies").Select(goqu.COUNT(goqu.Star())).
		Where(goqu.Ex{"book_id": bookID}).Prepared(true).ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build count total: %w", err)
	}
	return r.queryInt(ctx, query, args)
}

func (r *copyRepo) queryCopies(ctx context.Context, query string, args []any) ([]model.BookCopy, error) {
	rows, err := r.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.BookCopy
	for rows.Next() {
		var c model.BookCopy
		var status string
		if err := rows.Scan(&c.ID, &c.BookID, &c.CopyNumber, &status, &c.AcquiredAt, &c.ShelfLocation, &c.Notes); err != nil {
			return nil, fmt.Errorf("scan copy: %w", err)
		}
		c.Status, err = model.ParseCopyStatus(status)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *copyRepo) queryInt(ctx context.Context, query string, args []any) (int, error) {
	rows, err := r.tx.Query(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	var n int
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, fmt.Errorf("scan count: %w", err)
		}
	}
	return n, rows.Err()
}

var borrowingColumns = []any{"id", "copy_id", "book_id", "user_id", "issued_by", "borrowed_at", "due_at", "returned_at", "returned_to"}

type borrowingRepo struct {
	tx DBTx
}

func (r *borrowingRepo) Insert(ctx context.Context, b *model.Borrowing) error {
	rec := goqu.Record{
		"id":          b.ID,
		"copy_id":     b.CopyID,
		"book_id":     b.BookID,
		"user_id":     b.UserID,
		"issued_by":   b.IssuedBy,
		"borrowed_at": b.BorrowedAt,
		"due_at":      b.DueAt,
		"returned_at": b.ReturnedAt,
		"returned_to": b.ReturnedTo,
	}
	query, args, err := dialect.Insert("borrowings").Rows(rec).Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("build insert borrowing: %w", err)
	}
	_, err = r.tx.Exec(ctx, query, args...)
	return err
}

func (r *borrowingRepo) Get(ctx context.Context, id uuid.UUID) (*model.Borrowing, error) {
	query, args, err := dialect.From("borrowings").Select(borrowingColumns...).
		Where(goqu.Ex{"id": id}).Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build get borrowing: %w", err)
	}
	loans, err := r.queryBorrowings(ctx, query, args)
	if err != nil {
		return nil, err
	}
	if len(loans) == 0 {
		return nil, liberr.NotFoundf("borrowing %s not found", id)
	}
	return &loans[0], nil
}

func (r *borrowingRepo) Close(ctx context.Context, id uuid.UUID, returnedAt time.Time, returnedTo uuid.UUID) error {
	query, args, err := dialect.Update("borrowings").Set(goqu.Record{
		"returned_at": returnedAt,
		"returned_to": returnedTo,
	}).Where(goqu.Ex{"id": id, "returned_at": nil}).Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("build close borrowing: %w", err)
	}
	n, err := r.tx.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if n == 0 {
		// Distinguish a missing row from a loan already closed.
		if _, getErr := r.Get(ctx, id); getErr != nil {
			return getErr
		}
		return liberr.Conflictf("borrowing %s already returned", id)
	}
	return nil
}

func (r *borrowingRepo) UpdateDueDate(ctx context.Context, id uuid.UUID, dueAt time.Time) error {
	query, args, err := dialect.Update("borrowings").Set(goqu.Record{
		"due_at": dueAt,
	}).Where(goqu.Ex{"id": id}).Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("build update due date: %w", err)
	}
	n, err := r.tx.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if n == 0 {
		return liberr.NotFoundf("borrowing %s not found", id)
	}
	return nil
}

func (r *borrowingRepo) OpenByCopy(ctx context.Context, copyID uuid.UUID) (*model.Borrowing, error) {
	query, args, err := dialect.From("borrowings").Select(borrowingColumns...).
		Where(goqu.Ex{"copy_id": copyID, "returned_at": nil}).Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build open by copy: %w", err)
	}
	loans, err := r.queryBorrowings(ctx, query, args)
	if err != nil {
		return nil, err
	}
	if len(loans) == 0 {
		return nil, nil
	}
	return &loans[0], nil
}

func (r *borrowingRepo) OpenByBookAndUser(ctx context.Context, bookID, userID uuid.UUID) (*model.Borrowing, error) {
	query, args, err := dialect.From("borrowings").Select(borrowingColumns...).
		Where(goqu.Ex{"book_id": bookID, "user_id": userID, "returned_at": nil}).
		Limit(1).Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build open by book and user: %w", err)
	}
	loans, err := r.queryBorrowings(ctx, query, args)
	if err != nil {
		return nil, err
	}
	if len(loans) == 0 {
		return nil, nil
	}
	return &loans[0], nil
}

func (r *borrowingRepo) ListOverdue(ctx context.Context, asOf time.Time) ([]model.Borrowing, error) {
	query, args, err := dialect.From("borrowings").Select(borrowingColumns...).
		Where(goqu.Or(
			goqu.And(goqu.I("returned_at").IsNull(), goqu.I("due_at").Lt(model.DateOf(asOf))),
			goqu.L("returned_at::date > due_at::date"),
		)).
		Order(goqu.I("due_at").Asc()).Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list overdue: %w", err)
	}
	return r.queryBorrowings(ctx, query, args)
}

func (r *borrowingRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Borrowing, error) {
	query, args, err := dialect.From("borrowings").Select(borrowingColumns...).
		Where(goqu.Ex{"user_id": userID}).
		Order(goqu.I("borrowed_at").Asc()).Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list by user: %w", err)
	}
	return r.queryBorrowings(ctx, query, args)
}

func (r *borrowingRepo) ListByCopy(ctx context.Context, copyID uuid.UUID) ([]model.Borrowing, error) {
	query, args, err := dialect.From("borrowings").Select(borrowingColumns...).
		Where(goqu.Ex{"copy_id": copyID}).
		Order(goqu.I("borrowed_at").Asc()).Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list by copy: %w", err)
	}
	return r.queryBorrowings(ctx, query, args)
}

func (r *borrowingRepo) queryBorrowings(ctx context.Context, query string, args []any) ([]model.Borrowing, error) {
	rows, err := r.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Borrowing
	for rows.Next() {
		var b model.Borrowing
		var returnedAt sql.NullTime
		var returnedTo uuid.NullUUID
		if err := rows.Scan(&b.ID, &b.CopyID, &b.BookID, &b.UserID, &b.IssuedBy, &b.BorrowedAt, &b.DueAt, &returnedAt, &returnedTo); err != nil {
			return nil, fmt.Errorf("scan borrowing: %w", err)
		}
		if returnedAt.Valid {
			t := returnedAt.Time
			b.ReturnedAt = &t
		}
		if returnedTo.Valid {
			id := returnedTo.UUID
			b.ReturnedTo = &id
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

var reservationColumns = []any{"id", "book_id", "user_id", "status", "copy_id", "created_at", "expires_at", "notified_at"}

type reservationRepo struct {
	tx DBTx
}

func (r *reservationRepo) Insert(ctx context.Context, res *model.Reservation) error {
	query, args, err := dialect.Insert("reservations").Rows(goqu.Record{
		"id":          res.ID,
		"book_id":     res.BookID,
		"user_id":     res.UserID,
		"status":      string(res.Status),
		"copy_id":     res.CopyID,
		"created_at":  res.CreatedAt,
		"expires_at":  res.ExpiresAt,
		"notified_at": res.NotifiedAt,
	}).Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("build insert reservation: %w", err)
	}
	_, err = r.tx.Exec(ctx, query, args...)
	return err
}

func (r *reservationRepo) Get(ctx context.Context, id uuid.UUID) (*model.Reservation, error) {
	query, args, err := dialect.From("reservations").Select(reservationColumns...).
		Where(goqu.Ex{"id": id}).Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build get reservation: %w", err)
	}
	holds, err := r.queryReservations(ctx, query, args)
	if err != nil {
		return nil, err
	}
	if len(holds) == 0 {
		return nil, liberr.NotFoundf("reservation %s not found", id)
	}
	return &holds[0], nil
}

func (r *reservationRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status model.ReservationStatus) error {
	query, args, err := dialect.Update("reservations").Set(goqu.Record{
		"status": string(status),
	}).Where(goqu.Ex{"id": id}).Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("build update reservation status: %w", err)
	}
	n, err := r.tx.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if n == 0 {
		return liberr.NotFoundf("reservation %s not found", id)
	}
	return nil
}

func (r *reservationRepo) MarkNotified(ctx context.Context, id, copyID uuid.UUID, notifiedAt, expiresAt time.Time) error {
	query, args, err := dialect.Update("reservations").Set(goqu.Record{
		"status":      string(model.ReservationNotified),
		"copy_id":     copyID,
		"notified_at": notifiedAt,
		"expires_at":  expiresAt,
	}).Where(goqu.Ex{"id": id}).Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("build mark notified: %w", err)
	}
	n, err := r.tx.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if n == 0 {
		return liberr.NotFoundf("reservation %s not found", id)
	}
	return nil
}

func (r *reservationRepo) NextPending(ctx context.Context, bookID uuid.UUID) (*model.Reservation, error) {
	query, args, err := dialect.From("reservations").Select(reservationColumns...).
		Where(goqu.Ex{"book_id": bookID, "status": string(model.ReservationPending)}).
		Order(goqu.I("created_at").Asc(), goqu.I("id").Asc()).
		Limit(1).Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build next pending: %w", err)
	}
	holds, err := r.queryReservations(ctx, query, args)
	if err != nil {
		return nil, err
	}
	if len(holds) == 0 {
		return nil, nil
	}
	return &holds[0], nil
}

func (r *reservationRepo) PendingByBookAndUser(ctx context.Context, bookID, userID uuid.UUID) (*model.Reservation, error) {
	query, args, err := dialect.From("reservations").Select(reservationColumns...).
		Where(goqu.Ex{
			"book_id": bookID,
			"user_id": userID,
			"status":  string(model.ReservationPending),
		}).Limit(1).Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build pending by book and user: %w", err)
	}
	holds, err := r.queryReservations(ctx, query, args)
	if err != nil {
		return nil, err
	}
	if len(holds) == 0 {
		return nil, nil
	}
	return &holds[0], nil
}

func (r *reservationRepo) ListExpirable(ctx context.Context, asOf time.Time) ([]model.Reservation, error) {
	query, args, err := dialect.From("reservations").Select(reservationColumns...).
		Where(
			goqu.I("status").In(string(model.ReservationPending), string(model.ReservationNotified)),
			goqu.I("expires_at").Lt(asOf),
		).
		Order(goqu.I("created_at").Asc()).Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list expirable: %w", err)
	}
	return r.queryReservations(ctx, query, args)
}

func (r *reservationRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Reservation, error) {
	query, args, err := dialect.From("reservations").Select(reservationColumns...).
		Where(goqu.Ex{"user_id": userID}).
		Order(goqu.I("created_at").Asc()).Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list reservations by user: %w", err)
	}
	return r.queryReservations(ctx, query, args)
}

func (r *reservationRepo) queryReservations(ctx context.Context, query string, args []any) ([]model.Reservation, error) {
	rows, err := r.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Reservation
	for rows.Next() {
		var res model.Reservation
		var status string
		var copyID uuid.NullUUID
		var notifiedAt sql.NullTime
		if err := rows.Scan(&res.ID, &res.BookID, &res.UserID, &status, &copyID, &res.CreatedAt, &res.ExpiresAt, &notifiedAt); err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		res.Status, err = model.ParseReservationStatus(status)
		if err != nil {
			return nil, err
		}
		if copyID.Valid {
			id := copyID.UUID
			res.CopyID = &id
		}
		if notifiedAt.Valid {
			t := notifiedAt.Time
			res.NotifiedAt = &t
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

var fineColumns = []any{"id", "user_id", "borrowing_id", "amount", "reason", "status", "issued_at", "issued_by", "paid_at", "paid_method", "received_by"}

type fineRepo struct {
	tx DBTx
}

func (r *fineRepo) Insert(ctx context.Context, f *model.Fine) error {
	query, args, err := dialect.Insert("fines").Rows(goqu.Record{
		"id":           f.ID,
		"user_id":      f.UserID,
		"borrowing_id": f.BorrowingID,
		"amount":       f.Amount,
		"reason":       string(f.Reason),
		"status":       string(f.Status),
		"issued_at":    f.IssuedAt,
		"issued_by":    f.IssuedBy,
		"paid_at":      f.PaidAt,
		"paid_method":  f.PaidMethod,
		"received_by":  f.ReceivedBy,
	}).Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("build insert fine: %w", err)
	}
	_, err = r.tx.Exec(ctx, query, args...)
	return err
}

func (r *fineRepo) Get(ctx context.Context, id uuid.UUID) (*model.Fine, error) {
	query, args, err := dialect.From("fines").Select(fineColumns...).
		Where(goqu.Ex{"id": id}).Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build get fine: %w", err)
	}
	fines, err := r.queryFines(ctx, query, args)
	if err != nil {
		return nil, err
	}
	if len(fines) == 0 {
		return nil, liberr.NotFoundf("fine %s not found", id)
	}
	return &fines[0], nil
}

func (r *fineRepo) ByBorrowingAndReason(ctx context.Context, borrowingID uuid.UUID, reason model.FineReason) (*model.Fine, error) {
	query, args, err := dialect.From("fines").Select(fineColumns...).
		Where(goqu.Ex{"borrowing_id": borrowingID, "reason": string(reason)}).
		Order(goqu.I("issued_at").Asc()).
		Limit(1).Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build fine by borrowing: %w", err)
	}
	fines, err := r.queryFines(ctx, query, args)
	if err != nil {
		return nil, err
	}
	if len(fines) == 0 {
		return nil, nil
	}
	return &fines[0], nil
}

func (r *fineRepo) MarkPaid(ctx context.Context, id uuid.UUID, paidAt time.Time, method string, receivedBy uuid.UUID) error {
	query, args, err := dialect.Update("fines").Set(goqu.Record{
		"status":      string(model.PaymentPaid),
		"paid_at":     paidAt,
		"paid_method": method,
		"received_by": receivedBy,
	}).Where(goqu.Ex{"id": id}).Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("build mark paid: %w", err)
	}
	n, err := r.tx.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if n == 0 {
		return liberr.NotFoundf("fine %s not found", id)
	}
	return nil
}

func (r *fineRepo) MarkWaived(ctx context.Context, id uuid.UUID) error {
	query, args, err := dialect.Update("fines").Set(goqu.Record{
		"status":      string(model.PaymentWaived),
		"paid_at":     nil,
		"paid_method": nil,
		"received_by": nil,
	}).Where(goqu.Ex{"id": id}).Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("build mark waived: %w", err)
	}
	n, err := r.tx.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if n == 0 {
		return liberr.NotFoundf("fine %s not found", id)
	}
	return nil
}

func (r *fineRepo) SumUnpaid(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	query, args, err := dialect.From("fines").
		Select(goqu.COALESCE(goqu.SUM("amount"), 0)).
		Where(goqu.Ex{"user_id": userID, "status": string(model.PaymentUnpaid)}).
		Prepared(true).ToSQL()
	if err != nil {
		return decimal.Zero, fmt.Errorf("build sum unpaid: %w", err)
	}
	rows, err := r.tx.Query(ctx, query, args...)
	if err != nil {
		return decimal.Zero, err
	}
	defer rows.Close()

	sum := decimal.Zero
	if rows.Next() {
		if err := rows.Scan(&sum); err != nil {
			return decimal.Zero, fmt.Errorf("scan unpaid sum: %w", err)
		}
	}
	return sum, rows.Err()
}

func (r *fineRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Fine, error) {
	query, args, err := dialect.From("fines").Select(fineColumns...).
		Where(goqu.Ex{"user_id": userID}).
		Order(goqu.I("issued_at").Asc()).Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list fines by user: %w", err)
	}
	return r.queryFines(ctx, query, args)
}

func (r *fineRepo) queryFines(ctx context.Context, query string, args []any) ([]model.Fine, error) {
	rows, err := r.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Fine
	for rows.Next() {
		var f model.Fine
		var reason, status string
		var borrowingID, receivedBy uuid.NullUUID
		var paidAt sql.NullTime
		var paidMethod sql.NullString
		if err := rows.Scan(&f.ID, &f.UserID, &borrowingID, &f.Amount, &reason, &status, &f.IssuedAt, &f.IssuedBy, &paidAt, &paidMethod, &receivedBy); err != nil {
			return nil, fmt.Errorf("scan fine: %w", err)
		}
		f.Reason, err = model.ParseFineReason(reason)
		if err != nil {
			return nil, err
		}
		f.Status, err = model.ParsePaymentStatus(status)
		if err != nil {
			return nil, err
		}
		if borrowingID.Valid {
			id := borrowingID.UUID
			f.BorrowingID = &id
		}
		if paidAt.Valid {
			t := paidAt.Time
			f.PaidAt = &t
		}
		if paidMethod.Valid {
			m := paidMethod.String
			f.PaidMethod = &m
		}
		if receivedBy.Valid {
			id := receivedBy.UUID
			f.ReceivedBy = &id
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

var _ store.Tx = (*pgTx)(nil)
