// internal/store/postgres/adapters.go
package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"libracore/internal/liberr"
)

// DBAdapter abstracts the database driver so the store can run on either a
// pgx pool or a database/sql-compatible driver through sqlx.
type DBAdapter interface {
	BeginTx(ctx context.Context, readOnly bool) (DBTx, error)
	Exec(ctx context.Context, query string, args ...any) error
	Close() error
}

// DBTx is a driver-agnostic transaction.
type DBTx interface {
	Exec(ctx context.Context, query string, args ...any) (rowsAffected int64, err error)
	Query(ctx context.Context, query string, args ...any) (DBRows, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// DBRows is a driver-agnostic result cursor.
type DBRows interface {
	Next() bool
	Scan(dest ...any) error
	Close()
	Err() error
}

// Postgres SQLSTATE codes the store reacts to.
const (
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
)

func classifySQLState(code string, err error) error {
	switch code {
	case codeUniqueViolation:
		return liberr.Wrap(liberr.KindConflict, "unique constraint violated", err)
	case codeForeignKeyViolation:
		return liberr.Wrap(liberr.KindConflict, "referenced row constraint violated", err)
	case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
		return liberr.Wrap(liberr.KindConcurrency, "transaction contention", err)
	default:
		return err
	}
}

// PGXAdapter implements DBAdapter on a pgx connection pool.
type PGXAdapter struct {
	pool *pgxpool.Pool
}

// NewPGXAdapter wraps an existing pgx pool.
func NewPGXAdapter(pool *pgxpool.Pool) *PGXAdapter {
	return &PGXAdapter{pool: pool}
}

func (a *PGXAdapter) BeginTx(ctx context.Context, readOnly bool) (DBTx, error) {
	opts := pgx.TxOptions{IsoLevel: pgx.Serializable}
	if readOnly {
		opts.AccessMode = pgx.ReadOnly
	}
	tx, err := a.pool.BeginTx(ctx, opts)
	if err != nil {
		return nil, translatePGXErr(err)
	}
	return &pgxTx{tx: tx}, nil
}

func (a *PGXAdapter) Exec(ctx context.Context, query string, args ...any) error {
	_, err := a.pool.Exec(ctx, query, args...)
	return translatePGXErr(err)
}

func (a *PGXAdapter) Close() error {
	a.pool.Close()
	return nil
}

type pgxTx struct {
	tx pgx.Tx
}

func (t *pgxTx) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	tag, err := t.tx.Exec(ctx, query, args...)
	if err != nil {
		return 0, translatePGXErr(err)
	}
	return tag.RowsAffected(), nil
}

func (t *pgxTx) Query(ctx context.Context, query string, args ...any) (DBRows, error) {
	rows, err := t.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, translatePGXErr(err)
	}
	return &pgxRows{rows: rows}, nil
}

func (t *pgxTx) Commit(ctx context.Context) error {
	return translatePGXErr(t.tx.Commit(ctx))
}

func (t *pgxTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}

type pgxRows struct {
	rows pgx.Rows
}

func (r *pgxRows) Next() bool             { return r.rows.Next() }
func (r *pgxRows) Scan(dest ...any) error { return r.rows.Scan(dest...) }
func (r *pgxRows) Close()                 { r.rows.Close() }
func (r *pgxRows) Err() error             { return r.rows.Err() }

func translatePGXErr(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return classifySQLState(pgErr.Code, err)
	}
	return err
}

// SQLXAdapter implements DBAdapter on a sqlx handle, typically over lib/pq.
type SQLXAdapter struct {
	db *sqlx.DB
}

// NewSQLXAdapter wraps an existing sqlx handle.
func NewSQLXAdapter(db *sqlx.DB) *SQLXAdapter {
	return &SQLXAdapter{db: db}
}

func (a *SQLXAdapter) BeginTx(ctx context.Context, readOnly bool) (DBTx, error) {
	tx, err := a.db.BeginTxx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
		ReadOnly:  readOnly,
	})
	if err != nil {
		return nil, translatePQErr(err)
	}
	return &sqlxTx{tx: tx}, nil
}

func (a *SQLXAdapter) Exec(ctx context.Context, query string, args ...any) error {
	_, err := a.db.ExecContext(ctx, query, args...)
	return translatePQErr(err)
}

func (a *SQLXAdapter) Close() error {
	return a.db.Close()
}

type sqlxTx struct {
	tx *sqlx.Tx
}

func (t *sqlxTx) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, translatePQErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (t *sqlxTx) Query(ctx context.Context, query string, args ...any) (DBRows, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translatePQErr(err)
	}
	return &sqlRows{rows: rows}, nil
}

func (t *sqlxTx) Commit(ctx context.Context) error {
	return translatePQErr(t.tx.Commit())
}

func (t *sqlxTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

type sqlRows struct {
	rows *sql.Rows
}

func (r *sqlRows) Next() bool             { return r.rows.Next() }
func (r *sqlRows) Scan(dest ...any) error { return r.rows.Scan(dest...) }
func (r *sqlRows) Close()                 { _ = r.rows.Close() }
func (r *sqlRows) Err() error             { return r.rows.Err() }

func translatePQErr(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return classifySQLState(string(pqErr.Code), err)
	}
	return err
}
