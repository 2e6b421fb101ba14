// internal/store/postgres/postgres.go

// Package postgres implements store.Store on PostgreSQL. Every unit of work
// runs in a serializable transaction with a bounded lock wait; serialization
// failures and lock timeouts surface as concurrency errors so callers can
// retry the whole operation.
package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"libracore/internal/store"
)

var dialect = goqu.Dialect("postgres")

const defaultLockTimeout = "2s"

// Store is a PostgreSQL-backed store.Store.
type Store struct {
	adapter     DBAdapter
	tracer      trace.Tracer
	logger      *slog.Logger
	lockTimeout string
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets a structured logger for transaction lifecycle events.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithLockTimeout overrides the per-transaction lock_timeout, e.g. "500ms".
func WithLockTimeout(timeout string) Option {
	return func(s *Store) { s.lockTimeout = timeout }
}

// NewStore creates a store on the given adapter.
func NewStore(adapter DBAdapter, opts ...Option) *Store {
	s := &Store{
		adapter:     adapter,
		tracer:      otel.Tracer("libracore/store/postgres"),
		logger:      slog.Default(),
		lockTimeout: defaultLockTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Within implements store.Store.
func (s *Store) Within(ctx context.Context, fn func(tx store.Tx) error) error {
	return s.run(ctx, false, fn)
}

// View implements store.Store.
func (s *Store) View(ctx context.Context, fn func(tx store.Tx) error) error {
	return s.run(ctx, true, fn)
}

func (s *Store) run(ctx context.Context, readOnly bool, fn func(tx store.Tx) error) error {
	ctx, span := s.tracer.Start(ctx, "store.unit_of_work",
		trace.WithAttributes(attribute.Bool("tx.read_only", readOnly)),
	)
	defer span.End()

	tx, err := s.adapter.BeginTx(ctx, readOnly)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if !readOnly {
		if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%s'", s.lockTimeout)); err != nil {
			return fmt.Errorf("set lock timeout: %w", err)
		}
	}

	if err := fn(&pgTx{tx: tx}); err != nil {
		span.SetAttributes(attribute.Bool("tx.rolled_back", true))
		s.logger.DebugContext(ctx, "unit of work rolled back", "error", err)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		span.SetAttributes(attribute.Bool("tx.commit_failed", true))
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Close releases the underlying pool.
func (s *Store) Close() error {
	return s.adapter.Close()
}

type pgTx struct {
	tx DBTx
}

func (t *pgTx) Books() store.BookRepo               { return &bookRepo{tx: t.tx} }
func (t *pgTx) Copies() store.CopyRepo              { return &copyRepo{tx: t.tx} }
func (t *pgTx) Borrowings() store.BorrowingRepo     { return &borrowingRepo{tx: t.tx} }
func (t *pgTx) Reservations() store.ReservationRepo { return &reservationRepo{tx: t.tx} }
func (t *pgTx) Fines() store.FineRepo               { return &fineRepo{tx: t.tx} }
