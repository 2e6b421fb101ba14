// internal/store/postgres/schema.go
package postgres

import "context"

// The partial unique index on borrowings enforces the one-open-loan-per-copy
// invariant inside the database, independent of engine logic.
//
// Borrowings and reservations keep plain book/copy ids without foreign keys:
// they are history and must outlive catalog rows, so removing a copy (or a
// book with no copies) leaves its closed loans and settled holds intact.
const schema = `
CREATE TABLE IF NOT EXISTS books (
	id         UUID PRIMARY KEY,
	title      TEXT NOT NULL,
	isbn       TEXT NOT NULL UNIQUE,
	authors    TEXT[] NOT NULL DEFAULT '{}',
	publisher  TEXT NOT NULL DEFAULT '',
	year       INT NOT NULL DEFAULT 0,
	language   TEXT NOT NULL DEFAULT '',
	pages      INT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS book_copies (
	id             UUID PRIMARY KEY,
	book_id        UUID NOT NULL REFERENCES books (id),
	copy_number    INT NOT NULL,
	status         TEXT NOT NULL,
	acquired_at    TIMESTAMPTZ NOT NULL,
	shelf_location TEXT NOT NULL DEFAULT '',
	notes          TEXT NOT NULL DEFAULT '',
	UNIQUE (book_id, copy_number)
);

CREATE TABLE IF NOT EXISTS borrowings (
	id          UUID PRIMARY KEY,
	copy_id     UUID NOT NULL,
	book_id     UUID NOT NULL,
	user_id     UUID NOT NULL,
	issued_by   UUID NOT NULL,
	borrowed_at TIMESTAMPTZ NOT NULL,
	due_at      TIMESTAMPTZ NOT NULL,
	returned_at TIMESTAMPTZ,
	returned_to UUID
);

CREATE UNIQUE INDEX IF NOT EXISTS borrowings_one_open_per_copy
	ON borrowings (copy_id) WHERE returned_at IS NULL;

CREATE INDEX IF NOT EXISTS borrowings_user_idx ON borrowings (user_id);
CREATE INDEX IF NOT EXISTS borrowings_due_idx ON borrowings (due_at) WHERE returned_at IS NULL;

CREATE TABLE IF NOT EXISTS reservations (
	id          UUID PRIMARY KEY,
	book_id     UUID NOT NULL,
	user_id     UUID NOT NULL,
	status      TEXT NOT NULL,
	copy_id     UUID,
	created_at  TIMESTAMPTZ NOT NULL,
	expires_at  TIMESTAMPTZ NOT NULL,
	notified_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS reservations_queue_idx
	ON reservations (book_id, created_at) WHERE status = 'PENDING';

CREATE TABLE IF NOT EXISTS fines (
	id           UUID PRIMARY KEY,
	user_id      UUID NOT NULL,
	borrowing_id UUID REFERENCES borrowings (id),
	amount       NUMERIC(12, 2) NOT NULL CHECK (amount >= 0),
	reason       TEXT NOT NULL,
	status       TEXT NOT NULL,
	issued_at    TIMESTAMPTZ NOT NULL,
	issued_by    UUID NOT NULL,
	paid_at      TIMESTAMPTZ,
	paid_method  TEXT,
	received_by  UUID
);

CREATE INDEX IF NOT EXISTS fines_user_unpaid_idx
	ON fines (user_id) WHERE status = 'UNPAID';
`

// EnsureSchema creates the circulation tables if they do not exist yet.
func EnsureSchema(ctx context.Context, adapter DBAdapter) error {
	return adapter.Exec(ctx, schema)
}
