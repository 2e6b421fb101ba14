// internal/store/postgres/adapters_test.go
package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"libracore/internal/liberr"
)

func TestClassifySQLState(t *testing.T) {
	base := errors.New("driver error")

	cases := []struct {
		code string
		want liberr.Kind
	}{
		{codeUniqueViolation, liberr.KindConflict},
		{codeForeignKeyViolation, liberr.KindConflict},
		{codeSerializationFailure, liberr.KindConcurrency},
		{codeDeadlockDetected, liberr.KindConcurrency},
		{codeLockNotAvailable, liberr.KindConcurrency},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			err := classifySQLState(tc.code, base)
			assert.Equal(t, tc.want, liberr.KindOf(err))
			assert.ErrorIs(t, err, base)
		})
	}
}

func TestClassifySQLStatePassesUnknownCodesThrough(t *testing.T) {
	base := errors.New("driver error")
	assert.Same(t, base, classifySQLState("42P01", base))
}

func TestTranslatePGXErr(t *testing.T) {
	pgErr := &pgconn.PgError{Code: codeForeignKeyViolation, Message: "violates foreign key constraint"}
	err := translatePGXErr(fmt.Errorf("exec: %w", pgErr))
	assert.True(t, liberr.IsConflict(err))

	assert.NoError(t, translatePGXErr(nil))

	plain := errors.New("broken pipe")
	assert.Same(t, plain, translatePGXErr(plain))
}

func TestTranslatePQErr(t *testing.T) {
	pqErr := &pq.Error{Code: pq.ErrorCode(codeSerializationFailure)}
	err := translatePQErr(fmt.Errorf("exec: %w", pqErr))
	assert.True(t, liberr.IsConcurrency(err))

	assert.NoError(t, translatePQErr(nil))
}
