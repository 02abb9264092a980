package repository

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type safeToRetryErr struct{}

func (safeToRetryErr) Error() string     { return "connection closed before query was sent" }
func (safeToRetryErr) SafeToRetry() bool { return true }

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "serialization failure", err: &pgconn.PgError{Code: pgerrcode.SerializationFailure}, want: true},
		{name: "deadlock", err: fmt.Errorf("complete purchase: %w", &pgconn.PgError{Code: pgerrcode.DeadlockDetected}), want: true},
		{name: "unique violation", err: &pgconn.PgError{Code: pgerrcode.UniqueViolation}, want: false},
		{name: "connection refused", err: &net.OpError{Op: "dial", Net: "tcp", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)}, want: true},
		{name: "connection reset", err: fmt.Errorf("query: %w", syscall.ECONNRESET), want: true},
		{name: "safe to retry", err: fmt.Errorf("acquire: %w", safeToRetryErr{}), want: true},
		{name: "message only", err: errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"), want: false},
		{name: "context canceled", err: fmt.Errorf("query: %w", context.Canceled), want: false},
		{name: "not found", err: ErrPurchaseNotFound, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isRetryable(tt.err))
		})
	}
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(fmt.Errorf("insert user: %w", &pgconn.PgError{Code: pgerrcode.UniqueViolation})))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: pgerrcode.ForeignKeyViolation}))
	assert.False(t, isUniqueViolation(errors.New("boom")))
}

func TestWithRetry(t *testing.T) {
	r := &PostgresRepository{}

	t.Run("retries transient errors", func(t *testing.T) {
		calls := 0
		err := r.withRetry(context.Background(), func(ctx context.Context) error {
			calls++
			if calls == 1 {
				return &pgconn.PgError{Code: pgerrcode.SerializationFailure}
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 2, calls)
	})

	t.Run("returns permanent errors immediately", func(t *testing.T) {
		calls := 0
		err := r.withRetry(context.Background(), func(ctx context.Context) error {
			calls++
			return ErrPurchaseNotFound
		})
		assert.ErrorIs(t, err, ErrPurchaseNotFound)
		assert.Equal(t, 1, calls)
	})
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `100\% go\_lang \\ tips`, escapeLike(`100% go_lang \ tips`))
	assert.Equal(t, "plain", escapeLike("plain"))
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	raw, err := migrationsFS.ReadFile("migrations/" + entries[0].Name())
	require.NoError(t, err)
	for _, table := range []string{"users", "courses", "lectures", "purchases", "user_enrolled_courses", "course_enrolled_students"} {
		assert.Contains(t, string(raw), "CREATE TABLE IF NOT EXISTS "+table+" (")
	}
}
