//go:build !integration

package postgres

import (
	"errors"
	"testing"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"

	"gate-admission/internal/domain"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want error
	}{
		{name: "should map lock_timeout to ErrLockTimeout", in: &pgconn.PgError{Code: "55P03"}, want: domain.ErrLockTimeout},
		{name: "should map a deadlock to ErrLockTimeout", in: &pgconn.PgError{Code: "40P01"}, want: domain.ErrLockTimeout},
		{name: "should map the active-pair index to ErrDuplicateActiveCredential", in: &pgconn.PgError{Code: "23505", ConstraintName: "credentials_one_active_per_pair"}, want: domain.ErrDuplicateActiveCredential},
		{name: "should map the qr index to ErrCodeCollision", in: &pgconn.PgError{Code: "23505", ConstraintName: "credentials_qr_code_key"}, want: domain.ErrCodeCollision},
		{name: "should map the manual index to ErrCodeCollision", in: &pgconn.PgError{Code: "23505", ConstraintName: "credentials_manual_code_key"}, want: domain.ErrCodeCollision},
		{name: "should map other unique keys to ErrAlreadyExists", in: &pgconn.PgError{Code: "23505", ConstraintName: "check_events_id_key"}, want: domain.ErrAlreadyExists},
		{name: "should map a malformed uuid to ErrInvalidArgument", in: &pgconn.PgError{Code: "22P02"}, want: domain.ErrInvalidArgument},
		{name: "should map connection failures to ErrStoreUnavailable", in: &pgconn.PgError{Code: "08006"}, want: domain.ErrStoreUnavailable},
		{name: "should map shutdown to ErrStoreUnavailable", in: &pgconn.PgError{Code: "57P01"}, want: domain.ErrStoreUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mapError(tt.in); !errors.Is(got, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}

	t.Run("should keep nil and unknown errors", func(t *testing.T) {
		if mapError(nil) != nil {
			t.Fatal("nil must stay nil")
		}
		boom := errors.New("boom")
		if got := mapError(boom); got != boom {
			t.Fatalf("expected the error untouched, got %v", got)
		}
	})

	t.Run("should turn no rows into ErrNotFound", func(t *testing.T) {
		if err := scanErr(pgx.ErrNoRows); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("should reject locking outside a transaction", func(t *testing.T) {
		if _, err := requireTx(nil); !errors.Is(err, domain.ErrInvalidExecContext) {
			t.Fatalf("expected ErrInvalidExecContext, got %v", err)
		}
	})
}
