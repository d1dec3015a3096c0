package postgres

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgconn"

	"gate-admission/internal/domain"
)

const (
	pgLockNotAvailable     = "55P03"
	pgUniqueViolation      = "23505"
	pgCheckViolation       = "23514"
	pgInvalidTextRepr      = "22P02"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgAdminShutdown        = "57P01"
	pgCannotConnectNow     = "57P03"
)

const (
	constraintOneActivePerPair = "credentials_one_active_per_pair"
	constraintQRCode           = "credentials_qr_code_key"
	constraintManualCode       = "credentials_manual_code_key"
)

// mapError translates driver errors into domain sentinels. The original error is
// kept in the message for logs.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == pgLockNotAvailable:
			return fmt.Errorf("%w: %s", domain.ErrLockTimeout, pgErr.Message)
		case pgErr.Code == pgUniqueViolation:
			switch pgErr.ConstraintName {
			case constraintOneActivePerPair:
				return fmt.Errorf("%w: %s", domain.ErrDuplicateActiveCredential, pgErr.ConstraintName)
			case constraintQRCode, constraintManualCode:
				return fmt.Errorf("%w: %s", domain.ErrCodeCollision, pgErr.ConstraintName)
			}
			return fmt.Errorf("%w: %s", domain.ErrAlreadyExists, pgErr.ConstraintName)
		case pgErr.Code == pgCheckViolation, pgErr.Code == pgInvalidTextRepr:
			return fmt.Errorf("%w: %s", domain.ErrInvalidArgument, pgErr.ConstraintName)
		case pgErr.Code == pgSerializationFailure, pgErr.Code == pgDeadlockDetected:
			return fmt.Errorf("%w: %s", domain.ErrLockTimeout, pgErr.Message)
		case pgErr.Code == pgAdminShutdown, pgErr.Code == pgCannotConnectNow, strings.HasPrefix(pgErr.Code, "08"):
			return fmt.Errorf("%w: %s", domain.ErrStoreUnavailable, pgErr.Message)
		}
		return fmt.Errorf("postgres %s: %w", pgErr.Code, err)
	}

	var netErr net.Error
	if pgconn.Timeout(err) || pgconn.SafeToRetry(err) || errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return err
}
