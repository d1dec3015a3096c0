package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid execution context")
	ErrOperationFailed    = errors.New("operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")

	// Validation: rejected before any lock is taken, never audited.
	ErrInvalidToken     = errors.New("invalid credential token")
	ErrInvalidDirection = errors.New("invalid scan direction")
	ErrInvalidHolder    = errors.New("invalid holder reference")

	// Lifecycle
	ErrDuplicateActiveCredential = errors.New("an active credential already exists for this holder and ticket")
	ErrCodeCollision             = errors.New("generated credential code already in use")

	// Retryable: nothing was committed, the caller should retry the whole call.
	ErrLockTimeout      = errors.New("timed out waiting for credential lock")
	ErrStoreUnavailable = errors.New("credential store unavailable")

	// Fatal
	ErrCodeSpaceExhausted = errors.New("could not generate a unique credential code")
	ErrInvariantViolation = errors.New("credential invariant violated")
)

// IsRetryable reports whether err means the operation can be retried as a whole.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrLockTimeout) || errors.Is(err, ErrStoreUnavailable)
}

// IsFatal reports whether err signals a broken invariant that must not be retried.
func IsFatal(err error) bool {
	return errors.Is(err, ErrCodeSpaceExhausted) || errors.Is(err, ErrInvariantViolation)
}

// IsValidation reports whether err was caused by malformed input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidArgument) ||
		errors.Is(err, ErrInvalidToken) ||
		errors.Is(err, ErrInvalidDirection) ||
		errors.Is(err, ErrInvalidHolder)
}
