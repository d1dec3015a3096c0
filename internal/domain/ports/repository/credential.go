package repository

import (
	"context"
	"time"

	"gate-admission/internal/domain/model"
)

// CredentialRepository is the port for issued credentials.
type CredentialRepository interface {
	// Insert stores a new credential. Returns domain.ErrCodeCollision when the QR or
	// manual code is taken and domain.ErrDuplicateActiveCredential when the pair
	// already has an active credential.
	Insert(ctx context.Context, tx Tx, c *model.Credential) error
	// Deactivate sets active=false. It never deletes the row.
	Deactivate(ctx context.Context, tx Tx, id string) error

	FindByID(ctx context.Context, tx Tx, id string) (*model.Credential, error)
	// FindByToken matches a normalized QR code or manual code, active or not.
	FindByToken(ctx context.Context, tx Tx, token string) (*model.Credential, error)
	// FindActiveByPair returns every active credential of the pair so callers can
	// detect a broken single-active invariant.
	FindActiveByPair(ctx context.Context, tx Tx, holder model.Holder, eventTicketID string) ([]*model.Credential, error)
	CodesTaken(ctx context.Context, tx Tx, qrCode, manualCode string) (bool, error)
	CountActive(ctx context.Context, tx Tx, now time.Time) (int, error)

	// LockByID takes the credential's exclusive lock for the rest of tx and returns
	// the row as seen under the lock. Times out with domain.ErrLockTimeout.
	LockByID(ctx context.Context, tx Tx, id string) (*model.Credential, error)
	// LockPair serialises issuance for one (holder, ticket) pair for the rest of tx.
	LockPair(ctx context.Context, tx Tx, holder model.Holder, eventTicketID string) error
}
