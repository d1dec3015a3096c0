package usecase

import (
	"context"
	"strings"

	"gate-admission/internal/domain"
	"gate-admission/internal/domain/model"
	"gate-admission/internal/domain/ports/repository"

	"github.com/google/uuid"
)

// findByIdentifier accepts a credential id, a QR code or a manual code.
func findByIdentifier(ctx context.Context, creds repository.CredentialRepository, tx repository.Tx, identifier string) (*model.Credential, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, domain.ErrInvalidArgument
	}
	// uuid.Parse also accepts 32 bare hex digits, which a QR code could be.
	if _, err := uuid.Parse(identifier); err == nil && len(identifier) == 36 {
		return creds.FindByID(ctx, tx, strings.ToLower(identifier))
	}
	tok, err := NormalizeToken(identifier)
	if err != nil {
		return nil, err
	}
	return creds.FindByToken(ctx, tx, tok)
}

// credentialID canonicalises a credential id. Anything that is not a UUID
// cannot name a credential, so it is reported as not found without a store
// round trip.
func credentialID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if _, err := uuid.Parse(id); err != nil || len(id) != 36 {
		return "", domain.ErrNotFound
	}
	return strings.ToLower(id), nil
}
