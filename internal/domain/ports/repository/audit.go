package repository

import (
	"context"

	"gate-admission/internal/domain/model"
)

// CheckEventRepository is append-only: there is deliberately no update or delete.
type CheckEventRepository interface {
	Append(ctx context.Context, tx Tx, ev *model.CheckEvent) error
	// LatestStateful returns the most recently committed ENTRY/EXIT/REENTRY event
	// for the credential, or nil when there is none.
	LatestStateful(ctx context.Context, tx Tx, credentialID string) (*model.CheckEvent, error)
	// ListByCredential returns events in commit order.
	ListByCredential(ctx context.Context, tx Tx, credentialID string) ([]*model.CheckEvent, error)
}

// ActionLogRepository is append-only: there is deliberately no update or delete.
type ActionLogRepository interface {
	Append(ctx context.Context, tx Tx, entry *model.ActionLog) error
	ListByCredential(ctx context.Context, tx Tx, credentialID string) ([]*model.ActionLog, error)
}
