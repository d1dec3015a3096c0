package usecase

import (
	"context"
	"fmt"

	"gate-admission/internal/domain"
	"gate-admission/internal/domain/model"
	"gate-admission/internal/domain/ports/repository"
)

// Compile-time check
var _ AuditLogger = (*auditLogger)(nil)

// AuditLogger writes the immutable scan and lifecycle trails. It has no update or
// delete path; callers pass the tx the decision was made in.
type AuditLogger interface {
	AppendCheck(ctx context.Context, tx repository.Tx, ev *model.CheckEvent) error
	AppendAction(ctx context.Context, tx repository.Tx, entry *model.ActionLog) error
}

type auditLogger struct {
	events  repository.CheckEventRepository
	actions repository.ActionLogRepository
}

func NewAuditLogger(events repository.CheckEventRepository, actions repository.ActionLogRepository) *auditLogger {
	return &auditLogger{events: events, actions: actions}
}

func (a *auditLogger) AppendCheck(ctx context.Context, tx repository.Tx, ev *model.CheckEvent) error {
	if ev == nil || !ev.Status.Valid() || ev.TokenHash == "" {
		return domain.ErrInvalidArgument
	}
	if err := a.events.Append(ctx, tx, ev); err != nil {
		return fmt.Errorf("append check event: %w", err)
	}
	return nil
}

func (a *auditLogger) AppendAction(ctx context.Context, tx repository.Tx, entry *model.ActionLog) error {
	if entry == nil || !entry.Action.Valid() || entry.CredentialID == "" {
		return domain.ErrInvalidArgument
	}
	if err := a.actions.Append(ctx, tx, entry); err != nil {
		return fmt.Errorf("append action log: %w", err)
	}
	return nil
}
