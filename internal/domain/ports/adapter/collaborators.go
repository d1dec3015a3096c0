package adapter

import (
	"context"

	"gate-admission/internal/domain/model"
)

// HolderDirectory resolves an external holder reference (reservation attendee ref,
// member number, guest invite token) to the holder identity. Read-only.
type HolderDirectory interface {
	Resolve(ctx context.Context, holderRef string) (model.Holder, error)
}

// TicketPolicyStore returns the attendance defaults configured for an event ticket.
// Returns domain.ErrNotFound when the ticket has no explicit policy. Read-only.
type TicketPolicyStore interface {
	DefaultsFor(ctx context.Context, eventTicketID string) (model.AttendancePolicy, error)
}

// NotificationSink is told about reissued credentials after commit. Errors are
// logged by the caller and never undo the reissue.
type NotificationSink interface {
	OnReissued(ctx context.Context, previous, current *model.Credential) error
}
