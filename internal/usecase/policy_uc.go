package usecase

import (
	"context"
	"errors"
	"fmt"

	"gate-admission/internal/domain"
	"gate-admission/internal/domain/model"
	"gate-admission/internal/domain/ports/adapter"
)

// Compile-time check
var _ PolicyResolver = (*policyResolver)(nil)

// PolicyResolver computes the effective attendance policy of a credential.
type PolicyResolver interface {
	// Defaults returns the ticket's configured policy, or the global default when the
	// ticket has none. It may hit the network and is never called under a lock.
	Defaults(ctx context.Context, eventTicketID string) (model.AttendancePolicy, error)
	// Resolve merges defaults with the credential's overrides. Pure.
	Resolve(defaults model.AttendancePolicy, c *model.Credential) model.AttendancePolicy
}

type policyResolver struct {
	tickets  adapter.TicketPolicyStore
	fallback model.AttendancePolicy
}

func NewPolicyResolver(tickets adapter.TicketPolicyStore, fallback model.AttendancePolicy) *policyResolver {
	return &policyResolver{tickets: tickets, fallback: fallback}
}

func (r *policyResolver) Defaults(ctx context.Context, eventTicketID string) (model.AttendancePolicy, error) {
	if r.tickets == nil {
		return r.fallback, nil
	}
	p, err := r.tickets.DefaultsFor(ctx, eventTicketID)
	if errors.Is(err, domain.ErrNotFound) {
		return r.fallback, nil
	}
	if err != nil {
		return model.AttendancePolicy{}, fmt.Errorf("ticket policy %s: %w", eventTicketID, err)
	}
	return p, nil
}

func (r *policyResolver) Resolve(defaults model.AttendancePolicy, c *model.Credential) model.AttendancePolicy {
	if c == nil {
		return defaults
	}
	return c.Overrides.Apply(defaults)
}
