package memory

import (
	"context"
	"strings"
	"sync"

	"gate-admission/internal/domain"
	"gate-admission/internal/domain/model"
	"gate-admission/internal/domain/ports/adapter"
)

// Ensure compile-time conformance
var (
	_ adapter.HolderDirectory   = (*Directory)(nil)
	_ adapter.TicketPolicyStore = (*TicketPolicies)(nil)
)

// Directory resolves holder refs from a fixed table. Refs not in the table are
// accepted in their canonical "member:<id>" / "guest:<token>" form.
type Directory struct {
	mu      sync.RWMutex
	holders map[string]model.Holder
}

func NewDirectory() *Directory {
	return &Directory{holders: make(map[string]model.Holder)}
}

func (d *Directory) Add(ref string, h model.Holder) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.holders[ref] = h
}

func (d *Directory) Resolve(_ context.Context, holderRef string) (model.Holder, error) {
	d.mu.RLock()
	h, ok := d.holders[holderRef]
	d.mu.RUnlock()
	if ok {
		return h, nil
	}
	kind, id, found := strings.Cut(holderRef, ":")
	if !found {
		return model.Holder{}, domain.ErrNotFound
	}
	return model.ParseHolder(kind, id)
}

// TicketPolicies serves per-ticket attendance defaults.
type TicketPolicies struct {
	mu       sync.RWMutex
	policies map[string]model.AttendancePolicy
}

func NewTicketPolicies() *TicketPolicies {
	return &TicketPolicies{policies: make(map[string]model.AttendancePolicy)}
}

func (p *TicketPolicies) Set(eventTicketID string, policy model.AttendancePolicy) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.policies[eventTicketID] = policy
}

func (p *TicketPolicies) DefaultsFor(_ context.Context, eventTicketID string) (model.AttendancePolicy, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	policy, ok := p.policies[eventTicketID]
	if !ok {
		return model.AttendancePolicy{}, domain.ErrNotFound
	}
	return policy, nil
}
