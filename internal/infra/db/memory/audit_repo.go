package memory

import (
	"context"

	"gate-admission/internal/domain"
	"gate-admission/internal/domain/model"
	"gate-admission/internal/domain/ports/repository"
)

// Ensure compile-time conformance
var (
	_ repository.CheckEventRepository = (*CheckEventRepo)(nil)
	_ repository.ActionLogRepository  = (*ActionLogRepo)(nil)
)

// CheckEventRepo is an append-only log of scan decisions.
type CheckEventRepo struct {
	s *Store
}

func (s *Store) CheckEvents() *CheckEventRepo { return &CheckEventRepo{s: s} }

func (r *CheckEventRepo) Append(ctx context.Context, handle repository.Tx, ev *model.CheckEvent) error {
	if ev == nil {
		return domain.ErrInvalidArgument
	}
	return r.s.autoTx(ctx, handle, func(t *tx) error {
		cp := *ev
		t.events = append(t.events, &cp)
		return nil
	})
}

func (r *CheckEventRepo) LatestStateful(ctx context.Context, handle repository.Tx, credentialID string) (*model.CheckEvent, error) {
	t, err := asTx(handle)
	if err != nil {
		return nil, err
	}
	if t != nil {
		for i := len(t.events) - 1; i >= 0; i-- {
			if ev := t.events[i]; ev.CredentialID == credentialID && ev.Status.Stateful() {
				cp := *ev
				return &cp, nil
			}
		}
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	evs := r.s.eventsByCred[credentialID]
	for i := len(evs) - 1; i >= 0; i-- {
		if evs[i].Status.Stateful() {
			cp := *evs[i]
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *CheckEventRepo) ListByCredential(ctx context.Context, handle repository.Tx, credentialID string) ([]*model.CheckEvent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	evs := r.s.eventsByCred[credentialID]
	out := make([]*model.CheckEvent, 0, len(evs))
	for _, ev := range evs {
		cp := *ev
		out = append(out, &cp)
	}
	return out, nil
}

// Events returns a copy of every committed event in commit order. Test-only helper.
func (r *CheckEventRepo) Events() []*model.CheckEvent {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*model.CheckEvent, 0, len(r.s.events))
	for _, ev := range r.s.events {
		cp := *ev
		out = append(out, &cp)
	}
	return out
}

// ActionLogRepo is an append-only log of lifecycle actions.
type ActionLogRepo struct {
	s *Store
}

func (s *Store) ActionLogs() *ActionLogRepo { return &ActionLogRepo{s: s} }

func (r *ActionLogRepo) Append(ctx context.Context, handle repository.Tx, entry *model.ActionLog) error {
	if entry == nil {
		return domain.ErrInvalidArgument
	}
	return r.s.autoTx(ctx, handle, func(t *tx) error {
		cp := *entry
		t.actions = append(t.actions, &cp)
		return nil
	})
}

func (r *ActionLogRepo) ListByCredential(ctx context.Context, handle repository.Tx, credentialID string) ([]*model.ActionLog, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	logs := r.s.actionsByCred[credentialID]
	out := make([]*model.ActionLog, 0, len(logs))
	for _, a := range logs {
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}
