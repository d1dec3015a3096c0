package memory

import (
	"context"
	"time"

	"gate-admission/internal/domain"
	"gate-admission/internal/domain/model"
	"gate-admission/internal/domain/ports/repository"
)

// Ensure compile-time conformance
var _ repository.CredentialRepository = (*CredentialRepo)(nil)

type CredentialRepo struct {
	s *Store
}

func (s *Store) Credentials() *CredentialRepo { return &CredentialRepo{s: s} }

func (r *CredentialRepo) Insert(ctx context.Context, handle repository.Tx, c *model.Credential) error {
	if c == nil || c.ID == "" {
		return domain.ErrInvalidArgument
	}
	return r.s.autoTx(ctx, handle, func(t *tx) error {
		taken, err := r.CodesTaken(ctx, t, c.QRCode, c.ManualCode)
		if err != nil {
			return err
		}
		if taken {
			return domain.ErrCodeCollision
		}
		if c.Active {
			active, err := r.FindActiveByPair(ctx, t, c.Holder, c.EventTicketID)
			if err != nil {
				return err
			}
			if len(active) > 0 {
				return domain.ErrDuplicateActiveCredential
			}
		}
		t.creds[c.ID] = clone(c)
		t.inserted = append(t.inserted, c.ID)
		return nil
	})
}

func (r *CredentialRepo) Deactivate(ctx context.Context, handle repository.Tx, id string) error {
	return r.s.autoTx(ctx, handle, func(t *tx) error {
		c, err := r.FindByID(ctx, t, id)
		if err != nil {
			return err
		}
		c.Active = false
		t.creds[id] = c
		return nil
	})
}

func (r *CredentialRepo) FindByID(ctx context.Context, handle repository.Tx, id string) (*model.Credential, error) {
	t, err := asTx(handle)
	if err != nil {
		return nil, err
	}
	if t != nil {
		if c, ok := t.creds[id]; ok {
			return clone(c), nil
		}
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.creds[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return clone(c), nil
}

func (r *CredentialRepo) FindByToken(ctx context.Context, handle repository.Tx, token string) (*model.Credential, error) {
	t, err := asTx(handle)
	if err != nil {
		return nil, err
	}
	if t != nil {
		for _, c := range t.creds {
			if c.QRCode == token || c.ManualCode == token {
				return clone(c), nil
			}
		}
	}
	r.s.mu.RLock()
	id, ok := r.s.byQR[token]
	if !ok {
		id, ok = r.s.byManual[token]
	}
	r.s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	return r.FindByID(ctx, handle, id)
}

func (r *CredentialRepo) FindActiveByPair(ctx context.Context, handle repository.Tx, holder model.Holder, eventTicketID string) ([]*model.Credential, error) {
	t, err := asTx(handle)
	if err != nil {
		return nil, err
	}
	pair := model.PairKey(holder, eventTicketID)
	seen := make(map[string]bool)
	var out []*model.Credential

	if t != nil {
		for id, c := range t.creds {
			if c.PairKey() != pair {
				continue
			}
			seen[id] = true
			if c.Active {
				out = append(out, clone(c))
			}
		}
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, id := range r.s.byPair[pair] {
		if seen[id] {
			continue
		}
		if c := r.s.creds[id]; c.Active {
			out = append(out, clone(c))
		}
	}
	return out, nil
}

func (r *CredentialRepo) CodesTaken(ctx context.Context, handle repository.Tx, qrCode, manualCode string) (bool, error) {
	t, err := asTx(handle)
	if err != nil {
		return false, err
	}
	if t != nil {
		for _, c := range t.creds {
			if c.QRCode == qrCode || c.ManualCode == manualCode {
				return true, nil
			}
		}
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	_, qrTaken := r.s.byQR[qrCode]
	_, manualTaken := r.s.byManual[manualCode]
	return qrTaken || manualTaken, nil
}

func (r *CredentialRepo) CountActive(ctx context.Context, handle repository.Tx, now time.Time) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	n := 0
	for _, c := range r.s.creds {
		if c.Admissible(now) {
			n++
		}
	}
	return n, nil
}

func (r *CredentialRepo) LockByID(ctx context.Context, handle repository.Tx, id string) (*model.Credential, error) {
	t, ok := handle.(*tx)
	if !ok {
		return nil, domain.ErrInvalidExecContext
	}
	if err := r.s.lock(ctx, t, "credential:"+id); err != nil {
		return nil, err
	}
	return r.FindByID(ctx, t, id)
}

func (r *CredentialRepo) LockPair(ctx context.Context, handle repository.Tx, holder model.Holder, eventTicketID string) error {
	t, ok := handle.(*tx)
	if !ok {
		return domain.ErrInvalidExecContext
	}
	return r.s.lock(ctx, t, "pair:"+model.PairKey(holder, eventTicketID))
}
