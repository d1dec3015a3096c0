package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"gate-admission/internal/domain"
	"gate-admission/internal/domain/model"
	"gate-admission/internal/domain/ports/adapter"
	"gate-admission/internal/domain/ports/repository"
)

// Ensure compile-time conformance
var (
	_ adapter.HolderDirectory   = (*HolderDirectory)(nil)
	_ adapter.TicketPolicyStore = (*TicketPolicies)(nil)
)

// HolderDirectory reads the holders table. Refs missing from the table are
// accepted in canonical "member:<id>" or "guest:<token>" form.
type HolderDirectory struct {
	db *sql.DB
}

func NewHolderDirectory(db *sql.DB) *HolderDirectory {
	return &HolderDirectory{db: db}
}

func (d *HolderDirectory) Resolve(ctx context.Context, holderRef string) (model.Holder, error) {
	ref := strings.TrimSpace(holderRef)
	if ref == "" {
		return model.Holder{}, domain.ErrInvalidHolder
	}
	ex, err := getExecutor(d.db, repository.NoTX)
	if err != nil {
		return model.Holder{}, err
	}
	var kind, id string
	err = scanErr(ex.QueryRowContext(ctx, `SELECT kind, holder_id FROM holders WHERE ref = ?;`, ref).Scan(&kind, &id))
	switch {
	case err == nil:
		return model.ParseHolder(kind, id)
	case err == domain.ErrNotFound:
		k, v, found := strings.Cut(ref, ":")
		if !found {
			return model.Holder{}, domain.ErrNotFound
		}
		return model.ParseHolder(k, v)
	default:
		return model.Holder{}, err
	}
}

func (d *HolderDirectory) Upsert(ctx context.Context, ref string, h model.Holder) error {
	_, err := d.db.ExecContext(ctx, `
INSERT INTO holders (ref, kind, holder_id) VALUES (?, ?, ?)
ON CONFLICT (ref) DO UPDATE SET kind = excluded.kind, holder_id = excluded.holder_id;
`, ref, string(h.Kind()), h.ID())
	return mapError(err)
}

type TicketPolicies struct {
	db *sql.DB
}

func NewTicketPolicies(db *sql.DB) *TicketPolicies {
	return &TicketPolicies{db: db}
}

func (p *TicketPolicies) DefaultsFor(ctx context.Context, eventTicketID string) (model.AttendancePolicy, error) {
	var in, out, re int
	err := p.db.QueryRowContext(ctx, `
SELECT check_in_allowed, check_out_allowed, reentry_allowed
  FROM ticket_policies
 WHERE event_ticket_id = ?;
`, eventTicketID).Scan(&in, &out, &re)
	if err != nil {
		return model.AttendancePolicy{}, scanErr(err)
	}
	return model.AttendancePolicy{CheckInAllowed: in == 1, CheckOutAllowed: out == 1, ReentryAllowed: re == 1}, nil
}

func (p *TicketPolicies) Save(ctx context.Context, eventTicketID string, policy model.AttendancePolicy) error {
	_, err := p.db.ExecContext(ctx, `
INSERT INTO ticket_policies (event_ticket_id, check_in_allowed, check_out_allowed, reentry_allowed)
VALUES (?, ?, ?, ?)
ON CONFLICT (event_ticket_id) DO UPDATE SET
    check_in_allowed  = excluded.check_in_allowed,
    check_out_allowed = excluded.check_out_allowed,
    reentry_allowed   = excluded.reentry_allowed;
`, eventTicketID, boolToInt(policy.CheckInAllowed), boolToInt(policy.CheckOutAllowed), boolToInt(policy.ReentryAllowed))
	return mapError(err)
}
