package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"gate-admission/internal/domain"
	"gate-admission/internal/domain/model"
	"gate-admission/internal/domain/ports/adapter"
	"gate-admission/internal/domain/ports/repository"
)

var _ adapter.TicketPolicyStore = (*ticketPolicyRepo)(nil)

type ticketPolicyRepo struct {
	pool *pgxpool.Pool
}

func NewTicketPolicyRepo(pool *pgxpool.Pool) *ticketPolicyRepo {
	return &ticketPolicyRepo{pool: pool}
}

func (r *ticketPolicyRepo) DefaultsFor(ctx context.Context, eventTicketID string) (model.AttendancePolicy, error) {
	if eventTicketID == "" {
		return model.AttendancePolicy{}, domain.ErrInvalidArgument
	}
	const q = `
SELECT check_in_allowed, check_out_allowed, reentry_allowed
  FROM ticket_policies
 WHERE event_ticket_id = $1;
`
	row, err := pickRow(ctx, r.pool, repository.NoTX, q, eventTicketID)
	if err != nil {
		return model.AttendancePolicy{}, err
	}
	var p model.AttendancePolicy
	if err := row.Scan(&p.CheckInAllowed, &p.CheckOutAllowed, &p.ReentryAllowed); err != nil {
		return model.AttendancePolicy{}, scanErr(err)
	}
	return p, nil
}

func (r *ticketPolicyRepo) Save(ctx context.Context, eventTicketID string, p model.AttendancePolicy) error {
	const q = `
INSERT INTO ticket_policies (event_ticket_id, check_in_allowed, check_out_allowed, reentry_allowed, updated_at)
VALUES ($1, $2, $3, $4, NOW())
ON CONFLICT (event_ticket_id) DO UPDATE SET
    check_in_allowed  = EXCLUDED.check_in_allowed,
    check_out_allowed = EXCLUDED.check_out_allowed,
    reentry_allowed   = EXCLUDED.reentry_allowed,
    updated_at        = NOW();
`
	_, err := execSQL(ctx, r.pool, repository.NoTX, q, eventTicketID, p.CheckInAllowed, p.CheckOutAllowed, p.ReentryAllowed)
	return err
}
