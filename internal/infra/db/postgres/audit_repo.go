package postgres

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"gate-admission/internal/domain"
	"gate-admission/internal/domain/model"
	"gate-admission/internal/domain/ports/repository"
)

// Ensure implementation satisfies the interface.
var (
	_ repository.CheckEventRepository = (*checkEventRepo)(nil)
	_ repository.ActionLogRepository  = (*actionLogRepo)(nil)
)

// checkEventRepo only inserts and reads; a trigger rejects UPDATE/DELETE on the table.
type checkEventRepo struct {
	pool *pgxpool.Pool
}

func NewCheckEventRepo(pool *pgxpool.Pool) *checkEventRepo {
	return &checkEventRepo{pool: pool}
}

const checkEventColumns = `seq, id, credential_id, token_hash, direction, status, reason, gate_id, occurred_at`

func (r *checkEventRepo) Append(ctx context.Context, tx repository.Tx, ev *model.CheckEvent) error {
	if ev == nil {
		return domain.ErrInvalidArgument
	}
	const q = `
INSERT INTO check_events (id, credential_id, token_hash, direction, status, reason, gate_id, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING seq;
`
	row, err := pickRow(ctx, r.pool, tx, q,
		ev.ID, nullIfEmpty(ev.CredentialID), ev.TokenHash, string(ev.Direction), string(ev.Status), ev.Reason, ev.GateID, ev.OccurredAt,
	)
	if err != nil {
		return err
	}
	return mapError(row.Scan(&ev.Seq))
}

func (r *checkEventRepo) LatestStateful(ctx context.Context, tx repository.Tx, credentialID string) (*model.CheckEvent, error) {
	q := `SELECT ` + checkEventColumns + `
  FROM check_events
 WHERE credential_id = $1 AND status IN ('ENTRY', 'EXIT', 'REENTRY')
 ORDER BY seq DESC
 LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, credentialID)
	if err != nil {
		return nil, err
	}
	ev, err := scanCheckEvent(row)
	if err == domain.ErrNotFound {
		return nil, nil
	}
	return ev, err
}

func (r *checkEventRepo) ListByCredential(ctx context.Context, tx repository.Tx, credentialID string) ([]*model.CheckEvent, error) {
	q := `SELECT ` + checkEventColumns + ` FROM check_events WHERE credential_id = $1 ORDER BY seq;`
	rows, err := queryRows(ctx, r.pool, tx, q, credentialID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*model.CheckEvent{}
	for rows.Next() {
		ev, err := scanCheckEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, mapError(rows.Err())
}

func scanCheckEvent(row pgx.Row) (*model.CheckEvent, error) {
	var (
		ev                model.CheckEvent
		credentialID      *string
		direction, status string
	)
	err := row.Scan(&ev.Seq, &ev.ID, &credentialID, &ev.TokenHash, &direction, &status, &ev.Reason, &ev.GateID, &ev.OccurredAt)
	if err != nil {
		return nil, scanErr(err)
	}
	if credentialID != nil {
		ev.CredentialID = *credentialID
	}
	ev.Direction = model.Direction(direction)
	ev.Status = model.CheckStatus(status)
	ev.OccurredAt = ev.OccurredAt.UTC()
	return &ev, nil
}

// actionLogRepo only inserts and reads; a trigger rejects UPDATE/DELETE on the table.
type actionLogRepo struct {
	pool *pgxpool.Pool
}

func NewActionLogRepo(pool *pgxpool.Pool) *actionLogRepo {
	return &actionLogRepo{pool: pool}
}

func (r *actionLogRepo) Append(ctx context.Context, tx repository.Tx, entry *model.ActionLog) error {
	if entry == nil {
		return domain.ErrInvalidArgument
	}
	const q = `
INSERT INTO action_logs (id, credential_id, action, actor, detail, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING seq;
`
	row, err := pickRow(ctx, r.pool, tx, q,
		entry.ID, entry.CredentialID, string(entry.Action), entry.Actor, entry.Detail, entry.OccurredAt,
	)
	if err != nil {
		return err
	}
	return mapError(row.Scan(&entry.Seq))
}

func (r *actionLogRepo) ListByCredential(ctx context.Context, tx repository.Tx, credentialID string) ([]*model.ActionLog, error) {
	const q = `
SELECT seq, id, credential_id, action, actor, detail, occurred_at
  FROM action_logs
 WHERE credential_id = $1
 ORDER BY seq;
`
	rows, err := queryRows(ctx, r.pool, tx, q, credentialID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*model.ActionLog{}
	for rows.Next() {
		var (
			a      model.ActionLog
			action string
		)
		if err := rows.Scan(&a.Seq, &a.ID, &a.CredentialID, &action, &a.Actor, &a.Detail, &a.OccurredAt); err != nil {
			return nil, mapError(err)
		}
		a.Action = model.Action(action)
		a.OccurredAt = a.OccurredAt.UTC()
		out = append(out, &a)
	}
	return out, mapError(rows.Err())
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
