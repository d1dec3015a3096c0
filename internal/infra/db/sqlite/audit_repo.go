package sqlite

import (
	"context"
	"database/sql"

	"gate-admission/internal/domain"
	"gate-admission/internal/domain/model"
	"gate-admission/internal/domain/ports/repository"
)

// Ensure implementation satisfies the interface.
var (
	_ repository.CheckEventRepository = (*CheckEventRepo)(nil)
	_ repository.ActionLogRepository  = (*ActionLogRepo)(nil)
)

type CheckEventRepo struct {
	db *sql.DB
}

func NewCheckEventRepo(db *sql.DB) *CheckEventRepo {
	return &CheckEventRepo{db: db}
}

const checkEventColumns = `seq, id, credential_id, token_hash, direction, status, reason, gate_id, occurred_at_ms`

func (r *CheckEventRepo) Append(ctx context.Context, tx repository.Tx, ev *model.CheckEvent) error {
	if ev == nil {
		return domain.ErrInvalidArgument
	}
	ex, err := getExecutor(r.db, tx)
	if err != nil {
		return err
	}
	res, err := ex.ExecContext(ctx, `
INSERT INTO check_events (id, credential_id, token_hash, direction, status, reason, gate_id, occurred_at_ms)
VALUES (?, ?, ?, ?, ?, ?, ?, ?);
`,
		ev.ID, nullableString(ev.CredentialID), ev.TokenHash, string(ev.Direction), string(ev.Status), ev.Reason, ev.GateID, toMs(ev.OccurredAt),
	)
	if err != nil {
		return mapError(err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return mapError(err)
	}
	ev.Seq = seq
	return nil
}

func (r *CheckEventRepo) LatestStateful(ctx context.Context, tx repository.Tx, credentialID string) (*model.CheckEvent, error) {
	ex, err := getExecutor(r.db, tx)
	if err != nil {
		return nil, err
	}
	ev, err := scanCheckEvent(ex.QueryRowContext(ctx, `
SELECT `+checkEventColumns+`
  FROM check_events
 WHERE credential_id = ? AND status IN ('ENTRY', 'EXIT', 'REENTRY')
 ORDER BY seq DESC
 LIMIT 1;
`, credentialID))
	if err == domain.ErrNotFound {
		return nil, nil
	}
	return ev, err
}

func (r *CheckEventRepo) ListByCredential(ctx context.Context, tx repository.Tx, credentialID string) ([]*model.CheckEvent, error) {
	ex, err := getExecutor(r.db, tx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.QueryContext(ctx, `SELECT `+checkEventColumns+` FROM check_events WHERE credential_id = ? ORDER BY seq;`, credentialID)
	if err != nil {
		return nil, mapError(err)
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

func scanCheckEvent(row rowScanner) (*model.CheckEvent, error) {
	var (
		ev                model.CheckEvent
		credentialID      sql.NullString
		direction, status string
		occurredMs        int64
	)
	err := row.Scan(&ev.Seq, &ev.ID, &credentialID, &ev.TokenHash, &direction, &status, &ev.Reason, &ev.GateID, &occurredMs)
	if err != nil {
		return nil, scanErr(err)
	}
	ev.CredentialID = credentialID.String
	ev.Direction = model.Direction(direction)
	ev.Status = model.CheckStatus(status)
	ev.OccurredAt = fromMs(occurredMs)
	return &ev, nil
}

type ActionLogRepo struct {
	db *sql.DB
}

func NewActionLogRepo(db *sql.DB) *ActionLogRepo {
	return &ActionLogRepo{db: db}
}

func (r *ActionLogRepo) Append(ctx context.Context, tx repository.Tx, entry *model.ActionLog) error {
	if entry == nil {
		return domain.ErrInvalidArgument
	}
	ex, err := getExecutor(r.db, tx)
	if err != nil {
		return err
	}
	res, err := ex.ExecContext(ctx, `
INSERT INTO action_logs (id, credential_id, action, actor, detail, occurred_at_ms)
VALUES (?, ?, ?, ?, ?, ?);
`,
		entry.ID, entry.CredentialID, string(entry.Action), entry.Actor, entry.Detail, toMs(entry.OccurredAt),
	)
	if err != nil {
		return mapError(err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return mapError(err)
	}
	entry.Seq = seq
	return nil
}

func (r *ActionLogRepo) ListByCredential(ctx context.Context, tx repository.Tx, credentialID string) ([]*model.ActionLog, error) {
	ex, err := getExecutor(r.db, tx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.QueryContext(ctx, `
SELECT seq, id, credential_id, action, actor, detail, occurred_at_ms
  FROM action_logs
 WHERE credential_id = ?
 ORDER BY seq;
`, credentialID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	out := []*model.ActionLog{}
	for rows.Next() {
		var (
			a          model.ActionLog
			action     string
			occurredMs int64
		)
		if err := rows.Scan(&a.Seq, &a.ID, &a.CredentialID, &action, &a.Actor, &a.Detail, &occurredMs); err != nil {
			return nil, mapError(err)
		}
		a.Action = model.Action(action)
		a.OccurredAt = fromMs(occurredMs)
		out = append(out, &a)
	}
	return out, mapError(rows.Err())
}
