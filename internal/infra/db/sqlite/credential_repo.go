package sqlite

import (
	"context"
	"database/sql"
	"time"

	"gate-admission/internal/domain"
	"gate-admission/internal/domain/model"
	"gate-admission/internal/domain/ports/repository"
)

// Ensure implementation satisfies the interface.
var _ repository.CredentialRepository = (*CredentialRepo)(nil)

type CredentialRepo struct {
	db *sql.DB
}

func NewCredentialRepo(db *sql.DB) *CredentialRepo {
	return &CredentialRepo{db: db}
}

const credentialColumns = `id, holder_kind, holder_id, event_ticket_id, qr_code, manual_code,
       issued_at_ms, expires_at_ms, active, check_in_override, check_out_override, reentry_override, supersedes_id`

func (r *CredentialRepo) Insert(ctx context.Context, tx repository.Tx, c *model.Credential) error {
	if c == nil || c.ID == "" || c.Holder.IsZero() {
		return domain.ErrInvalidArgument
	}
	ex, err := getExecutor(r.db, tx)
	if err != nil {
		return err
	}
	var supersedes any
	if c.SupersedesID != nil {
		supersedes = *c.SupersedesID
	}
	_, err = ex.ExecContext(ctx, `
INSERT INTO credentials (`+credentialColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`,
		c.ID, string(c.Holder.Kind()), c.Holder.ID(), c.EventTicketID, c.QRCode, c.ManualCode,
		toMs(c.IssuedAt), toMs(c.ExpiresAt), boolToInt(c.Active),
		nullableBool(c.Overrides.CheckIn), nullableBool(c.Overrides.CheckOut), nullableBool(c.Overrides.Reentry), supersedes,
	)
	return mapError(err)
}

func (r *CredentialRepo) Deactivate(ctx context.Context, tx repository.Tx, id string) error {
	ex, err := getExecutor(r.db, tx)
	if err != nil {
		return err
	}
	res, err := ex.ExecContext(ctx, `UPDATE credentials SET active = 0 WHERE id = ? AND active = 1;`, id)
	if err != nil {
		return mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mapError(err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *CredentialRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Credential, error) {
	return r.one(ctx, tx, `SELECT `+credentialColumns+` FROM credentials WHERE id = ?;`, id)
}

func (r *CredentialRepo) FindByToken(ctx context.Context, tx repository.Tx, token string) (*model.Credential, error) {
	return r.one(ctx, tx, `SELECT `+credentialColumns+` FROM credentials WHERE qr_code = ?1 OR manual_code = ?1;`, token)
}

func (r *CredentialRepo) FindActiveByPair(ctx context.Context, tx repository.Tx, holder model.Holder, eventTicketID string) ([]*model.Credential, error) {
	ex, err := getExecutor(r.db, tx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.QueryContext(ctx, `
SELECT `+credentialColumns+`
  FROM credentials
 WHERE holder_kind = ? AND holder_id = ? AND event_ticket_id = ? AND active = 1
 ORDER BY issued_at_ms;
`, string(holder.Kind()), holder.ID(), eventTicketID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []*model.Credential
	for rows.Next() {
		c, err := scanCredential(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, mapError(rows.Err())
}

func (r *CredentialRepo) CodesTaken(ctx context.Context, tx repository.Tx, qrCode, manualCode string) (bool, error) {
	ex, err := getExecutor(r.db, tx)
	if err != nil {
		return false, err
	}
	var taken int
	err = ex.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM credentials WHERE qr_code = ? OR manual_code = ?);`,
		qrCode, manualCode,
	).Scan(&taken)
	if err != nil {
		return false, mapError(err)
	}
	return taken == 1, nil
}

func (r *CredentialRepo) CountActive(ctx context.Context, tx repository.Tx, now time.Time) (int, error) {
	ex, err := getExecutor(r.db, tx)
	if err != nil {
		return 0, err
	}
	var n int
	err = ex.QueryRowContext(ctx, `SELECT COUNT(*) FROM credentials WHERE active = 1 AND expires_at_ms >= ?;`, toMs(now)).Scan(&n)
	if err != nil {
		return 0, mapError(err)
	}
	return n, nil
}

// LockByID reads the row inside tx. The writer runs one transaction at a time,
// so holding tx already excludes every other writer.
func (r *CredentialRepo) LockByID(ctx context.Context, tx repository.Tx, id string) (*model.Credential, error) {
	if _, err := requireTx(tx); err != nil {
		return nil, err
	}
	return r.FindByID(ctx, tx, id)
}

func (r *CredentialRepo) LockPair(_ context.Context, tx repository.Tx, _ model.Holder, _ string) error {
	_, err := requireTx(tx)
	return err
}

func (r *CredentialRepo) one(ctx context.Context, tx repository.Tx, q string, args ...any) (*model.Credential, error) {
	ex, err := getExecutor(r.db, tx)
	if err != nil {
		return nil, err
	}
	return scanCredential(ex.QueryRowContext(ctx, q, args...))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCredential(row rowScanner) (*model.Credential, error) {
	var (
		c                          model.Credential
		kind, holderID             string
		issuedMs, expiresMs        int64
		active                     int
		checkIn, checkOut, reentry sql.NullBool
		supersedesID               sql.NullString
	)
	err := row.Scan(
		&c.ID, &kind, &holderID, &c.EventTicketID, &c.QRCode, &c.ManualCode,
		&issuedMs, &expiresMs, &active,
		&checkIn, &checkOut, &reentry, &supersedesID,
	)
	if err != nil {
		return nil, scanErr(err)
	}
	h, err := model.ParseHolder(kind, holderID)
	if err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	c.Holder = h
	c.IssuedAt = fromMs(issuedMs)
	c.ExpiresAt = fromMs(expiresMs)
	c.Active = active == 1
	c.Overrides = model.PolicyOverride{CheckIn: boolPtr(checkIn), CheckOut: boolPtr(checkOut), Reentry: boolPtr(reentry)}
	if supersedesID.Valid {
		id := supersedesID.String
		c.SupersedesID = &id
	}
	return &c, nil
}
