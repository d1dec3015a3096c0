package postgres

import (
	"context"
	"hash/fnv"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"gate-admission/internal/domain"
	"gate-admission/internal/domain/model"
	"gate-admission/internal/domain/ports/repository"
)

// Ensure implementation satisfies the interface.
var _ repository.CredentialRepository = (*credentialRepo)(nil)

type credentialRepo struct {
	pool *pgxpool.Pool
}

func NewCredentialRepo(pool *pgxpool.Pool) *credentialRepo {
	return &credentialRepo{pool: pool}
}

const credentialColumns = `id, holder_kind, holder_id, event_ticket_id, qr_code, manual_code,
       issued_at, expires_at, active, check_in_override, check_out_override, reentry_override, supersedes_id`

func (r *credentialRepo) Insert(ctx context.Context, tx repository.Tx, c *model.Credential) error {
	if c == nil || c.ID == "" || c.Holder.IsZero() {
		return domain.ErrInvalidArgument
	}
	const q = `
INSERT INTO credentials (` + credentialColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13);
`
	_, err := execSQL(ctx, r.pool, tx, q,
		c.ID, string(c.Holder.Kind()), c.Holder.ID(), c.EventTicketID, c.QRCode, c.ManualCode,
		c.IssuedAt, c.ExpiresAt, c.Active,
		c.Overrides.CheckIn, c.Overrides.CheckOut, c.Overrides.Reentry, c.SupersedesID,
	)
	return err
}

// Deactivate only flips the flag; credential rows are never deleted.
func (r *credentialRepo) Deactivate(ctx context.Context, tx repository.Tx, id string) error {
	const q = `UPDATE credentials SET active = FALSE WHERE id = $1 AND active;`
	tag, err := execSQL(ctx, r.pool, tx, q, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *credentialRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Credential, error) {
	q := `SELECT ` + credentialColumns + ` FROM credentials WHERE id = $1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanCredential(row)
}

func (r *credentialRepo) FindByToken(ctx context.Context, tx repository.Tx, token string) (*model.Credential, error) {
	q := `SELECT ` + credentialColumns + ` FROM credentials WHERE qr_code = $1 OR manual_code = $1;`
	row, err := pickRow(ctx, r.pool, tx, q, token)
	if err != nil {
		return nil, err
	}
	return scanCredential(row)
}

func (r *credentialRepo) FindActiveByPair(ctx context.Context, tx repository.Tx, holder model.Holder, eventTicketID string) ([]*model.Credential, error) {
	q := `SELECT ` + credentialColumns + `
  FROM credentials
 WHERE holder_kind = $1 AND holder_id = $2 AND event_ticket_id = $3 AND active
 ORDER BY issued_at;`
	rows, err := queryRows(ctx, r.pool, tx, q, string(holder.Kind()), holder.ID(), eventTicketID)
	if err != nil {
		return nil, err
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

func (r *credentialRepo) CodesTaken(ctx context.Context, tx repository.Tx, qrCode, manualCode string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM credentials WHERE qr_code = $1 OR manual_code = $2);`
	row, err := pickRow(ctx, r.pool, tx, q, qrCode, manualCode)
	if err != nil {
		return false, err
	}
	var taken bool
	if err := row.Scan(&taken); err != nil {
		return false, mapError(err)
	}
	return taken, nil
}

func (r *credentialRepo) CountActive(ctx context.Context, tx repository.Tx, now time.Time) (int, error) {
	const q = `SELECT COUNT(*) FROM credentials WHERE active AND expires_at >= $1;`
	row, err := pickRow(ctx, r.pool, tx, q, now)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, mapError(err)
	}
	return n, nil
}

// LockByID takes the row lock for the rest of tx. The wait is bounded by the
// lock_timeout TxManager sets; expiry surfaces as domain.ErrLockTimeout.
func (r *credentialRepo) LockByID(ctx context.Context, tx repository.Tx, id string) (*model.Credential, error) {
	ptx, err := requireTx(tx)
	if err != nil {
		return nil, err
	}
	q := `SELECT ` + credentialColumns + ` FROM credentials WHERE id = $1 FOR UPDATE;`
	return scanCredential(ptx.QueryRow(ctx, q, id))
}

// LockPair serialises issuance per (holder, ticket) with a transaction-scoped
// advisory lock, so two issues for a pair never both pass the active check.
func (r *credentialRepo) LockPair(ctx context.Context, tx repository.Tx, holder model.Holder, eventTicketID string) error {
	ptx, err := requireTx(tx)
	if err != nil {
		return err
	}
	_, err = ptx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", hashToInt64(model.PairKey(holder, eventTicketID)))
	return mapError(err)
}

func hashToInt64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64() & ((1 << 63) - 1))
}

func scanCredential(row pgx.Row) (*model.Credential, error) {
	var (
		c              model.Credential
		kind, holderID string
		supersedesID   *string
	)
	err := row.Scan(
		&c.ID, &kind, &holderID, &c.EventTicketID, &c.QRCode, &c.ManualCode,
		&c.IssuedAt, &c.ExpiresAt, &c.Active,
		&c.Overrides.CheckIn, &c.Overrides.CheckOut, &c.Overrides.Reentry, &supersedesID,
	)
	if err != nil {
		return nil, scanErr(err)
	}
	h, err := model.ParseHolder(kind, holderID)
	if err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	c.Holder = h
	c.SupersedesID = supersedesID
	c.IssuedAt = c.IssuedAt.UTC()
	c.ExpiresAt = c.ExpiresAt.UTC()
	return &c, nil
}
