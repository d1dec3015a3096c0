package postgres

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v4/pgxpool"

	"gate-admission/internal/domain"
	"gate-admission/internal/domain/model"
	"gate-admission/internal/domain/ports/adapter"
	"gate-admission/internal/domain/ports/repository"
)

var _ adapter.HolderDirectory = (*holderDirectory)(nil)

// holderDirectory reads the holders table filled by the reservation flow.
// Refs missing from the table are accepted in canonical "member:<id>" or
// "guest:<token>" form.
type holderDirectory struct {
	pool *pgxpool.Pool
}

func NewHolderDirectory(pool *pgxpool.Pool) *holderDirectory {
	return &holderDirectory{pool: pool}
}

func (d *holderDirectory) Resolve(ctx context.Context, holderRef string) (model.Holder, error) {
	ref := strings.TrimSpace(holderRef)
	if ref == "" {
		return model.Holder{}, domain.ErrInvalidHolder
	}
	const q = `SELECT kind, holder_id FROM holders WHERE ref = $1;`
	row, err := pickRow(ctx, d.pool, repository.NoTX, q, ref)
	if err != nil {
		return model.Holder{}, err
	}
	var kind, id string
	err = scanErr(row.Scan(&kind, &id))
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

// Upsert registers a ref. Used by fixtures and integration tests.
func (d *holderDirectory) Upsert(ctx context.Context, ref string, h model.Holder) error {
	const q = `
INSERT INTO holders (ref, kind, holder_id) VALUES ($1, $2, $3)
ON CONFLICT (ref) DO UPDATE SET kind = EXCLUDED.kind, holder_id = EXCLUDED.holder_id;
`
	_, err := execSQL(ctx, d.pool, repository.NoTX, q, ref, string(h.Kind()), h.ID())
	return err
}
