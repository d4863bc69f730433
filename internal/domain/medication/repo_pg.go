package medication

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/careconnect/clinic/internal/platform/apperr"
	"github.com/careconnect/clinic/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const drugCols = `id, name, default_dosage, default_frequency, default_duration`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDrug(row rowScanner) (*Drug, error) {
	var d Drug
	if err := row.Scan(&d.ID, &d.Name, &d.DefaultDosage, &d.DefaultFrequency, &d.DefaultDuration); err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *repoPG) Search(ctx context.Context, query string, limit int) ([]*Drug, error) {
	esc := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(query)
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+drugCols+` FROM drugs
		WHERE name ILIKE $1 ORDER BY name LIMIT $2`, "%"+esc+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("drug search: %w", err)
	}
	defer rows.Close()

	var out []*Drug
	for rows.Next() {
		d, err := scanDrug(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *repoPG) GetByName(ctx context.Context, name string) (*Drug, error) {
	d, err := scanDrug(r.conn(ctx).QueryRow(ctx, `SELECT `+drugCols+` FROM drugs
		WHERE lower(name) = lower($1)`, name))
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("drug %q not found", name)
	}
	return d, err
}

func (r *repoPG) Insert(ctx context.Context, d *Drug) (bool, error) {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO drugs (name, default_dosage, default_frequency, default_duration)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT DO NOTHING
		RETURNING id`,
		d.Name, d.DefaultDosage, d.DefaultFrequency, d.DefaultDuration,
	).Scan(&d.ID)
	if db.IsNoRows(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
