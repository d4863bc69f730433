package terminology

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

func (r *repoPG) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.InTx(ctx, r.pool, fn)
}

// likePattern escapes LIKE metacharacters so user input matches literally.
func likePattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(q) + "%"
}

func (r *repoPG) Search(ctx context.Context, query string, limit int) ([]*Code, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, code, description FROM icd11_codes
		WHERE code ILIKE $1 OR description ILIKE $1
		ORDER BY description LIMIT $2`, likePattern(query), limit)
	if err != nil {
		return nil, fmt.Errorf("icd11 search: %w", err)
	}
	defer rows.Close()

	var out []*Code
	for rows.Next() {
		var c Code
		if err := rows.Scan(&c.ID, &c.Code, &c.Description); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (r *repoPG) GetByDescription(ctx context.Context, description string) (*Code, error) {
	var c Code
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, code, description FROM icd11_codes
		WHERE lower(description) = lower($1)`, description,
	).Scan(&c.ID, &c.Code, &c.Description)
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("diagnosis %q not found", description)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *repoPG) ExistingDescriptions(ctx context.Context, descriptions []string) (map[string]bool, error) {
	lowered := make([]string, len(descriptions))
	for i, d := range descriptions {
		lowered[i] = strings.ToLower(d)
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT lower(description) FROM icd11_codes
		WHERE lower(description) = ANY($1)`, lowered)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		out[d] = true
	}
	return out, rows.Err()
}

func (r *repoPG) Insert(ctx context.Context, c *Code) (bool, error) {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO icd11_codes (code, description) VALUES ($1, $2)
		ON CONFLICT DO NOTHING
		RETURNING id`, c.Code, c.Description,
	).Scan(&c.ID)
	if db.IsNoRows(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
