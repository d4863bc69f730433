package identity

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/careconnect/clinic/internal/platform/apperr"
	"github.com/careconnect/clinic/internal/platform/db"
)

type userRepoPG struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) UserRepository {
	return &userRepoPG{pool: pool}
}

func (r *userRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const userCols = `id, email, name, credentials, password_hash, role, created_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Credentials, &u.PasswordHash, &u.Role, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepoPG) GetByEmail(ctx context.Context, email string) (*User, error) {
	u, err := scanUser(r.conn(ctx).QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE email = $1`, email))
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("user not found")
	}
	return u, err
}

func (r *userRepoPG) ListByRole(ctx context.Context, role string) ([]*User, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+userCols+` FROM users WHERE role = $1 ORDER BY name, id`, role)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *userRepoPG) Create(ctx context.Context, u *User) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO users (email, name, credentials, password_hash, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		u.Email, u.Name, u.Credentials, u.PasswordHash, u.Role,
	).Scan(&u.ID, &u.CreatedAt)
	if db.IsUniqueViolation(err) {
		return apperr.Conflict("user %s already exists", u.Email)
	}
	return err
}
