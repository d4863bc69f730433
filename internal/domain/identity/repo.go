package identity

import "context"

type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (*User, error)
	ListByRole(ctx context.Context, role string) ([]*User, error)
	Create(ctx context.Context, u *User) error
}
