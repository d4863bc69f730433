package medication

import "context"

type Repository interface {
	Search(ctx context.Context, query string, limit int) ([]*Drug, error)
	// GetByName matches case-insensitively.
	GetByName(ctx context.Context, name string) (*Drug, error)
	// Insert adds d unless the name is taken and reports whether it did.
	Insert(ctx context.Context, d *Drug) (bool, error)
}
