package terminology

import "context"

type Repository interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
	Search(ctx context.Context, query string, limit int) ([]*Code, error)
	// GetByDescription matches case-insensitively.
	GetByDescription(ctx context.Context, description string) (*Code, error)
	// ExistingDescriptions returns the lowercased subset of descriptions
	// already in the catalog.
	ExistingDescriptions(ctx context.Context, descriptions []string) (map[string]bool, error)
	// Insert adds c unless its description is already present. It reports
	// whether a row was written.
	Insert(ctx context.Context, c *Code) (bool, error)
}
