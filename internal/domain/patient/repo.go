package patient

import "context"

type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id int64) (*Patient, error)
	List(ctx context.Context, limit, offset int) ([]*Patient, int, error)
}
