package medication

import (
	"context"
	"errors"
	"strings"

	"github.com/careconnect/clinic/internal/platform/apperr"
)

const MaxSearchResults = 10

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Search(ctx context.Context, query string) ([]*Drug, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []*Drug{}, nil
	}
	out, err := s.repo.Search(ctx, query, MaxSearchResults)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []*Drug{}
	}
	return out, nil
}

// Add puts d in the catalog. When a drug with the same name exists it is
// returned instead and created is false.
func (s *Service) Add(ctx context.Context, d Drug) (drug *Drug, created bool, err error) {
	d.Name = strings.TrimSpace(d.Name)
	if d.Name == "" {
		return nil, false, apperr.Validation("name is required")
	}
	d.DefaultDosage = strings.TrimSpace(d.DefaultDosage)
	d.DefaultFrequency = strings.TrimSpace(d.DefaultFrequency)
	d.DefaultDuration = strings.TrimSpace(d.DefaultDuration)

	existing, err := s.repo.GetByName(ctx, d.Name)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, false, err
	}

	ok, err := s.repo.Insert(ctx, &d)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		existing, err := s.repo.GetByName(ctx, d.Name)
		return existing, false, err
	}
	return &d, true, nil
}
