package terminology

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/rs/zerolog"

	"github.com/careconnect/clinic/internal/platform/apperr"
)

const (
	MaxLocalResults    = 20
	MaxExternalResults = 20
)

// ExternalSearcher looks diagnoses up in the WHO ICD-11 API.
type ExternalSearcher interface {
	Search(ctx context.Context, q string) ([]ExternalEntity, error)
}

type Service struct {
	repo     Repository
	external ExternalSearcher
	newCode  func() string
}

// NewService builds the catalog service. external may be nil, in which case
// external lookups report the service as unavailable.
func NewService(repo Repository, external ExternalSearcher) *Service {
	return &Service{repo: repo, external: external, newCode: customCode}
}

// customCode returns CUS- followed by four random digits.
func customCode() string {
	return fmt.Sprintf("%s%d", CustomCodePrefix, 1000+rand.IntN(9000))
}

func (s *Service) SearchLocal(ctx context.Context, query string) ([]*Code, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []*Code{}, nil
	}
	out, err := s.repo.Search(ctx, query, MaxLocalResults)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []*Code{}
	}
	return out, nil
}

// SaveLocal adds a diagnosis to the catalog. A description that already
// exists is returned as is with Created false.
func (s *Service) SaveLocal(ctx context.Context, in CodeInput) (*SaveResult, error) {
	desc := strings.TrimSpace(in.Description)
	if desc == "" {
		return nil, apperr.Validation("description is required")
	}

	existing, err := s.repo.GetByDescription(ctx, desc)
	switch {
	case err == nil:
		return &SaveResult{Code: *existing, Message: "Diagnosis already exists"}, nil
	case !errors.Is(err, apperr.ErrNotFound):
		return nil, err
	}

	c := &Code{Code: strings.TrimSpace(in.Code), Description: desc}
	if c.Code == "" {
		c.Code = s.newCode()
	}
	created, err := s.repo.Insert(ctx, c)
	if err != nil {
		return nil, err
	}
	if !created {
		// Lost a race with a concurrent writer; return the winner.
		winner, err := s.repo.GetByDescription(ctx, desc)
		if err != nil {
			return nil, err
		}
		return &SaveResult{Code: *winner, Message: "Diagnosis already exists"}, nil
	}
	return &SaveResult{Code: *c, Message: "Saved locally", Created: true}, nil
}

// BulkImport inserts every new description in one transaction. Entries with
// blank descriptions are ignored; repeats within the batch or of existing
// rows are counted as duplicates.
func (s *Service) BulkImport(ctx context.Context, items []CodeInput) (*ImportResult, error) {
	if len(items) == 0 {
		return nil, apperr.Validation("No data provided")
	}

	var (
		valid []CodeInput
		descs []string
	)
	for _, it := range items {
		it.Description = strings.TrimSpace(it.Description)
		if it.Description == "" {
			continue
		}
		it.Code = strings.TrimSpace(it.Code)
		valid = append(valid, it)
		descs = append(descs, it.Description)
	}

	imported := 0
	err := s.repo.InTx(ctx, func(ctx context.Context) error {
		imported = 0
		seen, err := s.repo.ExistingDescriptions(ctx, descs)
		if err != nil {
			return err
		}
		for _, it := range valid {
			key := strings.ToLower(it.Description)
			if seen[key] {
				continue
			}
			seen[key] = true

			c := &Code{Code: it.Code, Description: it.Description}
			if c.Code == "" {
				c.Code = s.newCode()
			}
			created, err := s.repo.Insert(ctx, c)
			if err != nil {
				return err
			}
			if created {
				imported++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	zerolog.Ctx(ctx).Info().Int("imported", imported).Int("submitted", len(items)).Msg("diagnosis catalog import")
	return &ImportResult{
		Message:        fmt.Sprintf("Imported %d diagnoses", imported),
		ImportedCount:  imported,
		DuplicateCount: len(valid) - imported,
	}, nil
}

// SearchExternal queries the WHO ICD-11 API. Failures are reported as
// unavailable so callers can fall back to the local catalog.
func (s *Service) SearchExternal(ctx context.Context, query string) ([]ExternalEntity, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []ExternalEntity{}, nil
	}
	if s.external == nil {
		return nil, apperr.Unavailable(nil, "ICD-11 lookup is not available")
	}
	out, err := s.external.Search(ctx, query)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("icd11 external search failed")
		return nil, apperr.Unavailable(err, "ICD-11 lookup is temporarily unavailable")
	}
	if len(out) > MaxExternalResults {
		out = out[:MaxExternalResults]
	}
	if out == nil {
		out = []ExternalEntity{}
	}
	return out, nil
}
