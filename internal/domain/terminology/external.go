package terminology

import (
	"context"

	"github.com/careconnect/clinic/internal/platform/icd11"
)

type icd11Searcher struct {
	client *icd11.Client
}

// NewICD11Searcher adapts the WHO client to ExternalSearcher.
func NewICD11Searcher(client *icd11.Client) ExternalSearcher {
	return icd11Searcher{client: client}
}

func (s icd11Searcher) Search(ctx context.Context, q string) ([]ExternalEntity, error) {
	found, err := s.client.Search(ctx, q)
	if err != nil {
		return nil, err
	}
	out := make([]ExternalEntity, len(found))
	for i, e := range found {
		out[i] = ExternalEntity{Code: e.Code, Title: e.Title, URI: e.URI}
	}
	return out, nil
}
