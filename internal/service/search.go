package service

import (
	"context"
	"errors"
	"strings"

	"github.com/weftware/weft/internal/domain"
	"github.com/weftware/weft/internal/telemetry"
)

// SearchResult is one semantic search hit.
type SearchResult struct {
	Fragment   *domain.Fragment
	Similarity float64
}

// SearchInput represents input for the search operation
type SearchInput struct {
	Query      string
	Project    string
	SourceType domain.SourceType
	Limit      int
}

// SearchService embeds a query and resolves vector index matches into
// fragments. The query embedding happens synchronously, so an unreachable
// provider surfaces as a ConnectionError to the caller.
type SearchService struct {
	fragmentRepo FragmentRepositoryInterface
	embedder     EmbeddingClient
	index        VectorIndex
}

// NewSearchService creates a new SearchService instance
func NewSearchService(
	fragmentRepo FragmentRepositoryInterface,
	embedder EmbeddingClient,
	index VectorIndex,
) *SearchService {
	return &SearchService{
		fragmentRepo: fragmentRepo,
		embedder:     embedder,
		index:        index,
	}
}

// Search returns fragments semantically close to the query, most similar
// first. Similarity is cosine similarity clamped to [0, 1].
func (s *SearchService) Search(ctx context.Context, input SearchInput) ([]*SearchResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "SearchService.Search", telemetry.SpanAttributes{
		Project:   input.Project,
		Operation: "search",
	})
	defer span.End()

	if strings.TrimSpace(input.Query) == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "search query is required")
	}

	limit := input.Limit
	if limit <= 0 {
		limit = 10
	}

	vector, err := s.embedder.Embed(ctx, input.Query)
	if err != nil {
		return nil, err
	}

	matches, err := s.index.Query(ctx, vector, limit, VectorFilter{
		Project:    input.Project,
		SourceType: input.SourceType,
	})
	if err != nil {
		return nil, err
	}

	results := make([]*SearchResult, 0, len(matches))
	for _, m := range matches {
		fragment, err := s.fragmentRepo.GetByID(ctx, m.FragmentID)
		if err != nil {
			// The index can briefly hold entries for deleted fragments.
			if errors.Is(err, domain.ErrFragmentNotFound) {
				continue
			}
			return nil, err
		}
		results = append(results, &SearchResult{
			Fragment:   fragment,
			Similarity: Similarity(m.Distance),
		})
	}

	return results, nil
}
