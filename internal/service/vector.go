package service

import (
	"context"

	"github.com/weftware/weft/internal/domain"
)

// VectorMetadata travels with a vector into the index. Filtered queries
// match against it without touching the relational store.
type VectorMetadata struct {
	Project    string
	SourceType domain.SourceType
}

// VectorFilter narrows a query to vectors whose metadata matches.
// Zero values match everything.
type VectorFilter struct {
	Project    string
	SourceType domain.SourceType
}

// VectorMatch is a single query hit. Distance is cosine distance,
// smaller means closer.
type VectorMatch struct {
	FragmentID string
	Distance   float64
}

// VectorIndex abstracts the vector store behind fragment search and
// automatic linking. The default backend keeps vectors in Postgres via
// pgvector; a qdrant backend is available for larger deployments.
type VectorIndex interface {
	Upsert(ctx context.Context, fragmentID string, vector []float32, meta VectorMetadata) error
	Query(ctx context.Context, vector []float32, k int, filter VectorFilter) ([]*VectorMatch, error)
	Delete(ctx context.Context, fragmentID string) (bool, error)
}

// Similarity converts a cosine distance into a score clamped to [0, 1].
func Similarity(distance float64) float64 {
	s := 1.0 - distance
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}
