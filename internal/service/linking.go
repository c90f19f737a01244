package service

import (
	"context"
	"log"
	"time"

	"github.com/weftware/weft/internal/domain"
	"github.com/weftware/weft/internal/telemetry"
)

// LinkRepositoryInterface defines the repository interface for fragment link persistence
type LinkRepositoryInterface interface {
	Upsert(ctx context.Context, l *domain.FragmentLink) error
	GetByID(ctx context.Context, id string) (*domain.FragmentLink, error)
	ListByFragment(ctx context.Context, fragmentID string) ([]*domain.FragmentLink, error)
	ListRelated(ctx context.Context, fragmentID string, limit int) ([]*RelatedFragment, error)
	ListAll(ctx context.Context, limit int) ([]*domain.FragmentLink, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// LinkingConfig controls automatic link creation.
type LinkingConfig struct {
	Neighbours int
	Threshold  float64
}

// DefaultLinkingConfig returns the default linking configuration.
func DefaultLinkingConfig() LinkingConfig {
	return LinkingConfig{
		Neighbours: 5,
		Threshold:  0.75,
	}
}

// LinkingEngine connects a freshly embedded fragment to its nearest
// neighbours in the vector index. It runs inside the enrichment worker,
// never in the capture request path.
type LinkingEngine struct {
	index    VectorIndex
	linkRepo LinkRepositoryInterface
	cfg      LinkingConfig
	uuidGen  UUIDGenerator
}

// NewLinkingEngine creates a new LinkingEngine instance
func NewLinkingEngine(index VectorIndex, linkRepo LinkRepositoryInterface) *LinkingEngine {
	return NewLinkingEngineWithConfig(index, linkRepo, DefaultLinkingConfig())
}

// NewLinkingEngineWithConfig creates a new LinkingEngine with explicit configuration.
func NewLinkingEngineWithConfig(index VectorIndex, linkRepo LinkRepositoryInterface, cfg LinkingConfig) *LinkingEngine {
	if cfg.Neighbours <= 0 {
		cfg.Neighbours = 5
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = 0.75
	}
	return &LinkingEngine{
		index:    index,
		linkRepo: linkRepo,
		cfg:      cfg,
		uuidGen:  &DefaultUUIDGenerator{},
	}
}

// LinkFragment queries the index for the fragment's nearest neighbours and
// upserts a relates_to link for every neighbour whose similarity clears the
// threshold. The fragment itself is skipped before thresholding. Link
// strength is overwritten on re-link, so the link set converges no matter
// the order fragments arrive in.
//
// Best-effort: failures are logged and swallowed. A partial link set is
// acceptable and never fails the enrichment run.
func (e *LinkingEngine) LinkFragment(ctx context.Context, fragmentID string, vector []float32) int {
	ctx, span := telemetry.StartSpan(ctx, "LinkingEngine.LinkFragment", telemetry.SpanAttributes{
		FragmentID: fragmentID,
		Operation:  "link",
	})
	defer span.End()

	// One extra neighbour because the fragment finds itself.
	matches, err := e.index.Query(ctx, vector, e.cfg.Neighbours+1, VectorFilter{})
	if err != nil {
		log.Printf("linking: neighbour query failed for fragment %s: %v", fragmentID, err)
		telemetry.CaptureError(ctx, err)
		return 0
	}

	linked := 0
	for _, m := range matches {
		if m.FragmentID == fragmentID {
			continue
		}

		similarity := Similarity(m.Distance)
		if similarity < e.cfg.Threshold {
			continue
		}

		link := &domain.FragmentLink{
			ID:        e.uuidGen.NewString(),
			SourceID:  fragmentID,
			TargetID:  m.FragmentID,
			Kind:      domain.LinkKindRelatesTo,
			Strength:  similarity,
			CreatedAt: time.Now().UTC(),
		}

		if err := domain.ValidateFragmentLink(link); err != nil {
			log.Printf("linking: skipping link %s -> %s: %v", fragmentID, m.FragmentID, err)
			continue
		}

		if err := e.linkRepo.Upsert(ctx, link); err != nil {
			log.Printf("linking: upsert %s -> %s failed: %v", fragmentID, m.FragmentID, err)
			telemetry.CaptureError(ctx, err)
			continue
		}
		linked++
	}

	return linked
}
