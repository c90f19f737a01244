package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/weftware/weft/internal/domain"
	"github.com/weftware/weft/internal/telemetry"
)

// EnrichmentFragmentRepository defines the repository interface for enrichment reads
type EnrichmentFragmentRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Fragment, error)
}

// EnrichmentService runs the full enrichment pass for one fragment: embed
// and index it, link it to its neighbours, extract decisions and
// assumptions, and fill in the summary. It is driven by the background
// worker; a capture request never waits on it.
type EnrichmentService struct {
	fragmentRepo EnrichmentFragmentRepository
	txRunner     TxRunner
	embedder     EmbeddingClient
	index        VectorIndex
	linker       *LinkingEngine
	extractor    *Extractor
	uuidGen      UUIDGenerator
}

// NewEnrichmentService creates a new EnrichmentService instance.
// The extractor may be nil when no chat provider is configured; enrichment
// then stops after embedding and linking.
func NewEnrichmentService(
	fragmentRepo EnrichmentFragmentRepository,
	txRunner TxRunner,
	embedder EmbeddingClient,
	index VectorIndex,
	linker *LinkingEngine,
	extractor *Extractor,
) *EnrichmentService {
	return &EnrichmentService{
		fragmentRepo: fragmentRepo,
		txRunner:     txRunner,
		embedder:     embedder,
		index:        index,
		linker:       linker,
		extractor:    extractor,
		uuidGen:      &DefaultUUIDGenerator{},
	}
}

// NewEnrichmentServiceWithUUIDGen creates a new EnrichmentService with custom UUID generator (for testing)
func NewEnrichmentServiceWithUUIDGen(
	fragmentRepo EnrichmentFragmentRepository,
	txRunner TxRunner,
	embedder EmbeddingClient,
	index VectorIndex,
	linker *LinkingEngine,
	extractor *Extractor,
	uuidGen UUIDGenerator,
) *EnrichmentService {
	s := NewEnrichmentService(fragmentRepo, txRunner, embedder, index, linker, extractor)
	s.uuidGen = uuidGen
	return s
}

// EnrichFragment processes one fragment end to end. Embedding or indexing
// failures abort the run so the job retries. Linking never fails the run.
// Extraction aborts only on provider errors; malformed model output
// degrades to an empty extraction inside the Extractor.
//
// Extraction results replace the previous ones: decisions are rewritten
// wholesale, assumptions only where validity is still unknown, so a retry
// after a partial failure cannot duplicate rows and cannot erase lifecycle
// state.
func (s *EnrichmentService) EnrichFragment(ctx context.Context, fragmentID string) error {
	ctx, span := telemetry.StartSpan(ctx, "EnrichmentService.EnrichFragment", telemetry.SpanAttributes{
		FragmentID: fragmentID,
		Operation:  "enrich",
	})
	defer span.End()

	fragment, err := s.fragmentRepo.GetByID(ctx, fragmentID)
	if err != nil {
		return err
	}

	vector, err := s.embedder.Embed(ctx, fragment.RawContent)
	if err != nil {
		return fmt.Errorf("failed to generate embedding: %w", err)
	}

	meta := VectorMetadata{Project: fragment.Project, SourceType: fragment.SourceType}
	if err := s.index.Upsert(ctx, fragment.ID, vector, meta); err != nil {
		return fmt.Errorf("failed to index embedding: %w", err)
	}

	if s.linker != nil {
		linked := s.linker.LinkFragment(ctx, fragment.ID, vector)
		if linked > 0 {
			log.Printf("enrichment: linked fragment %s to %d neighbours", fragment.ID, linked)
		}
	}

	if s.extractor == nil {
		return nil
	}

	decisions, err := s.extractor.ExtractDecisions(ctx, fragment.RawContent)
	if err != nil {
		return fmt.Errorf("failed to extract decisions: %w", err)
	}

	assumptions, err := s.extractor.ExtractAssumptions(ctx, fragment.RawContent)
	if err != nil {
		return fmt.Errorf("failed to extract assumptions: %w", err)
	}

	summary, err := s.extractor.Summarize(ctx, fragment.RawContent)
	if err != nil {
		log.Printf("enrichment: summary generation failed for fragment %s: %v", fragment.ID, err)
		summary = ""
	}

	now := time.Now().UTC()
	return s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		if err := repos.Decisions().DeleteByFragment(ctx, fragment.ID); err != nil {
			return err
		}
		for _, d := range decisions.Decisions {
			decision := &domain.Decision{
				ID:         s.uuidGen.NewString(),
				FragmentID: fragment.ID,
				What:       d.What,
				Why:        d.Why,
				Confidence: d.Confidence,
				CreatedAt:  now,
			}
			if err := repos.Decisions().Create(ctx, decision); err != nil {
				return err
			}
		}

		if err := repos.Assumptions().DeleteUnvalidated(ctx, fragment.ID); err != nil {
			return err
		}
		for _, a := range assumptions.Assumptions {
			assumption := domain.NewAssumption(s.uuidGen.NewString(), fragment.ID, a.Statement, a.Explicit, now)
			if err := repos.Assumptions().Create(ctx, assumption); err != nil {
				return err
			}
		}

		if summary != "" {
			if err := repos.Fragments().UpdateSummary(ctx, fragment.ID, summary); err != nil {
				return err
			}
		}
		return nil
	})
}
