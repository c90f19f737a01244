package service

import (
	"context"
	"time"

	"github.com/weftware/weft/internal/domain"
	"github.com/weftware/weft/internal/telemetry"
)

// AssumptionRepositoryInterface defines the repository interface for assumption persistence
type AssumptionRepositoryInterface interface {
	Create(ctx context.Context, a *domain.Assumption) error
	GetByID(ctx context.Context, id string) (*domain.Assumption, error)
	List(ctx context.Context, filter AssumptionFilter) ([]*domain.Assumption, error)
	Invalidate(ctx context.Context, id, invalidatedBy string) error
	MarkValid(ctx context.Context, id string) error
	DeleteUnvalidated(ctx context.Context, fragmentID string) error
}

// AssumptionFilter narrows assumption listings. ValidOnly drops rows whose
// validity is invalid; unknown rows stay in.
type AssumptionFilter struct {
	FragmentID string
	Project    string
	ValidOnly  bool
	Since      *time.Time
	Limit      int
}

// CreateAssumptionInput represents the input for recording an assumption
type CreateAssumptionInput struct {
	FragmentID string
	Statement  string
	Explicit   bool
}

// AssumptionService handles business logic for assumptions and their
// validity lifecycle
type AssumptionService struct {
	txRunner       TxRunner
	assumptionRepo AssumptionRepositoryInterface
	uuidGen        UUIDGenerator
}

// NewAssumptionService creates a new AssumptionService instance
func NewAssumptionService(txRunner TxRunner, assumptionRepo AssumptionRepositoryInterface) *AssumptionService {
	return &AssumptionService{
		txRunner:       txRunner,
		assumptionRepo: assumptionRepo,
		uuidGen:        &DefaultUUIDGenerator{},
	}
}

// NewAssumptionServiceWithUUIDGen creates a new AssumptionService with custom UUID generator (for testing)
func NewAssumptionServiceWithUUIDGen(
	txRunner TxRunner,
	assumptionRepo AssumptionRepositoryInterface,
	uuidGen UUIDGenerator,
) *AssumptionService {
	return &AssumptionService{
		txRunner:       txRunner,
		assumptionRepo: assumptionRepo,
		uuidGen:        uuidGen,
	}
}

// Create records an assumption against a fragment. New assumptions start
// with unknown validity.
func (s *AssumptionService) Create(ctx context.Context, input CreateAssumptionInput) (*domain.Assumption, error) {
	ctx, span := telemetry.StartSpan(ctx, "AssumptionService.Create", telemetry.SpanAttributes{
		FragmentID: input.FragmentID,
		Operation:  "create",
	})
	defer span.End()

	assumption := domain.NewAssumption(
		s.uuidGen.NewString(),
		input.FragmentID,
		input.Statement,
		input.Explicit,
		time.Now().UTC(),
	)

	if err := domain.ValidateAssumption(assumption); err != nil {
		return nil, err
	}

	if err := s.assumptionRepo.Create(ctx, assumption); err != nil {
		return nil, err
	}

	return assumption, nil
}

// GetByID retrieves an assumption by ID
func (s *AssumptionService) GetByID(ctx context.Context, id string) (*domain.Assumption, error) {
	return s.assumptionRepo.GetByID(ctx, id)
}

// List returns assumptions matching the filter, most recent first.
func (s *AssumptionService) List(ctx context.Context, filter AssumptionFilter) ([]*domain.Assumption, error) {
	ctx, span := telemetry.StartSpan(ctx, "AssumptionService.List", telemetry.SpanAttributes{
		FragmentID: filter.FragmentID,
		Project:    filter.Project,
		Operation:  "list",
	})
	defer span.End()

	return s.assumptionRepo.List(ctx, filter)
}

// Invalidate flips an assumption with unknown validity to invalid and
// records the fragment that contradicts it. The invalidating fragment is
// checked inside the same transaction as the update, so it cannot be
// deleted out from under the reference. Returns the updated assumption.
func (s *AssumptionService) Invalidate(ctx context.Context, id, invalidatedBy string) (*domain.Assumption, error) {
	ctx, span := telemetry.StartSpan(ctx, "AssumptionService.Invalidate", telemetry.SpanAttributes{
		FragmentID: invalidatedBy,
		Operation:  "invalidate",
	})
	defer span.End()

	err := s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		exists, err := repos.Fragments().Exists(ctx, invalidatedBy)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrFragmentNotFound
		}
		return repos.Assumptions().Invalidate(ctx, id, invalidatedBy)
	})
	if err != nil {
		return nil, err
	}

	return s.assumptionRepo.GetByID(ctx, id)
}

// MarkValid flips an assumption with unknown validity to valid.
// Returns the updated assumption.
func (s *AssumptionService) MarkValid(ctx context.Context, id string) (*domain.Assumption, error) {
	ctx, span := telemetry.StartSpan(ctx, "AssumptionService.MarkValid", telemetry.SpanAttributes{
		Operation: "validate",
	})
	defer span.End()

	if err := s.assumptionRepo.MarkValid(ctx, id); err != nil {
		return nil, err
	}

	return s.assumptionRepo.GetByID(ctx, id)
}
