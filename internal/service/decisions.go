package service

import (
	"context"
	"time"

	"github.com/weftware/weft/internal/domain"
	"github.com/weftware/weft/internal/telemetry"
)

// DecisionRepositoryInterface defines the repository interface for decision persistence
type DecisionRepositoryInterface interface {
	Create(ctx context.Context, d *domain.Decision) error
	GetByID(ctx context.Context, id string) (*domain.Decision, error)
	List(ctx context.Context, filter DecisionFilter) ([]*domain.Decision, error)
	DeleteByFragment(ctx context.Context, fragmentID string) error
}

// DecisionFilter narrows decision listings. Project filters through the
// owning fragment.
type DecisionFilter struct {
	FragmentID string
	Project    string
	Since      *time.Time
	Limit      int
}

// CreateDecisionInput represents the input for recording a decision
type CreateDecisionInput struct {
	FragmentID string
	What       string
	Why        string
	Confidence float64
}

// DecisionService handles business logic for extracted decisions
type DecisionService struct {
	decisionRepo DecisionRepositoryInterface
	uuidGen      UUIDGenerator
}

// NewDecisionService creates a new DecisionService instance
func NewDecisionService(decisionRepo DecisionRepositoryInterface) *DecisionService {
	return &DecisionService{
		decisionRepo: decisionRepo,
		uuidGen:      &DefaultUUIDGenerator{},
	}
}

// NewDecisionServiceWithUUIDGen creates a new DecisionService with custom UUID generator (for testing)
func NewDecisionServiceWithUUIDGen(decisionRepo DecisionRepositoryInterface, uuidGen UUIDGenerator) *DecisionService {
	return &DecisionService{
		decisionRepo: decisionRepo,
		uuidGen:      uuidGen,
	}
}

// Create records a decision against a fragment. Decisions are immutable
// once written.
func (s *DecisionService) Create(ctx context.Context, input CreateDecisionInput) (*domain.Decision, error) {
	ctx, span := telemetry.StartSpan(ctx, "DecisionService.Create", telemetry.SpanAttributes{
		FragmentID: input.FragmentID,
		Operation:  "create",
	})
	defer span.End()

	decision := &domain.Decision{
		ID:         s.uuidGen.NewString(),
		FragmentID: input.FragmentID,
		What:       input.What,
		Why:        input.Why,
		Confidence: input.Confidence,
		CreatedAt:  time.Now().UTC(),
	}

	if err := domain.ValidateDecision(decision); err != nil {
		return nil, err
	}

	if err := s.decisionRepo.Create(ctx, decision); err != nil {
		return nil, err
	}

	return decision, nil
}

// GetByID retrieves a decision by ID
func (s *DecisionService) GetByID(ctx context.Context, id string) (*domain.Decision, error) {
	return s.decisionRepo.GetByID(ctx, id)
}

// List returns decisions matching the filter, most recent first.
func (s *DecisionService) List(ctx context.Context, filter DecisionFilter) ([]*domain.Decision, error) {
	ctx, span := telemetry.StartSpan(ctx, "DecisionService.List", telemetry.SpanAttributes{
		FragmentID: filter.FragmentID,
		Project:    filter.Project,
		Operation:  "list",
	})
	defer span.End()

	return s.decisionRepo.List(ctx, filter)
}
