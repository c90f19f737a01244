package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/weftware/weft/internal/domain"
)

// MockDecisionRepository is a mock implementation of DecisionRepositoryInterface
type MockDecisionRepository struct {
	mock.Mock
}

func (m *MockDecisionRepository) Create(ctx context.Context, d *domain.Decision) error {
	args := m.Called(ctx, d)
	return args.Error(0)
}

func (m *MockDecisionRepository) GetByID(ctx context.Context, id string) (*domain.Decision, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Decision), args.Error(1)
}

func (m *MockDecisionRepository) List(ctx context.Context, filter DecisionFilter) ([]*domain.Decision, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Decision), args.Error(1)
}

func (m *MockDecisionRepository) DeleteByFragment(ctx context.Context, fragmentID string) error {
	args := m.Called(ctx, fragmentID)
	return args.Error(0)
}

// TestDecisionService_Create tests the Create method
func TestDecisionService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("records a decision against a fragment", func(t *testing.T) {
		mockDecisionRepo := new(MockDecisionRepository)
		mockUUIDGen := NewMockUUIDGenerator("decision-id-1")

		service := NewDecisionServiceWithUUIDGen(mockDecisionRepo, mockUUIDGen)

		input := CreateDecisionInput{
			FragmentID: "fragment-id-1",
			What:       "Use pgvector for the first deployment",
			Why:        "One less moving part than a separate vector store",
			Confidence: 0.9,
		}

		// Setup expectations
		mockDecisionRepo.On("Create", mock.Anything, mock.MatchedBy(func(d *domain.Decision) bool {
			return d.ID == "decision-id-1" &&
				d.FragmentID == "fragment-id-1" &&
				d.What == "Use pgvector for the first deployment" &&
				d.Why == "One less moving part than a separate vector store" &&
				d.Confidence == 0.9
		})).Return(nil)

		// Execute
		result, err := service.Create(ctx, input)

		// Assert
		require.NoError(t, err)
		assert.Equal(t, "decision-id-1", result.ID)
		assert.WithinDuration(t, time.Now().UTC(), result.CreatedAt, time.Minute)
		mockDecisionRepo.AssertExpectations(t)
	})

	t.Run("returns error on validation failure - missing fragment ID", func(t *testing.T) {
		mockDecisionRepo := new(MockDecisionRepository)
		service := NewDecisionService(mockDecisionRepo)

		input := CreateDecisionInput{
			What:       "Use pgvector",
			Confidence: 0.9,
		}

		result, err := service.Create(ctx, input)

		require.Error(t, err)
		assert.Nil(t, result)
		assert.Contains(t, err.Error(), "FragmentID")
		mockDecisionRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("returns error on validation failure - confidence out of range", func(t *testing.T) {
		mockDecisionRepo := new(MockDecisionRepository)
		service := NewDecisionService(mockDecisionRepo)

		input := CreateDecisionInput{
			FragmentID: "fragment-id-1",
			What:       "Use pgvector",
			Confidence: 1.3,
		}

		result, err := service.Create(ctx, input)

		require.Error(t, err)
		assert.Nil(t, result)
		assert.Contains(t, err.Error(), "Confidence")
	})

	t.Run("returns error on repository failure", func(t *testing.T) {
		mockDecisionRepo := new(MockDecisionRepository)
		service := NewDecisionService(mockDecisionRepo)

		input := CreateDecisionInput{
			FragmentID: "fragment-id-1",
			What:       "Use pgvector",
			Confidence: 0.9,
		}

		expectedErr := errors.New("database error")
		mockDecisionRepo.On("Create", mock.Anything, mock.Anything).Return(expectedErr)

		result, err := service.Create(ctx, input)

		require.Error(t, err)
		assert.Nil(t, result)
		assert.Equal(t, expectedErr, err)
	})
}

// TestDecisionService_List tests the List method
func TestDecisionService_List(t *testing.T) {
	ctx := context.Background()

	t.Run("passes the filter through", func(t *testing.T) {
		mockDecisionRepo := new(MockDecisionRepository)
		service := NewDecisionService(mockDecisionRepo)

		since := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
		filter := DecisionFilter{FragmentID: "fragment-id-1", Project: "billing", Since: &since, Limit: 50}

		decisions := []*domain.Decision{{ID: "decision-id-1", FragmentID: "fragment-id-1"}}
		mockDecisionRepo.On("List", mock.Anything, filter).Return(decisions, nil)

		result, err := service.List(ctx, filter)

		require.NoError(t, err)
		require.Len(t, result, 1)
		assert.Equal(t, "decision-id-1", result[0].ID)
	})

	t.Run("propagates repository errors", func(t *testing.T) {
		mockDecisionRepo := new(MockDecisionRepository)
		service := NewDecisionService(mockDecisionRepo)

		expectedErr := errors.New("database error")
		mockDecisionRepo.On("List", mock.Anything, mock.Anything).Return(nil, expectedErr)

		result, err := service.List(ctx, DecisionFilter{})

		require.Error(t, err)
		assert.Nil(t, result)
	})
}

// TestDecisionService_GetByID tests the GetByID method
func TestDecisionService_GetByID(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the decision", func(t *testing.T) {
		mockDecisionRepo := new(MockDecisionRepository)
		service := NewDecisionService(mockDecisionRepo)

		decision := &domain.Decision{ID: "decision-id-1"}
		mockDecisionRepo.On("GetByID", mock.Anything, "decision-id-1").Return(decision, nil)

		result, err := service.GetByID(ctx, "decision-id-1")

		require.NoError(t, err)
		assert.Equal(t, decision, result)
	})

	t.Run("propagates not found", func(t *testing.T) {
		mockDecisionRepo := new(MockDecisionRepository)
		service := NewDecisionService(mockDecisionRepo)

		mockDecisionRepo.On("GetByID", mock.Anything, "missing").Return(nil, domain.ErrDecisionNotFound)

		result, err := service.GetByID(ctx, "missing")

		require.Error(t, err)
		assert.Nil(t, result)
		assert.ErrorIs(t, err, domain.ErrDecisionNotFound)
	})
}
