package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockChatClient is a mock implementation of ChatClient
type MockChatClient struct {
	mock.Mock
}

func (m *MockChatClient) GenerateJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	args := m.Called(ctx, systemPrompt, userPrompt)
	return args.String(0), args.Error(1)
}

func (m *MockChatClient) Model() string {
	args := m.Called()
	return args.String(0)
}

// TestExtractor_ExtractDecisions tests the ExtractDecisions method
func TestExtractor_ExtractDecisions(t *testing.T) {
	ctx := context.Background()

	t.Run("keeps decisions that clear the confidence threshold", func(t *testing.T) {
		mockChat := new(MockChatClient)
		extractor := NewExtractor(mockChat)

		raw := `{"decisions": [
			{"what": "Ship on Friday", "why": "QA signed off", "confidence": 0.95},
			{"what": "Maybe switch CI providers", "why": "", "confidence": 0.5},
			{"what": "Keep pgvector", "why": "Works at our scale", "confidence": 0.7}
		]}`

		mockChat.On("GenerateJSON", mock.Anything, mock.Anything, mock.MatchedBy(func(prompt string) bool {
			return strings.Contains(prompt, "we decided to ship on friday")
		})).Return(raw, nil)
		mockChat.On("Model").Return("gpt-4o-mini")

		// Execute
		result, err := extractor.ExtractDecisions(ctx, "we decided to ship on friday")

		// Assert
		require.NoError(t, err)
		require.Len(t, result.Decisions, 2)
		assert.Equal(t, "Ship on Friday", result.Decisions[0].What)
		assert.Equal(t, "Keep pgvector", result.Decisions[1].What)
		assert.Equal(t, "gpt-4o-mini", result.Model)
	})

	t.Run("clamps out-of-range confidence", func(t *testing.T) {
		mockChat := new(MockChatClient)
		extractor := NewExtractor(mockChat)

		raw := `{"decisions": [{"what": "Ship it", "why": "", "confidence": 1.4}]}`
		mockChat.On("GenerateJSON", mock.Anything, mock.Anything, mock.Anything).Return(raw, nil)
		mockChat.On("Model").Return("gpt-4o-mini")

		result, err := extractor.ExtractDecisions(ctx, "content")

		require.NoError(t, err)
		require.Len(t, result.Decisions, 1)
		assert.Equal(t, 1.0, result.Decisions[0].Confidence)
	})

	t.Run("filters on confidence alone", func(t *testing.T) {
		mockChat := new(MockChatClient)
		extractor := NewExtractor(mockChat)

		// An empty what is the model's problem, not the filter's.
		raw := `{"decisions": [{"what": "", "why": "unclear transcript", "confidence": 0.9}]}`
		mockChat.On("GenerateJSON", mock.Anything, mock.Anything, mock.Anything).Return(raw, nil)
		mockChat.On("Model").Return("gpt-4o-mini")

		result, err := extractor.ExtractDecisions(ctx, "content")

		require.NoError(t, err)
		require.Len(t, result.Decisions, 1)
		assert.Empty(t, result.Decisions[0].What)
	})

	t.Run("degrades malformed output to an empty extraction", func(t *testing.T) {
		mockChat := new(MockChatClient)
		extractor := NewExtractor(mockChat)

		mockChat.On("GenerateJSON", mock.Anything, mock.Anything, mock.Anything).
			Return("I could not find any decisions in this text.", nil)

		result, err := extractor.ExtractDecisions(ctx, "content")

		require.NoError(t, err)
		assert.Empty(t, result.Decisions)
		assert.Equal(t, "unknown", result.Model)
	})

	t.Run("propagates provider errors", func(t *testing.T) {
		mockChat := new(MockChatClient)
		extractor := NewExtractor(mockChat)

		expectedErr := errors.New("rate limited")
		mockChat.On("GenerateJSON", mock.Anything, mock.Anything, mock.Anything).Return("", expectedErr)

		result, err := extractor.ExtractDecisions(ctx, "content")

		require.Error(t, err)
		assert.Nil(t, result)
		assert.Equal(t, expectedErr, err)
	})

	t.Run("honors a custom confidence threshold", func(t *testing.T) {
		mockChat := new(MockChatClient)
		extractor := NewExtractorWithConfig(mockChat, ExtractionConfig{MinConfidence: 0.9})

		raw := `{"decisions": [
			{"what": "Ship on Friday", "why": "", "confidence": 0.95},
			{"what": "Keep pgvector", "why": "", "confidence": 0.8}
		]}`
		mockChat.On("GenerateJSON", mock.Anything, mock.Anything, mock.Anything).Return(raw, nil)
		mockChat.On("Model").Return("gpt-4o-mini")

		result, err := extractor.ExtractDecisions(ctx, "content")

		require.NoError(t, err)
		require.Len(t, result.Decisions, 1)
		assert.Equal(t, "Ship on Friday", result.Decisions[0].What)
	})
}

// TestExtractor_ExtractAssumptions tests the ExtractAssumptions method
func TestExtractor_ExtractAssumptions(t *testing.T) {
	ctx := context.Background()

	t.Run("keeps non-blank statements with their explicit flag", func(t *testing.T) {
		mockChat := new(MockChatClient)
		extractor := NewExtractor(mockChat)

		raw := `{"assumptions": [
			{"statement": "Everyone is migrated by Q3", "explicit": true},
			{"statement": "Staging mirrors production", "explicit": false},
			{"statement": "   "}
		]}`
		mockChat.On("GenerateJSON", mock.Anything, mock.Anything, mock.Anything).Return(raw, nil)
		mockChat.On("Model").Return("gpt-4o-mini")

		// Execute
		result, err := extractor.ExtractAssumptions(ctx, "content")

		// Assert
		require.NoError(t, err)
		require.Len(t, result.Assumptions, 2)
		assert.Equal(t, "Everyone is migrated by Q3", result.Assumptions[0].Statement)
		assert.True(t, result.Assumptions[0].Explicit)
		assert.False(t, result.Assumptions[1].Explicit)
	})

	t.Run("treats a missing explicit flag as stated directly", func(t *testing.T) {
		mockChat := new(MockChatClient)
		extractor := NewExtractor(mockChat)

		raw := `{"assumptions": [{"statement": "The API stays backwards compatible"}]}`
		mockChat.On("GenerateJSON", mock.Anything, mock.Anything, mock.Anything).Return(raw, nil)
		mockChat.On("Model").Return("gpt-4o-mini")

		result, err := extractor.ExtractAssumptions(ctx, "content")

		require.NoError(t, err)
		require.Len(t, result.Assumptions, 1)
		assert.True(t, result.Assumptions[0].Explicit)
	})

	t.Run("degrades malformed output to an empty extraction", func(t *testing.T) {
		mockChat := new(MockChatClient)
		extractor := NewExtractor(mockChat)

		mockChat.On("GenerateJSON", mock.Anything, mock.Anything, mock.Anything).
			Return("no assumptions here", nil)

		result, err := extractor.ExtractAssumptions(ctx, "content")

		require.NoError(t, err)
		assert.Empty(t, result.Assumptions)
		assert.Equal(t, "unknown", result.Model)
	})

	t.Run("propagates provider errors", func(t *testing.T) {
		mockChat := new(MockChatClient)
		extractor := NewExtractor(mockChat)

		expectedErr := errors.New("rate limited")
		mockChat.On("GenerateJSON", mock.Anything, mock.Anything, mock.Anything).Return("", expectedErr)

		result, err := extractor.ExtractAssumptions(ctx, "content")

		require.Error(t, err)
		assert.Nil(t, result)
	})
}

// TestExtractor_Summarize tests the Summarize method
func TestExtractor_Summarize(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the trimmed summary", func(t *testing.T) {
		mockChat := new(MockChatClient)
		extractor := NewExtractor(mockChat)

		raw := `{"summary": "  Team agreed to ship the billing migration on Friday.  "}`
		mockChat.On("GenerateJSON", mock.Anything, mock.Anything, mock.Anything).Return(raw, nil)

		summary, err := extractor.Summarize(ctx, "content")

		require.NoError(t, err)
		assert.Equal(t, "Team agreed to ship the billing migration on Friday.", summary)
	})

	t.Run("degrades malformed output to an empty summary", func(t *testing.T) {
		mockChat := new(MockChatClient)
		extractor := NewExtractor(mockChat)

		mockChat.On("GenerateJSON", mock.Anything, mock.Anything, mock.Anything).
			Return("Sure! Here is a summary:", nil)

		summary, err := extractor.Summarize(ctx, "content")

		require.NoError(t, err)
		assert.Empty(t, summary)
	})

	t.Run("propagates provider errors", func(t *testing.T) {
		mockChat := new(MockChatClient)
		extractor := NewExtractor(mockChat)

		expectedErr := errors.New("rate limited")
		mockChat.On("GenerateJSON", mock.Anything, mock.Anything, mock.Anything).Return("", expectedErr)

		summary, err := extractor.Summarize(ctx, "content")

		require.Error(t, err)
		assert.Empty(t, summary)
	})
}
