package openai

import (
	"context"
	"errors"
	"fmt"
	"math"

	openai "github.com/sashabaranov/go-openai"

	"github.com/weftware/weft/internal/domain"
)

const (
	// DefaultEmbeddingModel is the embedding model used when none is configured
	DefaultEmbeddingModel = "text-embedding-3-small"
	// DefaultEmbeddingDimensions is the vector width of text-embedding-3-small
	DefaultEmbeddingDimensions = 1536
	// DefaultChatModel is the chat model used when none is configured
	DefaultChatModel = "gpt-4o-mini"
)

var (
	// ErrEmptyText is returned when text is empty
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrEmptyPrompt is returned when the user prompt is empty
	ErrEmptyPrompt = errors.New("prompt cannot be empty")
	// ErrWrongDimensions is returned when an embedding has unexpected dimensions
	ErrWrongDimensions = errors.New("embedding has unexpected dimensions")
)

// Config holds connection settings for an OpenAI-compatible server. BaseURL
// may point at any server speaking the OpenAI API, including an Ollama
// instance at http://localhost:11434/v1.
type Config struct {
	APIKey              string
	BaseURL             string
	EmbeddingModel      string
	EmbeddingDimensions int
	ChatModel           string
}

// EmbeddingAPI defines the interface for embedding generation
type EmbeddingAPI interface {
	CreateEmbedding(ctx context.Context, model, text string) ([]float32, error)
}

// ChatAPI defines the interface for JSON-mode chat completion
type ChatAPI interface {
	CreateJSONCompletion(ctx context.Context, model, systemPrompt, userPrompt string) (string, error)
}

// SDKAdapter implements EmbeddingAPI and ChatAPI using the go-openai SDK.
type SDKAdapter struct {
	client *openai.Client
}

// NewSDKAdapter creates an adapter for the server at baseURL, or for
// api.openai.com when baseURL is empty.
func NewSDKAdapter(apiKey, baseURL string) *SDKAdapter {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &SDKAdapter{client: openai.NewClientWithConfig(cfg)}
}

// CreateEmbedding calls the embeddings endpoint with a single input.
func (a *SDKAdapter) CreateEmbedding(ctx context.Context, model, text string) ([]float32, error) {
	resp, err := a.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(model),
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Data) == 0 {
		return nil, errors.New("no embedding data returned")
	}

	return resp.Data[0].Embedding, nil
}

// CreateJSONCompletion asks the chat endpoint for a single JSON object reply.
func (a *SDKAdapter) CreateJSONCompletion(ctx context.Context, model, systemPrompt, userPrompt string) (string, error) {
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		// The SDK omits a zero temperature from the request body, so send
		// the smallest value above it.
		Temperature: math.SmallestNonzeroFloat32,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("no completion choices returned")
	}

	return resp.Choices[0].Message.Content, nil
}

// EmbeddingClient generates embeddings through an OpenAI-compatible server.
type EmbeddingClient struct {
	api        EmbeddingAPI
	model      string
	dimensions int
}

// NewEmbeddingClient creates an embedding client from cfg.
func NewEmbeddingClient(cfg Config) *EmbeddingClient {
	model := cfg.EmbeddingModel
	if model == "" {
		model = DefaultEmbeddingModel
	}
	dimensions := cfg.EmbeddingDimensions
	if dimensions <= 0 {
		dimensions = DefaultEmbeddingDimensions
	}
	return &EmbeddingClient{
		api:        NewSDKAdapter(cfg.APIKey, cfg.BaseURL),
		model:      model,
		dimensions: dimensions,
	}
}

// Embed generates an embedding for the given text
func (c *EmbeddingClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	embedding, err := c.api.CreateEmbedding(ctx, c.model, text)
	if err != nil {
		return nil, classifyErr("failed to create embedding", err)
	}

	if len(embedding) != c.dimensions {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrWrongDimensions, len(embedding), c.dimensions)
	}

	return embedding, nil
}

// Model returns the embedding model name.
func (c *EmbeddingClient) Model() string {
	return c.model
}

// Dimensions returns the expected embedding width.
func (c *EmbeddingClient) Dimensions() int {
	return c.dimensions
}

// ChatClient generates JSON completions through an OpenAI-compatible server.
type ChatClient struct {
	api   ChatAPI
	model string
}

// NewChatClient creates a chat client from cfg.
func NewChatClient(cfg Config) *ChatClient {
	model := cfg.ChatModel
	if model == "" {
		model = DefaultChatModel
	}
	return &ChatClient{
		api:   NewSDKAdapter(cfg.APIKey, cfg.BaseURL),
		model: model,
	}
}

// GenerateJSON sends the prompts and returns the raw JSON object reply.
func (c *ChatClient) GenerateJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if userPrompt == "" {
		return "", ErrEmptyPrompt
	}

	out, err := c.api.CreateJSONCompletion(ctx, c.model, systemPrompt, userPrompt)
	if err != nil {
		return "", classifyErr("failed to create completion", err)
	}

	return out, nil
}

// Model returns the chat model name.
func (c *ChatClient) Model() string {
	return c.model
}

// classifyErr separates transport failures from API rejections. A 4xx
// response proves the server is reachable, so only request errors and 5xx
// responses map to a connection error.
func classifyErr(msg string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode < 500 {
		return fmt.Errorf("%s: %w", msg, err)
	}
	return domain.NewDomainErrorWithCause(domain.ErrCodeConnection, msg, err)
}
