package service

import (
	"context"

	"github.com/weftware/weft/internal/embedcache"
)

// EmbeddingClient defines the interface for generating embeddings
type EmbeddingClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Model() string
}

// CachedEmbedder fronts an embedding client with a bounded LRU so repeated
// text (re-enrichment, repeated searches) never hits the provider twice.
// It satisfies EmbeddingClient itself and can stand in wherever one is
// expected.
type CachedEmbedder struct {
	client EmbeddingClient
	cache  *embedcache.Cache
}

// NewCachedEmbedder creates a new CachedEmbedder instance
func NewCachedEmbedder(client EmbeddingClient, cache *embedcache.Cache) *CachedEmbedder {
	return &CachedEmbedder{
		client: client,
		cache:  cache,
	}
}

// Embed returns the cached vector when one exists, otherwise asks the
// wrapped client and stores the result.
func (e *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	model := e.client.Model()
	if vector, ok := e.cache.Get(text, model); ok {
		return vector, nil
	}

	vector, err := e.client.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	e.cache.Put(text, model, vector)
	return vector, nil
}

// Model reports the wrapped client's model name.
func (e *CachedEmbedder) Model() string {
	return e.client.Model()
}
