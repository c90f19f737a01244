//go:build integration

package openai

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntegration_Embed_RealAPI(t *testing.T) {
	apiKey := os.Getenv("WEFT_OPENAI_API_KEY")
	if apiKey == "" {
		t.Skip("WEFT_OPENAI_API_KEY not set, skipping integration test")
	}

	client := NewEmbeddingClient(Config{APIKey: apiKey})
	ctx := context.Background()

	vector, err := client.Embed(ctx, "Decided to keep the nightly export job on the old scheduler.")

	require.NoError(t, err)
	assert.Len(t, vector, DefaultEmbeddingDimensions)
	assert.Equal(t, DefaultEmbeddingModel, client.Model())
}

func TestIntegration_GenerateJSON_RealAPI(t *testing.T) {
	apiKey := os.Getenv("WEFT_OPENAI_API_KEY")
	if apiKey == "" {
		t.Skip("WEFT_OPENAI_API_KEY not set, skipping integration test")
	}

	client := NewChatClient(Config{APIKey: apiKey})
	ctx := context.Background()

	out, err := client.GenerateJSON(ctx,
		"You are a helpful assistant. Reply with a JSON object.",
		`Return {"answer": "yes"} and nothing else.`)

	require.NoError(t, err)

	var reply map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &reply), "reply must be a JSON object: %s", out)
}
