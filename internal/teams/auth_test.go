package teams

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestTokenStore_RoundTrip(t *testing.T) {
	store := NewTokenStore(filepath.Join(t.TempDir(), "nested", "token.json"))

	_, err := store.Load()
	require.Error(t, err)

	tok := &oauth2.Token{
		AccessToken:  "access-123",
		RefreshToken: "refresh-456",
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(time.Hour).UTC(),
	}
	require.NoError(t, store.Save(tok))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "access-123", loaded.AccessToken)
	assert.Equal(t, "refresh-456", loaded.RefreshToken)

	require.NoError(t, store.Clear())
	_, err = store.Load()
	assert.Error(t, err)

	// Clearing twice is fine.
	require.NoError(t, store.Clear())
}

func TestAuth_IsAuthenticated(t *testing.T) {
	tokenPath := filepath.Join(t.TempDir(), "token.json")
	auth := NewAuth(Config{
		ClientID:    "client",
		TenantID:    "common",
		RedirectURI: "http://localhost:8400/callback",
		Scopes:      DefaultScopes,
		TokenPath:   tokenPath,
	})

	assert.False(t, auth.IsAuthenticated())

	store := NewTokenStore(tokenPath)

	// Valid token.
	require.NoError(t, store.Save(&oauth2.Token{
		AccessToken: "live",
		Expiry:      time.Now().Add(time.Hour),
	}))
	assert.True(t, auth.IsAuthenticated())

	// Expired but refreshable.
	require.NoError(t, store.Save(&oauth2.Token{
		AccessToken:  "stale",
		RefreshToken: "refresh",
		Expiry:       time.Now().Add(-time.Hour),
	}))
	assert.True(t, auth.IsAuthenticated())

	// Expired with no refresh token.
	require.NoError(t, store.Save(&oauth2.Token{
		AccessToken: "stale",
		Expiry:      time.Now().Add(-time.Hour),
	}))
	assert.False(t, auth.IsAuthenticated())

	require.NoError(t, auth.Logout())
	assert.False(t, auth.IsAuthenticated())
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("WEFT_TEAMS_CLIENT_ID", "app-id")
	t.Setenv("WEFT_TEAMS_CLIENT_SECRET", "secret")
	t.Setenv("WEFT_TEAMS_TENANT_ID", "")

	cfg, err := ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "app-id", cfg.ClientID)
	assert.Equal(t, "secret", cfg.ClientSecret)
	assert.Equal(t, "common", cfg.TenantID)
	assert.Equal(t, DefaultScopes, cfg.Scopes)
	assert.Contains(t, cfg.TokenPath, "teams_token.json")
}

func TestConfigFromEnv_RequiresClientID(t *testing.T) {
	t.Setenv("WEFT_TEAMS_CLIENT_ID", "")

	_, err := ConfigFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WEFT_TEAMS_CLIENT_ID")
}
