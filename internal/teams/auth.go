// Package teams captures Microsoft Teams channel messages as fragments,
// using the Graph API behind an OAuth2 authorization-code flow.
package teams

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"
)

// DefaultScopes cover reading teams, channels and messages, plus
// offline_access so the token endpoint hands back a refresh token.
var DefaultScopes = []string{
	"ChannelMessage.Read.All",
	"Chat.Read",
	"Team.ReadBasic.All",
	"Channel.ReadBasic.All",
	"offline_access",
}

// Config holds the Azure AD application registration used to talk to the
// Graph API on the user's behalf.
type Config struct {
	ClientID     string
	ClientSecret string
	TenantID     string
	RedirectURI  string
	Scopes       []string
	TokenPath    string
}

// ConfigFromEnv builds a Config from WEFT_TEAMS_* environment variables.
// The client secret is optional for public client registrations, and the
// tenant defaults to the multi-tenant "common" endpoint.
func ConfigFromEnv() (Config, error) {
	clientID := os.Getenv("WEFT_TEAMS_CLIENT_ID")
	if clientID == "" {
		return Config{}, errors.New("WEFT_TEAMS_CLIENT_ID environment variable is required")
	}

	tenant := os.Getenv("WEFT_TEAMS_TENANT_ID")
	if tenant == "" {
		tenant = "common"
	}

	tokenPath, err := StateFilePath("teams_token.json")
	if err != nil {
		return Config{}, err
	}

	return Config{
		ClientID:     clientID,
		ClientSecret: os.Getenv("WEFT_TEAMS_CLIENT_SECRET"),
		TenantID:     tenant,
		RedirectURI:  "http://localhost:8400/callback",
		Scopes:       DefaultScopes,
		TokenPath:    tokenPath,
	}, nil
}

// StateFilePath returns the per-user path for a Teams state file, next to
// the rest of the CLI configuration.
func StateFilePath(name string) (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate config directory: %w", err)
	}
	return filepath.Join(dir, "weft", name), nil
}

func (c Config) oauth() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURI,
		Scopes:       c.Scopes,
		Endpoint:     microsoft.AzureADEndpoint(c.TenantID),
	}
}

// TokenStore persists the OAuth2 token between CLI invocations.
type TokenStore struct {
	path string
}

func NewTokenStore(path string) *TokenStore {
	return &TokenStore{path: path}
}

func (s *TokenStore) Load() (*oauth2.Token, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	var tok oauth2.Token
	if err := json.Unmarshal(raw, &tok); err != nil {
		return nil, fmt.Errorf("failed to parse token cache: %w", err)
	}
	return &tok, nil
}

func (s *TokenStore) Save(tok *oauth2.Token) error {
	raw, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}
	if err := os.WriteFile(s.path, raw, 0o600); err != nil {
		return fmt.Errorf("failed to write token cache: %w", err)
	}
	return nil
}

func (s *TokenStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove token cache: %w", err)
	}
	return nil
}

// Auth runs the authorization-code flow and hands out HTTP clients that
// refresh and re-persist tokens as needed.
type Auth struct {
	conf  *oauth2.Config
	store *TokenStore
}

func NewAuth(cfg Config) *Auth {
	return &Auth{conf: cfg.oauth(), store: NewTokenStore(cfg.TokenPath)}
}

// IsAuthenticated reports whether a usable token is cached: either still
// valid or refreshable.
func (a *Auth) IsAuthenticated() bool {
	tok, err := a.store.Load()
	if err != nil {
		return false
	}
	return tok.Valid() || tok.RefreshToken != ""
}

// Login prints the authorization URL, listens on the redirect URI for the
// browser callback and exchanges the code for a token, which is cached on
// disk for later invocations.
func (a *Auth) Login(ctx context.Context, timeout time.Duration) error {
	state, err := randomState()
	if err != nil {
		return err
	}

	redirect, err := url.Parse(a.conf.RedirectURL)
	if err != nil {
		return fmt.Errorf("invalid redirect URI: %w", err)
	}

	type callbackResult struct {
		code string
		err  error
	}
	results := make(chan callbackResult, 1)

	mux := http.NewServeMux()
	mux.HandleFunc(redirect.Path, func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		switch {
		case query.Get("state") != state:
			http.Error(w, "state mismatch", http.StatusBadRequest)
			results <- callbackResult{err: errors.New("state mismatch in OAuth callback")}
		case query.Get("error") != "":
			desc := query.Get("error_description")
			if desc == "" {
				desc = query.Get("error")
			}
			w.Header().Set("Content-Type", "text/html")
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintf(w, "<html><body><h1>Authentication failed</h1><p>%s</p></body></html>", html.EscapeString(desc))
			results <- callbackResult{err: fmt.Errorf("authorization failed: %s", desc)}
		default:
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, "<html><body><h1>Authentication successful</h1><p>You can close this window and return to the CLI.</p></body></html>")
			results <- callbackResult{code: query.Get("code")}
		}
	})

	srv := &http.Server{Addr: redirect.Host, Handler: mux}
	listenErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			listenErr <- err
		}
	}()

	fmt.Printf("Open this URL in your browser to sign in:\n\n  %s\n\n", a.conf.AuthCodeURL(state))

	var result callbackResult
	select {
	case result = <-results:
	case err := <-listenErr:
		return fmt.Errorf("callback listener failed: %w", err)
	case <-time.After(timeout):
		result.err = errors.New("timed out waiting for authentication")
	case <-ctx.Done():
		result.err = ctx.Err()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)

	if result.err != nil {
		return result.err
	}

	tok, err := a.conf.Exchange(ctx, result.code)
	if err != nil {
		return fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	return a.store.Save(tok)
}

// Logout removes the cached token.
func (a *Auth) Logout() error {
	return a.store.Clear()
}

// HTTPClient returns a client that injects bearer tokens and persists any
// refreshed token back to the cache, so the next invocation skips the
// refresh round trip.
func (a *Auth) HTTPClient(ctx context.Context) (*http.Client, error) {
	tok, err := a.store.Load()
	if err != nil {
		return nil, errors.New("not authenticated: run 'weft teams login' first")
	}
	src := &persistingSource{
		inner: a.conf.TokenSource(ctx, tok),
		store: a.store,
		last:  tok.AccessToken,
	}
	return oauth2.NewClient(ctx, src), nil
}

type persistingSource struct {
	inner oauth2.TokenSource
	store *TokenStore

	mu   sync.Mutex
	last string
}

func (s *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := s.inner.Token()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.last {
		s.last = tok.AccessToken
		if err := s.store.Save(tok); err != nil {
			log.Printf("teams: failed to persist refreshed token: %v", err)
		}
	}
	return tok, nil
}

func randomState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
