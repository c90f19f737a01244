//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/weftware/weft/internal/api/handlers"
	"github.com/weftware/weft/internal/embedcache"
	"github.com/weftware/weft/internal/jobs"
	"github.com/weftware/weft/internal/repository"
	"github.com/weftware/weft/internal/server"
	"github.com/weftware/weft/internal/service"
	"github.com/weftware/weft/internal/storage"
	"github.com/weftware/weft/internal/testutil"
)

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T            *testing.T
	Ctx          context.Context
	PostgresC    *testutil.PostgresContainer
	MinIOC       *testutil.MinIOContainer
	Pool         *pgxpool.Pool
	ServerURL    string
	ServerCloser func()
	BinaryDir    string
	HTTPClient   *http.Client
}

// SetupE2EEnv creates a full E2E test environment with containers and an
// in-process server. Embedding and extraction run against deterministic
// stub providers so the whole enrichment pipeline works offline.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	// Start PostgreSQL container
	pgC := testutil.NewPostgresContainer(ctx, t)

	// Start MinIO container for the transcript archive
	minioC := testutil.NewMinIOContainer(ctx, t)

	// Create connection pool and run migrations
	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	// Create S3 client against MinIO
	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        minioC.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     minioC.AccessKey,
		SecretAccessKey: minioC.SecretKey,
		Bucket:          "test-captures",
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("failed to create S3 client: %v", err)
	}

	if err := s3Client.EnsureBucket(ctx); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}

	// Find free port for server
	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}

	// Start HTTP server with the enrichment worker
	serverURL, serverCloser := startServer(t, pool, storage.NewTranscriptArchive(s3Client), port)

	return &E2ETestEnv{
		T:            t,
		Ctx:          ctx,
		PostgresC:    pgC,
		MinIOC:       minioC,
		Pool:         pool,
		ServerURL:    serverURL,
		ServerCloser: serverCloser,
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.ServerCloser != nil {
		e.ServerCloser()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.MinIOC != nil {
		e.MinIOC.Terminate(e.Ctx)
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(e.Ctx)
	}
	// Clean up binaries
	if e.BinaryDir != "" {
		os.RemoveAll(e.BinaryDir)
	}
}

// WaitForEnrichment blocks until the fragment's enrichment job completes.
func (e *E2ETestEnv) WaitForEnrichment(fragmentID string) {
	e.T.Helper()

	deadline := time.Now().Add(30 * time.Second)
	for time.Now().Before(deadline) {
		var status string
		err := e.Pool.QueryRow(e.Ctx,
			"SELECT status FROM enrichment_jobs WHERE fragment_id = $1 ORDER BY created_at DESC LIMIT 1",
			fragmentID).Scan(&status)
		if err == nil {
			switch status {
			case "completed":
				return
			case "failed":
				var errMsg string
				e.Pool.QueryRow(e.Ctx,
					"SELECT COALESCE(error, '') FROM enrichment_jobs WHERE fragment_id = $1 ORDER BY created_at DESC LIMIT 1",
					fragmentID).Scan(&errMsg)
				e.T.Fatalf("enrichment failed for fragment %s: %s", fragmentID, errMsg)
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	e.T.Fatalf("enrichment for fragment %s did not complete within 30s", fragmentID)
}

// BuildBinaries builds the weft and weftd binaries
func (e *E2ETestEnv) BuildBinaries() {
	tmpDir, err := os.MkdirTemp("", "weft-e2e-*")
	if err != nil {
		e.T.Fatalf("failed to create temp dir: %v", err)
	}
	e.BinaryDir = tmpDir

	// Build weftd
	cmd := exec.Command("go", "build", "-o", filepath.Join(tmpDir, "weftd"), "./cmd/weftd")
	cmd.Dir = "../.."
	if out, err := cmd.CombinedOutput(); err != nil {
		e.T.Fatalf("failed to build weftd: %v\n%s", err, out)
	}

	// Build weft
	cmd = exec.Command("go", "build", "-o", filepath.Join(tmpDir, "weft"), "./cmd/weft")
	cmd.Dir = "../.."
	if out, err := cmd.CombinedOutput(); err != nil {
		e.T.Fatalf("failed to build weft: %v\n%s", err, out)
	}
}

// RunWeft runs the weft CLI command against the test server
func (e *E2ETestEnv) RunWeft(workDir string, args ...string) (string, error) {
	cmd := exec.Command(filepath.Join(e.BinaryDir, "weft"), args...)
	cmd.Dir = workDir
	cmd.Env = append(os.Environ(),
		fmt.Sprintf("WEFT_API_URL=%s", e.ServerURL),
	)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// RunWeftWithInput runs the weft CLI command with stdin input
func (e *E2ETestEnv) RunWeftWithInput(workDir string, input string, args ...string) (string, error) {
	cmd := exec.Command(filepath.Join(e.BinaryDir, "weft"), args...)
	cmd.Dir = workDir
	cmd.Stdin = bytes.NewReader([]byte(input))
	cmd.Env = append(os.Environ(),
		fmt.Sprintf("WEFT_API_URL=%s", e.ServerURL),
	)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// APIResponse represents a standard API response
type APIResponse struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error,omitempty"`
}

// Get performs a GET request
func (e *E2ETestEnv) Get(path string) (*APIResponse, error) {
	return e.doRequest("GET", path, nil)
}

// Post performs a POST request
func (e *E2ETestEnv) Post(path string, body interface{}) (*APIResponse, error) {
	return e.doRequest("POST", path, body)
}

// Delete performs a DELETE request
func (e *E2ETestEnv) Delete(path string) (*APIResponse, error) {
	return e.doRequest("DELETE", path, nil)
}

func (e *E2ETestEnv) doRequest(method, path string, body interface{}) (*APIResponse, error) {
	url := e.ServerURL + path

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var apiResp APIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
		}
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, apiResp.Error)
	}

	return &apiResp, nil
}

// startServer starts the HTTP server with the full service stack and a
// fast-polling enrichment worker.
func startServer(t *testing.T, pool *pgxpool.Pool, archive service.TranscriptArchiveInterface, port int) (string, func()) {
	fragmentRepo := repository.NewFragmentRepository(pool)
	decisionRepo := repository.NewDecisionRepository(pool)
	assumptionRepo := repository.NewAssumptionRepository(pool)
	linkRepo := repository.NewLinkRepository(pool)
	enrichmentJobRepo := repository.NewEnrichmentJobRepository(pool)
	txRunner := repository.NewTxRunner(pool)
	index := repository.NewPgvectorIndex(pool)

	cache, err := embedcache.New(256)
	if err != nil {
		t.Fatalf("failed to create embedding cache: %v", err)
	}
	embedder := service.NewCachedEmbedder(&stubEmbeddingClient{}, cache)

	// The word-overlap stub produces lower similarities than a real
	// embedding model, so the link threshold comes down with it.
	linker := service.NewLinkingEngineWithConfig(index, linkRepo, service.LinkingConfig{
		Neighbours: 5,
		Threshold:  0.3,
	})
	extractor := service.NewExtractor(&stubChatClient{})

	enrichmentSvc := service.NewEnrichmentService(fragmentRepo, txRunner, embedder, index, linker, extractor)
	worker := jobs.NewWorker(jobs.NewEnrichmentWorker(enrichmentJobRepo, enrichmentSvc), 100*time.Millisecond)
	go worker.Start(context.Background())

	fragmentSvc := service.NewFragmentServiceWithArchive(txRunner, fragmentRepo, linkRepo, index, archive)

	cfg := server.RouterConfig{
		FragmentHandler:   handlers.NewFragmentHandler(fragmentSvc),
		SearchHandler:     handlers.NewSearchHandler(service.NewSearchService(fragmentRepo, embedder, index)),
		DecisionHandler:   handlers.NewDecisionHandler(service.NewDecisionService(decisionRepo)),
		AssumptionHandler: handlers.NewAssumptionHandler(service.NewAssumptionService(txRunner, assumptionRepo)),
		GraphHandler:      handlers.NewGraphHandler(service.NewGraphService(fragmentRepo, linkRepo)),
	}

	router := server.NewRouter(cfg)
	addr := fmt.Sprintf(":%d", port)

	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	// Wait for server to start
	serverURL := fmt.Sprintf("http://localhost:%d", port)
	waitForServer(t, serverURL, 10*time.Second)

	return serverURL, func() {
		worker.Stop()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

func waitForServer(t *testing.T, url string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server did not start within %v", timeout)
}

func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// stubEmbeddingClient embeds text as a normalized bag-of-words vector.
// Texts sharing words land close together in cosine space, which is all
// search and linking need.
type stubEmbeddingClient struct{}

func (c *stubEmbeddingClient) Embed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, 1536)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,!?:;\"'()")
		if word == "" {
			continue
		}
		h := fnv.New32a()
		h.Write([]byte(word))
		vec[h.Sum32()%1536]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec, nil
}

func (c *stubEmbeddingClient) Model() string {
	return "stub-bag-of-words"
}

// stubChatClient returns canned extraction results keyed off trigger words
// in the analyzed text.
type stubChatClient struct{}

func (c *stubChatClient) GenerateJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	switch {
	case strings.Contains(systemPrompt, "identifying decisions"):
		if strings.Contains(userPrompt, "decided") {
			return `{"decisions": [{"what": "Ship the billing migration on Friday", "why": "Staging has been stable", "confidence": 0.9}]}`, nil
		}
		return `{"decisions": []}`, nil
	case strings.Contains(systemPrompt, "identifying assumptions"):
		if strings.Contains(userPrompt, "assuming") {
			return `{"assumptions": [{"statement": "Staging mirrors production", "explicit": true}]}`, nil
		}
		return `{"assumptions": []}`, nil
	default:
		return `{"summary": "Stub summary of the capture."}`, nil
	}
}

func (c *stubChatClient) Model() string {
	return "stub-chat"
}
