package admin

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/weftware/weft/internal/api/handlers"
	"github.com/weftware/weft/internal/config"
	"github.com/weftware/weft/internal/database"
	"github.com/weftware/weft/internal/domain"
	"github.com/weftware/weft/internal/embedcache"
	"github.com/weftware/weft/internal/jobs"
	"github.com/weftware/weft/internal/openai"
	"github.com/weftware/weft/internal/qdrant"
	"github.com/weftware/weft/internal/repository"
	"github.com/weftware/weft/internal/server"
	"github.com/weftware/weft/internal/service"
	"github.com/weftware/weft/internal/storage"
	"github.com/weftware/weft/internal/telemetry"
)

// embedCacheCapacity bounds the in-process embedding cache shared by the
// enrichment worker and search.
const embedCacheCapacity = 4096

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the weft API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8787", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize Sentry with tracing if SENTRY_DSN is set
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		environment := os.Getenv("ENVIRONMENT")
		if environment == "" {
			environment = "development"
		}

		// Default to 10% sampling in production, 100% in development
		sampleRate := 0.1
		if environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              dsn,
			Environment:      environment,
			TracesSampleRate: sampleRate,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8787" {
		cfg.Port = portFlag
	}

	pool, err := database.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	log.Println("connected to database")

	// Run migrations unless --no-migrate flag is set
	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := database.Migrate(cfg.DatabaseURL, "file://migrations"); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	fragmentRepo := repository.NewFragmentRepository(pool)
	decisionRepo := repository.NewDecisionRepository(pool)
	assumptionRepo := repository.NewAssumptionRepository(pool)
	linkRepo := repository.NewLinkRepository(pool)
	enrichmentJobRepo := repository.NewEnrichmentJobRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	var index service.VectorIndex
	if cfg.UsesQdrant() {
		qdrantIndex, err := qdrant.NewIndex(qdrant.Config{
			Host:       cfg.QdrantHost,
			Port:       cfg.QdrantPort,
			APIKey:     cfg.QdrantAPIKey,
			UseTLS:     cfg.QdrantUseTLS,
			Collection: cfg.QdrantCollection,
			Dimensions: cfg.EmbeddingDimensions,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to qdrant: %w", err)
		}
		defer qdrantIndex.Close()

		if err := qdrantIndex.EnsureCollection(ctx); err != nil {
			return fmt.Errorf("failed to ensure qdrant collection: %w", err)
		}
		log.Printf("vector index: qdrant at %s:%d (collection %s)", cfg.QdrantHost, cfg.QdrantPort, cfg.QdrantCollection)
		index = qdrantIndex
	} else {
		index = repository.NewPgvectorIndex(pool)
		log.Println("vector index: pgvector")
	}

	var archive service.TranscriptArchiveInterface
	if cfg.HasS3() {
		s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := s3Client.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)
		archive = storage.NewTranscriptArchive(s3Client)
	}

	var embedder service.EmbeddingClient
	var enrichmentWorker *jobs.Worker
	if cfg.HasProvider() {
		providerCfg := openai.Config{
			APIKey:              cfg.OpenAIAPIKey,
			BaseURL:             cfg.OpenAIBaseURL,
			EmbeddingModel:      cfg.EmbeddingModel,
			EmbeddingDimensions: cfg.EmbeddingDimensions,
			ChatModel:           cfg.ChatModel,
		}

		cache, err := embedcache.New(embedCacheCapacity)
		if err != nil {
			return fmt.Errorf("failed to create embedding cache: %w", err)
		}
		embedder = service.NewCachedEmbedder(openai.NewEmbeddingClient(providerCfg), cache)

		linker := service.NewLinkingEngineWithConfig(index, linkRepo, service.LinkingConfig{
			Neighbours: cfg.LinkNeighbours,
			Threshold:  cfg.LinkThreshold,
		})
		extractor := service.NewExtractorWithConfig(openai.NewChatClient(providerCfg), service.ExtractionConfig{
			MinConfidence: cfg.MinConfidence,
		})

		enrichmentSvc := service.NewEnrichmentService(fragmentRepo, txRunner, embedder, index, linker, extractor)
		processor := jobs.NewEnrichmentWorker(enrichmentJobRepo, enrichmentSvc)
		enrichmentWorker = jobs.NewWorker(processor, cfg.WorkerPollInterval)
		go enrichmentWorker.Start(ctx)
		log.Printf("enrichment worker started (embedding model %s, poll interval %s)", cfg.EmbeddingModel, cfg.WorkerPollInterval)
	} else {
		log.Println("no embedding provider configured: enrichment and search are disabled")
	}

	var fragmentSvc *service.FragmentService
	if archive != nil {
		fragmentSvc = service.NewFragmentServiceWithArchive(txRunner, fragmentRepo, linkRepo, index, archive)
	} else {
		fragmentSvc = service.NewFragmentService(txRunner, fragmentRepo, linkRepo, index)
	}

	fragmentHandler := handlers.NewFragmentHandler(fragmentSvc)
	decisionHandler := handlers.NewDecisionHandler(service.NewDecisionService(decisionRepo))
	assumptionHandler := handlers.NewAssumptionHandler(service.NewAssumptionService(txRunner, assumptionRepo))
	graphHandler := handlers.NewGraphHandler(service.NewGraphService(fragmentRepo, linkRepo))

	var searchHandler *handlers.SearchHandler
	if embedder != nil {
		searchHandler = handlers.NewSearchHandler(service.NewSearchService(fragmentRepo, embedder, index))
	} else {
		searchHandler = handlers.NewSearchHandler(&NoOpSearchService{})
	}

	routerCfg := server.RouterConfig{
		FragmentHandler:   fragmentHandler,
		SearchHandler:     searchHandler,
		DecisionHandler:   decisionHandler,
		AssumptionHandler: assumptionHandler,
		GraphHandler:      graphHandler,
	}

	router := server.NewRouter(routerCfg)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	if enrichmentWorker != nil {
		enrichmentWorker.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

// NoOpSearchService rejects searches when no embedding provider is
// configured. Capture keeps working; jobs queue up until a provider appears.
type NoOpSearchService struct{}

func (s *NoOpSearchService) Search(ctx context.Context, input service.SearchInput) ([]*service.SearchResult, error) {
	return nil, domain.NewDomainError(domain.ErrCodeConnection, "search not configured: embedding provider required")
}
