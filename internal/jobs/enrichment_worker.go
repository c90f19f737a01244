package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/weftware/weft/internal/domain"
	"github.com/weftware/weft/internal/telemetry"
)

const (
	// MaxRetries is the maximum number of attempts for a failed job
	MaxRetries = 3
	// DefaultBatchSize caps how many jobs a single poll claims
	DefaultBatchSize = 100
)

// EnrichmentJobRepository defines the interface for enrichment job persistence
type EnrichmentJobRepository interface {
	// ClaimPending claims up to limit pending jobs, oldest first
	ClaimPending(ctx context.Context, limit int) ([]*domain.EnrichmentJob, error)

	// UpdateStatus updates the status of an enrichment job
	UpdateStatus(ctx context.Context, jobID string, status domain.EnrichmentJobStatus, errMsg string) error

	// Requeue returns a claimed job to the queue with an error note
	Requeue(ctx context.Context, jobID string, errMsg string) error

	// IncrementRetries increments the retry count for a job
	IncrementRetries(ctx context.Context, jobID string) error
}

// Enricher defines the interface for running the enrichment pipeline
type Enricher interface {
	EnrichFragment(ctx context.Context, fragmentID string) error
}

// EnrichmentWorker processes queued enrichment jobs
type EnrichmentWorker struct {
	repo      EnrichmentJobRepository
	enricher  Enricher
	batchSize int
}

// NewEnrichmentWorker creates a new EnrichmentWorker instance
func NewEnrichmentWorker(repo EnrichmentJobRepository, enricher Enricher) *EnrichmentWorker {
	return &EnrichmentWorker{
		repo:      repo,
		enricher:  enricher,
		batchSize: DefaultBatchSize,
	}
}

// ProcessJobs implements the JobProcessor interface
func (w *EnrichmentWorker) ProcessJobs(ctx context.Context) error {
	jobs, err := w.repo.ClaimPending(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("failed to claim pending jobs: %w", err)
	}

	if len(jobs) == 0 {
		return nil
	}

	log.Printf("worker: claimed %d enrichment job(s)", len(jobs))

	for _, job := range jobs {
		if err := w.processJob(ctx, job); err != nil {
			log.Printf("worker: job %s bookkeeping failed: %v", job.ID, err)
			telemetry.CaptureError(ctx, err, map[string]string{"job_id": job.ID, "fragment_id": job.FragmentID})
		}
	}

	return nil
}

func (w *EnrichmentWorker) processJob(ctx context.Context, job *domain.EnrichmentJob) error {
	if err := w.enricher.EnrichFragment(ctx, job.FragmentID); err != nil {
		if errors.Is(err, domain.ErrFragmentNotFound) {
			// The fragment was deleted while the job waited; the cascade
			// removes the job row with it.
			log.Printf("worker: job %s skipped: fragment %s no longer exists", job.ID, job.FragmentID)
			return nil
		}
		return w.handleJobFailure(ctx, job, err)
	}

	if err := w.repo.UpdateStatus(ctx, job.ID, domain.EnrichmentJobStatusCompleted, ""); err != nil {
		return fmt.Errorf("failed to update job status to completed: %w", err)
	}

	log.Printf("worker: job %s completed", job.ID)
	return nil
}

// handleJobFailure handles a failed job with retry logic
func (w *EnrichmentWorker) handleJobFailure(ctx context.Context, job *domain.EnrichmentJob, jobErr error) error {
	if err := w.repo.IncrementRetries(ctx, job.ID); err != nil {
		return fmt.Errorf("failed to increment retries: %w", err)
	}

	if job.Retries+1 >= MaxRetries {
		log.Printf("worker: job %s failed after %d attempts: %v", job.ID, MaxRetries, jobErr)
		errMsg := fmt.Sprintf("max retries exceeded: %v", jobErr)
		if err := w.repo.UpdateStatus(ctx, job.ID, domain.EnrichmentJobStatusFailed, errMsg); err != nil {
			return fmt.Errorf("failed to update job status to failed: %w", err)
		}
		return nil
	}

	log.Printf("worker: job %s will be retried (attempt %d/%d): %v", job.ID, job.Retries+1, MaxRetries, jobErr)
	errMsg := fmt.Sprintf("retry %d: %v", job.Retries+1, jobErr)
	if err := w.repo.Requeue(ctx, job.ID, errMsg); err != nil {
		return fmt.Errorf("failed to requeue job: %w", err)
	}

	return nil
}
