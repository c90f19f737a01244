package jobs

import (
	"context"
	"log"
	"sync"
	"time"
)

// DefaultPollInterval is how often the worker checks for pending jobs
const DefaultPollInterval = 5 * time.Second

// JobProcessor defines the interface for processing jobs
type JobProcessor interface {
	ProcessJobs(ctx context.Context) error
}

// Worker represents a background job worker
type Worker struct {
	processor    JobProcessor
	pollInterval time.Duration
	stopOnce     sync.Once
	stopChan     chan struct{}
	doneChan     chan struct{}
}

// NewWorker creates a new Worker instance
func NewWorker(processor JobProcessor, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Worker{
		processor:    processor,
		pollInterval: pollInterval,
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
	}
}

// Start begins the worker's polling loop. Jobs queued before startup are
// drained immediately rather than after the first tick.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	defer close(w.doneChan)

	log.Printf("worker: started (poll interval %v)", w.pollInterval)

	if err := w.processor.ProcessJobs(ctx); err != nil {
		log.Printf("worker: processing failed: %v", err)
	}

	for {
		select {
		case <-ctx.Done():
			log.Println("worker: stopped (context cancelled)")
			return
		case <-w.stopChan:
			log.Println("worker: stopped")
			return
		case <-ticker.C:
			if err := w.processor.ProcessJobs(ctx); err != nil {
				log.Printf("worker: processing failed: %v", err)
			}
		}
	}
}

// Stop signals the loop to exit and waits for the in-flight batch to finish.
// Safe to call more than once.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopChan) })
	<-w.doneChan
}
