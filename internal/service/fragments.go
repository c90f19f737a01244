package service

import (
	"context"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/weftware/weft/internal/domain"
	"github.com/weftware/weft/internal/pagination"
	"github.com/weftware/weft/internal/telemetry"
)

// FragmentRepositoryInterface defines the repository interface for fragment persistence
type FragmentRepositoryInterface interface {
	Create(ctx context.Context, f *domain.Fragment) error
	GetByID(ctx context.Context, id string) (*domain.Fragment, error)
	Exists(ctx context.Context, id string) (bool, error)
	List(ctx context.Context, filter FragmentFilter) ([]*domain.Fragment, error)
	ListWithCursor(ctx context.Context, filter FragmentFilter, cursor *pagination.Cursor, limit int) (*FragmentPage, error)
	Delete(ctx context.Context, id string) (bool, error)
	UpdateSummary(ctx context.Context, id string, summary string) error
}

// EnrichmentJobRepositoryInterface defines the repository interface for enrichment job persistence
type EnrichmentJobRepositoryInterface interface {
	Create(ctx context.Context, job *domain.EnrichmentJob) error
}

// TranscriptArchiveInterface keeps raw captures in object storage
type TranscriptArchiveInterface interface {
	Store(ctx context.Context, fragmentID string, filename string, content []byte) (string, error)
	Remove(ctx context.Context, fragmentID string) error
}

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

// FragmentFilter narrows fragment listings.
type FragmentFilter struct {
	Project    string
	SourceType domain.SourceType
	Since      *time.Time
	Until      *time.Time
	Limit      int
}

// FragmentPage is one page of a cursor-driven fragment listing.
type FragmentPage struct {
	Items      []*domain.Fragment
	NextCursor string
	HasMore    bool
}

// LinkDirection says which end of a link the queried fragment sits on.
type LinkDirection string

const (
	LinkDirectionOutgoing LinkDirection = "outgoing"
	LinkDirectionIncoming LinkDirection = "incoming"
)

// RelatedFragment is a fragment reached by following a link, with the link
// attributes that got us there.
type RelatedFragment struct {
	Fragment  *domain.Fragment
	Kind      domain.LinkKind
	Strength  float64
	Direction LinkDirection
}

// CreateFragmentInput represents the input for capturing a fragment
type CreateFragmentInput struct {
	RawContent   string
	SourceType   domain.SourceType
	SourceRef    string
	Participants []string
	Topics       []string
	Project      string
	CapturedAt   *time.Time
}

type ListFragmentsInput struct {
	Filter FragmentFilter
	Cursor string
	Limit  int
}

type ListFragmentsOutput struct {
	Items   []*domain.Fragment
	Cursor  string
	HasMore bool
}

// FragmentService handles business logic for captured fragments
type FragmentService struct {
	txRunner     TxRunner
	fragmentRepo FragmentRepositoryInterface
	linkRepo     LinkRepositoryInterface
	index        VectorIndex
	archive      TranscriptArchiveInterface
	uuidGen      UUIDGenerator
}

// NewFragmentService creates a new FragmentService instance
func NewFragmentService(
	txRunner TxRunner,
	fragmentRepo FragmentRepositoryInterface,
	linkRepo LinkRepositoryInterface,
	index VectorIndex,
) *FragmentService {
	return &FragmentService{
		txRunner:     txRunner,
		fragmentRepo: fragmentRepo,
		linkRepo:     linkRepo,
		index:        index,
		uuidGen:      &DefaultUUIDGenerator{},
	}
}

// NewFragmentServiceWithArchive creates a FragmentService that archives
// file-derived captures to object storage
func NewFragmentServiceWithArchive(
	txRunner TxRunner,
	fragmentRepo FragmentRepositoryInterface,
	linkRepo LinkRepositoryInterface,
	index VectorIndex,
	archive TranscriptArchiveInterface,
) *FragmentService {
	svc := NewFragmentService(txRunner, fragmentRepo, linkRepo, index)
	svc.archive = archive
	return svc
}

// NewFragmentServiceWithUUIDGen creates a new FragmentService with custom UUID generator (for testing)
func NewFragmentServiceWithUUIDGen(
	txRunner TxRunner,
	fragmentRepo FragmentRepositoryInterface,
	linkRepo LinkRepositoryInterface,
	index VectorIndex,
	uuidGen UUIDGenerator,
) *FragmentService {
	return &FragmentService{
		txRunner:     txRunner,
		fragmentRepo: fragmentRepo,
		linkRepo:     linkRepo,
		index:        index,
		uuidGen:      uuidGen,
	}
}

// Create captures a fragment and queues an enrichment job in the same
// transaction. Enrichment (embedding, linking, extraction) happens later in
// the background worker; a capture never waits on a model provider.
func (s *FragmentService) Create(ctx context.Context, input CreateFragmentInput) (*domain.Fragment, error) {
	ctx, span := telemetry.StartSpan(ctx, "FragmentService.Create", telemetry.SpanAttributes{
		Project:   input.Project,
		Operation: "create",
	})
	defer span.End()

	now := time.Now().UTC()
	capturedAt := now
	if input.CapturedAt != nil {
		capturedAt = input.CapturedAt.UTC()
	}

	fragment := domain.NewFragment(
		s.uuidGen.NewString(),
		input.RawContent,
		input.SourceType,
		input.SourceRef,
		input.Project,
		input.Participants,
		input.Topics,
		capturedAt,
	)

	if err := domain.ValidateFragment(fragment); err != nil {
		return nil, err
	}

	// Archiving is best-effort: on success source_ref points at the object
	// key, on failure the original ref stays and the capture proceeds. An
	// insert failing afterwards can leave an orphan object behind.
	if s.archive != nil && archivable(input) {
		key, err := s.archive.Store(ctx, fragment.ID, filepath.Base(input.SourceRef), []byte(input.RawContent))
		if err != nil {
			log.Printf("fragments: failed to archive capture for %s: %v", fragment.ID, err)
			telemetry.CaptureError(ctx, err)
		} else {
			fragment.SourceRef = key
		}
	}

	job := domain.NewEnrichmentJob(
		s.uuidGen.NewString(),
		fragment.ID,
		domain.EnrichmentJobStatusPending,
		0,
		"",
		now,
		nil,
	)

	err := s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		if err := repos.Fragments().Create(ctx, fragment); err != nil {
			return err
		}
		return repos.EnrichmentJobs().Create(ctx, job)
	})
	if err != nil {
		return nil, err
	}

	return fragment, nil
}

// archivable reports whether the capture came from a local file. URI refs
// (teams://, https://) identify remote sources and are left alone.
func archivable(input CreateFragmentInput) bool {
	return input.SourceRef != "" && !strings.Contains(input.SourceRef, "://")
}

// GetByID retrieves a fragment by ID
func (s *FragmentService) GetByID(ctx context.Context, id string) (*domain.Fragment, error) {
	ctx, span := telemetry.StartSpan(ctx, "FragmentService.GetByID", telemetry.SpanAttributes{
		FragmentID: id,
		Operation:  "get",
	})
	defer span.End()

	return s.fragmentRepo.GetByID(ctx, id)
}

// List returns fragments matching the filter, most recent first.
func (s *FragmentService) List(ctx context.Context, filter FragmentFilter) ([]*domain.Fragment, error) {
	ctx, span := telemetry.StartSpan(ctx, "FragmentService.List", telemetry.SpanAttributes{
		Project:   filter.Project,
		Operation: "list",
	})
	defer span.End()

	return s.fragmentRepo.List(ctx, filter)
}

// ListPage returns one cursor page of fragments matching the filter.
func (s *FragmentService) ListPage(ctx context.Context, input ListFragmentsInput) (*ListFragmentsOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "FragmentService.ListPage", telemetry.SpanAttributes{
		Project:   input.Filter.Project,
		Operation: "list",
	})
	defer span.End()

	cursor, err := pagination.DecodeCursor(input.Cursor)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid cursor", err)
	}

	page, err := s.fragmentRepo.ListWithCursor(ctx, input.Filter, cursor, input.Limit)
	if err != nil {
		return nil, err
	}

	return &ListFragmentsOutput{
		Items:   page.Items,
		Cursor:  page.NextCursor,
		HasMore: page.HasMore,
	}, nil
}

// Delete removes a fragment together with its decisions, assumptions, and
// links in one transaction. Returns false when the fragment did not exist.
// The vector index entry is removed after commit; a failure there is logged
// and does not undo the delete.
func (s *FragmentService) Delete(ctx context.Context, id string) (bool, error) {
	ctx, span := telemetry.StartSpan(ctx, "FragmentService.Delete", telemetry.SpanAttributes{
		FragmentID: id,
		Operation:  "delete",
	})
	defer span.End()

	existed, err := s.fragmentRepo.Delete(ctx, id)
	if err != nil {
		return false, err
	}

	if existed && s.index != nil {
		if _, err := s.index.Delete(ctx, id); err != nil {
			log.Printf("fragments: failed to remove index entry for %s: %v", id, err)
			telemetry.CaptureError(ctx, err)
		}
	}

	if existed && s.archive != nil {
		if err := s.archive.Remove(ctx, id); err != nil {
			log.Printf("fragments: failed to remove archived capture for %s: %v", id, err)
			telemetry.CaptureError(ctx, err)
		}
	}

	return existed, nil
}

// Related returns the fragments linked to the given one, strongest link
// first. NotFound when the fragment itself does not exist.
func (s *FragmentService) Related(ctx context.Context, id string, limit int) ([]*RelatedFragment, error) {
	ctx, span := telemetry.StartSpan(ctx, "FragmentService.Related", telemetry.SpanAttributes{
		FragmentID: id,
		Operation:  "related",
	})
	defer span.End()

	exists, err := s.fragmentRepo.Exists(ctx, id)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, domain.ErrFragmentNotFound
	}

	return s.linkRepo.ListRelated(ctx, id, limit)
}
