//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftware/weft/internal/domain"
	"github.com/weftware/weft/internal/service"
	"github.com/weftware/weft/internal/testutil"
)

// vec1536 pads the given values with zeros up to the index dimension.
func vec1536(vals ...float32) []float32 {
	v := make([]float32, 1536)
	copy(v, vals)
	return v
}

func TestPgvectorIndex_UpsertAndQuery(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	index := NewPgvectorIndex(pool)

	near := uuid.NewString()
	far := uuid.NewString()
	require.NoError(t, index.Upsert(ctx, near, vec1536(1, 0), service.VectorMetadata{Project: "billing", SourceType: domain.SourceTypeZoom}))
	require.NoError(t, index.Upsert(ctx, far, vec1536(0, 1), service.VectorMetadata{Project: "billing", SourceType: domain.SourceTypeZoom}))

	matches, err := index.Query(ctx, vec1536(1, 0.1), 10, service.VectorFilter{})
	require.NoError(t, err)
	require.Len(t, matches, 2)

	// Closest first: the aligned vector is a near-exact hit, the
	// orthogonal one sits at distance 1.
	assert.Equal(t, near, matches[0].FragmentID)
	assert.Less(t, matches[0].Distance, 0.1)
	assert.Equal(t, far, matches[1].FragmentID)
	assert.InDelta(t, 1.0, matches[1].Distance, 0.01)
}

func TestPgvectorIndex_Upsert_Replaces(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	index := NewPgvectorIndex(pool)

	id := uuid.NewString()
	require.NoError(t, index.Upsert(ctx, id, vec1536(0, 1), service.VectorMetadata{SourceType: domain.SourceTypeNotes}))

	// Re-embedding moves the fragment in vector space instead of
	// adding a second row.
	require.NoError(t, index.Upsert(ctx, id, vec1536(1, 0), service.VectorMetadata{Project: "billing", SourceType: domain.SourceTypeZoom}))

	matches, err := index.Query(ctx, vec1536(1, 0), 10, service.VectorFilter{})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, id, matches[0].FragmentID)
	assert.InDelta(t, 0.0, matches[0].Distance, 0.001)

	// And the metadata moved with it
	filtered, err := index.Query(ctx, vec1536(1, 0), 10, service.VectorFilter{Project: "billing", SourceType: domain.SourceTypeZoom})
	require.NoError(t, err)
	assert.Len(t, filtered, 1)
}

func TestPgvectorIndex_Query_Filters(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	index := NewPgvectorIndex(pool)

	billingZoom := uuid.NewString()
	billingNotes := uuid.NewString()
	searchZoom := uuid.NewString()
	require.NoError(t, index.Upsert(ctx, billingZoom, vec1536(1, 0), service.VectorMetadata{Project: "billing", SourceType: domain.SourceTypeZoom}))
	require.NoError(t, index.Upsert(ctx, billingNotes, vec1536(1, 0.1), service.VectorMetadata{Project: "billing", SourceType: domain.SourceTypeNotes}))
	require.NoError(t, index.Upsert(ctx, searchZoom, vec1536(1, 0.2), service.VectorMetadata{Project: "search", SourceType: domain.SourceTypeZoom}))

	query := vec1536(1, 0)

	byProject, err := index.Query(ctx, query, 10, service.VectorFilter{Project: "billing"})
	require.NoError(t, err)
	require.Len(t, byProject, 2)
	assert.Equal(t, billingZoom, byProject[0].FragmentID)

	bySource, err := index.Query(ctx, query, 10, service.VectorFilter{SourceType: domain.SourceTypeZoom})
	require.NoError(t, err)
	require.Len(t, bySource, 2)

	both, err := index.Query(ctx, query, 10, service.VectorFilter{Project: "search", SourceType: domain.SourceTypeZoom})
	require.NoError(t, err)
	require.Len(t, both, 1)
	assert.Equal(t, searchZoom, both[0].FragmentID)

	limited, err := index.Query(ctx, query, 2, service.VectorFilter{})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestPgvectorIndex_Delete(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	index := NewPgvectorIndex(pool)

	id := uuid.NewString()
	require.NoError(t, index.Upsert(ctx, id, vec1536(1, 0), service.VectorMetadata{SourceType: domain.SourceTypeQuickCapture}))

	existed, err := index.Delete(ctx, id)
	require.NoError(t, err)
	assert.True(t, existed)

	existed, err = index.Delete(ctx, id)
	require.NoError(t, err)
	assert.False(t, existed)

	matches, err := index.Query(ctx, vec1536(1, 0), 10, service.VectorFilter{})
	require.NoError(t, err)
	assert.Empty(t, matches)
}

// Embeddings survive fragment deletion on purpose. The index carries no
// foreign key so the service layer owns cleanup ordering.
func TestPgvectorIndex_IndependentOfFragments(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	fragmentRepo := NewFragmentRepository(pool)
	index := NewPgvectorIndex(pool)

	now := time.Now().UTC().Truncate(time.Microsecond)
	f := insertFragment(ctx, t, fragmentRepo, "billing", now)
	require.NoError(t, index.Upsert(ctx, f.ID, vec1536(1, 0), service.VectorMetadata{Project: "billing", SourceType: f.SourceType}))

	existed, err := fragmentRepo.Delete(ctx, f.ID)
	require.NoError(t, err)
	require.True(t, existed)

	matches, err := index.Query(ctx, vec1536(1, 0), 10, service.VectorFilter{})
	require.NoError(t, err)
	require.Len(t, matches, 1)

	existed, err = index.Delete(ctx, f.ID)
	require.NoError(t, err)
	assert.True(t, existed)
}
