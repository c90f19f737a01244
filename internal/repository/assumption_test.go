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

func TestAssumptionRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	fragmentRepo := NewFragmentRepository(pool)
	repo := NewAssumptionRepository(pool)

	now := time.Now().UTC().Truncate(time.Microsecond)
	f := insertFragment(ctx, t, fragmentRepo, "billing", now)

	a := domain.NewAssumption(
		uuid.NewString(),
		f.ID,
		"Staging mirrors production traffic",
		true,
		now,
	)

	require.NoError(t, repo.Create(ctx, a))

	retrieved, err := repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, retrieved.ID)
	assert.Equal(t, f.ID, retrieved.FragmentID)
	assert.Equal(t, "Staging mirrors production traffic", retrieved.Statement)
	assert.True(t, retrieved.Explicit)
	assert.Equal(t, domain.ValidityUnknown, retrieved.Validity)
	assert.Empty(t, retrieved.InvalidatedBy)
	assert.True(t, retrieved.CreatedAt.Equal(now))
}

func TestAssumptionRepository_Create_MissingFragment(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewAssumptionRepository(pool)

	a := domain.NewAssumption(uuid.NewString(), uuid.NewString(), "orphan", false, time.Now().UTC().Truncate(time.Microsecond))

	err := repo.Create(ctx, a)
	assert.ErrorIs(t, err, domain.ErrFragmentNotFound)
}

func TestAssumptionRepository_GetByID_NotFound(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewAssumptionRepository(pool)

	_, err := repo.GetByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrAssumptionNotFound)
}

func TestAssumptionRepository_Invalidate(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	fragmentRepo := NewFragmentRepository(pool)
	repo := NewAssumptionRepository(pool)

	now := time.Now().UTC().Truncate(time.Microsecond)
	f := insertFragment(ctx, t, fragmentRepo, "billing", now)
	contradicting := insertFragment(ctx, t, fragmentRepo, "billing", now)

	a := domain.NewAssumption(uuid.NewString(), f.ID, "the API is backwards compatible", false, now)
	require.NoError(t, repo.Create(ctx, a))

	require.NoError(t, repo.Invalidate(ctx, a.ID, contradicting.ID))

	retrieved, err := repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ValidityInvalid, retrieved.Validity)
	assert.Equal(t, contradicting.ID, retrieved.InvalidatedBy)

	// The transition is one-way
	err = repo.Invalidate(ctx, a.ID, contradicting.ID)
	assert.ErrorIs(t, err, domain.ErrValidityFinal)
	err = repo.MarkValid(ctx, a.ID)
	assert.ErrorIs(t, err, domain.ErrValidityFinal)
}

func TestAssumptionRepository_Invalidate_NotFound(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	fragmentRepo := NewFragmentRepository(pool)
	repo := NewAssumptionRepository(pool)

	now := time.Now().UTC().Truncate(time.Microsecond)
	contradicting := insertFragment(ctx, t, fragmentRepo, "billing", now)

	err := repo.Invalidate(ctx, uuid.NewString(), contradicting.ID)
	assert.ErrorIs(t, err, domain.ErrAssumptionNotFound)
}

func TestAssumptionRepository_MarkValid(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	fragmentRepo := NewFragmentRepository(pool)
	repo := NewAssumptionRepository(pool)

	now := time.Now().UTC().Truncate(time.Microsecond)
	f := insertFragment(ctx, t, fragmentRepo, "billing", now)

	a := domain.NewAssumption(uuid.NewString(), f.ID, "the vendor SLA holds", true, now)
	require.NoError(t, repo.Create(ctx, a))

	require.NoError(t, repo.MarkValid(ctx, a.ID))

	retrieved, err := repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ValidityValid, retrieved.Validity)
	assert.Empty(t, retrieved.InvalidatedBy)

	err = repo.MarkValid(ctx, a.ID)
	assert.ErrorIs(t, err, domain.ErrValidityFinal)

	err = repo.MarkValid(ctx, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrAssumptionNotFound)
}

func TestAssumptionRepository_InvalidatingFragmentDeleted(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	fragmentRepo := NewFragmentRepository(pool)
	repo := NewAssumptionRepository(pool)

	now := time.Now().UTC().Truncate(time.Microsecond)
	f := insertFragment(ctx, t, fragmentRepo, "billing", now)
	contradicting := insertFragment(ctx, t, fragmentRepo, "billing", now)

	a := domain.NewAssumption(uuid.NewString(), f.ID, "retention is 30 days", false, now)
	require.NoError(t, repo.Create(ctx, a))
	require.NoError(t, repo.Invalidate(ctx, a.ID, contradicting.ID))

	// Deleting the invalidating fragment clears the back-reference but the
	// assumption stays invalid.
	existed, err := fragmentRepo.Delete(ctx, contradicting.ID)
	require.NoError(t, err)
	require.True(t, existed)

	retrieved, err := repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ValidityInvalid, retrieved.Validity)
	assert.Empty(t, retrieved.InvalidatedBy)
}

func TestAssumptionRepository_List(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	fragmentRepo := NewFragmentRepository(pool)
	repo := NewAssumptionRepository(pool)

	base := time.Now().UTC().Truncate(time.Microsecond).Add(-2 * time.Hour)
	billing := insertFragment(ctx, t, fragmentRepo, "billing", base)
	search := insertFragment(ctx, t, fragmentRepo, "search", base)

	unknown := domain.NewAssumption(uuid.NewString(), billing.ID, "unknown assumption", false, base)
	valid := domain.NewAssumption(uuid.NewString(), billing.ID, "validated assumption", true, base.Add(time.Hour))
	invalid := domain.NewAssumption(uuid.NewString(), search.ID, "disproved assumption", false, base.Add(2*time.Hour))
	for _, a := range []*domain.Assumption{unknown, valid, invalid} {
		require.NoError(t, repo.Create(ctx, a))
	}
	require.NoError(t, repo.MarkValid(ctx, valid.ID))
	require.NoError(t, repo.Invalidate(ctx, invalid.ID, billing.ID))

	// Newest first
	all, err := repo.List(ctx, service.AssumptionFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, invalid.ID, all[0].ID)
	assert.Equal(t, unknown.ID, all[2].ID)

	// ValidOnly drops invalid rows but keeps unknown ones
	live, err := repo.List(ctx, service.AssumptionFilter{ValidOnly: true})
	require.NoError(t, err)
	require.Len(t, live, 2)
	for _, a := range live {
		assert.NotEqual(t, domain.ValidityInvalid, a.Validity)
	}

	byFragment, err := repo.List(ctx, service.AssumptionFilter{FragmentID: billing.ID})
	require.NoError(t, err)
	assert.Len(t, byFragment, 2)

	byProject, err := repo.List(ctx, service.AssumptionFilter{Project: "search"})
	require.NoError(t, err)
	require.Len(t, byProject, 1)
	assert.Equal(t, invalid.ID, byProject[0].ID)

	since := base.Add(30 * time.Minute)
	recent, err := repo.List(ctx, service.AssumptionFilter{Since: &since})
	require.NoError(t, err)
	assert.Len(t, recent, 2)
}

func TestAssumptionRepository_DeleteUnvalidated(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	fragmentRepo := NewFragmentRepository(pool)
	repo := NewAssumptionRepository(pool)

	now := time.Now().UTC().Truncate(time.Microsecond)
	f := insertFragment(ctx, t, fragmentRepo, "billing", now)
	other := insertFragment(ctx, t, fragmentRepo, "billing", now)

	unknown := domain.NewAssumption(uuid.NewString(), f.ID, "still unverified", false, now)
	valid := domain.NewAssumption(uuid.NewString(), f.ID, "confirmed by ops", true, now)
	invalid := domain.NewAssumption(uuid.NewString(), f.ID, "contradicted later", false, now)
	elsewhere := domain.NewAssumption(uuid.NewString(), other.ID, "different fragment", false, now)
	for _, a := range []*domain.Assumption{unknown, valid, invalid, elsewhere} {
		require.NoError(t, repo.Create(ctx, a))
	}
	require.NoError(t, repo.MarkValid(ctx, valid.ID))
	require.NoError(t, repo.Invalidate(ctx, invalid.ID, other.ID))

	// Only rows still in the unknown state are re-extractable
	require.NoError(t, repo.DeleteUnvalidated(ctx, f.ID))

	_, err := repo.GetByID(ctx, unknown.ID)
	assert.ErrorIs(t, err, domain.ErrAssumptionNotFound)

	for _, id := range []string{valid.ID, invalid.ID, elsewhere.ID} {
		_, err := repo.GetByID(ctx, id)
		assert.NoError(t, err)
	}
}
