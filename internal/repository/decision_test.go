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

func TestDecisionRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	fragmentRepo := NewFragmentRepository(pool)
	repo := NewDecisionRepository(pool)

	now := time.Now().UTC().Truncate(time.Microsecond)
	f := insertFragment(ctx, t, fragmentRepo, "billing", now)

	d := domain.NewDecision(
		uuid.NewString(),
		f.ID,
		"Ship the billing migration on Friday",
		"Staging has been stable for a week",
		0.9,
		now,
	)

	require.NoError(t, repo.Create(ctx, d))

	retrieved, err := repo.GetByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, d.ID, retrieved.ID)
	assert.Equal(t, f.ID, retrieved.FragmentID)
	assert.Equal(t, "Ship the billing migration on Friday", retrieved.What)
	assert.Equal(t, "Staging has been stable for a week", retrieved.Why)
	assert.Equal(t, 0.9, retrieved.Confidence)
	assert.True(t, retrieved.CreatedAt.Equal(now))
}

func TestDecisionRepository_Create_MissingFragment(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewDecisionRepository(pool)

	d := domain.NewDecision(
		uuid.NewString(),
		uuid.NewString(),
		"orphan decision",
		"",
		0.5,
		time.Now().UTC().Truncate(time.Microsecond),
	)

	err := repo.Create(ctx, d)
	assert.ErrorIs(t, err, domain.ErrFragmentNotFound)
}

func TestDecisionRepository_GetByID_NotFound(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewDecisionRepository(pool)

	_, err := repo.GetByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrDecisionNotFound)
}

func TestDecisionRepository_List(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	fragmentRepo := NewFragmentRepository(pool)
	repo := NewDecisionRepository(pool)

	base := time.Now().UTC().Truncate(time.Microsecond).Add(-2 * time.Hour)
	billing := insertFragment(ctx, t, fragmentRepo, "billing", base)
	search := insertFragment(ctx, t, fragmentRepo, "search", base)

	early := domain.NewDecision(uuid.NewString(), billing.ID, "use pgvector", "", 0.8, base)
	late := domain.NewDecision(uuid.NewString(), billing.ID, "ship friday", "", 0.9, base.Add(time.Hour))
	elsewhere := domain.NewDecision(uuid.NewString(), search.ID, "index titles", "", 0.7, base.Add(30*time.Minute))
	for _, d := range []*domain.Decision{early, late, elsewhere} {
		require.NoError(t, repo.Create(ctx, d))
	}

	// Newest first across all fragments
	all, err := repo.List(ctx, service.DecisionFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, late.ID, all[0].ID)
	assert.Equal(t, early.ID, all[2].ID)

	// Scoped to one fragment
	scoped, err := repo.List(ctx, service.DecisionFilter{FragmentID: billing.ID})
	require.NoError(t, err)
	require.Len(t, scoped, 2)
	assert.Equal(t, late.ID, scoped[0].ID)

	// Project filter resolves through the owning fragment
	byProject, err := repo.List(ctx, service.DecisionFilter{Project: "search"})
	require.NoError(t, err)
	require.Len(t, byProject, 1)
	assert.Equal(t, elsewhere.ID, byProject[0].ID)

	// Since keeps decisions at or after the bound
	since := base.Add(30 * time.Minute)
	recent, err := repo.List(ctx, service.DecisionFilter{Since: &since})
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	limited, err := repo.List(ctx, service.DecisionFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, late.ID, limited[0].ID)
}

func TestDecisionRepository_DeleteByFragment(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	fragmentRepo := NewFragmentRepository(pool)
	repo := NewDecisionRepository(pool)

	now := time.Now().UTC().Truncate(time.Microsecond)
	target := insertFragment(ctx, t, fragmentRepo, "billing", now)
	other := insertFragment(ctx, t, fragmentRepo, "billing", now)

	doomed := domain.NewDecision(uuid.NewString(), target.ID, "will be rebuilt", "", 0.6, now)
	kept := domain.NewDecision(uuid.NewString(), other.ID, "stays put", "", 0.6, now)
	require.NoError(t, repo.Create(ctx, doomed))
	require.NoError(t, repo.Create(ctx, kept))

	require.NoError(t, repo.DeleteByFragment(ctx, target.ID))

	_, err := repo.GetByID(ctx, doomed.ID)
	assert.ErrorIs(t, err, domain.ErrDecisionNotFound)

	survivor, err := repo.GetByID(ctx, kept.ID)
	require.NoError(t, err)
	assert.Equal(t, kept.ID, survivor.ID)
}
