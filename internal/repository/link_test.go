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

func TestLinkRepository_UpsertAndGet(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	fragmentRepo := NewFragmentRepository(pool)
	repo := NewLinkRepository(pool)

	now := time.Now().UTC().Truncate(time.Microsecond)
	source := insertFragment(ctx, t, fragmentRepo, "billing", now)
	target := insertFragment(ctx, t, fragmentRepo, "billing", now)

	l := domain.NewFragmentLink(uuid.NewString(), source.ID, target.ID, domain.LinkKindRelatesTo, 0.8, now)
	require.NoError(t, repo.Upsert(ctx, l))

	retrieved, err := repo.GetByID(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, source.ID, retrieved.SourceID)
	assert.Equal(t, target.ID, retrieved.TargetID)
	assert.Equal(t, domain.LinkKindRelatesTo, retrieved.Kind)
	assert.Equal(t, 0.8, retrieved.Strength)
}

func TestLinkRepository_Upsert_Conflict(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	fragmentRepo := NewFragmentRepository(pool)
	repo := NewLinkRepository(pool)

	now := time.Now().UTC().Truncate(time.Microsecond)
	source := insertFragment(ctx, t, fragmentRepo, "billing", now)
	target := insertFragment(ctx, t, fragmentRepo, "billing", now)

	original := domain.NewFragmentLink(uuid.NewString(), source.ID, target.ID, domain.LinkKindRelatesTo, 0.5, now)
	require.NoError(t, repo.Upsert(ctx, original))

	// Same edge again with a fresh id refreshes strength on the existing
	// row and hands back the surviving identity.
	replacement := domain.NewFragmentLink(uuid.NewString(), source.ID, target.ID, domain.LinkKindRelatesTo, 0.9, now.Add(time.Minute))
	require.NoError(t, repo.Upsert(ctx, replacement))
	assert.Equal(t, original.ID, replacement.ID)
	assert.True(t, replacement.CreatedAt.Equal(original.CreatedAt))

	retrieved, err := repo.GetByID(ctx, original.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.9, retrieved.Strength)

	// A different kind between the same pair is a separate edge
	follows := domain.NewFragmentLink(uuid.NewString(), source.ID, target.ID, domain.LinkKindFollows, 0.4, now)
	require.NoError(t, repo.Upsert(ctx, follows))

	links, err := repo.ListByFragment(ctx, source.ID)
	require.NoError(t, err)
	assert.Len(t, links, 2)
}

func TestLinkRepository_Upsert_MissingFragment(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	fragmentRepo := NewFragmentRepository(pool)
	repo := NewLinkRepository(pool)

	now := time.Now().UTC().Truncate(time.Microsecond)
	source := insertFragment(ctx, t, fragmentRepo, "billing", now)

	l := domain.NewFragmentLink(uuid.NewString(), source.ID, uuid.NewString(), domain.LinkKindRelatesTo, 0.8, now)
	err := repo.Upsert(ctx, l)
	assert.ErrorIs(t, err, domain.ErrFragmentNotFound)
}

func TestLinkRepository_GetByID_NotFound(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewLinkRepository(pool)

	_, err := repo.GetByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrLinkNotFound)
}

func TestLinkRepository_ListByFragment(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	fragmentRepo := NewFragmentRepository(pool)
	repo := NewLinkRepository(pool)

	now := time.Now().UTC().Truncate(time.Microsecond)
	center := insertFragment(ctx, t, fragmentRepo, "billing", now)
	a := insertFragment(ctx, t, fragmentRepo, "billing", now)
	b := insertFragment(ctx, t, fragmentRepo, "billing", now)
	bystander := insertFragment(ctx, t, fragmentRepo, "billing", now)

	outgoing := domain.NewFragmentLink(uuid.NewString(), center.ID, a.ID, domain.LinkKindRelatesTo, 0.6, now)
	incoming := domain.NewFragmentLink(uuid.NewString(), b.ID, center.ID, domain.LinkKindReferences, 0.9, now)
	unrelated := domain.NewFragmentLink(uuid.NewString(), a.ID, bystander.ID, domain.LinkKindRelatesTo, 0.7, now)
	for _, l := range []*domain.FragmentLink{outgoing, incoming, unrelated} {
		require.NoError(t, repo.Upsert(ctx, l))
	}

	// Both directions, strongest first
	links, err := repo.ListByFragment(ctx, center.ID)
	require.NoError(t, err)
	require.Len(t, links, 2)
	assert.Equal(t, incoming.ID, links[0].ID)
	assert.Equal(t, outgoing.ID, links[1].ID)
}

func TestLinkRepository_ListRelated(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	fragmentRepo := NewFragmentRepository(pool)
	repo := NewLinkRepository(pool)

	now := time.Now().UTC().Truncate(time.Microsecond)
	center := insertFragment(ctx, t, fragmentRepo, "billing", now)
	a := insertFragment(ctx, t, fragmentRepo, "billing", now)
	b := insertFragment(ctx, t, fragmentRepo, "search", now)

	outgoing := domain.NewFragmentLink(uuid.NewString(), center.ID, a.ID, domain.LinkKindFollows, 0.9, now)
	incoming := domain.NewFragmentLink(uuid.NewString(), b.ID, center.ID, domain.LinkKindContradicts, 0.6, now)
	require.NoError(t, repo.Upsert(ctx, outgoing))
	require.NoError(t, repo.Upsert(ctx, incoming))

	related, err := repo.ListRelated(ctx, center.ID, 0)
	require.NoError(t, err)
	require.Len(t, related, 2)

	byID := map[string]*service.RelatedFragment{}
	for _, r := range related {
		byID[r.Fragment.ID] = r
	}

	require.Contains(t, byID, a.ID)
	assert.Equal(t, domain.LinkKindFollows, byID[a.ID].Kind)
	assert.Equal(t, 0.9, byID[a.ID].Strength)
	assert.Equal(t, service.LinkDirectionOutgoing, byID[a.ID].Direction)
	assert.Equal(t, "billing", byID[a.ID].Fragment.Project)

	require.Contains(t, byID, b.ID)
	assert.Equal(t, domain.LinkKindContradicts, byID[b.ID].Kind)
	assert.Equal(t, service.LinkDirectionIncoming, byID[b.ID].Direction)

	limited, err := repo.ListRelated(ctx, center.ID, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestLinkRepository_Delete(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	fragmentRepo := NewFragmentRepository(pool)
	repo := NewLinkRepository(pool)

	now := time.Now().UTC().Truncate(time.Microsecond)
	source := insertFragment(ctx, t, fragmentRepo, "billing", now)
	target := insertFragment(ctx, t, fragmentRepo, "billing", now)

	l := domain.NewFragmentLink(uuid.NewString(), source.ID, target.ID, domain.LinkKindRelatesTo, 0.8, now)
	require.NoError(t, repo.Upsert(ctx, l))

	existed, err := repo.Delete(ctx, l.ID)
	require.NoError(t, err)
	assert.True(t, existed)

	existed, err = repo.Delete(ctx, l.ID)
	require.NoError(t, err)
	assert.False(t, existed)
}

func TestLinkRepository_ListAll(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	fragmentRepo := NewFragmentRepository(pool)
	repo := NewLinkRepository(pool)

	now := time.Now().UTC().Truncate(time.Microsecond)
	a := insertFragment(ctx, t, fragmentRepo, "billing", now)
	b := insertFragment(ctx, t, fragmentRepo, "billing", now)
	c := insertFragment(ctx, t, fragmentRepo, "billing", now)

	first := domain.NewFragmentLink(uuid.NewString(), a.ID, b.ID, domain.LinkKindRelatesTo, 0.5, now.Add(-time.Minute))
	second := domain.NewFragmentLink(uuid.NewString(), b.ID, c.ID, domain.LinkKindRelatesTo, 0.5, now)
	require.NoError(t, repo.Upsert(ctx, first))
	require.NoError(t, repo.Upsert(ctx, second))

	all, err := repo.ListAll(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID)

	limited, err := repo.ListAll(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}
