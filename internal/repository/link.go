package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/weftware/weft/internal/domain"
	"github.com/weftware/weft/internal/service"
)

type LinkRepository struct {
	db dbtx
}

func NewLinkRepository(pool *pgxpool.Pool) *LinkRepository {
	return &LinkRepository{db: pool}
}

func NewLinkRepositoryWithTx(tx pgx.Tx) *LinkRepository {
	return &LinkRepository{db: tx}
}

// Upsert inserts a link or, when the (source, target, kind) triple already
// exists, replaces its strength. The surviving row keeps its original id and
// created_at, which are written back onto the argument.
func (r *LinkRepository) Upsert(ctx context.Context, l *domain.FragmentLink) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO fragment_links (id, source_id, target_id, kind, strength, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (source_id, target_id, kind)
		 DO UPDATE SET strength = EXCLUDED.strength
		 RETURNING id, created_at`,
		l.ID, l.SourceID, l.TargetID, l.Kind, l.Strength, l.CreatedAt,
	).Scan(&l.ID, &l.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return domain.ErrFragmentNotFound
		}
		return err
	}
	return nil
}

func (r *LinkRepository) GetByID(ctx context.Context, id string) (*domain.FragmentLink, error) {
	var l domain.FragmentLink
	err := r.db.QueryRow(ctx,
		`SELECT id, source_id, target_id, kind, strength, created_at
		 FROM fragment_links WHERE id = $1`,
		id,
	).Scan(&l.ID, &l.SourceID, &l.TargetID, &l.Kind, &l.Strength, &l.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrLinkNotFound
		}
		return nil, err
	}
	return &l, nil
}

// ListByFragment returns links touching the fragment from either side,
// strongest first.
func (r *LinkRepository) ListByFragment(ctx context.Context, fragmentID string) ([]*domain.FragmentLink, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, source_id, target_id, kind, strength, created_at
		 FROM fragment_links
		 WHERE source_id = $1 OR target_id = $1
		 ORDER BY strength DESC, created_at DESC`,
		fragmentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*domain.FragmentLink
	for rows.Next() {
		var l domain.FragmentLink
		if err := rows.Scan(&l.ID, &l.SourceID, &l.TargetID, &l.Kind, &l.Strength, &l.CreatedAt); err != nil {
			return nil, err
		}
		results = append(results, &l)
	}
	return results, rows.Err()
}

// ListRelated resolves links touching the fragment into the fragment on the
// other end, strongest first.
func (r *LinkRepository) ListRelated(ctx context.Context, fragmentID string, limit int) ([]*service.RelatedFragment, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := r.db.Query(ctx,
		`SELECT f.id, f.raw_content, f.summary, f.source_type, f.source_ref,
		        f.captured_at, f.participants, f.topics, f.project,
		        l.kind, l.strength, l.source_id
		 FROM fragment_links l
		 JOIN fragments f ON f.id = CASE WHEN l.source_id = $1 THEN l.target_id ELSE l.source_id END
		 WHERE (l.source_id = $1 OR l.target_id = $1) AND f.id != $1
		 ORDER BY l.strength DESC, l.created_at DESC
		 LIMIT $2`,
		fragmentID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*service.RelatedFragment
	for rows.Next() {
		var f domain.Fragment
		var summary, sourceRef, project *string
		var kind domain.LinkKind
		var strength float64
		var sourceID string
		if err := rows.Scan(&f.ID, &f.RawContent, &summary, &f.SourceType, &sourceRef,
			&f.CapturedAt, &f.Participants, &f.Topics, &project,
			&kind, &strength, &sourceID); err != nil {
			return nil, err
		}
		if summary != nil {
			f.Summary = *summary
		}
		if sourceRef != nil {
			f.SourceRef = *sourceRef
		}
		if project != nil {
			f.Project = *project
		}

		direction := service.LinkDirectionOutgoing
		if sourceID != fragmentID {
			direction = service.LinkDirectionIncoming
		}

		results = append(results, &service.RelatedFragment{
			Fragment:  &f,
			Kind:      kind,
			Strength:  strength,
			Direction: direction,
		})
	}
	return results, rows.Err()
}

func (r *LinkRepository) Delete(ctx context.Context, id string) (bool, error) {
	cmdTag, err := r.db.Exec(ctx,
		`DELETE FROM fragment_links WHERE id = $1`,
		id,
	)
	if err != nil {
		return false, err
	}
	return cmdTag.RowsAffected() > 0, nil
}

// ListAll returns links across all fragments, newest first. Used to build
// the graph view, which filters by node membership itself.
func (r *LinkRepository) ListAll(ctx context.Context, limit int) ([]*domain.FragmentLink, error) {
	if limit <= 0 {
		limit = 5000
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, source_id, target_id, kind, strength, created_at
		 FROM fragment_links
		 ORDER BY created_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*domain.FragmentLink
	for rows.Next() {
		var l domain.FragmentLink
		if err := rows.Scan(&l.ID, &l.SourceID, &l.TargetID, &l.Kind, &l.Strength, &l.CreatedAt); err != nil {
			return nil, err
		}
		results = append(results, &l)
	}
	return results, rows.Err()
}
