package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/weftware/weft/internal/domain"
	"github.com/weftware/weft/internal/pagination"
	"github.com/weftware/weft/internal/service"
)

const fragmentColumns = `id, raw_content, summary, source_type, source_ref, captured_at, participants, topics, project`

type FragmentRepository struct {
	db dbtx
}

func NewFragmentRepository(pool *pgxpool.Pool) *FragmentRepository {
	return &FragmentRepository{db: pool}
}

func NewFragmentRepositoryWithTx(tx pgx.Tx) *FragmentRepository {
	return &FragmentRepository{db: tx}
}

func (r *FragmentRepository) Create(ctx context.Context, f *domain.Fragment) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO fragments (id, raw_content, summary, source_type, source_ref, captured_at, participants, topics, project)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		f.ID, f.RawContent, nullableString(f.Summary), f.SourceType, nullableString(f.SourceRef),
		f.CapturedAt, f.Participants, f.Topics, nullableString(f.Project),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrFragmentAlreadyExists
		}
		return err
	}
	return nil
}

func (r *FragmentRepository) GetByID(ctx context.Context, id string) (*domain.Fragment, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+fragmentColumns+` FROM fragments WHERE id = $1`,
		id,
	)
	f, err := scanFragment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrFragmentNotFound
		}
		return nil, err
	}
	return f, nil
}

// Exists reports whether a fragment row is present without loading it.
func (r *FragmentRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM fragments WHERE id = $1)`,
		id,
	).Scan(&exists)
	return exists, err
}

func (r *FragmentRepository) List(ctx context.Context, filter service.FragmentFilter) ([]*domain.Fragment, error) {
	query := `SELECT ` + fragmentColumns + ` FROM fragments`
	var conds []string
	var args []interface{}

	if filter.Project != "" {
		args = append(args, filter.Project)
		conds = append(conds, fmt.Sprintf("project = $%d", len(args)))
	}
	if filter.SourceType != "" {
		args = append(args, filter.SourceType)
		conds = append(conds, fmt.Sprintf("source_type = $%d", len(args)))
	}
	if filter.Since != nil {
		args = append(args, *filter.Since)
		conds = append(conds, fmt.Sprintf("captured_at >= $%d", len(args)))
	}
	if filter.Until != nil {
		args = append(args, *filter.Until)
		conds = append(conds, fmt.Sprintf("captured_at <= $%d", len(args)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY captured_at DESC, id DESC LIMIT $%d", len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanFragmentRows(rows)
}

func (r *FragmentRepository) ListWithCursor(ctx context.Context, filter service.FragmentFilter, cursor *pagination.Cursor, limit int) (*service.FragmentPage, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT ` + fragmentColumns + ` FROM fragments`
	var conds []string
	var args []interface{}

	if filter.Project != "" {
		args = append(args, filter.Project)
		conds = append(conds, fmt.Sprintf("project = $%d", len(args)))
	}
	if filter.SourceType != "" {
		args = append(args, filter.SourceType)
		conds = append(conds, fmt.Sprintf("source_type = $%d", len(args)))
	}
	if cursor != nil {
		args = append(args, cursor.CapturedAt)
		tsArg := len(args)
		args = append(args, cursor.LastID)
		conds = append(conds, fmt.Sprintf("(captured_at, id) < ($%d, $%d)", tsArg, len(args)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	args = append(args, limit+1)
	query += fmt.Sprintf(" ORDER BY captured_at DESC, id DESC LIMIT $%d", len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items, err := scanFragmentRows(rows)
	if err != nil {
		return nil, err
	}

	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}

	var nextCursor string
	if hasMore && len(items) > 0 {
		last := items[len(items)-1]
		nextCursor = pagination.EncodeCursor(last.ID, last.CapturedAt)
	}

	return &service.FragmentPage{
		Items:      items,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

// Delete removes a fragment. Decisions, assumptions, links, and enrichment
// jobs go with it via relational cascade; invalidated_by references pointing
// at it become NULL. Returns false when no row existed.
func (r *FragmentRepository) Delete(ctx context.Context, id string) (bool, error) {
	cmdTag, err := r.db.Exec(ctx,
		`DELETE FROM fragments WHERE id = $1`,
		id,
	)
	if err != nil {
		return false, err
	}
	return cmdTag.RowsAffected() > 0, nil
}

func (r *FragmentRepository) UpdateSummary(ctx context.Context, id, summary string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE fragments SET summary = $1 WHERE id = $2`,
		nullableString(summary), id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrFragmentNotFound
	}
	return nil
}

func scanFragment(row pgx.Row) (*domain.Fragment, error) {
	var f domain.Fragment
	var summary, sourceRef, project *string
	if err := row.Scan(&f.ID, &f.RawContent, &summary, &f.SourceType, &sourceRef,
		&f.CapturedAt, &f.Participants, &f.Topics, &project); err != nil {
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
	return &f, nil
}

func scanFragmentRows(rows pgx.Rows) ([]*domain.Fragment, error) {
	var results []*domain.Fragment
	for rows.Next() {
		f, err := scanFragment(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, f)
	}
	return results, rows.Err()
}
