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
	"github.com/weftware/weft/internal/service"
)

type DecisionRepository struct {
	db dbtx
}

func NewDecisionRepository(pool *pgxpool.Pool) *DecisionRepository {
	return &DecisionRepository{db: pool}
}

func NewDecisionRepositoryWithTx(tx pgx.Tx) *DecisionRepository {
	return &DecisionRepository{db: tx}
}

func (r *DecisionRepository) Create(ctx context.Context, d *domain.Decision) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO decisions (id, fragment_id, what, why, confidence, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		d.ID, d.FragmentID, d.What, d.Why, d.Confidence, d.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return domain.ErrFragmentNotFound
		}
		return err
	}
	return nil
}

func (r *DecisionRepository) GetByID(ctx context.Context, id string) (*domain.Decision, error) {
	var d domain.Decision
	err := r.db.QueryRow(ctx,
		`SELECT id, fragment_id, what, why, confidence, created_at
		 FROM decisions WHERE id = $1`,
		id,
	).Scan(&d.ID, &d.FragmentID, &d.What, &d.Why, &d.Confidence, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDecisionNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (r *DecisionRepository) List(ctx context.Context, filter service.DecisionFilter) ([]*domain.Decision, error) {
	query := `SELECT d.id, d.fragment_id, d.what, d.why, d.confidence, d.created_at FROM decisions d`
	var conds []string
	var args []interface{}

	if filter.Project != "" {
		query += ` JOIN fragments f ON f.id = d.fragment_id`
		args = append(args, filter.Project)
		conds = append(conds, fmt.Sprintf("f.project = $%d", len(args)))
	}
	if filter.FragmentID != "" {
		args = append(args, filter.FragmentID)
		conds = append(conds, fmt.Sprintf("d.fragment_id = $%d", len(args)))
	}
	if filter.Since != nil {
		args = append(args, *filter.Since)
		conds = append(conds, fmt.Sprintf("d.created_at >= $%d", len(args)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY d.created_at DESC LIMIT $%d", len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*domain.Decision
	for rows.Next() {
		var d domain.Decision
		if err := rows.Scan(&d.ID, &d.FragmentID, &d.What, &d.Why, &d.Confidence, &d.CreatedAt); err != nil {
			return nil, err
		}
		results = append(results, &d)
	}
	return results, rows.Err()
}

// DeleteByFragment removes every decision derived from a fragment.
// Re-enrichment replaces the set wholesale.
func (r *DecisionRepository) DeleteByFragment(ctx context.Context, fragmentID string) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM decisions WHERE fragment_id = $1`,
		fragmentID,
	)
	return err
}
