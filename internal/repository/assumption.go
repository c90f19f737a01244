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

type AssumptionRepository struct {
	db dbtx
}

func NewAssumptionRepository(pool *pgxpool.Pool) *AssumptionRepository {
	return &AssumptionRepository{db: pool}
}

func NewAssumptionRepositoryWithTx(tx pgx.Tx) *AssumptionRepository {
	return &AssumptionRepository{db: tx}
}

func (r *AssumptionRepository) Create(ctx context.Context, a *domain.Assumption) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO assumptions (id, fragment_id, statement, explicit, validity, invalidated_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.FragmentID, a.Statement, a.Explicit, a.Validity, nullableString(a.InvalidatedBy), a.CreatedAt,
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

func (r *AssumptionRepository) GetByID(ctx context.Context, id string) (*domain.Assumption, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, fragment_id, statement, explicit, validity, invalidated_by, created_at
		 FROM assumptions WHERE id = $1`,
		id,
	)
	a, err := scanAssumption(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAssumptionNotFound
		}
		return nil, err
	}
	return a, nil
}

func (r *AssumptionRepository) List(ctx context.Context, filter service.AssumptionFilter) ([]*domain.Assumption, error) {
	query := `SELECT a.id, a.fragment_id, a.statement, a.explicit, a.validity, a.invalidated_by, a.created_at FROM assumptions a`
	var conds []string
	var args []interface{}

	if filter.Project != "" {
		query += ` JOIN fragments f ON f.id = a.fragment_id`
		args = append(args, filter.Project)
		conds = append(conds, fmt.Sprintf("f.project = $%d", len(args)))
	}
	if filter.FragmentID != "" {
		args = append(args, filter.FragmentID)
		conds = append(conds, fmt.Sprintf("a.fragment_id = $%d", len(args)))
	}
	if filter.ValidOnly {
		args = append(args, domain.ValidityInvalid)
		conds = append(conds, fmt.Sprintf("a.validity != $%d", len(args)))
	}
	if filter.Since != nil {
		args = append(args, *filter.Since)
		conds = append(conds, fmt.Sprintf("a.created_at >= $%d", len(args)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY a.created_at DESC LIMIT $%d", len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*domain.Assumption
	for rows.Next() {
		a, err := scanAssumption(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, a)
	}
	return results, rows.Err()
}

// Invalidate moves an assumption from unknown to invalid and records the
// fragment that contradicted it. The invalidating fragment is not checked
// here; callers that need the reference to hold verify it in the same
// transaction. Terminal validity states are never rewritten.
func (r *AssumptionRepository) Invalidate(ctx context.Context, id, invalidatedBy string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE assumptions SET validity = $1, invalidated_by = $2
		 WHERE id = $3 AND validity = $4`,
		domain.ValidityInvalid, invalidatedBy, id, domain.ValidityUnknown,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return r.classifyValidityConflict(ctx, id)
	}
	return nil
}

// MarkValid moves an assumption from unknown to valid. No invalidating
// fragment is recorded for this transition.
func (r *AssumptionRepository) MarkValid(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE assumptions SET validity = $1, invalidated_by = NULL
		 WHERE id = $2 AND validity = $3`,
		domain.ValidityValid, id, domain.ValidityUnknown,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return r.classifyValidityConflict(ctx, id)
	}
	return nil
}

// classifyValidityConflict distinguishes a missing assumption from one whose
// validity is already terminal after a guarded update matched no rows.
func (r *AssumptionRepository) classifyValidityConflict(ctx context.Context, id string) error {
	var validity domain.Validity
	err := r.db.QueryRow(ctx,
		`SELECT validity FROM assumptions WHERE id = $1`,
		id,
	).Scan(&validity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrAssumptionNotFound
		}
		return err
	}
	return domain.ErrValidityFinal
}

func scanAssumption(row pgx.Row) (*domain.Assumption, error) {
	var a domain.Assumption
	var invalidatedBy *string
	if err := row.Scan(&a.ID, &a.FragmentID, &a.Statement, &a.Explicit,
		&a.Validity, &invalidatedBy, &a.CreatedAt); err != nil {
		return nil, err
	}
	if invalidatedBy != nil {
		a.InvalidatedBy = *invalidatedBy
	}
	return &a, nil
}

// DeleteUnvalidated removes a fragment's assumptions that still have
// unknown validity. Rows already marked valid or invalid carry lifecycle
// state and stay put across re-enrichment.
func (r *AssumptionRepository) DeleteUnvalidated(ctx context.Context, fragmentID string) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM assumptions WHERE fragment_id = $1 AND validity = $2`,
		fragmentID, domain.ValidityUnknown,
	)
	return err
}
