package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/weftware/weft/internal/service"
)

// PgvectorIndex keeps fragment embeddings in the fragment_embeddings table
// and answers nearest-neighbour queries with the cosine distance operator.
// It is the default service.VectorIndex backend.
type PgvectorIndex struct {
	pool *pgxpool.Pool
}

func NewPgvectorIndex(pool *pgxpool.Pool) *PgvectorIndex {
	return &PgvectorIndex{pool: pool}
}

func (x *PgvectorIndex) Upsert(ctx context.Context, fragmentID string, vector []float32, meta service.VectorMetadata) error {
	_, err := x.pool.Exec(ctx,
		`INSERT INTO fragment_embeddings (fragment_id, embedding, project, source_type, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (fragment_id)
		 DO UPDATE SET embedding = EXCLUDED.embedding,
		               project = EXCLUDED.project,
		               source_type = EXCLUDED.source_type,
		               updated_at = EXCLUDED.updated_at`,
		fragmentID, pgvector.NewVector(vector), nullableString(meta.Project), meta.SourceType, time.Now().UTC(),
	)
	return err
}

// Query returns up to k matches ordered by ascending cosine distance.
func (x *PgvectorIndex) Query(ctx context.Context, vector []float32, k int, filter service.VectorFilter) ([]*service.VectorMatch, error) {
	if k <= 0 {
		k = 10
	}

	vec := pgvector.NewVector(vector)

	conds := []string{}
	args := []interface{}{vec}
	if filter.Project != "" {
		args = append(args, filter.Project)
		conds = append(conds, fmt.Sprintf("project = $%d", len(args)))
	}
	if filter.SourceType != "" {
		args = append(args, filter.SourceType)
		conds = append(conds, fmt.Sprintf("source_type = $%d", len(args)))
	}

	query := `SELECT fragment_id, embedding <=> $1 AS distance FROM fragment_embeddings`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, k)
	query += fmt.Sprintf(" ORDER BY embedding <=> $1 LIMIT $%d", len(args))

	rows, err := x.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []*service.VectorMatch
	for rows.Next() {
		var m service.VectorMatch
		if err := rows.Scan(&m.FragmentID, &m.Distance); err != nil {
			return nil, err
		}
		matches = append(matches, &m)
	}
	return matches, rows.Err()
}

func (x *PgvectorIndex) Delete(ctx context.Context, fragmentID string) (bool, error) {
	cmdTag, err := x.pool.Exec(ctx,
		`DELETE FROM fragment_embeddings WHERE fragment_id = $1`,
		fragmentID,
	)
	if err != nil {
		return false, err
	}
	return cmdTag.RowsAffected() > 0, nil
}
