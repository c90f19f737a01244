package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/weftware/weft/internal/service"
)

// TxRunner provides transactional repositories using a pgx pool.
type TxRunner struct {
	pool *pgxpool.Pool
}

func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

func (r *TxRunner) WithTx(ctx context.Context, fn func(repos service.TxRepositories) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}

	repos := &txRepos{tx: tx}
	if err := fn(repos); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	return tx.Commit(ctx)
}

type txRepos struct {
	tx pgx.Tx
}

func (r *txRepos) Fragments() service.FragmentRepositoryInterface {
	return NewFragmentRepositoryWithTx(r.tx)
}

func (r *txRepos) Decisions() service.DecisionRepositoryInterface {
	return NewDecisionRepositoryWithTx(r.tx)
}

func (r *txRepos) Assumptions() service.AssumptionRepositoryInterface {
	return NewAssumptionRepositoryWithTx(r.tx)
}

func (r *txRepos) Links() service.LinkRepositoryInterface {
	return NewLinkRepositoryWithTx(r.tx)
}

func (r *txRepos) EnrichmentJobs() service.EnrichmentJobRepositoryInterface {
	return NewEnrichmentJobRepositoryWithTx(r.tx)
}
