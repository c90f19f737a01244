package service

import "context"

type testTxRepos struct {
	fragments      FragmentRepositoryInterface
	decisions      DecisionRepositoryInterface
	assumptions    AssumptionRepositoryInterface
	links          LinkRepositoryInterface
	enrichmentJobs EnrichmentJobRepositoryInterface
}

func (t *testTxRepos) Fragments() FragmentRepositoryInterface {
	return t.fragments
}

func (t *testTxRepos) Decisions() DecisionRepositoryInterface {
	return t.decisions
}

func (t *testTxRepos) Assumptions() AssumptionRepositoryInterface {
	return t.assumptions
}

func (t *testTxRepos) Links() LinkRepositoryInterface {
	return t.links
}

func (t *testTxRepos) EnrichmentJobs() EnrichmentJobRepositoryInterface {
	return t.enrichmentJobs
}

type testTxRunner struct {
	repos  TxRepositories
	called bool
}

func (t *testTxRunner) WithTx(ctx context.Context, fn func(repos TxRepositories) error) error {
	t.called = true
	return fn(t.repos)
}
