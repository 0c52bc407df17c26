package migration

import (
	"context"

	"bitbucket.org/mmdatafocus/boekhouden_backend/eboekhouden"
)

// Settings carries everything one migration run needs, constructed once at
// run start and passed explicitly into every component.
type Settings struct {
	CompanyId         string
	CompanyName       string
	APIURL            string
	APIToken          string
	Source            string
	DefaultCostCenter string
	// DefaultCashAccount names the account payments fall back to when the
	// mutation's own ledger is not a cash or bank account.
	DefaultCashAccount string
}

// APIClient is the slice of the eBoekhouden REST client the migration engine
// consumes. *eboekhouden.Client satisfies it; tests substitute fakes.
type APIClient interface {
	FetchMutationDetail(ctx context.Context, mutationId int) (*eboekhouden.Mutation, error)
	FetchMutationsByType(ctx context.Context, mutationType eboekhouden.MutationType) ([]*eboekhouden.Mutation, error)
	FetchLedgers(ctx context.Context) ([]*eboekhouden.Ledger, error)
	FetchLedgerDetail(ctx context.Context, ledgerId int) (*eboekhouden.Ledger, error)
	FetchRelations(ctx context.Context) ([]*eboekhouden.Relation, error)
	FetchRelationDetail(ctx context.Context, relationId int) (*eboekhouden.Relation, error)
	FetchCostCenters(ctx context.Context) ([]*eboekhouden.CostCenter, error)
	EstimateIDRange(ctx context.Context) (eboekhouden.IDRange, error)
}

var _ APIClient = (*eboekhouden.Client)(nil)
