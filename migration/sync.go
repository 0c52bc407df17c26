package migration

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"bitbucket.org/mmdatafocus/boekhouden_backend/eboekhouden"
	"bitbucket.org/mmdatafocus/boekhouden_backend/models"
)

// SyncChartOfAccounts seeds the ledger mapping table from the full external
// chart of accounts, so the import phase resolves rows from the mapping table
// instead of fetching ledger details one id at a time. Existing mappings are
// left alone; manual remappings survive a re-run.
func (r *LedgerResolver) SyncChartOfAccounts(ctx context.Context, store Store) (int, error) {
	ledgers, err := r.api.FetchLedgers(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetching chart of accounts: %w", err)
	}

	created := 0
	for _, ledger := range ledgers {
		ledgerKey := strconv.Itoa(ledger.ID)
		mapping, err := store.LedgerMapping(ctx, ledgerKey)
		if err != nil {
			return created, err
		}
		if mapping != nil {
			continue
		}

		account, err := r.accountForLedger(ctx, store, ledger)
		if err != nil {
			return created, fmt.Errorf("resolving ledger %s (%s): %w", ledger.Code, ledger.Description, err)
		}
		if err := store.SaveLedgerMapping(ctx, &models.LedgerMapping{
			LedgerId:   ledgerKey,
			AccountId:  account.ID,
			LedgerCode: ledger.Code,
			LedgerName: ledger.Description,
		}); err != nil {
			return created, err
		}
		r.memo[ledger.ID] = &LedgerResolution{
			Account:  account,
			Category: ledger.Category,
			Source:   ResolvedViaMapping,
		}
		created++
	}
	return created, nil
}

// SyncCostCenters upserts the external cost center list and returns the synced
// rows, so a re-run picks up renames without duplicating centers.
func SyncCostCenters(ctx context.Context, api APIClient, store Store) ([]*models.CostCenter, error) {
	external, err := api.FetchCostCenters(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching cost centers: %w", err)
	}

	centers := make([]*models.CostCenter, 0, len(external))
	for _, costCenter := range external {
		saved, err := store.UpsertCostCenter(ctx, costCenter.ID, costCenter.Description)
		if err != nil {
			return nil, err
		}
		centers = append(centers, saved)
	}
	return centers, nil
}

// defaultCostCenterId picks the configured default cost center from the synced
// list by name, case-insensitively. Zero means no default; journal entries are
// then created without a cost center.
func defaultCostCenterId(centers []*models.CostCenter, name string) int {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0
	}
	for _, center := range centers {
		if strings.EqualFold(center.Name, name) {
			return center.ID
		}
	}
	return 0
}

// openingBalanceMutations returns the type 0 mutations for the opening
// balance phase. The cache is the normal source; when the id scan did not
// reach the opening entries the type listing endpoint fills the gap, and the
// fetched mutations are cached so a resumed run finds them locally.
func openingBalanceMutations(ctx context.Context, api APIClient, store Store) ([]*eboekhouden.Mutation, error) {
	entries, err := store.CachedMutationsByType(ctx, int(eboekhouden.MutationTypeOpeningBalance))
	if err != nil {
		return nil, err
	}
	if len(entries) > 0 {
		mutations := make([]*eboekhouden.Mutation, 0, len(entries))
		for _, entry := range entries {
			mutation, err := ParseCachedMutation(entry)
			if err != nil {
				return nil, fmt.Errorf("decoding cached mutation %s: %w", entry.MutationId, err)
			}
			mutations = append(mutations, mutation)
		}
		return mutations, nil
	}

	mutations, err := api.FetchMutationsByType(ctx, eboekhouden.MutationTypeOpeningBalance)
	if err != nil {
		return nil, fmt.Errorf("fetching opening balance mutations: %w", err)
	}
	for _, mutation := range mutations {
		payload, err := json.Marshal(mutation)
		if err != nil {
			return nil, err
		}
		mutationType := int(mutation.Type)
		mutationDate := mutation.Date
		if err := store.CacheMutation(ctx, &models.MutationCacheEntry{
			MutationId:   strconv.Itoa(mutation.ID),
			MutationType: mutationType,
			MutationDate: &mutationDate,
			MutationData: payload,
		}); err != nil {
			return nil, err
		}
	}
	return mutations, nil
}
