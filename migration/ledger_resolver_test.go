package migration

import (
	"context"
	"testing"

	"bitbucket.org/mmdatafocus/boekhouden_backend/eboekhouden"
	"bitbucket.org/mmdatafocus/boekhouden_backend/models"
)

func TestAccountTypeForCode(t *testing.T) {
	cases := []struct {
		code       string
		desc       string
		detailType models.AccountDetailType
		mainType   models.AccountMainType
	}{
		{"0100", "Inventaris", models.AccountDetailTypeFixedAsset, models.AccountMainTypeAsset},
		{"1000", "Kas", models.AccountDetailTypeCash, models.AccountMainTypeAsset},
		{"1010", "Rabobank", models.AccountDetailTypeBank, models.AccountMainTypeAsset},
		{"1300", "Debiteuren", models.AccountDetailTypeAccountsReceivable, models.AccountMainTypeAsset},
		{"1600", "Crediteuren", models.AccountDetailTypeAccountsPayable, models.AccountMainTypeLiability},
		{"1500", "Vooruitbetaald", models.AccountDetailTypeOtherCurrentAsset, models.AccountMainTypeAsset},
		{"2000", "Kruisposten", models.AccountDetailTypeOtherCurrentLiability, models.AccountMainTypeLiability},
		{"3000", "Eigen vermogen", models.AccountDetailTypeEquity, models.AccountMainTypeEquity},
		{"4000", "Omzet diensten", models.AccountDetailTypeIncome, models.AccountMainTypeIncome},
		{"4100", "Af te dragen BTW hoog", models.AccountDetailTypeOutputTax, models.AccountMainTypeLiability},
		{"6000", "Huur", models.AccountDetailTypeExpense, models.AccountMainTypeExpense},
		{"8000", "Omzet", models.AccountDetailTypeIncome, models.AccountMainTypeIncome},
		{"", "", models.AccountDetailTypeExpense, models.AccountMainTypeExpense},
	}
	for _, tc := range cases {
		detailType, mainType := accountTypeForCode(tc.code, tc.desc)
		if detailType != tc.detailType || mainType != tc.mainType {
			t.Fatalf("accountTypeForCode(%q, %q) = %s/%s, expected %s/%s",
				tc.code, tc.desc, detailType, mainType, tc.detailType, tc.mainType)
		}
	}
}

func TestResolve_MappingWins(t *testing.T) {
	store := newFakeStore()
	api := newFakeAPI()
	account := store.seedAccount(models.AccountDetailTypeIncome, models.AccountMainTypeIncome, "Mapped Income", "4000")
	store.mappings["700"] = &models.LedgerMapping{LedgerId: "700", AccountId: account.ID}
	// The external ledger disagrees with the mapping; the mapping must win.
	api.addLedger(700, "6000", "Huur", eboekhouden.LedgerCategoryProfitLoss)

	resolver := NewLedgerResolver(api, testLogger())
	resolution, err := resolver.Resolve(context.Background(), store, 700)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if resolution.Source != ResolvedViaMapping {
		t.Fatalf("source = %s, expected %s", resolution.Source, ResolvedViaMapping)
	}
	if resolution.Account.ID != account.ID {
		t.Fatalf("resolved account %d, expected mapped account %d", resolution.Account.ID, account.ID)
	}
}

func TestResolve_HeuristicCreatesAccountAndPersistsMapping(t *testing.T) {
	store := newFakeStore()
	api := newFakeAPI()
	api.addLedger(701, "4000", "Omzet diensten", eboekhouden.LedgerCategoryProfitLoss)

	resolver := NewLedgerResolver(api, testLogger())
	resolution, err := resolver.Resolve(context.Background(), store, 701)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if resolution.Source != ResolvedViaHeuristic {
		t.Fatalf("source = %s, expected %s", resolution.Source, ResolvedViaHeuristic)
	}
	if resolution.Account.DetailType != models.AccountDetailTypeIncome {
		t.Fatalf("detail type = %s, expected Income", resolution.Account.DetailType)
	}
	if resolution.Account.Name != "4000 - Omzet diensten" {
		t.Fatalf("account name = %q", resolution.Account.Name)
	}
	if resolution.Category != eboekhouden.LedgerCategoryProfitLoss {
		t.Fatalf("category = %q, expected VW", resolution.Category)
	}

	mapping := store.mappings["701"]
	if mapping == nil {
		t.Fatal("heuristic resolution did not persist a mapping")
	}
	if mapping.AccountId != resolution.Account.ID {
		t.Fatalf("mapping points at account %d, resolution at %d", mapping.AccountId, resolution.Account.ID)
	}
}

func TestResolve_ExistingAccountByCodeIsReused(t *testing.T) {
	store := newFakeStore()
	api := newFakeAPI()
	existing := store.seedAccount(models.AccountDetailTypeExpense, models.AccountMainTypeExpense, "Huur kantoor", "6000")
	api.addLedger(702, "6000", "Huur", eboekhouden.LedgerCategoryProfitLoss)

	resolver := NewLedgerResolver(api, testLogger())
	resolution, err := resolver.Resolve(context.Background(), store, 702)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if resolution.Account.ID != existing.ID {
		t.Fatalf("resolved account %d, expected existing account %d", resolution.Account.ID, existing.ID)
	}
	if len(store.accounts) != 1 {
		t.Fatalf("account count = %d, a duplicate was created", len(store.accounts))
	}
}

func TestResolve_UnknownLedgerBooksToSuspense(t *testing.T) {
	store := newFakeStore()
	api := newFakeAPI()

	resolver := NewLedgerResolver(api, testLogger())
	resolution, err := resolver.Resolve(context.Background(), store, 999)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if resolution.Source != ResolvedViaSuspense {
		t.Fatalf("source = %s, expected %s", resolution.Source, ResolvedViaSuspense)
	}
	if resolution.Account.Name != suspenseAccountName {
		t.Fatalf("account name = %q", resolution.Account.Name)
	}

	// A second unknown ledger reuses the same suspense account.
	again, err := resolver.Resolve(context.Background(), store, 998)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if again.Account.ID != resolution.Account.ID {
		t.Fatal("second suspense resolution created a new account")
	}
}

func TestSuspenseAccount_SharedAcrossResolversInOneTransaction(t *testing.T) {
	store := newFakeStore()
	api := newFakeAPI()

	// Two resolver instances with empty memos must converge on one suspense
	// account: the name lookup has to see the account the first resolver
	// created earlier in the same unit of work.
	err := store.Transaction(context.Background(), func(tx Store) error {
		first, err := NewLedgerResolver(api, testLogger()).suspenseAccount(context.Background(), tx)
		if err != nil {
			return err
		}
		second, err := NewLedgerResolver(api, testLogger()).suspenseAccount(context.Background(), tx)
		if err != nil {
			return err
		}
		if second.ID != first.ID {
			t.Fatalf("suspense accounts %d and %d, expected one shared account", first.ID, second.ID)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Transaction error: %v", err)
	}
	if len(store.accounts) != 1 {
		t.Fatalf("account count = %d, a duplicate suspense account was created", len(store.accounts))
	}
}

func TestResolve_MemoizesWithinRun(t *testing.T) {
	store := newFakeStore()
	api := newFakeAPI()
	api.addLedger(703, "4000", "Omzet", eboekhouden.LedgerCategoryProfitLoss)

	resolver := NewLedgerResolver(api, testLogger())
	first, err := resolver.Resolve(context.Background(), store, 703)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	delete(api.ledgers, 703)
	second, err := resolver.Resolve(context.Background(), store, 703)
	if err != nil {
		t.Fatalf("second Resolve error: %v", err)
	}
	if second.Account.ID != first.Account.ID || second.Source != ResolvedViaHeuristic {
		t.Fatal("second resolution did not come from the memo")
	}
}

func TestCategory(t *testing.T) {
	api := newFakeAPI()
	api.addLedger(704, "1600", "Crediteuren", eboekhouden.LedgerCategoryPayables)

	resolver := NewLedgerResolver(api, testLogger())
	category, err := resolver.Category(context.Background(), 704)
	if err != nil {
		t.Fatalf("Category error: %v", err)
	}
	if category != eboekhouden.LedgerCategoryPayables {
		t.Fatalf("category = %q, expected CRED", category)
	}

	category, err = resolver.Category(context.Background(), 12345)
	if err != nil {
		t.Fatalf("Category error for unknown ledger: %v", err)
	}
	if category != "" {
		t.Fatalf("unknown ledger category = %q, expected empty", category)
	}
}
