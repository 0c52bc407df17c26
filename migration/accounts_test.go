package migration

import (
	"context"
	"testing"

	"bitbucket.org/mmdatafocus/boekhouden_backend/models"
)

func TestAccountOfType_ReusesExistingByDetailType(t *testing.T) {
	store := newFakeStore()
	existing := store.seedAccount(models.AccountDetailTypeAccountsReceivable, models.AccountMainTypeAsset, "1300 - Debiteuren", "1300")

	account, err := receivableAccount(context.Background(), store)
	if err != nil {
		t.Fatalf("receivableAccount error: %v", err)
	}
	if account.ID != existing.ID {
		t.Fatalf("got account %q, expected the existing receivable account", account.Name)
	}
	if len(store.accounts) != 1 {
		t.Fatal("a duplicate receivable account was created")
	}
}

func TestAccountOfType_CreatesWhenAbsent(t *testing.T) {
	store := newFakeStore()

	account, err := payableAccount(context.Background(), store)
	if err != nil {
		t.Fatalf("payableAccount error: %v", err)
	}
	if account.Name != "Accounts Payable" || account.DetailType != models.AccountDetailTypeAccountsPayable {
		t.Fatalf("created account = %+v", account)
	}

	again, err := payableAccount(context.Background(), store)
	if err != nil {
		t.Fatalf("second payableAccount error: %v", err)
	}
	if again.ID != account.ID {
		t.Fatal("payable account duplicated")
	}
}

func TestTemporaryDifferencesAccount_NeverReusesArbitraryEquity(t *testing.T) {
	store := newFakeStore()
	store.seedAccount(models.AccountDetailTypeEquity, models.AccountMainTypeEquity, "Eigen vermogen", "0300")

	account, err := temporaryDifferencesAccount(context.Background(), store)
	if err != nil {
		t.Fatalf("temporaryDifferencesAccount error: %v", err)
	}
	if account.Name != "Temporary Differences" {
		t.Fatalf("plug landed on %q, an arbitrary equity account must not absorb it", account.Name)
	}

	again, err := temporaryDifferencesAccount(context.Background(), store)
	if err != nil {
		t.Fatalf("second call error: %v", err)
	}
	if again.ID != account.ID {
		t.Fatal("plug account duplicated")
	}
}

func TestIsCashOrBank(t *testing.T) {
	if !isCashOrBank(models.AccountDetailTypeCash) || !isCashOrBank(models.AccountDetailTypeBank) {
		t.Fatal("cash and bank must count as cash-or-bank")
	}
	if isCashOrBank(models.AccountDetailTypeExpense) || isCashOrBank(models.AccountDetailTypeAccountsReceivable) {
		t.Fatal("non-financial detail types must not count as cash-or-bank")
	}
}
