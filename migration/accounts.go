package migration

import (
	"context"

	"bitbucket.org/mmdatafocus/boekhouden_backend/models"
)

// Shared get-or-create helpers for the system accounts every processor leans
// on. Lookups go by detail type first so an existing chart is reused as-is.

func receivableAccount(ctx context.Context, store Store) (*models.Account, error) {
	return accountOfType(ctx, store, models.AccountDetailTypeAccountsReceivable, models.AccountMainTypeAsset, "Accounts Receivable")
}

func payableAccount(ctx context.Context, store Store) (*models.Account, error) {
	return accountOfType(ctx, store, models.AccountDetailTypeAccountsPayable, models.AccountMainTypeLiability, "Accounts Payable")
}

// temporaryDifferencesAccount is the equity plug for opening-balance rounding.
// Always a dedicated named account; an arbitrary equity account must not
// silently absorb plug amounts.
func temporaryDifferencesAccount(ctx context.Context, store Store) (*models.Account, error) {
	account, err := store.AccountByName(ctx, "Temporary Differences")
	if err != nil {
		return nil, err
	}
	if account != nil {
		return account, nil
	}
	account = &models.Account{
		DetailType:  models.AccountDetailTypeEquity,
		MainType:    models.AccountMainTypeEquity,
		Name:        "Temporary Differences",
		Description: "Balancing differences from the opening balance import",
	}
	if err := store.CreateAccount(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

func accountOfType(ctx context.Context, store Store, detailType models.AccountDetailType, mainType models.AccountMainType, name string) (*models.Account, error) {
	account, err := store.AccountByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if account != nil {
		return account, nil
	}
	account, err = store.FirstAccountByDetailType(ctx, detailType)
	if err != nil {
		return nil, err
	}
	if account != nil {
		return account, nil
	}
	account = &models.Account{
		DetailType: detailType,
		MainType:   mainType,
		Name:       name,
	}
	if err := store.CreateAccount(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// cashOrBankAccount walks the payment fallback chain: the configured default,
// the conventional "Kas" cash account, any cash account, any bank account,
// and only then a newly created minimal cash account. No account name is
// hardwired as the final answer.
func cashOrBankAccount(ctx context.Context, store Store, configuredDefault string) (*models.Account, error) {
	if configuredDefault != "" {
		account, err := store.AccountByName(ctx, configuredDefault)
		if err != nil {
			return nil, err
		}
		if account != nil {
			return account, nil
		}
	}

	account, err := store.AccountByName(ctx, "Kas")
	if err != nil {
		return nil, err
	}
	if account != nil {
		return account, nil
	}

	account, err = store.FirstAccountByDetailType(ctx, models.AccountDetailTypeCash)
	if err != nil {
		return nil, err
	}
	if account != nil {
		return account, nil
	}

	account, err = store.FirstAccountByDetailType(ctx, models.AccountDetailTypeBank)
	if err != nil {
		return nil, err
	}
	if account != nil {
		return account, nil
	}

	account = &models.Account{
		DetailType:  models.AccountDetailTypeCash,
		MainType:    models.AccountMainTypeAsset,
		Name:        "Kas (eBoekhouden Import)",
		Description: "Created because no cash or bank account existed during import",
	}
	if err := store.CreateAccount(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

func isCashOrBank(detailType models.AccountDetailType) bool {
	return detailType == models.AccountDetailTypeCash || detailType == models.AccountDetailTypeBank
}
