package migration

import "bitbucket.org/mmdatafocus/boekhouden_backend/eboekhouden"

// categoryDebitIncrease maps an external ledger category to whether accounts
// of that category increase with debits. The inference is a heuristic: most
// P&L accounts in the source administrations are expenses and most balance
// accounts are assets, so both default to the debit side. Per-ledger
// overrides correct the ids where the category rule is known to be wrong;
// they are environment data maintained per company, not algorithmic truth.
var categoryDebitIncrease = map[string]bool{
	eboekhouden.LedgerCategoryProfitLoss:  true,
	eboekhouden.LedgerCategoryBalance:     true,
	eboekhouden.LedgerCategoryFinancial:   true,
	eboekhouden.LedgerCategoryReceivables: true,
	eboekhouden.LedgerCategoryPayables:    false,
}

// ShouldDebitIncrease decides which side increases an account's balance,
// keyed by the ledger's external category and corrected by the per-ledger
// override table. Unknown categories default to the debit side.
func ShouldDebitIncrease(category string, ledgerId int, overrides map[int]bool) bool {
	if direction, ok := overrides[ledgerId]; ok {
		return direction
	}
	if direction, ok := categoryDebitIncrease[category]; ok {
		return direction
	}
	return true
}
