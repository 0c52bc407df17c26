package migration

import (
	"context"
	"strings"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/boekhouden_backend/eboekhouden"
	"bitbucket.org/mmdatafocus/boekhouden_backend/models"
)

func newOpeningBalanceProcessor(api *fakeAPI) *OpeningBalanceProcessor {
	logger := testLogger()
	ledgers := NewLedgerResolver(api, logger)
	parties := NewPartyResolver(api, "Demo BV", logger)
	return NewOpeningBalanceProcessor(ledgers, parties, 0, logger)
}

func openingMutation(id int, rows ...eboekhouden.MutationRow) *eboekhouden.Mutation {
	return &eboekhouden.Mutation{
		ID:          id,
		Type:        eboekhouden.MutationTypeOpeningBalance,
		Date:        time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		Description: "Beginbalans 2023",
		Rows:        rows,
	}
}

func TestOpeningBalance_BalancedEntry(t *testing.T) {
	store := newFakeStore()
	api := newFakeAPI()
	api.addLedger(810, "1010", "Rabobank", eboekhouden.LedgerCategoryFinancial)
	api.addLedger(811, "0300", "Eigen vermogen", eboekhouden.LedgerCategoryBalance)

	p := newOpeningBalanceProcessor(api)
	m := openingMutation(501,
		eboekhouden.MutationRow{LedgerId: 810, Amount: dec("1000.00")},
		eboekhouden.MutationRow{LedgerId: 811, Amount: dec("-1000.00")},
	)
	doc, err := p.Process(context.Background(), store, m)
	if err != nil {
		t.Fatalf("Process error: %v", err)
	}
	if doc == nil || doc.Kind != DocumentKindJournalEntry {
		t.Fatalf("doc = %+v, expected a journal entry", doc)
	}

	entry := store.journalEntries[0]
	if len(entry.Lines) != 2 {
		t.Fatalf("line count = %d, expected 2", len(entry.Lines))
	}
	if !entry.TotalDebit.Equal(entry.TotalCredit) {
		t.Fatalf("entry unbalanced: debit %s credit %s", entry.TotalDebit, entry.TotalCredit)
	}
	// No plug account was needed.
	if account, _ := store.AccountByName(context.Background(), "Temporary Differences"); account != nil {
		t.Fatal("plug account created for a balanced opening entry")
	}
}

func TestOpeningBalance_ExcludesProfitLossAndStockRows(t *testing.T) {
	store := newFakeStore()
	store.seedAccount(models.AccountDetailTypeStock, models.AccountMainTypeAsset, "3000 - Voorraad", "3000")
	api := newFakeAPI()
	api.addLedger(810, "1010", "Rabobank", eboekhouden.LedgerCategoryFinancial)
	api.addLedger(811, "0300", "Eigen vermogen", eboekhouden.LedgerCategoryBalance)
	api.addLedger(812, "8000", "Omzet vorig jaar", eboekhouden.LedgerCategoryProfitLoss)
	api.addLedger(813, "3000", "Voorraad", eboekhouden.LedgerCategoryBalance)

	p := newOpeningBalanceProcessor(api)
	m := openingMutation(502,
		eboekhouden.MutationRow{LedgerId: 810, Amount: dec("1000.00")},
		eboekhouden.MutationRow{LedgerId: 811, Amount: dec("-1000.00")},
		eboekhouden.MutationRow{LedgerId: 812, Amount: dec("400.00")},
		eboekhouden.MutationRow{LedgerId: 813, Amount: dec("250.00")},
	)
	if _, err := p.Process(context.Background(), store, m); err != nil {
		t.Fatalf("Process error: %v", err)
	}

	entry := store.journalEntries[0]
	income, _ := store.AccountByCode(context.Background(), "8000")
	stock, _ := store.AccountByCode(context.Background(), "3000")
	for _, line := range entry.Lines {
		if income != nil && line.AccountId == income.ID {
			t.Fatal("profit-and-loss row was booked")
		}
		if line.AccountId == stock.ID {
			t.Fatal("stock row was booked")
		}
	}
	if !entry.TotalDebit.Equal(entry.TotalCredit) {
		t.Fatalf("entry unbalanced: debit %s credit %s", entry.TotalDebit, entry.TotalCredit)
	}
}

func TestOpeningBalance_ImbalancePluggedIntoTemporaryDifferences(t *testing.T) {
	store := newFakeStore()
	api := newFakeAPI()
	api.addLedger(810, "1010", "Rabobank", eboekhouden.LedgerCategoryFinancial)
	api.addLedger(811, "0300", "Eigen vermogen", eboekhouden.LedgerCategoryBalance)
	api.addLedger(812, "8000", "Omzet vorig jaar", eboekhouden.LedgerCategoryProfitLoss)

	p := newOpeningBalanceProcessor(api)
	// The excluded P&L row leaves 200 too little on the credit side.
	m := openingMutation(503,
		eboekhouden.MutationRow{LedgerId: 810, Amount: dec("1000.00")},
		eboekhouden.MutationRow{LedgerId: 811, Amount: dec("-800.00")},
		eboekhouden.MutationRow{LedgerId: 812, Amount: dec("-200.00")},
	)
	if _, err := p.Process(context.Background(), store, m); err != nil {
		t.Fatalf("Process error: %v", err)
	}

	plug, _ := store.AccountByName(context.Background(), "Temporary Differences")
	if plug == nil {
		t.Fatal("plug account not created")
	}
	if plug.DetailType != models.AccountDetailTypeEquity {
		t.Fatalf("plug detail type = %s, expected Equity", plug.DetailType)
	}

	entry := store.journalEntries[0]
	var plugLine *models.JournalLine
	for i := range entry.Lines {
		if entry.Lines[i].AccountId == plug.ID {
			plugLine = &entry.Lines[i]
		}
	}
	if plugLine == nil {
		t.Fatal("no plug line in the entry")
	}
	if !plugLine.Credit.Equal(dec("200.00")) {
		t.Fatalf("plug credit = %s, expected 200.00", plugLine.Credit)
	}
	if !entry.TotalDebit.Equal(entry.TotalCredit) {
		t.Fatalf("entry unbalanced after plug: debit %s credit %s", entry.TotalDebit, entry.TotalCredit)
	}
	if !strings.Contains(entry.Notes, "difference of 200.00") {
		t.Fatalf("notes do not mention the plug: %q", entry.Notes)
	}
}

func TestOpeningBalance_NegativePayableRowBooksCredit(t *testing.T) {
	store := newFakeStore()
	api := newFakeAPI()
	api.addLedger(810, "1010", "Rabobank", eboekhouden.LedgerCategoryFinancial)
	api.addLedger(811, "1600", "Crediteuren", eboekhouden.LedgerCategoryPayables)

	p := newOpeningBalanceProcessor(api)
	// The payables row carries a negative signed balance; it must land on the
	// credit side regardless of the ledger's category.
	m := openingMutation(507,
		eboekhouden.MutationRow{LedgerId: 810, Amount: dec("500.00")},
		eboekhouden.MutationRow{LedgerId: 811, Amount: dec("-500.00")},
	)
	if _, err := p.Process(context.Background(), store, m); err != nil {
		t.Fatalf("Process error: %v", err)
	}

	entry := store.journalEntries[0]
	if len(entry.Lines) != 2 {
		t.Fatalf("line count = %d, expected 2", len(entry.Lines))
	}
	payable, _ := store.AccountByCode(context.Background(), "1600")
	var payableLine *models.JournalLine
	for i := range entry.Lines {
		if entry.Lines[i].AccountId == payable.ID {
			payableLine = &entry.Lines[i]
		}
	}
	if payableLine == nil {
		t.Fatal("no payable line in the entry")
	}
	if !payableLine.Credit.Equal(dec("500.00")) || !payableLine.Debit.IsZero() {
		t.Fatalf("payable line debit %s credit %s, expected credit 500.00", payableLine.Debit, payableLine.Credit)
	}
	if !entry.TotalDebit.Equal(entry.TotalCredit) {
		t.Fatalf("entry unbalanced: debit %s credit %s", entry.TotalDebit, entry.TotalCredit)
	}
	if account, _ := store.AccountByName(context.Background(), "Temporary Differences"); account != nil {
		t.Fatal("plug account created for a balanced opening entry")
	}
}

func TestOpeningBalance_ReceivableRowCarriesInternalCustomer(t *testing.T) {
	store := newFakeStore()
	api := newFakeAPI()
	api.addLedger(810, "1300", "Debiteuren", eboekhouden.LedgerCategoryReceivables)
	api.addLedger(811, "0300", "Eigen vermogen", eboekhouden.LedgerCategoryBalance)

	p := newOpeningBalanceProcessor(api)
	m := openingMutation(504,
		eboekhouden.MutationRow{LedgerId: 810, Amount: dec("350.00")},
		eboekhouden.MutationRow{LedgerId: 811, Amount: dec("-350.00")},
	)
	if _, err := p.Process(context.Background(), store, m); err != nil {
		t.Fatalf("Process error: %v", err)
	}

	entry := store.journalEntries[0]
	receivable, _ := store.AccountByCode(context.Background(), "1300")
	for _, line := range entry.Lines {
		if line.AccountId == receivable.ID {
			if line.PartyType != models.PartyTypeCustomer || line.PartyId == 0 {
				t.Fatalf("receivable opening line without customer party: %+v", line)
			}
		}
	}
}

func TestOpeningBalance_ReprocessSkips(t *testing.T) {
	store := newFakeStore()
	api := newFakeAPI()
	api.addLedger(810, "1010", "Rabobank", eboekhouden.LedgerCategoryFinancial)
	api.addLedger(811, "0300", "Eigen vermogen", eboekhouden.LedgerCategoryBalance)

	p := newOpeningBalanceProcessor(api)
	m := openingMutation(505,
		eboekhouden.MutationRow{LedgerId: 810, Amount: dec("100.00")},
		eboekhouden.MutationRow{LedgerId: 811, Amount: dec("-100.00")},
	)
	if _, err := p.Process(context.Background(), store, m); err != nil {
		t.Fatalf("first Process error: %v", err)
	}
	doc, err := p.Process(context.Background(), store, m)
	if err != nil {
		t.Fatalf("second Process error: %v", err)
	}
	if doc != nil || len(store.journalEntries) != 1 {
		t.Fatal("reprocessed opening balance must skip")
	}
}

func TestOpeningBalance_NoBookableRowsSkips(t *testing.T) {
	store := newFakeStore()
	api := newFakeAPI()
	api.addLedger(812, "8000", "Omzet vorig jaar", eboekhouden.LedgerCategoryProfitLoss)

	p := newOpeningBalanceProcessor(api)
	m := openingMutation(506, eboekhouden.MutationRow{LedgerId: 812, Amount: dec("400.00")})
	doc, err := p.Process(context.Background(), store, m)
	if err != nil {
		t.Fatalf("Process error: %v", err)
	}
	if doc != nil || len(store.journalEntries) != 0 {
		t.Fatal("opening balance with only excluded rows must skip")
	}
}
