package migration

import (
	"context"
	"fmt"
	"strconv"

	"bitbucket.org/mmdatafocus/boekhouden_backend/eboekhouden"
	"bitbucket.org/mmdatafocus/boekhouden_backend/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// OpeningBalanceProcessor books type 0 mutations as the opening journal
// entry. Profit-and-loss and stock rows are excluded: the opening position of
// a P&L account belongs to the prior year's result, and stock needs valuation
// data that is not in the mutation. Whatever imbalance the exclusions leave
// is plugged into the Temporary Differences equity account.
type OpeningBalanceProcessor struct {
	ledgers      *LedgerResolver
	parties      *PartyResolver
	costCenterId int
	logger       *logrus.Logger
}

func NewOpeningBalanceProcessor(ledgers *LedgerResolver, parties *PartyResolver, costCenterId int, logger *logrus.Logger) *OpeningBalanceProcessor {
	return &OpeningBalanceProcessor{ledgers: ledgers, parties: parties, costCenterId: costCenterId, logger: logger}
}

func (p *OpeningBalanceProcessor) Name() string { return "opening_balance" }

func (p *OpeningBalanceProcessor) CanProcess(m *eboekhouden.Mutation) bool {
	return m.Type == eboekhouden.MutationTypeOpeningBalance
}

func (p *OpeningBalanceProcessor) Process(ctx context.Context, store Store, m *eboekhouden.Mutation) (*Document, error) {
	mutationNr := strconv.Itoa(m.ID)

	exists, err := store.JournalEntryExists(ctx, mutationNr)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, nil
	}
	if len(m.Rows) == 0 {
		return nil, nil
	}

	var lines []models.JournalLine
	var skipped []string
	totalDebit := decimal.Zero
	totalCredit := decimal.Zero

	for _, row := range m.Rows {
		amount := row.Amount.Abs()
		if amount.IsZero() {
			continue
		}
		resolution, err := p.ledgers.Resolve(ctx, store, row.LedgerId)
		if err != nil {
			return nil, fmt.Errorf("resolving ledger %d: %w", row.LedgerId, err)
		}
		account := resolution.Account
		if account.MainType.IsProfitAndLoss() || account.DetailType == models.AccountDetailTypeStock {
			skipped = append(skipped, account.Name)
			continue
		}

		description := row.Description
		if description == "" {
			description = "Opening balance"
		}
		// Opening rows carry a signed balance, not a movement: a positive
		// amount is a debit position, a negative one a credit position,
		// whatever the ledger's category says about memorial bookings.
		line := models.JournalLine{AccountId: account.ID, Description: description}
		if row.Amount.IsPositive() {
			line.Debit = amount
			totalDebit = totalDebit.Add(amount)
		} else {
			line.Credit = amount
			totalCredit = totalCredit.Add(amount)
		}
		if err := p.attachInternalParty(ctx, store, &line, account); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}

	if len(skipped) > 0 {
		p.logger.WithFields(logrus.Fields{
			"mutation_id": m.ID,
			"accounts":    skipped,
		}).Info("opening balance rows excluded")
	}
	if len(lines) == 0 {
		return nil, nil
	}

	notes := m.Description
	if notes == "" {
		notes = "Opening balance"
	}

	difference := totalDebit.Sub(totalCredit)
	if difference.Abs().GreaterThan(models.BalanceTolerance) {
		plug, err := temporaryDifferencesAccount(ctx, store)
		if err != nil {
			return nil, err
		}
		plugLine := models.JournalLine{
			AccountId:   plug.ID,
			Description: "Opening balance difference",
		}
		if difference.IsPositive() {
			plugLine.Credit = difference
		} else {
			plugLine.Debit = difference.Abs()
		}
		lines = append(lines, plugLine)
		notes = fmt.Sprintf("%s (difference of %s booked to %s)", notes, difference.Abs().StringFixed(2), plug.Name)
		p.logger.WithFields(logrus.Fields{
			"mutation_id": m.ID,
			"difference":  difference.StringFixed(2),
		}).Warn("opening balance does not balance, plugged into temporary differences")
	}

	if len(lines) < 2 {
		return nil, nil
	}

	mutationType := int(m.Type)
	entry := &models.JournalEntry{
		EntryDate:               m.Date,
		Notes:                   notes,
		ReferenceNumber:         m.EntryNumber,
		CostCenterId:            p.costCenterId,
		EboekhoudenMutationNr:   mutationNr,
		EboekhoudenMutationType: &mutationType,
		Lines:                   lines,
	}
	if err := store.CreateJournalEntry(ctx, entry); err != nil {
		return nil, err
	}
	return &Document{Kind: DocumentKindJournalEntry, ID: entry.ID}, nil
}

// attachInternalParty puts the company's internal party on opening receivable
// and payable positions. The opening mutation never names a relation, yet the
// sub-administration accounts require one.
func (p *OpeningBalanceProcessor) attachInternalParty(ctx context.Context, store Store, line *models.JournalLine, account *models.Account) error {
	switch account.DetailType {
	case models.AccountDetailTypeAccountsReceivable:
		customer, err := p.parties.InternalCustomer(ctx, store)
		if err != nil {
			return err
		}
		line.PartyType = models.PartyTypeCustomer
		line.PartyId = customer.ID
	case models.AccountDetailTypeAccountsPayable:
		supplier, err := p.parties.InternalSupplier(ctx, store)
		if err != nil {
			return err
		}
		line.PartyType = models.PartyTypeSupplier
		line.PartyId = supplier.ID
	}
	return nil
}
