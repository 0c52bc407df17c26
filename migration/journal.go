package migration

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"bitbucket.org/mmdatafocus/boekhouden_backend/eboekhouden"
	"bitbucket.org/mmdatafocus/boekhouden_backend/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// errStockRow marks a line that hits a stock account. Stock movements need
// quantity and valuation data the external mutation does not carry, so they
// fail hard instead of producing a wrong valuation.
var errStockRow = errors.New("row books against a stock account, cannot migrate without valuation data")

// MemorialProcessor books memorial mutations (type 7) and the generic entry
// types 8 through 10 as journal entries. Every row is paired against the
// mutation's main ledger, so the entry balances by construction and rows are
// never netted against each other.
type MemorialProcessor struct {
	ledgers      *LedgerResolver
	parties      *PartyResolver
	items        *ItemResolver
	costCenterId int
	logger       *logrus.Logger
}

func NewMemorialProcessor(ledgers *LedgerResolver, parties *PartyResolver, items *ItemResolver, costCenterId int, logger *logrus.Logger) *MemorialProcessor {
	return &MemorialProcessor{ledgers: ledgers, parties: parties, items: items, costCenterId: costCenterId, logger: logger}
}

func (p *MemorialProcessor) Name() string { return "memorial" }

func (p *MemorialProcessor) CanProcess(m *eboekhouden.Mutation) bool {
	switch m.Type {
	case eboekhouden.MutationTypeMemorial,
		eboekhouden.MutationTypeBankImport,
		eboekhouden.MutationTypeManualEntry,
		eboekhouden.MutationTypeStockMutation:
		return true
	}
	return false
}

func (p *MemorialProcessor) Process(ctx context.Context, store Store, m *eboekhouden.Mutation) (*Document, error) {
	mutationNr := strconv.Itoa(m.ID)

	exists, err := store.JournalEntryExists(ctx, mutationNr)
	if err != nil {
		return nil, err
	}
	if !exists && m.Type == eboekhouden.MutationTypeMemorial {
		// A previous run may have reclassified this memorial as a debit note.
		exists, err = store.PurchaseInvoiceExists(ctx, mutationNr)
		if err != nil {
			return nil, err
		}
	}
	if exists {
		return nil, nil
	}

	if m.EffectiveAmount().IsZero() && len(m.Rows) == 0 {
		return nil, nil
	}

	main, err := p.mainAccount(ctx, store, m)
	if err != nil {
		return nil, err
	}
	if main.Account.DetailType == models.AccountDetailTypeStock {
		return nil, fmt.Errorf("main ledger %q: %w", main.Account.Name, errStockRow)
	}

	if reclassified, doc, err := p.reclassifyDebitNote(ctx, store, m, mutationNr, main); reclassified || err != nil {
		return doc, err
	}

	overrides, err := store.DirectionOverrides(ctx)
	if err != nil {
		return nil, err
	}

	if len(m.Rows) == 0 {
		return p.rowlessEntry(ctx, store, m, mutationNr, main, overrides)
	}

	var lines []models.JournalLine
	for _, row := range m.Rows {
		amount := row.Amount.Abs()
		if amount.IsZero() {
			continue
		}
		resolution, err := p.ledgers.Resolve(ctx, store, row.LedgerId)
		if err != nil {
			return nil, fmt.Errorf("resolving ledger %d: %w", row.LedgerId, err)
		}
		if resolution.Account.DetailType == models.AccountDetailTypeStock {
			return nil, fmt.Errorf("ledger %d (%s): %w", row.LedgerId, resolution.Account.Name, errStockRow)
		}

		category, err := p.ledgers.Category(ctx, row.LedgerId)
		if err != nil {
			return nil, err
		}
		debitIncrease := ShouldDebitIncrease(category, row.LedgerId, overrides)

		description := row.Description
		if description == "" {
			description = m.Description
		}

		rowLine := models.JournalLine{AccountId: resolution.Account.ID, Description: description}
		mainLine := models.JournalLine{AccountId: main.Account.ID, Description: description}
		if row.Amount.IsPositive() == debitIncrease {
			rowLine.Debit = amount
			mainLine.Credit = amount
		} else {
			rowLine.Credit = amount
			mainLine.Debit = amount
		}
		if err := p.attachParty(ctx, store, m, &rowLine, resolution.Account); err != nil {
			return nil, err
		}
		if err := p.attachParty(ctx, store, m, &mainLine, main.Account); err != nil {
			return nil, err
		}
		lines = append(lines, rowLine, mainLine)
	}

	if len(lines) == 0 {
		return nil, nil
	}
	return p.createEntry(ctx, store, m, mutationNr, lines)
}

func (p *MemorialProcessor) mainAccount(ctx context.Context, store Store, m *eboekhouden.Mutation) (*LedgerResolution, error) {
	if m.LedgerId == nil {
		p.logger.WithField("mutation_id", m.ID).Warn("memorial without main ledger, booking against suspense")
		account, err := p.ledgers.suspenseAccount(ctx, store)
		if err != nil {
			return nil, err
		}
		return &LedgerResolution{Account: account, Source: ResolvedViaSuspense}, nil
	}
	resolution, err := p.ledgers.Resolve(ctx, store, *m.LedgerId)
	if err != nil {
		return nil, fmt.Errorf("resolving main ledger %d: %w", *m.LedgerId, err)
	}
	return resolution, nil
}

// reclassifyDebitNote turns a single-row memorial against accounts payable
// with a known relation into a purchase return. Bookkeepers use this memorial
// shape for supplier debit notes, and a return document keeps the supplier's
// open-item administration usable.
func (p *MemorialProcessor) reclassifyDebitNote(ctx context.Context, store Store, m *eboekhouden.Mutation, mutationNr string, main *LedgerResolution) (bool, *Document, error) {
	if m.Type != eboekhouden.MutationTypeMemorial || len(m.Rows) != 1 || m.RelationId == nil {
		return false, nil, nil
	}
	row := m.Rows[0]
	if row.Amount.IsZero() {
		return false, nil, nil
	}
	resolution, err := p.ledgers.Resolve(ctx, store, row.LedgerId)
	if err != nil {
		return false, nil, fmt.Errorf("resolving ledger %d: %w", row.LedgerId, err)
	}
	if resolution.Account.DetailType != models.AccountDetailTypeAccountsPayable {
		return false, nil, nil
	}

	supplier, err := p.parties.ResolveSupplier(ctx, store, m.RelationId, m.Description)
	if err != nil {
		return false, nil, fmt.Errorf("resolving supplier: %w", err)
	}
	item, err := p.items.GetOrCreateItem(ctx, store, main.Account, main.Account.Code, models.TransactionSidePurchase, m.Description)
	if err != nil {
		return false, nil, err
	}

	isReturn := true
	invoice := &models.PurchaseInvoice{
		SupplierId:               supplier.ID,
		InvoiceDate:              m.Date,
		PayableAccountId:         resolution.Account.ID,
		Remarks:                  m.Description,
		IsReturn:                 &isReturn,
		EboekhoudenMutationNr:    mutationNr,
		EboekhoudenInvoiceNumber: m.InvoiceNumber,
		Details: []models.PurchaseInvoiceDetail{{
			ItemId:           item.ID,
			Name:             item.Name,
			Description:      m.Description,
			Qty:              decimal.NewFromInt(1),
			Rate:             row.Amount.Abs(),
			ExpenseAccountId: main.Account.ID,
		}},
	}
	if err := store.CreatePurchaseInvoice(ctx, invoice); err != nil {
		return false, nil, err
	}
	p.logger.WithFields(logrus.Fields{
		"mutation_id": m.ID,
		"supplier":    supplier.Name,
	}).Info("memorial reclassified as purchase return")
	return true, &Document{Kind: DocumentKindPurchaseInvoice, ID: invoice.ID}, nil
}

// rowlessEntry books a memorial without rows as a two-line entry between the
// main ledger and suspense, so the amount stays visible for manual review.
func (p *MemorialProcessor) rowlessEntry(ctx context.Context, store Store, m *eboekhouden.Mutation, mutationNr string, main *LedgerResolution, overrides map[int]bool) (*Document, error) {
	amount := m.EffectiveAmount()
	suspense, err := p.ledgers.suspenseAccount(ctx, store)
	if err != nil {
		return nil, err
	}
	if suspense.ID == main.Account.ID {
		return nil, nil
	}

	debitIncrease := true
	if m.LedgerId != nil {
		category, err := p.ledgers.Category(ctx, *m.LedgerId)
		if err != nil {
			return nil, err
		}
		debitIncrease = ShouldDebitIncrease(category, *m.LedgerId, overrides)
	}

	mainLine := models.JournalLine{AccountId: main.Account.ID, Description: m.Description}
	suspenseLine := models.JournalLine{AccountId: suspense.ID, Description: m.Description}
	if amount.IsPositive() == debitIncrease {
		mainLine.Debit = amount.Abs()
		suspenseLine.Credit = amount.Abs()
	} else {
		mainLine.Credit = amount.Abs()
		suspenseLine.Debit = amount.Abs()
	}
	if err := p.attachParty(ctx, store, m, &mainLine, main.Account); err != nil {
		return nil, err
	}
	return p.createEntry(ctx, store, m, mutationNr, []models.JournalLine{mainLine, suspenseLine})
}

// attachParty satisfies the receivable/payable party requirement. Memorial
// lines against the sub-administration accounts rarely name a relation, so the
// company's own internal party carries them.
func (p *MemorialProcessor) attachParty(ctx context.Context, store Store, m *eboekhouden.Mutation, line *models.JournalLine, account *models.Account) error {
	switch account.DetailType {
	case models.AccountDetailTypeAccountsReceivable:
		if m.RelationId != nil {
			customer, err := p.parties.ResolveCustomer(ctx, store, m.RelationId, m.Description)
			if err != nil {
				return err
			}
			line.PartyType = models.PartyTypeCustomer
			line.PartyId = customer.ID
			return nil
		}
		customer, err := p.parties.InternalCustomer(ctx, store)
		if err != nil {
			return err
		}
		line.PartyType = models.PartyTypeCustomer
		line.PartyId = customer.ID
	case models.AccountDetailTypeAccountsPayable:
		if m.RelationId != nil {
			supplier, err := p.parties.ResolveSupplier(ctx, store, m.RelationId, m.Description)
			if err != nil {
				return err
			}
			line.PartyType = models.PartyTypeSupplier
			line.PartyId = supplier.ID
			return nil
		}
		supplier, err := p.parties.InternalSupplier(ctx, store)
		if err != nil {
			return err
		}
		line.PartyType = models.PartyTypeSupplier
		line.PartyId = supplier.ID
	}
	return nil
}

func (p *MemorialProcessor) createEntry(ctx context.Context, store Store, m *eboekhouden.Mutation, mutationNr string, lines []models.JournalLine) (*Document, error) {
	mutationType := int(m.Type)
	entry := &models.JournalEntry{
		EntryDate:               m.Date,
		Notes:                   m.Description,
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
