package migration

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"bitbucket.org/mmdatafocus/boekhouden_backend/eboekhouden"
	"bitbucket.org/mmdatafocus/boekhouden_backend/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const defaultPaymentTermDays = 30

// isCreditNote detects credit-note semantics: a negative total, or a zero
// header total whose rows are all negative.
func isCreditNote(m *eboekhouden.Mutation) bool {
	total := m.EffectiveAmount()
	if total.IsNegative() {
		return true
	}
	if total.IsZero() && len(m.Rows) > 0 {
		for _, row := range m.Rows {
			if !row.Amount.IsNegative() {
				return false
			}
		}
		return true
	}
	return false
}

func invoiceDueDate(m *eboekhouden.Mutation) time.Time {
	days := m.TermOfPayment
	if days <= 0 {
		days = defaultPaymentTermDays
	}
	return m.Date.AddDate(0, 0, days)
}

// InvoiceProcessor builds sales and purchase invoices from mutation types
// 1 and 2.
type InvoiceProcessor struct {
	ledgers *LedgerResolver
	parties *PartyResolver
	items   *ItemResolver
	logger  *logrus.Logger
}

func NewInvoiceProcessor(ledgers *LedgerResolver, parties *PartyResolver, items *ItemResolver, logger *logrus.Logger) *InvoiceProcessor {
	return &InvoiceProcessor{ledgers: ledgers, parties: parties, items: items, logger: logger}
}

func (p *InvoiceProcessor) Name() string { return "invoice" }

func (p *InvoiceProcessor) CanProcess(m *eboekhouden.Mutation) bool {
	return m.Type == eboekhouden.MutationTypePurchaseInvoice || m.Type == eboekhouden.MutationTypeSalesInvoice
}

func (p *InvoiceProcessor) Process(ctx context.Context, store Store, m *eboekhouden.Mutation) (*Document, error) {
	mutationNr := strconv.Itoa(m.ID)
	sales := m.Type == eboekhouden.MutationTypeSalesInvoice

	var exists bool
	var err error
	if sales {
		exists, err = store.SalesInvoiceExists(ctx, mutationNr)
	} else {
		exists, err = store.PurchaseInvoiceExists(ctx, mutationNr)
	}
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, nil
	}

	// The invoice number may already be taken by a document of the other
	// type; numbers must stay unique across both tables.
	if m.InvoiceNumber != "" {
		taken, err := store.InvoiceNumberExists(ctx, m.InvoiceNumber)
		if err != nil {
			return nil, err
		}
		if taken {
			p.logger.WithFields(logrus.Fields{
				"mutation_id":    m.ID,
				"invoice_number": m.InvoiceNumber,
			}).Info("invoice number already imported, skipping")
			return nil, nil
		}
	}

	if m.EffectiveAmount().IsZero() && len(m.Rows) == 0 {
		return nil, nil
	}

	isReturn := isCreditNote(m)
	rows := m.Rows
	if len(rows) == 0 {
		ledgerId := 0
		if m.LedgerId != nil {
			ledgerId = *m.LedgerId
		}
		rows = []eboekhouden.MutationRow{{
			LedgerId:    ledgerId,
			Amount:      m.EffectiveAmount(),
			Description: m.Description,
		}}
	}

	if sales {
		return p.processSales(ctx, store, m, mutationNr, rows, isReturn)
	}
	return p.processPurchase(ctx, store, m, mutationNr, rows, isReturn)
}

// lineRate normalizes a row amount for an invoice line: credit notes store
// positive amounts behind the is_return flag, regular invoices keep the sign
// so discount rows survive.
func lineRate(amount decimal.Decimal, isReturn bool) decimal.Decimal {
	if isReturn {
		return amount.Abs()
	}
	return amount
}

func (p *InvoiceProcessor) processSales(ctx context.Context, store Store, m *eboekhouden.Mutation, mutationNr string, rows []eboekhouden.MutationRow, isReturn bool) (*Document, error) {
	customer, err := p.parties.ResolveCustomer(ctx, store, m.RelationId, m.Description)
	if err != nil {
		return nil, fmt.Errorf("resolving customer: %w", err)
	}

	receivable, err := receivableAccount(ctx, store)
	if err != nil {
		return nil, err
	}

	var details []models.SalesInvoiceDetail
	for _, row := range rows {
		resolution, err := p.ledgers.Resolve(ctx, store, row.LedgerId)
		if err != nil {
			return nil, fmt.Errorf("resolving ledger %d: %w", row.LedgerId, err)
		}
		description := row.Description
		if description == "" {
			description = m.Description
		}
		item, err := p.items.GetOrCreateItem(ctx, store, resolution.Account, resolution.Account.Code, models.TransactionSideSales, description)
		if err != nil {
			return nil, fmt.Errorf("resolving item for ledger %d: %w", row.LedgerId, err)
		}
		details = append(details, models.SalesInvoiceDetail{
			ItemId:          item.ID,
			Name:            item.Name,
			Description:     description,
			Qty:             decimal.NewFromInt(1),
			Rate:            lineRate(row.Amount, isReturn),
			IncomeAccountId: resolution.Account.ID,
		})
	}

	dueDate := invoiceDueDate(m)
	invoice := &models.SalesInvoice{
		CustomerId:               customer.ID,
		InvoiceDate:              m.Date,
		DueDate:                  &dueDate,
		ReceivableAccountId:      receivable.ID,
		Remarks:                  m.Description,
		IsReturn:                 &isReturn,
		EboekhoudenMutationNr:    mutationNr,
		EboekhoudenInvoiceNumber: m.InvoiceNumber,
		Details:                  details,
	}
	if err := store.CreateSalesInvoice(ctx, invoice); err != nil {
		return nil, err
	}
	return &Document{Kind: DocumentKindSalesInvoice, ID: invoice.ID}, nil
}

func (p *InvoiceProcessor) processPurchase(ctx context.Context, store Store, m *eboekhouden.Mutation, mutationNr string, rows []eboekhouden.MutationRow, isReturn bool) (*Document, error) {
	supplier, err := p.parties.ResolveSupplier(ctx, store, m.RelationId, m.Description)
	if err != nil {
		return nil, fmt.Errorf("resolving supplier: %w", err)
	}

	payable, err := payableAccount(ctx, store)
	if err != nil {
		return nil, err
	}

	var details []models.PurchaseInvoiceDetail
	for _, row := range rows {
		resolution, err := p.ledgers.Resolve(ctx, store, row.LedgerId)
		if err != nil {
			return nil, fmt.Errorf("resolving ledger %d: %w", row.LedgerId, err)
		}
		description := row.Description
		if description == "" {
			description = m.Description
		}
		item, err := p.items.GetOrCreateItem(ctx, store, resolution.Account, resolution.Account.Code, models.TransactionSidePurchase, description)
		if err != nil {
			return nil, fmt.Errorf("resolving item for ledger %d: %w", row.LedgerId, err)
		}
		details = append(details, models.PurchaseInvoiceDetail{
			ItemId:           item.ID,
			Name:             item.Name,
			Description:      description,
			Qty:              decimal.NewFromInt(1),
			Rate:             lineRate(row.Amount, isReturn),
			ExpenseAccountId: resolution.Account.ID,
		})
	}

	dueDate := invoiceDueDate(m)
	invoice := &models.PurchaseInvoice{
		SupplierId:               supplier.ID,
		InvoiceDate:              m.Date,
		DueDate:                  &dueDate,
		PayableAccountId:         payable.ID,
		Remarks:                  m.Description,
		IsReturn:                 &isReturn,
		EboekhoudenMutationNr:    mutationNr,
		EboekhoudenInvoiceNumber: m.InvoiceNumber,
		Details:                  details,
	}
	if err := store.CreatePurchaseInvoice(ctx, invoice); err != nil {
		return nil, err
	}
	return &Document{Kind: DocumentKindPurchaseInvoice, ID: invoice.ID}, nil
}
