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

// PaymentProcessor handles customer and supplier payments (types 3 and 4)
// and internal money transfers (types 5 and 6).
type PaymentProcessor struct {
	ledgers            *LedgerResolver
	parties            *PartyResolver
	defaultCashAccount string
	costCenterId       int
	logger             *logrus.Logger
}

func NewPaymentProcessor(ledgers *LedgerResolver, parties *PartyResolver, defaultCashAccount string, costCenterId int, logger *logrus.Logger) *PaymentProcessor {
	return &PaymentProcessor{
		ledgers:            ledgers,
		parties:            parties,
		defaultCashAccount: defaultCashAccount,
		costCenterId:       costCenterId,
		logger:             logger,
	}
}

func (p *PaymentProcessor) Name() string { return "payment" }

func (p *PaymentProcessor) CanProcess(m *eboekhouden.Mutation) bool {
	switch m.Type {
	case eboekhouden.MutationTypeCustomerPayment,
		eboekhouden.MutationTypeSupplierPayment,
		eboekhouden.MutationTypeMoneyReceived,
		eboekhouden.MutationTypeMoneyPaid:
		return true
	}
	return false
}

func (p *PaymentProcessor) Process(ctx context.Context, store Store, m *eboekhouden.Mutation) (*Document, error) {
	mutationNr := strconv.Itoa(m.ID)

	exists, err := store.PaymentEntryExists(ctx, mutationNr)
	if err != nil {
		return nil, err
	}
	if !exists {
		// Multi-row payments and transfers land in the journal, so both
		// tables guard against reimport.
		exists, err = store.JournalEntryExists(ctx, mutationNr)
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

	bank, err := p.bankAccount(ctx, store, m)
	if err != nil {
		return nil, err
	}

	switch m.Type {
	case eboekhouden.MutationTypeCustomerPayment:
		return p.processCustomerPayment(ctx, store, m, mutationNr, bank)
	case eboekhouden.MutationTypeSupplierPayment:
		return p.processSupplierPayment(ctx, store, m, mutationNr, bank)
	default:
		return p.processTransfer(ctx, store, m, mutationNr, bank)
	}
}

func (p *PaymentProcessor) isTransfer(m *eboekhouden.Mutation) bool {
	return m.Type == eboekhouden.MutationTypeMoneyReceived || m.Type == eboekhouden.MutationTypeMoneyPaid
}

// bankAccount picks the cash/bank side of the payment. The mutation's own
// ledger wins when it resolves to a cash or bank account; anything else means
// the header pointed at a non-financial ledger and the fallback chain decides.
func (p *PaymentProcessor) bankAccount(ctx context.Context, store Store, m *eboekhouden.Mutation) (*models.Account, error) {
	if m.LedgerId != nil {
		resolution, err := p.ledgers.Resolve(ctx, store, *m.LedgerId)
		if err != nil {
			return nil, fmt.Errorf("resolving payment ledger %d: %w", *m.LedgerId, err)
		}
		if isCashOrBank(resolution.Account.DetailType) {
			return resolution.Account, nil
		}
		p.logger.WithFields(logrus.Fields{
			"mutation_id": m.ID,
			"ledger_id":   *m.LedgerId,
			"account":     resolution.Account.Name,
		}).Warn("payment ledger is not a cash or bank account, using fallback")
	}
	return cashOrBankAccount(ctx, store, p.defaultCashAccount)
}

func (p *PaymentProcessor) processCustomerPayment(ctx context.Context, store Store, m *eboekhouden.Mutation, mutationNr string, bank *models.Account) (*Document, error) {
	customer, err := p.parties.ResolveCustomer(ctx, store, m.RelationId, m.Description)
	if err != nil {
		return nil, fmt.Errorf("resolving customer: %w", err)
	}
	if len(m.Rows) > 1 {
		// Collapsing several rows into one payment amount would lose the
		// per-ledger allocation, so the rows become journal lines instead.
		return p.multiRowJournal(ctx, store, m, mutationNr, bank, true, models.PartyTypeCustomer, customer.ID)
	}
	if m.EffectiveAmount().IsZero() {
		p.logger.WithField("mutation_id", m.ID).Warn("payment nets to zero, skipping")
		return nil, nil
	}
	receivable, err := receivableAccount(ctx, store)
	if err != nil {
		return nil, err
	}

	mutationType := int(m.Type)
	payment := &models.PaymentEntry{
		PaymentType:             models.PaymentTypeReceive,
		PaymentDate:             m.Date,
		PartyType:               models.PartyTypeCustomer,
		PartyId:                 customer.ID,
		PaidFromAccountId:       receivable.ID,
		PaidToAccountId:         bank.ID,
		Amount:                  m.EffectiveAmount().Abs(),
		ReferenceNumber:         m.InvoiceNumber,
		Remarks:                 m.Description,
		EboekhoudenMutationNr:   mutationNr,
		EboekhoudenMutationType: &mutationType,
	}
	if err := store.CreatePaymentEntry(ctx, payment); err != nil {
		return nil, err
	}
	return &Document{Kind: DocumentKindPaymentEntry, ID: payment.ID}, nil
}

func (p *PaymentProcessor) processSupplierPayment(ctx context.Context, store Store, m *eboekhouden.Mutation, mutationNr string, bank *models.Account) (*Document, error) {
	supplier, err := p.parties.ResolveSupplier(ctx, store, m.RelationId, m.Description)
	if err != nil {
		return nil, fmt.Errorf("resolving supplier: %w", err)
	}
	if len(m.Rows) > 1 {
		return p.multiRowJournal(ctx, store, m, mutationNr, bank, false, models.PartyTypeSupplier, supplier.ID)
	}
	if m.EffectiveAmount().IsZero() {
		p.logger.WithField("mutation_id", m.ID).Warn("payment nets to zero, skipping")
		return nil, nil
	}
	payable, err := payableAccount(ctx, store)
	if err != nil {
		return nil, err
	}

	mutationType := int(m.Type)
	payment := &models.PaymentEntry{
		PaymentType:             models.PaymentTypePay,
		PaymentDate:             m.Date,
		PartyType:               models.PartyTypeSupplier,
		PartyId:                 supplier.ID,
		PaidFromAccountId:       bank.ID,
		PaidToAccountId:         payable.ID,
		Amount:                  m.EffectiveAmount().Abs(),
		ReferenceNumber:         m.InvoiceNumber,
		Remarks:                 m.Description,
		EboekhoudenMutationNr:   mutationNr,
		EboekhoudenMutationType: &mutationType,
	}
	if err := store.CreatePaymentEntry(ctx, payment); err != nil {
		return nil, err
	}
	return &Document{Kind: DocumentKindPaymentEntry, ID: payment.ID}, nil
}

// processTransfer books a money transfer. A transfer with at most one row is a
// plain payment entry between the counter account and the bank; multiple rows
// become one balanced journal entry with the bank on one side and every row
// on the other.
func (p *PaymentProcessor) processTransfer(ctx context.Context, store Store, m *eboekhouden.Mutation, mutationNr string, bank *models.Account) (*Document, error) {
	received := m.Type == eboekhouden.MutationTypeMoneyReceived

	if len(m.Rows) > 1 {
		return p.multiRowJournal(ctx, store, m, mutationNr, bank, received, "", 0)
	}

	counter, err := p.transferCounterAccount(ctx, store, m)
	if err != nil {
		return nil, err
	}
	if counter.ID == bank.ID {
		// Same account on both sides carries no ledger effect.
		p.logger.WithFields(logrus.Fields{
			"mutation_id": m.ID,
			"account":     bank.Name,
		}).Info("transfer between identical accounts, skipping")
		return nil, nil
	}

	paidFrom, paidTo := counter, bank
	paymentType := models.PaymentTypeReceive
	if !received {
		paidFrom, paidTo = bank, counter
		paymentType = models.PaymentTypePay
	}

	mutationType := int(m.Type)
	payment := &models.PaymentEntry{
		PaymentType:             paymentType,
		PaymentDate:             m.Date,
		PaidFromAccountId:       paidFrom.ID,
		PaidToAccountId:         paidTo.ID,
		Amount:                  m.EffectiveAmount().Abs(),
		ReferenceNumber:         m.InvoiceNumber,
		Remarks:                 m.Description,
		EboekhoudenMutationNr:   mutationNr,
		EboekhoudenMutationType: &mutationType,
	}
	if err := store.CreatePaymentEntry(ctx, payment); err != nil {
		return nil, err
	}
	return &Document{Kind: DocumentKindPaymentEntry, ID: payment.ID}, nil
}

func (p *PaymentProcessor) transferCounterAccount(ctx context.Context, store Store, m *eboekhouden.Mutation) (*models.Account, error) {
	if len(m.Rows) == 1 {
		resolution, err := p.ledgers.Resolve(ctx, store, m.Rows[0].LedgerId)
		if err != nil {
			return nil, fmt.Errorf("resolving transfer ledger %d: %w", m.Rows[0].LedgerId, err)
		}
		return resolution.Account, nil
	}
	p.logger.WithField("mutation_id", m.ID).Warn("transfer without rows, booking against suspense")
	return p.ledgers.suspenseAccount(ctx, store)
}

// multiRowJournal books a multi-row payment or transfer as one journal entry.
// The bank carries the net of all rows; each row keeps its own line, with
// negative row amounts flipping to the bank's side. The party, when given,
// lands on the receivable and payable lines the sub-administration requires.
func (p *PaymentProcessor) multiRowJournal(ctx context.Context, store Store, m *eboekhouden.Mutation, mutationNr string, bank *models.Account, received bool, partyType models.PartyType, partyId int) (*Document, error) {
	net := decimal.Zero
	var lines []models.JournalLine
	for _, row := range m.Rows {
		resolution, err := p.ledgers.Resolve(ctx, store, row.LedgerId)
		if err != nil {
			return nil, fmt.Errorf("resolving transfer ledger %d: %w", row.LedgerId, err)
		}
		net = net.Add(row.Amount)

		description := row.Description
		if description == "" {
			description = m.Description
		}
		amount := row.Amount.Abs()
		if amount.IsZero() {
			continue
		}
		// Money received credits the counter accounts; money paid debits
		// them. A negative row amount reverses the row's side.
		creditRow := received == row.Amount.IsPositive()
		line := models.JournalLine{
			AccountId:   resolution.Account.ID,
			Description: description,
		}
		if creditRow {
			line.Credit = amount
		} else {
			line.Debit = amount
		}
		if partyId != 0 &&
			(resolution.Account.DetailType == models.AccountDetailTypeAccountsReceivable ||
				resolution.Account.DetailType == models.AccountDetailTypeAccountsPayable) {
			line.PartyType = partyType
			line.PartyId = partyId
		}
		lines = append(lines, line)
	}

	bankAmount := net.Abs()
	if bankAmount.IsZero() || len(lines) == 0 {
		return nil, nil
	}
	bankLine := models.JournalLine{
		AccountId:   bank.ID,
		Description: m.Description,
	}
	if received == net.IsPositive() {
		bankLine.Debit = bankAmount
	} else {
		bankLine.Credit = bankAmount
	}
	lines = append(lines, bankLine)

	mutationType := int(m.Type)
	entry := &models.JournalEntry{
		EntryDate:               m.Date,
		Notes:                   m.Description,
		ReferenceNumber:         m.InvoiceNumber,
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
