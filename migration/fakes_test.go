package migration

import (
	"context"
	"errors"
	"io"
	"strconv"

	"bitbucket.org/mmdatafocus/boekhouden_backend/eboekhouden"
	"bitbucket.org/mmdatafocus/boekhouden_backend/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

// fakeStore is an in-memory Store. Lookup methods mirror the (nil, nil) miss
// contract of the gorm implementation, and document creation enforces the same
// validation so a test cannot pass with an entry production would reject.
type fakeStore struct {
	nextId int

	accounts         []*models.Account
	mappings         map[string]*models.LedgerMapping
	customers        []*models.Customer
	suppliers        []*models.Supplier
	items            []*models.Item
	itemGroups       map[string]*models.ItemGroup
	costCenters      map[int]*models.CostCenter
	journalEntries   []*models.JournalEntry
	salesInvoices    []*models.SalesInvoice
	purchaseInvoices []*models.PurchaseInvoice
	payments         []*models.PaymentEntry
	overrides        map[int]bool
	cache            []*models.MutationCacheEntry
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		mappings:    make(map[string]*models.LedgerMapping),
		itemGroups:  make(map[string]*models.ItemGroup),
		costCenters: make(map[int]*models.CostCenter),
		overrides:   make(map[int]bool),
	}
}

func (s *fakeStore) nextID() int {
	s.nextId++
	return s.nextId
}

func (s *fakeStore) seedAccount(detailType models.AccountDetailType, mainType models.AccountMainType, name string, code string) *models.Account {
	account := &models.Account{
		ID:         s.nextID(),
		DetailType: detailType,
		MainType:   mainType,
		Name:       name,
		Code:       code,
	}
	s.accounts = append(s.accounts, account)
	return account
}

func (s *fakeStore) Transaction(ctx context.Context, fn func(Store) error) error {
	return fn(s)
}

func (s *fakeStore) LedgerMapping(ctx context.Context, ledgerId string) (*models.LedgerMapping, error) {
	return s.mappings[ledgerId], nil
}

func (s *fakeStore) SaveLedgerMapping(ctx context.Context, mapping *models.LedgerMapping) error {
	s.mappings[mapping.LedgerId] = mapping
	return nil
}

func (s *fakeStore) AccountById(ctx context.Context, id int) (*models.Account, error) {
	for _, account := range s.accounts {
		if account.ID == id {
			return account, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) AccountByCode(ctx context.Context, code string) (*models.Account, error) {
	for _, account := range s.accounts {
		if account.Code == code {
			return account, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) AccountByName(ctx context.Context, name string) (*models.Account, error) {
	for _, account := range s.accounts {
		if account.Name == name {
			return account, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) FirstAccountByDetailType(ctx context.Context, detailType models.AccountDetailType) (*models.Account, error) {
	for _, account := range s.accounts {
		if account.DetailType == detailType {
			return account, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) CreateAccount(ctx context.Context, account *models.Account) error {
	account.ID = s.nextID()
	s.accounts = append(s.accounts, account)
	return nil
}

func (s *fakeStore) CustomerByRelationId(ctx context.Context, relationId int) (*models.Customer, error) {
	for _, customer := range s.customers {
		if customer.EboekhoudenRelationId != nil && *customer.EboekhoudenRelationId == relationId {
			return customer, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) CustomerByName(ctx context.Context, name string) (*models.Customer, error) {
	for _, customer := range s.customers {
		if customer.Name == name {
			return customer, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) CreateCustomer(ctx context.Context, input *models.NewCustomer) (*models.Customer, error) {
	customer := &models.Customer{
		ID:                    s.nextID(),
		Name:                  input.Name,
		Email:                 input.Email,
		Phone:                 input.Phone,
		Address:               input.Address,
		VatNumber:             input.VatNumber,
		EboekhoudenRelationId: input.EboekhoudenRelationId,
		IsInternal:            &input.IsInternal,
		NeedsReview:           &input.NeedsReview,
	}
	s.customers = append(s.customers, customer)
	return customer, nil
}

func (s *fakeStore) SupplierByRelationId(ctx context.Context, relationId int) (*models.Supplier, error) {
	for _, supplier := range s.suppliers {
		if supplier.EboekhoudenRelationId != nil && *supplier.EboekhoudenRelationId == relationId {
			return supplier, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) SupplierByName(ctx context.Context, name string) (*models.Supplier, error) {
	for _, supplier := range s.suppliers {
		if supplier.Name == name {
			return supplier, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) CreateSupplier(ctx context.Context, input *models.NewSupplier) (*models.Supplier, error) {
	supplier := &models.Supplier{
		ID:                    s.nextID(),
		Name:                  input.Name,
		Email:                 input.Email,
		Phone:                 input.Phone,
		Address:               input.Address,
		VatNumber:             input.VatNumber,
		EboekhoudenRelationId: input.EboekhoudenRelationId,
		IsInternal:            &input.IsInternal,
		NeedsReview:           &input.NeedsReview,
	}
	s.suppliers = append(s.suppliers, supplier)
	return supplier, nil
}

func (s *fakeStore) ItemByAccountCode(ctx context.Context, code string, side models.TransactionSide) (*models.Item, error) {
	for _, item := range s.items {
		if item.EboekhoudenAccountCode != code {
			continue
		}
		if item.TransactionSide == side || item.TransactionSide == models.TransactionSideBoth {
			return item, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) ItemByName(ctx context.Context, name string) (*models.Item, error) {
	for _, item := range s.items {
		if item.Name == name {
			return item, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) CreateItem(ctx context.Context, item *models.Item) error {
	item.ID = s.nextID()
	s.items = append(s.items, item)
	return nil
}

func (s *fakeStore) ItemGroupByName(ctx context.Context, name string) (*models.ItemGroup, error) {
	if group, ok := s.itemGroups[name]; ok {
		return group, nil
	}
	group := &models.ItemGroup{ID: s.nextID(), Name: name}
	s.itemGroups[name] = group
	return group, nil
}

func (s *fakeStore) UpsertCostCenter(ctx context.Context, externalId int, name string) (*models.CostCenter, error) {
	if cc, ok := s.costCenters[externalId]; ok {
		cc.Name = name
		return cc, nil
	}
	externalCopy := externalId
	cc := &models.CostCenter{ID: s.nextID(), Name: name, EboekhoudenId: &externalCopy}
	s.costCenters[externalId] = cc
	return cc, nil
}

func (s *fakeStore) JournalEntryExists(ctx context.Context, mutationNr string) (bool, error) {
	for _, entry := range s.journalEntries {
		if entry.EboekhoudenMutationNr == mutationNr {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) SalesInvoiceExists(ctx context.Context, mutationNr string) (bool, error) {
	for _, invoice := range s.salesInvoices {
		if invoice.EboekhoudenMutationNr == mutationNr {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) PurchaseInvoiceExists(ctx context.Context, mutationNr string) (bool, error) {
	for _, invoice := range s.purchaseInvoices {
		if invoice.EboekhoudenMutationNr == mutationNr {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) PaymentEntryExists(ctx context.Context, mutationNr string) (bool, error) {
	for _, payment := range s.payments {
		if payment.EboekhoudenMutationNr == mutationNr {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) InvoiceNumberExists(ctx context.Context, invoiceNumber string) (bool, error) {
	for _, invoice := range s.salesInvoices {
		if invoice.EboekhoudenInvoiceNumber == invoiceNumber {
			return true, nil
		}
	}
	for _, invoice := range s.purchaseInvoices {
		if invoice.EboekhoudenInvoiceNumber == invoiceNumber {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) CreateJournalEntry(ctx context.Context, entry *models.JournalEntry) error {
	kindOf := func(accountId int) (models.AccountDetailType, bool) {
		for _, account := range s.accounts {
			if account.ID == accountId {
				return account.DetailType, true
			}
		}
		return "", false
	}
	if err := entry.Validate(kindOf); err != nil {
		return err
	}
	entry.ID = s.nextID()
	entry.Status = models.DocumentStatusSubmitted
	s.journalEntries = append(s.journalEntries, entry)
	return nil
}

func (s *fakeStore) CreateSalesInvoice(ctx context.Context, invoice *models.SalesInvoice) error {
	invoice.ID = s.nextID()
	invoice.Status = models.DocumentStatusSubmitted
	s.salesInvoices = append(s.salesInvoices, invoice)
	return nil
}

func (s *fakeStore) CreatePurchaseInvoice(ctx context.Context, invoice *models.PurchaseInvoice) error {
	invoice.ID = s.nextID()
	invoice.Status = models.DocumentStatusSubmitted
	s.purchaseInvoices = append(s.purchaseInvoices, invoice)
	return nil
}

func (s *fakeStore) CreatePaymentEntry(ctx context.Context, payment *models.PaymentEntry) error {
	if payment.PaidFromAccountId == 0 || payment.PaidToAccountId == 0 {
		return errors.New("both paid-from and paid-to accounts are required")
	}
	if payment.PaidFromAccountId == payment.PaidToAccountId {
		return errors.New("paid-from and paid-to accounts must differ")
	}
	if !payment.Amount.IsPositive() {
		return errors.New("payment amount must be positive")
	}
	payment.ID = s.nextID()
	payment.Status = models.DocumentStatusSubmitted
	s.payments = append(s.payments, payment)
	return nil
}

func (s *fakeStore) DirectionOverrides(ctx context.Context) (map[int]bool, error) {
	return s.overrides, nil
}

func (s *fakeStore) CacheMutation(ctx context.Context, entry *models.MutationCacheEntry) error {
	for _, existing := range s.cache {
		if existing.MutationId == entry.MutationId {
			return nil
		}
	}
	entry.ID = s.nextID()
	s.cache = append(s.cache, entry)
	return nil
}

func (s *fakeStore) CachedMutationIds(ctx context.Context) (map[string]struct{}, error) {
	ids := make(map[string]struct{}, len(s.cache))
	for _, entry := range s.cache {
		ids[entry.MutationId] = struct{}{}
	}
	return ids, nil
}

func (s *fakeStore) CachedMutationsByType(ctx context.Context, mutationType int) ([]*models.MutationCacheEntry, error) {
	var entries []*models.MutationCacheEntry
	for _, entry := range s.cache {
		if entry.MutationType == mutationType {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

func (s *fakeStore) CountCachedMutations(ctx context.Context) (int64, error) {
	return int64(len(s.cache)), nil
}

func (s *fakeStore) ClearMutationCache(ctx context.Context) error {
	s.cache = nil
	return nil
}

// fakeAPI serves canned external data and counts detail fetches so tests can
// assert that cached ids are never re-fetched.
type fakeAPI struct {
	ledgers     map[int]*eboekhouden.Ledger
	relations   map[int]*eboekhouden.Relation
	mutations   map[int]*eboekhouden.Mutation
	costCenters []*eboekhouden.CostCenter
	idRange     eboekhouden.IDRange

	detailCalls int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		ledgers:   make(map[int]*eboekhouden.Ledger),
		relations: make(map[int]*eboekhouden.Relation),
		mutations: make(map[int]*eboekhouden.Mutation),
	}
}

func (a *fakeAPI) addLedger(id int, code string, description string, category string) {
	a.ledgers[id] = &eboekhouden.Ledger{ID: id, Code: code, Description: description, Category: category}
}

func (a *fakeAPI) FetchMutationDetail(ctx context.Context, mutationId int) (*eboekhouden.Mutation, error) {
	a.detailCalls++
	if m, ok := a.mutations[mutationId]; ok {
		return m, nil
	}
	return nil, eboekhouden.ErrMutationNotFound
}

func (a *fakeAPI) FetchMutationsByType(ctx context.Context, mutationType eboekhouden.MutationType) ([]*eboekhouden.Mutation, error) {
	var out []*eboekhouden.Mutation
	for _, m := range a.mutations {
		if m.Type == mutationType {
			out = append(out, m)
		}
	}
	return out, nil
}

func (a *fakeAPI) FetchLedgers(ctx context.Context) ([]*eboekhouden.Ledger, error) {
	var out []*eboekhouden.Ledger
	for _, ledger := range a.ledgers {
		out = append(out, ledger)
	}
	return out, nil
}

func (a *fakeAPI) FetchLedgerDetail(ctx context.Context, ledgerId int) (*eboekhouden.Ledger, error) {
	return a.ledgers[ledgerId], nil
}

func (a *fakeAPI) FetchRelations(ctx context.Context) ([]*eboekhouden.Relation, error) {
	var out []*eboekhouden.Relation
	for _, relation := range a.relations {
		out = append(out, relation)
	}
	return out, nil
}

func (a *fakeAPI) FetchRelationDetail(ctx context.Context, relationId int) (*eboekhouden.Relation, error) {
	return a.relations[relationId], nil
}

func (a *fakeAPI) FetchCostCenters(ctx context.Context) ([]*eboekhouden.CostCenter, error) {
	return a.costCenters, nil
}

func (a *fakeAPI) EstimateIDRange(ctx context.Context) (eboekhouden.IDRange, error) {
	return a.idRange, nil
}

var _ APIClient = (*fakeAPI)(nil)
var _ Store = (*fakeStore)(nil)

func intPtr(v int) *int { return &v }

func mutationIdStr(m *eboekhouden.Mutation) string { return strconv.Itoa(m.ID) }
