package migration

import (
	"context"
	"errors"

	"bitbucket.org/mmdatafocus/boekhouden_backend/models"
	"bitbucket.org/mmdatafocus/boekhouden_backend/utils"
	"gorm.io/gorm"
)

// Store is the persistence surface the migration engine writes through.
// The production implementation wraps gorm; tests substitute an in-memory fake.
// Lookup methods return (nil, nil) on a miss.
type Store interface {
	// Transaction runs fn against a store bound to one database transaction.
	// Each mutation is processed inside exactly one such transaction.
	Transaction(ctx context.Context, fn func(Store) error) error

	LedgerMapping(ctx context.Context, ledgerId string) (*models.LedgerMapping, error)
	SaveLedgerMapping(ctx context.Context, mapping *models.LedgerMapping) error

	AccountById(ctx context.Context, id int) (*models.Account, error)
	AccountByCode(ctx context.Context, code string) (*models.Account, error)
	AccountByName(ctx context.Context, name string) (*models.Account, error)
	FirstAccountByDetailType(ctx context.Context, detailType models.AccountDetailType) (*models.Account, error)
	CreateAccount(ctx context.Context, account *models.Account) error

	CustomerByRelationId(ctx context.Context, relationId int) (*models.Customer, error)
	CustomerByName(ctx context.Context, name string) (*models.Customer, error)
	CreateCustomer(ctx context.Context, input *models.NewCustomer) (*models.Customer, error)
	SupplierByRelationId(ctx context.Context, relationId int) (*models.Supplier, error)
	SupplierByName(ctx context.Context, name string) (*models.Supplier, error)
	CreateSupplier(ctx context.Context, input *models.NewSupplier) (*models.Supplier, error)

	ItemByAccountCode(ctx context.Context, code string, side models.TransactionSide) (*models.Item, error)
	ItemByName(ctx context.Context, name string) (*models.Item, error)
	CreateItem(ctx context.Context, item *models.Item) error
	ItemGroupByName(ctx context.Context, name string) (*models.ItemGroup, error)

	UpsertCostCenter(ctx context.Context, externalId int, name string) (*models.CostCenter, error)

	JournalEntryExists(ctx context.Context, mutationNr string) (bool, error)
	SalesInvoiceExists(ctx context.Context, mutationNr string) (bool, error)
	PurchaseInvoiceExists(ctx context.Context, mutationNr string) (bool, error)
	PaymentEntryExists(ctx context.Context, mutationNr string) (bool, error)
	InvoiceNumberExists(ctx context.Context, invoiceNumber string) (bool, error)

	CreateJournalEntry(ctx context.Context, entry *models.JournalEntry) error
	CreateSalesInvoice(ctx context.Context, invoice *models.SalesInvoice) error
	CreatePurchaseInvoice(ctx context.Context, invoice *models.PurchaseInvoice) error
	CreatePaymentEntry(ctx context.Context, payment *models.PaymentEntry) error

	DirectionOverrides(ctx context.Context) (map[int]bool, error)

	CacheMutation(ctx context.Context, entry *models.MutationCacheEntry) error
	CachedMutationIds(ctx context.Context) (map[string]struct{}, error)
	CachedMutationsByType(ctx context.Context, mutationType int) ([]*models.MutationCacheEntry, error)
	CountCachedMutations(ctx context.Context) (int64, error)
	ClearMutationCache(ctx context.Context) error
}

type gormStore struct {
	db        *gorm.DB
	companyId string
}

// NewStore binds a Store to the company and database handle.
func NewStore(db *gorm.DB, companyId string) Store {
	return &gormStore{db: db, companyId: companyId}
}

func (s *gormStore) Transaction(ctx context.Context, fn func(Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx, companyId: s.companyId})
	})
}

func (s *gormStore) LedgerMapping(ctx context.Context, ledgerId string) (*models.LedgerMapping, error) {
	return models.GetLedgerMapping(ctx, s.db, s.companyId, ledgerId)
}

func (s *gormStore) SaveLedgerMapping(ctx context.Context, mapping *models.LedgerMapping) error {
	mapping.CompanyId = s.companyId
	return models.SaveLedgerMapping(ctx, s.db, mapping)
}

func (s *gormStore) AccountById(ctx context.Context, id int) (*models.Account, error) {
	var account models.Account
	err := s.db.WithContext(ctx).
		Where("company_id = ? AND id = ?", s.companyId, id).
		Take(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

func (s *gormStore) AccountByCode(ctx context.Context, code string) (*models.Account, error) {
	var account models.Account
	err := s.db.WithContext(ctx).
		Where("company_id = ? AND code = ?", s.companyId, code).
		Take(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

func (s *gormStore) AccountByName(ctx context.Context, name string) (*models.Account, error) {
	account, err := models.GetAccountByName(ctx, s.db, s.companyId, name)
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return account, nil
}

func (s *gormStore) FirstAccountByDetailType(ctx context.Context, detailType models.AccountDetailType) (*models.Account, error) {
	account, err := models.FirstAccountByDetailType(ctx, s.db, s.companyId, detailType)
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return account, nil
}

func (s *gormStore) CreateAccount(ctx context.Context, account *models.Account) error {
	account.CompanyId = s.companyId
	return models.CreateAccountTx(ctx, s.db, account)
}

func (s *gormStore) CustomerByRelationId(ctx context.Context, relationId int) (*models.Customer, error) {
	return models.GetCustomerByRelationId(ctx, s.db, s.companyId, relationId)
}

func (s *gormStore) CustomerByName(ctx context.Context, name string) (*models.Customer, error) {
	return models.GetCustomerByName(ctx, s.db, s.companyId, name)
}

func (s *gormStore) CreateCustomer(ctx context.Context, input *models.NewCustomer) (*models.Customer, error) {
	return models.CreateCustomerTx(ctx, s.db, s.companyId, input)
}

func (s *gormStore) SupplierByRelationId(ctx context.Context, relationId int) (*models.Supplier, error) {
	return models.GetSupplierByRelationId(ctx, s.db, s.companyId, relationId)
}

func (s *gormStore) SupplierByName(ctx context.Context, name string) (*models.Supplier, error) {
	return models.GetSupplierByName(ctx, s.db, s.companyId, name)
}

func (s *gormStore) CreateSupplier(ctx context.Context, input *models.NewSupplier) (*models.Supplier, error) {
	return models.CreateSupplierTx(ctx, s.db, s.companyId, input)
}

func (s *gormStore) ItemByAccountCode(ctx context.Context, code string, side models.TransactionSide) (*models.Item, error) {
	return models.GetItemByAccountCode(ctx, s.db, s.companyId, code, side)
}

func (s *gormStore) ItemByName(ctx context.Context, name string) (*models.Item, error) {
	return models.GetItemByName(ctx, s.db, s.companyId, name)
}

func (s *gormStore) CreateItem(ctx context.Context, item *models.Item) error {
	item.CompanyId = s.companyId
	return models.CreateItemTx(ctx, s.db, item)
}

func (s *gormStore) ItemGroupByName(ctx context.Context, name string) (*models.ItemGroup, error) {
	return models.GetOrCreateItemGroupTx(ctx, s.db, s.companyId, name)
}

func (s *gormStore) UpsertCostCenter(ctx context.Context, externalId int, name string) (*models.CostCenter, error) {
	return models.UpsertCostCenterTx(ctx, s.db, s.companyId, externalId, name)
}

func (s *gormStore) JournalEntryExists(ctx context.Context, mutationNr string) (bool, error) {
	return models.JournalEntryExistsByMutationNr(ctx, s.db, s.companyId, mutationNr)
}

func (s *gormStore) SalesInvoiceExists(ctx context.Context, mutationNr string) (bool, error) {
	return models.SalesInvoiceExistsByMutationNr(ctx, s.db, s.companyId, mutationNr)
}

func (s *gormStore) PurchaseInvoiceExists(ctx context.Context, mutationNr string) (bool, error) {
	return models.PurchaseInvoiceExistsByMutationNr(ctx, s.db, s.companyId, mutationNr)
}

func (s *gormStore) PaymentEntryExists(ctx context.Context, mutationNr string) (bool, error) {
	return models.PaymentEntryExistsByMutationNr(ctx, s.db, s.companyId, mutationNr)
}

// InvoiceNumberExists consults both invoice tables so an invoice number used
// by a sales invoice can never be reused by a purchase invoice or vice versa.
func (s *gormStore) InvoiceNumberExists(ctx context.Context, invoiceNumber string) (bool, error) {
	exists, err := models.SalesInvoiceExistsByInvoiceNumber(ctx, s.db, s.companyId, invoiceNumber)
	if err != nil || exists {
		return exists, err
	}
	return models.PurchaseInvoiceExistsByInvoiceNumber(ctx, s.db, s.companyId, invoiceNumber)
}

func (s *gormStore) CreateJournalEntry(ctx context.Context, entry *models.JournalEntry) error {
	entry.CompanyId = s.companyId
	kindOf := func(accountId int) (models.AccountDetailType, bool) {
		account, err := s.AccountById(ctx, accountId)
		if err != nil || account == nil {
			return "", false
		}
		return account.DetailType, true
	}
	return models.CreateJournalEntryTx(ctx, s.db, entry, kindOf)
}

func (s *gormStore) CreateSalesInvoice(ctx context.Context, invoice *models.SalesInvoice) error {
	invoice.CompanyId = s.companyId
	return models.CreateSalesInvoiceTx(ctx, s.db, invoice)
}

func (s *gormStore) CreatePurchaseInvoice(ctx context.Context, invoice *models.PurchaseInvoice) error {
	invoice.CompanyId = s.companyId
	return models.CreatePurchaseInvoiceTx(ctx, s.db, invoice)
}

func (s *gormStore) CreatePaymentEntry(ctx context.Context, payment *models.PaymentEntry) error {
	payment.CompanyId = s.companyId
	return models.CreatePaymentEntryTx(ctx, s.db, payment)
}

func (s *gormStore) DirectionOverrides(ctx context.Context) (map[int]bool, error) {
	return models.ListDirectionOverrides(ctx, s.db, s.companyId)
}

func (s *gormStore) CacheMutation(ctx context.Context, entry *models.MutationCacheEntry) error {
	entry.CompanyId = s.companyId
	return models.CacheMutation(ctx, s.db, entry)
}

func (s *gormStore) CachedMutationIds(ctx context.Context) (map[string]struct{}, error) {
	return models.ListCachedMutationIds(ctx, s.db, s.companyId)
}

func (s *gormStore) CachedMutationsByType(ctx context.Context, mutationType int) ([]*models.MutationCacheEntry, error) {
	return models.ListCachedMutationsByType(ctx, s.db, s.companyId, mutationType)
}

func (s *gormStore) CountCachedMutations(ctx context.Context) (int64, error) {
	return models.CountCachedMutations(ctx, s.db, s.companyId)
}

func (s *gormStore) ClearMutationCache(ctx context.Context) error {
	return models.ClearMutationCache(ctx, s.db, s.companyId)
}
