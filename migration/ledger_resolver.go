package migration

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"bitbucket.org/mmdatafocus/boekhouden_backend/eboekhouden"
	"bitbucket.org/mmdatafocus/boekhouden_backend/models"
	"github.com/sirupsen/logrus"
)

// How a ledger id was resolved to an account. Anything other than an explicit
// mapping is surfaced so callers and reports can tell heuristic results apart.
const (
	ResolvedViaMapping   = "mapping"
	ResolvedViaHeuristic = "heuristic"
	ResolvedViaSuspense  = "suspense"
)

const suspenseAccountName = "Suspense (eBoekhouden Import)"

// LedgerResolution is the outcome of resolving one external ledger id.
type LedgerResolution struct {
	Account  *models.Account
	Category string
	Source   string
}

type LedgerResolver struct {
	api    APIClient
	logger *logrus.Logger
	memo   map[int]*LedgerResolution
}

func NewLedgerResolver(api APIClient, logger *logrus.Logger) *LedgerResolver {
	return &LedgerResolver{
		api:    api,
		logger: logger,
		memo:   make(map[int]*LedgerResolution),
	}
}

// accountTypeForCode maps an external account code to internal account types.
// The code ranges follow the Dutch chart-of-accounts convention observed in
// practice; the explicit mapping table always wins over this.
func accountTypeForCode(code string, description string) (models.AccountDetailType, models.AccountMainType) {
	code = strings.TrimSpace(code)
	lowerDesc := strings.ToLower(description)
	if code == "" {
		return models.AccountDetailTypeExpense, models.AccountMainTypeExpense
	}

	switch code[0] {
	case '0':
		return models.AccountDetailTypeFixedAsset, models.AccountMainTypeAsset
	case '1':
		switch {
		case strings.HasPrefix(code, "13"):
			return models.AccountDetailTypeAccountsReceivable, models.AccountMainTypeAsset
		case strings.HasPrefix(code, "16"):
			return models.AccountDetailTypeAccountsPayable, models.AccountMainTypeLiability
		case strings.HasPrefix(code, "10"):
			if strings.Contains(lowerDesc, "kas") || strings.Contains(lowerDesc, "cash") {
				return models.AccountDetailTypeCash, models.AccountMainTypeAsset
			}
			return models.AccountDetailTypeBank, models.AccountMainTypeAsset
		default:
			return models.AccountDetailTypeOtherCurrentAsset, models.AccountMainTypeAsset
		}
	case '2':
		return models.AccountDetailTypeOtherCurrentLiability, models.AccountMainTypeLiability
	case '3':
		return models.AccountDetailTypeEquity, models.AccountMainTypeEquity
	case '4':
		if strings.Contains(lowerDesc, "btw") || strings.Contains(lowerDesc, "vat") {
			return models.AccountDetailTypeOutputTax, models.AccountMainTypeLiability
		}
		return models.AccountDetailTypeIncome, models.AccountMainTypeIncome
	case '5', '6', '7':
		return models.AccountDetailTypeExpense, models.AccountMainTypeExpense
	case '8':
		return models.AccountDetailTypeIncome, models.AccountMainTypeIncome
	case '9':
		return models.AccountDetailTypeExpense, models.AccountMainTypeExpense
	default:
		return models.AccountDetailTypeExpense, models.AccountMainTypeExpense
	}
}

// Resolve maps an external ledger id to an internal account. The explicit
// mapping table is consulted first; on a miss the ledger's code drives the
// account-type heuristic and the result is persisted as a new mapping. Only
// when the ledger is unknown to the external API as well does the suspense
// account absorb the line, and that outcome is logged.
func (r *LedgerResolver) Resolve(ctx context.Context, store Store, ledgerId int) (*LedgerResolution, error) {
	if cached, ok := r.memo[ledgerId]; ok {
		return cached, nil
	}

	ledgerKey := strconv.Itoa(ledgerId)
	mapping, err := store.LedgerMapping(ctx, ledgerKey)
	if err != nil {
		return nil, err
	}
	if mapping != nil {
		account, err := store.AccountById(ctx, mapping.AccountId)
		if err != nil {
			return nil, err
		}
		if account != nil {
			resolution := &LedgerResolution{Account: account, Source: ResolvedViaMapping}
			r.memo[ledgerId] = resolution
			return resolution, nil
		}
		r.logger.WithFields(logrus.Fields{
			"ledger_id":  ledgerId,
			"account_id": mapping.AccountId,
		}).Warn("ledger mapping points at a missing account, falling back")
	}

	ledger, err := r.api.FetchLedgerDetail(ctx, ledgerId)
	if err != nil {
		return nil, err
	}
	if ledger == nil {
		r.logger.WithField("ledger_id", ledgerId).Warn("ledger unknown to external api, booking to suspense")
		account, err := r.suspenseAccount(ctx, store)
		if err != nil {
			return nil, err
		}
		resolution := &LedgerResolution{Account: account, Source: ResolvedViaSuspense}
		r.memo[ledgerId] = resolution
		return resolution, nil
	}

	account, err := r.accountForLedger(ctx, store, ledger)
	if err != nil {
		return nil, err
	}

	if err := store.SaveLedgerMapping(ctx, &models.LedgerMapping{
		LedgerId:   ledgerKey,
		AccountId:  account.ID,
		LedgerCode: ledger.Code,
		LedgerName: ledger.Description,
	}); err != nil {
		return nil, err
	}

	r.logger.WithFields(logrus.Fields{
		"ledger_id":   ledgerId,
		"ledger_code": ledger.Code,
		"account":     account.Name,
	}).Info("unmapped ledger resolved via account code heuristic")

	resolution := &LedgerResolution{Account: account, Category: ledger.Category, Source: ResolvedViaHeuristic}
	r.memo[ledgerId] = resolution
	return resolution, nil
}

// Category returns the external category of a ledger id, used by the memorial
// direction rules. Empty when the ledger is unknown.
func (r *LedgerResolver) Category(ctx context.Context, ledgerId int) (string, error) {
	if cached, ok := r.memo[ledgerId]; ok && cached.Category != "" {
		return cached.Category, nil
	}
	ledger, err := r.api.FetchLedgerDetail(ctx, ledgerId)
	if err != nil {
		return "", err
	}
	if ledger == nil {
		return "", nil
	}
	if cached, ok := r.memo[ledgerId]; ok {
		cached.Category = ledger.Category
	}
	return ledger.Category, nil
}

// accountForLedger finds the internal account for a known external ledger,
// creating one from the code heuristic when the chart has no match yet.
func (r *LedgerResolver) accountForLedger(ctx context.Context, store Store, ledger *eboekhouden.Ledger) (*models.Account, error) {
	if ledger.Code != "" {
		account, err := store.AccountByCode(ctx, ledger.Code)
		if err != nil {
			return nil, err
		}
		if account != nil {
			return account, nil
		}
	}

	name := accountNameForLedger(ledger.Code, ledger.Description)
	account, err := store.AccountByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if account != nil {
		return account, nil
	}

	detailType, mainType := accountTypeForCode(ledger.Code, ledger.Description)
	account = &models.Account{
		DetailType:  detailType,
		MainType:    mainType,
		Name:        name,
		Code:        ledger.Code,
		Description: "Created during eBoekhouden import",
	}
	if err := store.CreateAccount(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

func (r *LedgerResolver) suspenseAccount(ctx context.Context, store Store) (*models.Account, error) {
	account, err := store.AccountByName(ctx, suspenseAccountName)
	if err != nil {
		return nil, err
	}
	if account != nil {
		return account, nil
	}
	account = &models.Account{
		DetailType:  models.AccountDetailTypeOtherCurrentLiability,
		MainType:    models.AccountMainTypeLiability,
		Name:        suspenseAccountName,
		Description: "Absorbs amounts whose external ledger could not be resolved. Review and reclassify manually.",
	}
	if err := store.CreateAccount(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

func accountNameForLedger(code string, description string) string {
	description = strings.TrimSpace(description)
	if description == "" {
		return fmt.Sprintf("Ledger %s", code)
	}
	name := description
	if code != "" {
		name = code + " - " + description
	}
	if len(name) > 140 {
		name = name[:140]
	}
	return name
}
