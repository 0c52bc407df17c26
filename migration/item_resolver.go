package migration

import (
	"context"
	"regexp"
	"strings"

	"bitbucket.org/mmdatafocus/boekhouden_backend/models"
	"github.com/sirupsen/logrus"
)

const itemNameLimit = 100
const generalServiceItemName = "General Service"

var (
	leadingCodeRe  = regexp.MustCompile(`^[0-9][0-9.\- ]*[\-:. ]+`)
	trailingCodeRe = regexp.MustCompile(`\s*[\-–]\s*[A-Z]{2,6}$`)
)

// cleanItemName turns an account display name into a sellable item name:
// numeric code prefixes and trailing company-code suffixes are stripped and
// the result is truncated.
func cleanItemName(accountName string) string {
	name := strings.TrimSpace(accountName)
	name = leadingCodeRe.ReplaceAllString(name, "")
	name = trailingCodeRe.ReplaceAllString(name, "")
	name = strings.Join(strings.Fields(name), " ")
	if len(name) > itemNameLimit {
		name = strings.TrimSpace(name[:itemNameLimit])
	}
	return name
}

func itemGroupForAccount(mainType models.AccountMainType) string {
	switch mainType {
	case models.AccountMainTypeIncome:
		return models.ItemGroupIncomeServices
	case models.AccountMainTypeExpense:
		return models.ItemGroupExpenseServices
	default:
		return models.ItemGroupGeneralServices
	}
}

// itemGroupKeywords matches transaction descriptions, Dutch and English, to an
// item group. More specific than the account type, so a match wins over it.
var itemGroupKeywords = []struct {
	group    string
	keywords []string
}{
	{models.ItemGroupExpenseServices, []string{
		"reis", "travel", "transport", "hotel", "trein", "vliegtuig",
		"kantoor", "office", "supplies", "papier",
		"bank", "transactie", "fee", "kosten", "betaal",
		"catering", "restaurant", "diner", "lunch", "eten",
		"electric", "gas", "water", "internet", "telefoon",
	}},
	{models.ItemGroupGeneralServices, []string{
		"subscription", "abonnement", "license", "licentie", "software", "saas",
		"marketing", "reclame", "advertentie", "promotie",
	}},
	{models.ItemGroupProducts, []string{
		"product", "artikel", "goederen", "voorraad",
	}},
}

// itemGroupForDescription scans the description for group keywords.
func itemGroupForDescription(description string) (string, bool) {
	description = strings.ToLower(description)
	if description == "" {
		return "", false
	}
	for _, entry := range itemGroupKeywords {
		for _, keyword := range entry.keywords {
			if strings.Contains(description, keyword) {
				return entry.group, true
			}
		}
	}
	return "", false
}

type ItemResolver struct {
	logger *logrus.Logger
}

func NewItemResolver(logger *logrus.Logger) *ItemResolver {
	return &ItemResolver{logger: logger}
}

// GetOrCreateItem returns a usable item for an invoice line. The explicit
// account-code mapping wins; otherwise an item named after the account is
// found or created, grouped by description keywords when they match and the
// account's type when they don't. The generic service item is the last
// resort, so the caller always gets an item.
func (r *ItemResolver) GetOrCreateItem(ctx context.Context, store Store, account *models.Account, accountCode string, side models.TransactionSide, description string) (*models.Item, error) {
	if accountCode != "" {
		item, err := store.ItemByAccountCode(ctx, accountCode, side)
		if err != nil {
			return nil, err
		}
		if item != nil {
			return item, nil
		}
	}

	name := cleanItemName(account.Name)
	if name != "" {
		item, err := store.ItemByName(ctx, name)
		if err != nil {
			return nil, err
		}
		if item != nil {
			return item, nil
		}

		groupName, matched := itemGroupForDescription(description)
		if !matched {
			groupName = itemGroupForAccount(account.MainType)
		}
		item, err = r.createItem(ctx, store, name, groupName, account, accountCode, side)
		if err == nil {
			return item, nil
		}
		r.logger.WithFields(logrus.Fields{
			"item_name": name,
			"account":   account.Name,
		}).WithError(err).Warn("item creation failed, falling back to general service")
	}

	return r.generalServiceItem(ctx, store)
}

func (r *ItemResolver) createItem(ctx context.Context, store Store, name string, groupName string, account *models.Account, accountCode string, side models.TransactionSide) (*models.Item, error) {
	group, err := store.ItemGroupByName(ctx, groupName)
	if err != nil {
		return nil, err
	}

	item := &models.Item{
		Name:                   name,
		Description:            "Created during eBoekhouden import",
		ItemGroupId:            group.ID,
		TransactionSide:        side,
		EboekhoudenAccountCode: accountCode,
	}
	switch side {
	case models.TransactionSideSales:
		item.SalesAccountId = account.ID
	case models.TransactionSidePurchase:
		item.PurchaseAccountId = account.ID
	default:
		item.SalesAccountId = account.ID
		item.PurchaseAccountId = account.ID
	}
	if err := store.CreateItem(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// generalServiceItem returns the shared fallback item, creating it on first use.
func (r *ItemResolver) generalServiceItem(ctx context.Context, store Store) (*models.Item, error) {
	item, err := store.ItemByName(ctx, generalServiceItemName)
	if err != nil {
		return nil, err
	}
	if item != nil {
		return item, nil
	}

	group, err := store.ItemGroupByName(ctx, models.ItemGroupGeneralServices)
	if err != nil {
		return nil, err
	}
	item = &models.Item{
		Name:            generalServiceItemName,
		Description:     "Generic fallback service for imported lines without a specific item",
		ItemGroupId:     group.ID,
		TransactionSide: models.TransactionSideBoth,
	}
	if err := store.CreateItem(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}
