package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BalanceTolerance is the maximum permitted |debit - credit| on a journal entry.
var BalanceTolerance = decimal.NewFromFloat(0.01)

type JournalEntry struct {
	ID                      int             `gorm:"primary_key" json:"id"`
	CompanyId               string          `gorm:"index;not null" json:"company_id"`
	EntryDate               time.Time       `gorm:"index;not null" json:"entry_date" binding:"required"`
	Notes                   string          `gorm:"type:text" json:"notes"`
	ReferenceNumber         string          `gorm:"size:255" json:"reference_number"`
	CostCenterId            int             `gorm:"index" json:"cost_center_id"`
	TotalDebit              decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_debit"`
	TotalCredit             decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_credit"`
	Status                  DocumentStatus  `gorm:"size:20;default:'Draft'" json:"status"`
	EboekhoudenMutationNr   string          `gorm:"index;size:20" json:"eboekhouden_mutation_nr"`
	EboekhoudenMutationType *int            `json:"eboekhouden_mutation_type"`
	Lines                   []JournalLine   `gorm:"foreignKey:JournalEntryId" json:"lines"`
	CreatedAt               time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt               time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type JournalLine struct {
	ID             int             `gorm:"primary_key" json:"id"`
	JournalEntryId int             `gorm:"index;not null" json:"journal_entry_id"`
	AccountId      int             `gorm:"index;not null" json:"account_id" binding:"required"`
	Description    string          `gorm:"size:255" json:"description"`
	Debit          decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"debit"`
	Credit         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"credit"`
	PartyType      PartyType       `gorm:"size:20" json:"party_type"`
	PartyId        int             `json:"party_id"`
}

// accountKindLookup lets validation resolve the detail type of each line's account
// without going back to the database per line.
type accountKindLookup func(accountId int) (AccountDetailType, bool)

// Validate enforces the document invariants:
// every line carries exactly one side, totals balance within tolerance, and
// receivable/payable lines carry a party.
func (j *JournalEntry) Validate(kindOf accountKindLookup) error {
	if len(j.Lines) < 2 {
		return errors.New("journal entry needs at least two lines")
	}

	totalDebit := decimal.Zero
	totalCredit := decimal.Zero
	for i, line := range j.Lines {
		if line.AccountId == 0 {
			return fmt.Errorf("journal line %d has no account", i+1)
		}
		if line.Debit.IsZero() && line.Credit.IsZero() {
			return fmt.Errorf("journal line %d: either debit or credit must have value", i+1)
		}
		if !line.Debit.IsZero() && !line.Credit.IsZero() {
			return fmt.Errorf("journal line %d: debit and credit are mutually exclusive", i+1)
		}
		if line.Debit.IsNegative() || line.Credit.IsNegative() {
			return fmt.Errorf("journal line %d: negative amounts are not allowed", i+1)
		}
		if kindOf != nil {
			if detailType, ok := kindOf(line.AccountId); ok {
				if (detailType == AccountDetailTypeAccountsReceivable || detailType == AccountDetailTypeAccountsPayable) &&
					(line.PartyType == "" || line.PartyId == 0) {
					return fmt.Errorf("journal line %d: %s account requires a party", i+1, detailType)
				}
			}
		}
		totalDebit = totalDebit.Add(line.Debit)
		totalCredit = totalCredit.Add(line.Credit)
	}

	if totalDebit.Sub(totalCredit).Abs().GreaterThan(BalanceTolerance) {
		return fmt.Errorf("journal entry is not balanced: debit %s, credit %s",
			totalDebit.StringFixed(2), totalCredit.StringFixed(2))
	}

	j.TotalDebit = totalDebit
	j.TotalCredit = totalCredit
	return nil
}

// CreateJournalEntryTx validates, inserts, and submits the entry inside the
// caller's transaction. The status moves straight to Submitted: a migrated
// entry is never left in draft.
func CreateJournalEntryTx(ctx context.Context, tx *gorm.DB, entry *JournalEntry, kindOf accountKindLookup) error {
	if entry.CompanyId == "" {
		return errors.New("company id is required")
	}
	if err := entry.Validate(kindOf); err != nil {
		return err
	}
	entry.Status = DocumentStatusSubmitted
	return tx.WithContext(ctx).Create(entry).Error
}

// JournalEntryExistsByMutationNr reports whether a submitted entry already
// carries the external mutation number.
func JournalEntryExistsByMutationNr(ctx context.Context, tx *gorm.DB, companyId string, mutationNr string) (bool, error) {
	var count int64
	err := tx.WithContext(ctx).Model(&JournalEntry{}).
		Where("company_id = ? AND eboekhouden_mutation_nr = ? AND status = ?", companyId, mutationNr, DocumentStatusSubmitted).
		Count(&count).Error
	return count > 0, err
}
