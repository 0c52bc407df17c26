package models

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type PaymentEntry struct {
	ID                      int             `gorm:"primary_key" json:"id"`
	CompanyId               string          `gorm:"index;not null" json:"company_id"`
	PaymentType             PaymentType     `gorm:"size:10;not null" json:"payment_type" binding:"required"`
	PaymentDate             time.Time       `gorm:"index;not null" json:"payment_date" binding:"required"`
	PartyType               PartyType       `gorm:"size:20" json:"party_type"`
	PartyId                 int             `gorm:"index" json:"party_id"`
	PaidFromAccountId       int             `gorm:"index;not null" json:"paid_from_account_id"`
	PaidToAccountId         int             `gorm:"index;not null" json:"paid_to_account_id"`
	Amount                  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
	ReferenceNumber         string          `gorm:"size:255" json:"reference_number"`
	Remarks                 string          `gorm:"type:text" json:"remarks"`
	Status                  DocumentStatus  `gorm:"size:20;default:'Draft'" json:"status"`
	EboekhoudenMutationNr   string          `gorm:"index;size:20" json:"eboekhouden_mutation_nr"`
	EboekhoudenMutationType *int            `json:"eboekhouden_mutation_type"`
	CreatedAt               time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt               time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *PaymentEntry) validate() error {
	if p.CompanyId == "" {
		return errors.New("company id is required")
	}
	if p.PaymentType != PaymentTypeReceive && p.PaymentType != PaymentTypePay {
		return errors.New("invalid payment type")
	}
	if p.PaidFromAccountId == 0 || p.PaidToAccountId == 0 {
		return errors.New("both paid-from and paid-to accounts are required")
	}
	if p.PaidFromAccountId == p.PaidToAccountId {
		return errors.New("paid-from and paid-to accounts must differ")
	}
	if !p.Amount.IsPositive() {
		return errors.New("payment amount must be positive")
	}
	return nil
}

// CreatePaymentEntryTx validates, inserts, and submits the payment inside the
// caller's transaction.
func CreatePaymentEntryTx(ctx context.Context, tx *gorm.DB, p *PaymentEntry) error {
	if err := p.validate(); err != nil {
		return err
	}
	p.Status = DocumentStatusSubmitted
	return tx.WithContext(ctx).Create(p).Error
}

func PaymentEntryExistsByMutationNr(ctx context.Context, tx *gorm.DB, companyId string, mutationNr string) (bool, error) {
	var count int64
	err := tx.WithContext(ctx).Model(&PaymentEntry{}).
		Where("company_id = ? AND eboekhouden_mutation_nr = ? AND status = ?", companyId, mutationNr, DocumentStatusSubmitted).
		Count(&count).Error
	return count > 0, err
}
