package models

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type SalesInvoice struct {
	ID                       int                  `gorm:"primary_key" json:"id"`
	CompanyId                string               `gorm:"index;not null" json:"company_id"`
	CustomerId               int                  `gorm:"index;not null" json:"customer_id" binding:"required"`
	InvoiceDate              time.Time            `gorm:"index;not null" json:"invoice_date" binding:"required"`
	DueDate                  *time.Time           `json:"due_date"`
	ReceivableAccountId      int                  `gorm:"index;not null" json:"receivable_account_id"`
	Remarks                  string               `gorm:"type:text" json:"remarks"`
	TotalAmount              decimal.Decimal      `gorm:"type:decimal(20,4);default:0" json:"total_amount"`
	IsReturn                 *bool                `gorm:"not null;default:false" json:"is_return"`
	Status                   DocumentStatus       `gorm:"size:20;default:'Draft'" json:"status"`
	EboekhoudenMutationNr    string               `gorm:"index;size:20" json:"eboekhouden_mutation_nr"`
	EboekhoudenInvoiceNumber string               `gorm:"index;size:40" json:"eboekhouden_invoice_number"`
	Details                  []SalesInvoiceDetail `gorm:"foreignKey:SalesInvoiceId" json:"details"`
	CreatedAt                time.Time            `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt                time.Time            `gorm:"autoUpdateTime" json:"updated_at"`
}

type SalesInvoiceDetail struct {
	ID              int             `gorm:"primary_key" json:"id"`
	SalesInvoiceId  int             `gorm:"index;not null" json:"sales_invoice_id"`
	ItemId          int             `gorm:"index;not null" json:"item_id"`
	Name            string          `gorm:"size:255" json:"name"`
	Description     string          `gorm:"size:255" json:"description"`
	Qty             decimal.Decimal `gorm:"type:decimal(20,4);default:1" json:"qty"`
	Rate            decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"rate"`
	Amount          decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
	IncomeAccountId int             `gorm:"index;not null" json:"income_account_id"`
}

func (inv *SalesInvoice) validate() error {
	if inv.CompanyId == "" {
		return errors.New("company id is required")
	}
	if inv.CustomerId == 0 {
		return errors.New("customer is required")
	}
	if inv.ReceivableAccountId == 0 {
		return errors.New("receivable account is required")
	}
	if len(inv.Details) == 0 {
		return errors.New("sales invoice needs at least one line")
	}
	total := decimal.Zero
	for i, d := range inv.Details {
		if d.ItemId == 0 {
			return errors.New("sales invoice line has no item")
		}
		if d.IncomeAccountId == 0 {
			return errors.New("sales invoice line has no income account")
		}
		inv.Details[i].Amount = d.Qty.Mul(d.Rate)
		total = total.Add(inv.Details[i].Amount)
	}
	inv.TotalAmount = total
	return nil
}

// CreateSalesInvoiceTx validates, inserts, and submits the invoice inside the
// caller's transaction.
func CreateSalesInvoiceTx(ctx context.Context, tx *gorm.DB, inv *SalesInvoice) error {
	if err := inv.validate(); err != nil {
		return err
	}
	inv.Status = DocumentStatusSubmitted
	return tx.WithContext(ctx).Create(inv).Error
}

func SalesInvoiceExistsByMutationNr(ctx context.Context, tx *gorm.DB, companyId string, mutationNr string) (bool, error) {
	var count int64
	err := tx.WithContext(ctx).Model(&SalesInvoice{}).
		Where("company_id = ? AND eboekhouden_mutation_nr = ? AND status = ?", companyId, mutationNr, DocumentStatusSubmitted).
		Count(&count).Error
	return count > 0, err
}

func SalesInvoiceExistsByInvoiceNumber(ctx context.Context, tx *gorm.DB, companyId string, invoiceNumber string) (bool, error) {
	var count int64
	err := tx.WithContext(ctx).Model(&SalesInvoice{}).
		Where("company_id = ? AND eboekhouden_invoice_number = ? AND status = ?", companyId, invoiceNumber, DocumentStatusSubmitted).
		Count(&count).Error
	return count > 0, err
}
