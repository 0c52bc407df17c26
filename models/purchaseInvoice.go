package models

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type PurchaseInvoice struct {
	ID                       int                     `gorm:"primary_key" json:"id"`
	CompanyId                string                  `gorm:"index;not null" json:"company_id"`
	SupplierId               int                     `gorm:"index;not null" json:"supplier_id" binding:"required"`
	InvoiceDate              time.Time               `gorm:"index;not null" json:"invoice_date" binding:"required"`
	DueDate                  *time.Time              `json:"due_date"`
	PayableAccountId         int                     `gorm:"index;not null" json:"payable_account_id"`
	Remarks                  string                  `gorm:"type:text" json:"remarks"`
	TotalAmount              decimal.Decimal         `gorm:"type:decimal(20,4);default:0" json:"total_amount"`
	IsReturn                 *bool                   `gorm:"not null;default:false" json:"is_return"`
	Status                   DocumentStatus          `gorm:"size:20;default:'Draft'" json:"status"`
	EboekhoudenMutationNr    string                  `gorm:"index;size:20" json:"eboekhouden_mutation_nr"`
	EboekhoudenInvoiceNumber string                  `gorm:"index;size:40" json:"eboekhouden_invoice_number"`
	Details                  []PurchaseInvoiceDetail `gorm:"foreignKey:PurchaseInvoiceId" json:"details"`
	CreatedAt                time.Time               `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt                time.Time               `gorm:"autoUpdateTime" json:"updated_at"`
}

type PurchaseInvoiceDetail struct {
	ID                int             `gorm:"primary_key" json:"id"`
	PurchaseInvoiceId int             `gorm:"index;not null" json:"purchase_invoice_id"`
	ItemId            int             `gorm:"index;not null" json:"item_id"`
	Name              string          `gorm:"size:255" json:"name"`
	Description       string          `gorm:"size:255" json:"description"`
	Qty               decimal.Decimal `gorm:"type:decimal(20,4);default:1" json:"qty"`
	Rate              decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"rate"`
	Amount            decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
	ExpenseAccountId  int             `gorm:"index;not null" json:"expense_account_id"`
}

func (inv *PurchaseInvoice) validate() error {
	if inv.CompanyId == "" {
		return errors.New("company id is required")
	}
	if inv.SupplierId == 0 {
		return errors.New("supplier is required")
	}
	if inv.PayableAccountId == 0 {
		return errors.New("payable account is required")
	}
	if len(inv.Details) == 0 {
		return errors.New("purchase invoice needs at least one line")
	}
	total := decimal.Zero
	for i, d := range inv.Details {
		if d.ItemId == 0 {
			return errors.New("purchase invoice line has no item")
		}
		if d.ExpenseAccountId == 0 {
			return errors.New("purchase invoice line has no expense account")
		}
		inv.Details[i].Amount = d.Qty.Mul(d.Rate)
		total = total.Add(inv.Details[i].Amount)
	}
	inv.TotalAmount = total
	return nil
}

// CreatePurchaseInvoiceTx validates, inserts, and submits the invoice inside the
// caller's transaction.
func CreatePurchaseInvoiceTx(ctx context.Context, tx *gorm.DB, inv *PurchaseInvoice) error {
	if err := inv.validate(); err != nil {
		return err
	}
	inv.Status = DocumentStatusSubmitted
	return tx.WithContext(ctx).Create(inv).Error
}

func PurchaseInvoiceExistsByMutationNr(ctx context.Context, tx *gorm.DB, companyId string, mutationNr string) (bool, error) {
	var count int64
	err := tx.WithContext(ctx).Model(&PurchaseInvoice{}).
		Where("company_id = ? AND eboekhouden_mutation_nr = ? AND status = ?", companyId, mutationNr, DocumentStatusSubmitted).
		Count(&count).Error
	return count > 0, err
}

func PurchaseInvoiceExistsByInvoiceNumber(ctx context.Context, tx *gorm.DB, companyId string, invoiceNumber string) (bool, error) {
	var count int64
	err := tx.WithContext(ctx).Model(&PurchaseInvoice{}).
		Where("company_id = ? AND eboekhouden_invoice_number = ? AND status = ?", companyId, invoiceNumber, DocumentStatusSubmitted).
		Count(&count).Error
	return count > 0, err
}
