package models

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

type ItemGroup struct {
	ID        int       `gorm:"primary_key" json:"id"`
	CompanyId string    `gorm:"index;not null" json:"company_id"`
	Name      string    `gorm:"index;size:100;not null" json:"name" binding:"required"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

const (
	ItemGroupIncomeServices  = "Income Services"
	ItemGroupExpenseServices = "Expense Services"
	ItemGroupGeneralServices = "General Services"
	ItemGroupProducts        = "Products"
)

type Item struct {
	ID                     int             `gorm:"primary_key" json:"id"`
	CompanyId              string          `gorm:"index;not null" json:"company_id"`
	Name                   string          `gorm:"index;size:140;not null" json:"name" binding:"required"`
	Description            string          `gorm:"type:text" json:"description"`
	ItemGroupId            int             `gorm:"index" json:"item_group_id"`
	SalesAccountId         int             `gorm:"index" json:"sales_account_id"`
	PurchaseAccountId      int             `gorm:"index" json:"purchase_account_id"`
	TransactionSide        TransactionSide `gorm:"size:10;default:'Both'" json:"transaction_side"`
	EboekhoudenAccountCode string          `gorm:"index;size:20" json:"eboekhouden_account_code"`
	IsActive               *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt              time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// GetOrCreateItemGroupTx returns the named group, creating it when absent.
func GetOrCreateItemGroupTx(ctx context.Context, tx *gorm.DB, companyId string, name string) (*ItemGroup, error) {
	if companyId == "" {
		return nil, errors.New("company id is required")
	}

	var group ItemGroup
	err := tx.WithContext(ctx).
		Where("company_id = ? AND name = ?", companyId, name).
		Take(&group).Error
	if err == nil {
		return &group, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	group = ItemGroup{CompanyId: companyId, Name: name}
	if err := tx.WithContext(ctx).Create(&group).Error; err != nil {
		return nil, err
	}
	return &group, nil
}

func CreateItemTx(ctx context.Context, tx *gorm.DB, item *Item) error {
	if item.CompanyId == "" {
		return errors.New("company id is required")
	}
	return tx.WithContext(ctx).Create(item).Error
}

// GetItemByName does an exact name lookup; (nil, nil) when absent.
func GetItemByName(ctx context.Context, tx *gorm.DB, companyId string, name string) (*Item, error) {
	var item Item
	err := tx.WithContext(ctx).
		Where("company_id = ? AND name = ?", companyId, name).
		Take(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

// GetItemByAccountCode finds an item mapped to an external account code for the
// given transaction side; (nil, nil) when absent.
func GetItemByAccountCode(ctx context.Context, tx *gorm.DB, companyId string, accountCode string, side TransactionSide) (*Item, error) {
	var item Item
	err := tx.WithContext(ctx).
		Where("company_id = ? AND eboekhouden_account_code = ?", companyId, accountCode).
		Where("transaction_side IN ?", []TransactionSide{side, TransactionSideBoth}).
		Order("id").
		Take(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}
