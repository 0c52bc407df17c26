package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/boekhouden_backend/config"
	"bitbucket.org/mmdatafocus/boekhouden_backend/utils"
	"gorm.io/gorm"
)

type Account struct {
	ID          int               `gorm:"primary_key" json:"id"`
	CompanyId   string            `gorm:"index;not null" json:"company_id"`
	DetailType  AccountDetailType `gorm:"type:enum('OtherAsset','OtherCurrentAsset','Cash','Bank','FixedAsset','Stock','InputTax','OutputTax','OtherCurrentLiability','LongTermLiability','OtherLiability','Equity','Income','OtherIncome','Expense','CostOfGoodsSold','OtherExpense','AccountsReceivable','AccountsPayable');default:'Expense';index;size:50;not null" json:"detail_type" binding:"required"`
	MainType    AccountMainType   `gorm:"type:enum('Asset','Liability','Equity','Income','Expense');default:'Expense';index;size:10;not null" json:"main_type" binding:"required"`
	Name        string            `gorm:"index;size:140;not null" json:"name" binding:"required"`
	Code        string            `gorm:"index;size:20" json:"code"`
	Description string            `gorm:"type:text" json:"description"`
	IsActive    *bool             `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewAccount struct {
	DetailType  AccountDetailType `json:"detail_type" binding:"required"`
	MainType    AccountMainType   `json:"main_type" binding:"required"`
	Name        string            `json:"name" binding:"required"`
	Code        string            `json:"code"`
	Description string            `json:"description"`
}

func (input *NewAccount) validate(ctx context.Context, companyId string, id int) error {
	// name
	if err := utils.ValidateUnique[Account](ctx, companyId, "name", input.Name, id); err != nil {
		return err
	}
	// code
	if input.Code != "" {
		if err := utils.ValidateUnique[Account](ctx, companyId, "code", input.Code, id); err != nil {
			return err
		}
	}
	return nil
}

func CreateAccount(ctx context.Context, input *NewAccount) (*Account, error) {

	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, errors.New("company id is required")
	}

	if err := input.validate(ctx, companyId, 0); err != nil {
		return nil, err
	}

	account := Account{
		CompanyId:   companyId,
		DetailType:  input.DetailType,
		MainType:    input.MainType,
		Name:        input.Name,
		Code:        input.Code,
		Description: input.Description,
		IsActive:    utils.NewTrue(),
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&account).Error; err != nil {
		return nil, err
	}
	_ = config.RemoveRedisKey("Accounts:" + companyId)
	return &account, nil
}

// CreateAccountTx inserts an account inside the caller's transaction.
// Used by the migration flow where account creation must share the mutation's unit of work.
func CreateAccountTx(ctx context.Context, tx *gorm.DB, account *Account) error {
	if account.CompanyId == "" {
		return errors.New("company id is required")
	}
	if err := tx.WithContext(ctx).Create(account).Error; err != nil {
		return err
	}
	_ = config.RemoveRedisKey("Accounts:" + account.CompanyId)
	return nil
}

func GetAccount(ctx context.Context, id int) (*Account, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, errors.New("company id is required")
	}
	return utils.FetchModel[Account](ctx, companyId, id)
}

// GetAccounts returns the full chart of accounts for the company, redis-cached.
func GetAccounts(ctx context.Context, companyId string) ([]*Account, error) {
	var accounts []*Account
	exists, err := config.GetRedisObject("Accounts:"+companyId, &accounts)
	if err != nil {
		return nil, err
	}
	if exists {
		return accounts, nil
	}

	accounts, err = utils.FetchAllModels[Account](ctx, companyId)
	if err != nil {
		return nil, err
	}
	_ = config.SetRedisObject("Accounts:"+companyId, &accounts, time.Hour)
	return accounts, nil
}

// GetAccountByName does an exact name lookup inside the caller's transaction,
// so accounts created earlier in the same unit of work are visible.
// Returns RecordNotFound when absent.
func GetAccountByName(ctx context.Context, tx *gorm.DB, companyId string, name string) (*Account, error) {
	var account Account
	if err := tx.WithContext(ctx).
		Where("company_id = ? AND name = ?", companyId, name).
		Take(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &account, nil
}

// FirstAccountByDetailType returns the lowest-id active account of the detail type,
// or RecordNotFound. The payment processor's cash-account fallback chain builds on this.
func FirstAccountByDetailType(ctx context.Context, tx *gorm.DB, companyId string, detailType AccountDetailType) (*Account, error) {
	var account Account
	if err := tx.WithContext(ctx).
		Where("company_id = ? AND detail_type = ? AND is_active = true", companyId, detailType).
		Order("id").
		Take(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &account, nil
}
