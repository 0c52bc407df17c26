package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/boekhouden_backend/config"
	"bitbucket.org/mmdatafocus/boekhouden_backend/utils"
	"gorm.io/gorm"
)

type Customer struct {
	ID                    int       `gorm:"primary_key" json:"id"`
	CompanyId             string    `gorm:"index;not null" json:"company_id"`
	Name                  string    `gorm:"index;size:140;not null" json:"name" binding:"required"`
	Email                 string    `gorm:"size:255" json:"email"`
	Phone                 string    `gorm:"size:30" json:"phone"`
	Address               string    `gorm:"type:text" json:"address"`
	VatNumber             string    `gorm:"size:30" json:"vat_number"`
	EboekhoudenRelationId *int      `gorm:"index" json:"eboekhouden_relation_id"`
	IsInternal            *bool     `gorm:"not null;default:false" json:"is_internal"`
	NeedsReview           *bool     `gorm:"not null;default:false" json:"needs_review"`
	IsActive              *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt             time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewCustomer struct {
	Name                  string `json:"name" binding:"required"`
	Email                 string `json:"email" binding:"omitempty,email"`
	Phone                 string `json:"phone"`
	Address               string `json:"address"`
	VatNumber             string `json:"vat_number"`
	EboekhoudenRelationId *int   `json:"eboekhouden_relation_id"`
	IsInternal            bool   `json:"is_internal"`
	NeedsReview           bool   `json:"needs_review"`
}

func CreateCustomerTx(ctx context.Context, tx *gorm.DB, companyId string, input *NewCustomer) (*Customer, error) {
	if companyId == "" {
		return nil, errors.New("company id is required")
	}

	customer := Customer{
		CompanyId:             companyId,
		Name:                  input.Name,
		Email:                 input.Email,
		Phone:                 utils.FormatPhoneNumber(input.Phone, "NL"),
		Address:               input.Address,
		VatNumber:             input.VatNumber,
		EboekhoudenRelationId: input.EboekhoudenRelationId,
		IsInternal:            &input.IsInternal,
		NeedsReview:           &input.NeedsReview,
		IsActive:              utils.NewTrue(),
	}
	if err := tx.WithContext(ctx).Create(&customer).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

// GetCustomerByRelationId looks up a customer by the external relation reference.
// Returns (nil, nil) when no customer carries the relation id.
func GetCustomerByRelationId(ctx context.Context, tx *gorm.DB, companyId string, relationId int) (*Customer, error) {
	var customer Customer
	err := tx.WithContext(ctx).
		Where("company_id = ? AND eboekhouden_relation_id = ?", companyId, relationId).
		Take(&customer).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &customer, nil
}

// GetCustomerByName does an exact name lookup; (nil, nil) when absent.
func GetCustomerByName(ctx context.Context, tx *gorm.DB, companyId string, name string) (*Customer, error) {
	var customer Customer
	err := tx.WithContext(ctx).
		Where("company_id = ? AND name = ?", companyId, name).
		Take(&customer).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &customer, nil
}

func GetCustomer(ctx context.Context, id int) (*Customer, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, errors.New("company id is required")
	}
	return utils.FetchModel[Customer](ctx, companyId, id)
}

func CountCustomersNeedingReview(ctx context.Context, companyId string) (int64, error) {
	db := config.GetDB()
	var count int64
	err := db.WithContext(ctx).Model(&Customer{}).
		Where("company_id = ? AND needs_review = true", companyId).
		Count(&count).Error
	return count, err
}
