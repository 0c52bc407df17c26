package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/boekhouden_backend/utils"
	"gorm.io/gorm"
)

type Supplier struct {
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

type NewSupplier struct {
	Name                  string `json:"name" binding:"required"`
	Email                 string `json:"email" binding:"omitempty,email"`
	Phone                 string `json:"phone"`
	Address               string `json:"address"`
	VatNumber             string `json:"vat_number"`
	EboekhoudenRelationId *int   `json:"eboekhouden_relation_id"`
	IsInternal            bool   `json:"is_internal"`
	NeedsReview           bool   `json:"needs_review"`
}

func CreateSupplierTx(ctx context.Context, tx *gorm.DB, companyId string, input *NewSupplier) (*Supplier, error) {
	if companyId == "" {
		return nil, errors.New("company id is required")
	}

	supplier := Supplier{
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
	if err := tx.WithContext(ctx).Create(&supplier).Error; err != nil {
		return nil, err
	}
	return &supplier, nil
}

// GetSupplierByRelationId looks up a supplier by the external relation reference.
// Returns (nil, nil) when no supplier carries the relation id.
func GetSupplierByRelationId(ctx context.Context, tx *gorm.DB, companyId string, relationId int) (*Supplier, error) {
	var supplier Supplier
	err := tx.WithContext(ctx).
		Where("company_id = ? AND eboekhouden_relation_id = ?", companyId, relationId).
		Take(&supplier).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &supplier, nil
}

// GetSupplierByName does an exact name lookup; (nil, nil) when absent.
func GetSupplierByName(ctx context.Context, tx *gorm.DB, companyId string, name string) (*Supplier, error) {
	var supplier Supplier
	err := tx.WithContext(ctx).
		Where("company_id = ? AND name = ?", companyId, name).
		Take(&supplier).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &supplier, nil
}

func GetSupplier(ctx context.Context, id int) (*Supplier, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, errors.New("company id is required")
	}
	return utils.FetchModel[Supplier](ctx, companyId, id)
}
