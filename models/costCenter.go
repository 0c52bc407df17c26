package models

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

type CostCenter struct {
	ID            int       `gorm:"primary_key" json:"id"`
	CompanyId     string    `gorm:"index;not null" json:"company_id"`
	Name          string    `gorm:"index;size:140;not null" json:"name" binding:"required"`
	EboekhoudenId *int      `gorm:"index" json:"eboekhouden_id"`
	IsActive      *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// UpsertCostCenterTx creates or refreshes a cost center from the external listing.
func UpsertCostCenterTx(ctx context.Context, tx *gorm.DB, companyId string, externalId int, name string) (*CostCenter, error) {
	if companyId == "" {
		return nil, errors.New("company id is required")
	}

	var cc CostCenter
	err := tx.WithContext(ctx).
		Where("company_id = ? AND eboekhouden_id = ?", companyId, externalId).
		Take(&cc).Error
	if err == nil {
		if cc.Name != name {
			if err := tx.WithContext(ctx).Model(&cc).Update("name", name).Error; err != nil {
				return nil, err
			}
			cc.Name = name
		}
		return &cc, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	cc = CostCenter{
		CompanyId:     companyId,
		Name:          name,
		EboekhoudenId: &externalId,
	}
	if err := tx.WithContext(ctx).Create(&cc).Error; err != nil {
		return nil, err
	}
	return &cc, nil
}
