package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/boekhouden_backend/config"
	"bitbucket.org/mmdatafocus/boekhouden_backend/utils"
	"github.com/google/uuid"
)

type Company struct {
	ID                uuid.UUID `gorm:"type:char(36);primary_key" json:"id"`
	Name              string    `gorm:"size:255;not null" json:"name" binding:"required"`
	Email             string    `gorm:"size:255" json:"email"`
	Country           string    `gorm:"size:2;default:'NL'" json:"country"`
	DefaultCostCenter string    `gorm:"size:255" json:"default_cost_center"`
	Timezone          string    `gorm:"size:64;default:'Europe/Amsterdam'" json:"timezone"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewCompany struct {
	Name              string `json:"name" binding:"required"`
	Email             string `json:"email" binding:"omitempty,email"`
	Country           string `json:"country"`
	DefaultCostCenter string `json:"default_cost_center"`
}

func CreateCompany(ctx context.Context, input *NewCompany) (*Company, error) {
	if input.Email != "" && !utils.IsValidEmail(input.Email) {
		return nil, errors.New("invalid email")
	}

	company := Company{
		ID:                uuid.New(),
		Name:              input.Name,
		Email:             input.Email,
		Country:           input.Country,
		DefaultCostCenter: input.DefaultCostCenter,
	}
	if company.Country == "" {
		company.Country = "NL"
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&company).Error; err != nil {
		return nil, err
	}
	return &company, nil
}

func GetCompany(ctx context.Context) (*Company, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, errors.New("company id is required")
	}
	return GetCompanyById(ctx, companyId)
}

func GetCompanyById(ctx context.Context, companyId string) (*Company, error) {
	var company Company
	exists, err := config.GetRedisObject("Company:"+companyId, &company)
	if err != nil {
		return nil, err
	}
	if exists {
		return &company, nil
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Where("id = ?", companyId).Take(&company).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	_ = config.SetRedisObject("Company:"+companyId, &company, time.Hour)
	return &company, nil
}
