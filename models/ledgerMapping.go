package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/boekhouden_backend/config"
	"gorm.io/gorm"
)

// LedgerMapping binds an external eBoekhouden ledger id to an internal account.
// At most one active mapping per ledger id; lookups are exact-match only.
type LedgerMapping struct {
	ID         int       `gorm:"primary_key" json:"id"`
	CompanyId  string    `gorm:"uniqueIndex:idx_ledger_mapping,priority:1;not null" json:"company_id"`
	LedgerId   string    `gorm:"uniqueIndex:idx_ledger_mapping,priority:2;size:20;not null" json:"ledger_id"`
	AccountId  int       `gorm:"index;not null" json:"account_id"`
	LedgerCode string    `gorm:"size:20" json:"ledger_code"`
	LedgerName string    `gorm:"size:140" json:"ledger_name"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func ledgerMappingCacheKey(companyId string, ledgerId string) string {
	return "LedgerMapping:" + companyId + ":" + ledgerId
}

// GetLedgerMapping returns the mapping for the external ledger id, redis-cached.
// (nil, nil) when unmapped.
func GetLedgerMapping(ctx context.Context, tx *gorm.DB, companyId string, ledgerId string) (*LedgerMapping, error) {
	var mapping LedgerMapping
	exists, err := config.GetRedisObject(ledgerMappingCacheKey(companyId, ledgerId), &mapping)
	if err != nil {
		return nil, err
	}
	if exists {
		return &mapping, nil
	}

	err = tx.WithContext(ctx).
		Where("company_id = ? AND ledger_id = ?", companyId, ledgerId).
		Take(&mapping).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	_ = config.SetRedisObject(ledgerMappingCacheKey(companyId, ledgerId), &mapping, time.Hour)
	return &mapping, nil
}

// ClearLedgerMappings removes every mapping of the company, including the
// redis-cached copies.
func ClearLedgerMappings(ctx context.Context, db *gorm.DB, companyId string) error {
	var mappings []LedgerMapping
	if err := db.WithContext(ctx).Where("company_id = ?", companyId).Find(&mappings).Error; err != nil {
		return err
	}
	for _, mapping := range mappings {
		_ = config.RemoveRedisKey(ledgerMappingCacheKey(mapping.CompanyId, mapping.LedgerId))
	}
	return db.WithContext(ctx).Where("company_id = ?", companyId).Delete(&LedgerMapping{}).Error
}

// SaveLedgerMapping creates or updates the mapping for the external ledger id.
func SaveLedgerMapping(ctx context.Context, tx *gorm.DB, mapping *LedgerMapping) error {
	if mapping.CompanyId == "" {
		return errors.New("company id is required")
	}

	var existing LedgerMapping
	err := tx.WithContext(ctx).
		Where("company_id = ? AND ledger_id = ?", mapping.CompanyId, mapping.LedgerId).
		Take(&existing).Error
	if err == nil {
		if uerr := tx.WithContext(ctx).Model(&existing).Updates(map[string]interface{}{
			"AccountId":  mapping.AccountId,
			"LedgerCode": mapping.LedgerCode,
			"LedgerName": mapping.LedgerName,
		}).Error; uerr != nil {
			return uerr
		}
		mapping.ID = existing.ID
	} else if errors.Is(err, gorm.ErrRecordNotFound) {
		if cerr := tx.WithContext(ctx).Create(mapping).Error; cerr != nil {
			return cerr
		}
	} else {
		return err
	}

	_ = config.RemoveRedisKey(ledgerMappingCacheKey(mapping.CompanyId, mapping.LedgerId))
	return nil
}
