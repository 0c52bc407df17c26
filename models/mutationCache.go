package models

import (
	"context"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

// MutationCacheEntry stores one raw eBoekhouden mutation payload.
// Rows are insert-once, read-many; the cache is cleared only by an explicit reset.
type MutationCacheEntry struct {
	ID           int        `gorm:"primary_key" json:"id"`
	CompanyId    string     `gorm:"uniqueIndex:idx_mutation_cache,priority:1;not null" json:"company_id"`
	MutationId   string     `gorm:"uniqueIndex:idx_mutation_cache,priority:2;size:20;not null" json:"mutation_id"`
	MutationType int        `gorm:"index" json:"mutation_type"`
	MutationDate *time.Time `json:"mutation_date"`
	MutationData []byte     `gorm:"type:json" json:"mutation_data"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

const mysqlDuplicateEntry = 1062

func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == mysqlDuplicateEntry
	}
	return false
}

// CacheMutation persists one raw payload. A concurrent duplicate insert is not
// an error: the first writer wins and the row is immutable afterwards.
func CacheMutation(ctx context.Context, db *gorm.DB, entry *MutationCacheEntry) error {
	if entry.CompanyId == "" {
		return errors.New("company id is required")
	}
	err := db.WithContext(ctx).Create(entry).Error
	if err != nil && isDuplicateKeyErr(err) {
		return nil
	}
	return err
}

// GetCachedMutation returns the raw payload for the mutation id; (nil, nil) on a miss.
func GetCachedMutation(ctx context.Context, db *gorm.DB, companyId string, mutationId string) (*MutationCacheEntry, error) {
	var entry MutationCacheEntry
	err := db.WithContext(ctx).
		Where("company_id = ? AND mutation_id = ?", companyId, mutationId).
		Take(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

// ListCachedMutationIds returns the cached mutation ids for the company as a set.
// The cache scanner uses this to skip already-fetched ids on resume.
func ListCachedMutationIds(ctx context.Context, db *gorm.DB, companyId string) (map[string]struct{}, error) {
	var ids []string
	err := db.WithContext(ctx).Model(&MutationCacheEntry{}).
		Where("company_id = ?", companyId).
		Pluck("mutation_id", &ids).Error
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

// ListCachedMutationsByType returns cached entries of one mutation type in
// ascending mutation id order (numeric, so cast in SQL).
func ListCachedMutationsByType(ctx context.Context, db *gorm.DB, companyId string, mutationType int) ([]*MutationCacheEntry, error) {
	var entries []*MutationCacheEntry
	err := db.WithContext(ctx).
		Where("company_id = ? AND mutation_type = ?", companyId, mutationType).
		Order("CAST(mutation_id AS UNSIGNED)").
		Find(&entries).Error
	return entries, err
}

// CountCachedMutations returns the number of cached entries for the company.
func CountCachedMutations(ctx context.Context, db *gorm.DB, companyId string) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Model(&MutationCacheEntry{}).
		Where("company_id = ?", companyId).
		Count(&count).Error
	return count, err
}

// ClearMutationCache removes all cached mutations for the company.
// Only the explicit reset path calls this.
func ClearMutationCache(ctx context.Context, db *gorm.DB, companyId string) error {
	return db.WithContext(ctx).
		Where("company_id = ?", companyId).
		Delete(&MutationCacheEntry{}).Error
}
