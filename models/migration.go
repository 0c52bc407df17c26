package models

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	MigrationProviderEboekhouden = "eboekhouden"
)

const (
	MigrationConnectionConnected    = "connected"
	MigrationConnectionDisconnected = "disconnected"
	MigrationConnectionError        = "error"
)

// Run phases double as statuses; the orchestrator walks them in order.
const (
	MigrationRunStatusIdle            = "idle"
	MigrationRunStatusCaching         = "caching"
	MigrationRunStatusOpeningBalances = "opening_balances"
	MigrationRunStatusImporting       = "importing"
	MigrationRunStatusDone            = "done"
	MigrationRunStatusFailed          = "failed"
)

const (
	MigrationTriggeredManual = "manual"
	MigrationTriggeredRetry  = "retry"
)

// MigrationConnection holds the per-company eBoekhouden credentials and
// defaults. Threaded into every component as an explicit settings struct;
// nothing reads these from a global.
type MigrationConnection struct {
	ID                 uint       `gorm:"primary_key" json:"id"`
	CompanyId          string     `gorm:"uniqueIndex:idx_migration_conn,priority:1;not null" json:"company_id"`
	Provider           string     `gorm:"uniqueIndex:idx_migration_conn,priority:2;size:50;not null" json:"provider"`
	Status             string     `gorm:"size:20;not null" json:"status"`
	APIURL             string     `gorm:"size:255" json:"api_url"`
	APIToken           string     `gorm:"type:text" json:"-"`
	Source             string     `gorm:"size:100" json:"source"`
	DefaultCostCenter  string     `gorm:"size:255" json:"default_cost_center"`
	DefaultCashAccount string     `gorm:"size:255" json:"default_cash_account"`
	LastRunAt          *time.Time `json:"last_run_at"`
	LastSuccessRunAt   *time.Time `json:"last_success_run_at"`
	CreatedAt          time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// MigrationRunStats is persisted as JSON on the run row.
type MigrationRunStats struct {
	Total   int `json:"total"`
	Created int `json:"created"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

type MigrationRun struct {
	ID           uuid.UUID  `gorm:"type:char(36);primary_key" json:"id"`
	CompanyId    string     `gorm:"index;not null" json:"company_id"`
	ConnectionId uint       `gorm:"index;not null" json:"connection_id"`
	Status       string     `gorm:"size:20;not null" json:"status"`
	TriggeredBy  string     `gorm:"size:20" json:"triggered_by"`
	Progress     int        `json:"progress"`
	StatusText   string     `gorm:"size:255" json:"status_text"`
	StatsJSON    []byte     `gorm:"type:json" json:"stats"`
	ErrorCount   int        `json:"error_count"`
	StartedAt    *time.Time `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (r *MigrationRun) Stats() MigrationRunStats {
	var stats MigrationRunStats
	if len(r.StatsJSON) > 0 {
		_ = json.Unmarshal(r.StatsJSON, &stats)
	}
	return stats
}

func (r *MigrationRun) SetStats(stats MigrationRunStats) {
	b, _ := json.Marshal(stats)
	r.StatsJSON = b
}

type MigrationError struct {
	ID           uint      `gorm:"primary_key" json:"id"`
	RunId        uuid.UUID `gorm:"type:char(36);index;not null" json:"run_id"`
	CompanyId    string    `gorm:"index;not null" json:"company_id"`
	MutationId   string    `gorm:"size:20" json:"mutation_id"`
	MutationType *int      `json:"mutation_type"`
	ErrorCode    string    `gorm:"size:64" json:"error_code"`
	Message      string    `gorm:"type:text" json:"message"`
	DebugJSON    []byte    `gorm:"type:json" json:"debug"`
	Retryable    bool      `gorm:"default:false" json:"retryable"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// MemorialDirectionOverride pins the debit/credit direction for one external
// ledger id, overriding the category heuristic. These are environment-specific
// data maintained per company, not algorithmic truth.
type MemorialDirectionOverride struct {
	ID            int       `gorm:"primary_key" json:"id"`
	CompanyId     string    `gorm:"uniqueIndex:idx_direction_override,priority:1;not null" json:"company_id"`
	LedgerId      int       `gorm:"uniqueIndex:idx_direction_override,priority:2;not null" json:"ledger_id"`
	DebitIncrease bool      `gorm:"not null" json:"debit_increase"`
	Reason        string    `gorm:"size:255" json:"reason"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func GetMigrationConnection(ctx context.Context, db *gorm.DB, companyId string) (*MigrationConnection, error) {
	var conn MigrationConnection
	err := db.WithContext(ctx).
		Where("company_id = ? AND provider = ?", companyId, MigrationProviderEboekhouden).
		Take(&conn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &conn, nil
}

func GetMigrationRun(ctx context.Context, db *gorm.DB, companyId string, runId uuid.UUID) (*MigrationRun, error) {
	var run MigrationRun
	err := db.WithContext(ctx).
		Where("id = ? AND company_id = ?", runId, companyId).
		Take(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &run, nil
}

func ListMigrationErrors(ctx context.Context, db *gorm.DB, runId uuid.UUID, limit int) ([]*MigrationError, error) {
	var errs []*MigrationError
	q := db.WithContext(ctx).Where("run_id = ?", runId).Order("id")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&errs).Error
	return errs, err
}

// ListDirectionOverrides loads the per-ledger direction overrides as a map.
func ListDirectionOverrides(ctx context.Context, db *gorm.DB, companyId string) (map[int]bool, error) {
	var rows []MemorialDirectionOverride
	if err := db.WithContext(ctx).Where("company_id = ?", companyId).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[int]bool, len(rows))
	for _, row := range rows {
		out[row.LedgerId] = row.DebitIncrease
	}
	return out, nil
}
