package migration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/boekhouden_backend/eboekhouden"
	"bitbucket.org/mmdatafocus/boekhouden_backend/models"
	"github.com/bsm/redislock"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ErrRunInProgress is returned when another run already holds the company lock.
var ErrRunInProgress = errors.New("a migration run is already in progress for this company")

const (
	runLockTTL      = 5 * time.Minute
	importBatchSize = 50
)

// importOrder is the sequence the import phase walks the cached mutation
// types in. Invoices come before their payments so open-item matching stays
// possible downstream; memorials and the generic types close the run.
var importOrder = []eboekhouden.MutationType{
	eboekhouden.MutationTypePurchaseInvoice,
	eboekhouden.MutationTypeSalesInvoice,
	eboekhouden.MutationTypeCustomerPayment,
	eboekhouden.MutationTypeSupplierPayment,
	eboekhouden.MutationTypeMoneyReceived,
	eboekhouden.MutationTypeMoneyPaid,
	eboekhouden.MutationTypeMemorial,
	eboekhouden.MutationTypeBankImport,
	eboekhouden.MutationTypeManualEntry,
	eboekhouden.MutationTypeStockMutation,
}

// Orchestrator drives one migration run through its phases:
// caching, opening balances, importing. Single-threaded; the only concurrency
// guard is the per-company redis lock.
type Orchestrator struct {
	db     *gorm.DB
	api    APIClient
	locker *redislock.Client
	logger *logrus.Logger
}

func NewOrchestrator(db *gorm.DB, api APIClient, locker *redislock.Client, logger *logrus.Logger) *Orchestrator {
	return &Orchestrator{db: db, api: api, locker: locker, logger: logger}
}

// Run executes the migration run to completion. Re-running a company is
// resume-idempotent: cached mutations are not re-fetched and imported
// documents are skipped by their mutation number.
func (o *Orchestrator) Run(ctx context.Context, companyId string, runId uuid.UUID) error {
	lock, err := o.obtainLock(ctx, companyId)
	if err != nil {
		return err
	}
	if lock != nil {
		defer func() { _ = lock.Release(context.Background()) }()
		go o.refreshLock(ctx, lock)
	}

	run, err := models.GetMigrationRun(ctx, o.db, companyId, runId)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("migration run %s not found", runId)
	}
	if run.Status == models.MigrationRunStatusDone || run.Status == models.MigrationRunStatusFailed {
		return nil
	}

	conn, err := models.GetMigrationConnection(ctx, o.db, companyId)
	if err != nil {
		return err
	}
	if conn == nil || conn.Status != models.MigrationConnectionConnected {
		return o.fail(ctx, run, errors.New("eboekhouden is not connected"))
	}

	now := time.Now()
	if err := o.db.WithContext(ctx).Model(run).Updates(map[string]interface{}{
		"status":      models.MigrationRunStatusCaching,
		"started_at":  now,
		"progress":    0,
		"status_text": "estimating mutation id range",
	}).Error; err != nil {
		return err
	}
	if err := o.db.WithContext(ctx).Model(conn).Update("last_run_at", now).Error; err != nil {
		return err
	}

	settings := Settings{
		CompanyId:          companyId,
		APIURL:             conn.APIURL,
		APIToken:           conn.APIToken,
		Source:             conn.Source,
		DefaultCostCenter:  conn.DefaultCostCenter,
		DefaultCashAccount: conn.DefaultCashAccount,
	}
	if company, err := models.GetCompanyById(ctx, companyId); err == nil && company != nil {
		settings.CompanyName = company.Name
	}

	store := NewStore(o.db, companyId)

	if err := o.cachePhase(ctx, store, run); err != nil {
		return o.fail(ctx, run, err)
	}

	ledgers := NewLedgerResolver(o.api, o.logger)
	parties := NewPartyResolver(o.api, settings.CompanyName, o.logger)
	items := NewItemResolver(o.logger)

	o.setProgress(ctx, run, 32, "syncing chart of accounts and cost centers")
	seeded, err := ledgers.SyncChartOfAccounts(ctx, store)
	if err != nil {
		return o.fail(ctx, run, err)
	}
	centers, err := SyncCostCenters(ctx, o.api, store)
	if err != nil {
		return o.fail(ctx, run, err)
	}
	costCenterId := defaultCostCenterId(centers, settings.DefaultCostCenter)
	o.logger.WithFields(logrus.Fields{
		"run_id":       run.ID,
		"mappings":     seeded,
		"cost_centers": len(centers),
	}).Info("chart of accounts and cost centers synced")

	// A failed preload is not fatal; party resolution falls back to the
	// relation detail endpoint per mutation.
	if _, err := parties.PreloadRelations(ctx); err != nil {
		o.logger.WithError(err).Warn("relation preload failed, using per-relation lookups")
	}

	coordinator := NewCoordinator(store, o.logger, run.ID,
		NewOpeningBalanceProcessor(ledgers, parties, costCenterId, o.logger),
		NewInvoiceProcessor(ledgers, parties, items, o.logger),
		NewPaymentProcessor(ledgers, parties, settings.DefaultCashAccount, costCenterId, o.logger),
		NewMemorialProcessor(ledgers, parties, items, costCenterId, o.logger),
	)

	if err := o.openingBalancePhase(ctx, store, run, coordinator); err != nil {
		o.persistState(ctx, run, coordinator)
		return o.fail(ctx, run, err)
	}

	if err := o.importPhase(ctx, store, run, coordinator); err != nil {
		o.persistState(ctx, run, coordinator)
		return o.fail(ctx, run, err)
	}

	o.persistState(ctx, run, coordinator)

	finishedAt := time.Now()
	if err := o.db.WithContext(ctx).Model(run).Updates(map[string]interface{}{
		"status":      models.MigrationRunStatusDone,
		"progress":    100,
		"status_text": "migration complete",
		"finished_at": finishedAt,
	}).Error; err != nil {
		return err
	}
	return o.db.WithContext(ctx).Model(conn).Update("last_success_run_at", finishedAt).Error
}

func (o *Orchestrator) obtainLock(ctx context.Context, companyId string) (*redislock.Lock, error) {
	if o.locker == nil {
		return nil, nil
	}
	lock, err := o.locker.Obtain(ctx, "migration:run:"+companyId, runLockTTL, nil)
	if err != nil {
		if errors.Is(err, redislock.ErrNotObtained) {
			return nil, ErrRunInProgress
		}
		return nil, err
	}
	return lock, nil
}

func (o *Orchestrator) refreshLock(ctx context.Context, lock *redislock.Lock) {
	ticker := time.NewTicker(runLockTTL / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := lock.Refresh(ctx, runLockTTL, nil); err != nil {
				o.logger.WithError(err).Warn("migration run lock refresh failed")
				return
			}
		}
	}
}

// cachePhase estimates the external id range and fills the mutation cache.
// An empty administration is not an error; the later phases simply find
// nothing to import.
func (o *Orchestrator) cachePhase(ctx context.Context, store Store, run *models.MigrationRun) error {
	idRange, err := o.api.EstimateIDRange(ctx)
	if err != nil {
		return fmt.Errorf("estimating mutation id range: %w", err)
	}
	if !idRange.Found {
		o.logger.WithField("run_id", run.ID).Info("id range probes found no mutations, scanning default range")
	}

	// The upper bound is refined in steps of ten, so scan past it far enough
	// for the consecutive-miss limit to find the true end.
	maxId := idRange.HighestId + DefaultMaxConsecutiveMisses
	o.setProgress(ctx, run, 5, fmt.Sprintf("caching mutations %d..%d", idRange.LowestId, maxId))

	scanner := NewCacheScanner(o.api, o.logger)
	total := maxId - idRange.LowestId + 1
	scanner.OnProgress(func(p ScanProgress) {
		pct := 5
		if total > 0 {
			pct = 5 + 25*p.TotalChecked/total
		}
		o.setProgress(ctx, run, pct, fmt.Sprintf("caching mutation %d (%d cached)", p.CurrentId, p.Found))
	})

	result, err := scanner.ScanAndCacheRange(ctx, store, idRange.LowestId, maxId)
	if err != nil {
		return fmt.Errorf("caching mutations: %w", err)
	}
	o.logger.WithFields(logrus.Fields{
		"run_id":  run.ID,
		"cached":  result.Cached,
		"skipped": result.Skipped,
	}).Info("mutation cache phase complete")
	return nil
}

// openingBalancePhase imports the type 0 mutations. A failure here is a hard
// stop: importing transactions on top of a wrong opening position compounds
// the damage.
func (o *Orchestrator) openingBalancePhase(ctx context.Context, store Store, run *models.MigrationRun, coordinator *Coordinator) error {
	o.setStatus(ctx, run, models.MigrationRunStatusOpeningBalances, 30, "importing opening balances")

	mutations, err := openingBalanceMutations(ctx, o.api, store)
	if err != nil {
		return err
	}
	failedBefore := coordinator.Stats.Failed
	for _, mutation := range mutations {
		if err := ctx.Err(); err != nil {
			return err
		}
		coordinator.ProcessMutation(ctx, mutation)
	}
	if coordinator.Stats.Failed > failedBefore {
		return fmt.Errorf("%d opening balance mutations failed", coordinator.Stats.Failed-failedBefore)
	}
	return nil
}

// importPhase walks the cached mutations type by type in ascending id order,
// updating run progress per batch.
func (o *Orchestrator) importPhase(ctx context.Context, store Store, run *models.MigrationRun, coordinator *Coordinator) error {
	o.setStatus(ctx, run, models.MigrationRunStatusImporting, 40, "importing mutations")

	total, err := store.CountCachedMutations(ctx)
	if err != nil {
		return err
	}

	processed := 0
	for _, mutationType := range importOrder {
		entries, err := store.CachedMutationsByType(ctx, int(mutationType))
		if err != nil {
			return err
		}
		for i, entry := range entries {
			if err := ctx.Err(); err != nil {
				return err
			}
			mutation, err := ParseCachedMutation(entry)
			if err != nil {
				return fmt.Errorf("decoding cached mutation %s: %w", entry.MutationId, err)
			}
			coordinator.ProcessMutation(ctx, mutation)
			processed++

			if (i+1)%importBatchSize == 0 {
				pct := 40
				if total > 0 {
					pct = 40 + int(60*int64(processed)/total)
				}
				o.setProgress(ctx, run, pct, fmt.Sprintf("importing %s mutations (%d/%d)", mutationType, processed, total))
				o.persistState(ctx, run, coordinator)
			}
		}
	}
	return nil
}

// persistState flushes the coordinator's counters and recorded errors onto
// the run row. Errors are inserted once; the coordinator's slice is drained.
func (o *Orchestrator) persistState(ctx context.Context, run *models.MigrationRun, coordinator *Coordinator) {
	run.SetStats(models.MigrationRunStats{
		Total:   coordinator.Stats.Processed,
		Created: coordinator.Stats.Created,
		Skipped: coordinator.Stats.Skipped,
		Failed:  coordinator.Stats.Failed,
	})
	if err := o.db.WithContext(ctx).Model(run).Updates(map[string]interface{}{
		"stats_json":  run.StatsJSON,
		"error_count": coordinator.Stats.Failed,
	}).Error; err != nil {
		o.logger.WithError(err).Warn("persisting run stats failed")
	}

	for _, recorded := range coordinator.Errors {
		recorded.CompanyId = run.CompanyId
		if err := o.db.WithContext(ctx).Create(recorded).Error; err != nil {
			o.logger.WithError(err).Warn("persisting migration error failed")
		}
	}
	coordinator.Errors = coordinator.Errors[:0]
}

func (o *Orchestrator) setStatus(ctx context.Context, run *models.MigrationRun, status string, progress int, text string) {
	if err := o.db.WithContext(ctx).Model(run).Updates(map[string]interface{}{
		"status":      status,
		"progress":    progress,
		"status_text": text,
	}).Error; err != nil {
		o.logger.WithError(err).Warn("updating run status failed")
	}
}

func (o *Orchestrator) setProgress(ctx context.Context, run *models.MigrationRun, progress int, text string) {
	if err := o.db.WithContext(ctx).Model(run).Updates(map[string]interface{}{
		"progress":    progress,
		"status_text": text,
	}).Error; err != nil {
		o.logger.WithError(err).Warn("updating run progress failed")
	}
}

func (o *Orchestrator) fail(ctx context.Context, run *models.MigrationRun, cause error) error {
	o.logger.WithFields(logrus.Fields{
		"run_id":     run.ID,
		"company_id": run.CompanyId,
	}).WithError(cause).Error("migration run failed")

	finishedAt := time.Now()
	if err := o.db.WithContext(ctx).Model(run).Updates(map[string]interface{}{
		"status":      models.MigrationRunStatusFailed,
		"status_text": cause.Error(),
		"finished_at": finishedAt,
	}).Error; err != nil {
		o.logger.WithError(err).Warn("marking run failed did not persist")
	}
	return cause
}
