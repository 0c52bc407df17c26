package migration

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/boekhouden_backend/config"
	"bitbucket.org/mmdatafocus/boekhouden_backend/eboekhouden"
	"bitbucket.org/mmdatafocus/boekhouden_backend/models"
	"bitbucket.org/mmdatafocus/boekhouden_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ConnectRequest struct {
	APIURL             string `json:"api_url"`
	APIToken           string `json:"api_token" binding:"required"`
	Source             string `json:"source"`
	DefaultCostCenter  string `json:"default_cost_center"`
	DefaultCashAccount string `json:"default_cash_account"`
}

type StatusResponse struct {
	Status           string       `json:"status"`
	LastRunAt        *string      `json:"last_run_at"`
	LastSuccessRunAt *string      `json:"last_success_run_at"`
	CachedMutations  int64        `json:"cached_mutations"`
	LatestRun        *RunResponse `json:"latest_run,omitempty"`
}

type RunResponse struct {
	ID          uuid.UUID                `json:"id"`
	Status      string                   `json:"status"`
	Progress    int                      `json:"progress"`
	StatusText  string                   `json:"status_text"`
	TriggeredBy string                   `json:"triggered_by"`
	Stats       models.MigrationRunStats `json:"stats"`
	ErrorCount  int                      `json:"error_count"`
	StartedAt   *string                  `json:"started_at"`
	FinishedAt  *string                  `json:"finished_at"`
}

type RunDetailResponse struct {
	RunResponse
	Errors []RunErrorResponse `json:"errors"`
}

type RunErrorResponse struct {
	ID           uint   `json:"id"`
	MutationId   string `json:"mutation_id"`
	MutationType *int   `json:"mutation_type"`
	ErrorCode    string `json:"error_code"`
	Message      string `json:"message"`
	Retryable    bool   `json:"retryable"`
}

// ConnectHandler stores the eBoekhouden credentials after proving them with a
// session round trip.
func ConnectHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		companyId, err := resolveCompanyID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req ConnectRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}

		api, err := eboekhouden.NewClient(eboekhouden.Config{
			APIURL:   req.APIURL,
			APIToken: req.APIToken,
			Source:   req.Source,
		})
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := api.ValidateSession(c.Request.Context()); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "eboekhouden credentials rejected: " + err.Error()})
			return
		}

		ctx := utils.SetCompanyIdInContext(c.Request.Context(), companyId)
		db := config.GetDB().WithContext(ctx)

		conn, err := models.GetMigrationConnection(ctx, db, companyId)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		if conn == nil {
			conn = &models.MigrationConnection{
				CompanyId:          companyId,
				Provider:           models.MigrationProviderEboekhouden,
				Status:             models.MigrationConnectionConnected,
				APIURL:             req.APIURL,
				APIToken:           req.APIToken,
				Source:             req.Source,
				DefaultCostCenter:  req.DefaultCostCenter,
				DefaultCashAccount: req.DefaultCashAccount,
			}
			if err := db.Create(conn).Error; err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
		} else {
			if err := db.Model(conn).Updates(map[string]interface{}{
				"status":               models.MigrationConnectionConnected,
				"api_url":              req.APIURL,
				"api_token":            req.APIToken,
				"source":               req.Source,
				"default_cost_center":  req.DefaultCostCenter,
				"default_cash_account": req.DefaultCashAccount,
				"updated_at":           time.Now(),
			}).Error; err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
		}

		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

func StatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		companyId, err := resolveCompanyID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		ctx := utils.SetCompanyIdInContext(c.Request.Context(), companyId)
		db := config.GetDB().WithContext(ctx)

		conn, err := models.GetMigrationConnection(ctx, db, companyId)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if conn == nil {
			c.JSON(http.StatusOK, StatusResponse{Status: models.MigrationConnectionDisconnected})
			return
		}

		cached, err := models.CountCachedMutations(ctx, db, companyId)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		resp := StatusResponse{
			Status:           conn.Status,
			LastRunAt:        formatTime(conn.LastRunAt),
			LastSuccessRunAt: formatTime(conn.LastSuccessRunAt),
			CachedMutations:  cached,
		}

		var latest models.MigrationRun
		if err := db.Where("company_id = ?", companyId).Order("created_at desc").Limit(1).
			Take(&latest).Error; err == nil {
			run := mapRunToResponse(&latest)
			resp.LatestRun = &run
		}

		c.JSON(http.StatusOK, resp)
	}
}

// MigrateHandler creates a run row and schedules it.
func MigrateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		companyId, err := resolveCompanyID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		ctx := utils.SetCompanyIdInContext(c.Request.Context(), companyId)
		db := config.GetDB().WithContext(ctx)

		conn, err := models.GetMigrationConnection(ctx, db, companyId)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if conn == nil || conn.Status != models.MigrationConnectionConnected {
			c.JSON(http.StatusConflict, gin.H{"error": "eboekhouden is not connected"})
			return
		}

		var active int64
		if err := db.Model(&models.MigrationRun{}).
			Where("company_id = ? AND status NOT IN ?", companyId,
				[]string{models.MigrationRunStatusDone, models.MigrationRunStatusFailed}).
			Count(&active).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if active > 0 {
			c.JSON(http.StatusConflict, gin.H{"error": ErrRunInProgress.Error()})
			return
		}

		run := models.MigrationRun{
			ID:           uuid.New(),
			CompanyId:    companyId,
			ConnectionId: conn.ID,
			Status:       models.MigrationRunStatusIdle,
			TriggeredBy:  models.MigrationTriggeredManual,
			StatusText:   "queued",
		}
		if err := db.Create(&run).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		if err := PublishMigrationRun(c.Request.Context(), run.ID, companyId, conn.ID); err != nil {
			config.LogError(config.GetLogger(), "migration", "MigrateHandler", "publishing run", run.ID, err)
		}

		c.JSON(http.StatusOK, gin.H{"id": run.ID})
	}
}

func RunHistoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		companyId, err := resolveCompanyID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		limit := 20
		if v := strings.TrimSpace(c.Query("limit")); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
				limit = n
			}
		}

		ctx := utils.SetCompanyIdInContext(c.Request.Context(), companyId)
		db := config.GetDB().WithContext(ctx)

		var runs []models.MigrationRun
		if err := db.Where("company_id = ?", companyId).
			Order("created_at desc").
			Limit(limit).
			Find(&runs).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		items := make([]RunResponse, 0, len(runs))
		for i := range runs {
			items = append(items, mapRunToResponse(&runs[i]))
		}
		c.JSON(http.StatusOK, gin.H{"items": items})
	}
}

func RunDetailHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		companyId, run, ok := loadRun(c)
		if !ok {
			return
		}
		ctx := utils.SetCompanyIdInContext(c.Request.Context(), companyId)
		db := config.GetDB().WithContext(ctx)

		errs, err := models.ListMigrationErrors(ctx, db, run.ID, maxRecordedErrors)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		resp := RunDetailResponse{
			RunResponse: mapRunToResponse(run),
			Errors:      mapRunErrors(errs),
		}
		c.JSON(http.StatusOK, resp)
	}
}

// RunReportHandler exports the run report workbook.
func RunReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		companyId, run, ok := loadRun(c)
		if !ok {
			return
		}
		ctx := utils.SetCompanyIdInContext(c.Request.Context(), companyId)
		db := config.GetDB().WithContext(ctx)

		errs, err := models.ListMigrationErrors(ctx, db, run.ID, 0)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		workbook, err := BuildRunReport(run, errs)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		filename := "migration-report-" + run.ID.String() + ".xlsx"
		c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		if err := workbook.Write(c.Writer); err != nil {
			config.LogError(config.GetLogger(), "migration", "RunReportHandler", "writing workbook", run.ID, err)
		}
	}
}

// ResetHandler clears the migration bookkeeping for the company: the mutation
// cache, ledger mappings and recorded runs. Imported ledger documents are
// deliberately left untouched.
func ResetHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		companyId, err := resolveCompanyID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		ctx := utils.SetCompanyIdInContext(c.Request.Context(), companyId)
		db := config.GetDB().WithContext(ctx)

		var active int64
		if err := db.Model(&models.MigrationRun{}).
			Where("company_id = ? AND status NOT IN ?", companyId,
				[]string{models.MigrationRunStatusIdle, models.MigrationRunStatusDone, models.MigrationRunStatusFailed}).
			Count(&active).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if active > 0 {
			c.JSON(http.StatusConflict, gin.H{"error": "cannot reset while a run is in progress"})
			return
		}

		if err := models.ClearMutationCache(ctx, db, companyId); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if err := models.ClearLedgerMappings(ctx, db, companyId); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if err := db.Where("company_id = ?", companyId).Delete(&models.MigrationError{}).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if err := db.Where("company_id = ?", companyId).Delete(&models.MigrationRun{}).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

func loadRun(c *gin.Context) (string, *models.MigrationRun, bool) {
	companyId, err := resolveCompanyID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return "", nil, false
	}

	runId, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
		return "", nil, false
	}

	ctx := utils.SetCompanyIdInContext(c.Request.Context(), companyId)
	run, err := models.GetMigrationRun(ctx, config.GetDB(), companyId, runId)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return "", nil, false
	}
	if run == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return "", nil, false
	}
	return companyId, run, true
}

// resolveCompanyID takes the company from the authenticated user, allowing an
// admin to act on another company via the company_id query parameter.
func resolveCompanyID(c *gin.Context) (string, error) {
	username, ok := utils.GetUsernameFromContext(c.Request.Context())
	if !ok || strings.TrimSpace(username) == "" {
		return "", errors.New("unauthorized")
	}

	user, err := models.GetUserByUsername(c.Request.Context(), username)
	if err != nil {
		return "", errors.New("unauthorized")
	}

	if requested := strings.TrimSpace(c.Query("company_id")); requested != "" {
		if err := authorizeCompany(c.Request.Context(), user, requested); err != nil {
			return "", err
		}
		return requested, nil
	}

	if strings.TrimSpace(user.CompanyId) == "" {
		return "", errors.New("company_id is required")
	}
	return user.CompanyId, nil
}

func authorizeCompany(_ context.Context, user *models.User, companyId string) error {
	if user.Role == models.UserRoleAdmin {
		return nil
	}
	if user.CompanyId != companyId {
		return errors.New("unauthorized")
	}
	return nil
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

func mapRunToResponse(run *models.MigrationRun) RunResponse {
	return RunResponse{
		ID:          run.ID,
		Status:      run.Status,
		Progress:    run.Progress,
		StatusText:  run.StatusText,
		TriggeredBy: run.TriggeredBy,
		Stats:       run.Stats(),
		ErrorCount:  run.ErrorCount,
		StartedAt:   formatTime(run.StartedAt),
		FinishedAt:  formatTime(run.FinishedAt),
	}
}

func mapRunErrors(errorsList []*models.MigrationError) []RunErrorResponse {
	out := make([]RunErrorResponse, 0, len(errorsList))
	for _, errItem := range errorsList {
		out = append(out, RunErrorResponse{
			ID:           errItem.ID,
			MutationId:   errItem.MutationId,
			MutationType: errItem.MutationType,
			ErrorCode:    errItem.ErrorCode,
			Message:      errItem.Message,
			Retryable:    errItem.Retryable,
		})
	}
	return out
}
