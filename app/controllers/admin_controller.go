package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/dea-registry/app/requests"
	"github.com/dea-registry/app/responses"
	"github.com/dea-registry/app/services"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AdminController carga del callejero, índices, caché y preprocesado
type AdminController struct {
	adminService      *services.AdminService
	preprocessService *services.PreprocessingService
	logger            *zap.Logger
}

// NewAdminController creates an AdminController
func NewAdminController(adminService *services.AdminService, preprocessService *services.PreprocessingService, logger *zap.Logger) *AdminController {
	return &AdminController{
		adminService:      adminService,
		preprocessService: preprocessService,
		logger:            logger,
	}
}

// SeedGazetteer POST /v1/admin/gazetteer/seed?dry_run=true
func (ac *AdminController) SeedGazetteer(c *gin.Context) {
	var req requests.SeedGazetteerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	dryRun := c.Query("dry_run") == "true"
	result, err := ac.adminService.SeedGazetteer(c.Request.Context(), req.GazetteerVersion, req.Data, services.SeedOptions{
		DryRun:         dryRun,
		RebuildIndexes: req.RebuildIndexes,
	})
	if errors.Is(err, services.ErrInvalidGazetteerData) && result != nil {
		c.JSON(http.StatusUnprocessableEntity, seedResponse(result, "El callejero tiene errores de validación"))
		return
	}
	if err != nil {
		ac.logger.Error("gazetteer seed failed", zap.Error(err))
		abortWithError(c, ac.logger, err)
		return
	}

	message := "Callejero cargado correctamente"
	if dryRun {
		message = "Validación completada, no se ha escrito nada"
	}
	c.JSON(http.StatusOK, seedResponse(result, message))
}

func seedResponse(r *services.SeedResult, message string) responses.SeedGazetteerResponse {
	return responses.SeedGazetteerResponse{
		ValidationPassed:   r.Validation.Passed,
		Warnings:           r.Validation.Warnings,
		EstimatedBuildTime: r.Validation.EstimatedBuildTime,
		RecordsProcessed:   r.RecordsProcessed,
		RecordsWritten:     r.RecordsWritten,
		IndexesBuilt:       r.IndexesBuilt,
		ProcessingTimeMs:   r.ProcessingTimeMs,
		DryRun:             r.DryRun,
		Message:            message,
	}
}

// BuildIndexes POST /v1/admin/indexes/build
func (ac *AdminController) BuildIndexes(c *gin.Context) {
	startTime := time.Now()
	if err := ac.adminService.BuildIndexes(c.Request.Context()); err != nil {
		abortWithError(c, ac.logger, err)
		return
	}
	c.JSON(http.StatusOK, responses.SuccessResponse{
		Success:   true,
		Message:   "Índices reconstruidos",
		Data:      gin.H{"processing_time_ms": time.Since(startTime).Milliseconds()},
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// InvalidateCache POST /v1/admin/cache/invalidate
func (ac *AdminController) InvalidateCache(c *gin.Context) {
	var req requests.InvalidateCacheRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	if err := ac.adminService.InvalidateCache(c.Request.Context(), req.All); err != nil {
		abortWithError(c, ac.logger, err)
		return
	}
	c.JSON(http.StatusOK, responses.SuccessResponse{
		Success:   true,
		Message:   "Caché de validaciones invalidada",
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// GetStats GET /v1/admin/stats
func (ac *AdminController) GetStats(c *gin.Context) {
	stats, err := ac.adminService.GetSystemStats(c.Request.Context())
	if err != nil {
		abortWithError(c, ac.logger, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// StartPreprocess POST /v1/admin/preprocess
func (ac *AdminController) StartPreprocess(c *gin.Context) {
	var req requests.PreprocessRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	run, err := ac.preprocessService.Start(services.PreprocessOptions{RetryFailed: req.RetryFailed, Limit: req.Limit})
	if err != nil {
		abortWithError(c, ac.logger, err)
		return
	}
	c.JSON(http.StatusAccepted, runResponse(run))
}

// GetPreprocessRun GET /v1/admin/preprocess/:runID
func (ac *AdminController) GetPreprocessRun(c *gin.Context) {
	run, err := ac.preprocessService.GetRun(c.Param("runID"))
	if err != nil {
		abortWithError(c, ac.logger, err)
		return
	}
	c.JSON(http.StatusOK, runResponse(run))
}

// CancelPreprocessRun DELETE /v1/admin/preprocess/:runID
func (ac *AdminController) CancelPreprocessRun(c *gin.Context) {
	if err := ac.preprocessService.CancelRun(c.Param("runID")); err != nil {
		abortWithError(c, ac.logger, err)
		return
	}
	c.JSON(http.StatusAccepted, responses.SuccessResponse{
		Success:   true,
		Message:   "Cancelación solicitada",
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

func runResponse(r *services.PreprocessRun) responses.PreprocessRunResponse {
	return responses.PreprocessRunResponse{
		RunID:             r.RunID,
		Status:            r.Status,
		Progress:          r.Progress(),
		Total:             r.Total,
		Processed:         r.Processed,
		Succeeded:         r.Succeeded,
		Failed:            r.Failed,
		PermanentlyFailed: r.PermanentlyFailed,
		Message:           r.Message,
		StartedAt:         r.StartedAt,
		FinishedAt:        r.FinishedAt,
	}
}
