package controllers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/dea-registry/app/requests"
	"github.com/dea-registry/app/responses"
	"github.com/dea-registry/app/services"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// StepController validación por pasos de un registro DEA
type StepController struct {
	stepService *services.StepValidationService
	logger      *zap.Logger
}

// NewStepController creates a StepController
func NewStepController(stepService *services.StepValidationService, logger *zap.Logger) *StepController {
	return &StepController{stepService: stepService, logger: logger}
}

// Initialize POST /v1/records/:id/steps
func (sc *StepController) Initialize(c *gin.Context) {
	out, err := sc.stepService.InitializeStepValidation(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, sc.logger, err)
		return
	}
	c.JSON(http.StatusOK, responses.StepResponse{
		Progress: out.Progress,
		NextStep: out.NextStep,
		Message:  out.Message,
	})
}

// GetProgress GET /v1/records/:id/steps
func (sc *StepController) GetProgress(c *gin.Context) {
	p, err := sc.stepService.GetProgress(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, sc.logger, err)
		return
	}
	c.JSON(http.StatusOK, responses.StepResponse{Progress: p, NextStep: p.CurrentStep})
}

// Execute POST /v1/records/:id/steps/:step
func (sc *StepController) Execute(c *gin.Context) {
	step, err := strconv.Atoi(c.Param("step"))
	if err != nil {
		abortWithError(c, sc.logger, fmt.Errorf("%w: %q", services.ErrInvalidStep, c.Param("step")))
		return
	}

	var req requests.ExecuteStepRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	out, err := sc.stepService.ExecuteStep(c.Request.Context(), c.Param("id"), step, services.StepPayload{
		SelectedAddress: req.SelectedAddress,
		PostalCode:      req.PostalCode,
		District:        req.District,
		Coordinates:     req.Coordinates,
	})
	if err != nil {
		abortWithError(c, sc.logger, err)
		return
	}
	c.JSON(http.StatusOK, responses.StepResponse{
		Progress: out.Progress,
		NextStep: out.NextStep,
		Message:  out.Message,
	})
}

// Reset DELETE /v1/records/:id/steps
func (sc *StepController) Reset(c *gin.Context) {
	if err := sc.stepService.ResetProgress(c.Request.Context(), c.Param("id")); err != nil {
		abortWithError(c, sc.logger, err)
		return
	}
	c.JSON(http.StatusOK, responses.SuccessResponse{
		Success:   true,
		Message:   "Validación por pasos reiniciada",
		Timestamp: time.Now().Format(time.RFC3339),
	})
}
