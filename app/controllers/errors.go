package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/dea-registry/app/responses"
	"github.com/dea-registry/app/services"
	"github.com/dea-registry/internal/records"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type errorMapping struct {
	target  error
	status  int
	code    string
	message string
}

var errorMappings = []errorMapping{
	{records.ErrRecordNotFound, http.StatusNotFound, "RECORD_NOT_FOUND", "No existe el registro"},
	{records.ErrProgressNotFound, http.StatusNotFound, "PROGRESS_NOT_FOUND", "La validación por pasos no se ha iniciado"},
	{records.ErrProgressConflict, http.StatusConflict, "PROGRESS_CONFLICT", "El registro se ha modificado en paralelo, recargue y reintente"},
	{services.ErrInvalidStep, http.StatusBadRequest, "INVALID_STEP", "Número de paso inválido (1-4)"},
	{services.ErrPreviousStepsIncomplete, http.StatusConflict, "STEP_OUT_OF_ORDER", "Complete primero los pasos anteriores"},
	{services.ErrStepAlreadyCompleted, http.StatusConflict, "STEP_ALREADY_COMPLETED", "El paso ya está completado"},
	{services.ErrWorkflowComplete, http.StatusConflict, "WORKFLOW_COMPLETE", "La validación ya está completada"},
	{services.ErrNoValidSuggestion, http.StatusUnprocessableEntity, "NO_VALID_SUGGESTION", "No se encontró una dirección oficial válida"},
	{services.ErrInvalidPayload, http.StatusBadRequest, "INVALID_PAYLOAD", "Datos del paso inválidos"},
	{services.ErrInvalidGazetteerData, http.StatusUnprocessableEntity, "INVALID_GAZETTEER_DATA", "Los datos del callejero no son válidos"},
	{services.ErrRunNotFound, http.StatusNotFound, "RUN_NOT_FOUND", "No existe el preprocesado"},
}

// abortWithError maps a service error to its HTTP status and code
func abortWithError(c *gin.Context, logger *zap.Logger, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			c.JSON(m.status, responses.ErrorResponse{
				Error:     m.code,
				Message:   m.message,
				Details:   err.Error(),
				Timestamp: time.Now().Format(time.RFC3339),
			})
			return
		}
	}
	logger.Error("unhandled request error", zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusInternalServerError, responses.ErrorResponse{
		Error:     "INTERNAL_ERROR",
		Message:   "Error interno del servidor",
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, responses.ErrorResponse{
		Error:     "INVALID_REQUEST",
		Message:   "Request inválida: " + err.Error(),
		Timestamp: time.Now().Format(time.RFC3339),
	})
}
