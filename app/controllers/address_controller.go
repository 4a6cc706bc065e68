package controllers

import (
	"net/http"
	"time"

	"github.com/dea-registry/app/requests"
	"github.com/dea-registry/app/responses"
	"github.com/dea-registry/app/services"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AddressController validación de direcciones contra el callejero
type AddressController struct {
	validationService *services.AddressValidationService
	startTime         time.Time
	logger            *zap.Logger
}

// NewAddressController creates an AddressController
func NewAddressController(validationService *services.AddressValidationService, logger *zap.Logger) *AddressController {
	return &AddressController{
		validationService: validationService,
		startTime:         time.Now(),
		logger:            logger,
	}
}

// ValidateAddress POST /v1/addresses/validate
func (ac *AddressController) ValidateAddress(c *gin.Context) {
	var req requests.ValidateAddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	startTime := time.Now()
	result, err := ac.validationService.ValidateAddress(c.Request.Context(), req.Query())
	if err != nil {
		abortWithError(c, ac.logger, err)
		return
	}

	c.JSON(http.StatusOK, responses.ValidateAddressResponse{
		GazetteerVersion: ac.validationService.GazetteerVersion(),
		Validation:       result,
		ProcessingTimeMs: time.Since(startTime).Milliseconds(),
	})
}

// ParseValidate POST /v1/addresses/parse-validate
func (ac *AddressController) ParseValidate(c *gin.Context) {
	var req requests.ParseValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	startTime := time.Now()
	parsed, result, err := ac.validationService.ParseAndValidate(c.Request.Context(), req.Address)
	if err != nil {
		abortWithError(c, ac.logger, err)
		return
	}

	c.JSON(http.StatusOK, responses.ParseValidateResponse{
		Parsed: responses.ParsedAddress{
			StreetType:   parsed.StreetType,
			StreetName:   parsed.StreetName,
			StreetNumber: parsed.StreetNumber,
			PostalCode:   parsed.PostalCode,
			District:     parsed.District,
			Source:       parsed.Source,
		},
		ValidateAddressResponse: responses.ValidateAddressResponse{
			GazetteerVersion: ac.validationService.GazetteerVersion(),
			Validation:       result,
			ProcessingTimeMs: time.Since(startTime).Milliseconds(),
		},
	})
}

// HealthCheck /health, /ready, /live
func (ac *AddressController) HealthCheck(c *gin.Context) {
	cache := "disabled"
	if ac.validationService.Cache() != nil {
		cache = "healthy"
		if _, err := ac.validationService.Cache().GetStats(c.Request.Context()); err != nil {
			cache = "degraded"
		}
	}

	c.JSON(http.StatusOK, responses.HealthCheckResponse{
		Status:    "healthy",
		Timestamp: time.Now().Format(time.RFC3339),
		Uptime:    time.Since(ac.startTime).Round(time.Second).String(),
		Version:   ac.validationService.GazetteerVersion(),
		Services: map[string]string{
			"address_validator": "healthy",
			"cache":             cache,
		},
	})
}
