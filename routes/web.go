package routes

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SetupWebRoutes service index
func SetupWebRoutes(router *gin.Engine) {
	router.GET("/", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "Servicio de validación de direcciones del registro DEA",
			"docs":    "/docs",
		})
	})

	router.GET("/docs", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"api": "DEA address validation API v1",
			"endpoints": map[string]string{
				"validate":       "POST /v1/addresses/validate",
				"parse_validate": "POST /v1/addresses/parse-validate",
				"steps_init":     "POST /v1/records/:id/steps",
				"steps_progress": "GET /v1/records/:id/steps",
				"steps_execute":  "POST /v1/records/:id/steps/:step",
				"steps_reset":    "DELETE /v1/records/:id/steps",
				"gazetteer_seed": "POST /v1/admin/gazetteer/seed",
				"preprocess":     "POST /v1/admin/preprocess",
				"preprocess_run": "GET /v1/admin/preprocess/:runID",
				"stats":          "GET /v1/admin/stats",
				"health":         "GET /health",
			},
		})
	})
}

// requestLogger access log through zap instead of gin's stdout logger
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}
