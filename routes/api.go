package routes

import (
	"github.com/dea-registry/app/controllers"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Controllers every handler group mounted by SetupAllRoutes
type Controllers struct {
	Address *controllers.AddressController
	Steps   *controllers.StepController
	Admin   *controllers.AdminController
}

// SetupAPIRoutes mounts the /v1 API
func SetupAPIRoutes(router *gin.Engine, ctl Controllers) {
	v1 := router.Group("/v1")
	{
		addresses := v1.Group("/addresses")
		{
			addresses.POST("/validate", ctl.Address.ValidateAddress)
			addresses.POST("/parse-validate", ctl.Address.ParseValidate)
		}

		steps := v1.Group("/records/:id/steps")
		{
			steps.POST("", ctl.Steps.Initialize)
			steps.GET("", ctl.Steps.GetProgress)
			steps.DELETE("", ctl.Steps.Reset)
			steps.POST("/:step", ctl.Steps.Execute)
		}

		admin := v1.Group("/admin")
		{
			admin.POST("/gazetteer/seed", ctl.Admin.SeedGazetteer)
			admin.POST("/indexes/build", ctl.Admin.BuildIndexes)
			admin.POST("/cache/invalidate", ctl.Admin.InvalidateCache)
			admin.GET("/stats", ctl.Admin.GetStats)
			admin.POST("/preprocess", ctl.Admin.StartPreprocess)
			admin.GET("/preprocess/:runID", ctl.Admin.GetPreprocessRun)
			admin.DELETE("/preprocess/:runID", ctl.Admin.CancelPreprocessRun)
		}

		v1.GET("/health", ctl.Address.HealthCheck)
	}
}

// SetupHealthRoutes probes for the orchestrator
func SetupHealthRoutes(router *gin.Engine, addressController *controllers.AddressController) {
	router.GET("/health", addressController.HealthCheck)
	router.GET("/ready", addressController.HealthCheck)
	router.GET("/live", addressController.HealthCheck)
}

// SetupAllRoutes middleware, every route group and the 404 handler
func SetupAllRoutes(router *gin.Engine, ctl Controllers, logger *zap.Logger) {
	setupMiddleware(router, logger)

	SetupWebRoutes(router)
	SetupHealthRoutes(router, ctl.Address)
	SetupAPIRoutes(router, ctl)

	router.NoRoute(func(c *gin.Context) {
		c.JSON(404, gin.H{
			"error":  "Ruta no encontrada",
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		})
	})
}

func setupMiddleware(router *gin.Engine, logger *zap.Logger) {
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))
}
