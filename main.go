package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dea-registry/app/controllers"
	"github.com/dea-registry/internal/bootstrap"
	"github.com/dea-registry/routes"
	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func main() {
	// 1. Configuration: .env, config/app.yaml, environment
	bootstrap.LoadConfig()

	// 2. Logger
	logger := bootstrap.InitLogger()
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting DEA address validation service")

	// 3. Backends and services
	ctx := context.Background()
	app, err := bootstrap.Build(ctx, logger)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer app.Close(context.Background())

	// 4. Controllers and routes
	if viper.GetString("app.env") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	routes.SetupAllRoutes(router, routes.Controllers{
		Address: controllers.NewAddressController(app.Validation, logger),
		Steps:   controllers.NewStepController(app.Steps, logger),
		Admin:   controllers.NewAdminController(app.Admin, app.Preprocess, logger),
	}, logger)

	// 5. Server with graceful shutdown
	port := viper.GetString("app.port")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("HTTP server listening", zap.String("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	logger.Info("Server exited")
}
