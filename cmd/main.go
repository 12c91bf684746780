package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	redisclient "github.com/velora-hq/threadboard-backend/internal/clients/redis"
	"github.com/velora-hq/threadboard-backend/internal/db"
	"github.com/velora-hq/threadboard-backend/internal/handlers"
	"github.com/velora-hq/threadboard-backend/internal/logger"
	"github.com/velora-hq/threadboard-backend/internal/middleware"
	"github.com/velora-hq/threadboard-backend/internal/observability"
	"github.com/velora-hq/threadboard-backend/internal/repos"
	"github.com/velora-hq/threadboard-backend/internal/server"
	"github.com/velora-hq/threadboard-backend/internal/services"
	"github.com/velora-hq/threadboard-backend/internal/utils"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Env
	log.Info("Loading environment variables from main...")
	webhookURL := utils.GetEnv("ANALYSIS_WEBHOOK_URL", "", log)
	webhookTimeout := utils.GetEnvAsInt("ANALYSIS_WEBHOOK_TIMEOUT_SECONDS", 30, log)
	corsOrigins := utils.GetEnv("CORS_ORIGINS", "", log)
	apiKey := utils.GetEnv("DASHBOARD_API_KEY", "", log)

	// Tracing (no-op unless OTEL_ENABLED)
	otelShutdown := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		ServiceName: "threadboard-backend",
		Environment: utils.GetEnv("DEPLOY_ENV", "development", log),
		Version:     utils.GetEnv("SERVICE_VERSION", "dev", log),
	})

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Error("Postgres auto migration failed", "error", err)
		os.Exit(1)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up Repos from main...")
	threadRepo := repos.NewThreadRepo(thePG, log)
	messageRepo := repos.NewMessageRepo(thePG, log)
	deliveryRepo := repos.NewWebhookDeliveryRepo(thePG, log)

	// Optional clients
	var filterCache services.FilterCache
	if cache, err := redisclient.NewFilterCache(log); err != nil {
		log.Warn("Filter cache disabled", "error", err)
	} else {
		filterCache = cache
		defer cache.Close()
	}

	// Services
	log.Info("Setting up Services from main...")
	var webhookClient services.WebhookClient
	if webhookURL == "" {
		log.Warn("ANALYSIS_WEBHOOK_URL not set, webhook dispatch disabled")
	} else {
		webhookClient, err = services.NewWebhookClient(log, webhookURL, time.Duration(webhookTimeout)*time.Second)
		if err != nil {
			log.Error("Could not init WebhookClient", "error", err)
			os.Exit(1)
		}
	}
	dispatchService := services.NewDispatchService(log, webhookClient, threadRepo, messageRepo, deliveryRepo, time.Duration(webhookTimeout)*time.Second)
	threadService := services.NewThreadService(thePG, log, threadRepo, messageRepo, filterCache)

	// Handlers
	log.Info("Setting up handlers from main...")
	threadHandler := handlers.NewThreadHandler(log, threadService, dispatchService)
	statsHandler := handlers.NewStatsHandler(log, threadService)
	analysisHandler := handlers.NewAnalysisHandler(log, dispatchService)

	// Middleware
	apiKeyMiddleware := middleware.NewAPIKeyMiddleware(log, apiKey)

	// Router
	log.Info("Setting up router from main...")
	router := server.NewRouter(server.RouterConfig{
		ThreadHandler:    threadHandler,
		StatsHandler:     statsHandler,
		AnalysisHandler:  analysisHandler,
		APIKeyMiddleware: apiKeyMiddleware,
		CORSOrigins:      corsOrigins,
		TracingEnabled:   otelShutdown != nil,
	})

	port := utils.GetEnv("PORT", "8080", log)
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("Server listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("Server shutdown error", "error", err)
	}
	// let in-flight webhook dispatches drain
	dispatchService.Wait()
	if otelShutdown != nil {
		if err := otelShutdown(shutdownCtx); err != nil {
			log.Warn("otel shutdown error", "error", err)
		}
	}
}
