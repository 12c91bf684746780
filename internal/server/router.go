package server

import (
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/velora-hq/threadboard-backend/internal/handlers"
	"github.com/velora-hq/threadboard-backend/internal/middleware"
)

type RouterConfig struct {
	ThreadHandler    *handlers.ThreadHandler
	StatsHandler     *handlers.StatsHandler
	AnalysisHandler  *handlers.AnalysisHandler
	APIKeyMiddleware *middleware.APIKeyMiddleware
	CORSOrigins      string
	TracingEnabled   bool
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	if cfg.TracingEnabled {
		router.Use(otelgin.Middleware("threadboard-backend"))
	}

	origins := splitOrigins(cfg.CORSOrigins)
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With", "X-Api-Key"},
		AllowCredentials: true,
	}))

	// ===============
	// || Public    ||
	// ===============
	router.GET("/health", handlers.HealthCheck)
	router.GET("/threads", cfg.ThreadHandler.List)
	router.GET("/stats", cfg.StatsHandler.Stats)
	router.GET("/filters", cfg.StatsHandler.Filters)
	router.GET("/deliveries", cfg.AnalysisHandler.Deliveries)

	// ===============
	// || Mutating  ||
	// ===============
	guarded := router.Group("/")
	guarded.Use(cfg.APIKeyMiddleware.RequireKey())
	guarded.POST("/threads", cfg.ThreadHandler.Create)
	guarded.PUT("/threads/:id", cfg.ThreadHandler.UpdateScores)
	guarded.POST("/analyze", cfg.AnalysisHandler.Run)

	return router
}

func splitOrigins(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{"http://localhost:3000", "http://localhost:5173"}
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
