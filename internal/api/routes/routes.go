package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tikup-service/tikup_service/internal/api/handlers"
	"github.com/tikup-service/tikup_service/internal/api/middleware"
	"github.com/tikup-service/tikup_service/internal/infrastructure/cache"
	"github.com/tikup-service/tikup_service/internal/infrastructure/config"
	"github.com/tikup-service/tikup_service/pkg/logger"
)

// Version is stamped at build time
var Version = "dev"

// Deps holds everything the HTTP surface needs
type Deps struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         *sqlx.DB
	Cache      cache.RedisClient
	Reconciler handlers.Reconciler
}

// SetupRoutes configures all application routes
func SetupRoutes(deps *Deps) *gin.Engine {
	if deps.Config.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.RequestSizeLimit())
	router.Use(middleware.Logger(deps.Logger))
	router.Use(middleware.Recovery(deps.Logger))

	healthHandler := handlers.NewHealthHandler(deps.DB, deps.Cache, deps.Logger.Zap(), Version)
	webhookHandler := handlers.NewCassoWebhookHandler(deps.Reconciler, deps.Logger.Zap(), deps.Config.Payment.WebhookSecret)

	router.GET("/health", healthHandler.Health)
	router.GET("/ping", healthHandler.Ping)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.POST("/webhook/casso", webhookHandler.HandleWebhook)

	return router
}
