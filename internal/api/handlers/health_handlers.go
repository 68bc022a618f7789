package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/tikup-service/tikup_service/internal/infrastructure/cache"
	"github.com/tikup-service/tikup_service/internal/infrastructure/database"
	"go.uber.org/zap"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	db        *sqlx.DB
	cache     cache.RedisClient
	logger    *zap.Logger
	version   string
	startTime time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db *sqlx.DB, cache cache.RedisClient, logger *zap.Logger, version string) *HealthHandler {
	return &HealthHandler{
		db:        db,
		cache:     cache,
		logger:    logger,
		version:   version,
		startTime: time.Now(),
	}
}

// Health reports overall service health with per-component status
func (h *HealthHandler) Health(c *gin.Context) {
	checks := gin.H{}
	healthy := true

	if err := database.HealthCheck(h.db); err != nil {
		checks["database"] = gin.H{"status": "unhealthy", "error": err.Error()}
		healthy = false
		h.logger.Warn("Database health check failed", zap.Error(err))
	} else {
		checks["database"] = gin.H{"status": "healthy"}
	}

	if h.cache != nil {
		if err := h.cache.Ping(c.Request.Context()); err != nil {
			checks["redis"] = gin.H{"status": "unhealthy", "error": err.Error()}
			healthy = false
			h.logger.Warn("Redis health check failed", zap.Error(err))
		} else {
			checks["redis"] = gin.H{"status": "healthy"}
		}
	}

	status := "healthy"
	statusCode := http.StatusOK
	if !healthy {
		status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, gin.H{
		"status":         status,
		"version":        h.version,
		"uptime_seconds": int(time.Since(h.startTime).Seconds()),
		"timestamp":      time.Now().UTC(),
		"checks":         checks,
	})
}

// Ping always returns 200 OK
func (h *HealthHandler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"time":    time.Now().Unix(),
		"version": h.version,
	})
}
