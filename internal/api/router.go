package api

import (
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"guildstats/internal/stats"
	"guildstats/pkg/config"
	"guildstats/pkg/logger"
)

// Track server start time for uptime calculations
var startTime = time.Now()

// Router serves the ops endpoints and the JSON read API over the mirror.
// Reports rendered into Discord (slash commands, charts, embeds) live in
// other services; this surface only hands them the numbers.
type Router struct {
	Engine *gin.Engine
	DB     *gorm.DB
	Stats  *stats.Service
	Logger *logger.Logger
}

// New creates the router with health, metrics and stats routes registered.
func New(db *gorm.DB, statsService *stats.Service, log *logger.Logger) *Router {
	cfg := config.Get()

	// Configure Gin mode based on environment
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	r := &Router{
		Engine: engine,
		DB:     db,
		Stats:  statsService,
		Logger: log,
	}

	r.setupHealthRoutes()
	r.setupStatsRoutes()
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

// Run starts the HTTP server on the given address.
func (r *Router) Run(addr string) error {
	return r.Engine.Run(addr)
}

// setupHealthRoutes registers health check endpoints
func (r *Router) setupHealthRoutes() {
	r.Engine.GET("/healthz", func(c *gin.Context) {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"version":   os.Getenv("APP_VERSION"),
			"timestamp": time.Now().Format(time.RFC3339),
			"uptime_s":  int64(time.Since(startTime).Seconds()),
			"memory": gin.H{
				"alloc_mb":  memStats.Alloc / 1024 / 1024,
				"sys_mb":    memStats.Sys / 1024 / 1024,
				"gc_cycles": memStats.NumGC,
			},
		})
	})

	r.Engine.GET("/readyz", func(c *gin.Context) {
		if r.DB != nil {
			if err := r.DB.Exec("SELECT 1").Error; err != nil {
				r.Logger.Error("Database readiness check failed", "error", err)
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "database": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
