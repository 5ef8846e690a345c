package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/PratikDhanave/machine-events-service/internal/config"
	"github.com/PratikDhanave/machine-events-service/internal/handlers"
	"github.com/PratikDhanave/machine-events-service/internal/ingest"
	"github.com/PratikDhanave/machine-events-service/internal/metrics"
	"github.com/PratikDhanave/machine-events-service/internal/requestid"
)

// Pinger reports whether the storage dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the router serves.
type Deps struct {
	Store    Pinger
	Ingest   handlers.BatchProcessor
	Stats    handlers.StatsService
	Machines handlers.MachineRepository
	Clock    ingest.Clock
	Logger   zerolog.Logger
}

// NewRouter wires public endpoints.
// Ops: /health, /ready, /metrics
// API: /events/batch, /stats, /stats/top-defect-lines, /api/machines
func NewRouter(cfg config.Config, d Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	if d.Clock == nil {
		d.Clock = ingest.SystemClock
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestid.Middleware())
	r.Use(requestLogging(d.Logger))
	r.Use(metrics.GinMiddleware())
	r.Use(cors(cfg.CORSOrigins))

	// Liveness: confirms the process is running.
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Readiness: confirms the storage dependency is reachable.
	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()

		if err := d.Store.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))

	handlers.RegisterEventRoutes(r, d.Ingest, d.Logger)
	handlers.RegisterStatsRoutes(r, d.Stats)
	handlers.RegisterMachineRoutes(r, d.Machines, d.Clock)

	return r
}
