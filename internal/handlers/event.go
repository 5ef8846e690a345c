package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/PratikDhanave/machine-events-service/internal/models"
	"github.com/PratikDhanave/machine-events-service/internal/requestid"
)

// BatchProcessor merges a batch of events into durable storage.
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, events []models.Event) (models.BatchResult, error)
}

// RegisterEventRoutes registers the ingestion-path endpoint.
//
// POST /events/batch
// - Body is a JSON array of events; an empty array is rejected
// - Durable: returns success only after the bulk write completes
// - Idempotent: resubmitting a batch only increments "deduped"
func RegisterEventRoutes(r gin.IRoutes, ing BatchProcessor, logger zerolog.Logger) {
	r.POST("/events/batch", func(c *gin.Context) {
		var req []models.EventIngestRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
			return
		}
		if len(req) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "batch must contain at least one event"})
			return
		}

		events := make([]models.Event, 0, len(req))
		for _, item := range req {
			events = append(events, item.ToEvent())
		}

		res, err := ing.ProcessBatch(c.Request.Context(), events)
		if err != nil {
			logger.Error().Err(err).Int("events", len(events)).Str("request_id", requestid.FromContext(c)).Msg("batch ingestion failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "batch ingestion failed"})
			return
		}

		c.JSON(http.StatusOK, res)
	})
}
