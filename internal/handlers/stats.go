package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/PratikDhanave/machine-events-service/internal/analytics"
	"github.com/PratikDhanave/machine-events-service/internal/models"
)

// StatsService answers reporting queries over merged events.
type StatsService interface {
	MachineStats(ctx context.Context, machineID string, start, end time.Time) (models.MachineStats, error)
	TopDefectLines(ctx context.Context, from, to time.Time, limit int) ([]models.TopDefectLine, error)
}

// parseRFC3339 parses an RFC3339 timestamp and normalizes it to UTC.
func parseRFC3339(ts string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// RegisterStatsRoutes registers the serving-path endpoints.
//
// GET /stats?machineId=...&start=...&end=...
// GET /stats/top-defect-lines?from=...&to=...&limit=...
// Windows are half-open [start,end).
func RegisterStatsRoutes(r gin.IRoutes, svc StatsService) {
	r.GET("/stats", func(c *gin.Context) {
		machineID := c.Query("machineId")
		startStr := c.Query("start")
		endStr := c.Query("end")

		if machineID == "" || startStr == "" || endStr == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "machineId, start, end are required"})
			return
		}

		start, err := parseRFC3339(startStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "start must be RFC3339"})
			return
		}
		end, err := parseRFC3339(endStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "end must be RFC3339"})
			return
		}

		stats, err := svc.MachineStats(c.Request.Context(), machineID, start, end)
		if errors.Is(err, analytics.ErrInvalidWindow) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "start must be < end"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "stats query failed"})
			return
		}

		c.JSON(http.StatusOK, stats)
	})

	// factoryId is accepted for compatibility; lines are not partitioned by factory.
	r.GET("/stats/top-defect-lines", func(c *gin.Context) {
		fromStr := c.Query("from")
		toStr := c.Query("to")
		if fromStr == "" || toStr == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "from, to are required"})
			return
		}

		from, err := parseRFC3339(fromStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "from must be RFC3339"})
			return
		}
		to, err := parseRFC3339(toStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "to must be RFC3339"})
			return
		}

		limit := analytics.DefaultTopLinesLimit
		if v := c.Query("limit"); v != "" {
			limit, err = strconv.Atoi(v)
			if err != nil || limit <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
				return
			}
		}

		rows, err := svc.TopDefectLines(c.Request.Context(), from, to, limit)
		if errors.Is(err, analytics.ErrInvalidWindow) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "from must be < to"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "stats query failed"})
			return
		}

		c.JSON(http.StatusOK, rows)
	})
}
