package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/PratikDhanave/machine-events-service/internal/ingest"
	"github.com/PratikDhanave/machine-events-service/internal/models"
	"github.com/PratikDhanave/machine-events-service/internal/store"
)

// MachineRepository persists the machine registry.
type MachineRepository interface {
	ListMachines(ctx context.Context) ([]models.Machine, error)
	GetMachine(ctx context.Context, id string) (models.Machine, error)
	SaveMachine(ctx context.Context, m models.Machine) (models.Machine, error)
}

// RegisterMachineRoutes registers the machine registry under /api/machines.
func RegisterMachineRoutes(r gin.IRouter, repo MachineRepository, clock ingest.Clock) {
	g := r.Group("/api/machines")

	g.GET("", func(c *gin.Context) {
		list, err := repo.ListMachines(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db query failed"})
			return
		}
		c.JSON(http.StatusOK, list)
	})

	g.GET("/:id", func(c *gin.Context) {
		m, err := repo.GetMachine(c.Request.Context(), c.Param("id"))
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "machine not found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db query failed"})
			return
		}
		c.JSON(http.StatusOK, m)
	})

	// The department id doubles as machine id when no id is sent.
	g.POST("", func(c *gin.Context) {
		var m models.Machine
		if err := c.ShouldBindJSON(&m); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
			return
		}

		m.ID = strings.TrimSpace(m.ID)
		if m.ID == "" {
			m.ID = strings.TrimSpace(m.DepartmentID)
		}
		if m.ID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "id or departmentId required"})
			return
		}
		m.LastUpdated = clock.Now()

		saved, err := repo.SaveMachine(c.Request.Context(), m)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db write failed"})
			return
		}
		c.JSON(http.StatusOK, saved)
	})
}
