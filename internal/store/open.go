package store

import (
	"context"
	"fmt"
	"time"

	"github.com/PratikDhanave/machine-events-service/internal/config"
	"github.com/PratikDhanave/machine-events-service/internal/models"
)

// Backend is the full method set shared by MemoryStore and PostgresStore.
type Backend interface {
	Ping(ctx context.Context) error
	Close()
	Count(ctx context.Context) (int64, error)

	GetByKey(ctx context.Context, key string) (*models.Event, error)
	BulkUpsert(ctx context.Context, events []models.Event) error
	EventsForMachine(ctx context.Context, machineID string, from, to time.Time) ([]models.Event, error)
	EventsInWindow(ctx context.Context, from, to time.Time) ([]models.Event, error)

	ListMachines(ctx context.Context) ([]models.Machine, error)
	GetMachine(ctx context.Context, id string) (models.Machine, error)
	SaveMachine(ctx context.Context, m models.Machine) (models.Machine, error)
}

var (
	_ Backend = (*MemoryStore)(nil)
	_ Backend = (*PostgresStore)(nil)
)

// Open returns the configured backend. A Postgres backend has its schema
// ensured before it is returned.
func Open(ctx context.Context, cfg config.StoreConfig) (Backend, error) {
	switch cfg.Driver {
	case config.DriverMemory, "":
		return NewMemoryStore(cfg.MemoryShards), nil
	case config.DriverPostgres:
		pg, err := NewPostgresStore(ctx, cfg.DBURL, cfg.MaxConns)
		if err != nil {
			return nil, err
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		return pg, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
