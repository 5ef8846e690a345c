package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/PratikDhanave/machine-events-service/internal/metrics"
	"github.com/PratikDhanave/machine-events-service/internal/models"
)

// ErrNotFound is returned by lookups that require the row to exist.
var ErrNotFound = errors.New("not found")

// schemaSQL is embedded so the service can self-bootstrap its database schema.
//
//go:embed schema.sql
var schemaSQL string

// PostgresStore is the durable persistence layer for events and machines.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a connection pool and fails fast if DB is unreachable.
func NewPostgresStore(ctx context.Context, dbURL string, maxConns int32) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("parse db url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// EnsureSchema applies schema.sql. Safe to run multiple times.
func (p *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, schemaSQL)
	return err
}

// Ping is used by readiness endpoint to validate DB connectivity.
func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close shuts down the connection pool.
func (p *PostgresStore) Close() {
	p.pool.Close()
}

const eventColumns = `event_id, event_time, received_at, machine_id, line_id, duration_ms, defect_count`

// GetByKey returns the stored event or nil when the key is unknown.
func (p *PostgresStore) GetByKey(ctx context.Context, key string) (*models.Event, error) {
	defer metrics.ObserveStoreOp("postgres", "get", time.Now())

	row := p.pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE event_id = $1`, key)
	e, err := scanEvent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// upsertEventSQL only overwrites a row whose received_at is not newer than
// the incoming one, which makes each row write a compare-and-set on received_at.
const upsertEventSQL = `
	INSERT INTO events(` + eventColumns + `)
	VALUES ($1,$2,$3,$4,$5,$6,$7)
	ON CONFLICT (event_id) DO UPDATE SET
		event_time   = EXCLUDED.event_time,
		received_at  = EXCLUDED.received_at,
		machine_id   = EXCLUDED.machine_id,
		line_id      = EXCLUDED.line_id,
		duration_ms  = EXCLUDED.duration_ms,
		defect_count = EXCLUDED.defect_count
	WHERE events.received_at <= EXCLUDED.received_at
`

// BulkUpsert writes all events in one transaction; either every row is
// applied or none is.
func (p *PostgresStore) BulkUpsert(ctx context.Context, events []models.Event) error {
	defer metrics.ObserveStoreOp("postgres", "bulk_upsert", time.Now())
	if len(events) == 0 {
		return nil
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Rows are written in key order so concurrent batches lock them in the
	// same order and cannot deadlock.
	sorted := slices.Clone(events)
	slices.SortFunc(sorted, func(a, b models.Event) int { return strings.Compare(a.Key, b.Key) })

	batch := &pgx.Batch{}
	for _, e := range sorted {
		batch.Queue(upsertEventSQL,
			e.Key, e.EventTime, e.ReceivedAt, e.MachineID, nullable(e.LineID), e.DurationMs, e.DefectCount)
	}

	br := tx.SendBatch(ctx, batch)
	for i := range sorted {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("upsert %q: %w", sorted[i].Key, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Count returns the number of stored events.
func (p *PostgresStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM events`).Scan(&n)
	return n, err
}

// EventsForMachine returns the machine's events in the half-open window [from,to).
func (p *PostgresStore) EventsForMachine(ctx context.Context, machineID string, from, to time.Time) ([]models.Event, error) {
	defer metrics.ObserveStoreOp("postgres", "scan_machine", time.Now())

	return p.queryEvents(ctx, `
		SELECT `+eventColumns+`
		FROM events
		WHERE machine_id = $1
		  AND event_time >= $2
		  AND event_time <  $3
		ORDER BY event_time, event_id
	`, machineID, from, to)
}

// EventsInWindow returns every event in the half-open window [from,to).
func (p *PostgresStore) EventsInWindow(ctx context.Context, from, to time.Time) ([]models.Event, error) {
	defer metrics.ObserveStoreOp("postgres", "scan_window", time.Now())

	return p.queryEvents(ctx, `
		SELECT `+eventColumns+`
		FROM events
		WHERE event_time >= $1
		  AND event_time <  $2
		ORDER BY event_time, event_id
	`, from, to)
}

func (p *PostgresStore) queryEvents(ctx context.Context, sql string, args ...any) ([]models.Event, error) {
	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListMachines returns all registered machines ordered by id.
func (p *PostgresStore) ListMachines(ctx context.Context) ([]models.Machine, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, name, serial_number, department, department_id, last_updated
		FROM machines
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Machine{}
	for rows.Next() {
		m, err := scanMachine(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// GetMachine returns ErrNotFound for an unknown id.
func (p *PostgresStore) GetMachine(ctx context.Context, id string) (models.Machine, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT id, name, serial_number, department, department_id, last_updated
		FROM machines
		WHERE id = $1
	`, id)
	m, err := scanMachine(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Machine{}, ErrNotFound
	}
	return m, err
}

// SaveMachine creates or replaces a machine by id.
func (p *PostgresStore) SaveMachine(ctx context.Context, m models.Machine) (models.Machine, error) {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO machines(id, name, serial_number, department, department_id, last_updated)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (id) DO UPDATE SET
			name          = EXCLUDED.name,
			serial_number = EXCLUDED.serial_number,
			department    = EXCLUDED.department,
			department_id = EXCLUDED.department_id,
			last_updated  = EXCLUDED.last_updated
	`, m.ID, m.Name, m.SerialNumber, m.Department, m.DepartmentID, m.LastUpdated)
	if err != nil {
		return models.Machine{}, err
	}
	return m, nil
}

func scanEvent(row pgx.Row) (models.Event, error) {
	var (
		e    models.Event
		line *string
	)
	if err := row.Scan(&e.Key, &e.EventTime, &e.ReceivedAt, &e.MachineID, &line, &e.DurationMs, &e.DefectCount); err != nil {
		return models.Event{}, err
	}
	e.EventTime = e.EventTime.UTC()
	e.ReceivedAt = e.ReceivedAt.UTC()
	if line != nil {
		e.LineID = *line
	}
	return e, nil
}

func scanMachine(row pgx.Row) (models.Machine, error) {
	var m models.Machine
	err := row.Scan(&m.ID, &m.Name, &m.SerialNumber, &m.Department, &m.DepartmentID, &m.LastUpdated)
	m.LastUpdated = m.LastUpdated.UTC()
	return m, err
}

// nullable maps an absent optional string to SQL NULL.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
