package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/PratikDhanave/machine-events-service/internal/metrics"
	"github.com/PratikDhanave/machine-events-service/internal/models"
)

// DefaultShards is the shard count used when none is configured.
const DefaultShards = 64

// MemoryStore keeps events in a map split into independently locked shards,
// so batches touching unrelated keys do not contend on one mutex.
type MemoryStore struct {
	shards []*shard

	machinesMu sync.RWMutex
	machines   map[string]models.Machine
}

type shard struct {
	mu     sync.RWMutex
	events map[string]models.Event
}

// NewMemoryStore creates a store with n shards (DefaultShards when n <= 0).
func NewMemoryStore(n int) *MemoryStore {
	if n <= 0 {
		n = DefaultShards
	}
	s := &MemoryStore{
		shards:   make([]*shard, n),
		machines: map[string]models.Machine{},
	}
	for i := range s.shards {
		s.shards[i] = &shard{events: map[string]models.Event{}}
	}
	return s
}

func (s *MemoryStore) shardFor(key string) int {
	return int(xxhash.Sum64String(key) % uint64(len(s.shards)))
}

// Ping always succeeds.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Close is a no-op.
func (s *MemoryStore) Close() {}

// GetByKey returns a copy of the stored event, or nil when absent.
func (s *MemoryStore) GetByKey(ctx context.Context, key string) (*models.Event, error) {
	defer metrics.ObserveStoreOp("memory", "get", time.Now())
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sh := s.shards[s.shardFor(key)]
	sh.mu.RLock()
	e, ok := sh.events[key]
	sh.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return &e, nil
}

// BulkUpsert writes events as one unit. Every touched shard is locked, in
// ascending index order, before anything is written. A stored record is only
// replaced when the incoming ReceivedAt is not earlier than the stored one.
func (s *MemoryStore) BulkUpsert(ctx context.Context, events []models.Event) error {
	defer metrics.ObserveStoreOp("memory", "bulk_upsert", time.Now())
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}

	byShard := map[int][]models.Event{}
	for _, e := range events {
		idx := s.shardFor(e.Key)
		byShard[idx] = append(byShard[idx], e)
	}
	order := make([]int, 0, len(byShard))
	for idx := range byShard {
		order = append(order, idx)
	}
	sort.Ints(order)

	for _, idx := range order {
		s.shards[idx].mu.Lock()
	}
	defer func() {
		for _, idx := range order {
			s.shards[idx].mu.Unlock()
		}
	}()

	for _, idx := range order {
		sh := s.shards[idx]
		for _, e := range byShard[idx] {
			if cur, ok := sh.events[e.Key]; ok && e.ReceivedAt.Before(cur.ReceivedAt) {
				continue
			}
			sh.events[e.Key] = e
		}
	}
	return nil
}

// Count returns the number of stored events.
func (s *MemoryStore) Count(ctx context.Context) (int64, error) {
	var n int64
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += int64(len(sh.events))
		sh.mu.RUnlock()
	}
	return n, ctx.Err()
}

// EventsForMachine returns the machine's events with event time in [from, to).
func (s *MemoryStore) EventsForMachine(ctx context.Context, machineID string, from, to time.Time) ([]models.Event, error) {
	defer metrics.ObserveStoreOp("memory", "scan_machine", time.Now())
	return s.scan(ctx, func(e models.Event) bool {
		return e.MachineID == machineID && inWindow(e.EventTime, from, to)
	})
}

// EventsInWindow returns all events with event time in [from, to).
func (s *MemoryStore) EventsInWindow(ctx context.Context, from, to time.Time) ([]models.Event, error) {
	defer metrics.ObserveStoreOp("memory", "scan_window", time.Now())
	return s.scan(ctx, func(e models.Event) bool {
		return inWindow(e.EventTime, from, to)
	})
}

func (s *MemoryStore) scan(ctx context.Context, keep func(models.Event) bool) ([]models.Event, error) {
	out := []models.Event{}
	for _, sh := range s.shards {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sh.mu.RLock()
		for _, e := range sh.events {
			if keep(e) {
				out = append(out, e)
			}
		}
		sh.mu.RUnlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].EventTime.Equal(out[j].EventTime) {
			return out[i].EventTime.Before(out[j].EventTime)
		}
		return out[i].Key < out[j].Key
	})
	return out, nil
}

func inWindow(t, from, to time.Time) bool {
	return !t.Before(from) && t.Before(to)
}

// ListMachines returns all registered machines ordered by id.
func (s *MemoryStore) ListMachines(ctx context.Context) ([]models.Machine, error) {
	s.machinesMu.RLock()
	defer s.machinesMu.RUnlock()

	out := make([]models.Machine, 0, len(s.machines))
	for _, m := range s.machines {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, ctx.Err()
}

// GetMachine returns ErrNotFound for an unknown id.
func (s *MemoryStore) GetMachine(ctx context.Context, id string) (models.Machine, error) {
	s.machinesMu.RLock()
	defer s.machinesMu.RUnlock()

	m, ok := s.machines[id]
	if !ok {
		return models.Machine{}, ErrNotFound
	}
	return m, ctx.Err()
}

// SaveMachine creates or replaces a machine by id.
func (s *MemoryStore) SaveMachine(ctx context.Context, m models.Machine) (models.Machine, error) {
	if err := ctx.Err(); err != nil {
		return models.Machine{}, err
	}
	s.machinesMu.Lock()
	s.machines[m.ID] = m
	s.machinesMu.Unlock()
	return m, nil
}
