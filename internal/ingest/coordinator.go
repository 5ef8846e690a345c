package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/PratikDhanave/machine-events-service/internal/metrics"
	"github.com/PratikDhanave/machine-events-service/internal/models"
)

// Store is the storage the coordinator merges into.
//
// GetByKey returns nil, nil when no record exists. BulkUpsert must apply
// all records or none, and must never replace a stored record with one
// carrying an earlier ReceivedAt; that conditional write is what keeps
// concurrent batches on the same key ordered.
type Store interface {
	GetByKey(ctx context.Context, key string) (*models.Event, error)
	BulkUpsert(ctx context.Context, events []models.Event) error
}

// Clock supplies ingestion time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock returns wall-clock time in UTC at storage precision.
var SystemClock Clock = ClockFunc(func() time.Time {
	return time.Now().UTC().Truncate(models.TimePrecision)
})

// Coordinator runs validate -> dedupe -> lookup -> resolve -> bulk persist.
// It holds no per-batch state and is safe for concurrent use.
type Coordinator struct {
	store  Store
	clock  Clock
	limits Limits
	logger zerolog.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithClock overrides the ingestion clock.
func WithClock(c Clock) Option {
	return func(co *Coordinator) { co.clock = c }
}

// WithLimits overrides the validation limits.
func WithLimits(l Limits) Option {
	return func(co *Coordinator) { co.limits = l }
}

// WithLogger sets the logger used for batch diagnostics.
func WithLogger(l zerolog.Logger) Option {
	return func(co *Coordinator) { co.logger = l }
}

// NewCoordinator builds a coordinator over st.
func NewCoordinator(st Store, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:  st,
		clock:  SystemClock,
		limits: DefaultLimits(),
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ProcessBatch merges events into the store and returns the batch counters.
//
// Storage errors abort the batch; in that case no result is returned and
// nothing from this batch has been written.
func (c *Coordinator) ProcessBatch(ctx context.Context, events []models.Event) (models.BatchResult, error) {
	start := time.Now()
	res := models.NewBatchResult()
	now := c.clock.Now()

	valid := make([]models.Event, 0, len(events))
	for _, e := range events {
		if err := Validate(e, now, c.limits); err != nil {
			var rej *RejectionError
			if !errors.As(err, &rej) {
				return models.BatchResult{}, err
			}
			res.Rejected++
			res.Rejections = append(res.Rejections, models.Rejection{EventID: rej.Key, Reason: string(rej.Reason)})
			continue
		}
		valid = append(valid, e)
	}

	candidates := Dedupe(valid)

	toPersist := make([]models.Event, 0, candidates.Len())
	for _, key := range candidates.Keys() {
		incoming, _ := candidates.Get(key)

		existing, err := c.store.GetByKey(ctx, key)
		if err != nil {
			c.fail(start, err, "lookup failed")
			return models.BatchResult{}, fmt.Errorf("get event %q: %w", key, err)
		}

		r := Resolve(incoming, existing, now)
		c.logger.Trace().Str("event_id", key).Stringer("outcome", r.Outcome).Msg("resolved")
		switch r.Outcome {
		case OutcomeInsert:
			res.Accepted++
		case OutcomeUpdate:
			res.Updated++
		case OutcomeExactDuplicate:
			res.Deduped++
		case OutcomeStaleIgnored:
			res.Ignored++
		}
		if r.Persist() {
			toPersist = append(toPersist, r.Record)
			// Repeats of a record this batch writes are duplicates of that write.
			res.Deduped += candidates.Echoes(key)
		}
	}

	if len(toPersist) > 0 {
		if err := c.store.BulkUpsert(ctx, toPersist); err != nil {
			c.fail(start, err, "bulk upsert failed")
			return models.BatchResult{}, fmt.Errorf("bulk upsert %d events: %w", len(toPersist), err)
		}
	}

	elapsed := time.Since(start)
	metrics.ObserveBatch(res, elapsed)
	c.logger.Debug().
		Int("events", len(events)).
		Int("accepted", res.Accepted).
		Int("deduped", res.Deduped).
		Int("updated", res.Updated).
		Int("rejected", res.Rejected).
		Int("ignored", res.Ignored).
		Dur("duration", elapsed).
		Msg("batch processed")

	return res, nil
}

func (c *Coordinator) fail(start time.Time, err error, msg string) {
	metrics.ObserveBatchError(time.Since(start))
	c.logger.Error().Err(err).Msg(msg)
}
