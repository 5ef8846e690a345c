package ingest

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/PratikDhanave/machine-events-service/internal/models"
)

// Reason is the machine-readable cause of a rejected event.
type Reason string

const (
	ReasonInvalidEvent    Reason = "INVALID_EVENT"
	ReasonInvalidDuration Reason = "INVALID_DURATION"
	ReasonFutureEvent     Reason = "FUTURE_EVENT"
)

// DefaultFutureHorizon is how far ahead of ingestion time an event may be stamped.
const DefaultFutureHorizon = 15 * time.Minute

// Limits bounds what the validator accepts.
type Limits struct {
	MaxDurationMs int64
	FutureHorizon time.Duration
}

// DefaultLimits returns the 6h duration cap and 15 minute future horizon.
func DefaultLimits() Limits {
	return Limits{
		MaxDurationMs: models.MaxDurationMs,
		FutureHorizon: DefaultFutureHorizon,
	}
}

// RejectionError is returned by Validate for an event that must not be persisted.
type RejectionError struct {
	Key    string
	Reason Reason
	Detail string
}

func (e *RejectionError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("event %q rejected: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("event %q rejected: %s (%s)", e.Key, e.Reason, e.Detail)
}

// validator.Validate caches struct metadata and is safe for concurrent use.
var structValidator = validator.New()

// Validate checks a single event against lim, using now as ingestion time.
// It returns nil or a *RejectionError. It has no side effects.
func Validate(e models.Event, now time.Time, lim Limits) error {
	if err := structValidator.Struct(e); err != nil {
		return &RejectionError{Key: e.Key, Reason: ReasonInvalidEvent, Detail: err.Error()}
	}
	if e.EventTime.IsZero() {
		return &RejectionError{Key: e.Key, Reason: ReasonInvalidEvent, Detail: "eventTime is required"}
	}
	if e.DurationMs < 0 || e.DurationMs > lim.MaxDurationMs {
		return &RejectionError{Key: e.Key, Reason: ReasonInvalidDuration}
	}
	if e.EventTime.After(now.Add(lim.FutureHorizon)) {
		return &RejectionError{Key: e.Key, Reason: ReasonFutureEvent}
	}
	return nil
}
