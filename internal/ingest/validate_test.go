package ingest

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PratikDhanave/machine-events-service/internal/models"
)

func validEvent(now time.Time) models.Event {
	return models.Event{
		Key:         "E-1",
		EventTime:   now.Add(-time.Minute),
		MachineID:   "M-001",
		LineID:      "L-01",
		DurationMs:  1000,
		DefectCount: 0,
	}
}

func TestValidate(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		mutate func(e *models.Event)
		want   Reason // empty means accepted
	}{
		{name: "valid event", mutate: func(e *models.Event) {}},
		{name: "zero duration accepted", mutate: func(e *models.Event) { e.DurationMs = 0 }},
		{name: "six hours accepted", mutate: func(e *models.Event) { e.DurationMs = 21_600_000 }},
		{name: "one ms over six hours", mutate: func(e *models.Event) { e.DurationMs = 21_600_001 }, want: ReasonInvalidDuration},
		{name: "negative duration", mutate: func(e *models.Event) { e.DurationMs = -1 }, want: ReasonInvalidDuration},
		{name: "exactly at horizon accepted", mutate: func(e *models.Event) { e.EventTime = now.Add(15 * time.Minute) }},
		{name: "just past horizon", mutate: func(e *models.Event) { e.EventTime = now.Add(15*time.Minute + time.Millisecond) }, want: ReasonFutureEvent},
		{name: "twenty minutes ahead", mutate: func(e *models.Event) { e.EventTime = now.Add(20 * time.Minute) }, want: ReasonFutureEvent},
		{name: "old event accepted", mutate: func(e *models.Event) { e.EventTime = now.Add(-30 * 24 * time.Hour) }},
		{name: "unknown defect sentinel accepted", mutate: func(e *models.Event) { e.DefectCount = -1 }},
		{name: "missing key", mutate: func(e *models.Event) { e.Key = "" }, want: ReasonInvalidEvent},
		{name: "missing machine", mutate: func(e *models.Event) { e.MachineID = "" }, want: ReasonInvalidEvent},
		{name: "missing event time", mutate: func(e *models.Event) { e.EventTime = time.Time{} }, want: ReasonInvalidEvent},
		{name: "duration checked before horizon", mutate: func(e *models.Event) {
			e.DurationMs = -5
			e.EventTime = now.Add(time.Hour)
		}, want: ReasonInvalidDuration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := validEvent(now)
			tt.mutate(&e)

			err := Validate(e, now, DefaultLimits())
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}

			var rej *RejectionError
			require.True(t, errors.As(err, &rej), "expected *RejectionError, got %v", err)
			assert.Equal(t, tt.want, rej.Reason)
			assert.Equal(t, e.Key, rej.Key)
		})
	}
}

func TestValidate_CustomLimits(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	lim := Limits{MaxDurationMs: 500, FutureHorizon: time.Minute}

	e := validEvent(now)
	e.DurationMs = 501
	assert.Error(t, Validate(e, now, lim))

	e = validEvent(now)
	e.DurationMs = 10
	e.EventTime = now.Add(2 * time.Minute)
	err := Validate(e, now, lim)
	require.Error(t, err)
	assert.Contains(t, err.Error(), string(ReasonFutureEvent))
}
