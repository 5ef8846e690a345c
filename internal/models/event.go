package models

import "time"

// MaxDurationMs is the longest accepted event duration (6 hours).
const MaxDurationMs int64 = 6 * 60 * 60 * 1000

// TimePrecision is the resolution timestamps are kept at, matching
// Postgres timestamptz, so a stored record compares equal to its resubmission.
const TimePrecision = time.Microsecond

// Event is a single machine-telemetry record as stored.
// Key is the sole identity used for dedup and merge decisions.
type Event struct {
	Key         string    `json:"eventId" validate:"required"`
	EventTime   time.Time `json:"eventTime"`
	ReceivedAt  time.Time `json:"receivedTime"`
	MachineID   string    `json:"machineId" validate:"required"`
	LineID      string    `json:"lineId,omitempty"`
	DurationMs  int64     `json:"durationMs"`
	DefectCount int       `json:"defectCount"` // -1 means unknown
}

// EventIngestRequest is one element of the POST /events/batch payload.
// receivedTime is optional; the server stamps it when absent.
type EventIngestRequest struct {
	EventID      string     `json:"eventId"`
	EventTime    time.Time  `json:"eventTime"`
	ReceivedTime *time.Time `json:"receivedTime,omitempty"`
	MachineID    string     `json:"machineId"`
	LineID       string     `json:"lineId,omitempty"`
	DurationMs   int64      `json:"durationMs"`
	DefectCount  int        `json:"defectCount"`
}

// ToEvent converts the wire payload into a domain Event, normalizing to UTC.
func (r EventIngestRequest) ToEvent() Event {
	e := Event{
		Key:         r.EventID,
		MachineID:   r.MachineID,
		LineID:      r.LineID,
		DurationMs:  r.DurationMs,
		DefectCount: r.DefectCount,
	}
	if !r.EventTime.IsZero() {
		e.EventTime = r.EventTime.UTC().Truncate(TimePrecision)
	}
	if r.ReceivedTime != nil {
		e.ReceivedAt = r.ReceivedTime.UTC().Truncate(TimePrecision)
	}
	return e
}

// Rejection records why a single event was excluded from a batch.
type Rejection struct {
	EventID string `json:"eventId"`
	Reason  string `json:"reason"`
}

// BatchResult is returned by POST /events/batch.
// Counters are local to one batch.
type BatchResult struct {
	Accepted   int         `json:"accepted"`
	Deduped    int         `json:"deduped"`
	Updated    int         `json:"updated"`
	Rejected   int         `json:"rejected"`
	Ignored    int         `json:"ignored"`
	Rejections []Rejection `json:"rejections"`
}

// NewBatchResult returns a zeroed result whose rejection list encodes as [].
func NewBatchResult() BatchResult {
	return BatchResult{Rejections: []Rejection{}}
}
