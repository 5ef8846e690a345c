package ingest

import (
	"time"

	"github.com/PratikDhanave/machine-events-service/internal/models"
)

// Outcome is the merge decision for one candidate.
type Outcome int

const (
	OutcomeInsert Outcome = iota
	OutcomeExactDuplicate
	OutcomeUpdate
	OutcomeStaleIgnored
)

func (o Outcome) String() string {
	switch o {
	case OutcomeInsert:
		return "accepted"
	case OutcomeExactDuplicate:
		return "deduped"
	case OutcomeUpdate:
		return "updated"
	case OutcomeStaleIgnored:
		return "ignored"
	default:
		return "unknown"
	}
}

// Resolution carries the outcome and, for Insert and Update, the record to persist.
type Resolution struct {
	Outcome Outcome
	Record  models.Event
}

// Persist reports whether the resolution produces a write.
func (r Resolution) Persist() bool {
	return r.Outcome == OutcomeInsert || r.Outcome == OutcomeUpdate
}

// Resolve decides how incoming merges with the stored record, if any.
//
// A zero incoming.ReceivedAt is stamped with now before the decision.
// An incoming write older than the stored one never modifies it; an
// identical payload is a no-op; anything else replaces the stored payload
// and received-at while keeping the stored key.
func Resolve(incoming models.Event, existing *models.Event, now time.Time) Resolution {
	if incoming.ReceivedAt.IsZero() {
		incoming.ReceivedAt = now
	}

	if existing == nil {
		return Resolution{Outcome: OutcomeInsert, Record: incoming}
	}

	if incoming.ReceivedAt.Before(existing.ReceivedAt) {
		return Resolution{Outcome: OutcomeStaleIgnored}
	}

	if SamePayload(incoming, *existing) {
		return Resolution{Outcome: OutcomeExactDuplicate}
	}

	updated := incoming
	updated.Key = existing.Key
	return Resolution{Outcome: OutcomeUpdate, Record: updated}
}

// SamePayload compares every field except key and received-at.
func SamePayload(a, b models.Event) bool {
	return a.MachineID == b.MachineID &&
		a.LineID == b.LineID &&
		a.EventTime.Equal(b.EventTime) &&
		a.DurationMs == b.DurationMs &&
		a.DefectCount == b.DefectCount
}
