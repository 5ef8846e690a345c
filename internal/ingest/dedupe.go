package ingest

import "github.com/PratikDhanave/machine-events-service/internal/models"

// Candidates is a batch collapsed to one event per key.
// Keys are kept in order of first appearance so processing is deterministic.
type Candidates struct {
	keys   []string
	byKey  map[string]models.Event
	echoes map[string]int
}

// Dedupe collapses events by key. A repeated key is replaced by the later
// occurrence regardless of payload or timestamps.
//
// Superseded occurrences that are byte-for-byte repeats of the survivor are
// remembered as echoes; nothing else about them is kept.
func Dedupe(events []models.Event) *Candidates {
	c := &Candidates{
		keys:   make([]string, 0, len(events)),
		byKey:  make(map[string]models.Event, len(events)),
		echoes: map[string]int{},
	}
	last := make(map[string]int, len(events))
	for i, e := range events {
		if _, seen := c.byKey[e.Key]; !seen {
			c.keys = append(c.keys, e.Key)
		}
		c.byKey[e.Key] = e
		last[e.Key] = i
	}
	for i, e := range events {
		if last[e.Key] == i {
			continue
		}
		if identical(e, c.byKey[e.Key]) {
			c.echoes[e.Key]++
		}
	}
	return c
}

// Len returns the number of distinct keys.
func (c *Candidates) Len() int { return len(c.keys) }

// Keys returns the distinct keys in first-appearance order.
func (c *Candidates) Keys() []string { return c.keys }

// Get returns the surviving event for key.
func (c *Candidates) Get(key string) (models.Event, bool) {
	e, ok := c.byKey[key]
	return e, ok
}

// Echoes returns how many superseded occurrences of key were identical to
// the survivor.
func (c *Candidates) Echoes(key string) int { return c.echoes[key] }

func identical(a, b models.Event) bool {
	return a.Key == b.Key && a.ReceivedAt.Equal(b.ReceivedAt) && SamePayload(a, b)
}
