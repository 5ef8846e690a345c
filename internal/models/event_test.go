package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventIngestRequest_ToEvent(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	eventTime := time.Date(2026, 1, 10, 9, 0, 0, 0, loc)

	t.Run("received time absent stays zero", func(t *testing.T) {
		e := EventIngestRequest{
			EventID:     "E-1",
			EventTime:   eventTime,
			MachineID:   "M-1",
			LineID:      "L-1",
			DurationMs:  1000,
			DefectCount: -1,
		}.ToEvent()

		assert.Equal(t, "E-1", e.Key)
		assert.Equal(t, time.UTC, e.EventTime.Location())
		assert.True(t, e.EventTime.Equal(eventTime))
		assert.True(t, e.ReceivedAt.IsZero())
		assert.Equal(t, -1, e.DefectCount)
	})

	t.Run("received time provided is kept", func(t *testing.T) {
		received := eventTime.Add(time.Minute)
		e := EventIngestRequest{EventID: "E-2", EventTime: eventTime, ReceivedTime: &received, MachineID: "M-1"}.ToEvent()
		assert.True(t, e.ReceivedAt.Equal(received))
	})
}

func TestBatchResult_EmptyRejectionsEncodeAsArray(t *testing.T) {
	b, err := json.Marshal(NewBatchResult())
	require.NoError(t, err)
	assert.Contains(t, string(b), `"rejections":[]`)
}
