package metrics

import (
	"time"

	"github.com/PratikDhanave/machine-events-service/internal/models"
)

// ObserveBatch records the counters of one successfully processed batch.
func ObserveBatch(res models.BatchResult, elapsed time.Duration) {
	IngestBatchesTotal.WithLabelValues("ok").Inc()
	IngestBatchDuration.Observe(elapsed.Seconds())

	addOutcome("accepted", res.Accepted)
	addOutcome("deduped", res.Deduped)
	addOutcome("updated", res.Updated)
	addOutcome("rejected", res.Rejected)
	addOutcome("ignored", res.Ignored)
}

// ObserveBatchError records a batch that failed at the storage boundary.
func ObserveBatchError(elapsed time.Duration) {
	IngestBatchesTotal.WithLabelValues("error").Inc()
	IngestBatchDuration.Observe(elapsed.Seconds())
}

// ObserveStoreOp records the latency of one storage call.
func ObserveStoreOp(store, op string, start time.Time) {
	StoreOpDuration.WithLabelValues(store, op).Observe(time.Since(start).Seconds())
}

func addOutcome(outcome string, n int) {
	if n > 0 {
		IngestEventsTotal.WithLabelValues(outcome).Add(float64(n))
	}
}
