// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Account lookup metrics
	IncAccountCacheHit()
	IncAccountCacheMiss()
	ObserveLookupDuration(duration time.Duration)

	// Account management metrics
	IncAccountCreated()
	IncAccountUpdated()
	IncAccountDeactivated()

	// Transfer metrics
	IncTransferCompleted()
	IncTransferRejected(reason string) // reason: "insufficient_funds", "inactive", "overflow", ...
	ObserveTransferDuration(duration time.Duration)

	// Activity pipeline metrics
	IncActivityEventPublished(status string) // status: "success" or "dropped"
	IncActivityEventProcessed(status string) // status: "success", "failed", "skipped"
	ObserveActivityBatchSize(size int)
	ObserveActivityBatchDuration(duration time.Duration)
	SetActivityQueueDepth(depth int64)
	ObserveActivityIngestLag(lag time.Duration)

	// Webhook delivery metrics
	IncWebhookDelivery(status string, endpointID string) // status: "success", "failed", "exhausted"
	IncWebhookRetry(endpointID string, attempt int)
	ObserveWebhookDeliveryDuration(endpointID string, duration time.Duration)
	SetWebhookQueueDepth(depth int64)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
