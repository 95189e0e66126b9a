package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncAccountCacheHit is a no-op.
func (n *NoopRecorder) IncAccountCacheHit() {}

// IncAccountCacheMiss is a no-op.
func (n *NoopRecorder) IncAccountCacheMiss() {}

// ObserveLookupDuration is a no-op.
func (n *NoopRecorder) ObserveLookupDuration(duration time.Duration) {}

// IncAccountCreated is a no-op.
func (n *NoopRecorder) IncAccountCreated() {}

// IncAccountUpdated is a no-op.
func (n *NoopRecorder) IncAccountUpdated() {}

// IncAccountDeactivated is a no-op.
func (n *NoopRecorder) IncAccountDeactivated() {}

// IncTransferCompleted is a no-op.
func (n *NoopRecorder) IncTransferCompleted() {}

// IncTransferRejected is a no-op.
func (n *NoopRecorder) IncTransferRejected(reason string) {}

// ObserveTransferDuration is a no-op.
func (n *NoopRecorder) ObserveTransferDuration(duration time.Duration) {}

// IncActivityEventPublished is a no-op.
func (n *NoopRecorder) IncActivityEventPublished(status string) {}

// IncActivityEventProcessed is a no-op.
func (n *NoopRecorder) IncActivityEventProcessed(status string) {}

// ObserveActivityBatchSize is a no-op.
func (n *NoopRecorder) ObserveActivityBatchSize(size int) {}

// ObserveActivityBatchDuration is a no-op.
func (n *NoopRecorder) ObserveActivityBatchDuration(duration time.Duration) {}

// SetActivityQueueDepth is a no-op.
func (n *NoopRecorder) SetActivityQueueDepth(depth int64) {}

// ObserveActivityIngestLag is a no-op.
func (n *NoopRecorder) ObserveActivityIngestLag(lag time.Duration) {}

// IncWebhookDelivery is a no-op.
func (n *NoopRecorder) IncWebhookDelivery(status string, endpointID string) {}

// IncWebhookRetry is a no-op.
func (n *NoopRecorder) IncWebhookRetry(endpointID string, attempt int) {}

// ObserveWebhookDeliveryDuration is a no-op.
func (n *NoopRecorder) ObserveWebhookDeliveryDuration(endpointID string, duration time.Duration) {}

// SetWebhookQueueDepth is a no-op.
func (n *NoopRecorder) SetWebhookQueueDepth(depth int64) {}
