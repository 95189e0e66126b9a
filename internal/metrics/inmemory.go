package metrics

import (
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	AccountCacheHits        uint64
	AccountCacheMisses      uint64
	LookupDurationCount     uint64
	LookupDurationTotalNs   int64
	AccountsCreated         uint64
	AccountsUpdated         uint64
	AccountsDeactivated     uint64
	TransfersCompleted      uint64
	TransfersRejected       uint64
	TransferDurationCount   uint64
	TransferDurationTotalNs int64
}

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	accountCacheHits        uint64
	accountCacheMisses      uint64
	lookupDurationCount     uint64
	lookupDurationTotalNs   int64
	accountsCreated         uint64
	accountsUpdated         uint64
	accountsDeactivated     uint64
	transfersCompleted      uint64
	transfersRejected       uint64
	transferDurationCount   uint64
	transferDurationTotalNs int64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	return Snapshot{
		AccountCacheHits:        atomic.LoadUint64(&m.accountCacheHits),
		AccountCacheMisses:      atomic.LoadUint64(&m.accountCacheMisses),
		LookupDurationCount:     atomic.LoadUint64(&m.lookupDurationCount),
		LookupDurationTotalNs:   atomic.LoadInt64(&m.lookupDurationTotalNs),
		AccountsCreated:         atomic.LoadUint64(&m.accountsCreated),
		AccountsUpdated:         atomic.LoadUint64(&m.accountsUpdated),
		AccountsDeactivated:     atomic.LoadUint64(&m.accountsDeactivated),
		TransfersCompleted:      atomic.LoadUint64(&m.transfersCompleted),
		TransfersRejected:       atomic.LoadUint64(&m.transfersRejected),
		TransferDurationCount:   atomic.LoadUint64(&m.transferDurationCount),
		TransferDurationTotalNs: atomic.LoadInt64(&m.transferDurationTotalNs),
	}
}

// IncAccountCacheHit increments cache hit counter.
func (m *InMemoryRecorder) IncAccountCacheHit() {
	atomic.AddUint64(&m.accountCacheHits, 1)
}

// IncAccountCacheMiss increments cache miss counter.
func (m *InMemoryRecorder) IncAccountCacheMiss() {
	atomic.AddUint64(&m.accountCacheMisses, 1)
}

// ObserveLookupDuration records account lookup duration.
func (m *InMemoryRecorder) ObserveLookupDuration(duration time.Duration) {
	atomic.AddUint64(&m.lookupDurationCount, 1)
	atomic.AddInt64(&m.lookupDurationTotalNs, duration.Nanoseconds())
}

// IncAccountCreated increments account created counter.
func (m *InMemoryRecorder) IncAccountCreated() {
	atomic.AddUint64(&m.accountsCreated, 1)
}

// IncAccountUpdated increments account updated counter.
func (m *InMemoryRecorder) IncAccountUpdated() {
	atomic.AddUint64(&m.accountsUpdated, 1)
}

// IncAccountDeactivated increments account deactivated counter.
func (m *InMemoryRecorder) IncAccountDeactivated() {
	atomic.AddUint64(&m.accountsDeactivated, 1)
}

// IncTransferCompleted increments transfer completed counter.
func (m *InMemoryRecorder) IncTransferCompleted() {
	atomic.AddUint64(&m.transfersCompleted, 1)
}

// IncTransferRejected increments transfer rejected counter.
func (m *InMemoryRecorder) IncTransferRejected(reason string) {
	atomic.AddUint64(&m.transfersRejected, 1)
}

// ObserveTransferDuration records transfer duration.
func (m *InMemoryRecorder) ObserveTransferDuration(duration time.Duration) {
	atomic.AddUint64(&m.transferDurationCount, 1)
	atomic.AddInt64(&m.transferDurationTotalNs, duration.Nanoseconds())
}

// IncActivityEventPublished is not tracked in memory.
func (m *InMemoryRecorder) IncActivityEventPublished(status string) {}

// IncActivityEventProcessed is not tracked in memory.
func (m *InMemoryRecorder) IncActivityEventProcessed(status string) {}

// ObserveActivityBatchSize is not tracked in memory.
func (m *InMemoryRecorder) ObserveActivityBatchSize(size int) {}

// ObserveActivityBatchDuration is not tracked in memory.
func (m *InMemoryRecorder) ObserveActivityBatchDuration(duration time.Duration) {}

// SetActivityQueueDepth is not tracked in memory.
func (m *InMemoryRecorder) SetActivityQueueDepth(depth int64) {}

// ObserveActivityIngestLag is not tracked in memory.
func (m *InMemoryRecorder) ObserveActivityIngestLag(lag time.Duration) {}

// IncWebhookDelivery is not tracked in memory.
func (m *InMemoryRecorder) IncWebhookDelivery(status string, endpointID string) {}

// IncWebhookRetry is not tracked in memory.
func (m *InMemoryRecorder) IncWebhookRetry(endpointID string, attempt int) {}

// ObserveWebhookDeliveryDuration is not tracked in memory.
func (m *InMemoryRecorder) ObserveWebhookDeliveryDuration(endpointID string, duration time.Duration) {}

// SetWebhookQueueDepth is not tracked in memory.
func (m *InMemoryRecorder) SetWebhookQueueDepth(depth int64) {}
