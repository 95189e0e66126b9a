package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder exposes metrics through a Prometheus registry.
type PrometheusRecorder struct {
	accountCacheHits    prometheus.Counter
	accountCacheMisses  prometheus.Counter
	lookupDuration      prometheus.Histogram
	accountsCreated     prometheus.Counter
	accountsUpdated     prometheus.Counter
	accountsDeactivated prometheus.Counter
	transfersCompleted  prometheus.Counter
	transfersRejected   *prometheus.CounterVec
	transferDuration    prometheus.Histogram

	activityPublished     *prometheus.CounterVec
	activityProcessed     *prometheus.CounterVec
	activityBatchSize     prometheus.Histogram
	activityBatchDuration prometheus.Histogram
	activityQueueDepth    prometheus.Gauge
	activityIngestLag     prometheus.Histogram

	webhookDeliveries       *prometheus.CounterVec
	webhookRetries          prometheus.Counter
	webhookDeliveryDuration prometheus.Histogram
	webhookQueueDepth       prometheus.Gauge
}

// NewPrometheus creates a Recorder backed by the given registerer.
func NewPrometheus(reg prometheus.Registerer) *PrometheusRecorder {
	r := &PrometheusRecorder{
		accountCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tokentill_account_cache_hits_total",
			Help: "Account lookups served from cache.",
		}),
		accountCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tokentill_account_cache_misses_total",
			Help: "Account lookups that fell through to the database.",
		}),
		lookupDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tokentill_account_lookup_duration_seconds",
			Help:    "Account lookup latency.",
			Buckets: prometheus.DefBuckets,
		}),
		accountsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tokentill_accounts_created_total",
			Help: "Accounts created.",
		}),
		accountsUpdated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tokentill_accounts_updated_total",
			Help: "Account profile updates.",
		}),
		accountsDeactivated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tokentill_accounts_deactivated_total",
			Help: "Accounts deactivated.",
		}),
		transfersCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tokentill_transfers_completed_total",
			Help: "Transfers committed to the ledger.",
		}),
		transfersRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tokentill_transfers_rejected_total",
			Help: "Transfers rejected before commit.",
		}, []string{"reason"}),
		transferDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tokentill_transfer_duration_seconds",
			Help:    "End to end transfer latency including the ledger transaction.",
			Buckets: prometheus.DefBuckets,
		}),
		activityPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tokentill_activity_events_published_total",
			Help: "Transfer events published to the activity stream.",
		}, []string{"status"}),
		activityProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tokentill_activity_events_processed_total",
			Help: "Transfer events consumed from the activity stream.",
		}, []string{"status"}),
		activityBatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tokentill_activity_batch_size",
			Help:    "Events per consumed batch.",
			Buckets: []float64{1, 10, 25, 50, 100, 250, 500},
		}),
		activityBatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tokentill_activity_batch_duration_seconds",
			Help:    "Time to persist a consumed batch.",
			Buckets: prometheus.DefBuckets,
		}),
		activityQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tokentill_activity_queue_depth",
			Help: "Pending entries in the activity stream.",
		}),
		activityIngestLag: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tokentill_activity_ingest_lag_seconds",
			Help:    "Delay between event occurrence and persistence.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		}),
		webhookDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tokentill_webhook_deliveries_total",
			Help: "Webhook delivery attempts by outcome.",
		}, []string{"status"}),
		webhookRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tokentill_webhook_retries_total",
			Help: "Webhook delivery retries scheduled.",
		}),
		webhookDeliveryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tokentill_webhook_delivery_duration_seconds",
			Help:    "Outbound webhook request latency.",
			Buckets: prometheus.DefBuckets,
		}),
		webhookQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tokentill_webhook_queue_depth",
			Help: "Webhook deliveries awaiting dispatch.",
		}),
	}

	reg.MustRegister(
		r.accountCacheHits, r.accountCacheMisses, r.lookupDuration,
		r.accountsCreated, r.accountsUpdated, r.accountsDeactivated,
		r.transfersCompleted, r.transfersRejected, r.transferDuration,
		r.activityPublished, r.activityProcessed,
		r.activityBatchSize, r.activityBatchDuration,
		r.activityQueueDepth, r.activityIngestLag,
		r.webhookDeliveries, r.webhookRetries,
		r.webhookDeliveryDuration, r.webhookQueueDepth,
	)

	return r
}

func (r *PrometheusRecorder) IncAccountCacheHit()  { r.accountCacheHits.Inc() }
func (r *PrometheusRecorder) IncAccountCacheMiss() { r.accountCacheMisses.Inc() }

func (r *PrometheusRecorder) ObserveLookupDuration(duration time.Duration) {
	r.lookupDuration.Observe(duration.Seconds())
}

func (r *PrometheusRecorder) IncAccountCreated()     { r.accountsCreated.Inc() }
func (r *PrometheusRecorder) IncAccountUpdated()     { r.accountsUpdated.Inc() }
func (r *PrometheusRecorder) IncAccountDeactivated() { r.accountsDeactivated.Inc() }

func (r *PrometheusRecorder) IncTransferCompleted() { r.transfersCompleted.Inc() }

func (r *PrometheusRecorder) IncTransferRejected(reason string) {
	r.transfersRejected.WithLabelValues(reason).Inc()
}

func (r *PrometheusRecorder) ObserveTransferDuration(duration time.Duration) {
	r.transferDuration.Observe(duration.Seconds())
}

func (r *PrometheusRecorder) IncActivityEventPublished(status string) {
	r.activityPublished.WithLabelValues(status).Inc()
}

func (r *PrometheusRecorder) IncActivityEventProcessed(status string) {
	r.activityProcessed.WithLabelValues(status).Inc()
}

func (r *PrometheusRecorder) ObserveActivityBatchSize(size int) {
	r.activityBatchSize.Observe(float64(size))
}

func (r *PrometheusRecorder) ObserveActivityBatchDuration(duration time.Duration) {
	r.activityBatchDuration.Observe(duration.Seconds())
}

func (r *PrometheusRecorder) SetActivityQueueDepth(depth int64) {
	r.activityQueueDepth.Set(float64(depth))
}

func (r *PrometheusRecorder) ObserveActivityIngestLag(lag time.Duration) {
	r.activityIngestLag.Observe(lag.Seconds())
}

// Endpoint IDs are unbounded, so deliveries are labeled by status only.
func (r *PrometheusRecorder) IncWebhookDelivery(status string, endpointID string) {
	r.webhookDeliveries.WithLabelValues(status).Inc()
}

func (r *PrometheusRecorder) IncWebhookRetry(endpointID string, attempt int) {
	r.webhookRetries.Inc()
}

func (r *PrometheusRecorder) ObserveWebhookDeliveryDuration(endpointID string, duration time.Duration) {
	r.webhookDeliveryDuration.Observe(duration.Seconds())
}

func (r *PrometheusRecorder) SetWebhookQueueDepth(depth int64) {
	r.webhookQueueDepth.Set(float64(depth))
}
