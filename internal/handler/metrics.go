package handler

import (
	"fmt"
	"net/http"

	"github.com/tokentill/tokentill/internal/metrics"
)

// MetricsHandler exposes in-memory metrics.
// The main server serves the Prometheus registry through promhttp;
// this handler is the lightweight fallback for test and dev setups.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics returns metrics in Prometheus exposition format.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeMetric(w, "tokentill_account_cache_hits_total %d\n", snap.AccountCacheHits)
	writeMetric(w, "tokentill_account_cache_misses_total %d\n", snap.AccountCacheMisses)
	writeMetric(w, "tokentill_account_lookup_duration_seconds_count %d\n", snap.LookupDurationCount)
	writeMetric(w, "tokentill_account_lookup_duration_seconds_sum %.6f\n", float64(snap.LookupDurationTotalNs)/1e9)

	writeMetric(w, "tokentill_accounts_created_total %d\n", snap.AccountsCreated)
	writeMetric(w, "tokentill_accounts_updated_total %d\n", snap.AccountsUpdated)
	writeMetric(w, "tokentill_accounts_deactivated_total %d\n", snap.AccountsDeactivated)

	writeMetric(w, "tokentill_transfers_completed_total %d\n", snap.TransfersCompleted)
	writeMetric(w, "tokentill_transfers_rejected_total %d\n", snap.TransfersRejected)
	writeMetric(w, "tokentill_transfer_duration_seconds_count %d\n", snap.TransferDurationCount)
	writeMetric(w, "tokentill_transfer_duration_seconds_sum %.6f\n", float64(snap.TransferDurationTotalNs)/1e9)
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
