package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tokentill/tokentill/internal/metrics"
)

func TestMetricsHandler_Metrics(t *testing.T) {
	recorder := metrics.NewInMemory()
	recorder.IncAccountCreated()
	recorder.IncAccountCreated()
	recorder.IncAccountCacheHit()
	recorder.IncTransferCompleted()
	recorder.IncTransferRejected("insufficient_funds")
	recorder.ObserveTransferDuration(250 * time.Millisecond)

	h := NewMetricsHandler(recorder)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.Metrics(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Content-Type = %q, want text/plain exposition format", ct)
	}

	body := rec.Body.String()
	for _, line := range []string{
		"tokentill_accounts_created_total 2",
		"tokentill_account_cache_hits_total 1",
		"tokentill_transfers_completed_total 1",
		"tokentill_transfers_rejected_total 1",
		"tokentill_transfer_duration_seconds_count 1",
		"tokentill_transfer_duration_seconds_sum 0.250000",
	} {
		if !strings.Contains(body, line) {
			t.Errorf("exposition output missing %q:\n%s", line, body)
		}
	}
}

func TestMetricsHandler_NoSnapshotter(t *testing.T) {
	h := NewMetricsHandler(nil)

	rec := httptest.NewRecorder()
	h.Metrics(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", rec.Code)
	}
}
