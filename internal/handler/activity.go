package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tokentill/tokentill/internal/handler/dto"
	"github.com/tokentill/tokentill/internal/model"
	"github.com/tokentill/tokentill/internal/repository"
)

// ActivityHandler handles activity API requests.
type ActivityHandler struct {
	repo   *repository.ActivityRepository
	logger *slog.Logger
}

// NewActivityHandler creates a new ActivityHandler.
func NewActivityHandler(repo *repository.ActivityRepository, logger *slog.Logger) *ActivityHandler {
	return &ActivityHandler{
		repo:   repo,
		logger: logger.With("component", "handler.activity"),
	}
}

// GetAccountActivity handles GET /api/v1/accounts/{address}/activity.
func (h *ActivityHandler) GetAccountActivity(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")
	if address == "" {
		h.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Account address is required")
		return
	}

	from, to := h.parseTimeRange(r)
	includeDaily := r.URL.Query().Get("include") != "summary"

	summary, err := h.repo.GetActivitySummary(r.Context(), address, from, to)
	if err != nil {
		h.logger.Error("failed to get activity summary", "address", address, "error", err)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch activity")
		return
	}

	var dailyStats []*model.DailyAccountStats
	if includeDaily {
		dailyStats, err = h.repo.GetDailyStats(r.Context(), address, from, to)
		if err != nil {
			h.logger.Error("failed to get daily stats", "address", address, "error", err)
			h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch activity")
			return
		}
	}

	response := buildActivityResponse(address, from, to, summary, dailyStats)
	writeJSON(w, http.StatusOK, response)
}

// parseTimeRange extracts from/to dates from query params.
func (h *ActivityHandler) parseTimeRange(r *http.Request) (time.Time, time.Time) {
	now := time.Now().UTC()
	defaultFrom := now.AddDate(0, 0, -7) // 7 days ago
	defaultTo := now

	fromStr := r.URL.Query().Get("from")
	toStr := r.URL.Query().Get("to")

	from := defaultFrom
	to := defaultTo

	if fromStr != "" {
		if parsed, err := time.Parse("2006-01-02", fromStr); err == nil {
			from = parsed
		}
	}

	if toStr != "" {
		if parsed, err := time.Parse("2006-01-02", toStr); err == nil {
			to = parsed
		}
	}

	// Cap to 90 days max
	if to.Sub(from) > 90*24*time.Hour {
		from = to.AddDate(0, 0, -90)
	}

	// Don't allow future dates
	if to.After(now) {
		to = now
	}

	return from, to
}

// buildActivityResponse constructs the API response.
func buildActivityResponse(
	address string,
	from, to time.Time,
	summary *model.ActivitySummary,
	dailyStats []*model.DailyAccountStats,
) *model.ActivityResponse {
	response := &model.ActivityResponse{
		Address:     address,
		GeneratedAt: time.Now().UTC(),
	}
	response.Period.From = from.Format("2006-01-02")
	response.Period.To = to.Format("2006-01-02")
	response.Summary = *summary

	for _, stat := range dailyStats {
		response.Daily = append(response.Daily, model.DailyBreakdown{
			Date:           stat.Date.Format("2006-01-02"),
			SentCount:      stat.SentCount,
			ReceivedCount:  stat.ReceivedCount,
			SentVolume:     stat.SentVolume,
			ReceivedVolume: stat.ReceivedVolume,
		})
	}

	return response
}

// writeError writes a JSON error response.
func (h *ActivityHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, dto.ErrorResponse{
		Error: message,
		Code:  code,
	})
}
