package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/tokentill/tokentill/internal/model"
)

// AdminAccountSearcher defines the interface for account lookup operations.
type AdminAccountSearcher interface {
	GetAccountByAddress(ctx context.Context, address string) (*model.Account, error)
	GetAccountByAuthority(ctx context.Context, authority string) (*model.Account, error)
}

// AdminKeyLister defines the interface for listing API keys.
type AdminKeyLister interface {
	ListAPIKeysByUserID(ctx context.Context, userID string) ([]*model.APIKey, error)
}

// AdminHandler provides admin-only endpoints for debugging and operations.
type AdminHandler struct {
	accountRepo AdminAccountSearcher
	keyRepo     AdminKeyLister
	logger      *slog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(accountRepo AdminAccountSearcher, keyRepo AdminKeyLister, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		accountRepo: accountRepo,
		keyRepo:     keyRepo,
		logger:      logger,
	}
}

// AccountLookupResponse represents the response for account lookup.
type AccountLookupResponse struct {
	Accounts []AdminAccountResponse `json:"accounts"`
	Total    int                    `json:"total"`
}

// AdminAccountResponse represents an account in admin context with extended info.
type AdminAccountResponse struct {
	ID            string     `json:"id"`
	Address       string     `json:"address"`
	Authority     string     `json:"authority"`
	Name          string     `json:"name"`
	Age           uint8      `json:"age"`
	Balance       uint64     `json:"balance"`
	Active        bool       `json:"active"`
	DeactivatedAt *time.Time `json:"deactivated_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// LookupAccounts handles GET /api/v1/admin/accounts?q={address|authority}
// Searches by account address (exact match) or authority (exact match).
func (h *AdminHandler) LookupAccounts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeErrorJSON(w, http.StatusBadRequest, "MISSING_QUERY", "query parameter 'q' is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var accounts []*model.Account

	// Try exact address lookup first
	if account, err := h.accountRepo.GetAccountByAddress(ctx, query); err == nil {
		accounts = append(accounts, account)
	}

	// Fall back to authority lookup
	if len(accounts) == 0 {
		account, err := h.accountRepo.GetAccountByAuthority(ctx, query)
		if err == nil {
			accounts = append(accounts, account)
		} else {
			h.logger.Debug("admin account lookup miss",
				"query", truncateForLog(query, 100),
			)
		}
	}

	response := AccountLookupResponse{
		Accounts: make([]AdminAccountResponse, 0, len(accounts)),
		Total:    len(accounts),
	}

	for _, account := range accounts {
		response.Accounts = append(response.Accounts, AdminAccountResponse{
			ID:            account.ID,
			Address:       account.Address,
			Authority:     account.Authority,
			Name:          account.Name,
			Age:           account.Age,
			Balance:       account.Balance,
			Active:        account.Active,
			DeactivatedAt: account.DeactivatedAt,
			CreatedAt:     account.CreatedAt,
			UpdatedAt:     account.UpdatedAt,
		})
	}

	writeJSON(w, http.StatusOK, response)
}

// AdminAPIKeyListResponse represents the response for API key listing.
type AdminAPIKeyListResponse struct {
	Keys  []model.APIKeyResponse `json:"keys"`
	Total int                    `json:"total"`
}

// ListAPIKeysByUser handles GET /api/v1/admin/api-keys?user_id={id}
// Lists all API keys for a specific user (admin only).
func (h *AdminHandler) ListAPIKeysByUser(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeErrorJSON(w, http.StatusBadRequest, "MISSING_USER_ID", "query parameter 'user_id' is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	keys, err := h.keyRepo.ListAPIKeysByUserID(ctx, userID)
	if err != nil {
		h.logger.Error("failed to list API keys",
			"error", err,
			"user_id", userID,
		)
		writeErrorJSON(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to list API keys")
		return
	}

	response := AdminAPIKeyListResponse{
		Keys:  make([]model.APIKeyResponse, 0, len(keys)),
		Total: len(keys),
	}

	for _, key := range keys {
		response.Keys = append(response.Keys, key.ToResponse())
	}

	writeJSON(w, http.StatusOK, response)
}

// StatsResponse represents operational statistics.
type StatsResponse struct {
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
	Uptime    string    `json:"uptime,omitempty"`
}

// Stats handles GET /api/v1/admin/stats
// Returns basic operational statistics.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	response := StatsResponse{
		Timestamp: time.Now().UTC(),
		Service:   "tokentill",
		Version:   "1.0.0", // TODO: inject at build time
	}
	writeJSON(w, http.StatusOK, response)
}

// truncateForLog truncates a string for logging purposes.
func truncateForLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// writeErrorJSON writes a JSON error response.
func writeErrorJSON(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
		"code":  code,
	})
}
