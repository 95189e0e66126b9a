package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tokentill/tokentill/internal/auth"
	"github.com/tokentill/tokentill/internal/handler/dto"
	"github.com/tokentill/tokentill/internal/service"
)

// AccountHandler handles HTTP requests for account operations.
type AccountHandler struct {
	svc    *service.AccountService
	logger *slog.Logger
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(svc *service.AccountService, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{
		svc:    svc,
		logger: logger,
	}
}

// Create handles POST /api/v1/accounts.
func (h *AccountHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	authority := auth.UserIDFromContext(r.Context())
	input := service.CreateAccountInput{
		Authority:   authority,
		Name:        req.Name,
		Age:         req.Age,
		ActorUserID: authority,
	}

	account, err := h.svc.CreateAccount(r.Context(), input)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("account_created",
		"account_id", account.ID,
		"address", account.Address,
	)

	response := dto.ToAccountResponse(account)
	writeJSON(w, http.StatusCreated, response)
}

// Get handles GET /api/v1/accounts/{address}.
func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")
	if address == "" {
		h.writeError(w, http.StatusBadRequest, "MISSING_ADDRESS", "Account address is required")
		return
	}

	account, _, err := h.svc.GetAccount(r.Context(), address)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	response := dto.ToAccountResponse(account)
	writeJSON(w, http.StatusOK, response)
}

// GetByAuthority handles GET /api/v1/accounts/by-authority/{authority}.
func (h *AccountHandler) GetByAuthority(w http.ResponseWriter, r *http.Request) {
	authority := chi.URLParam(r, "authority")
	if authority == "" {
		h.writeError(w, http.StatusBadRequest, "MISSING_AUTHORITY", "Authority is required")
		return
	}

	account, err := h.svc.GetAccountByAuthority(r.Context(), authority)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	response := dto.ToAccountResponse(account)
	writeJSON(w, http.StatusOK, response)
}

// Validity handles GET /api/v1/accounts/{address}/validity.
func (h *AccountHandler) Validity(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")
	if address == "" {
		h.writeError(w, http.StatusBadRequest, "MISSING_ADDRESS", "Account address is required")
		return
	}

	valid, err := h.svc.ValidateAccount(r.Context(), address)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ValidityResponse{
		Address: address,
		Valid:   valid,
	})
}

// List handles GET /api/v1/accounts.
func (h *AccountHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	limit := 20
	if l := query.Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	input := service.ListAccountsInput{
		Cursor: query.Get("cursor"),
		Limit:  limit,
		Status: query.Get("status"),
	}

	// Parse date filters
	if after := query.Get("created_after"); after != "" {
		if t, err := time.Parse(time.RFC3339, after); err == nil {
			input.CreatedAfter = &t
		}
	}
	if before := query.Get("created_before"); before != "" {
		if t, err := time.Parse(time.RFC3339, before); err == nil {
			input.CreatedBefore = &t
		}
	}

	result, err := h.svc.ListAccounts(r.Context(), input)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	response := dto.ToAccountListResponse(result.Accounts, result.NextCursor, result.HasMore)
	writeJSON(w, http.StatusOK, response)
}

// Update handles PATCH /api/v1/accounts/{address}.
func (h *AccountHandler) Update(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")
	if address == "" {
		h.writeError(w, http.StatusBadRequest, "MISSING_ADDRESS", "Account address is required")
		return
	}

	var req dto.UpdateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	input := service.UpdateAccountInput{
		Address:   address,
		Authority: auth.UserIDFromContext(r.Context()),
		Name:      req.Name,
		Age:       req.Age,
	}

	account, err := h.svc.UpdateAccount(r.Context(), input)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("account_updated",
		"account_id", account.ID,
		"address", account.Address,
	)

	response := dto.ToAccountResponse(account)
	writeJSON(w, http.StatusOK, response)
}

// Deactivate handles POST /api/v1/accounts/{address}/deactivate.
func (h *AccountHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")
	if address == "" {
		h.writeError(w, http.StatusBadRequest, "MISSING_ADDRESS", "Account address is required")
		return
	}

	authority := auth.UserIDFromContext(r.Context())
	input := service.DeactivateAccountInput{
		Address:     address,
		Authority:   authority,
		ActorUserID: authority,
	}

	account, err := h.svc.DeactivateAccount(r.Context(), input)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("account_deactivated", "address", address)

	response := dto.ToAccountResponse(account)
	writeJSON(w, http.StatusOK, response)
}

// handleServiceError maps service errors to HTTP responses.
func (h *AccountHandler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrAccountNotFound):
		h.writeError(w, http.StatusNotFound, "ACCOUNT_NOT_FOUND", "Account not found")
	case errors.Is(err, service.ErrAccountExists):
		h.writeError(w, http.StatusConflict, "ACCOUNT_EXISTS", "Account already exists for this authority")
	case errors.Is(err, service.ErrAuthorityRequired):
		h.writeError(w, http.StatusBadRequest, "MISSING_AUTHORITY", "Authority is required")
	case errors.Is(err, service.ErrNameTooLong):
		h.writeError(w, http.StatusBadRequest, "NAME_TOO_LONG", "Name exceeds maximum length")
	case errors.Is(err, service.ErrInvalidAge):
		h.writeError(w, http.StatusBadRequest, "INVALID_AGE", "Age must be greater than zero")
	case errors.Is(err, service.ErrInvalidStatus):
		h.writeError(w, http.StatusBadRequest, "INVALID_STATUS", "Status must be active or inactive")
	case errors.Is(err, service.ErrAccountAlreadyInactive):
		h.writeError(w, http.StatusConflict, "ACCOUNT_ALREADY_INACTIVE", "Account is already inactive")
	case errors.Is(err, service.ErrAccountInactive):
		h.writeError(w, http.StatusConflict, "ACCOUNT_INACTIVE", "Account is not active")
	case errors.Is(err, service.ErrUnauthorized):
		h.writeError(w, http.StatusForbidden, "NOT_AUTHORITY", "Authority does not own this account")
	default:
		h.logger.Error("internal_error", "error", err)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
	}
}

// writeError writes an error response.
func (h *AccountHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, dto.ErrorResponse{
		Error: message,
		Code:  code,
	})
}
