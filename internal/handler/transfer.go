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

// TransferHandler handles HTTP requests for transfer operations.
type TransferHandler struct {
	svc    *service.TransferService
	logger *slog.Logger
}

// NewTransferHandler creates a new TransferHandler.
func NewTransferHandler(svc *service.TransferService, logger *slog.Logger) *TransferHandler {
	return &TransferHandler{
		svc:    svc,
		logger: logger,
	}
}

// Create handles POST /api/v1/transfers.
func (h *TransferHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	authority := auth.UserIDFromContext(r.Context())
	input := service.TransferInput{
		FromAddress: req.FromAddress,
		ToAddress:   req.ToAddress,
		Authority:   authority,
		Amount:      req.Amount,
		ActorUserID: authority,
	}

	transfer, err := h.svc.Transfer(r.Context(), input)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("transfer_completed",
		"transfer_id", transfer.ID,
		"from", transfer.FromAddress,
		"to", transfer.ToAddress,
		"amount", transfer.Amount,
	)

	response := dto.ToTransferResponse(transfer)
	writeJSON(w, http.StatusCreated, response)
}

// Credit handles POST /api/v1/admin/credits.
// Admin scope is enforced by middleware on the route.
func (h *TransferHandler) Credit(w http.ResponseWriter, r *http.Request) {
	var req dto.CreditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	input := service.CreditInput{
		ToAddress:   req.ToAddress,
		Amount:      req.Amount,
		ActorUserID: auth.UserIDFromContext(r.Context()),
	}

	transfer, err := h.svc.Credit(r.Context(), input)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("account_credited",
		"transfer_id", transfer.ID,
		"to", transfer.ToAddress,
		"amount", transfer.Amount,
	)

	response := dto.ToTransferResponse(transfer)
	writeJSON(w, http.StatusCreated, response)
}

// Get handles GET /api/v1/transfers/{id}.
func (h *TransferHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "MISSING_ID", "Transfer ID is required")
		return
	}

	transfer, err := h.svc.GetTransfer(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	response := dto.ToTransferResponse(transfer)
	writeJSON(w, http.StatusOK, response)
}

// ListByAccount handles GET /api/v1/accounts/{address}/transfers.
func (h *TransferHandler) ListByAccount(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")
	if address == "" {
		h.writeError(w, http.StatusBadRequest, "MISSING_ADDRESS", "Account address is required")
		return
	}

	query := r.URL.Query()

	limit := 20
	if l := query.Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	input := service.ListTransfersInput{
		Address: address,
		Cursor:  query.Get("cursor"),
		Limit:   limit,
	}

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

	result, err := h.svc.ListTransfers(r.Context(), input)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	response := dto.ToTransferListResponse(result.Transfers, result.NextCursor, result.HasMore)
	writeJSON(w, http.StatusOK, response)
}

// QuoteFee handles GET /api/v1/transfers/fee?amount=N.
func (h *TransferHandler) QuoteFee(w http.ResponseWriter, r *http.Request) {
	amountParam := r.URL.Query().Get("amount")
	if amountParam == "" {
		h.writeError(w, http.StatusBadRequest, "MISSING_AMOUNT", "Amount is required")
		return
	}

	amount, err := strconv.ParseUint(amountParam, 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_AMOUNT", "Amount must be a positive integer")
		return
	}

	fee, err := h.svc.QuoteFee(amount)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.FeeQuoteResponse{
		Amount:      amount,
		Fee:         fee,
		BasisPoints: h.svc.FeeBasisPoints(),
	})
}

// handleServiceError maps service errors to HTTP responses.
func (h *TransferHandler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrAccountNotFound):
		h.writeError(w, http.StatusNotFound, "ACCOUNT_NOT_FOUND", "Account not found")
	case errors.Is(err, service.ErrTransferNotFound):
		h.writeError(w, http.StatusNotFound, "TRANSFER_NOT_FOUND", "Transfer not found")
	case errors.Is(err, service.ErrAddressRequired):
		h.writeError(w, http.StatusBadRequest, "MISSING_ADDRESS", "Both addresses are required")
	case errors.Is(err, service.ErrInvalidAmount):
		h.writeError(w, http.StatusBadRequest, "INVALID_AMOUNT", "Amount must be greater than zero")
	case errors.Is(err, service.ErrSelfTransfer):
		h.writeError(w, http.StatusBadRequest, "SELF_TRANSFER", "Cannot transfer to the same account")
	case errors.Is(err, service.ErrInsufficientFunds):
		h.writeError(w, http.StatusUnprocessableEntity, "INSUFFICIENT_FUNDS", "Sender balance is too low")
	case errors.Is(err, service.ErrAccountInactive):
		h.writeError(w, http.StatusConflict, "ACCOUNT_INACTIVE", "Both accounts must be active")
	case errors.Is(err, service.ErrBalanceOverflow):
		h.writeError(w, http.StatusUnprocessableEntity, "BALANCE_OVERFLOW", "Transfer would overflow the receiver balance")
	case errors.Is(err, service.ErrUnauthorized):
		h.writeError(w, http.StatusForbidden, "NOT_AUTHORITY", "Authority does not own the sender account")
	default:
		h.logger.Error("internal_error", "error", err)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
	}
}

// writeError writes an error response.
func (h *TransferHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, dto.ErrorResponse{
		Error: message,
		Code:  code,
	})
}
