package dto

import (
	"time"

	"github.com/tokentill/tokentill/internal/model"
)

// TransferRequest represents the request body for a transfer.
// The signing authority is the authenticated key's user, never a body field.
type TransferRequest struct {
	FromAddress string `json:"from_address"`
	ToAddress   string `json:"to_address"`
	Amount      uint64 `json:"amount"`
}

// CreditRequest represents the request body for an admin credit.
type CreditRequest struct {
	ToAddress string `json:"to_address"`
	Amount    uint64 `json:"amount"`
}

// TransferResponse represents a ledger entry in API responses.
type TransferResponse struct {
	ID          string    `json:"id"`
	FromAddress string    `json:"from_address,omitempty"`
	ToAddress   string    `json:"to_address"`
	Authority   string    `json:"authority"`
	Amount      uint64    `json:"amount"`
	Fee         uint64    `json:"fee"`
	Credit      bool      `json:"credit,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// TransferListResponse represents a paginated list of transfers.
type TransferListResponse struct {
	Data       []TransferResponse `json:"data"`
	Pagination *Pagination        `json:"pagination"`
}

// FeeQuoteResponse represents a fee calculation result.
type FeeQuoteResponse struct {
	Amount      uint64 `json:"amount"`
	Fee         uint64 `json:"fee"`
	BasisPoints uint64 `json:"basis_points"`
}

// ToTransferResponse converts a Transfer model to TransferResponse DTO.
func ToTransferResponse(transfer *model.Transfer) *TransferResponse {
	return &TransferResponse{
		ID:          transfer.ID,
		FromAddress: transfer.FromAddress,
		ToAddress:   transfer.ToAddress,
		Authority:   transfer.Authority,
		Amount:      transfer.Amount,
		Fee:         transfer.Fee,
		Credit:      transfer.IsCredit(),
		CreatedAt:   transfer.CreatedAt,
	}
}

// ToTransferListResponse converts a slice of Transfer models to TransferListResponse.
func ToTransferListResponse(transfers []*model.Transfer, nextCursor string, hasMore bool) *TransferListResponse {
	responses := make([]TransferResponse, len(transfers))
	for i, transfer := range transfers {
		responses[i] = *ToTransferResponse(transfer)
	}
	return &TransferListResponse{
		Data: responses,
		Pagination: &Pagination{
			NextCursor: nextCursor,
			HasMore:    hasMore,
		},
	}
}
