// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"time"

	"github.com/tokentill/tokentill/internal/model"
)

// CreateAccountRequest represents the request body for creating an account.
// The account authority is the authenticated key's user, never a body field.
type CreateAccountRequest struct {
	Name string `json:"name"`
	Age  uint8  `json:"age"`
}

// UpdateAccountRequest represents the request body for updating an account.
// Name and Age are optional; omitted fields are left unchanged.
type UpdateAccountRequest struct {
	Name *string `json:"name,omitempty"`
	Age  *uint8  `json:"age,omitempty"`
}

// AccountResponse represents an account in API responses.
type AccountResponse struct {
	ID            string     `json:"id,omitempty"`
	Address       string     `json:"address"`
	Authority     string     `json:"authority"`
	Name          string     `json:"name"`
	Age           uint8      `json:"age"`
	Balance       uint64     `json:"balance"`
	Status        string     `json:"status"`
	DeactivatedAt *time.Time `json:"deactivated_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at,omitempty"`
}

// AccountListResponse represents a paginated list of accounts.
type AccountListResponse struct {
	Data       []AccountResponse `json:"data"`
	Pagination *Pagination       `json:"pagination"`
}

// ValidityResponse reports whether an account passes the validity rules.
type ValidityResponse struct {
	Address string `json:"address"`
	Valid   bool   `json:"valid"`
}

// Pagination provides cursor-based pagination info.
type Pagination struct {
	NextCursor string `json:"next_cursor,omitempty"`
	HasMore    bool   `json:"has_more"`
}

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// ToAccountResponse converts an Account model to AccountResponse DTO.
func ToAccountResponse(account *model.Account) *AccountResponse {
	return &AccountResponse{
		ID:            account.ID,
		Address:       account.Address,
		Authority:     account.Authority,
		Name:          account.Name,
		Age:           account.Age,
		Balance:       account.Balance,
		Status:        string(account.Status()),
		DeactivatedAt: account.DeactivatedAt,
		CreatedAt:     account.CreatedAt,
		UpdatedAt:     account.UpdatedAt,
	}
}

// ToAccountListResponse converts a slice of Account models to AccountListResponse.
func ToAccountListResponse(accounts []*model.Account, nextCursor string, hasMore bool) *AccountListResponse {
	responses := make([]AccountResponse, len(accounts))
	for i, account := range accounts {
		responses[i] = *ToAccountResponse(account)
	}
	return &AccountListResponse{
		Data: responses,
		Pagination: &Pagination{
			NextCursor: nextCursor,
			HasMore:    hasMore,
		},
	}
}
