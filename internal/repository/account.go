package repository

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/tokentill/tokentill/internal/model"
)

// Common errors for account repository operations.
var (
	ErrAccountNotFound = errors.New("account not found")
	ErrAccountExists   = errors.New("account already exists")
	ErrInvalidCursor   = errors.New("invalid pagination cursor")
)

// AccountFilter defines filters for listing accounts.
type AccountFilter struct {
	Status        model.AccountStatus
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

// PaginationCursor represents decoded cursor for pagination.
type PaginationCursor struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// Balances are u64 token amounts, which exceed BIGINT range. They are
// stored as NUMERIC(20,0) and moved through queries as text.

// CreateAccount inserts a new account into the database.
func (r *Repository) CreateAccount(ctx context.Context, account *model.Account) error {
	query := `
		INSERT INTO accounts (id, address, authority, name, age, balance, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8, $9)
	`

	_, err := r.pool.Exec(ctx, query,
		account.ID,
		account.Address,
		account.Authority,
		account.Name,
		int16(account.Age),
		strconv.FormatUint(account.Balance, 10),
		account.Active,
		account.CreatedAt,
		account.UpdatedAt,
	)

	if err != nil {
		// Check for unique constraint violation on address or authority
		if isUniqueViolation(err) {
			return ErrAccountExists
		}
		return fmt.Errorf("failed to create account: %w", err)
	}

	return nil
}

// GetAccountByAddress retrieves an account by its address.
// This is the hot path for balance reads.
func (r *Repository) GetAccountByAddress(ctx context.Context, address string) (*model.Account, error) {
	query := `
		SELECT id, address, authority, name, age, balance::text, active, deactivated_at, created_at, updated_at
		FROM accounts
		WHERE address = $1
	`

	account, err := scanAccount(r.pool.QueryRow(ctx, query, address))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account by address: %w", err)
	}

	return account, nil
}

// GetAccountByAuthority retrieves the account owned by an authority.
func (r *Repository) GetAccountByAuthority(ctx context.Context, authority string) (*model.Account, error) {
	query := `
		SELECT id, address, authority, name, age, balance::text, active, deactivated_at, created_at, updated_at
		FROM accounts
		WHERE authority = $1
	`

	account, err := scanAccount(r.pool.QueryRow(ctx, query, authority))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account by authority: %w", err)
	}

	return account, nil
}

// ListAccounts retrieves a paginated list of accounts.
func (r *Repository) ListAccounts(ctx context.Context, filter AccountFilter, cursor string, limit int) ([]*model.Account, string, error) {
	// Decode cursor if provided
	var cursorData *PaginationCursor
	if cursor != "" {
		var err error
		cursorData, err = decodeCursor(cursor)
		if err != nil {
			return nil, "", ErrInvalidCursor
		}
	}

	// Build query with filters
	query := `
		SELECT id, address, authority, name, age, balance::text, active, deactivated_at, created_at, updated_at
		FROM accounts
		WHERE 1 = 1
	`
	args := []any{}
	argIndex := 1

	if cursorData != nil {
		query += fmt.Sprintf(" AND (created_at, id) < ($%d, $%d)", argIndex, argIndex+1)
		args = append(args, cursorData.CreatedAt, cursorData.ID)
		argIndex += 2
	}

	if filter.CreatedAfter != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIndex)
		args = append(args, *filter.CreatedAfter)
		argIndex++
	}

	if filter.CreatedBefore != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argIndex)
		args = append(args, *filter.CreatedBefore)
		argIndex++
	}

	if filter.Status != "" {
		query += fmt.Sprintf(" AND active = $%d", argIndex)
		args = append(args, filter.Status == model.AccountStatusActive)
		argIndex++
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", argIndex)
	args = append(args, limit+1) // Fetch one extra to determine hasMore

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, "", fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*model.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, "", fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("error iterating accounts: %w", err)
	}

	// Determine if there are more results
	var nextCursor string
	if len(accounts) > limit {
		accounts = accounts[:limit] // Remove extra row
		lastAccount := accounts[len(accounts)-1]
		nextCursor = encodeCursor(&PaginationCursor{
			ID:        lastAccount.ID,
			CreatedAt: lastAccount.CreatedAt,
		})
	}

	return accounts, nextCursor, nil
}

// UpdateAccountProfile updates an account's name and age.
func (r *Repository) UpdateAccountProfile(ctx context.Context, account *model.Account) error {
	query := `
		UPDATE accounts
		SET name = $2, age = $3, updated_at = $4
		WHERE address = $1
	`

	result, err := r.pool.Exec(ctx, query,
		account.Address,
		account.Name,
		int16(account.Age),
		account.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrAccountNotFound
	}

	return nil
}

// DeactivateAccount marks an active account as inactive.
// Returns ErrAccountNotFound if the account is missing or already inactive;
// callers distinguish the two by re-reading the account.
func (r *Repository) DeactivateAccount(ctx context.Context, address string, at time.Time) error {
	query := `
		UPDATE accounts
		SET active = false, deactivated_at = $2, updated_at = $2
		WHERE address = $1 AND active = true
	`

	result, err := r.pool.Exec(ctx, query, address, at)
	if err != nil {
		return fmt.Errorf("failed to deactivate account: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrAccountNotFound
	}

	return nil
}

// AccountExists checks if an account exists for the given authority.
func (r *Repository) AccountExists(ctx context.Context, authority string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM accounts WHERE authority = $1)`

	var exists bool
	err := r.pool.QueryRow(ctx, query, authority).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check account existence: %w", err)
	}

	return exists, nil
}

// scanAccount scans a single row into an Account model.
// Works for both pgx.Row and pgx.Rows.
func scanAccount(row pgx.Row) (*model.Account, error) {
	var account model.Account
	var age int16
	var balance string

	err := row.Scan(
		&account.ID,
		&account.Address,
		&account.Authority,
		&account.Name,
		&age,
		&balance,
		&account.Active,
		&account.DeactivatedAt,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	account.Age = uint8(age)

	parsed, err := strconv.ParseUint(balance, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse balance %q: %w", balance, err)
	}
	account.Balance = parsed

	return &account, nil
}

// isUniqueViolation checks if the error is a PostgreSQL unique constraint violation.
func isUniqueViolation(err error) bool {
	// PostgreSQL error code 23505 is unique_violation
	return err != nil && (contains(err.Error(), "23505") || contains(err.Error(), "unique"))
}

// contains checks if a string contains a substring.
func contains(s, substr string) bool {
	return len(s) >= len(substr) && searchString(s, substr)
}

// searchString is a simple string search.
func searchString(s, substr string) bool {
	for i := 0; i <= len(s)-len(substr); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

// encodeCursor encodes pagination cursor to base64.
func encodeCursor(cursor *PaginationCursor) string {
	data, _ := json.Marshal(cursor)
	return base64.URLEncoding.EncodeToString(data)
}

// decodeCursor decodes base64 pagination cursor.
func decodeCursor(s string) (*PaginationCursor, error) {
	data, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}

	var cursor PaginationCursor
	if err := json.Unmarshal(data, &cursor); err != nil {
		return nil, err
	}

	return &cursor, nil
}
