package repository

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/tokentill/tokentill/internal/model"
)

// Common errors for transfer repository operations.
var (
	ErrTransferNotFound  = errors.New("transfer not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAccountInactive   = errors.New("account is not active")
	ErrBalanceOverflow   = errors.New("balance overflow")
)

// TransferFilter defines filters for listing transfers.
type TransferFilter struct {
	Address       string // Rows where the account is sender or receiver
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

// ExecuteTransfer atomically moves tokens between two accounts and records
// the ledger entry. Both account rows are locked in address order so that
// concurrent transfers between the same pair cannot deadlock. The balance
// checks run against the locked rows.
func (r *Repository) ExecuteTransfer(ctx context.Context, transfer *model.Transfer) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transfer tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	first, second := transfer.FromAddress, transfer.ToAddress
	if second < first {
		first, second = second, first
	}

	balances := make(map[string]uint64, 2)
	actives := make(map[string]bool, 2)
	for _, address := range []string{first, second} {
		balance, active, err := lockAccount(ctx, tx, address)
		if err != nil {
			return err
		}
		balances[address] = balance
		actives[address] = active
	}

	// Balance is checked before the active flags, so an underfunded
	// sender always reports insufficient funds
	senderBalance := balances[transfer.FromAddress]
	if senderBalance < transfer.Amount {
		return ErrInsufficientFunds
	}

	if !actives[transfer.FromAddress] || !actives[transfer.ToAddress] {
		return ErrAccountInactive
	}

	receiverBalance := balances[transfer.ToAddress]
	if receiverBalance > math.MaxUint64-transfer.Amount {
		return ErrBalanceOverflow
	}

	if err := setBalance(ctx, tx, transfer.FromAddress, senderBalance-transfer.Amount, transfer.CreatedAt); err != nil {
		return err
	}
	if err := setBalance(ctx, tx, transfer.ToAddress, receiverBalance+transfer.Amount, transfer.CreatedAt); err != nil {
		return err
	}

	if err := insertTransfer(ctx, tx, transfer); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transfer tx: %w", err)
	}

	return nil
}

// CreditAccount atomically adds tokens to an account and records a credit
// ledger entry (empty from-address). The account must be active.
func (r *Repository) CreditAccount(ctx context.Context, transfer *model.Transfer) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin credit tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	balance, active, err := lockAccount(ctx, tx, transfer.ToAddress)
	if err != nil {
		return err
	}
	if !active {
		return ErrAccountInactive
	}
	if balance > math.MaxUint64-transfer.Amount {
		return ErrBalanceOverflow
	}

	if err := setBalance(ctx, tx, transfer.ToAddress, balance+transfer.Amount, transfer.CreatedAt); err != nil {
		return err
	}
	if err := insertTransfer(ctx, tx, transfer); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit credit tx: %w", err)
	}

	return nil
}

// GetTransferByID retrieves a transfer by its ID.
func (r *Repository) GetTransferByID(ctx context.Context, id string) (*model.Transfer, error) {
	query := `
		SELECT id, from_address, to_address, authority, amount::text, fee::text, created_at
		FROM transfers
		WHERE id = $1
	`

	transfer, err := scanTransfer(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransferNotFound
		}
		return nil, fmt.Errorf("failed to get transfer by ID: %w", err)
	}

	return transfer, nil
}

// ListTransfers retrieves a paginated list of transfers touching an address.
func (r *Repository) ListTransfers(ctx context.Context, filter TransferFilter, cursor string, limit int) ([]*model.Transfer, string, error) {
	var cursorData *PaginationCursor
	if cursor != "" {
		var err error
		cursorData, err = decodeCursor(cursor)
		if err != nil {
			return nil, "", ErrInvalidCursor
		}
	}

	query := `
		SELECT id, from_address, to_address, authority, amount::text, fee::text, created_at
		FROM transfers
		WHERE (from_address = $1 OR to_address = $1)
	`
	args := []any{filter.Address}
	argIndex := 2

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

	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", argIndex)
	args = append(args, limit+1)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, "", fmt.Errorf("failed to list transfers: %w", err)
	}
	defer rows.Close()

	var transfers []*model.Transfer
	for rows.Next() {
		transfer, err := scanTransfer(rows)
		if err != nil {
			return nil, "", fmt.Errorf("failed to scan transfer: %w", err)
		}
		transfers = append(transfers, transfer)
	}

	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("error iterating transfers: %w", err)
	}

	var nextCursor string
	if len(transfers) > limit {
		transfers = transfers[:limit]
		last := transfers[len(transfers)-1]
		nextCursor = encodeCursor(&PaginationCursor{
			ID:        last.ID,
			CreatedAt: last.CreatedAt,
		})
	}

	return transfers, nextCursor, nil
}

// lockAccount reads an account's balance and status under FOR UPDATE.
func lockAccount(ctx context.Context, tx pgx.Tx, address string) (uint64, bool, error) {
	query := `
		SELECT balance::text, active
		FROM accounts
		WHERE address = $1
		FOR UPDATE
	`

	var balanceText string
	var active bool
	err := tx.QueryRow(ctx, query, address).Scan(&balanceText, &active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, ErrAccountNotFound
		}
		return 0, false, fmt.Errorf("lock account %s: %w", address, err)
	}

	balance, err := strconv.ParseUint(balanceText, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse balance %q: %w", balanceText, err)
	}

	return balance, active, nil
}

// setBalance writes an account's balance inside a transaction.
func setBalance(ctx context.Context, tx pgx.Tx, address string, balance uint64, at time.Time) error {
	query := `
		UPDATE accounts
		SET balance = $2::numeric, updated_at = $3
		WHERE address = $1
	`

	_, err := tx.Exec(ctx, query, address, strconv.FormatUint(balance, 10), at)
	if err != nil {
		return fmt.Errorf("update balance %s: %w", address, err)
	}

	return nil
}

// insertTransfer records the ledger entry inside a transaction.
func insertTransfer(ctx context.Context, tx pgx.Tx, transfer *model.Transfer) error {
	query := `
		INSERT INTO transfers (id, from_address, to_address, authority, amount, fee, created_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7)
	`

	_, err := tx.Exec(ctx, query,
		transfer.ID,
		nullableString(transfer.FromAddress),
		transfer.ToAddress,
		transfer.Authority,
		strconv.FormatUint(transfer.Amount, 10),
		strconv.FormatUint(transfer.Fee, 10),
		transfer.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert transfer: %w", err)
	}

	return nil
}

// scanTransfer scans a single row into a Transfer model.
func scanTransfer(row pgx.Row) (*model.Transfer, error) {
	var transfer model.Transfer
	var fromAddress *string
	var amount, fee string

	err := row.Scan(
		&transfer.ID,
		&fromAddress,
		&transfer.ToAddress,
		&transfer.Authority,
		&amount,
		&fee,
		&transfer.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if fromAddress != nil {
		transfer.FromAddress = *fromAddress
	}

	parsedAmount, err := strconv.ParseUint(amount, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	transfer.Amount = parsedAmount

	parsedFee, err := strconv.ParseUint(fee, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse fee %q: %w", fee, err)
	}
	transfer.Fee = parsedFee

	return &transfer, nil
}
