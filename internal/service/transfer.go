package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tokentill/tokentill/internal/activity"
	"github.com/tokentill/tokentill/internal/cache"
	"github.com/tokentill/tokentill/internal/metrics"
	"github.com/tokentill/tokentill/internal/model"
	"github.com/tokentill/tokentill/internal/repository"
	"github.com/tokentill/tokentill/internal/webhook"
)

// Transfer errors.
var (
	ErrInvalidAmount     = errors.New("amount must be greater than zero")
	ErrSelfTransfer      = errors.New("cannot transfer to the same account")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrBalanceOverflow   = errors.New("balance overflow")
	ErrTransferNotFound  = errors.New("transfer not found")
	ErrAddressRequired   = errors.New("address is required")
)

// TransferService handles token movement business logic.
type TransferService struct {
	repo           *repository.Repository
	cache          *cache.Cache
	events         *webhook.Publisher
	activity       *activity.Publisher
	feeBasisPoints uint64
	metrics        metrics.Recorder
}

// NewTransferService creates a new TransferService.
func NewTransferService(repo *repository.Repository, cache *cache.Cache, events *webhook.Publisher, activityPub *activity.Publisher, feeBasisPoints uint64, recorder metrics.Recorder) *TransferService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &TransferService{
		repo:           repo,
		cache:          cache,
		events:         events,
		activity:       activityPub,
		feeBasisPoints: feeBasisPoints,
		metrics:        recorder,
	}
}

// TransferInput defines input for a transfer.
type TransferInput struct {
	FromAddress string
	ToAddress   string
	Authority   string
	Amount      uint64
	ActorUserID string
}

// Transfer moves tokens between two accounts. The sender's authority
// must sign the request. Balance and activity checks run inside the
// ledger transaction; the pre-checks here only reject requests that
// can never succeed.
func (s *TransferService) Transfer(ctx context.Context, input TransferInput) (*model.Transfer, error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveTransferDuration(time.Since(start))
	}()

	if input.FromAddress == "" || input.ToAddress == "" {
		return nil, ErrAddressRequired
	}
	if input.Amount == 0 {
		s.metrics.IncTransferRejected("invalid_amount")
		return nil, ErrInvalidAmount
	}
	if input.FromAddress == input.ToAddress {
		s.metrics.IncTransferRejected("self_transfer")
		return nil, ErrSelfTransfer
	}

	// Ownership check runs outside the transaction; the locked rows
	// re-check active status and balance.
	sender, err := s.repo.GetAccountByAddress(ctx, input.FromAddress)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	if sender.Authority != input.Authority {
		s.metrics.IncTransferRejected("unauthorized")
		return nil, ErrUnauthorized
	}

	transfer := &model.Transfer{
		ID:          newULID(),
		FromAddress: input.FromAddress,
		ToAddress:   input.ToAddress,
		Authority:   input.Authority,
		Amount:      input.Amount,
		Fee:         model.CalculateFee(input.Amount, s.feeBasisPoints),
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.repo.ExecuteTransfer(ctx, transfer); err != nil {
		switch {
		case errors.Is(err, repository.ErrAccountNotFound):
			return nil, ErrAccountNotFound
		case errors.Is(err, repository.ErrAccountInactive):
			s.metrics.IncTransferRejected("inactive")
			return nil, ErrAccountInactive
		case errors.Is(err, repository.ErrInsufficientFunds):
			s.metrics.IncTransferRejected("insufficient_funds")
			return nil, ErrInsufficientFunds
		case errors.Is(err, repository.ErrBalanceOverflow):
			s.metrics.IncTransferRejected("overflow")
			return nil, ErrBalanceOverflow
		}
		return nil, fmt.Errorf("failed to execute transfer: %w", err)
	}

	s.metrics.IncTransferCompleted()
	s.afterLedgerWrite(ctx, transfer, input.ActorUserID)

	return transfer, nil
}

// CreditInput defines input for an administrative credit (mint).
type CreditInput struct {
	ToAddress   string
	Amount      uint64
	ActorUserID string
}

// Credit adds tokens to an account. Credits are recorded as ledger
// entries with no sender and carry no fee. Admin scope is enforced
// at the transport layer.
func (s *TransferService) Credit(ctx context.Context, input CreditInput) (*model.Transfer, error) {
	if input.ToAddress == "" {
		return nil, ErrAddressRequired
	}
	if input.Amount == 0 {
		return nil, ErrInvalidAmount
	}

	transfer := &model.Transfer{
		ID:        newULID(),
		ToAddress: input.ToAddress,
		Authority: "system",
		Amount:    input.Amount,
		Fee:       0,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.repo.CreditAccount(ctx, transfer); err != nil {
		switch {
		case errors.Is(err, repository.ErrAccountNotFound):
			return nil, ErrAccountNotFound
		case errors.Is(err, repository.ErrAccountInactive):
			return nil, ErrAccountInactive
		case errors.Is(err, repository.ErrBalanceOverflow):
			return nil, ErrBalanceOverflow
		}
		return nil, fmt.Errorf("failed to credit account: %w", err)
	}

	s.metrics.IncTransferCompleted()
	s.afterLedgerWrite(ctx, transfer, input.ActorUserID)

	return transfer, nil
}

// GetTransfer retrieves a transfer by ID.
func (s *TransferService) GetTransfer(ctx context.Context, id string) (*model.Transfer, error) {
	transfer, err := s.repo.GetTransferByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrTransferNotFound) {
			return nil, ErrTransferNotFound
		}
		return nil, err
	}

	return transfer, nil
}

// ListTransfersInput defines input for listing transfers.
type ListTransfersInput struct {
	Address       string
	Cursor        string
	Limit         int
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

// ListTransfersOutput defines output for listing transfers.
type ListTransfersOutput struct {
	Transfers  []*model.Transfer
	NextCursor string
	HasMore    bool
}

// ListTransfers retrieves the paginated ledger history for an address.
func (s *TransferService) ListTransfers(ctx context.Context, input ListTransfersInput) (*ListTransfersOutput, error) {
	if input.Address == "" {
		return nil, ErrAddressRequired
	}
	if input.Limit <= 0 || input.Limit > 100 {
		input.Limit = 20
	}

	filter := repository.TransferFilter{
		Address:       input.Address,
		CreatedAfter:  input.CreatedAfter,
		CreatedBefore: input.CreatedBefore,
	}

	transfers, nextCursor, err := s.repo.ListTransfers(ctx, filter, input.Cursor, input.Limit)
	if err != nil {
		return nil, err
	}

	return &ListTransfersOutput{
		Transfers:  transfers,
		NextCursor: nextCursor,
		HasMore:    nextCursor != "",
	}, nil
}

// QuoteFee returns the fee a transfer of the given amount would carry.
func (s *TransferService) QuoteFee(amount uint64) (uint64, error) {
	if amount == 0 {
		return 0, ErrInvalidAmount
	}
	return model.CalculateFee(amount, s.feeBasisPoints), nil
}

// FeeBasisPoints returns the configured fee rate.
func (s *TransferService) FeeBasisPoints() uint64 {
	return s.feeBasisPoints
}

// afterLedgerWrite runs the post-commit side effects: cache
// invalidation, activity stream publish, webhook fan-out. All are
// best-effort; the ledger entry is already durable.
func (s *TransferService) afterLedgerWrite(ctx context.Context, transfer *model.Transfer, actorUserID string) {
	if transfer.FromAddress != "" {
		_ = s.cache.DeleteAccount(ctx, transfer.FromAddress)
	}
	_ = s.cache.DeleteAccount(ctx, transfer.ToAddress)

	if s.activity != nil {
		s.activity.PublishAsync(activity.TransferEventPayload{
			TransferID: transfer.ID,
			From:       transfer.FromAddress,
			To:         transfer.ToAddress,
			Amount:     transfer.Amount,
			Fee:        transfer.Fee,
			OccurredAt: transfer.CreatedAt.UnixMilli(),
		})
	}

	if s.events != nil {
		// Both parties hear about the transfer. The receiver's user is
		// the authority on the receiving account.
		recipients := []string{actorUserID}
		if receiver, err := s.repo.GetAccountByAddress(ctx, transfer.ToAddress); err == nil {
			recipients = append(recipients, receiver.Authority)
		}
		_ = s.events.PublishTransferEvent(ctx, recipients, transfer)
	}
}
