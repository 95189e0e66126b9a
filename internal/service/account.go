// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/tokentill/tokentill/internal/cache"
	"github.com/tokentill/tokentill/internal/metrics"
	"github.com/tokentill/tokentill/internal/model"
	"github.com/tokentill/tokentill/internal/repository"
	"github.com/tokentill/tokentill/internal/webhook"
)

// Service errors.
var (
	ErrAuthorityRequired = errors.New("authority is required")
	ErrNameTooLong       = errors.New("name exceeds maximum length")
	ErrInvalidAge        = errors.New("age must be greater than zero")
	ErrAccountExists     = errors.New("account already exists for authority")
	ErrAccountNotFound   = errors.New("account not found")
	ErrAccountInactive   = errors.New("account is not active")
	ErrUnauthorized      = errors.New("authority does not own this account")
	ErrInvalidStatus     = errors.New("invalid status filter")

	// ErrAccountAlreadyInactive rejects a repeat deactivation. There is
	// no reactivation path, so the second call cannot change anything.
	ErrAccountAlreadyInactive = errors.New("account is already inactive")
)

// AccountService handles account business logic.
type AccountService struct {
	repo    *repository.Repository
	cache   *cache.Cache
	events  *webhook.Publisher
	metrics metrics.Recorder
}

// NewAccountService creates a new AccountService.
func NewAccountService(repo *repository.Repository, cache *cache.Cache, events *webhook.Publisher, recorder metrics.Recorder) *AccountService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &AccountService{
		repo:    repo,
		cache:   cache,
		events:  events,
		metrics: recorder,
	}
}

// CreateAccountInput defines input for creating an account.
type CreateAccountInput struct {
	Authority   string
	Name        string
	Age         uint8
	ActorUserID string
}

// CreateAccount creates a new token account for an authority.
// The address is derived from the authority, so the same authority
// always maps to the same account.
func (s *AccountService) CreateAccount(ctx context.Context, input CreateAccountInput) (*model.Account, error) {
	if input.Authority == "" {
		return nil, ErrAuthorityRequired
	}
	if err := validateProfile(input.Name, input.Age); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	account := &model.Account{
		ID:        newULID(),
		Address:   model.DeriveAddress(input.Authority),
		Authority: input.Authority,
		Name:      input.Name,
		Age:       input.Age,
		Balance:   0,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.CreateAccount(ctx, account); err != nil {
		if errors.Is(err, repository.ErrAccountExists) {
			return nil, ErrAccountExists
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	s.metrics.IncAccountCreated()

	// Warm the cache; readers tolerate a miss
	if err := s.cache.SetAccount(ctx, account); err != nil {
		_ = err
	}

	if s.events != nil {
		_ = s.events.PublishAccountEvent(ctx, input.ActorUserID, model.EventTypeAccountCreated, account)
	}

	return account, nil
}

// GetAccount retrieves an account by address.
// This is the hot path - optimized for speed with cache-first lookup.
func (s *AccountService) GetAccount(ctx context.Context, address string) (*model.Account, bool, error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveLookupDuration(time.Since(start))
	}()

	cacheHit := false

	// Step 1: Try cache
	cached, err := s.cache.GetAccount(ctx, address)
	if err == nil {
		cacheHit = true
		s.metrics.IncAccountCacheHit()
		return cached.ToAccount(address), cacheHit, nil
	}

	// Step 2: Check negative cache
	if !errors.Is(err, cache.ErrCacheMiss) {
		// Redis error - fall through to DB
	} else {
		s.metrics.IncAccountCacheMiss()
		isNegative, _ := s.cache.IsNegativelyCached(ctx, address)
		if isNegative {
			return nil, cacheHit, ErrAccountNotFound
		}
	}

	// Step 3: DB lookup
	account, err := s.repo.GetAccountByAddress(ctx, address)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			_ = s.cache.SetNegativeCache(ctx, address)
			return nil, cacheHit, ErrAccountNotFound
		}
		return nil, cacheHit, err
	}

	// Step 4: Backfill cache
	if err := s.cache.SetAccount(ctx, account); err != nil {
		_ = err
	}

	return account, cacheHit, nil
}

// GetAccountByAuthority retrieves the account owned by an authority.
func (s *AccountService) GetAccountByAuthority(ctx context.Context, authority string) (*model.Account, error) {
	if authority == "" {
		return nil, ErrAuthorityRequired
	}

	account, err := s.repo.GetAccountByAuthority(ctx, authority)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	return account, nil
}

// ValidateAccount reports whether an account can participate in
// operations: active, named, and carrying a positive age.
func (s *AccountService) ValidateAccount(ctx context.Context, address string) (bool, error) {
	account, _, err := s.GetAccount(ctx, address)
	if err != nil {
		return false, err
	}
	return account.IsValid(), nil
}

// ListAccountsInput defines input for listing accounts.
type ListAccountsInput struct {
	Cursor        string
	Limit         int
	Status        string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

// ListAccountsOutput defines output for listing accounts.
type ListAccountsOutput struct {
	Accounts   []*model.Account
	NextCursor string
	HasMore    bool
}

// ListAccounts retrieves a paginated list of accounts.
func (s *AccountService) ListAccounts(ctx context.Context, input ListAccountsInput) (*ListAccountsOutput, error) {
	// Set defaults
	if input.Limit <= 0 || input.Limit > 100 {
		input.Limit = 20
	}

	var status model.AccountStatus
	switch input.Status {
	case "":
		// No filter
	case string(model.AccountStatusActive), string(model.AccountStatusInactive):
		status = model.AccountStatus(input.Status)
	default:
		return nil, ErrInvalidStatus
	}

	filter := repository.AccountFilter{
		Status:        status,
		CreatedAfter:  input.CreatedAfter,
		CreatedBefore: input.CreatedBefore,
	}

	accounts, nextCursor, err := s.repo.ListAccounts(ctx, filter, input.Cursor, input.Limit)
	if err != nil {
		return nil, err
	}

	return &ListAccountsOutput{
		Accounts:   accounts,
		NextCursor: nextCursor,
		HasMore:    nextCursor != "",
	}, nil
}

// UpdateAccountInput defines input for updating an account profile.
// Nil fields are left unchanged.
type UpdateAccountInput struct {
	Address   string
	Authority string
	Name      *string
	Age       *uint8
}

// UpdateAccount updates an account's mutable profile fields.
// Only the owning authority may update an account.
func (s *AccountService) UpdateAccount(ctx context.Context, input UpdateAccountInput) (*model.Account, error) {
	account, err := s.repo.GetAccountByAddress(ctx, input.Address)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	if account.Authority != input.Authority {
		return nil, ErrUnauthorized
	}

	// Apply updates
	if input.Name != nil {
		if len(*input.Name) > model.MaxNameLength {
			return nil, ErrNameTooLong
		}
		account.Name = *input.Name
	}

	if input.Age != nil {
		if *input.Age == 0 {
			return nil, ErrInvalidAge
		}
		account.Age = *input.Age
	}

	account.UpdatedAt = time.Now().UTC()

	if err := s.repo.UpdateAccountProfile(ctx, account); err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	s.metrics.IncAccountUpdated()

	// Invalidate cache
	if err := s.cache.DeleteAccount(ctx, account.Address); err != nil {
		// Eventual consistency is acceptable; TTL bounds staleness
		_ = err
	}

	return account, nil
}

// DeactivateAccountInput defines input for deactivating an account.
type DeactivateAccountInput struct {
	Address     string
	Authority   string
	ActorUserID string
}

// DeactivateAccount marks an account inactive. The operation is
// one-way: there is no reactivation path.
func (s *AccountService) DeactivateAccount(ctx context.Context, input DeactivateAccountInput) (*model.Account, error) {
	account, err := s.repo.GetAccountByAddress(ctx, input.Address)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	if account.Authority != input.Authority {
		return nil, ErrUnauthorized
	}

	if !account.Active {
		return nil, ErrAccountAlreadyInactive
	}

	now := time.Now().UTC()
	if err := s.repo.DeactivateAccount(ctx, input.Address, now); err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			// Lost a race with a concurrent deactivation
			return nil, ErrAccountAlreadyInactive
		}
		return nil, err
	}

	account.Active = false
	account.DeactivatedAt = &now
	account.UpdatedAt = now

	s.metrics.IncAccountDeactivated()

	if err := s.cache.DeleteAccount(ctx, account.Address); err != nil {
		_ = err
	}

	if s.events != nil {
		_ = s.events.PublishAccountEvent(ctx, input.ActorUserID, model.EventTypeAccountDeactivated, account)
	}

	return account, nil
}

// validateProfile checks name and age constraints shared by create and
// update. An empty name is allowed; only the length cap applies. Such
// an account exists but reports invalid until it is named.
func validateProfile(name string, age uint8) error {
	if len(name) > model.MaxNameLength {
		return ErrNameTooLong
	}
	if age == 0 {
		return ErrInvalidAge
	}
	return nil
}

// newULID generates a unique, time-sortable ID.
func newULID() string {
	return ulid.Make().String()
}
