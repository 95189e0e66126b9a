package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tokentill/tokentill/internal/model"
)

// Cache key prefixes and TTLs.
const (
	accountKeyPrefix  = "account:"
	negCacheKeySuffix = ":neg"

	// DefaultAccountTTL is the TTL for cached account data. Short on
	// purpose: balances change on every transfer and the cache is
	// invalidated on writes, the TTL just bounds staleness if an
	// invalidation is lost.
	DefaultAccountTTL = 15 * time.Minute

	// NegativeCacheTTL is the TTL for negative cache entries.
	NegativeCacheTTL = 5 * time.Minute
)

// Common cache errors.
var (
	ErrCacheMiss = errors.New("cache miss")
)

// GetAccount retrieves an account from cache by address.
// Returns ErrCacheMiss if not found.
func (c *Cache) GetAccount(ctx context.Context, address string) (*model.CachedAccount, error) {
	key := accountKeyPrefix + address

	result, err := c.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall failed: %w", err)
	}

	if len(result) == 0 {
		return nil, ErrCacheMiss
	}

	cached := &model.CachedAccount{
		ID:            result["id"],
		Authority:     result["authority"],
		Name:          result["name"],
		Age:           result["age"],
		Balance:       result["balance"],
		Active:        result["active"],
		DeactivatedAt: result["deactivated_at"],
		CreatedAt:     result["created_at"],
		UpdatedAt:     result["updated_at"],
	}

	return cached, nil
}

// SetAccount stores an account in cache.
func (c *Cache) SetAccount(ctx context.Context, account *model.Account) error {
	key := accountKeyPrefix + account.Address
	cached := account.ToCachedAccount()

	fields := map[string]any{
		"id":         cached.ID,
		"authority":  cached.Authority,
		"name":       cached.Name,
		"age":        cached.Age,
		"balance":    cached.Balance,
		"active":     cached.Active,
		"created_at": cached.CreatedAt,
		"updated_at": cached.UpdatedAt,
	}

	// Only set optional fields if they have values
	if cached.DeactivatedAt != "" {
		fields["deactivated_at"] = cached.DeactivatedAt
	}

	pipe := c.client.Pipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, DefaultAccountTTL)

	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to cache account: %w", err)
	}

	// Remove negative cache if exists
	c.client.Del(ctx, key+negCacheKeySuffix)

	return nil
}

// DeleteAccount removes an account from cache. Called after every
// balance or profile mutation so readers never see a stale row.
func (c *Cache) DeleteAccount(ctx context.Context, address string) error {
	key := accountKeyPrefix + address

	pipe := c.client.Pipeline()
	pipe.Del(ctx, key)
	pipe.Del(ctx, key+negCacheKeySuffix)

	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete account from cache: %w", err)
	}

	return nil
}

// IsNegativelyCached checks if an address is in negative cache.
func (c *Cache) IsNegativelyCached(ctx context.Context, address string) (bool, error) {
	key := accountKeyPrefix + address + negCacheKeySuffix

	exists, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check negative cache: %w", err)
	}

	return exists > 0, nil
}

// SetNegativeCache marks an address as not found.
func (c *Cache) SetNegativeCache(ctx context.Context, address string) error {
	key := accountKeyPrefix + address + negCacheKeySuffix

	err := c.client.SetEx(ctx, key, "", NegativeCacheTTL).Err()
	if err != nil {
		return fmt.Errorf("failed to set negative cache: %w", err)
	}

	return nil
}
