package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/redis/go-redis/v9"

	"github.com/tokentill/tokentill/internal/model"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
	})

	return &Cache{client: client}, mr
}

func TestSetAccount_GetAccount_Roundtrip(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)

	createdAt := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	updatedAt := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	account := &model.Account{
		ID:        "01HTEST00000000000000000AA",
		Address:   model.DeriveAddress("alice"),
		Authority: "alice",
		Name:      "Alice",
		Age:       30,
		Balance:   12500,
		Active:    true,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}

	if err := c.SetAccount(ctx, account); err != nil {
		t.Fatalf("SetAccount failed: %v", err)
	}

	got, err := c.GetAccount(ctx, account.Address)
	if err != nil {
		t.Fatalf("GetAccount failed: %v", err)
	}

	want := account.ToCachedAccount()
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("cached account mismatch (-want +got):\n%s", diff)
	}

	// The round trip through string fields must reproduce the account,
	// so a cache hit reads the same as the database row
	roundTripped := got.ToAccount(account.Address)
	if roundTripped.ID != account.ID {
		t.Errorf("ID = %q, want %q", roundTripped.ID, account.ID)
	}
	if roundTripped.Authority != account.Authority {
		t.Errorf("Authority = %q, want %q", roundTripped.Authority, account.Authority)
	}
	if roundTripped.Balance != account.Balance {
		t.Errorf("Balance = %d, want %d", roundTripped.Balance, account.Balance)
	}
	if roundTripped.Age != account.Age {
		t.Errorf("Age = %d, want %d", roundTripped.Age, account.Age)
	}
	if !roundTripped.Active {
		t.Error("Active should survive the round trip")
	}
	if !roundTripped.CreatedAt.Equal(createdAt) {
		t.Errorf("CreatedAt = %v, want %v", roundTripped.CreatedAt, createdAt)
	}
	if !roundTripped.UpdatedAt.Equal(updatedAt) {
		t.Errorf("UpdatedAt = %v, want %v", roundTripped.UpdatedAt, updatedAt)
	}
}

func TestSetAccount_DeactivatedAccount(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)

	deactivatedAt := time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)
	account := &model.Account{
		Address:       model.DeriveAddress("bob"),
		Authority:     "bob",
		Name:          "Bob",
		Age:           41,
		Balance:       0,
		Active:        false,
		DeactivatedAt: &deactivatedAt,
		UpdatedAt:     deactivatedAt,
	}

	if err := c.SetAccount(ctx, account); err != nil {
		t.Fatalf("SetAccount failed: %v", err)
	}

	got, err := c.GetAccount(ctx, account.Address)
	if err != nil {
		t.Fatalf("GetAccount failed: %v", err)
	}

	if got.Active != "0" {
		t.Errorf("Active = %q, want %q", got.Active, "0")
	}

	roundTripped := got.ToAccount(account.Address)
	if roundTripped.DeactivatedAt == nil {
		t.Fatal("DeactivatedAt should survive the round trip")
	}
	if !roundTripped.DeactivatedAt.Equal(deactivatedAt) {
		t.Errorf("DeactivatedAt = %v, want %v", roundTripped.DeactivatedAt, deactivatedAt)
	}
}

func TestGetAccount_Miss(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)

	_, err := c.GetAccount(ctx, model.DeriveAddress("nobody"))
	if !errors.Is(err, ErrCacheMiss) {
		t.Errorf("err = %v, want ErrCacheMiss", err)
	}
}

func TestSetAccount_AppliesTTL(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestCache(t)

	account := &model.Account{
		Address:   model.DeriveAddress("carol"),
		Authority: "carol",
		Name:      "Carol",
		Age:       25,
		Active:    true,
		UpdatedAt: time.Now().UTC(),
	}

	if err := c.SetAccount(ctx, account); err != nil {
		t.Fatalf("SetAccount failed: %v", err)
	}

	key := accountKeyPrefix + account.Address
	ttl := mr.TTL(key)
	if ttl != DefaultAccountTTL {
		t.Errorf("TTL = %v, want %v", ttl, DefaultAccountTTL)
	}

	mr.FastForward(DefaultAccountTTL + time.Second)

	_, err := c.GetAccount(ctx, account.Address)
	if !errors.Is(err, ErrCacheMiss) {
		t.Errorf("err after TTL expiry = %v, want ErrCacheMiss", err)
	}
}

func TestDeleteAccount(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)

	account := &model.Account{
		Address:   model.DeriveAddress("dave"),
		Authority: "dave",
		Name:      "Dave",
		Age:       50,
		Active:    true,
		UpdatedAt: time.Now().UTC(),
	}

	if err := c.SetAccount(ctx, account); err != nil {
		t.Fatalf("SetAccount failed: %v", err)
	}
	if err := c.DeleteAccount(ctx, account.Address); err != nil {
		t.Fatalf("DeleteAccount failed: %v", err)
	}

	_, err := c.GetAccount(ctx, account.Address)
	if !errors.Is(err, ErrCacheMiss) {
		t.Errorf("err after delete = %v, want ErrCacheMiss", err)
	}
}

func TestNegativeCache(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestCache(t)

	address := model.DeriveAddress("ghost")

	isNeg, err := c.IsNegativelyCached(ctx, address)
	if err != nil {
		t.Fatalf("IsNegativelyCached failed: %v", err)
	}
	if isNeg {
		t.Error("fresh address should not be negatively cached")
	}

	if err := c.SetNegativeCache(ctx, address); err != nil {
		t.Fatalf("SetNegativeCache failed: %v", err)
	}

	isNeg, err = c.IsNegativelyCached(ctx, address)
	if err != nil {
		t.Fatalf("IsNegativelyCached failed: %v", err)
	}
	if !isNeg {
		t.Error("address should be negatively cached after SetNegativeCache")
	}

	// Negative entries expire on their own
	mr.FastForward(NegativeCacheTTL + time.Second)

	isNeg, err = c.IsNegativelyCached(ctx, address)
	if err != nil {
		t.Fatalf("IsNegativelyCached failed: %v", err)
	}
	if isNeg {
		t.Error("negative cache entry should expire after its TTL")
	}
}

func TestSetAccount_ClearsNegativeCache(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)

	account := &model.Account{
		Address:   model.DeriveAddress("erin"),
		Authority: "erin",
		Name:      "Erin",
		Age:       28,
		Active:    true,
		UpdatedAt: time.Now().UTC(),
	}

	if err := c.SetNegativeCache(ctx, account.Address); err != nil {
		t.Fatalf("SetNegativeCache failed: %v", err)
	}
	if err := c.SetAccount(ctx, account); err != nil {
		t.Fatalf("SetAccount failed: %v", err)
	}

	isNeg, err := c.IsNegativelyCached(ctx, account.Address)
	if err != nil {
		t.Fatalf("IsNegativelyCached failed: %v", err)
	}
	if isNeg {
		t.Error("caching an account should clear its negative cache entry")
	}
}
