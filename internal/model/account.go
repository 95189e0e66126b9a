// Package model defines domain entities for the application.
package model

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// MaxNameLength is the maximum account name length in bytes.
const MaxNameLength = 32

// AccountStatus represents the computed status of an account.
type AccountStatus string

const (
	AccountStatusActive   AccountStatus = "active"
	AccountStatusInactive AccountStatus = "inactive"
)

// addressSeed is the fixed prefix mixed into address derivation.
// One account per authority; the same authority always derives the
// same address.
const addressSeed = "account"

// DeriveAddress computes the deterministic account address for an authority.
func DeriveAddress(authority string) string {
	sum := sha256.Sum256([]byte(addressSeed + ":" + authority))
	return hex.EncodeToString(sum[:])
}

// Account represents a token account owned by an authority.
type Account struct {
	ID            string     `json:"id"`
	Address       string     `json:"address"`
	Authority     string     `json:"authority"`
	Name          string     `json:"name"`
	Age           uint8      `json:"age"`
	Balance       uint64     `json:"balance"`
	Active        bool       `json:"active"`
	DeactivatedAt *time.Time `json:"deactivated_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Status computes the current status of the account.
func (a *Account) Status() AccountStatus {
	if !a.Active {
		return AccountStatusInactive
	}
	return AccountStatusActive
}

// IsValid reports whether the account can participate in operations:
// it must be active, named, and carry a positive age.
func (a *Account) IsValid() bool {
	return a.Active && a.Name != "" && a.Age > 0
}

// CachedAccount represents account data stored in Redis cache.
// Uses string types for Redis hash compatibility.
type CachedAccount struct {
	ID            string `redis:"id"`
	Authority     string `redis:"authority"`
	Name          string `redis:"name"`
	Age           string `redis:"age"`
	Balance       string `redis:"balance"`
	Active        string `redis:"active"`         // "1" or "0"
	DeactivatedAt string `redis:"deactivated_at"` // Unix timestamp or empty
	CreatedAt     string `redis:"created_at"`     // Unix timestamp
	UpdatedAt     string `redis:"updated_at"`     // Unix timestamp
}

// ToAccount converts CachedAccount to the Account domain model.
func (c *CachedAccount) ToAccount(address string) *Account {
	account := &Account{
		ID:        c.ID,
		Address:   address,
		Authority: c.Authority,
		Name:      c.Name,
		Active:    c.Active == "1",
	}

	if age, err := strconv.ParseUint(c.Age, 10, 8); err == nil {
		account.Age = uint8(age)
	}

	if balance, err := strconv.ParseUint(c.Balance, 10, 64); err == nil {
		account.Balance = balance
	}

	if c.DeactivatedAt != "" {
		if ts, err := strconv.ParseInt(c.DeactivatedAt, 10, 64); err == nil {
			t := time.Unix(ts, 0)
			account.DeactivatedAt = &t
		}
	}

	if c.CreatedAt != "" {
		if ts, err := strconv.ParseInt(c.CreatedAt, 10, 64); err == nil {
			account.CreatedAt = time.Unix(ts, 0)
		}
	}

	if c.UpdatedAt != "" {
		if ts, err := strconv.ParseInt(c.UpdatedAt, 10, 64); err == nil {
			account.UpdatedAt = time.Unix(ts, 0)
		}
	}

	return account
}

// ToCachedAccount converts the Account domain model to CachedAccount.
func (a *Account) ToCachedAccount() *CachedAccount {
	cached := &CachedAccount{
		ID:        a.ID,
		Authority: a.Authority,
		Name:      a.Name,
		Age:       strconv.FormatUint(uint64(a.Age), 10),
		Balance:   strconv.FormatUint(a.Balance, 10),
		Active:    boolToString(a.Active),
		CreatedAt: strconv.FormatInt(a.CreatedAt.Unix(), 10),
		UpdatedAt: strconv.FormatInt(a.UpdatedAt.Unix(), 10),
	}

	if a.DeactivatedAt != nil {
		cached.DeactivatedAt = strconv.FormatInt(a.DeactivatedAt.Unix(), 10)
	}

	return cached
}

// boolToString converts boolean to "1" or "0".
func boolToString(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
