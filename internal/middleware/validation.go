// Package middleware provides HTTP middleware for the Tokentill API.
package middleware

import (
	"errors"
	"regexp"
	"strings"
)

// Validation limits.
const (
	// AccountAddressLength is the exact length of a derived account address.
	AccountAddressLength = 64

	// MaxAuthorityLength is the maximum length for an authority identifier.
	MaxAuthorityLength = 128

	// MaxAccountNameLength is the maximum length for an account holder name.
	MaxAccountNameLength = 32

	// MaxWebhookURLLength is the maximum length for webhook URLs.
	MaxWebhookURLLength = 1024
)

// Validation errors.
var (
	ErrAddressInvalidLength = errors.New("account address has invalid length")
	ErrAddressInvalid       = errors.New("account address contains invalid characters")
	ErrAuthorityTooLong     = errors.New("authority exceeds maximum length")
	ErrAuthorityInvalid     = errors.New("authority contains invalid characters")
	ErrAuthorityReserved    = errors.New("authority is reserved")
	ErrNameTooLong          = errors.New("name exceeds maximum length")
	ErrWebhookURLTooLong    = errors.New("webhook URL exceeds maximum length")
)

// ReservedAuthorities contains authority identifiers that cannot be claimed
// by API callers. These are reserved for internal ledger operations.
var ReservedAuthorities = map[string]bool{
	// Internal ledger actors
	"system":    true,
	"treasury":  true,
	"mint":      true,
	"burn":      true,
	"fee":       true,

	// System routes and tooling
	"api":       true,
	"admin":     true,
	"healthz":   true,
	"readyz":    true,
	"metrics":   true,

	// Brand protection
	"tokentill": true,
	"till":      true,
}

// validAddressPattern matches lowercase hex account addresses.
var validAddressPattern = regexp.MustCompile(`^[0-9a-f]+$`)

// validAuthorityPattern matches valid authority characters.
// Allowed: a-z, A-Z, 0-9, hyphen, underscore, dot
var validAuthorityPattern = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// ValidateAddress validates an account address path or query parameter.
func ValidateAddress(address string) error {
	if len(address) != AccountAddressLength {
		return ErrAddressInvalidLength
	}

	if !validAddressPattern.MatchString(address) {
		return ErrAddressInvalid
	}

	return nil
}

// ValidateAuthority validates an authority identifier for account creation.
func ValidateAuthority(authority string) error {
	if authority == "" {
		return nil // Presence is enforced by the service layer
	}

	if len(authority) > MaxAuthorityLength {
		return ErrAuthorityTooLong
	}

	if !validAuthorityPattern.MatchString(authority) {
		return ErrAuthorityInvalid
	}

	// Check reserved authorities (case-insensitive)
	if ReservedAuthorities[strings.ToLower(authority)] {
		return ErrAuthorityReserved
	}

	return nil
}

// ValidateAccountName validates an account holder name at the edge.
// The service layer enforces the same limit; this rejects oversized
// payloads before they reach a database round trip.
func ValidateAccountName(name string) error {
	if len(name) > MaxAccountNameLength {
		return ErrNameTooLong
	}

	return nil
}

// ValidateWebhookURL validates a webhook target URL.
func ValidateWebhookURL(url string) error {
	if len(url) > MaxWebhookURLLength {
		return ErrWebhookURLTooLong
	}

	// Additional validation is done in webhook.ValidateTargetURL
	return nil
}
