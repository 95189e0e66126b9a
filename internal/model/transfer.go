// Package model defines domain entities for the application.
package model

import "time"

// Fee rate bounds in basis points. 100 bps = 1%; 10000 bps = 100%.
const (
	// FeeBasisPoints is the default transfer fee rate.
	FeeBasisPoints = 100
	// MaxFeeBasisPoints caps the configurable rate at 100%.
	MaxFeeBasisPoints = 10000
)

// Transfer represents a single ledger entry moving tokens between accounts.
// A credit (mint) is recorded with an empty FromAddress.
type Transfer struct {
	ID          string    `json:"id"`
	FromAddress string    `json:"from_address,omitempty"`
	ToAddress   string    `json:"to_address"`
	Authority   string    `json:"authority"`
	Amount      uint64    `json:"amount"`
	Fee         uint64    `json:"fee"`
	CreatedAt   time.Time `json:"created_at"`
}

// IsCredit reports whether this entry minted tokens rather than moving them.
func (t *Transfer) IsCredit() bool {
	return t.FromAddress == ""
}

// CalculateFee computes the fee for a transfer amount at the given
// basis-point rate, rounding down. A rate of 100 bps charges 1%.
// Splitting the quotient and remainder keeps the intermediate products
// within uint64 for rates up to MaxFeeBasisPoints.
func CalculateFee(amount uint64, basisPoints uint64) uint64 {
	return amount/10000*basisPoints + amount%10000*basisPoints/10000
}

// TransferEvent represents a processed transfer event from the activity stream.
type TransferEvent struct {
	ID      string `json:"id"`       // ULID (time-sortable)
	EventID string `json:"event_id"` // Idempotency key (Redis stream ID)

	// Ledger reference
	TransferID  string `json:"transfer_id"`
	FromAddress string `json:"from_address,omitempty"`
	ToAddress   string `json:"to_address"`

	// Amounts in smallest token units
	Amount uint64 `json:"amount"`
	Fee    uint64 `json:"fee"`

	// Timestamps
	OccurredAt time.Time `json:"occurred_at"` // Event timestamp
	CreatedAt  time.Time `json:"created_at"`  // DB insertion time
}

// DailyAccountStats represents pre-aggregated daily activity for an account.
type DailyAccountStats struct {
	ID      string    `json:"id"`      // Composite: address:date
	Address string    `json:"address"` // FK to accounts.address
	Date    time.Time `json:"date"`    // UTC date (time component zeroed)

	// Counters
	SentCount      int64  `json:"sent_count"`
	ReceivedCount  int64  `json:"received_count"`
	SentVolume     uint64 `json:"sent_volume"`
	ReceivedVolume uint64 `json:"received_volume"`

	// Timestamps
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ActivitySummary represents aggregated activity for API responses.
type ActivitySummary struct {
	SentCount      int64  `json:"sent_count"`
	ReceivedCount  int64  `json:"received_count"`
	SentVolume     uint64 `json:"sent_volume"`
	ReceivedVolume uint64 `json:"received_volume"`
}

// ActivityResponse represents the full activity API response.
type ActivityResponse struct {
	Address string `json:"address"`
	Period  struct {
		From string `json:"from"` // ISO date
		To   string `json:"to"`   // ISO date
	} `json:"period"`
	Summary     ActivitySummary  `json:"summary"`
	Daily       []DailyBreakdown `json:"daily,omitempty"`
	GeneratedAt time.Time        `json:"generated_at"`
}

// DailyBreakdown represents activity for a single day.
type DailyBreakdown struct {
	Date           string `json:"date"` // ISO date
	SentCount      int64  `json:"sent_count"`
	ReceivedCount  int64  `json:"received_count"`
	SentVolume     uint64 `json:"sent_volume"`
	ReceivedVolume uint64 `json:"received_volume"`
}
