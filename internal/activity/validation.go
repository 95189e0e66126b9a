// Package activity provides transfer event capture and processing.
package activity

import "fmt"

const addressLength = 64 // hex-encoded SHA-256

// ValidateTransferEventPayload validates transfer event payload fields.
func ValidateTransferEventPayload(payload TransferEventPayload) error {
	if payload.TransferID == "" {
		return fmt.Errorf("transfer_id is required")
	}
	if payload.To == "" {
		return fmt.Errorf("to_address is required")
	}
	if len(payload.To) != addressLength || !isHex(payload.To) {
		return fmt.Errorf("to_address must be %d hex chars", addressLength)
	}
	if payload.From != "" && (len(payload.From) != addressLength || !isHex(payload.From)) {
		return fmt.Errorf("from_address must be %d hex chars", addressLength)
	}
	if payload.Amount == 0 {
		return fmt.Errorf("amount must be greater than zero")
	}
	if payload.OccurredAt <= 0 {
		return fmt.Errorf("occurred_at must be set")
	}
	return nil
}

func isHex(value string) bool {
	for i := 0; i < len(value); i++ {
		ch := value[i]
		if (ch >= '0' && ch <= '9') || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F') {
			continue
		}
		return false
	}
	return true
}
