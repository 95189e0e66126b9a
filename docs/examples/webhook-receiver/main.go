// Tokentill Webhook Receiver Example
//
// This is a minimal example of how to receive and verify Tokentill webhooks.
//
// Usage:
//   export TOKENTILL_WEBHOOK_SECRET="whsec_your_secret_here"
//   go run main.go
//
// Then configure your Tokentill webhook to point to http://your-server:9000/webhook

package main

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log"
	"math"
	"net/http"
	"os"
	"strconv"
	"time"
)

// Event represents the webhook payload envelope.
type Event struct {
	EventType string          `json:"event_type"`
	EventID   string          `json:"event_id"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// TransferData is the data field for transfer events.
type TransferData struct {
	TransferID string `json:"transfer_id"`
	From       string `json:"from"`
	To         string `json:"to"`
	Amount     uint64 `json:"amount"`
	Fee        uint64 `json:"fee"`
}

func main() {
	secret := os.Getenv("TOKENTILL_WEBHOOK_SECRET")
	if secret == "" {
		log.Fatal("TOKENTILL_WEBHOOK_SECRET environment variable is required")
	}

	http.HandleFunc("/webhook", webhookHandler(secret))
	http.HandleFunc("/health", healthHandler)

	log.Println("Starting webhook receiver on :9000")
	log.Println("Endpoint: http://localhost:9000/webhook")
	log.Fatal(http.ListenAndServe(":9000", nil))
}

func webhookHandler(secret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		// Read body
		body, err := io.ReadAll(r.Body)
		if err != nil {
			log.Printf("Error reading body: %v", err)
			http.Error(w, "Bad request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		// Get signature headers
		signature := r.Header.Get("X-Tokentill-Signature")
		timestamp := r.Header.Get("X-Tokentill-Timestamp")
		if signature == "" || timestamp == "" {
			log.Println("Missing X-Tokentill-Signature or X-Tokentill-Timestamp header")
			http.Error(w, "Missing signature", http.StatusUnauthorized)
			return
		}

		// Verify signature
		if !verifySignature(signature, timestamp, string(body), secret) {
			log.Println("Invalid signature")
			http.Error(w, "Invalid signature", http.StatusUnauthorized)
			return
		}

		// Parse event
		var event Event
		if err := json.Unmarshal(body, &event); err != nil {
			log.Printf("Error parsing JSON: %v", err)
			http.Error(w, "Invalid JSON", http.StatusBadRequest)
			return
		}

		// Process the event
		log.Printf("✓ Received %s event %s", event.EventType, event.EventID)
		if event.EventType == "transfer" {
			var data TransferData
			if err := json.Unmarshal(event.Data, &data); err == nil {
				log.Printf("  Transfer: %s", data.TransferID)
				log.Printf("  From:     %s", data.From)
				log.Printf("  To:       %s", data.To)
				log.Printf("  Amount:   %d (fee %d)", data.Amount, data.Fee)
			}
		}

		// Respond with 200 OK
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "received"})
	}
}

// verifySignature verifies the HMAC-SHA256 signature from Tokentill.
//
// Headers:
//
//	X-Tokentill-Timestamp: 1705142400
//	X-Tokentill-Signature: abc123def456...
//
// Signed payload: {timestamp}.{body}
func verifySignature(signature, timestamp, body, secret string) bool {
	// Check timestamp (±5 min tolerance)
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}
	if math.Abs(float64(time.Now().Unix()-ts)) > 300 {
		log.Println("Signature timestamp too old or in future")
		return false
	}

	// Compute expected signature
	signedPayload := timestamp + "." + body
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signedPayload))
	expected := hex.EncodeToString(mac.Sum(nil))

	// Constant-time comparison
	return hmac.Equal([]byte(signature), []byte(expected))
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
