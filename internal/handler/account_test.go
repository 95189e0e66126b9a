package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tokentill/tokentill/internal/service"
)

// A request body cannot name an authority; without an authenticated
// key there is no authority at all and the create is rejected before
// any storage access.
func TestAccountHandler_Create_NoAuthenticatedUser(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewAccountHandler(service.NewAccountService(nil, nil, nil, nil), logger)

	body := strings.NewReader(`{"authority":"somebody","name":"Somebody","age":30}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/accounts", body)
	rec := httptest.NewRecorder()

	h.Create(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["code"] != "MISSING_AUTHORITY" {
		t.Errorf("code = %q, want MISSING_AUTHORITY", resp["code"])
	}
}
