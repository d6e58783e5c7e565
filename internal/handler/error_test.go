package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/verityair/concierge/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestErrorCodeToHTTPStatus(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{domain.EINVALID, http.StatusBadRequest},
		{domain.EUNAUTHORIZED, http.StatusUnauthorized},
		{domain.EPAYMENT, http.StatusPaymentRequired},
		{domain.EFORBIDDEN, http.StatusForbidden},
		{domain.ENOTFOUND, http.StatusNotFound},
		{domain.ECONFLICT, http.StatusConflict},
		{domain.EQUOTA, http.StatusTooManyRequests},
		{domain.EUNAVAILABLE, http.StatusServiceUnavailable},
		{domain.EINTERNAL, http.StatusInternalServerError},
		{"something_else", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if got := ErrorCodeToHTTPStatus(tt.code); got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestErrorResponse_QuotaExhausted(t *testing.T) {
	req := httptest.NewRequest("POST", "/api/chats", nil)
	rec := httptest.NewRecorder()

	ErrorResponse(rec, req, testLogger(), domain.QuotaExceeded("quota.increment", 2, 2))

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}

	var body JSONError
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if body.Error.Code != domain.EQUOTA {
		t.Errorf("expected quota code, got %q", body.Error.Code)
	}
	if !strings.Contains(body.Error.Message, "2 of 2 used") {
		t.Errorf("message should carry usage numbers, got %q", body.Error.Message)
	}
}

func TestErrorResponse_MasksInternalDetails(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/profile", nil)
	rec := httptest.NewRecorder()

	cause := errors.New("pq: connection refused on 10.0.0.5:5432")
	ErrorResponse(rec, req, testLogger(), domain.Internal(cause, "profile.get", "db exploded"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}

	body := rec.Body.String()
	if strings.Contains(body, "10.0.0.5") || strings.Contains(body, "db exploded") {
		t.Errorf("response leaks internal details: %s", body)
	}
	if !strings.Contains(body, "An internal error occurred") {
		t.Errorf("expected generic message, got %s", body)
	}
}

func TestErrorResponse_DoesNotExposeOperationName(t *testing.T) {
	req := httptest.NewRequest("POST", "/api/topups", nil)
	rec := httptest.NewRecorder()

	ErrorResponse(rec, req, testLogger(), domain.Invalid("topup.purchase", "Unknown top-up package"))

	body := rec.Body.String()
	if strings.Contains(body, "topup.purchase") {
		t.Errorf("response exposes internal operation name: %s", body)
	}
	if !strings.Contains(body, "Unknown top-up package") {
		t.Errorf("expected validation message, got %s", body)
	}
}

func TestDecodeJSON_RejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest("POST", "/api/chats", strings.NewReader(`{"session_id":"s1","surprise":true}`))

	var dst struct {
		SessionID string `json:"session_id"`
	}
	err := decodeJSON(req, &dst)
	if domain.ErrorCode(err) != domain.EINVALID {
		t.Fatalf("expected invalid error for unknown field, got %v", err)
	}
}

func TestDecodeJSON_RejectsMalformedBody(t *testing.T) {
	req := httptest.NewRequest("POST", "/api/chats", strings.NewReader(`{not json`))

	var dst struct{}
	err := decodeJSON(req, &dst)
	if domain.ErrorCode(err) != domain.EINVALID {
		t.Fatalf("expected invalid error, got %v", err)
	}
}
