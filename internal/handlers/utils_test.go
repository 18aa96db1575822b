package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/teamtrack/apiserver/internal/apperr"
)

func TestParsePagination(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantPage   int
		wantLimit  int
		wantOffset int
		wantErr    bool
	}{
		{"defaults", "", 1, 20, 0, false},
		{"explicit", "page=3&limit=10", 3, 10, 20, false},
		{"limit capped", "limit=500", 1, 100, 0, false},
		{"zero page", "page=0", 0, 0, 0, true},
		{"garbage", "page=abc", 0, 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil)
			page, limit, offset, err := parsePagination(req)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if page != tt.wantPage || limit != tt.wantLimit || offset != tt.wantOffset {
				t.Fatalf("got page=%d limit=%d offset=%d", page, limit, offset)
			}
		})
	}
}

func TestWriteServiceErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"not found", apperr.NotFound("Project not found"), http.StatusNotFound, "Project not found"},
		{"forbidden", apperr.Forbidden("Admin access required"), http.StatusForbidden, "Admin access required"},
		{"validation", apperr.Validation("Progress cannot decrease"), http.StatusBadRequest, "Progress cannot decrease"},
		{"conflict", apperr.Conflict("Email already registered"), http.StatusConflict, "Email already registered"},
		{"unauthenticated", apperr.Unauthenticated("Invalid refresh token"), http.StatusUnauthorized, "Invalid refresh token"},
		{"internal details hidden", apperr.Internal(errors.New("pq: connection reset")), http.StatusInternalServerError, "internal server error"},
		{"plain error treated as internal", errors.New("boom"), http.StatusInternalServerError, "internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeServiceError(rec, tt.err)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}

			var resp Response
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Success {
				t.Fatal("error responses must not be marked successful")
			}
			if resp.Message != tt.wantMsg {
				t.Fatalf("message = %q, want %q", resp.Message, tt.wantMsg)
			}
		})
	}
}

func TestDecodeJSONValidation(t *testing.T) {
	type payload struct {
		Email string  `json:"email" validate:"required,email"`
		Hours float64 `json:"hours_worked" validate:"gte=0,lte=24"`
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"dev@example.com","hours_worked":8}`))
	var p payload
	if err := decodeJSON(req, &p); err != nil {
		t.Fatalf("valid payload: %v", err)
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"nope","hours_worked":8}`))
	p = payload{}
	err := decodeJSON(req, &p)
	if err == nil {
		t.Fatal("invalid email should fail")
	}
	if !strings.Contains(err.Error(), "email") {
		t.Fatalf("error should name the json field: %v", err)
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"dev@example.com","hours_worked":30}`))
	p = payload{}
	err = decodeJSON(req, &p)
	if err == nil {
		t.Fatal("out-of-range hours should fail")
	}
	if !strings.Contains(err.Error(), "hours_worked") {
		t.Fatalf("error should name the json field: %v", err)
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{not json`))
	if err := decodeJSON(req, &payload{}); err == nil {
		t.Fatal("malformed body should fail")
	}
}
