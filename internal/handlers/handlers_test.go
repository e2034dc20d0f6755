package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"dutywatch-backend/internal/models"
	"dutywatch-backend/internal/services"
)

func TestHandleServiceError_StatusMapping(t *testing.T) {
	until := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", &services.ValidationError{Fields: map[string]string{"reason": "bad"}}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"conflict", &services.ConflictError{Message: "duplicate"}, http.StatusConflict, "CONFLICT"},
		{"invalid state", &services.InvalidStateError{Message: "already ended"}, http.StatusConflict, "INVALID_STATE"},
		{"not found", &services.NotFoundError{Message: "missing"}, http.StatusNotFound, "NOT_FOUND"},
		{"unauthorized", &services.UnauthorizedError{Message: "bad creds"}, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"forbidden", &services.ForbiddenError{Message: "not yours"}, http.StatusForbidden, "FORBIDDEN"},
		{"suspended", &services.SuspendedError{Until: until}, http.StatusForbidden, "ACCOUNT_SUSPENDED"},
		{"edit window", &services.EditWindowExpiredError{Window: 15 * time.Minute}, http.StatusForbidden, "EDIT_WINDOW_EXPIRED"},
		{"rate limited", &services.RateLimitError{Message: "slow down"}, http.StatusTooManyRequests, "RATE_LIMITED"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			rr := httptest.NewRecorder()

			handleServiceError(rr, req, tc.err)

			if rr.Code != tc.wantStatus {
				t.Fatalf("expected status %d, got %d", tc.wantStatus, rr.Code)
			}

			var resp models.ErrorResponse
			if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode error response: %v", err)
			}
			if resp.Error.Code != tc.wantCode {
				t.Fatalf("expected code %q, got %q", tc.wantCode, resp.Error.Code)
			}
		})
	}
}

func TestSuspendedErrorCarriesEndDate(t *testing.T) {
	until := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/duty-sessions/start", nil)
	rr := httptest.NewRecorder()

	handleServiceError(rr, req, &services.SuspendedError{Until: until})

	var resp models.ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if resp.Error.Message != "account suspended until 2026-03-10" {
		t.Fatalf("unexpected message: %q", resp.Error.Message)
	}
}
