package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"dutywatch-backend/internal/middleware"
	"dutywatch-backend/internal/models"
	"dutywatch-backend/internal/services"
)

type strikeLedger interface {
	Create(ctx context.Context, req models.CreateStrikeRequest) (*models.Strike, error)
	Resolve(ctx context.Context, strikeID, resolverID uuid.UUID, notes string) (*models.Strike, error)
	CountActive(ctx context.Context, userID uuid.UUID) (int, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]*models.Strike, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Strike, error)
}

type StrikeHandler struct {
	ledger strikeLedger
}

func NewStrikeHandler(ledger strikeLedger) *StrikeHandler {
	return &StrikeHandler{ledger: ledger}
}

// Create records a manual strike (elevated roles only; routing enforces the
// role). insufficient_duty_hours strikes enter here after review, they are
// never created automatically at session end.
func (h *StrikeHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateStrikeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	strike, err := h.ledger.Create(r.Context(), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	if strike == nil {
		// Duplicate suppression is a defined no-op, not an error.
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"strike":     nil,
			"suppressed": true,
		})
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"strike": strike,
	})
}

func (h *StrikeHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	resolverID := middleware.GetUserID(r.Context())

	strikeID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid strike ID", r))
		return
	}

	var req models.ResolveStrikeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	strike, err := h.ledger.Resolve(r.Context(), strikeID, resolverID, req.ResolutionNotes)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"strike": strike,
	})
}

// ListMine returns the caller's own strike history.
func (h *StrikeHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	strikes, err := h.ledger.ListForUser(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"strikes": strikes,
	})
}

// ListByUser returns another member's strike history (elevated roles only).
func (h *StrikeHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid user ID", r))
		return
	}

	strikes, err := h.ledger.ListForUser(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"strikes": strikes,
	})
}

// CountActive exposes the reconciliation count derived from the strike table.
func (h *StrikeHandler) CountActive(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	count, err := h.ledger.CountActive(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"active_strikes": count,
	})
}

func (h *StrikeHandler) Get(w http.ResponseWriter, r *http.Request) {
	callerID := middleware.GetUserID(r.Context())
	role := middleware.GetRole(r.Context())

	strikeID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid strike ID", r))
		return
	}

	strike, err := h.ledger.GetByID(r.Context(), strikeID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	if strike.UserID != callerID && !models.IsElevated(role) {
		handleServiceError(w, r, &services.ForbiddenError{Message: "Strike belongs to another user"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"strike": strike,
	})
}
