package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"dutywatch-backend/internal/middleware"
	"dutywatch-backend/internal/models"
	"dutywatch-backend/internal/services"
)

type HourlyLogHandler struct {
	cadence *services.CadenceService
	duty    *services.DutyService
}

func NewHourlyLogHandler(cadence *services.CadenceService, duty *services.DutyService) *HourlyLogHandler {
	return &HourlyLogHandler{cadence: cadence, duty: duty}
}

func (h *HourlyLogHandler) Submit(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req models.SubmitLogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	entry, err := h.cadence.Submit(r.Context(), userID, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"log": entry,
	})
}

func (h *HourlyLogHandler) Edit(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	logID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid log ID", r))
		return
	}

	var req models.EditLogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	entry, err := h.cadence.Edit(r.Context(), userID, logID, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"log": entry,
	})
}

func (h *HourlyLogHandler) NextDue(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	due, err := h.cadence.NextDue(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, due)
}

func (h *HourlyLogHandler) StartBreak(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	logID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid log ID", r))
		return
	}

	entry, err := h.duty.StartBreak(r.Context(), userID, logID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"log": entry,
	})
}

func (h *HourlyLogHandler) EndBreak(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	logID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid log ID", r))
		return
	}

	result, err := h.duty.EndBreak(r.Context(), userID, logID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	// The break end is persisted either way; over the ceiling the caller is
	// told the limit was exceeded and the violation is already on the ledger.
	if result.ExceededLimit {
		resp := errorResp("BREAK_LIMIT_EXCEEDED",
			fmt.Sprintf("Break of %d minutes exceeded the allowed maximum", result.DurationMinutes), r)
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":  resp.Error,
			"result": result,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"result": result,
	})
}

// MissedLogsPreview is the read-only gap scan for a session.
func (h *HourlyLogHandler) MissedLogsPreview(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid session ID", r))
		return
	}

	candidates, err := h.cadence.DetectMissedLogs(r.Context(), sessionID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"candidates": candidates,
	})
}

// MissedLogsCommit runs the gap scan and submits every candidate to the
// strike ledger.
func (h *HourlyLogHandler) MissedLogsCommit(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid session ID", r))
		return
	}

	candidates, created, err := h.cadence.CommitMissedLogs(r.Context(), sessionID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"candidates":      candidates,
		"strikes_created": created,
	})
}
