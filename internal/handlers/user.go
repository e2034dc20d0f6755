package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"dutywatch-backend/internal/middleware"
	"dutywatch-backend/internal/models"
	"dutywatch-backend/internal/services"
)

type userDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	SetRole(ctx context.Context, userID uuid.UUID, role string) error
}

type UserHandler struct {
	users   userDirectory
	strikes *services.StrikeService
}

func NewUserHandler(users userDirectory, strikes *services.StrikeService) *UserHandler {
	return &UserHandler{users: users, strikes: strikes}
}

func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	user, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			handleServiceError(w, r, &services.NotFoundError{Message: "User not found"})
			return
		}
		handleServiceError(w, r, err)
		return
	}

	// Opportunistic lazy expiry so a lapsed suspension never lingers on the
	// profile response.
	if err := h.strikes.ExpireIfLapsed(r.Context(), user); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user":         user,
		"is_suspended": h.strikes.IsSuspended(user),
	})
}

type updateRoleRequest struct {
	Role string `json:"role"`
}

// UpdateRole reassigns a member's role (elevated roles only; routing enforces
// the caller check). Access tokens already issued keep their old role claim
// until they expire, so the change lands on the member's next sign-in.
func (h *UserHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid user ID", r))
		return
	}

	var req updateRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	switch req.Role {
	case models.RoleMember, models.RoleCoreTeam, models.RoleTeacher:
	default:
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Role must be one of: member, core_team, teacher", r))
		return
	}

	user, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			handleServiceError(w, r, &services.NotFoundError{Message: "User not found"})
			return
		}
		handleServiceError(w, r, err)
		return
	}

	if err := h.users.SetRole(r.Context(), user.ID, req.Role); err != nil {
		handleServiceError(w, r, err)
		return
	}
	user.Role = req.Role

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user": user,
	})
}
