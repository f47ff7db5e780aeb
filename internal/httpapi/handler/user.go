package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/vntrieu/impostor/internal/store"
)

// ProfileService reads XP profiles. *xp.Service implements it.
type ProfileService interface {
	Profile(ctx context.Context, userID int64) (*store.User, error)
	Leaderboard(ctx context.Context, limit int) ([]store.User, error)
}

// UserHandler serves XP profiles and the leaderboard.
type UserHandler struct {
	profiles ProfileService
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(profiles ProfileService) *UserHandler {
	return &UserHandler{profiles: profiles}
}

// GetUser handles GET /api/users/{id}
//
// @Summary      User profile
// @Description  XP, win streak, games played and achievements.
// @Tags         users
// @Produce      json
// @Param        id   path      int  true  "User ID"
// @Success      200  {object}  store.User
// @Failure      404  {string}  string  "User has never played"
// @Router       /api/users/{id} [get]
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}
	u, err := h.profiles.Profile(r.Context(), id)
	if err != nil {
		writeError(w, r, "get user", err)
		return
	}
	if u == nil {
		http.Error(w, "user not found", http.StatusNotFound)
		return
	}
	writeJSON(w, r, http.StatusOK, u)
}

// Leaderboard handles GET /api/leaderboard
//
// @Summary      Leaderboard
// @Tags         users
// @Produce      json
// @Param        limit  query     int  false  "Max entries (default 10, max 100)"
// @Success      200    {array}   store.User
// @Router       /api/leaderboard [get]
func (h *UserHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	users, err := h.profiles.Leaderboard(r.Context(), limit)
	if err != nil {
		writeError(w, r, "get leaderboard", err)
		return
	}
	if users == nil {
		users = []store.User{}
	}
	writeJSON(w, r, http.StatusOK, users)
}
