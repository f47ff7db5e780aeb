package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

// ModerationService runs owner commands. *moderation.Service implements it.
type ModerationService interface {
	Ban(ctx context.Context, actorID, userID int64, term, reason string) (*time.Time, error)
	Unban(ctx context.Context, actorID, userID int64) (bool, error)
	SetXP(ctx context.Context, actorID, userID int64, xp int) error
}

// Moderator is everything the router needs for moderation. *moderation.Service implements it.
type Moderator interface {
	ModerationService
	ModePolicy
}

// BanRequest is the body for POST /api/admin/bans.
type BanRequest struct {
	UserID   int64  `json:"user_id"`
	Duration string `json:"duration"`
	Reason   string `json:"reason,omitempty"`
}

// BanResponse describes an applied ban. BannedUntil is absent for a permanent ban.
type BanResponse struct {
	UserID      int64      `json:"user_id"`
	Permanent   bool       `json:"permanent"`
	BannedUntil *time.Time `json:"banned_until,omitempty"`
}

// SetXPRequest is the body for PUT /api/admin/users/{id}/xp.
type SetXPRequest struct {
	XP int `json:"xp"`
}

// AdminHandler serves owner-only moderation. The caller is always the token's user.
type AdminHandler struct {
	mod ModerationService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(mod ModerationService) *AdminHandler {
	return &AdminHandler{mod: mod}
}

func tokenActor(w http.ResponseWriter, r *http.Request) (int64, bool) {
	c := ClaimsFromRequest(r)
	if c == nil {
		http.Error(w, "unauthorized: valid token required", http.StatusUnauthorized)
		return 0, false
	}
	return c.UserID, true
}

// Ban handles POST /api/admin/bans
//
// @Summary      Ban a user
// @Description  Owner only. Duration is "perma" or a count of hours, days or months: 12h, 3d, 1m.
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      BanRequest  true  "Request body"
// @Success      200   {object}  BanResponse
// @Failure      400   {string}  string  "Bad duration"
// @Failure      401   {string}  string  "Token required"
// @Failure      403   {string}  string  "Owner only"
// @Router       /api/admin/bans [post]
func (h *AdminHandler) Ban(w http.ResponseWriter, r *http.Request) {
	actor, ok := tokenActor(w, r)
	if !ok {
		return
	}
	var req BanRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.UserID == 0 || req.Duration == "" {
		http.Error(w, "user_id and duration are required", http.StatusBadRequest)
		return
	}
	until, err := h.mod.Ban(r.Context(), actor, req.UserID, req.Duration, req.Reason)
	if err != nil {
		writeError(w, r, "ban user", err)
		return
	}
	writeJSON(w, r, http.StatusOK, BanResponse{UserID: req.UserID, Permanent: until == nil, BannedUntil: until})
}

// Unban handles DELETE /api/admin/bans/{user_id}
//
// @Summary      Lift a ban
// @Tags         admin
// @Security     BearerAuth
// @Param        user_id  path  int  true  "User ID"
// @Success      204
// @Failure      403  {string}  string  "Owner only"
// @Failure      404  {string}  string  "User not banned"
// @Router       /api/admin/bans/{user_id} [delete]
func (h *AdminHandler) Unban(w http.ResponseWriter, r *http.Request) {
	actor, ok := tokenActor(w, r)
	if !ok {
		return
	}
	userID, err := strconv.ParseInt(chi.URLParam(r, "user_id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}
	lifted, err := h.mod.Unban(r.Context(), actor, userID)
	if err != nil {
		writeError(w, r, "unban user", err)
		return
	}
	if !lifted {
		http.Error(w, "user not banned", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetXP handles PUT /api/admin/users/{id}/xp
//
// @Summary      Overwrite a user's XP
// @Tags         admin
// @Accept       json
// @Security     BearerAuth
// @Param        id    path  int           true  "User ID"
// @Param        body  body  SetXPRequest  true  "Request body"
// @Success      204
// @Failure      400  {string}  string  "Negative XP"
// @Failure      403  {string}  string  "Owner only"
// @Router       /api/admin/users/{id}/xp [put]
func (h *AdminHandler) SetXP(w http.ResponseWriter, r *http.Request) {
	actor, ok := tokenActor(w, r)
	if !ok {
		return
	}
	userID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}
	var req SetXPRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.mod.SetXP(r.Context(), actor, userID, req.XP); err != nil {
		writeError(w, r, "set xp", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
