package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/vntrieu/impostor/internal/auth"
	"github.com/vntrieu/impostor/internal/games"
	"github.com/vntrieu/impostor/internal/moderation"
)

// contextKey type for request context keys (avoids collisions with other packages).
type contextKey string

// ClaimsContextKey is the context key for verified token claims (set by the OptionalToken middleware).
const ClaimsContextKey contextKey = "claims"

// ClaimsFromRequest returns the verified token claims, or nil for anonymous requests.
func ClaimsFromRequest(r *http.Request) *auth.Claims {
	c, _ := r.Context().Value(ClaimsContextKey).(*auth.Claims)
	return c
}

// actorID resolves the acting user: the token's user when one was presented, otherwise the body's user_id.
func actorID(r *http.Request, bodyUserID int64) int64 {
	if c := ClaimsFromRequest(r); c != nil {
		return c.UserID
	}
	return bodyUserID
}

// requestID returns the request ID from chi's context for logging.
func requestID(r *http.Request) string {
	if id, ok := r.Context().Value(middleware.RequestIDKey).(string); ok {
		return id
	}
	return ""
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[%s] encode response error: %v", requestID(r), err)
	}
}

// statusFor maps engine errors onto HTTP statuses. Unknown errors are 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, games.ErrMatchNotFound), errors.Is(err, games.ErrNotInMatch):
		return http.StatusNotFound
	case errors.Is(err, games.ErrNotCreator),
		errors.Is(err, games.ErrBanned),
		errors.Is(err, moderation.ErrNotOwner),
		errors.Is(err, moderation.ErrRankedNotAllowed):
		return http.StatusForbidden
	case errors.Is(err, games.ErrMatchInProgress),
		errors.Is(err, games.ErrLobbyClosed),
		errors.Is(err, games.ErrWrongPhase),
		errors.Is(err, games.ErrAlreadyVoted),
		errors.Is(err, games.ErrAbilityUsed),
		errors.Is(err, games.ErrOnCooldown),
		errors.Is(err, games.ErrNoFixerWindow),
		errors.Is(err, games.ErrPlayerDead):
		return http.StatusConflict
	case errors.Is(err, games.ErrNotEnoughPlayers),
		errors.Is(err, games.ErrInvalidTarget),
		errors.Is(err, games.ErrActionNotAllowed),
		errors.Is(err, games.ErrNoTaskAssigned),
		errors.Is(err, moderation.ErrBadTerm),
		errors.Is(err, moderation.ErrNegativeXP):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// writeError reports err with the mapped status. Server errors are logged and hidden from the client.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("[%s] %s error: %v", requestID(r), op, err)
		http.Error(w, "failed to "+op, status)
		return
	}
	http.Error(w, err.Error(), status)
}
