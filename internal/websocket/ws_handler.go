package websocket

import (
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/vntrieu/impostor/internal/auth"
)

// WSHandler upgrades authenticated room subscriptions.
type WSHandler struct {
	hub         *Hub
	tokenSecret []byte
}

// NewWSHandler creates a new WSHandler. With an empty tokenSecret every connection is rejected.
func NewWSHandler(hub *Hub, tokenSecret []byte) *WSHandler {
	return &WSHandler{
		hub:         hub,
		tokenSecret: tokenSecret,
	}
}

// HandleRoomWebSocket handles GET /ws/rooms/{room_id} with token auth. Client sends token via Authorization header
// or the token query param. The token must have been issued for the same room.
func (h *WSHandler) HandleRoomWebSocket(w http.ResponseWriter, r *http.Request) {
	roomID, err := strconv.ParseInt(chi.URLParam(r, "room_id"), 10, 64)
	if err != nil || roomID == 0 {
		http.Error(w, "valid room_id is required", http.StatusBadRequest)
		return
	}
	token := auth.BearerToken(r, true)
	if token == "" || len(h.tokenSecret) == 0 {
		h.reject(w, "missing or invalid token")
		return
	}
	claims, err := auth.VerifyToken(token, h.tokenSecret)
	if err != nil {
		log.Printf("websocket room auth: room_id=%d token verification failed: %v", roomID, err)
		h.reject(w, "unauthorized")
		return
	}
	if claims.RoomID != roomID {
		h.reject(w, "room does not match token")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket room upgrade error: %v", err)
		return
	}
	newClient(h.hub, conn, roomID, claims.UserID).attach()
}

// reject responds with 401 before upgrade (auth is always checked before upgrading).
func (h *WSHandler) reject(w http.ResponseWriter, reason string) {
	http.Error(w, reason, http.StatusUnauthorized)
}
