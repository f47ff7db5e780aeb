package handler

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vntrieu/impostor/internal/auth"
	"github.com/vntrieu/impostor/internal/games"
)

// MatchService is the engine surface the HTTP API drives. *games.Engine implements it.
type MatchService interface {
	CreateMatch(ctx context.Context, roomID, creatorID int64, mode games.Mode) (*games.Match, error)
	JoinLobby(ctx context.Context, matchID string, userID int64) (bool, error)
	ForceStart(ctx context.Context, matchID string) (bool, error)
	SubmitNightAction(ctx context.Context, matchID string, userID int64, kind games.ActionKind, target *int64) (games.NightAction, error)
	CompleteTask(ctx context.Context, matchID string, userID int64) error
	SubmitFixerDecision(ctx context.Context, matchID string, userID int64, fix bool) error
	SubmitVote(ctx context.Context, matchID string, userID int64, target *int64) error
	ForceEnd(ctx context.Context, matchID string) error
	GetMatch(ctx context.Context, matchID string) (*games.Match, error)
	GetPlayers(ctx context.Context, matchID string) ([]games.Player, error)
	GetLobbyPlayers(ctx context.Context, matchID string) ([]int64, error)
	GetRoundNumber(ctx context.Context, matchID string) (int, error)
	ActiveMatchForRoom(ctx context.Context, roomID int64) (*games.Match, error)
}

// CreateMatchRequest is the body for POST /api/matches.
type CreateMatchRequest struct {
	RoomID    int64      `json:"room_id"`
	CreatorID int64      `json:"creator_id"`
	Mode      games.Mode `json:"mode,omitempty"`
}

// CreateMatchResponse carries the new match and a WebSocket token for the creator.
type CreateMatchResponse struct {
	Match     *games.Match `json:"match"`
	Token     string       `json:"token,omitempty"`
	ExpiresAt *time.Time   `json:"expires_at,omitempty"`
}

// UserRequest is the body for operations that only need the acting user.
// UserID is required if no valid Authorization token is provided.
type UserRequest struct {
	UserID int64 `json:"user_id,omitempty"`
}

// JoinResponse is the body returned by POST /api/matches/{id}/join.
type JoinResponse struct {
	Joined    bool       `json:"joined"`
	Token     string     `json:"token,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// StartResponse is the body returned by POST /api/matches/{id}/start.
type StartResponse struct {
	Started bool `json:"started"`
}

// NightActionRequest is the body for POST /api/matches/{id}/night-actions.
type NightActionRequest struct {
	UserID   int64            `json:"user_id,omitempty"`
	Kind     games.ActionKind `json:"kind"`
	TargetID *int64           `json:"target_id,omitempty"`
}

// VoteRequest is the body for POST /api/matches/{id}/votes. A missing target_id abstains.
type VoteRequest struct {
	UserID   int64  `json:"user_id,omitempty"`
	TargetID *int64 `json:"target_id,omitempty"`
}

// FixerRequest is the body for POST /api/matches/{id}/fixer.
type FixerRequest struct {
	UserID int64 `json:"user_id,omitempty"`
	Fix    bool  `json:"fix"`
}

// PlayerView is a roster entry. Roles stay hidden until the match ends, except the caller's own.
type PlayerView struct {
	UserID int64      `json:"user_id"`
	Alive  bool       `json:"alive"`
	Role   games.Role `json:"role,omitempty"`
}

// PlayersResponse is the body returned by GET /api/matches/{id}/players.
type PlayersResponse struct {
	Phase   games.Phase  `json:"phase"`
	Lobby   []int64      `json:"lobby,omitempty"`
	Players []PlayerView `json:"players"`
}

// RoundResponse is the body returned by GET /api/matches/{id}/round.
type RoundResponse struct {
	Round int `json:"round"`
}

// ModePolicy decides which mode a room may play. *moderation.Service implements it.
type ModePolicy interface {
	ModeFor(roomID int64, requested string) (games.Mode, error)
}

// MatchHandler handles match HTTP requests.
type MatchHandler struct {
	svc         MatchService
	tokenSecret []byte
	modes       ModePolicy
}

// NewMatchHandler creates a new MatchHandler. If tokenSecret is non-empty, create/join responses include a
// WebSocket auth token.
func NewMatchHandler(svc MatchService, tokenSecret []byte) *MatchHandler {
	return &MatchHandler{svc: svc, tokenSecret: tokenSecret}
}

// WithModes makes CreateMatch pick the mode through p instead of trusting the body.
func (h *MatchHandler) WithModes(p ModePolicy) *MatchHandler {
	h.modes = p
	return h
}

func (h *MatchHandler) issueToken(r *http.Request, roomID, userID int64) (string, *time.Time) {
	if len(h.tokenSecret) == 0 {
		return "", nil
	}
	token, expiresAt, err := auth.GenerateToken(roomID, userID, h.tokenSecret, auth.DefaultTokenExpiry)
	if err != nil {
		log.Printf("[%s] generate token error: %v", requestID(r), err)
		return "", nil
	}
	return token, &expiresAt
}

// requireActor writes 401 and returns false when no user can be resolved.
func requireActor(w http.ResponseWriter, userID int64) bool {
	if userID == 0 {
		http.Error(w, "unauthorized: user_id or valid token required", http.StatusUnauthorized)
		return false
	}
	return true
}

// requireCreator checks that userID opened the match.
func (h *MatchHandler) requireCreator(w http.ResponseWriter, r *http.Request, matchID string, userID int64) bool {
	m, err := h.svc.GetMatch(r.Context(), matchID)
	if err != nil {
		writeError(w, r, "load match", err)
		return false
	}
	if m.CreatorID != userID {
		writeError(w, r, "authorize", games.ErrNotCreator)
		return false
	}
	return true
}

// CreateMatch handles POST /api/matches
//
// @Summary      Create match
// @Description  Open a lobby in a room. A room has at most one active match. The creator does not join automatically.
// @Tags         matches
// @Accept       json
// @Produce      json
// @Param        body  body      CreateMatchRequest   true  "Request body"
// @Success      201   {object}  CreateMatchResponse
// @Failure      400   {string}  string  "Bad request"
// @Failure      403   {string}  string  "Creator banned, or ranked not allowed in this room"
// @Failure      409   {string}  string  "Room already has an active match"
// @Failure      500   {string}  string  "Server error"
// @Router       /api/matches [post]
func (h *MatchHandler) CreateMatch(w http.ResponseWriter, r *http.Request) {
	var req CreateMatchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.CreatorID = actorID(r, req.CreatorID)
	if req.RoomID == 0 {
		http.Error(w, "room_id is required", http.StatusBadRequest)
		return
	}
	if !requireActor(w, req.CreatorID) {
		return
	}
	switch req.Mode {
	case "", games.ModeRanked, games.ModeUnranked:
	default:
		http.Error(w, "mode must be ranked or unranked", http.StatusBadRequest)
		return
	}
	if h.modes != nil {
		mode, err := h.modes.ModeFor(req.RoomID, string(req.Mode))
		if err != nil {
			writeError(w, r, "create match", err)
			return
		}
		req.Mode = mode
	}

	m, err := h.svc.CreateMatch(r.Context(), req.RoomID, req.CreatorID, req.Mode)
	if err != nil {
		writeError(w, r, "create match", err)
		return
	}
	resp := CreateMatchResponse{Match: m}
	resp.Token, resp.ExpiresAt = h.issueToken(r, m.RoomID, req.CreatorID)
	writeJSON(w, r, http.StatusCreated, resp)
}

// GetMatch handles GET /api/matches/{id}
//
// @Summary      Get match
// @Tags         matches
// @Produce      json
// @Param        id   path      string  true  "Match ID"
// @Success      200  {object}  games.Match
// @Failure      404  {string}  string  "Match not found"
// @Router       /api/matches/{id} [get]
func (h *MatchHandler) GetMatch(w http.ResponseWriter, r *http.Request) {
	m, err := h.svc.GetMatch(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, "get match", err)
		return
	}
	writeJSON(w, r, http.StatusOK, m)
}

// ActiveMatchForRoom handles GET /api/rooms/{room_id}/match
//
// @Summary      Active match for room
// @Tags         matches
// @Produce      json
// @Param        room_id  path      int  true  "Room ID"
// @Success      200      {object}  games.Match
// @Failure      404      {string}  string  "No active match"
// @Router       /api/rooms/{room_id}/match [get]
func (h *MatchHandler) ActiveMatchForRoom(w http.ResponseWriter, r *http.Request) {
	roomID, err := strconv.ParseInt(chi.URLParam(r, "room_id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid room_id", http.StatusBadRequest)
		return
	}
	m, err := h.svc.ActiveMatchForRoom(r.Context(), roomID)
	if err != nil {
		writeError(w, r, "get active match", err)
		return
	}
	writeJSON(w, r, http.StatusOK, m)
}

// JoinMatch handles POST /api/matches/{id}/join
//
// @Summary      Join lobby
// @Description  Join an open lobby. joined is false for a duplicate join or a full lobby.
// @Tags         matches
// @Accept       json
// @Produce      json
// @Param        id    path      string       true  "Match ID"
// @Param        body  body      UserRequest  true  "Request body"
// @Success      200   {object}  JoinResponse
// @Failure      404   {string}  string  "Match not found"
// @Failure      409   {string}  string  "Lobby closed"
// @Router       /api/matches/{id}/join [post]
func (h *MatchHandler) JoinMatch(w http.ResponseWriter, r *http.Request) {
	matchID := chi.URLParam(r, "id")
	var req UserRequest
	if !decodeBody(w, r, &req) {
		return
	}
	userID := actorID(r, req.UserID)
	if !requireActor(w, userID) {
		return
	}

	joined, err := h.svc.JoinLobby(r.Context(), matchID, userID)
	if err != nil {
		writeError(w, r, "join match", err)
		return
	}
	resp := JoinResponse{Joined: joined}
	if m, err := h.svc.GetMatch(r.Context(), matchID); err == nil {
		resp.Token, resp.ExpiresAt = h.issueToken(r, m.RoomID, userID)
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// StartMatch handles POST /api/matches/{id}/start
//
// @Summary      Force start
// @Description  End the lobby early. Only the creator may call this. Needs at least 4 joined players.
// @Tags         matches
// @Accept       json
// @Produce      json
// @Param        id    path      string       true  "Match ID"
// @Param        body  body      UserRequest  true  "Request body"
// @Success      200   {object}  StartResponse
// @Failure      400   {string}  string  "Not enough players"
// @Failure      403   {string}  string  "Only the creator can start"
// @Failure      409   {string}  string  "Lobby closed"
// @Security     BearerAuth
// @Router       /api/matches/{id}/start [post]
func (h *MatchHandler) StartMatch(w http.ResponseWriter, r *http.Request) {
	matchID := chi.URLParam(r, "id")
	var req UserRequest
	if !decodeBody(w, r, &req) {
		return
	}
	userID := actorID(r, req.UserID)
	if !requireActor(w, userID) || !h.requireCreator(w, r, matchID, userID) {
		return
	}
	started, err := h.svc.ForceStart(r.Context(), matchID)
	if err != nil {
		writeError(w, r, "start match", err)
		return
	}
	writeJSON(w, r, http.StatusOK, StartResponse{Started: started})
}

// EndMatch handles POST /api/matches/{id}/end
//
// @Summary      Force end
// @Description  Abort the match. Only the creator may call this.
// @Tags         matches
// @Accept       json
// @Param        id    path      string       true  "Match ID"
// @Param        body  body      UserRequest  true  "Request body"
// @Success      204
// @Failure      403   {string}  string  "Only the creator can end"
// @Failure      404   {string}  string  "Match not found"
// @Security     BearerAuth
// @Router       /api/matches/{id}/end [post]
func (h *MatchHandler) EndMatch(w http.ResponseWriter, r *http.Request) {
	matchID := chi.URLParam(r, "id")
	var req UserRequest
	if !decodeBody(w, r, &req) {
		return
	}
	userID := actorID(r, req.UserID)
	if !requireActor(w, userID) || !h.requireCreator(w, r, matchID, userID) {
		return
	}
	if err := h.svc.ForceEnd(r.Context(), matchID); err != nil {
		writeError(w, r, "end match", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SubmitNightAction handles POST /api/matches/{id}/night-actions
//
// @Summary      Submit night action
// @Description  Record a kill, investigate, shoot or skip for the current night. Resubmission replaces the earlier action.
// @Tags         actions
// @Accept       json
// @Produce      json
// @Param        id    path      string              true  "Match ID"
// @Param        body  body      NightActionRequest  true  "Request body"
// @Success      202   {object}  games.NightAction
// @Failure      400   {string}  string  "Invalid action or target"
// @Failure      409   {string}  string  "Wrong phase, cooldown, or ability used"
// @Security     BearerAuth
// @Router       /api/matches/{id}/night-actions [post]
func (h *MatchHandler) SubmitNightAction(w http.ResponseWriter, r *http.Request) {
	var req NightActionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	userID := actorID(r, req.UserID)
	if !requireActor(w, userID) {
		return
	}
	if req.Kind == "" {
		http.Error(w, "kind is required", http.StatusBadRequest)
		return
	}
	action, err := h.svc.SubmitNightAction(r.Context(), chi.URLParam(r, "id"), userID, req.Kind, req.TargetID)
	if err != nil {
		writeError(w, r, "submit night action", err)
		return
	}
	writeJSON(w, r, http.StatusAccepted, action)
}

// CompleteTask handles POST /api/matches/{id}/tasks/complete
//
// @Summary      Complete task
// @Tags         actions
// @Accept       json
// @Param        id    path      string       true  "Match ID"
// @Param        body  body      UserRequest  true  "Request body"
// @Success      204
// @Failure      400   {string}  string  "No task assigned"
// @Failure      409   {string}  string  "Wrong phase"
// @Security     BearerAuth
// @Router       /api/matches/{id}/tasks/complete [post]
func (h *MatchHandler) CompleteTask(w http.ResponseWriter, r *http.Request) {
	var req UserRequest
	if !decodeBody(w, r, &req) {
		return
	}
	userID := actorID(r, req.UserID)
	if !requireActor(w, userID) {
		return
	}
	if err := h.svc.CompleteTask(r.Context(), chi.URLParam(r, "id"), userID); err != nil {
		writeError(w, r, "complete task", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SubmitFixerDecision handles POST /api/matches/{id}/fixer
//
// @Summary      Fixer decision
// @Description  The eligible Engineer repairs the ship (fix=true) or passes.
// @Tags         actions
// @Accept       json
// @Param        id    path      string        true  "Match ID"
// @Param        body  body      FixerRequest  true  "Request body"
// @Success      204
// @Failure      409   {string}  string  "No fixer window open for this user"
// @Security     BearerAuth
// @Router       /api/matches/{id}/fixer [post]
func (h *MatchHandler) SubmitFixerDecision(w http.ResponseWriter, r *http.Request) {
	var req FixerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	userID := actorID(r, req.UserID)
	if !requireActor(w, userID) {
		return
	}
	if err := h.svc.SubmitFixerDecision(r.Context(), chi.URLParam(r, "id"), userID, req.Fix); err != nil {
		writeError(w, r, "submit fixer decision", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SubmitVote handles POST /api/matches/{id}/votes
//
// @Summary      Vote
// @Description  Vote to eject a living player. Omit target_id to abstain.
// @Tags         actions
// @Accept       json
// @Param        id    path      string       true  "Match ID"
// @Param        body  body      VoteRequest  true  "Request body"
// @Success      204
// @Failure      400   {string}  string  "Invalid target"
// @Failure      409   {string}  string  "Wrong phase or already voted"
// @Security     BearerAuth
// @Router       /api/matches/{id}/votes [post]
func (h *MatchHandler) SubmitVote(w http.ResponseWriter, r *http.Request) {
	var req VoteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	userID := actorID(r, req.UserID)
	if !requireActor(w, userID) {
		return
	}
	if err := h.svc.SubmitVote(r.Context(), chi.URLParam(r, "id"), userID, req.TargetID); err != nil {
		writeError(w, r, "submit vote", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetPlayers handles GET /api/matches/{id}/players
//
// @Summary      List players
// @Description  Roster with life status. Roles are revealed after the match ends; a token holder always sees their own.
// @Tags         matches
// @Produce      json
// @Param        id   path      string  true  "Match ID"
// @Success      200  {object}  PlayersResponse
// @Failure      404  {string}  string  "Match not found"
// @Router       /api/matches/{id}/players [get]
func (h *MatchHandler) GetPlayers(w http.ResponseWriter, r *http.Request) {
	matchID := chi.URLParam(r, "id")
	m, err := h.svc.GetMatch(r.Context(), matchID)
	if err != nil {
		writeError(w, r, "get match", err)
		return
	}
	resp := PlayersResponse{Phase: m.Phase, Players: []PlayerView{}}
	if m.Phase == games.PhaseLobby {
		lobby, err := h.svc.GetLobbyPlayers(r.Context(), matchID)
		if err != nil {
			writeError(w, r, "get lobby", err)
			return
		}
		resp.Lobby = lobby
		writeJSON(w, r, http.StatusOK, resp)
		return
	}

	players, err := h.svc.GetPlayers(r.Context(), matchID)
	if err != nil {
		writeError(w, r, "get players", err)
		return
	}
	var viewer int64
	if c := ClaimsFromRequest(r); c != nil {
		viewer = c.UserID
	}
	for _, p := range players {
		v := PlayerView{UserID: p.UserID, Alive: p.Alive}
		if m.Phase == games.PhaseEnded || p.UserID == viewer {
			v.Role = p.Role
		}
		resp.Players = append(resp.Players, v)
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// GetRound handles GET /api/matches/{id}/round
//
// @Summary      Current round
// @Tags         matches
// @Produce      json
// @Param        id   path      string  true  "Match ID"
// @Success      200  {object}  RoundResponse
// @Failure      404  {string}  string  "Match not found"
// @Router       /api/matches/{id}/round [get]
func (h *MatchHandler) GetRound(w http.ResponseWriter, r *http.Request) {
	round, err := h.svc.GetRoundNumber(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, "get round", err)
		return
	}
	writeJSON(w, r, http.StatusOK, RoundResponse{Round: round})
}
