package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vntrieu/impostor/internal/auth"
	"github.com/vntrieu/impostor/internal/games"
	"github.com/vntrieu/impostor/internal/httpapi/handler"
)

var testSecret = []byte("handler-secret")

func requestWithParams(r *http.Request, kv ...string) *http.Request {
	ctx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		ctx.URLParams.Add(kv[i], kv[i+1])
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, ctx))
}

func requestWithClaims(r *http.Request, roomID, userID int64) *http.Request {
	claims := &auth.Claims{RoomID: roomID, UserID: userID, Exp: time.Now().Add(time.Hour).Unix()}
	return r.WithContext(context.WithValue(r.Context(), handler.ClaimsContextKey, claims))
}

func jsonRequest(t *testing.T, method, path string, body interface{}) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestCreateMatchHandler(t *testing.T) {
	t.Run("201 with token", func(t *testing.T) {
		svc := newFakeService()
		h := handler.NewMatchHandler(svc, testSecret)

		req := jsonRequest(t, http.MethodPost, "/api/matches", map[string]interface{}{
			"room_id": -100, "creator_id": 1, "mode": "ranked",
		})
		w := httptest.NewRecorder()
		h.CreateMatch(w, req)

		if w.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d body=%s", w.Code, w.Body.String())
		}
		var resp handler.CreateMatchResponse
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if resp.Match == nil || resp.Match.Mode != games.ModeRanked || resp.Match.CreatorID != 1 {
			t.Errorf("unexpected match %+v", resp.Match)
		}
		claims, err := auth.VerifyToken(resp.Token, testSecret)
		if err != nil {
			t.Fatalf("expected valid token: %v", err)
		}
		if claims.RoomID != -100 || claims.UserID != 1 {
			t.Errorf("unexpected claims %+v", claims)
		}
	})

	t.Run("400 without room", func(t *testing.T) {
		h := handler.NewMatchHandler(newFakeService(), nil)
		w := httptest.NewRecorder()
		h.CreateMatch(w, jsonRequest(t, http.MethodPost, "/api/matches", map[string]interface{}{"creator_id": 1}))
		if w.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", w.Code)
		}
	})

	t.Run("400 bad mode", func(t *testing.T) {
		h := handler.NewMatchHandler(newFakeService(), nil)
		w := httptest.NewRecorder()
		h.CreateMatch(w, jsonRequest(t, http.MethodPost, "/api/matches", map[string]interface{}{
			"room_id": -100, "creator_id": 1, "mode": "hardcore",
		}))
		if w.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", w.Code)
		}
	})

	t.Run("401 without user", func(t *testing.T) {
		h := handler.NewMatchHandler(newFakeService(), nil)
		w := httptest.NewRecorder()
		h.CreateMatch(w, jsonRequest(t, http.MethodPost, "/api/matches", map[string]interface{}{"room_id": -100}))
		if w.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", w.Code)
		}
	})

	t.Run("409 when room busy", func(t *testing.T) {
		svc := newFakeService()
		svc.err = games.ErrMatchInProgress
		h := handler.NewMatchHandler(svc, nil)
		w := httptest.NewRecorder()
		h.CreateMatch(w, jsonRequest(t, http.MethodPost, "/api/matches", map[string]interface{}{
			"room_id": -100, "creator_id": 1,
		}))
		if w.Code != http.StatusConflict {
			t.Errorf("expected 409, got %d", w.Code)
		}
	})
}

func TestJoinMatchHandler(t *testing.T) {
	svc := newFakeService()
	m := svc.addMatch(-100, 1, games.PhaseLobby)
	h := handler.NewMatchHandler(svc, testSecret)

	req := jsonRequest(t, http.MethodPost, "/api/matches/"+m.ID+"/join", map[string]interface{}{"user_id": 5})
	req = requestWithParams(req, "id", m.ID)
	w := httptest.NewRecorder()
	h.JoinMatch(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", w.Code, w.Body.String())
	}
	var resp handler.JoinResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Joined || resp.Token == "" {
		t.Errorf("expected joined with token, got %+v", resp)
	}
	if len(svc.lobby[m.ID]) != 1 || svc.lobby[m.ID][0] != 5 {
		t.Errorf("expected user 5 in lobby, got %v", svc.lobby[m.ID])
	}

	t.Run("token identity wins over body", func(t *testing.T) {
		req := jsonRequest(t, http.MethodPost, "/api/matches/"+m.ID+"/join", map[string]interface{}{"user_id": 99})
		req = requestWithClaims(requestWithParams(req, "id", m.ID), -100, 6)
		w := httptest.NewRecorder()
		h.JoinMatch(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		if got := svc.lobby[m.ID]; len(got) != 2 || got[1] != 6 {
			t.Errorf("expected user 6 joined, got %v", got)
		}
	})

	t.Run("404 unknown match", func(t *testing.T) {
		req := jsonRequest(t, http.MethodPost, "/api/matches/nope/join", map[string]interface{}{"user_id": 5})
		w := httptest.NewRecorder()
		h.JoinMatch(w, requestWithParams(req, "id", "nope"))
		if w.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", w.Code)
		}
	})
}

func TestCreatorOnlyHandlers(t *testing.T) {
	tests := []struct {
		name   string
		userID int64
		call   func(h *handler.MatchHandler) http.HandlerFunc
		want   int
	}{
		{"start by creator", 1, func(h *handler.MatchHandler) http.HandlerFunc { return h.StartMatch }, http.StatusOK},
		{"start by other", 2, func(h *handler.MatchHandler) http.HandlerFunc { return h.StartMatch }, http.StatusForbidden},
		{"end by creator", 1, func(h *handler.MatchHandler) http.HandlerFunc { return h.EndMatch }, http.StatusNoContent},
		{"end by other", 2, func(h *handler.MatchHandler) http.HandlerFunc { return h.EndMatch }, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newFakeService()
			m := svc.addMatch(-100, 1, games.PhaseLobby)
			h := handler.NewMatchHandler(svc, nil)

			req := jsonRequest(t, http.MethodPost, "/", map[string]interface{}{"user_id": tt.userID})
			w := httptest.NewRecorder()
			tt.call(h)(w, requestWithParams(req, "id", m.ID))
			if w.Code != tt.want {
				t.Errorf("expected %d, got %d body=%s", tt.want, w.Code, w.Body.String())
			}
			forced := svc.calls["ForceStart"] + svc.calls["ForceEnd"]
			if tt.want == http.StatusForbidden && forced != 0 {
				t.Error("engine called for non-creator")
			}
		})
	}

	t.Run("start below minimum", func(t *testing.T) {
		svc := newFakeService()
		m := svc.addMatch(-100, 1, games.PhaseLobby)
		svc.err = fmt.Errorf("%w: 2 joined, need 4", games.ErrNotEnoughPlayers)
		h := handler.NewMatchHandler(svc, nil)
		req := jsonRequest(t, http.MethodPost, "/", map[string]interface{}{"user_id": 1})
		w := httptest.NewRecorder()
		h.StartMatch(w, requestWithParams(req, "id", m.ID))
		if w.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", w.Code)
		}
	})
}

func TestActionHandlers_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"ok", nil, 0},
		{"wrong phase", games.ErrWrongPhase, http.StatusConflict},
		{"cooldown", games.ErrOnCooldown, http.StatusConflict},
		{"already voted", games.ErrAlreadyVoted, http.StatusConflict},
		{"dead player", games.ErrPlayerDead, http.StatusConflict},
		{"invalid target", games.ErrInvalidTarget, http.StatusBadRequest},
		{"not in match", games.ErrNotInMatch, http.StatusNotFound},
		{"store failure", fmt.Errorf("record vote: connection reset"), http.StatusInternalServerError},
	}
	target := int64(3)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newFakeService()
			m := svc.addMatch(-100, 1, games.PhaseVoting)
			svc.err = tt.err
			h := handler.NewMatchHandler(svc, nil)

			calls := []struct {
				handler http.HandlerFunc
				body    map[string]interface{}
				ok      int
			}{
				{h.SubmitVote, map[string]interface{}{"user_id": 2, "target_id": target}, http.StatusNoContent},
				{h.SubmitNightAction, map[string]interface{}{"user_id": 2, "kind": "kill", "target_id": target}, http.StatusAccepted},
				{h.SubmitFixerDecision, map[string]interface{}{"user_id": 2, "fix": true}, http.StatusNoContent},
				{h.CompleteTask, map[string]interface{}{"user_id": 2}, http.StatusNoContent},
			}
			for _, c := range calls {
				req := jsonRequest(t, http.MethodPost, "/", c.body)
				w := httptest.NewRecorder()
				c.handler(w, requestWithParams(req, "id", m.ID))
				want := tt.want
				if want == 0 {
					want = c.ok
				}
				if w.Code != want {
					t.Errorf("expected %d, got %d body=%s", want, w.Code, w.Body.String())
				}
				if w.Code == http.StatusInternalServerError && bytes.Contains(w.Body.Bytes(), []byte("connection reset")) {
					t.Error("internal error leaked to client")
				}
			}
		})
	}
}

func TestSubmitVote_Abstain(t *testing.T) {
	svc := newFakeService()
	m := svc.addMatch(-100, 1, games.PhaseVoting)
	h := handler.NewMatchHandler(svc, nil)

	req := jsonRequest(t, http.MethodPost, "/", map[string]interface{}{"user_id": 2})
	w := httptest.NewRecorder()
	h.SubmitVote(w, requestWithParams(req, "id", m.ID))
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if svc.lastVote == nil || svc.lastVote.target != nil {
		t.Errorf("expected abstain vote, got %+v", svc.lastVote)
	}
}

func TestGetPlayersHandler(t *testing.T) {
	t.Run("roles hidden during play", func(t *testing.T) {
		svc := newFakeService()
		m := svc.addMatch(-100, 1, games.PhaseDiscussion)
		svc.players[m.ID] = []games.Player{
			{UserID: 1, Role: games.RoleImpostor, Alive: true},
			{UserID: 2, Role: games.RoleCrewmate, Alive: false},
		}
		h := handler.NewMatchHandler(svc, nil)

		req := requestWithClaims(requestWithParams(httptest.NewRequest(http.MethodGet, "/", nil), "id", m.ID), -100, 2)
		w := httptest.NewRecorder()
		h.GetPlayers(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		var resp handler.PlayersResponse
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if len(resp.Players) != 2 {
			t.Fatalf("expected 2 players, got %d", len(resp.Players))
		}
		if resp.Players[0].Role != "" {
			t.Errorf("expected impostor role hidden, got %q", resp.Players[0].Role)
		}
		if resp.Players[1].Role != games.RoleCrewmate {
			t.Errorf("expected viewer to see own role, got %q", resp.Players[1].Role)
		}
	})

	t.Run("roles revealed after end", func(t *testing.T) {
		svc := newFakeService()
		m := svc.addMatch(-100, 1, games.PhaseEnded)
		svc.players[m.ID] = []games.Player{{UserID: 1, Role: games.RoleImpostor}}
		h := handler.NewMatchHandler(svc, nil)

		w := httptest.NewRecorder()
		h.GetPlayers(w, requestWithParams(httptest.NewRequest(http.MethodGet, "/", nil), "id", m.ID))
		var resp handler.PlayersResponse
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if len(resp.Players) != 1 || resp.Players[0].Role != games.RoleImpostor {
			t.Errorf("expected role reveal, got %+v", resp.Players)
		}
	})

	t.Run("lobby lists joined users", func(t *testing.T) {
		svc := newFakeService()
		m := svc.addMatch(-100, 1, games.PhaseLobby)
		svc.lobby[m.ID] = []int64{3, 4}
		h := handler.NewMatchHandler(svc, nil)

		w := httptest.NewRecorder()
		h.GetPlayers(w, requestWithParams(httptest.NewRequest(http.MethodGet, "/", nil), "id", m.ID))
		var resp handler.PlayersResponse
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if len(resp.Lobby) != 2 {
			t.Errorf("expected 2 lobby users, got %v", resp.Lobby)
		}
	})
}

func TestReadHandlers(t *testing.T) {
	svc := newFakeService()
	m := svc.addMatch(-100, 1, games.PhaseNight)
	svc.round = 3
	h := handler.NewMatchHandler(svc, nil)

	w := httptest.NewRecorder()
	h.GetRound(w, requestWithParams(httptest.NewRequest(http.MethodGet, "/", nil), "id", m.ID))
	var round handler.RoundResponse
	if err := json.NewDecoder(w.Body).Decode(&round); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if round.Round != 3 {
		t.Errorf("expected round 3, got %d", round.Round)
	}

	w = httptest.NewRecorder()
	h.ActiveMatchForRoom(w, requestWithParams(httptest.NewRequest(http.MethodGet, "/", nil), "room_id", "-100"))
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	h.ActiveMatchForRoom(w, requestWithParams(httptest.NewRequest(http.MethodGet, "/", nil), "room_id", "-200"))
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	h.ActiveMatchForRoom(w, requestWithParams(httptest.NewRequest(http.MethodGet, "/", nil), "room_id", "abc"))
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

type voteCall struct {
	user   int64
	target *int64
}

// fakeService is an in-memory MatchService. err, when set, is returned by every mutating call.
type fakeService struct {
	matches  map[string]*games.Match
	lobby    map[string][]int64
	players  map[string][]games.Player
	round    int
	err      error
	calls    map[string]int
	lastVote *voteCall
	seq      int
}

func newFakeService() *fakeService {
	return &fakeService{
		matches: make(map[string]*games.Match),
		lobby:   make(map[string][]int64),
		players: make(map[string][]games.Player),
		calls:   make(map[string]int),
	}
}

func (f *fakeService) addMatch(roomID, creatorID int64, phase games.Phase) *games.Match {
	f.seq++
	m := &games.Match{ID: fmt.Sprintf("match-%d", f.seq), RoomID: roomID, CreatorID: creatorID, Phase: phase, Mode: games.ModeUnranked}
	f.matches[m.ID] = m
	return m
}

func (f *fakeService) get(id string) (*games.Match, error) {
	m, ok := f.matches[id]
	if !ok {
		return nil, games.ErrMatchNotFound
	}
	return m, nil
}

func (f *fakeService) CreateMatch(ctx context.Context, roomID, creatorID int64, mode games.Mode) (*games.Match, error) {
	f.calls["CreateMatch"]++
	if f.err != nil {
		return nil, f.err
	}
	if mode == "" {
		mode = games.ModeUnranked
	}
	m := f.addMatch(roomID, creatorID, games.PhaseLobby)
	m.Mode = mode
	return m, nil
}

func (f *fakeService) JoinLobby(ctx context.Context, matchID string, userID int64) (bool, error) {
	f.calls["JoinLobby"]++
	if _, err := f.get(matchID); err != nil {
		return false, err
	}
	if f.err != nil {
		return false, f.err
	}
	f.lobby[matchID] = append(f.lobby[matchID], userID)
	return true, nil
}

func (f *fakeService) ForceStart(ctx context.Context, matchID string) (bool, error) {
	f.calls["ForceStart"]++
	if f.err != nil {
		return false, f.err
	}
	return true, nil
}

func (f *fakeService) SubmitNightAction(ctx context.Context, matchID string, userID int64, kind games.ActionKind, target *int64) (games.NightAction, error) {
	f.calls["SubmitNightAction"]++
	if f.err != nil {
		return games.NightAction{}, f.err
	}
	return games.NightAction{Actor: userID, Kind: kind, Target: target}, nil
}

func (f *fakeService) CompleteTask(ctx context.Context, matchID string, userID int64) error {
	f.calls["CompleteTask"]++
	return f.err
}

func (f *fakeService) SubmitFixerDecision(ctx context.Context, matchID string, userID int64, fix bool) error {
	f.calls["SubmitFixerDecision"]++
	return f.err
}

func (f *fakeService) SubmitVote(ctx context.Context, matchID string, userID int64, target *int64) error {
	f.calls["SubmitVote"]++
	f.lastVote = &voteCall{user: userID, target: target}
	return f.err
}

func (f *fakeService) ForceEnd(ctx context.Context, matchID string) error {
	f.calls["ForceEnd"]++
	return f.err
}

func (f *fakeService) GetMatch(ctx context.Context, matchID string) (*games.Match, error) {
	return f.get(matchID)
}

func (f *fakeService) GetPlayers(ctx context.Context, matchID string) ([]games.Player, error) {
	return f.players[matchID], nil
}

func (f *fakeService) GetLobbyPlayers(ctx context.Context, matchID string) ([]int64, error) {
	return f.lobby[matchID], nil
}

func (f *fakeService) GetRoundNumber(ctx context.Context, matchID string) (int, error) {
	if _, err := f.get(matchID); err != nil {
		return 0, err
	}
	return f.round, nil
}

func (f *fakeService) ActiveMatchForRoom(ctx context.Context, roomID int64) (*games.Match, error) {
	for _, m := range f.matches {
		if m.RoomID == roomID && m.Phase != games.PhaseEnded {
			return m, nil
		}
	}
	return nil, games.ErrMatchNotFound
}
