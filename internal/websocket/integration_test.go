package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/vntrieu/impostor/internal/auth"
	"github.com/vntrieu/impostor/internal/games"
)

var testSecret = []byte("ws-test-secret")

func newTestServer(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub := startHub(t)
	h := NewWSHandler(hub, testSecret)
	r := chi.NewRouter()
	r.Get("/ws/rooms/{room_id}", h.HandleRoomWebSocket)
	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return hub, server
}

func wsURL(server *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(server.URL, "http") + path
}

func dialRoom(t *testing.T, server *httptest.Server, roomID, userID int64) *websocket.Conn {
	t.Helper()
	token, _, err := auth.GenerateToken(roomID, userID, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(server, "/ws/rooms/"+strconv.FormatInt(roomID, 10)+"?token="+token), nil)
	if err != nil {
		t.Fatalf("websocket dial error: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) ServerEnvelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	var env ServerEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return env
}

func waitForClients(t *testing.T, hub *Hub, roomID int64, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for hub.GetRoomClientCount(roomID) != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients in room %d, got %d", n, roomID, hub.GetRoomClientCount(roomID))
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWebSocketConnection(t *testing.T) {
	hub, server := newTestServer(t)

	conn := dialRoom(t, server, -100, 1)
	waitForClients(t, hub, -100, 1)

	conn.Close()
	waitForClients(t, hub, -100, 0)
}

func TestWebSocketEventSending(t *testing.T) {
	hub, server := newTestServer(t)

	alice := dialRoom(t, server, -100, 1)
	bob := dialRoom(t, server, -100, 2)
	waitForClients(t, hub, -100, 2)

	ctx := context.Background()
	room := games.Message{Event: games.EventVoteResult, MatchID: "m1", Text: "No one was ejected."}
	if err := hub.NotifyRoom(ctx, -100, room); err != nil {
		t.Fatalf("NotifyRoom failed: %v", err)
	}
	for _, conn := range []*websocket.Conn{alice, bob} {
		env := readEnvelope(t, conn)
		if env.Event != games.EventVoteResult || env.Payload == nil || env.Payload.Text != room.Text {
			t.Errorf("unexpected envelope %+v", env)
		}
	}

	private := games.Message{
		Event:   games.EventVotePrompt,
		MatchID: "m1",
		Options: []games.Option{{Label: "Skip vote", Action: games.OptionVote}},
	}
	if err := hub.NotifyUser(ctx, 2, private); err != nil {
		t.Fatalf("NotifyUser failed: %v", err)
	}
	env := readEnvelope(t, bob)
	if !env.Private || env.Event != games.EventVotePrompt || len(env.Payload.Options) != 1 {
		t.Errorf("unexpected private envelope %+v", env)
	}

	alice.SetReadDeadline(time.Now().Add(50 * time.Millisecond))
	if _, _, err := alice.ReadMessage(); err == nil {
		t.Error("private message delivered to another user")
	}
}

func TestWebSocketAuth(t *testing.T) {
	_, server := newTestServer(t)

	otherRoom, _, err := auth.GenerateToken(-200, 1, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	forged, _, err := auth.GenerateToken(-100, 1, []byte("other-secret"), time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	tests := []struct {
		name string
		path string
		want int
	}{
		{"missing token", "/ws/rooms/-100", http.StatusUnauthorized},
		{"forged token", "/ws/rooms/-100?token=" + forged, http.StatusUnauthorized},
		{"token for another room", "/ws/rooms/-100?token=" + otherRoom, http.StatusUnauthorized},
		{"bad room id", "/ws/rooms/abc?token=" + otherRoom, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, resp, err := websocket.DefaultDialer.Dial(wsURL(server, tt.path), nil)
			if err == nil {
				t.Fatal("expected dial to fail")
			}
			if resp == nil || resp.StatusCode != tt.want {
				t.Errorf("expected status %d, got %+v", tt.want, resp)
			}
		})
	}
}
