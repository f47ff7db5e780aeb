package websocket

import (
	"context"
	"testing"
	"time"

	"github.com/vntrieu/impostor/internal/games"
)

func testClient(hub *Hub, roomID, userID int64) *Client {
	return &Client{
		hub:    hub,
		send:   make(chan *ServerEnvelope, 256),
		RoomID: roomID,
		UserID: userID,
	}
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)
	return hub
}

func TestHub_RegisterUnregister(t *testing.T) {
	hub := startHub(t)

	client := testClient(hub, 100, 1)
	hub.register <- client

	// Give hub time to process
	time.Sleep(10 * time.Millisecond)

	if count := hub.GetRoomClientCount(100); count != 1 {
		t.Errorf("expected 1 client in room, got %d", count)
	}
	if count := hub.GetUserClientCount(1); count != 1 {
		t.Errorf("expected 1 connection for user, got %d", count)
	}

	hub.unregister <- client
	time.Sleep(10 * time.Millisecond)

	if count := hub.GetRoomClientCount(100); count != 0 {
		t.Errorf("expected 0 clients in room after unregister, got %d", count)
	}
	if count := hub.GetUserClientCount(1); count != 0 {
		t.Errorf("expected 0 connections for user after unregister, got %d", count)
	}
	if _, ok := <-client.send; ok {
		t.Error("expected send channel closed after unregister")
	}
}

func TestHub_MultipleRooms(t *testing.T) {
	hub := startHub(t)

	for i := int64(1); i <= 2; i++ {
		hub.register <- testClient(hub, 100, i)
		hub.register <- testClient(hub, 200, i+10)
	}
	time.Sleep(10 * time.Millisecond)

	if count := hub.GetRoomClientCount(100); count != 2 {
		t.Errorf("expected 2 clients in room 100, got %d", count)
	}
	if count := hub.GetRoomClientCount(200); count != 2 {
		t.Errorf("expected 2 clients in room 200, got %d", count)
	}
}

func TestHub_NotifyRoom(t *testing.T) {
	hub := startHub(t)

	room1 := []*Client{testClient(hub, 100, 1), testClient(hub, 100, 2), testClient(hub, 100, 3)}
	for _, c := range room1 {
		hub.register <- c
	}
	other := testClient(hub, 200, 4)
	hub.register <- other
	time.Sleep(10 * time.Millisecond)

	msg := games.Message{Event: games.EventPhaseChanged, MatchID: "match-1", Text: "Night falls."}
	if err := hub.NotifyRoom(context.Background(), 100, msg); err != nil {
		t.Fatalf("NotifyRoom failed: %v", err)
	}

	for i, client := range room1 {
		select {
		case out := <-client.send:
			if out.Type != ServerTypeEvent || out.Event != games.EventPhaseChanged {
				t.Errorf("client %d: unexpected envelope %+v", i, out)
			}
			if out.Private {
				t.Errorf("client %d: room message marked private", i)
			}
			if out.Payload == nil || out.Payload.MatchID != "match-1" {
				t.Errorf("client %d: unexpected payload %+v", i, out.Payload)
			}
		case <-time.After(100 * time.Millisecond):
			t.Errorf("client %d: did not receive broadcast", i)
		}
	}

	select {
	case <-other.send:
		t.Error("room 200 client should not have received room 100 message")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_NotifyUser(t *testing.T) {
	hub := startHub(t)

	// the same user watching two rooms gets the private message on both connections
	a := testClient(hub, 100, 7)
	b := testClient(hub, 200, 7)
	bystander := testClient(hub, 100, 8)
	for _, c := range []*Client{a, b, bystander} {
		hub.register <- c
	}
	time.Sleep(10 * time.Millisecond)

	msg := games.Message{Event: games.EventRoleAssigned, Text: "You are the Impostor."}
	if err := hub.NotifyUser(context.Background(), 7, msg); err != nil {
		t.Fatalf("NotifyUser failed: %v", err)
	}

	for _, c := range []*Client{a, b} {
		select {
		case out := <-c.send:
			if !out.Private || out.Event != games.EventRoleAssigned {
				t.Errorf("unexpected envelope %+v", out)
			}
		case <-time.After(100 * time.Millisecond):
			t.Error("user connection did not receive private message")
		}
	}
	select {
	case <-bystander.send:
		t.Error("private message leaked to another user")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_EmptyRoomBroadcast(t *testing.T) {
	hub := startHub(t)

	// Broadcast to a room with no clients (should not panic)
	if err := hub.NotifyRoom(context.Background(), 999, games.Message{Event: games.EventMatchEnded}); err != nil {
		t.Fatalf("NotifyRoom failed: %v", err)
	}
	time.Sleep(10 * time.Millisecond)

	if count := hub.GetRoomClientCount(999); count != 0 {
		t.Errorf("expected 0 clients in non-existent room, got %d", count)
	}
}

func TestHub_SlowClientDropped(t *testing.T) {
	hub := startHub(t)

	slow := &Client{hub: hub, send: make(chan *ServerEnvelope), RoomID: 100, UserID: 1}
	hub.register <- slow
	time.Sleep(10 * time.Millisecond)

	if err := hub.NotifyRoom(context.Background(), 100, games.Message{Event: games.EventPhaseChanged}); err != nil {
		t.Fatalf("NotifyRoom failed: %v", err)
	}
	time.Sleep(10 * time.Millisecond)

	if count := hub.GetRoomClientCount(100); count != 0 {
		t.Errorf("expected slow client dropped, got %d clients", count)
	}
	if count := hub.GetUserClientCount(1); count != 0 {
		t.Errorf("expected slow client removed from user index, got %d", count)
	}
}

func TestHub_ConcurrentRegistration(t *testing.T) {
	hub := startHub(t)

	for i := int64(1); i <= 10; i++ {
		go func(c *Client) {
			hub.register <- c
		}(testClient(hub, 100, i))
	}

	// Give hub time to process all registrations
	time.Sleep(50 * time.Millisecond)

	if count := hub.GetRoomClientCount(100); count != 10 {
		t.Errorf("expected 10 clients in room, got %d", count)
	}
}

func TestHub_StopClosesClients(t *testing.T) {
	hub := NewHub()
	done := make(chan struct{})
	go func() {
		hub.Run()
		close(done)
	}()

	client := testClient(hub, 100, 1)
	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	hub.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}
	if _, ok := <-client.send; ok {
		t.Error("expected send channel closed on stop")
	}

	// notifications after stop are dropped without blocking
	if err := hub.NotifyRoom(context.Background(), 100, games.Message{}); err != nil {
		t.Errorf("expected nil error after stop, got %v", err)
	}
}
