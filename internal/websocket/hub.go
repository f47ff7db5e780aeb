package websocket

import (
	"context"
	"log"
	"sync"

	"github.com/vntrieu/impostor/internal/games"
)

// Hub maintains the set of active clients and pushes engine messages to them.
// It implements games.Notifier: room messages go to every client subscribed to the room,
// private messages go to every connection of the addressed user.
type Hub struct {
	// Registered clients by room_id and by user_id
	rooms map[int64]map[*Client]bool
	users map[int64]map[*Client]bool

	// Outbound messages
	broadcast chan *BroadcastMessage

	// Register requests from the clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	quit     chan struct{}
	stopOnce sync.Once

	// Mutex for thread-safe access
	mu sync.RWMutex
}

var _ games.Notifier = (*Hub)(nil)

// BroadcastMessage is a message addressed to a room, or to a user when ToUser is set.
type BroadcastMessage struct {
	ToUser   bool
	Target   int64
	Envelope *ServerEnvelope
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[int64]map[*Client]bool),
		users:      make(map[int64]map[*Client]bool),
		broadcast:  make(chan *BroadcastMessage, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
	}
}

// Run starts the hub's main loop. It returns after Stop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			add(h.rooms, client.RoomID, client)
			add(h.users, client.UserID, client)
			total := len(h.rooms[client.RoomID])
			h.mu.Unlock()
			log.Printf("ws client registered room_id=%d user_id=%d total=%d", client.RoomID, client.UserID, total)

		case client := <-h.unregister:
			h.mu.Lock()
			h.drop(client)
			h.mu.Unlock()
			log.Printf("ws client unregistered room_id=%d user_id=%d", client.RoomID, client.UserID)

		case message := <-h.broadcast:
			h.mu.Lock()
			set := h.rooms[message.Target]
			if message.ToUser {
				set = h.users[message.Target]
			}
			for client := range set {
				select {
				case client.send <- message.Envelope:
				default:
					// slow consumer
					h.drop(client)
				}
			}
			h.mu.Unlock()

		case <-h.quit:
			h.mu.Lock()
			for _, set := range h.rooms {
				for client := range set {
					h.drop(client)
				}
			}
			h.mu.Unlock()
			return
		}
	}
}

// Stop ends Run and closes every client.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.quit) })
}

func add(index map[int64]map[*Client]bool, key int64, c *Client) {
	if index[key] == nil {
		index[key] = make(map[*Client]bool)
	}
	index[key][c] = true
}

// drop removes c from both indexes and closes its send channel. Caller holds h.mu.
func (h *Hub) drop(c *Client) {
	room, ok := h.rooms[c.RoomID]
	if !ok || !room[c] {
		return
	}
	delete(room, c)
	if len(room) == 0 {
		delete(h.rooms, c.RoomID)
	}
	if user := h.users[c.UserID]; user != nil {
		delete(user, c)
		if len(user) == 0 {
			delete(h.users, c.UserID)
		}
	}
	close(c.send)
}

func (h *Hub) enqueue(ctx context.Context, m *BroadcastMessage) error {
	select {
	case h.broadcast <- m:
		return nil
	case <-h.quit:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NotifyRoom pushes msg to every client in the room.
func (h *Hub) NotifyRoom(ctx context.Context, roomID int64, msg games.Message) error {
	return h.enqueue(ctx, &BroadcastMessage{Target: roomID, Envelope: envelopeFor(msg, false)})
}

// NotifyUser pushes msg to every connection of the user.
func (h *Hub) NotifyUser(ctx context.Context, userID int64, msg games.Message) error {
	return h.enqueue(ctx, &BroadcastMessage{ToUser: true, Target: userID, Envelope: envelopeFor(msg, true)})
}

// GetRoomClientCount returns the number of clients in a room.
func (h *Hub) GetRoomClientCount(roomID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// GetUserClientCount returns the number of connections a user holds.
func (h *Hub) GetUserClientCount(userID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID])
}
