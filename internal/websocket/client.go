package websocket

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// clients only send control frames
	maxMessageSize = 4 * 1024

	// a match emits a few messages per phase; a client this far behind is dropped
	sendBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// origins are enforced by the CORS middleware and the signed token
		return true
	},
}

// Client is one subscriber's socket. Room broadcasts are routed by RoomID and private prompts by UserID.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan *ServerEnvelope

	RoomID int64
	UserID int64
}

func newClient(hub *Hub, conn *websocket.Conn, roomID, userID int64) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan *ServerEnvelope, sendBuffer),
		RoomID: roomID,
		UserID: userID,
	}
}

// attach registers c and starts its pumps.
func (c *Client) attach() {
	select {
	case c.hub.register <- c:
	case <-c.hub.quit:
		c.conn.Close()
		return
	}
	go c.writePump()
	go c.readPump()
}

// readPump keeps the read deadline fresh and detects disconnects. The socket is push-only, so
// application frames are discarded.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.quit:
		}
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("websocket read failed room_id=%d user_id=%d: %v", c.RoomID, c.UserID, err)
			}
			break
		}
	}
}

// writePump sends one envelope per frame and pings on idle. A closed send channel means the hub dropped
// the client, either at shutdown or for falling behind.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case env, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.conn.WriteJSON(env); err != nil {
				log.Printf("websocket write failed room_id=%d user_id=%d: %v", c.RoomID, c.UserID, err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
