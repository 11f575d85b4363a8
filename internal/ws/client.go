package ws

import (
	"sync"
	"time"

	"zapline/backend/pkg/logger"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxInboundSize = 16 * 1024
)

type enqueueResult int

const (
	enqueueOK enqueueResult = iota
	enqueueFull
	enqueueClosed
)

// Client is one websocket connection bound to an authenticated user.
type Client struct {
	UserID   string
	UserName string

	hub  *Hub
	conn *websocket.Conn
	log  *logger.Logger

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func NewClient(hub *Hub, conn *websocket.Conn, userID, userName string, sendBuffer int, log *logger.Logger) *Client {
	return &Client{
		UserID:   userID,
		UserName: userName,
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		log:      log,
	}
}

// enqueue places a payload on the send channel without blocking. The
// client mutex serializes against closeSend so a concurrent unregister
// cannot cause a send on a closed channel.
func (c *Client) enqueue(payload []byte) enqueueResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return enqueueClosed
	}
	select {
	case c.send <- payload:
		return enqueueOK
	default:
		return enqueueFull
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// ReadPump reads inbound events and hands them to the relay. It exits when
// the connection errors or closes, unregistering the client.
func (c *Client) ReadPump(relay *Relay) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxInboundSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("websocket read error", "user_id", c.UserID, "error", err)
			}
			return
		}
		relay.Handle(c, payload)
	}
}

// WritePump drains the send channel onto the connection and keeps the
// connection alive with periodic pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
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
