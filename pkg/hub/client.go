package hub

import (
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// Dashboard clients only listen. The read side exists to notice a closed
// tab and to answer keepalives.
const (
	writeTimeout  = 10 * time.Second
	idleTimeout   = 60 * time.Second
	pingInterval  = idleTimeout * 9 / 10
	maxInboundLen = 4 << 10
	sendBuffer    = 256
)

// Client is one dashboard tab subscribed to a hub.
type Client struct {
	ID   string
	hub  *Hub
	conn *websocket.Conn
	send chan Message
}

// NewClient registers conn with h. It returns nil once h has stopped, in
// which case the caller should just let the connection close.
func NewClient(h *Hub, conn *websocket.Conn) *Client {
	c := &Client{
		ID:   uuid.NewString(),
		hub:  h,
		conn: conn,
		send: make(chan Message, sendBuffer),
	}
	select {
	case h.register <- c:
		return c
	case <-h.done:
		return nil
	}
}

// Run blocks until the tab goes away or the hub drops the client.
func (c *Client) Run() {
	go c.forward()
	c.drain()
	c.hub.logger.Debug("dashboard client left", "client", c.ID)
}

// drain discards inbound frames until the connection fails or idles out.
func (c *Client) drain() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	extend := func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(idleTimeout))
	}
	c.conn.SetReadLimit(maxInboundLen)
	extend("")
	c.conn.SetPongHandler(extend)

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// forward is the only writer on conn.
func (c *Client) forward() {
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	defer c.conn.Close()

	write := func(kind int, data []byte) error {
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		return c.conn.WriteMessage(kind, data)
	}

	for {
		select {
		case msg, open := <-c.send:
			if !open {
				write(websocket.CloseMessage, nil)
				return
			}
			if err := write(websocket.TextMessage, msg.Data); err != nil {
				return
			}
		case <-ping.C:
			if err := write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
