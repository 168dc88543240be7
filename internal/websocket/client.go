package websocket

import (
	"context"
	"time"

	ws "github.com/coder/websocket"
	"github.com/google/uuid"
)

const (
	sendBufferSize = 16
	pingInterval   = 30 * time.Second
)

// Client is one websocket connection subscribed to a space.
type Client struct {
	hub     *Hub
	conn    *ws.Conn
	spaceID uuid.UUID
	send    chan []byte
}

func NewClient(hub *Hub, conn *ws.Conn, spaceID uuid.UUID) *Client {
	return &Client{
		hub:     hub,
		conn:    conn,
		spaceID: spaceID,
		send:    make(chan []byte, sendBufferSize),
	}
}

// Run registers the client, starts the write pump, and runs the read pump.
// It blocks until the connection is closed, then unregisters.
func (c *Client) Run(ctx context.Context) {
	c.hub.Register(c)
	c.hub.logger.Debug("websocket client connected", "space_id", c.spaceID, "clients", c.hub.ClientCount(c.spaceID))
	defer func() {
		c.hub.Unregister(c)
		c.hub.logger.Debug("websocket client disconnected", "space_id", c.spaceID, "clients", c.hub.ClientCount(c.spaceID))
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go c.writePump(ctx)
	c.readPump(ctx)
}

// readPump discards incoming messages until the connection closes.
func (c *Client) readPump(ctx context.Context) {
	for {
		if _, _, err := c.conn.Read(ctx); err != nil {
			return
		}
	}
}

// writePump drains the send channel and pings to detect stale connections.
func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.Write(ctx, ws.MessageText, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.Ping(ctx); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
