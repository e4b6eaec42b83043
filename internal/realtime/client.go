package realtime

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second
	// pings go out before the peer's read deadline lapses
	pingPeriod = (pongWait * 9) / 10

	// canvas commands are tiny; state only flows server to client
	maxCommandSize = 1024
	sendBufSize    = 256
)

const actionSync = "sync"

// Client is one canvas attached to the hub.
type Client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

type canvasCommand struct {
	Action string `json:"action"`
}

func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		id:   uuid.NewString(),
		hub:  hub,
		conn: conn,
		send: make(chan []byte, sendBufSize),
	}
}

// ReadPump consumes canvas commands until the connection drops. Graph mutations
// go through the HTTP API, so the only command is a resync request.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.enqueue(c.hub.unregister, c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxCommandSize)
	c.extendDeadline()
	c.conn.SetPongHandler(func(string) error {
		c.extendDeadline()
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn().Err(err).Str("clientId", c.id).Msg("Canvas connection lost")
			}
			return
		}
		c.handleCommand(raw)
	}
}

func (c *Client) handleCommand(raw []byte) {
	var cmd canvasCommand
	if err := json.Unmarshal(raw, &cmd); err != nil {
		c.hub.logger.Warn().Err(err).Str("clientId", c.id).Msg("Malformed canvas command")
		return
	}

	if cmd.Action != actionSync {
		c.hub.logger.Warn().Str("clientId", c.id).Str("action", cmd.Action).Msg("Unknown canvas command")
		return
	}
	c.hub.enqueue(c.hub.resync, c)
}

func (c *Client) extendDeadline() {
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
}

// WritePump forwards hub messages to the canvas and keeps the connection alive.
// Messages already queued when a write starts are drained under the same deadline.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case first, ok := <-c.send:
			if !ok {
				c.closeWith(websocket.CloseGoingAway, "hub shutting down")
				return
			}
			if err := c.flush(first); err != nil {
				c.hub.logger.Debug().Err(err).Str("clientId", c.id).Msg("Canvas write failed")
				return
			}

		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// flush writes first and then drains whatever else is buffered, one text message each.
func (c *Client) flush(first []byte) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, first); err != nil {
		return err
	}
	for pending := len(c.send); pending > 0; pending-- {
		next, ok := <-c.send
		if !ok {
			return nil
		}
		if err := c.conn.WriteMessage(websocket.TextMessage, next); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) closeWith(code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}
