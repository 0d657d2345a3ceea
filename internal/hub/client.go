package hub

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"github.com/weiawesome/chat-backend/internal/config"
	"github.com/weiawesome/chat-backend/internal/domain"
	"github.com/weiawesome/chat-backend/pkg/log"
)

// Client is one live websocket connection with its session state and
// outbound buffer.
type Client struct {
	ID      string
	Hub     *Hub
	Conn    *websocket.Conn
	Send    chan []byte
	Session *domain.Session
	config  config.WebSocketConfig
}

// NewClient wraps a websocket connection for the hub.
func NewClient(id string, hub *Hub, conn *websocket.Conn, cfg config.WebSocketConfig) *Client {
	return &Client{
		ID:      id,
		Hub:     hub,
		Conn:    conn,
		Send:    make(chan []byte, 256),
		Session: domain.NewSession(id),
		config:  cfg,
	}
}

// ReadPump reads inbound frames and dispatches them to handler. It
// unregisters the client on any read failure, which drops all of its
// room subscriptions.
func (c *Client) ReadPump(handler func(*Client, []byte)) {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.L().Warn().Err(err).Str(log.FieldClientID, c.ID).Msg("websocket read error")
			}
			break
		}

		c.Session.UpdateActivity()
		handler(c, message)
	}
}

// WritePump drains the send buffer to the connection and keeps it alive
// with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendEvent marshals an event onto the client's send buffer. A full
// buffer drops the event instead of blocking the caller.
func (c *Client) SendEvent(event interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	select {
	case c.Send <- data:
	default:
	}
	return nil
}
