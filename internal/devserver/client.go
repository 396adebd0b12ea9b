package devserver

import (
	"encoding/json"

	"github.com/gofiber/contrib/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pelusa-v/pelusa-live/internal/protocol"
	"github.com/pelusa-v/pelusa-live/internal/session"
)

type ConnLike interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(int, []byte) error
	Close() error
}

// Client is one websocket connection. A user may hold several.
type Client struct {
	ID      string
	User    session.User
	Conn    ConnLike
	Send    chan []byte
	limiter *rate.Limiter
}

func NewClient(id string, user session.User, conn ConnLike, buffer int, limit rate.Limit, burst int) *Client {
	return &Client{
		ID:      id,
		User:    user,
		Conn:    conn,
		Send:    make(chan []byte, buffer),
		limiter: rate.NewLimiter(limit, burst),
	}
}

// ReadPump feeds frames to the hub until the connection fails, then
// unregisters the client.
func (c *Client) ReadPump(h *Hub) {
	defer h.Unregister(c)
	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			return
		}
		if !c.limiter.Allow() {
			h.logger.Debug("inbound frame rate limited", zap.String("clientId", c.ID))
			continue
		}
		var env protocol.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}
		h.receive(c, env)
	}
}

// WritePump drains Send until the hub closes it.
func (c *Client) WritePump() {
	for data := range c.Send {
		if err := c.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
			_ = c.Conn.Close()
			return
		}
	}
}

// enqueue must only be called from the hub loop, which owns closing Send.
func (c *Client) enqueue(frame []byte) bool {
	select {
	case c.Send <- frame:
		return true
	default:
		return false
	}
}
