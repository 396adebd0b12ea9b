package realtime

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/fasthttp/websocket"
)

// Conn is the part of a websocket connection the manager uses.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Dialer opens an authenticated connection to endpoint.
type Dialer interface {
	Dial(ctx context.Context, endpoint, token string) (Conn, error)
}

// WebsocketDialer dials with a bearer token on the upgrade request.
type WebsocketDialer struct {
	HandshakeTimeout time.Duration
	PongWait         time.Duration
	WriteWait        time.Duration
	ReadLimit        int64
}

func NewWebsocketDialer(cfg Config) *WebsocketDialer {
	return &WebsocketDialer{
		HandshakeTimeout: cfg.HandshakeTimeout,
		PongWait:         cfg.PongWait,
		WriteWait:        cfg.WriteWait,
		ReadLimit:        cfg.ReadLimit,
	}
}

func (d *WebsocketDialer) Dial(ctx context.Context, endpoint, token string) (Conn, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: d.HandshakeTimeout,
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	c, resp, err := dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %s: %w", endpoint, resp.Status, err)
		}
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}

	if d.ReadLimit > 0 {
		c.SetReadLimit(d.ReadLimit)
	}
	w := &wsConn{conn: c, pongWait: d.PongWait, writeWait: d.WriteWait}
	w.extendRead()
	c.SetPongHandler(func(string) error {
		w.extendRead()
		return nil
	})
	return w, nil
}

type wsConn struct {
	conn      *websocket.Conn
	pongWait  time.Duration
	writeWait time.Duration

	closeOnce sync.Once
	closeErr  error
}

func (w *wsConn) extendRead() {
	if w.pongWait > 0 {
		_ = w.conn.SetReadDeadline(time.Now().Add(w.pongWait))
	}
}

func (w *wsConn) ReadMessage() (int, []byte, error) {
	mt, data, err := w.conn.ReadMessage()
	if err == nil {
		w.extendRead()
	}
	return mt, data, err
}

func (w *wsConn) WriteMessage(mt int, data []byte) error {
	if w.writeWait > 0 {
		_ = w.conn.SetWriteDeadline(time.Now().Add(w.writeWait))
	}
	return w.conn.WriteMessage(mt, data)
}

func (w *wsConn) Close() error {
	w.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = w.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		w.closeErr = w.conn.Close()
	})
	return w.closeErr
}
